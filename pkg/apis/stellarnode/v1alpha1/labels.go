// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package v1alpha1

import (
	"github.com/stellar/node-operator/pkg/utils/maps"
)

const (
	// ManagedByLabelValue identifies objects created by this operator.
	ManagedByLabelValue = "stellar-node-operator"
	// AppNameLabelValue is the shared app name selector label value.
	AppNameLabelValue = "stellar-node"

	// ManagedByLabelName is the well-known Kubernetes managed-by label.
	ManagedByLabelName = "app.kubernetes.io/managed-by"
	// AppNameLabelName is the well-known Kubernetes app name label.
	AppNameLabelName = "app.kubernetes.io/name"
	// AppInstanceLabelName is the well-known Kubernetes app instance label.
	AppInstanceLabelName = "app.kubernetes.io/instance"

	// NodeNameLabelName carries the name of the owning StellarNode; also used to map
	// pod events back to the owner.
	NodeNameLabelName = "stellar.org/node"
	// NodeTypeLabelName carries the node type of the owner.
	NodeTypeLabelName = "stellar.org/node-type"
	// NetworkLabelName carries the network of the owner.
	NetworkLabelName = "stellar.org/network"
)

// GetIdentityLabels returns the labels stamped on every child of a StellarNode.
func (n *StellarNode) GetIdentityLabels() map[string]string {
	return map[string]string{
		ManagedByLabelName: ManagedByLabelValue,
		NodeNameLabelName:  n.Name,
		NodeTypeLabelName:  string(n.Spec.NodeType),
		NetworkLabelName:   string(n.Spec.Network),
	}
}

// GetPodSelectorLabels returns the stable subset of labels used as pod selector.
// Selectors are immutable so this set must never grow.
func (n *StellarNode) GetPodSelectorLabels() map[string]string {
	return map[string]string{
		AppNameLabelName:     AppNameLabelValue,
		AppInstanceLabelName: n.Name,
	}
}

// GetPodLabels returns the full label set for node pods.
func (n *StellarNode) GetPodLabels() map[string]string {
	return maps.Merge(n.GetIdentityLabels(), n.GetPodSelectorLabels())
}
