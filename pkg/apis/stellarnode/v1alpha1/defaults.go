// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package v1alpha1

import (
	"time"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	"k8s.io/utils/ptr"
)

// Default container images per node type, pinned to the tested releases.
const (
	DefaultCoreImage    = "stellar/stellar-core:v21.3.0"
	DefaultHorizonImage = "stellar/stellar-horizon:v2.31.0"
	DefaultSorobanImage = "stellar/soroban-rpc:v21.3.0"

	// DefaultStorageClass is used when the spec does not name a storage class.
	DefaultStorageClass = "standard"
	// DefaultStorageSize is the claim capacity when the spec does not set one.
	DefaultStorageSize = "100Gi"
)

// Annotations stamped by the mutating webhook.
const (
	VersionAnnotation   = "stellar.org/version"
	NetworkAnnotation   = "stellar.org/network"
	MutatedAtAnnotation = "stellar.org/mutated-at"
)

// DefaultImageFor returns the default image reference for a node type.
func DefaultImageFor(nodeType NodeType) string {
	switch nodeType {
	case NodeTypeHorizon:
		return DefaultHorizonImage
	case NodeTypeSorobanRpc:
		return DefaultSorobanImage
	default:
		return DefaultCoreImage
	}
}

// DefaultResourcesFor returns the default compute resources for a node type on a network.
// Mainnet validators get more headroom than test networks.
func DefaultResourcesFor(nodeType NodeType, network Network) corev1.ResourceRequirements {
	requestCPU, requestMem := "500m", "1Gi"
	limitCPU, limitMem := "2", "4Gi"
	if network == NetworkMainnet && nodeType == NodeTypeValidator {
		requestCPU, requestMem = "1", "4Gi"
		limitCPU, limitMem = "4", "8Gi"
	}
	return corev1.ResourceRequirements{
		Requests: corev1.ResourceList{
			corev1.ResourceCPU:    resource.MustParse(requestCPU),
			corev1.ResourceMemory: resource.MustParse(requestMem),
		},
		Limits: corev1.ResourceList{
			corev1.ResourceCPU:    resource.MustParse(limitCPU),
			corev1.ResourceMemory: resource.MustParse(limitMem),
		},
	}
}

// ApplyDefaults fills in unset spec fields, labels and annotations in place.
// It is called by the mutating webhook and must be idempotent.
func (n *StellarNode) ApplyDefaults(now time.Time) {
	if n.Spec.Version == "" {
		n.Spec.Version = DefaultImageFor(n.Spec.NodeType)
	}
	if n.Spec.Replicas == nil {
		n.Spec.Replicas = ptr.To(int32(1))
	}
	if n.Spec.Resources == nil {
		resources := DefaultResourcesFor(n.Spec.NodeType, n.Spec.Network)
		n.Spec.Resources = &resources
	}
	if n.NeedsStorage() {
		if n.Spec.Storage == nil {
			n.Spec.Storage = &StorageConfig{}
		}
		if n.Spec.Storage.StorageClass == "" {
			n.Spec.Storage.StorageClass = DefaultStorageClass
		}
		if n.Spec.Storage.Size.IsZero() {
			n.Spec.Storage.Size = resource.MustParse(DefaultStorageSize)
		}
		if n.Spec.Storage.RetentionPolicy == "" {
			n.Spec.Storage.RetentionPolicy = RetentionPolicyRetain
		}
	}
	if n.Spec.NodeType == NodeTypeValidator && n.Spec.ValidatorConfig != nil &&
		n.Spec.ValidatorConfig.EnableHistoryArchive && len(n.Spec.ValidatorConfig.HistoryArchiveUrls) == 0 {
		n.Spec.ValidatorConfig.HistoryArchiveUrls = n.Spec.Network.HistoryArchiveURLs()
	}
	if mesh := n.Spec.ServiceMesh; mesh != nil && mesh.Istio != nil {
		if mesh.Istio.MtlsMode == "" {
			mesh.Istio.MtlsMode = MtlsModeStrict
		}
		if mesh.Istio.TimeoutSecs == 0 {
			mesh.Istio.TimeoutSecs = 30
		}
		if cb := mesh.Istio.CircuitBreaker; cb != nil {
			if cb.MinRequestVolume == 0 {
				cb.MinRequestVolume = 10
			}
			if cb.MaxEjectionPercent == 0 {
				cb.MaxEjectionPercent = 50
			}
		}
	}

	if n.Labels == nil {
		n.Labels = map[string]string{}
	}
	n.Labels[AppNameLabelName] = AppNameLabelValue
	n.Labels[NodeTypeLabelName] = string(n.Spec.NodeType)
	n.Labels[NetworkLabelName] = string(n.Spec.Network)

	if n.Annotations == nil {
		n.Annotations = map[string]string{}
	}
	n.Annotations[VersionAnnotation] = n.Spec.Version
	n.Annotations[NetworkAnnotation] = string(n.Spec.Network)
	if _, mutated := n.Annotations[MutatedAtAnnotation]; !mutated {
		n.Annotations[MutatedAtAnnotation] = now.UTC().Format(time.RFC3339)
	}
}
