// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package v1alpha1

import (
	common_name "github.com/stellar/node-operator/pkg/controller/common/name"
)

const (
	configSuffix   = "config"
	serviceSuffix  = "service"
	seedSuffix     = "seed"
	pdbSuffix      = "pdb"
	peerAuthSuffix = "peer-auth"
	destRuleSuffix = "dest-rule"
	virtSvcSuffix  = "virtual-svc"
	reqAuthSuffix  = "req-auth"
)

// Namer derives collision-free child resource names from a StellarNode name.
var Namer = common_name.NewNamer()

// WorkloadName returns the name of the StatefulSet or Deployment for a node.
// The workload intentionally carries the bare resource name so that pod names
// stay short and recognizable.
func WorkloadName(name string) string {
	return Namer.Suffix(name)
}

// ConfigMapName returns the name of the rendered configuration ConfigMap.
func ConfigMapName(name string) string {
	return Namer.Suffix(name, configSuffix)
}

// ServiceName returns the name of the stable network Service.
func ServiceName(name string) string {
	return Namer.Suffix(name, serviceSuffix)
}

// SeedSecretName returns the name of the Secret materialized from an external
// secret store for a Validator seed.
func SeedSecretName(name string) string {
	return Namer.Suffix(name, seedSuffix)
}

// PodDisruptionBudgetName returns the name of the optional PodDisruptionBudget.
func PodDisruptionBudgetName(name string) string {
	return Namer.Suffix(name, pdbSuffix)
}

// PeerAuthenticationName returns the name of the Istio PeerAuthentication policy.
func PeerAuthenticationName(name string) string {
	return Namer.Suffix(name, peerAuthSuffix)
}

// DestinationRuleName returns the name of the Istio DestinationRule.
func DestinationRuleName(name string) string {
	return Namer.Suffix(name, destRuleSuffix)
}

// VirtualServiceName returns the name of the Istio VirtualService.
func VirtualServiceName(name string) string {
	return Namer.Suffix(name, virtSvcSuffix)
}

// RequestAuthenticationName returns the name of the Istio RequestAuthentication policy.
func RequestAuthenticationName(name string) string {
	return Namer.Suffix(name, reqAuthSuffix)
}
