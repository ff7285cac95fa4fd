// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package v1alpha1

// MtlsMode is the Istio peer authentication mode applied to node pods.
type MtlsMode string

const (
	MtlsModeStrict     MtlsMode = "STRICT"
	MtlsModePermissive MtlsMode = "PERMISSIVE"
	MtlsModeDisable    MtlsMode = "DISABLE"
)

// AllMtlsModes lists the supported mTLS modes for validation messages.
var AllMtlsModes = []MtlsMode{MtlsModeStrict, MtlsModePermissive, MtlsModeDisable}

// ServiceMeshConfig enables mesh policy generation for a node. Exactly one of
// Istio or Linkerd must be set.
type ServiceMeshConfig struct {
	// SidecarInjection toggles the sidecar injection annotation on node pods.
	// +kubebuilder:validation:Optional
	SidecarInjection bool `json:"sidecarInjection,omitempty"`
	// +kubebuilder:validation:Optional
	Istio *IstioMeshConfig `json:"istio,omitempty"`
	// +kubebuilder:validation:Optional
	Linkerd *LinkerdMeshConfig `json:"linkerd,omitempty"`
}

// IstioMeshConfig describes the Istio policy objects generated for a node.
type IstioMeshConfig struct {
	// MtlsMode defaults to STRICT.
	// +kubebuilder:validation:Optional
	MtlsMode MtlsMode `json:"mtlsMode,omitempty"`
	// +kubebuilder:validation:Optional
	CircuitBreaker *CircuitBreakerConfig `json:"circuitBreaker,omitempty"`
	// +kubebuilder:validation:Optional
	Retries *RetryConfig `json:"retries,omitempty"`
	// TimeoutSecs is the per-request timeout in the generated VirtualService.
	// +kubebuilder:validation:Optional
	TimeoutSecs int64 `json:"timeoutSecs,omitempty"`
}

// LinkerdMeshConfig describes the Linkerd annotations applied to node pods.
type LinkerdMeshConfig struct {
	// +kubebuilder:validation:Optional
	AutoMtls *bool `json:"autoMtls,omitempty"`
	// +kubebuilder:validation:Optional
	PolicyMode string `json:"policyMode,omitempty"`
}

// CircuitBreakerConfig is rendered into an Istio DestinationRule outlier detection block.
type CircuitBreakerConfig struct {
	// ConsecutiveErrors before a host is ejected. Must be at least 1.
	ConsecutiveErrors int32 `json:"consecutiveErrors"`
	// TimeWindowSecs is the sliding window over which errors are counted. Must be at least 1.
	TimeWindowSecs int64 `json:"timeWindowSecs"`
	// BaseEjectionSecs is the minimum ejection duration. Must be at least 1.
	BaseEjectionSecs int64 `json:"baseEjectionSecs"`
	// +kubebuilder:validation:Optional
	MinRequestVolume int32 `json:"minRequestVolume,omitempty"`
	// +kubebuilder:validation:Optional
	MaxEjectionPercent int32 `json:"maxEjectionPercent,omitempty"`
}

// RetryConfig is rendered into an Istio VirtualService retry policy.
type RetryConfig struct {
	// +kubebuilder:validation:Optional
	MaxRetries int32 `json:"maxRetries,omitempty"`
	// +kubebuilder:validation:Optional
	BackoffMs int64 `json:"backoffMs,omitempty"`
	// +kubebuilder:validation:Optional
	RetryableStatusCodes []int32 `json:"retryableStatusCodes,omitempty"`
}

// MeshProvider names the configured mesh implementation.
type MeshProvider string

const (
	MeshProviderNone    MeshProvider = ""
	MeshProviderIstio   MeshProvider = "istio"
	MeshProviderLinkerd MeshProvider = "linkerd"
)

// Provider returns which mesh implementation is configured, or MeshProviderNone.
func (s *ServiceMeshConfig) Provider() MeshProvider {
	switch {
	case s == nil:
		return MeshProviderNone
	case s.Istio != nil:
		return MeshProviderIstio
	case s.Linkerd != nil:
		return MeshProviderLinkerd
	default:
		return MeshProviderNone
	}
}

// EffectiveMtlsMode returns the configured mTLS mode, defaulting to STRICT.
func (i *IstioMeshConfig) EffectiveMtlsMode() MtlsMode {
	if i == nil || i.MtlsMode == "" {
		return MtlsModeStrict
	}
	return i.MtlsMode
}
