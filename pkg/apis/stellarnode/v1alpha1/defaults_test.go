// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package v1alpha1

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
)

func TestApplyDefaults(t *testing.T) {
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

	n := validatorNode()
	n.ApplyDefaults(now)

	assert.Equal(t, DefaultCoreImage, n.Spec.Version)
	require.NotNil(t, n.Spec.Replicas)
	assert.Equal(t, int32(1), *n.Spec.Replicas)
	require.NotNil(t, n.Spec.Resources)
	require.NotNil(t, n.Spec.Storage)
	assert.Equal(t, DefaultStorageClass, n.Spec.Storage.StorageClass)
	assert.Equal(t, resource.MustParse(DefaultStorageSize), n.Spec.Storage.Size)
	assert.Equal(t, RetentionPolicyRetain, n.Spec.Storage.RetentionPolicy)

	assert.Equal(t, AppNameLabelValue, n.Labels[AppNameLabelName])
	assert.Equal(t, string(NodeTypeValidator), n.Labels[NodeTypeLabelName])
	assert.Equal(t, n.Spec.Version, n.Annotations[VersionAnnotation])
	assert.Equal(t, now.Format(time.RFC3339), n.Annotations[MutatedAtAnnotation])

	// defaults must be stable under a second pass
	before := n.DeepCopy()
	n.ApplyDefaults(now.Add(time.Hour))
	assert.Equal(t, before, n)
}

func TestApplyDefaults_doesNotOverrideUserValues(t *testing.T) {
	n := validatorNode()
	n.Spec.Version = "stellar/stellar-core:v22.0.0"
	n.Spec.Storage = &StorageConfig{
		StorageClass:    "fast-ssd",
		Size:            resource.MustParse("500Gi"),
		RetentionPolicy: RetentionPolicyDelete,
	}
	n.ApplyDefaults(time.Now())

	assert.Equal(t, "stellar/stellar-core:v22.0.0", n.Spec.Version)
	assert.Equal(t, "fast-ssd", n.Spec.Storage.StorageClass)
	assert.Equal(t, RetentionPolicyDelete, n.Spec.Storage.RetentionPolicy)
}

func TestApplyDefaults_horizonHasNoStorage(t *testing.T) {
	n := horizonNode()
	n.ApplyDefaults(time.Now())
	assert.Equal(t, DefaultHorizonImage, n.Spec.Version)
	assert.Nil(t, n.Spec.Storage)
}

func TestApplyDefaults_mainnetValidatorResources(t *testing.T) {
	n := validatorNode()
	n.Spec.Network = NetworkMainnet
	n.ApplyDefaults(time.Now())
	require.NotNil(t, n.Spec.Resources)
	assert.Equal(t, resource.MustParse("4Gi"), n.Spec.Resources.Requests[corev1.ResourceMemory])
}

func TestApplyDefaults_historyArchiveURLs(t *testing.T) {
	n := validatorNode()
	n.Spec.ValidatorConfig.EnableHistoryArchive = true
	n.ApplyDefaults(time.Now())
	assert.Equal(t, NetworkTestnet.HistoryArchiveURLs(), n.Spec.ValidatorConfig.HistoryArchiveUrls)
}

func TestApplyDefaults_istioDefaults(t *testing.T) {
	n := horizonNode()
	n.Spec.ServiceMesh = &ServiceMeshConfig{Istio: &IstioMeshConfig{
		CircuitBreaker: &CircuitBreakerConfig{ConsecutiveErrors: 5, TimeWindowSecs: 30, BaseEjectionSecs: 30},
	}}
	n.ApplyDefaults(time.Now())
	assert.Equal(t, MtlsModeStrict, n.Spec.ServiceMesh.Istio.MtlsMode)
	assert.Equal(t, int64(30), n.Spec.ServiceMesh.Istio.TimeoutSecs)
	assert.Equal(t, int32(10), n.Spec.ServiceMesh.Istio.CircuitBreaker.MinRequestVolume)
	assert.Equal(t, int32(50), n.Spec.ServiceMesh.Istio.CircuitBreaker.MaxEjectionPercent)
}
