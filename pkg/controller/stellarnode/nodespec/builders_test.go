// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package nodespec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	"k8s.io/utils/ptr"

	stellarv1alpha1 "github.com/stellar/node-operator/pkg/apis/stellarnode/v1alpha1"
	"github.com/stellar/node-operator/pkg/controller/common/deployment"
	"github.com/stellar/node-operator/pkg/controller/common/hash"
	"github.com/stellar/node-operator/pkg/controller/common/statefulset"
	"github.com/stellar/node-operator/pkg/controller/stellarnode/configuration"
)

func TestBuildStatefulSet(t *testing.T) {
	node := testNode(stellarv1alpha1.NodeTypeValidator)
	sset := BuildStatefulSet(node, "checksum")

	assert.Equal(t, "stellar-test", sset.Name)
	assert.Equal(t, "ns", sset.Namespace)
	assert.Equal(t, "stellar-test-service", sset.Spec.ServiceName)
	assert.Equal(t, appsv1.OrderedReadyPodManagement, sset.Spec.PodManagementPolicy)
	require.NotNil(t, sset.Spec.Replicas)
	assert.Equal(t, int32(1), *sset.Spec.Replicas)
	assert.Equal(t, node.GetPodSelectorLabels(), sset.Spec.Selector.MatchLabels)

	// the comparison hash is stamped on the object labels at reconcile time
	// and changes with the spec
	hashed := statefulset.WithTemplateHash(sset)
	assert.NotEmpty(t, hash.GetTemplateHashLabel(hashed.Labels))
	otherHash := statefulset.WithTemplateHash(BuildStatefulSet(node, "other-checksum"))
	assert.NotEqual(t, hash.GetTemplateHashLabel(hashed.Labels), hash.GetTemplateHashLabel(otherHash.Labels))

	require.Len(t, sset.Spec.VolumeClaimTemplates, 1)
	claim := sset.Spec.VolumeClaimTemplates[0]
	assert.Equal(t, DataVolumeName, claim.Name)
	assert.Equal(t, resource.MustParse(stellarv1alpha1.DefaultStorageSize),
		claim.Spec.Resources.Requests[corev1.ResourceStorage])
}

func TestBuildStatefulSet_Storage(t *testing.T) {
	node := testNode(stellarv1alpha1.NodeTypeValidator)
	node.Spec.Storage = &stellarv1alpha1.StorageConfig{
		StorageClass: "fast-ssd",
		Size:         resource.MustParse("250Gi"),
	}
	sset := BuildStatefulSet(node, "")

	require.Len(t, sset.Spec.VolumeClaimTemplates, 1)
	claim := sset.Spec.VolumeClaimTemplates[0]
	require.NotNil(t, claim.Spec.StorageClassName)
	assert.Equal(t, "fast-ssd", *claim.Spec.StorageClassName)
	assert.Equal(t, resource.MustParse("250Gi"), claim.Spec.Resources.Requests[corev1.ResourceStorage])
}

func TestBuildStatefulSet_Suspended(t *testing.T) {
	node := testNode(stellarv1alpha1.NodeTypeSorobanRpc)
	node.Spec.Replicas = ptr.To(int32(3))
	node.Spec.Suspended = true
	sset := BuildStatefulSet(node, "")
	require.NotNil(t, sset.Spec.Replicas)
	assert.Equal(t, int32(0), *sset.Spec.Replicas)
}

func TestBuildStatefulSet_CaptiveCoreSidecar(t *testing.T) {
	node := testNode(stellarv1alpha1.NodeTypeSorobanRpc)
	node.Spec.SorobanConfig.CaptiveCore = &stellarv1alpha1.CaptiveCoreConfig{}
	sset := BuildStatefulSet(node, "")

	require.Len(t, sset.Spec.Template.Spec.Containers, 2)
	sidecar := sset.Spec.Template.Spec.Containers[1]
	assert.Equal(t, stellarv1alpha1.CaptiveCoreContainerName, sidecar.Name)
	assert.Equal(t, stellarv1alpha1.DefaultCoreImage, sidecar.Image)
	require.Len(t, sidecar.Ports, 1)
	assert.Equal(t, int32(configuration.CoreHTTPPort), sidecar.Ports[0].ContainerPort)
}

func TestBuildDeployment(t *testing.T) {
	node := testNode(stellarv1alpha1.NodeTypeHorizon)
	node.Spec.Replicas = ptr.To(int32(2))
	dep := BuildDeployment(node, "checksum")

	assert.Equal(t, "stellar-test", dep.Name)
	assert.Equal(t, appsv1.RollingUpdateDeploymentStrategyType, dep.Spec.Strategy.Type)
	require.NotNil(t, dep.Spec.Replicas)
	assert.Equal(t, int32(2), *dep.Spec.Replicas)
	assert.Equal(t, "checksum", dep.Spec.Template.Annotations[ConfigChecksumAnnotationName])
	hashed := deployment.WithTemplateHash(dep)
	assert.NotEmpty(t, hash.GetTemplateHashLabel(hashed.Labels))
}

func TestBuildService(t *testing.T) {
	t.Run("validator exposes peer and http ports", func(t *testing.T) {
		svc := BuildService(testNode(stellarv1alpha1.NodeTypeValidator))
		assert.Equal(t, "stellar-test-service", svc.Name)
		require.Len(t, svc.Spec.Ports, 2)
		assert.Equal(t, "peer", svc.Spec.Ports[0].Name)
		assert.Equal(t, int32(11625), svc.Spec.Ports[0].Port)
		assert.Equal(t, "http", svc.Spec.Ports[1].Name)
		assert.Equal(t, int32(11626), svc.Spec.Ports[1].Port)
	})
	t.Run("horizon exposes the API port only", func(t *testing.T) {
		svc := BuildService(testNode(stellarv1alpha1.NodeTypeHorizon))
		require.Len(t, svc.Spec.Ports, 1)
		assert.Equal(t, int32(8000), svc.Spec.Ports[0].Port)
	})
}

func TestBuildConfigMap(t *testing.T) {
	node := testNode(stellarv1alpha1.NodeTypeValidator)
	cm, checksum, err := BuildConfigMap(node)
	require.NoError(t, err)

	assert.Equal(t, "stellar-test-config", cm.Name)
	assert.Contains(t, cm.Data, configuration.CoreConfigFileName)
	assert.NotEmpty(t, checksum)

	// same spec renders the same checksum, a different spec does not
	_, again, err := BuildConfigMap(node)
	require.NoError(t, err)
	assert.Equal(t, checksum, again)

	node.Spec.Network = stellarv1alpha1.NetworkMainnet
	_, other, err := BuildConfigMap(node)
	require.NoError(t, err)
	assert.NotEqual(t, checksum, other)
}

func TestBuildPodDisruptionBudget(t *testing.T) {
	node := testNode(stellarv1alpha1.NodeTypeHorizon)
	assert.False(t, WantsPodDisruptionBudget(node))

	node.Spec.MinAvailable = ptr.To(int32(1))
	require.True(t, WantsPodDisruptionBudget(node))
	pdb := BuildPodDisruptionBudget(node)
	assert.Equal(t, "stellar-test-pdb", pdb.Name)
	require.NotNil(t, pdb.Spec.MinAvailable)
	assert.Equal(t, int32(1), pdb.Spec.MinAvailable.IntVal)
	assert.Nil(t, pdb.Spec.MaxUnavailable)
	assert.Equal(t, node.GetPodSelectorLabels(), pdb.Spec.Selector.MatchLabels)

	node.Spec.MinAvailable = nil
	node.Spec.MaxUnavailable = ptr.To(int32(2))
	pdb = BuildPodDisruptionBudget(node)
	require.NotNil(t, pdb.Spec.MaxUnavailable)
	assert.Equal(t, int32(2), pdb.Spec.MaxUnavailable.IntVal)
	assert.Nil(t, pdb.Spec.MinAvailable)
}

// Child kind counts per node type: validators and soroban nodes are stateful,
// horizon is stateless.
func TestChildKinds(t *testing.T) {
	validator := BuildStatefulSet(testNode(stellarv1alpha1.NodeTypeValidator), "")
	assert.Len(t, validator.Spec.VolumeClaimTemplates, 1)

	soroban := BuildStatefulSet(testNode(stellarv1alpha1.NodeTypeSorobanRpc), "")
	assert.Len(t, soroban.Spec.VolumeClaimTemplates, 1)
}
