// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package nodespec

import (
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/utils/ptr"

	stellarv1alpha1 "github.com/stellar/node-operator/pkg/apis/stellarnode/v1alpha1"
	"github.com/stellar/node-operator/pkg/controller/common/defaults"
	"github.com/stellar/node-operator/pkg/controller/common/statefulset"
	"github.com/stellar/node-operator/pkg/controller/stellarnode/configuration"
)

// BuildStatefulSet builds the workload of a Validator or SorobanRpc node.
// Pods are created one by one (OrderedReady) so that a recovering node can
// catch up from its predecessor's history before the next one starts.
func BuildStatefulSet(node stellarv1alpha1.StellarNode, configChecksum string) appsv1.StatefulSet {
	podTemplate := BuildPodTemplate(node, configChecksum)
	if node.NodeTypeIsSoroban() {
		podTemplate = withCaptiveCoreSidecar(node, podTemplate)
	}

	return statefulset.New(statefulset.Params{
		Name:                 stellarv1alpha1.WorkloadName(node.Name),
		Namespace:            node.Namespace,
		ServiceName:          stellarv1alpha1.ServiceName(node.Name),
		Selector:             node.GetPodSelectorLabels(),
		Labels:               node.GetIdentityLabels(),
		PodTemplateSpec:      podTemplate,
		VolumeClaimTemplates: volumeClaimTemplates(node, podTemplate.Spec),
		Replicas:             EffectiveReplicas(node),
		PodManagementPolicy:  appsv1.OrderedReadyPodManagement,
		RevisionHistoryLimit: ptr.To(int32(10)),
	})
}

// EffectiveReplicas returns the replica count the workload should run with,
// honoring suspension.
func EffectiveReplicas(node stellarv1alpha1.StellarNode) int32 {
	if node.Spec.Suspended {
		return 0
	}
	return node.ReplicasOrDefault()
}

func volumeClaimTemplates(node stellarv1alpha1.StellarNode, podSpec corev1.PodSpec) []corev1.PersistentVolumeClaim {
	if !node.NeedsStorage() {
		return nil
	}
	storage := node.Spec.Storage
	if storage == nil {
		storage = &stellarv1alpha1.StorageConfig{}
	}
	claim := corev1.PersistentVolumeClaim{
		ObjectMeta: metav1.ObjectMeta{
			Name:   DataVolumeName,
			Labels: node.GetIdentityLabels(),
		},
		Spec: corev1.PersistentVolumeClaimSpec{
			AccessModes: []corev1.PersistentVolumeAccessMode{corev1.ReadWriteOnce},
			Resources: corev1.VolumeResourceRequirements{
				Requests: corev1.ResourceList{
					corev1.ResourceStorage: storageSize(storage),
				},
			},
		},
	}
	if storage.StorageClass != "" {
		claim.Spec.StorageClassName = &storage.StorageClass
	}
	return defaults.AppendDefaultPVCs(nil, podSpec, claim)
}

func storageSize(storage *stellarv1alpha1.StorageConfig) resource.Quantity {
	if storage.Size.IsZero() {
		return resource.MustParse(stellarv1alpha1.DefaultStorageSize)
	}
	return storage.Size
}

// withCaptiveCoreSidecar appends the captive stellar-core sidecar to SorobanRpc
// pods when configured.
func withCaptiveCoreSidecar(node stellarv1alpha1.StellarNode, podTemplate corev1.PodTemplateSpec) corev1.PodTemplateSpec {
	sc := node.Spec.SorobanConfig
	if sc == nil || sc.CaptiveCore == nil {
		return podTemplate
	}
	image := sc.CaptiveCore.Image
	if image == "" {
		image = stellarv1alpha1.DefaultCoreImage
	}
	sidecar := corev1.Container{
		Name:  stellarv1alpha1.CaptiveCoreContainerName,
		Image: image,
		Ports: []corev1.ContainerPort{
			{Name: "core-http", ContainerPort: configuration.CoreHTTPPort, Protocol: corev1.ProtocolTCP},
		},
		VolumeMounts: []corev1.VolumeMount{
			{Name: ConfigVolumeName, MountPath: configuration.ConfigMountPath, ReadOnly: true},
			{Name: DataVolumeName, MountPath: configuration.DataVolumeMountPath},
		},
	}
	podTemplate.Spec.Containers = append(podTemplate.Spec.Containers, sidecar)
	return podTemplate
}
