// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

// Package nodespec builds the child resources of a StellarNode. All builders
// are pure functions of the node spec and never read live cluster state.
package nodespec

import (
	"strings"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/util/intstr"

	stellarv1alpha1 "github.com/stellar/node-operator/pkg/apis/stellarnode/v1alpha1"
	"github.com/stellar/node-operator/pkg/controller/common/container"
	"github.com/stellar/node-operator/pkg/controller/common/defaults"
	"github.com/stellar/node-operator/pkg/controller/common/volume"
	"github.com/stellar/node-operator/pkg/controller/stellarnode/configuration"
	"github.com/stellar/node-operator/pkg/controller/stellarnode/mesh"
	"github.com/stellar/node-operator/pkg/controller/stellarnode/vaultsecret"
)

const (
	// ConfigChecksumAnnotationName is set on pod templates so that pods roll
	// when the rendered configuration changes.
	ConfigChecksumAnnotationName = "stellar.org/config-checksum"

	// DataVolumeName is the name of the persistent data volume and claim template.
	DataVolumeName = "data"
	// ConfigVolumeName is the name of the mounted configuration volume.
	ConfigVolumeName = "config"
	// SeedVolumeName is the name of the mounted seed Secret volume of a Validator.
	SeedVolumeName = "seed"

	// SeedMountPath is where the seed Secret is mounted in Validator pods.
	SeedMountPath = "/etc/stellar/seed"

	// DatabaseURLEnvVar carries the database connection string of Horizon and
	// Soroban pods, read from the referenced Secret.
	DatabaseURLEnvVar = "DATABASE_URL"
	// DatabaseSecretURLKey is the Secret key holding the connection string.
	DatabaseSecretURLKey = "url"
)

// BuildPodTemplate builds the pod template shared by the StatefulSet and
// Deployment builders. configChecksum is a hash of the rendered configuration,
// annotated on the template so that config changes roll the pods.
func BuildPodTemplate(node stellarv1alpha1.StellarNode, configChecksum string) corev1.PodTemplateSpec {
	builder := defaults.NewPodTemplateBuilder(corev1.PodTemplateSpec{}, stellarv1alpha1.NodeContainerName).
		WithLabels(node.GetPodLabels()).
		WithAnnotations(podAnnotations(node, configChecksum)).
		WithDockerImage(resolveImage(node), "").
		WithResources(resourcesFor(node)).
		WithPorts(containerPorts(node)).
		WithReadinessProbe(readinessProbe(node)).
		WithVolumeLikes(podVolumes(node)...).
		WithEnv(nodeEnv(node)...).
		WithTerminationGracePeriod(120)

	if node.NeedsStorage() {
		// the volume itself is created by the StatefulSet controller from the
		// claim template of the same name
		builder.WithVolumeMounts(corev1.VolumeMount{
			Name:      DataVolumeName,
			MountPath: configuration.DataVolumeMountPath,
		})
	}

	return builder.PodTemplate
}

func podAnnotations(node stellarv1alpha1.StellarNode, configChecksum string) map[string]string {
	annotations := mesh.PodAnnotations(node)
	annotations[ConfigChecksumAnnotationName] = configChecksum
	return annotations
}

// resolveImage returns the container image of the main container. A bare tag
// is resolved against the default image repository for the node type.
func resolveImage(node stellarv1alpha1.StellarNode) string {
	version := node.Spec.Version
	if version == "" {
		return stellarv1alpha1.DefaultImageFor(node.Spec.NodeType)
	}
	if strings.ContainsAny(version, "/@") {
		// full image reference, use verbatim
		return version
	}
	return container.ImageRepository(imageFor(node.Spec.NodeType), version)
}

func imageFor(nodeType stellarv1alpha1.NodeType) container.Image {
	switch nodeType {
	case stellarv1alpha1.NodeTypeHorizon:
		return container.HorizonImage
	case stellarv1alpha1.NodeTypeSorobanRpc:
		return container.SorobanRpcImage
	default:
		return container.StellarCoreImage
	}
}

func resourcesFor(node stellarv1alpha1.StellarNode) corev1.ResourceRequirements {
	if node.Spec.Resources != nil {
		return *node.Spec.Resources
	}
	return stellarv1alpha1.DefaultResourcesFor(node.Spec.NodeType, node.Spec.Network)
}

func containerPorts(node stellarv1alpha1.StellarNode) []corev1.ContainerPort {
	switch node.Spec.NodeType {
	case stellarv1alpha1.NodeTypeValidator:
		return []corev1.ContainerPort{
			{Name: "peer", ContainerPort: configuration.CorePeerPort, Protocol: corev1.ProtocolTCP},
			{Name: "http", ContainerPort: configuration.CoreHTTPPort, Protocol: corev1.ProtocolTCP},
		}
	case stellarv1alpha1.NodeTypeHorizon:
		return []corev1.ContainerPort{
			{Name: "http", ContainerPort: configuration.HorizonHTTPPort, Protocol: corev1.ProtocolTCP},
		}
	default:
		return []corev1.ContainerPort{
			{Name: "http", ContainerPort: configuration.SorobanHTTPPort, Protocol: corev1.ProtocolTCP},
		}
	}
}

func readinessProbe(node stellarv1alpha1.StellarNode) corev1.Probe {
	probe := corev1.Probe{
		InitialDelaySeconds: 30,
		PeriodSeconds:       10,
		TimeoutSeconds:      5,
		FailureThreshold:    6,
	}
	switch node.Spec.NodeType {
	case stellarv1alpha1.NodeTypeValidator:
		probe.HTTPGet = &corev1.HTTPGetAction{
			Path: "/info",
			Port: intstr.FromInt(configuration.CoreHTTPPort),
		}
	case stellarv1alpha1.NodeTypeHorizon:
		probe.HTTPGet = &corev1.HTTPGetAction{
			Path: "/health",
			Port: intstr.FromInt(configuration.HorizonHTTPPort),
		}
	default:
		// soroban-rpc health is JSON-RPC only, a socket check must do
		probe.TCPSocket = &corev1.TCPSocketAction{
			Port: intstr.FromInt(configuration.SorobanHTTPPort),
		}
	}
	return probe
}

func podVolumes(node stellarv1alpha1.StellarNode) []volume.VolumeLike {
	volumes := []volume.VolumeLike{
		volume.NewConfigMapVolume(
			stellarv1alpha1.ConfigMapName(node.Name),
			ConfigVolumeName,
			configuration.ConfigMountPath,
		),
	}
	if node.Spec.NodeType == stellarv1alpha1.NodeTypeValidator {
		volumes = append(volumes, volume.NewSecretVolumeWithMountPath(
			vaultsecret.SeedSecretNameFor(node),
			SeedVolumeName,
			SeedMountPath,
		))
	}
	return volumes
}

func nodeEnv(node stellarv1alpha1.StellarNode) []corev1.EnvVar {
	var vars []corev1.EnvVar
	databaseSecret := ""
	switch node.Spec.NodeType {
	case stellarv1alpha1.NodeTypeHorizon:
		if node.Spec.HorizonConfig != nil {
			databaseSecret = node.Spec.HorizonConfig.DatabaseSecretRef
		}
	case stellarv1alpha1.NodeTypeSorobanRpc:
		if node.Spec.SorobanConfig != nil {
			databaseSecret = node.Spec.SorobanConfig.DatabaseSecretRef
		}
	}
	if databaseSecret != "" {
		vars = append(vars, corev1.EnvVar{
			Name: DatabaseURLEnvVar,
			ValueFrom: &corev1.EnvVarSource{
				SecretKeyRef: &corev1.SecretKeySelector{
					LocalObjectReference: corev1.LocalObjectReference{Name: databaseSecret},
					Key:                  DatabaseSecretURLKey,
				},
			},
		})
	}
	return defaults.ExtendPodDownwardEnvVars(vars...)
}
