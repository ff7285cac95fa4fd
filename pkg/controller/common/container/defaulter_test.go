// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package container

import (
	"testing"

	"github.com/stretchr/testify/assert"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
)

func TestDefaulter_WithImage(t *testing.T) {
	c := corev1.Container{}
	NewDefaulter(&c).WithImage("stellar/stellar-core:v21.3.0")
	assert.Equal(t, "stellar/stellar-core:v21.3.0", c.Image)

	// a user-provided image is not overridden
	NewDefaulter(&c).WithImage("stellar/stellar-core:v22.0.0")
	assert.Equal(t, "stellar/stellar-core:v21.3.0", c.Image)
}

func TestDefaulter_WithNewEnv(t *testing.T) {
	c := corev1.Container{Env: []corev1.EnvVar{{Name: "DATABASE", Value: "user-provided"}}}
	_, allNew := NewDefaulter(&c).WithNewEnv([]corev1.EnvVar{
		{Name: "DATABASE", Value: "default"},
		{Name: "NETWORK_PASSPHRASE", Value: "Test SDF Network ; September 2015"},
	})
	assert.False(t, allNew)
	assert.Equal(t, []corev1.EnvVar{
		{Name: "DATABASE", Value: "user-provided"},
		{Name: "NETWORK_PASSPHRASE", Value: "Test SDF Network ; September 2015"},
	}, c.Env)
}

func TestDefaulter_WithPorts(t *testing.T) {
	c := corev1.Container{Ports: []corev1.ContainerPort{{Name: "peer", ContainerPort: 11625}}}
	NewDefaulter(&c).WithPorts([]corev1.ContainerPort{
		{Name: "peer", ContainerPort: 12625},
		{Name: "http", ContainerPort: 11626},
	})
	// existing port kept, new port added, sorted by name
	assert.Equal(t, []corev1.ContainerPort{
		{Name: "http", ContainerPort: 11626},
		{Name: "peer", ContainerPort: 11625},
	}, c.Ports)
}

func TestDefaulter_WithVolumeMounts(t *testing.T) {
	c := corev1.Container{VolumeMounts: []corev1.VolumeMount{{Name: "data", MountPath: "/var/lib/stellar"}}}
	NewDefaulter(&c).WithVolumeMounts([]corev1.VolumeMount{
		{Name: "other-data", MountPath: "/var/lib/stellar"}, // conflicting mount path
		{Name: "config", MountPath: "/etc/stellar"},
	})
	assert.Equal(t, []corev1.VolumeMount{
		{Name: "config", MountPath: "/etc/stellar"},
		{Name: "data", MountPath: "/var/lib/stellar"},
	}, c.VolumeMounts)
}

func TestDefaulter_WithResources(t *testing.T) {
	defaults := corev1.ResourceRequirements{
		Requests: corev1.ResourceList{corev1.ResourceMemory: resource.MustParse("2Gi")},
	}

	c := corev1.Container{}
	NewDefaulter(&c).WithResources(defaults)
	assert.Equal(t, defaults, c.Resources)

	// an empty map means the user wants no defaults (e.g. to rely on a LimitRange)
	c = corev1.Container{Resources: corev1.ResourceRequirements{Limits: corev1.ResourceList{}}}
	NewDefaulter(&c).WithResources(defaults)
	assert.Empty(t, c.Resources.Requests)
}

func TestDefaulter_From(t *testing.T) {
	user := corev1.Container{
		Name:    "stellar-core",
		Command: []string{"/custom-entrypoint"},
	}
	built := corev1.Container{
		Name:           "stellar-core",
		Image:          "stellar/stellar-core:v21.3.0",
		Command:        []string{"stellar-core", "run"},
		ReadinessProbe: &corev1.Probe{},
		Lifecycle: &corev1.Lifecycle{
			PreStop: &corev1.LifecycleHandler{Exec: &corev1.ExecAction{Command: []string{"sleep", "5"}}},
		},
	}

	merged := NewDefaulter(user.DeepCopy()).From(built).Container()
	// user values win, the rest is inherited
	assert.Equal(t, []string{"/custom-entrypoint"}, merged.Command)
	assert.Equal(t, built.Image, merged.Image)
	assert.Equal(t, built.ReadinessProbe, merged.ReadinessProbe)
	assert.Equal(t, built.Lifecycle.PreStop, merged.Lifecycle.PreStop)
}
