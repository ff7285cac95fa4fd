// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package nodespec

import (
	"testing"

	"github.com/go-test/deep"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"

	stellarv1alpha1 "github.com/stellar/node-operator/pkg/apis/stellarnode/v1alpha1"
)

func testNode(nodeType stellarv1alpha1.NodeType) stellarv1alpha1.StellarNode {
	node := stellarv1alpha1.StellarNode{
		ObjectMeta: metav1.ObjectMeta{
			Name:      "stellar-test",
			Namespace: "ns",
		},
		Spec: stellarv1alpha1.StellarNodeSpec{
			NodeType: nodeType,
			Network:  stellarv1alpha1.NetworkTestnet,
		},
	}
	switch nodeType {
	case stellarv1alpha1.NodeTypeValidator:
		node.Spec.ValidatorConfig = &stellarv1alpha1.ValidatorConfig{
			SeedSecretRef: "my-seed",
		}
	case stellarv1alpha1.NodeTypeHorizon:
		node.Spec.HorizonConfig = &stellarv1alpha1.HorizonConfig{
			DatabaseSecretRef: "horizon-db",
			StellarCoreUrl:    "http://core:11626",
		}
	case stellarv1alpha1.NodeTypeSorobanRpc:
		node.Spec.SorobanConfig = &stellarv1alpha1.SorobanConfig{
			StellarCoreUrl: "http://core:11626",
		}
	}
	return node
}

func mainContainer(t *testing.T, tpl corev1.PodTemplateSpec) corev1.Container {
	t.Helper()
	for _, c := range tpl.Spec.Containers {
		if c.Name == stellarv1alpha1.NodeContainerName {
			return c
		}
	}
	t.Fatalf("no %s container in pod template", stellarv1alpha1.NodeContainerName)
	return corev1.Container{}
}

func TestBuildPodTemplate(t *testing.T) {
	node := testNode(stellarv1alpha1.NodeTypeValidator)
	tpl := BuildPodTemplate(node, "abc123")

	assert.Equal(t, "abc123", tpl.Annotations[ConfigChecksumAnnotationName])
	assert.Equal(t, "stellar-test", tpl.Labels["stellar.org/node"])
	assert.Equal(t, "stellar-node", tpl.Labels["app.kubernetes.io/name"])
	require.NotNil(t, tpl.Spec.TerminationGracePeriodSeconds)
	assert.Equal(t, int64(120), *tpl.Spec.TerminationGracePeriodSeconds)

	c := mainContainer(t, tpl)
	assert.Equal(t, stellarv1alpha1.DefaultCoreImage, c.Image)
	require.Len(t, c.Ports, 2)
	assert.Equal(t, int32(11625), c.Ports[0].ContainerPort)
	assert.Equal(t, int32(11626), c.Ports[1].ContainerPort)
	require.NotNil(t, c.ReadinessProbe)
	require.NotNil(t, c.ReadinessProbe.HTTPGet)
	assert.Equal(t, "/info", c.ReadinessProbe.HTTPGet.Path)
}

func TestBuildPodTemplate_ImageResolution(t *testing.T) {
	for _, tt := range []struct {
		name    string
		version string
		want    string
	}{
		{
			name:    "defaults when version is empty",
			version: "",
			want:    stellarv1alpha1.DefaultCoreImage,
		},
		{
			name:    "bare tag resolves against the default repository",
			version: "v22.0.0",
			want:    "docker.io/stellar/stellar-core:v22.0.0",
		},
		{
			name:    "full reference is used verbatim",
			version: "registry.example.com/custom/core:v22.0.0",
			want:    "registry.example.com/custom/core:v22.0.0",
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			node := testNode(stellarv1alpha1.NodeTypeValidator)
			node.Spec.Version = tt.version
			c := mainContainer(t, BuildPodTemplate(node, ""))
			assert.Equal(t, tt.want, c.Image)
		})
	}
}

func TestBuildPodTemplate_Volumes(t *testing.T) {
	t.Run("validator mounts config, seed and data", func(t *testing.T) {
		node := testNode(stellarv1alpha1.NodeTypeValidator)
		tpl := BuildPodTemplate(node, "")
		c := mainContainer(t, tpl)

		mounts := map[string]string{}
		for _, m := range c.VolumeMounts {
			mounts[m.Name] = m.MountPath
		}
		assert.Equal(t, "/etc/stellar/config", mounts[ConfigVolumeName])
		assert.Equal(t, "/etc/stellar/seed", mounts[SeedVolumeName])
		assert.Equal(t, "/var/lib/stellar", mounts[DataVolumeName])

		// the data volume comes from the claim template, not the pod spec
		volumes := map[string]corev1.Volume{}
		for _, v := range tpl.Spec.Volumes {
			volumes[v.Name] = v
		}
		require.Contains(t, volumes, ConfigVolumeName)
		require.Contains(t, volumes, SeedVolumeName)
		assert.NotContains(t, volumes, DataVolumeName)
		assert.Equal(t, "my-seed", volumes[SeedVolumeName].Secret.SecretName)
	})

	t.Run("horizon has no seed or data volume", func(t *testing.T) {
		node := testNode(stellarv1alpha1.NodeTypeHorizon)
		tpl := BuildPodTemplate(node, "")
		c := mainContainer(t, tpl)
		for _, m := range c.VolumeMounts {
			assert.NotEqual(t, SeedVolumeName, m.Name)
			assert.NotEqual(t, DataVolumeName, m.Name)
		}
	})
}

func TestBuildPodTemplate_DatabaseEnv(t *testing.T) {
	node := testNode(stellarv1alpha1.NodeTypeHorizon)
	c := mainContainer(t, BuildPodTemplate(node, ""))

	var dbVar *corev1.EnvVar
	for i := range c.Env {
		if c.Env[i].Name == DatabaseURLEnvVar {
			dbVar = &c.Env[i]
		}
	}
	require.NotNil(t, dbVar)
	require.NotNil(t, dbVar.ValueFrom)
	require.NotNil(t, dbVar.ValueFrom.SecretKeyRef)
	assert.Equal(t, "horizon-db", dbVar.ValueFrom.SecretKeyRef.Name)
	assert.Equal(t, DatabaseSecretURLKey, dbVar.ValueFrom.SecretKeyRef.Key)
}

func TestBuildPodTemplate_ReadinessProbes(t *testing.T) {
	base := corev1.Probe{
		InitialDelaySeconds: 30,
		PeriodSeconds:       10,
		TimeoutSeconds:      5,
		FailureThreshold:    6,
	}
	for _, tt := range []struct {
		nodeType stellarv1alpha1.NodeType
		handler  corev1.ProbeHandler
	}{
		{
			nodeType: stellarv1alpha1.NodeTypeValidator,
			handler: corev1.ProbeHandler{
				HTTPGet: &corev1.HTTPGetAction{Path: "/info", Port: intstr.FromInt(11626)},
			},
		},
		{
			nodeType: stellarv1alpha1.NodeTypeHorizon,
			handler: corev1.ProbeHandler{
				HTTPGet: &corev1.HTTPGetAction{Path: "/health", Port: intstr.FromInt(8000)},
			},
		},
		{
			nodeType: stellarv1alpha1.NodeTypeSorobanRpc,
			handler: corev1.ProbeHandler{
				TCPSocket: &corev1.TCPSocketAction{Port: intstr.FromInt(8000)},
			},
		},
	} {
		t.Run(string(tt.nodeType), func(t *testing.T) {
			want := base
			want.ProbeHandler = tt.handler
			c := mainContainer(t, BuildPodTemplate(testNode(tt.nodeType), ""))
			require.NotNil(t, c.ReadinessProbe)
			if diff := deep.Equal(*c.ReadinessProbe, want); diff != nil {
				t.Error(diff)
			}
		})
	}
}

func TestBuildPodTemplate_MeshAnnotations(t *testing.T) {
	for _, tt := range []struct {
		name string
		mesh *stellarv1alpha1.ServiceMeshConfig
		want map[string]string
	}{
		{
			name: "no mesh",
			mesh: nil,
			want: map[string]string{},
		},
		{
			name: "istio injection",
			mesh: &stellarv1alpha1.ServiceMeshConfig{
				Istio:            &stellarv1alpha1.IstioMeshConfig{},
				SidecarInjection: true,
			},
			want: map[string]string{"sidecar.istio.io/inject": "true"},
		},
		{
			name: "linkerd injection with default policy",
			mesh: &stellarv1alpha1.ServiceMeshConfig{
				Linkerd:          &stellarv1alpha1.LinkerdMeshConfig{},
				SidecarInjection: true,
			},
			want: map[string]string{
				"linkerd.io/inject":                        "enabled",
				"config.linkerd.io/default-inbound-policy": "allow",
			},
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			node := testNode(stellarv1alpha1.NodeTypeHorizon)
			node.Spec.ServiceMesh = tt.mesh
			tpl := BuildPodTemplate(node, "")
			for k, v := range tt.want {
				assert.Equal(t, v, tpl.Annotations[k])
			}
		})
	}
}
