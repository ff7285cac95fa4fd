// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package mesh

import (
	stellarv1alpha1 "github.com/stellar/node-operator/pkg/apis/stellarnode/v1alpha1"
)

const (
	istioInjectAnnotation   = "sidecar.istio.io/inject"
	linkerdInjectAnnotation = "linkerd.io/inject"
	linkerdPolicyAnnotation = "config.linkerd.io/default-inbound-policy"

	defaultLinkerdPolicyMode = "allow"
)

// PodAnnotations returns the mesh annotations to stamp on node pods. Istio and
// Linkerd sidecar injection is annotation-driven, Linkerd additionally carries
// its inbound policy on the pod.
func PodAnnotations(node stellarv1alpha1.StellarNode) map[string]string {
	mesh := node.Spec.ServiceMesh
	annotations := map[string]string{}
	switch mesh.Provider() {
	case stellarv1alpha1.MeshProviderIstio:
		if mesh.SidecarInjection {
			annotations[istioInjectAnnotation] = "true"
		}
	case stellarv1alpha1.MeshProviderLinkerd:
		if mesh.SidecarInjection {
			annotations[linkerdInjectAnnotation] = "enabled"
		}
		policyMode := mesh.Linkerd.PolicyMode
		if policyMode == "" {
			policyMode = defaultLinkerdPolicyMode
		}
		annotations[linkerdPolicyAnnotation] = policyMode
	}
	return annotations
}
