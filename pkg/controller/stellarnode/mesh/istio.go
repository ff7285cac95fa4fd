// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package mesh

import (
	"fmt"
	"strconv"
	"strings"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"

	stellarv1alpha1 "github.com/stellar/node-operator/pkg/apis/stellarnode/v1alpha1"
)

// GroupVersionKinds of the generated Istio policy objects. The objects are
// built as unstructured so the operator does not depend on Istio being
// installed, or on a particular Istio client version.
var (
	PeerAuthenticationGVK = schema.GroupVersionKind{
		Group: "security.istio.io", Version: "v1beta1", Kind: "PeerAuthentication",
	}
	RequestAuthenticationGVK = schema.GroupVersionKind{
		Group: "security.istio.io", Version: "v1beta1", Kind: "RequestAuthentication",
	}
	DestinationRuleGVK = schema.GroupVersionKind{
		Group: "networking.istio.io", Version: "v1beta1", Kind: "DestinationRule",
	}
	VirtualServiceGVK = schema.GroupVersionKind{
		Group: "networking.istio.io", Version: "v1beta1", Kind: "VirtualService",
	}
)

const defaultRequestTimeoutSecs = 30

func newIstioObject(gvk schema.GroupVersionKind, node stellarv1alpha1.StellarNode, name string, spec map[string]interface{}) *unstructured.Unstructured {
	obj := &unstructured.Unstructured{}
	obj.SetGroupVersionKind(gvk)
	obj.SetName(name)
	obj.SetNamespace(node.Namespace)
	obj.SetLabels(node.GetIdentityLabels())
	if spec != nil {
		obj.Object["spec"] = spec
	}
	return obj
}

func workloadSelector(node stellarv1alpha1.StellarNode) map[string]interface{} {
	matchLabels := map[string]interface{}{}
	for k, v := range node.GetPodSelectorLabels() {
		matchLabels[k] = v
	}
	return map[string]interface{}{"matchLabels": matchLabels}
}

func serviceHost(node stellarv1alpha1.StellarNode) string {
	return fmt.Sprintf("%s.%s.svc", stellarv1alpha1.ServiceName(node.Name), node.Namespace)
}

// buildPeerAuthentication enforces the configured mTLS mode on node pods.
func buildPeerAuthentication(node stellarv1alpha1.StellarNode, istio *stellarv1alpha1.IstioMeshConfig) *unstructured.Unstructured {
	return newIstioObject(PeerAuthenticationGVK, node, stellarv1alpha1.PeerAuthenticationName(node.Name),
		map[string]interface{}{
			"selector": workloadSelector(node),
			"mtls": map[string]interface{}{
				"mode": string(istio.EffectiveMtlsMode()),
			},
		})
}

// buildRequestAuthentication pins request-level authentication to the node
// workload. No JWT issuers are configured, which makes unauthenticated
// requests explicit in Istio telemetry without rejecting them.
func buildRequestAuthentication(node stellarv1alpha1.StellarNode) *unstructured.Unstructured {
	return newIstioObject(RequestAuthenticationGVK, node, stellarv1alpha1.RequestAuthenticationName(node.Name),
		map[string]interface{}{
			"selector": workloadSelector(node),
			"jwtRules": []interface{}{},
		})
}

// buildDestinationRule renders the circuit breaker configuration into an
// outlier detection block on the node service.
func buildDestinationRule(node stellarv1alpha1.StellarNode, istio *stellarv1alpha1.IstioMeshConfig) *unstructured.Unstructured {
	spec := map[string]interface{}{
		"host": serviceHost(node),
	}
	if cb := istio.CircuitBreaker; cb != nil {
		outlierDetection := map[string]interface{}{
			"consecutive5xxErrors": int64(cb.ConsecutiveErrors),
			"interval":             fmt.Sprintf("%ds", cb.TimeWindowSecs),
			"baseEjectionTime":     fmt.Sprintf("%ds", cb.BaseEjectionSecs),
		}
		if cb.MinRequestVolume > 0 {
			outlierDetection["minRequestVolume"] = int64(cb.MinRequestVolume)
		}
		if cb.MaxEjectionPercent > 0 {
			outlierDetection["maxEjectionPercent"] = int64(cb.MaxEjectionPercent)
		}
		spec["trafficPolicy"] = map[string]interface{}{
			"outlierDetection": outlierDetection,
		}
	}
	return newIstioObject(DestinationRuleGVK, node, stellarv1alpha1.DestinationRuleName(node.Name), spec)
}

// buildVirtualService renders request timeouts and the retry policy.
func buildVirtualService(node stellarv1alpha1.StellarNode, istio *stellarv1alpha1.IstioMeshConfig) *unstructured.Unstructured {
	timeoutSecs := istio.TimeoutSecs
	if timeoutSecs == 0 {
		timeoutSecs = defaultRequestTimeoutSecs
	}
	route := map[string]interface{}{
		"route": []interface{}{
			map[string]interface{}{
				"destination": map[string]interface{}{"host": serviceHost(node)},
			},
		},
		"timeout": fmt.Sprintf("%ds", timeoutSecs),
	}
	if r := istio.Retries; r != nil {
		retries := map[string]interface{}{
			"attempts": int64(r.MaxRetries),
		}
		if r.BackoffMs > 0 {
			retries["perTryTimeout"] = fmt.Sprintf("%dms", r.BackoffMs)
		}
		if len(r.RetryableStatusCodes) > 0 {
			// status codes can be listed directly in retryOn
			codes := make([]string, 0, len(r.RetryableStatusCodes))
			for _, code := range r.RetryableStatusCodes {
				codes = append(codes, strconv.Itoa(int(code)))
			}
			retries["retryOn"] = strings.Join(codes, ",")
		}
		route["retries"] = retries
	}
	return newIstioObject(VirtualServiceGVK, node, stellarv1alpha1.VirtualServiceName(node.Name),
		map[string]interface{}{
			"hosts": []interface{}{serviceHost(node)},
			"http":  []interface{}{route},
		})
}
