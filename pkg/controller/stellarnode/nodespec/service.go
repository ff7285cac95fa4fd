// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package nodespec

import (
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"

	stellarv1alpha1 "github.com/stellar/node-operator/pkg/apis/stellarnode/v1alpha1"
	"github.com/stellar/node-operator/pkg/controller/stellarnode/configuration"
)

// BuildService builds the stable network Service in front of the node pods.
func BuildService(node stellarv1alpha1.StellarNode) corev1.Service {
	return corev1.Service{
		ObjectMeta: metav1.ObjectMeta{
			Name:      stellarv1alpha1.ServiceName(node.Name),
			Namespace: node.Namespace,
			Labels:    node.GetIdentityLabels(),
		},
		Spec: corev1.ServiceSpec{
			Type:     corev1.ServiceTypeClusterIP,
			Selector: node.GetPodSelectorLabels(),
			Ports:    servicePorts(node),
		},
	}
}

// APIPort returns the port the node's HTTP API is served on, which is also the
// port health probes target.
func APIPort(node stellarv1alpha1.StellarNode) int32 {
	switch node.Spec.NodeType {
	case stellarv1alpha1.NodeTypeValidator:
		return configuration.CoreHTTPPort
	case stellarv1alpha1.NodeTypeHorizon:
		return configuration.HorizonHTTPPort
	default:
		return configuration.SorobanHTTPPort
	}
}

func servicePorts(node stellarv1alpha1.StellarNode) []corev1.ServicePort {
	httpPort := corev1.ServicePort{
		Name:       "http",
		Protocol:   corev1.ProtocolTCP,
		Port:       APIPort(node),
		TargetPort: intstr.FromString("http"),
	}
	if node.Spec.NodeType == stellarv1alpha1.NodeTypeValidator {
		return []corev1.ServicePort{
			{
				Name:       "peer",
				Protocol:   corev1.ProtocolTCP,
				Port:       configuration.CorePeerPort,
				TargetPort: intstr.FromString("peer"),
			},
			httpPort,
		}
	}
	return []corev1.ServicePort{httpPort}
}
