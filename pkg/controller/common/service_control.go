// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package common

import (
	"context"
	"net"
	"reflect"

	corev1 "k8s.io/api/core/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/stellar/node-operator/pkg/controller/common/reconciler"
	"github.com/stellar/node-operator/pkg/utils/k8s"
	"github.com/stellar/node-operator/pkg/utils/maps"
)

// ReconcileService ensures that the given Service exists with the given owner, creating it
// or updating it as necessary. Fields set by the API server or by other controllers
// (clusterIP, nodePorts, defaulted policies) are preserved on update.
func ReconcileService(
	ctx context.Context,
	c k8s.Client,
	expected *corev1.Service,
	owner client.Object,
) (*corev1.Service, error) {
	reconciled := &corev1.Service{}
	_, err := reconciler.ReconcileResource(reconciler.Params{
		Context:    ctx,
		Client:     c,
		Owner:      owner,
		Expected:   expected,
		Reconciled: reconciled,
		NeedsRecreate: func() bool {
			return needsRecreate(expected, reconciled)
		},
		NeedsUpdate: func() bool {
			return needsUpdate(expected, reconciled)
		},
		UpdateReconciled: func() {
			reconciled.Annotations = expected.Annotations
			reconciled.Labels = expected.Labels
			reconciled.Spec = expected.Spec
		},
	})
	return reconciled, err
}

func needsUpdate(expected *corev1.Service, reconciled *corev1.Service) bool {
	applyServerSideValues(expected, reconciled)

	// if the specs, labels, or annotations differ, the object should be updated
	return !reflect.DeepEqual(expected.Spec, reconciled.Spec) ||
		!maps.IsSubset(expected.Labels, reconciled.Labels) ||
		!maps.IsSubset(expected.Annotations, reconciled.Annotations)
}

// needsRecreate returns true when the existing service must be deleted and re-created
// because the expected modification is not allowed by the API server.
func needsRecreate(expected *corev1.Service, reconciled *corev1.Service) bool {
	applyServerSideValues(expected, reconciled)

	// ClusterIP is immutable: switching to or from a headless service requires a re-creation
	return expected.Spec.ClusterIP != reconciled.Spec.ClusterIP &&
		(expected.Spec.ClusterIP == corev1.ClusterIPNone || reconciled.Spec.ClusterIP == corev1.ClusterIPNone)
}

// applyServerSideValues applies any default that may have been set from the reconciled version
// as well as the value of any immutable field into the expected one, so that the comparison
// between the two does not report a spurious difference.
func applyServerSideValues(expected, reconciled *corev1.Service) {
	// Type may be defaulted by the API server
	if expected.Spec.Type == "" {
		expected.Spec.Type = reconciled.Spec.Type
	}

	// ClusterIP might not exist in the expected service, but might have been set after creation
	// by k8s on the actual resource. In such cases, we want to use these values for comparison.
	// But only if we are not changing the type of service and the api server has assigned an IP.
	if expected.Spec.Type == reconciled.Spec.Type && expected.Spec.ClusterIP == "" && net.ParseIP(reconciled.Spec.ClusterIP) != nil {
		expected.Spec.ClusterIP = reconciled.Spec.ClusterIP
	}
	if expected.Spec.Type == reconciled.Spec.Type && len(expected.Spec.ClusterIPs) == 0 && validClusterIPs(reconciled.Spec.ClusterIPs) {
		expected.Spec.ClusterIPs = reconciled.Spec.ClusterIPs
	}

	// SessionAffinity may be defaulted by the API server
	if expected.Spec.SessionAffinity == "" {
		expected.Spec.SessionAffinity = reconciled.Spec.SessionAffinity
	}

	// same for the target port and node port
	if len(expected.Spec.Ports) == len(reconciled.Spec.Ports) {
		for i := range expected.Spec.Ports {
			if expected.Spec.Ports[i].TargetPort.IntValue() == 0 {
				expected.Spec.Ports[i].TargetPort = reconciled.Spec.Ports[i].TargetPort
			}
			// check if NodePort makes sense for this service type
			if hasNodePort(expected.Spec.Type) && expected.Spec.Ports[i].NodePort == 0 {
				expected.Spec.Ports[i].NodePort = reconciled.Spec.Ports[i].NodePort
			}
		}
	}
	if expected.Spec.HealthCheckNodePort == 0 {
		expected.Spec.HealthCheckNodePort = reconciled.Spec.HealthCheckNodePort
	}

	// ExternalTrafficPolicy may be defaulted by the API server
	if expected.Spec.ExternalTrafficPolicy == "" {
		expected.Spec.ExternalTrafficPolicy = reconciled.Spec.ExternalTrafficPolicy
	}
	// InternalTrafficPolicy may be defaulted by the API server
	if expected.Spec.InternalTrafficPolicy == nil {
		expected.Spec.InternalTrafficPolicy = reconciled.Spec.InternalTrafficPolicy
	}

	// IPFamilies and IPFamilyPolicy may be defaulted by the API server
	if len(expected.Spec.IPFamilies) == 0 {
		expected.Spec.IPFamilies = reconciled.Spec.IPFamilies
	}
	if expected.Spec.IPFamilyPolicy == nil {
		expected.Spec.IPFamilyPolicy = reconciled.Spec.IPFamilyPolicy
	}
}

// validClusterIPs returns true if all given cluster IPs are valid IP addresses or the "None" placeholder.
func validClusterIPs(clusterIPs []string) bool {
	for _, ip := range clusterIPs {
		if ip != corev1.ClusterIPNone && net.ParseIP(ip) == nil {
			return false
		}
	}
	return len(clusterIPs) > 0
}

// hasNodePort returns true if the service type allocates node ports.
func hasNodePort(svcType corev1.ServiceType) bool {
	return svcType == corev1.ServiceTypeNodePort || svcType == corev1.ServiceTypeLoadBalancer
}
