// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

// Package mesh generates and reconciles service mesh policy objects for a
// StellarNode. Istio policies are materialized as unstructured children,
// Linkerd is driven entirely through pod annotations.
package mesh

import (
	"context"
	"reflect"

	"github.com/hashicorp/go-multierror"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	stellarv1alpha1 "github.com/stellar/node-operator/pkg/apis/stellarnode/v1alpha1"
	"github.com/stellar/node-operator/pkg/controller/common/reconciler"
	"github.com/stellar/node-operator/pkg/utils/k8s"
	ulog "github.com/stellar/node-operator/pkg/utils/log"
)

// Resources returns the desired mesh policy objects for the node, in apply
// order. Only Istio produces objects.
func Resources(node stellarv1alpha1.StellarNode) []*unstructured.Unstructured {
	mesh := node.Spec.ServiceMesh
	if mesh.Provider() != stellarv1alpha1.MeshProviderIstio {
		return nil
	}
	istio := mesh.Istio
	return []*unstructured.Unstructured{
		buildPeerAuthentication(node, istio),
		buildDestinationRule(node, istio),
		buildVirtualService(node, istio),
		buildRequestAuthentication(node),
	}
}

// Ensure reconciles the mesh policy objects of the node. It must only be
// called once the compute children exist and the node probes healthy. When the
// configured mesh produces no policy objects (Linkerd, or serviceMesh removed
// from the spec), leftovers from a previous configuration are deleted.
func Ensure(ctx context.Context, c k8s.Client, node stellarv1alpha1.StellarNode) error {
	expectedResources := Resources(node)
	if len(expectedResources) == 0 {
		return Delete(ctx, c, node)
	}
	for _, expected := range expectedResources {
		reconciled := &unstructured.Unstructured{}
		reconciled.SetGroupVersionKind(expected.GroupVersionKind())
		if _, err := reconciler.ReconcileResource(reconciler.Params{
			Context:    ctx,
			Client:     c,
			Owner:      &node,
			Expected:   expected,
			Reconciled: reconciled,
			NeedsUpdate: func() bool {
				return !reflect.DeepEqual(expected.Object["spec"], reconciled.Object["spec"])
			},
			UpdateReconciled: func() {
				reconciled.Object["spec"] = expected.Object["spec"]
				reconciled.SetLabels(expected.GetLabels())
			},
		}); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes all mesh policy objects of the node. Best effort: individual
// failures are aggregated but do not stop the remaining deletions, missing
// CRDs and missing objects are not errors.
func Delete(ctx context.Context, c k8s.Client, node stellarv1alpha1.StellarNode) error {
	log := ulog.FromContext(ctx)
	var errs *multierror.Error
	for _, obj := range allPolicyObjects(node) {
		err := c.Delete(ctx, obj)
		if err == nil || apierrors.IsNotFound(err) || meta.IsNoMatchError(err) {
			continue
		}
		log.Error(err, "Failed to delete mesh policy, continuing",
			"namespace", obj.GetNamespace(), "name", obj.GetName(), "kind", obj.GetKind())
		errs = multierror.Append(errs, err)
	}
	return errs.ErrorOrNil()
}

// allPolicyObjects returns stubs of every policy object the operator may have
// created for the node, regardless of the current mesh configuration, so that
// a provider change or removal cleans up stale objects.
func allPolicyObjects(node stellarv1alpha1.StellarNode) []*unstructured.Unstructured {
	return []*unstructured.Unstructured{
		newIstioObject(PeerAuthenticationGVK, node, stellarv1alpha1.PeerAuthenticationName(node.Name), nil),
		newIstioObject(DestinationRuleGVK, node, stellarv1alpha1.DestinationRuleName(node.Name), nil),
		newIstioObject(VirtualServiceGVK, node, stellarv1alpha1.VirtualServiceName(node.Name), nil),
		newIstioObject(RequestAuthenticationGVK, node, stellarv1alpha1.RequestAuthenticationName(node.Name), nil),
	}
}
