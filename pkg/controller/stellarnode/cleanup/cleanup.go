// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

// Package cleanup tears down the children of a StellarNode being deleted, in
// the order that keeps data safe: policies first, then the serving surface,
// then compute, then storage per retention policy, configuration last.
package cleanup

import (
	"context"
	"time"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	policyv1 "k8s.io/api/policy/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/tools/record"
	"sigs.k8s.io/controller-runtime/pkg/client"

	stellarv1alpha1 "github.com/stellar/node-operator/pkg/apis/stellarnode/v1alpha1"
	"github.com/stellar/node-operator/pkg/controller/common/events"
	"github.com/stellar/node-operator/pkg/controller/stellarnode/mesh"
	"github.com/stellar/node-operator/pkg/utils/k8s"
	ulog "github.com/stellar/node-operator/pkg/utils/log"
)

// Run executes one pass of the ordered teardown. It returns true once no
// owned child remains (retained claims excepted) and the finalizer can go.
func Run(ctx context.Context, c k8s.Client, recorder record.EventRecorder, node stellarv1alpha1.StellarNode) (bool, error) {
	log := ulog.FromContext(ctx)

	// mesh policies are best-effort: pods may outlive the policies safely,
	// and a missing Istio installation must not wedge the deletion
	if err := mesh.Delete(ctx, c, node); err != nil {
		log.Error(err, "Failed to delete mesh policies, continuing teardown",
			"namespace", node.Namespace, "node_name", node.Name)
	}

	if err := deleteChild(ctx, c, &corev1.Service{}, node.Namespace, stellarv1alpha1.ServiceName(node.Name)); err != nil {
		return false, err
	}
	if err := deleteWorkload(ctx, c, node); err != nil {
		return false, err
	}
	if err := deleteChild(ctx, c, &policyv1.PodDisruptionBudget{}, node.Namespace, stellarv1alpha1.PodDisruptionBudgetName(node.Name)); err != nil {
		return false, err
	}
	if err := handleClaims(ctx, c, recorder, node); err != nil {
		return false, err
	}
	if err := deleteChild(ctx, c, &corev1.ConfigMap{}, node.Namespace, stellarv1alpha1.ConfigMapName(node.Name)); err != nil {
		return false, err
	}
	if err := deleteChild(ctx, c, &corev1.Secret{}, node.Namespace, stellarv1alpha1.SeedSecretName(node.Name)); err != nil {
		return false, err
	}

	return verifyChildrenGone(ctx, c, node)
}

func deleteWorkload(ctx context.Context, c k8s.Client, node stellarv1alpha1.StellarNode) error {
	name := stellarv1alpha1.WorkloadName(node.Name)
	if node.Spec.NodeType == stellarv1alpha1.NodeTypeHorizon {
		return deleteChild(ctx, c, &appsv1.Deployment{}, node.Namespace, name)
	}
	return deleteChild(ctx, c, &appsv1.StatefulSet{}, node.Namespace, name)
}

// handleClaims deletes or retains the data claims left behind by the workload,
// per the spec's retention policy. Retained claims are annotated so operators
// can tell deliberate orphans from leaks.
func handleClaims(ctx context.Context, c k8s.Client, recorder record.EventRecorder, node stellarv1alpha1.StellarNode) error {
	if !node.NeedsStorage() {
		return nil
	}
	claims, err := ownedClaims(ctx, c, node)
	if err != nil {
		return err
	}

	retain := true
	if node.Spec.Storage != nil && node.Spec.Storage.RetentionPolicy == stellarv1alpha1.RetentionPolicyDelete {
		retain = false
	}

	for i := range claims.Items {
		claim := claims.Items[i]
		if !retain {
			if err := c.Delete(ctx, &claim); err != nil && !apierrors.IsNotFound(err) {
				return err
			}
			continue
		}
		if claim.Annotations[stellarv1alpha1.RetainedAnnotation] == "true" {
			continue
		}
		if claim.Annotations == nil {
			claim.Annotations = map[string]string{}
		}
		claim.Annotations[stellarv1alpha1.RetainedAnnotation] = "true"
		claim.Annotations[stellarv1alpha1.RetainedAtAnnotation] = time.Now().UTC().Format(time.RFC3339)
		if err := c.Update(ctx, &claim); err != nil {
			return err
		}
		recorder.Event(&node, corev1.EventTypeNormal, events.EventReasonRetained,
			"Retained storage claim "+claim.Name+" per retention policy")
	}
	return nil
}

func ownedClaims(ctx context.Context, c k8s.Client, node stellarv1alpha1.StellarNode) (corev1.PersistentVolumeClaimList, error) {
	var claims corev1.PersistentVolumeClaimList
	// claims inherit the identity labels of the claim template
	err := c.List(ctx, &claims,
		client.InNamespace(node.Namespace),
		client.MatchingLabels(map[string]string{stellarv1alpha1.NodeNameLabelName: node.Name}),
	)
	return claims, err
}

func deleteChild(ctx context.Context, c k8s.Client, obj client.Object, namespace, name string) error {
	obj.SetNamespace(namespace)
	obj.SetName(name)
	err := c.Delete(ctx, obj)
	if err != nil && !apierrors.IsNotFound(err) {
		return err
	}
	return nil
}

// verifyChildrenGone returns true when no owned child remains in the API,
// retained claims excepted.
func verifyChildrenGone(ctx context.Context, c k8s.Client, node stellarv1alpha1.StellarNode) (bool, error) {
	workloadName := stellarv1alpha1.WorkloadName(node.Name)
	checks := []struct {
		obj  client.Object
		name string
	}{
		{&corev1.Service{}, stellarv1alpha1.ServiceName(node.Name)},
		{&appsv1.StatefulSet{}, workloadName},
		{&appsv1.Deployment{}, workloadName},
		{&policyv1.PodDisruptionBudget{}, stellarv1alpha1.PodDisruptionBudgetName(node.Name)},
		{&corev1.ConfigMap{}, stellarv1alpha1.ConfigMapName(node.Name)},
		{&corev1.Secret{}, stellarv1alpha1.SeedSecretName(node.Name)},
	}
	for _, check := range checks {
		err := c.Get(ctx, types.NamespacedName{Namespace: node.Namespace, Name: check.name}, check.obj)
		if err == nil {
			return false, nil
		}
		if !apierrors.IsNotFound(err) {
			return false, err
		}
	}

	if node.Spec.Storage != nil && node.Spec.Storage.RetentionPolicy == stellarv1alpha1.RetentionPolicyDelete {
		claims, err := ownedClaims(ctx, c, node)
		if err != nil {
			return false, err
		}
		for _, claim := range claims.Items {
			if claim.DeletionTimestamp.IsZero() {
				return false, nil
			}
		}
	}
	return true, nil
}
