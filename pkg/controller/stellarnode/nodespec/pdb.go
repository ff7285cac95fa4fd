// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package nodespec

import (
	policyv1 "k8s.io/api/policy/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"

	stellarv1alpha1 "github.com/stellar/node-operator/pkg/apis/stellarnode/v1alpha1"
)

// WantsPodDisruptionBudget returns true when the spec asks for a disruption budget.
func WantsPodDisruptionBudget(node stellarv1alpha1.StellarNode) bool {
	return node.Spec.MinAvailable != nil || node.Spec.MaxUnavailable != nil
}

// BuildPodDisruptionBudget builds the optional `{name}-pdb` child.
func BuildPodDisruptionBudget(node stellarv1alpha1.StellarNode) policyv1.PodDisruptionBudget {
	pdb := policyv1.PodDisruptionBudget{
		ObjectMeta: metav1.ObjectMeta{
			Name:      stellarv1alpha1.PodDisruptionBudgetName(node.Name),
			Namespace: node.Namespace,
			Labels:    node.GetIdentityLabels(),
		},
		Spec: policyv1.PodDisruptionBudgetSpec{
			Selector: &metav1.LabelSelector{
				MatchLabels: node.GetPodSelectorLabels(),
			},
		},
	}
	switch {
	case node.Spec.MinAvailable != nil:
		minAvailable := intstr.FromInt32(*node.Spec.MinAvailable)
		pdb.Spec.MinAvailable = &minAvailable
	case node.Spec.MaxUnavailable != nil:
		maxUnavailable := intstr.FromInt32(*node.Spec.MaxUnavailable)
		pdb.Spec.MaxUnavailable = &maxUnavailable
	}
	return pdb
}
