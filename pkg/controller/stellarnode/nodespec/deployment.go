// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package nodespec

import (
	appsv1 "k8s.io/api/apps/v1"

	stellarv1alpha1 "github.com/stellar/node-operator/pkg/apis/stellarnode/v1alpha1"
	"github.com/stellar/node-operator/pkg/controller/common/deployment"
)

// BuildDeployment builds the stateless workload of a Horizon node.
func BuildDeployment(node stellarv1alpha1.StellarNode, configChecksum string) appsv1.Deployment {
	return deployment.New(deployment.Params{
		Name:            stellarv1alpha1.WorkloadName(node.Name),
		Namespace:       node.Namespace,
		Selector:        node.GetPodSelectorLabels(),
		Labels:          node.GetIdentityLabels(),
		PodTemplateSpec: BuildPodTemplate(node, configChecksum),
		Replicas:        EffectiveReplicas(node),
		Strategy:        appsv1.RollingUpdateDeploymentStrategyType,
	})
}
