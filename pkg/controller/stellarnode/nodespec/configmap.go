// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package nodespec

import (
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	stellarv1alpha1 "github.com/stellar/node-operator/pkg/apis/stellarnode/v1alpha1"
	"github.com/stellar/node-operator/pkg/controller/common/hash"
	"github.com/stellar/node-operator/pkg/controller/stellarnode/configuration"
)

// BuildConfigMap renders the node configuration files into the `{name}-config`
// ConfigMap. The returned checksum covers all rendered files and is annotated
// on the pod template so configuration changes roll the pods.
func BuildConfigMap(node stellarv1alpha1.StellarNode) (corev1.ConfigMap, string, error) {
	data, err := configuration.RenderConfigData(node)
	if err != nil {
		return corev1.ConfigMap{}, "", err
	}
	return corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{
			Name:      stellarv1alpha1.ConfigMapName(node.Name),
			Namespace: node.Namespace,
			Labels:    node.GetIdentityLabels(),
		},
		Data: data,
	}, hash.HashObject(data), nil
}
