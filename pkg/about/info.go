// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package about

import (
	"context"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// UUIDCfgMapName is the name of the ConfigMap whose UID serves as a stable
// identity for this operator installation.
const UUIDCfgMapName = "stellar-operator-uuid"

// OperatorInfo describes a running operator instance.
type OperatorInfo struct {
	OperatorUUID           types.UID `json:"operator_uuid"`
	OperatorNamespace      string    `json:"operator_namespace"`
	KubernetesDistribution string    `json:"distribution"`
	BuildInfo              BuildInfo `json:"build"`
}

// GetOperatorInfo returns an OperatorInfo for the given operator namespace,
// reconciling the UUID holder ConfigMap as a side effect.
func GetOperatorInfo(ctx context.Context, c client.Client, cfg *rest.Config, operatorNs string) (OperatorInfo, error) {
	operatorUUID, err := reconcileUUIDConfigMap(ctx, c, operatorNs)
	if err != nil {
		return OperatorInfo{}, err
	}

	distribution := "unknown"
	if d, err := getDistribution(cfg); err == nil {
		distribution = d
	}

	return OperatorInfo{
		OperatorUUID:           operatorUUID,
		OperatorNamespace:      operatorNs,
		KubernetesDistribution: distribution,
		BuildInfo:              GetBuildInfo(),
	}, nil
}

// reconcileUUIDConfigMap ensures the UUID holder ConfigMap exists and returns
// its UID. The UID survives operator restarts and upgrades.
func reconcileUUIDConfigMap(ctx context.Context, c client.Client, operatorNs string) (types.UID, error) {
	nsn := types.NamespacedName{Namespace: operatorNs, Name: UUIDCfgMapName}
	var cm corev1.ConfigMap
	err := c.Get(ctx, nsn, &cm)
	if err == nil {
		return cm.UID, nil
	}
	cm = corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{
			Namespace: nsn.Namespace,
			Name:      nsn.Name,
		},
	}
	if err := c.Create(ctx, &cm); err != nil {
		return "", err
	}
	return cm.UID, nil
}

// getDistribution returns the GitVersion reported by the apiserver.
func getDistribution(cfg *rest.Config) (string, error) {
	clientset, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return "", err
	}
	version, err := clientset.Discovery().ServerVersion()
	if err != nil {
		return "", err
	}
	return version.GitVersion, nil
}
