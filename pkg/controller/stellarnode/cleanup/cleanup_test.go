// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package cleanup

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/tools/record"
	"sigs.k8s.io/controller-runtime/pkg/client"

	stellarv1alpha1 "github.com/stellar/node-operator/pkg/apis/stellarnode/v1alpha1"
	"github.com/stellar/node-operator/pkg/utils/k8s"
)

func deletedNode(retention stellarv1alpha1.RetentionPolicy) stellarv1alpha1.StellarNode {
	return stellarv1alpha1.StellarNode{
		ObjectMeta: metav1.ObjectMeta{Name: "val", Namespace: "ns"},
		Spec: stellarv1alpha1.StellarNodeSpec{
			NodeType: stellarv1alpha1.NodeTypeValidator,
			Network:  stellarv1alpha1.NetworkTestnet,
			Storage:  &stellarv1alpha1.StorageConfig{RetentionPolicy: retention},
		},
	}
}

func childObjects(node stellarv1alpha1.StellarNode) []client.Object {
	return []client.Object{
		&corev1.Service{ObjectMeta: metav1.ObjectMeta{Namespace: "ns", Name: stellarv1alpha1.ServiceName(node.Name)}},
		&appsv1.StatefulSet{ObjectMeta: metav1.ObjectMeta{Namespace: "ns", Name: stellarv1alpha1.WorkloadName(node.Name)}},
		&corev1.ConfigMap{ObjectMeta: metav1.ObjectMeta{Namespace: "ns", Name: stellarv1alpha1.ConfigMapName(node.Name)}},
		&corev1.PersistentVolumeClaim{ObjectMeta: metav1.ObjectMeta{
			Namespace: "ns",
			Name:      "data-val-0",
			Labels:    map[string]string{stellarv1alpha1.NodeNameLabelName: node.Name},
		}},
	}
}

func TestRunRetain(t *testing.T) {
	node := deletedNode(stellarv1alpha1.RetentionPolicyRetain)
	c := k8s.NewFakeClient(childObjects(node)...)
	recorder := record.NewFakeRecorder(10)

	done, err := Run(context.Background(), c, recorder, node)
	require.NoError(t, err)
	assert.True(t, done)

	// service, workload and config are gone
	var svc corev1.Service
	err = c.Get(context.Background(), types.NamespacedName{Namespace: "ns", Name: "val-service"}, &svc)
	assert.True(t, apierrors.IsNotFound(err))
	var sset appsv1.StatefulSet
	err = c.Get(context.Background(), types.NamespacedName{Namespace: "ns", Name: "val"}, &sset)
	assert.True(t, apierrors.IsNotFound(err))
	var cm corev1.ConfigMap
	err = c.Get(context.Background(), types.NamespacedName{Namespace: "ns", Name: "val-config"}, &cm)
	assert.True(t, apierrors.IsNotFound(err))

	// the claim survives, annotated
	var claim corev1.PersistentVolumeClaim
	require.NoError(t, c.Get(context.Background(), types.NamespacedName{Namespace: "ns", Name: "data-val-0"}, &claim))
	assert.Equal(t, "true", claim.Annotations[stellarv1alpha1.RetainedAnnotation])
	assert.NotEmpty(t, claim.Annotations[stellarv1alpha1.RetainedAtAnnotation])

	// a retention event was emitted
	select {
	case event := <-recorder.Events:
		assert.Contains(t, event, "Retained")
	default:
		t.Fatal("expected a Retained event")
	}
}

func TestRunDelete(t *testing.T) {
	node := deletedNode(stellarv1alpha1.RetentionPolicyDelete)
	c := k8s.NewFakeClient(childObjects(node)...)

	done, err := Run(context.Background(), c, record.NewFakeRecorder(10), node)
	require.NoError(t, err)
	assert.True(t, done)

	var claim corev1.PersistentVolumeClaim
	err = c.Get(context.Background(), types.NamespacedName{Namespace: "ns", Name: "data-val-0"}, &claim)
	assert.True(t, apierrors.IsNotFound(err))
}

func TestRunIsIdempotent(t *testing.T) {
	node := deletedNode(stellarv1alpha1.RetentionPolicyRetain)
	c := k8s.NewFakeClient(childObjects(node)...)
	recorder := record.NewFakeRecorder(10)

	done, err := Run(context.Background(), c, recorder, node)
	require.NoError(t, err)
	assert.True(t, done)

	// second pass: nothing left to do, no second retention event
	done, err = Run(context.Background(), c, recorder, node)
	require.NoError(t, err)
	assert.True(t, done)
	assert.Len(t, recorder.Events, 1)
}

func TestRunHorizonHasNoClaims(t *testing.T) {
	node := stellarv1alpha1.StellarNode{
		ObjectMeta: metav1.ObjectMeta{Name: "hz", Namespace: "ns"},
		Spec: stellarv1alpha1.StellarNodeSpec{
			NodeType: stellarv1alpha1.NodeTypeHorizon,
			Network:  stellarv1alpha1.NetworkTestnet,
		},
	}
	c := k8s.NewFakeClient(
		&appsv1.Deployment{ObjectMeta: metav1.ObjectMeta{Namespace: "ns", Name: "hz"}},
		&corev1.Service{ObjectMeta: metav1.ObjectMeta{Namespace: "ns", Name: "hz-service"}},
	)

	done, err := Run(context.Background(), c, record.NewFakeRecorder(10), node)
	require.NoError(t, err)
	assert.True(t, done)

	var dep appsv1.Deployment
	err = c.Get(context.Background(), types.NamespacedName{Namespace: "ns", Name: "hz"}, &dep)
	assert.True(t, apierrors.IsNotFound(err))
}

func TestRunPropagatesClientErrors(t *testing.T) {
	node := deletedNode(stellarv1alpha1.RetentionPolicyDelete)
	c := k8s.NewFailingClient(errors.New("apiserver unavailable"))
	recorder := record.NewFakeRecorder(10)

	done, err := Run(context.Background(), c, recorder, node)
	require.Error(t, err)
	assert.False(t, done)
}
