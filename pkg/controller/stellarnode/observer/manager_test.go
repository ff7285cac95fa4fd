// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package observer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"

	stellarv1alpha1 "github.com/stellar/node-operator/pkg/apis/stellarnode/v1alpha1"
)

func testStellarNode(name string) stellarv1alpha1.StellarNode {
	return stellarv1alpha1.StellarNode{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: "ns"},
		Spec: stellarv1alpha1.StellarNodeSpec{
			NodeType: stellarv1alpha1.NodeTypeHorizon,
			Network:  stellarv1alpha1.NetworkTestnet,
		},
	}
}

func TestManagerObserve(t *testing.T) {
	m := NewManager(nil, 0, nil)
	node := testStellarNode("node1")

	observer := m.Observe(node, 8000)
	require.NotNil(t, observer)
	assert.Len(t, m.List(), 1)

	// observing the same node again returns the same observer
	assert.Same(t, observer, m.Observe(node, 8000))

	// a different target replaces the observer
	replaced := m.Observe(node, 11626)
	assert.NotSame(t, observer, replaced)
	assert.Len(t, m.List(), 1)

	// an interval annotation change replaces the observer
	node.Annotations = map[string]string{ObserverIntervalAnnotation: "42s"}
	again := m.Observe(node, 11626)
	assert.NotSame(t, replaced, again)

	m.StopObserving(types.NamespacedName{Namespace: "ns", Name: "node1"})
	assert.Empty(t, m.List())
	// stopping twice is fine
	m.StopObserving(types.NamespacedName{Namespace: "ns", Name: "node1"})
}

func TestManagerObservedStateResolver(t *testing.T) {
	m := NewManager(nil, 0, nil)
	resolve := m.ObservedStateResolver(testStellarNode("node2"), 8000)
	// the probe target does not exist, the state converges to Unknown
	assert.Equal(t, HealthUnknown, resolve().Status)
	m.StopObserving(types.NamespacedName{Namespace: "ns", Name: "node2"})
}

func TestManagerListeners(t *testing.T) {
	m := NewManager(nil, 0, nil)
	notified := make(chan Health, 1)
	m.AddObservationListener(func(node types.NamespacedName, previous, current Health) {
		select {
		case notified <- current:
		default:
		}
	})

	m.Observe(testStellarNode("node3"), 8000)
	health := <-notified
	assert.Equal(t, HealthUnknown, health.Status)
	m.StopObserving(types.NamespacedName{Namespace: "ns", Name: "node3"})
}
