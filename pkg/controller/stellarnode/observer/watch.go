// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package observer

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/event"
	"sigs.k8s.io/controller-runtime/pkg/handler"
	"sigs.k8s.io/controller-runtime/pkg/source"

	stellarv1alpha1 "github.com/stellar/node-operator/pkg/apis/stellarnode/v1alpha1"
)

// WatchHealthChange returns a Source fed with generic events targeting nodes
// whose health has changed between 2 observations.
// Aimed to be used for triggering a reconciliation.
func WatchHealthChange(m *Manager) source.Source {
	evtChan := make(chan event.TypedGenericEvent[*stellarv1alpha1.StellarNode])
	m.AddObservationListener(healthChangeListener(evtChan))
	// Each event in Source will be consumed and turned into
	// a reconciliation request.
	//
	// DestBufferSize is kept at the default value (1024).
	// This means we can enqueue a maximum of 1024 requests
	// before blocking observers from moving on.
	return source.Channel(evtChan, &handler.TypedEnqueueRequestForObject[*stellarv1alpha1.StellarNode]{})
}

// healthChangeListener returns an OnObservation listener that feeds a generic
// event when a node's observed health has changed.
func healthChangeListener(reconciliation chan event.TypedGenericEvent[*stellarv1alpha1.StellarNode]) OnObservation {
	return func(node types.NamespacedName, previous, current Health) {
		// no-op if health hasn't changed
		if !hasHealthChanged(previous, current) {
			return
		}

		// trigger a reconciliation event for that node
		evt := event.TypedGenericEvent[*stellarv1alpha1.StellarNode]{
			Object: &stellarv1alpha1.StellarNode{ObjectMeta: metav1.ObjectMeta{
				Namespace: node.Namespace,
				Name:      node.Name,
			}},
		}
		reconciliation <- evt
	}
}

// hasHealthChanged tells whether a new observation should re-enter the state
// machine. The ledger head moving forward on a healthy node is expected and
// not a reason to reconcile.
func hasHealthChanged(previous, current Health) bool {
	return previous.Status != current.Status
}
