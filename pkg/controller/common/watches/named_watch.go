// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package watches

import (
	"context"

	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/handler"
	"sigs.k8s.io/controller-runtime/pkg/reconcile"
)

// NamedWatch is an event handler that allows watching a specific resource identified by
// Watched. Events will be handled by Watcher.
type NamedWatch[T client.Object] struct {
	// Name identifies this watch for easier removal and deduplication.
	Name string
	// Watched is the list of resources being watched.
	Watched []types.NamespacedName
	// Watcher is the receiver of the reconcile request.
	Watcher types.NamespacedName
}

var _ HandlerRegistration[client.Object, reconcile.Request] = NamedWatch[client.Object]{}

func (w NamedWatch[T]) EventHandler() handler.TypedEventHandler[T, reconcile.Request] {
	return handler.TypedEnqueueRequestsFromMapFunc[T, reconcile.Request](w.toReconcileRequest)
}

// Key identifies this watch.
func (w NamedWatch[T]) Key() string {
	return w.Name
}

// toReconcileRequest maps a watched object to the watcher's reconcile request, if relevant.
func (w NamedWatch[T]) toReconcileRequest(_ context.Context, object T) []reconcile.Request {
	for _, watched := range w.Watched {
		if object.GetName() == watched.Name && object.GetNamespace() == watched.Namespace {
			return []reconcile.Request{{NamespacedName: w.Watcher}}
		}
	}
	return nil
}
