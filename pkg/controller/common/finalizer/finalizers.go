// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package finalizer

import (
	"context"

	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/stellar/node-operator/pkg/utils/k8s"
	ulog "github.com/stellar/node-operator/pkg/utils/log"
)

// Add sets the given finalizer on the object and persists the change.
// Returns true if the object was updated.
func Add(ctx context.Context, c k8s.Client, obj client.Object, finalizer string) (bool, error) {
	for _, f := range obj.GetFinalizers() {
		if f == finalizer {
			return false, nil
		}
	}
	ulog.FromContext(ctx).V(1).Info("Adding finalizer",
		"finalizer", finalizer, "namespace", obj.GetNamespace(), "name", obj.GetName())
	obj.SetFinalizers(append(obj.GetFinalizers(), finalizer))
	return true, c.Update(ctx, obj)
}

// Remove removes the given finalizer from the object and persists the change.
// Returns true if the object was updated.
func Remove(ctx context.Context, c k8s.Client, obj client.Object, finalizer string) (bool, error) {
	finalizers := obj.GetFinalizers()
	remaining := make([]string, 0, len(finalizers))
	for _, f := range finalizers {
		if f != finalizer {
			remaining = append(remaining, f)
		}
	}
	if len(remaining) == len(finalizers) {
		return false, nil
	}
	ulog.FromContext(ctx).Info("Removing finalizer",
		"finalizer", finalizer, "namespace", obj.GetNamespace(), "name", obj.GetName())
	obj.SetFinalizers(remaining)
	return true, c.Update(ctx, obj)
}
