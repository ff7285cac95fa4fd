// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package watches

import (
	corev1 "k8s.io/api/core/v1"
	"sigs.k8s.io/controller-runtime/pkg/reconcile"
)

// NewDynamicWatches creates an initialized DynamicWatches container.
func NewDynamicWatches() DynamicWatches {
	return DynamicWatches{
		Secrets: NewDynamicEnqueueRequest[*corev1.Secret, reconcile.Request](),
	}
}

// DynamicWatches holds the stateful dynamic watches of a controller: handlers
// registered and removed per reconciled object, here the referenced seed and
// database Secrets that are not owned children.
type DynamicWatches struct {
	Secrets *DynamicEnqueueRequest[*corev1.Secret, reconcile.Request]
}
