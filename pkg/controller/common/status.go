// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package common

import (
	"context"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/client-go/util/retry"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/stellar/node-operator/pkg/utils/k8s"
)

// UpdateStatusWithRetry updates the status sub-resource of the given object,
// retrying on conflict: the live object is re-read and applyStatus re-applied
// on top of it before each attempt.
func UpdateStatusWithRetry(ctx context.Context, c k8s.Client, obj client.Object, applyStatus func(live client.Object)) error {
	applyStatus(obj)
	err := c.Status().Update(ctx, obj)
	if err == nil || !apierrors.IsConflict(err) {
		return err
	}
	key := client.ObjectKeyFromObject(obj)
	return retry.RetryOnConflict(retry.DefaultRetry, func() error {
		if err := c.Get(ctx, key, obj); err != nil {
			return err
		}
		applyStatus(obj)
		return c.Status().Update(ctx, obj)
	})
}
