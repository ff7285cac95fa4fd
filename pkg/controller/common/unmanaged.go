// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package common

import (
	"context"
	"strconv"

	"sigs.k8s.io/controller-runtime/pkg/client"

	ulog "github.com/stellar/node-operator/pkg/utils/log"
)

// ManagedAnnotation opts a resource out of reconciliation when set to false.
const ManagedAnnotation = "stellar.org/managed"

// IsUnmanaged checks if a given resource is currently unmanaged.
func IsUnmanaged(ctx context.Context, object client.Object) bool {
	managed, exists := object.GetAnnotations()[ManagedAnnotation]
	if !exists {
		return false
	}

	expected, err := strconv.ParseBool(managed)
	if err != nil {
		ulog.FromContext(ctx).Info(
			"Cannot parse the managed annotation value, considering the resource managed",
			"annotation", ManagedAnnotation,
			"value", managed,
			"namespace", object.GetNamespace(),
			"name", object.GetName(),
		)
		return false
	}
	return !expected
}
