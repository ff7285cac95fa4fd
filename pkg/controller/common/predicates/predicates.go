// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package predicates

import (
	"k8s.io/utils/strings/slices"
)

// IsNamespaceManaged returns true if the namespace is managed by the operator.
func IsNamespaceManaged(namespace string, managedNamespaces []string) bool {
	return len(managedNamespaces) == 0 || slices.Contains(managedNamespaces, namespace)
}
