// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package scheme

import (
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"

	stellarv1alpha1 "github.com/stellar/node-operator/pkg/apis/stellarnode/v1alpha1"
)

// SetupScheme sets up a scheme with all of the relevant types. This is only needed once for the manager but is often
// used for tests. Afterwards you can use clientgoscheme.Scheme.
func SetupScheme() error {
	if err := clientgoscheme.AddToScheme(clientgoscheme.Scheme); err != nil {
		return err
	}
	return stellarv1alpha1.AddToScheme(clientgoscheme.Scheme)
}
