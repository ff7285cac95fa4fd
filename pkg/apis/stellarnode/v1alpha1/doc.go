// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

// Package v1alpha1 contains API Schema definitions for the stellar v1alpha1 API group
// +kubebuilder:object:generate=true
// +groupName=stellar.org
package v1alpha1
