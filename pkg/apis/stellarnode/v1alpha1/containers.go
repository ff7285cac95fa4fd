// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package v1alpha1

const (
	// NodeContainerName is the name of the main container in node pods,
	// regardless of node type.
	NodeContainerName = "stellar-node"
	// CaptiveCoreContainerName is the name of the optional captive-core
	// sidecar in SorobanRpc pods.
	CaptiveCoreContainerName = "captive-core"
)
