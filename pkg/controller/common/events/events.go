// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package events

// Event reasons for the StellarNode controller.
const (
	// EventReasonCreated describes events where resources were created.
	EventReasonCreated = "Created"
	// EventReasonDeleted describes events where resources were deleted.
	EventReasonDeleted = "Deleted"
	// EventReasonRetained describes events where storage claims were deliberately left behind.
	EventReasonRetained = "Retained"
	// EventReasonUpgraded describes events where the node workload picked up a new version.
	EventReasonUpgraded = "Upgraded"
	// EventReasonUnhealthy describes events where a node's health degraded.
	EventReasonUnhealthy = "Unhealthy"
	// EventReasonSuspended describes events where a node was scaled to zero on request.
	EventReasonSuspended = "Suspended"
	// EventReasonUnexpected describes events that were not anticipated or happened at an unexpected time.
	EventReasonUnexpected = "Unexpected"
	// EventReasonValidation describes events that were due to an invalid resource being submitted by the user.
	EventReasonValidation = "Validation"
	// EventReasonStateChange describes expected lifecycle phase changes of a node.
	EventReasonStateChange = "StateChange"
)

// Event reasons for common error conditions.
const (
	// EventReconciliationError describes an error detected during reconciliation of an object.
	EventReconciliationError = "ReconciliationError"
)
