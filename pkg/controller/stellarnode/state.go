// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package stellarnode

import "time"

// step is a state of the per-pass reconciliation state machine. Steps are
// derived from spec, status and deletion timestamp on every pass and never
// stored, which makes restart-after-crash safe.
type step string

const (
	stepInit           step = "Init"
	stepValidateSpec   step = "ValidateSpec"
	stepSpecInvalid    step = "SpecInvalid"
	stepEnsureChildren step = "EnsureChildren"
	stepSuspended      step = "Suspended"
	stepHealthCheck    step = "HealthCheck"
	stepEnsureMesh     step = "EnsureMesh"
	stepStable         step = "Stable"
	stepDeleting       step = "Deleting"
	stepDeleted        step = "Deleted"
)

const (
	// maxStepTransitions bounds the number of state transitions in a single
	// pass. Exceeding it means a logic bug, not a cluster condition.
	maxStepTransitions = 20

	// internalErrorRequeue is the long backoff applied when the step counter
	// is exceeded.
	internalErrorRequeue = 5 * time.Minute

	// healthUnknownRequeue is the fixed requeue period while the node health
	// cannot be established yet.
	healthUnknownRequeue = 10 * time.Second
)
