// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package observer

// HealthStatus is the coarse sync verdict of a node probe.
type HealthStatus string

const (
	// HealthHealthy means the node responded and reports itself in sync.
	HealthHealthy HealthStatus = "Healthy"
	// HealthUnhealthy means the node responded but is not in sync, or
	// responded with an error status.
	HealthUnhealthy HealthStatus = "Unhealthy"
	// HealthUnknown means no verdict could be obtained: timeout, transport
	// error, or no probe has completed yet.
	HealthUnknown HealthStatus = "Unknown"
)

// Health is the result of a single node probe.
type Health struct {
	Status HealthStatus
	// LedgerSequence is the head ledger reported by a healthy node.
	LedgerSequence int64
	// Reason explains an Unhealthy or Unknown verdict.
	Reason string
}

// UnknownHealth is the initial state before any probe has completed.
func UnknownHealth() Health {
	return Health{Status: HealthUnknown, Reason: "no probe completed yet"}
}
