// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package sandbox

import "time"

const (
	// DefaultMaxFuel is the per-invocation instruction budget.
	DefaultMaxFuel = uint64(1_000_000)
	// DefaultMaxMemoryBytes caps the linear memory of a plugin instance.
	DefaultMaxMemoryBytes = int64(16 * 1024 * 1024)
	// DefaultTimeout is the per-invocation wall-clock budget.
	DefaultTimeout = 1 * time.Second

	// maxWasmStack bounds the wasm call stack of every instance.
	maxWasmStack = 512 * 1024
	// epochDeadline is the number of epoch ticks an invocation survives. The
	// timer goroutine increments the epoch once per timeout period.
	epochDeadline = 1
)

// Limits are the per-invocation resource ceilings of one plugin.
type Limits struct {
	// MaxFuel is the instruction budget. Zero means DefaultMaxFuel.
	MaxFuel uint64 `json:"maxFuel,omitempty"`
	// MaxMemoryBytes caps the plugin linear memory. Zero means DefaultMaxMemoryBytes.
	MaxMemoryBytes int64 `json:"maxMemoryBytes,omitempty"`
	// Timeout is the wall-clock budget. Zero means DefaultTimeout.
	Timeout time.Duration `json:"timeout,omitempty"`
}

// WithDefaults returns the limits with zero values replaced by defaults.
func (l Limits) WithDefaults() Limits {
	if l.MaxFuel == 0 {
		l.MaxFuel = DefaultMaxFuel
	}
	if l.MaxMemoryBytes == 0 {
		l.MaxMemoryBytes = DefaultMaxMemoryBytes
	}
	if l.Timeout == 0 {
		l.Timeout = DefaultTimeout
	}
	return l
}
