// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package sandbox

import (
	"errors"
	"fmt"
)

// FailureKind classifies a plugin execution failure. Kinds are deterministic:
// the same plugin with the same input and limits fails the same way.
type FailureKind string

const (
	// PluginOutOfFuel means the instruction budget was exhausted.
	PluginOutOfFuel FailureKind = "PluginOutOfFuel"
	// PluginTimeout means the wall-clock budget was exhausted.
	PluginTimeout FailureKind = "PluginTimeout"
	// PluginOutOfMemory means the plugin exceeded its memory ceiling.
	PluginOutOfMemory FailureKind = "PluginOutOfMemory"
	// PluginTrap covers any other runtime trap (unreachable, division by zero...).
	PluginTrap FailureKind = "PluginTrap"
	// PluginProtocol means the plugin wrote malformed output, or none at all.
	PluginProtocol FailureKind = "PluginProtocol"
	// PluginIntegrity means the bytecode does not match its declared hash or
	// does not expose the required ABI.
	PluginIntegrity FailureKind = "PluginIntegrity"
)

// Error is a classified plugin failure.
type Error struct {
	Kind    FailureKind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func newError(kind FailureKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the failure kind from an error, defaulting to PluginTrap.
func KindOf(err error) FailureKind {
	var sandboxErr *Error
	if errors.As(err, &sandboxErr) {
		return sandboxErr.Kind
	}
	return PluginTrap
}
