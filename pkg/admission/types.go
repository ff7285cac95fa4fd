// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

// Package admission holds the wire contracts between the webhook server and
// the sandboxed admission plugins.
package admission

import (
	"encoding/json"

	authenticationv1 "k8s.io/api/authentication/v1"
)

// Operation mirrors the admission operation a plugin can subscribe to.
type Operation string

const (
	OperationCreate Operation = "CREATE"
	OperationUpdate Operation = "UPDATE"
	OperationDelete Operation = "DELETE"
)

// PluginInput is the serialized request handed to a plugin invocation.
type PluginInput struct {
	Operation Operation                 `json:"operation"`
	Object    json.RawMessage           `json:"object"`
	OldObject json.RawMessage           `json:"oldObject,omitempty"`
	Namespace string                    `json:"namespace"`
	Name      string                    `json:"name"`
	UserInfo  authenticationv1.UserInfo `json:"userInfo"`
	Context   map[string]string         `json:"context"`
}

// PluginFieldError is a field-scoped error reported by a plugin.
type PluginFieldError struct {
	Field     string `json:"field"`
	Message   string `json:"message"`
	ErrorType string `json:"errorType"`
}

// PluginOutput is the verdict a plugin writes back through write_output.
// A mutating plugin additionally returns the full desired object.
type PluginOutput struct {
	Allowed          bool               `json:"allowed"`
	Message          string             `json:"message,omitempty"`
	Reason           string             `json:"reason,omitempty"`
	Errors           []PluginFieldError `json:"errors,omitempty"`
	Warnings         []string           `json:"warnings,omitempty"`
	AuditAnnotations map[string]string  `json:"auditAnnotations,omitempty"`
	Object           json.RawMessage    `json:"object,omitempty"`
}
