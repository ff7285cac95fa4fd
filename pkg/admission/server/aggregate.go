// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package server

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/stellar/node-operator/pkg/admission"
	"github.com/stellar/node-operator/pkg/admission/sandbox"
)

// encodeInput serializes the plugin input contract.
func encodeInput(input admission.PluginInput) ([]byte, error) {
	serialized, err := json.Marshal(input)
	if err != nil {
		return nil, &sandbox.Error{Kind: sandbox.PluginProtocol, Message: fmt.Sprintf("serializing plugin input: %s", err)}
	}
	return serialized, nil
}

// decodeOutput parses what the plugin wrote through write_output. No output
// at all, or output that is not the documented JSON contract, is a protocol
// failure.
func decodeOutput(raw []byte) (admission.PluginOutput, error) {
	var output admission.PluginOutput
	if len(raw) == 0 {
		return output, &sandbox.Error{Kind: sandbox.PluginProtocol, Message: "plugin wrote no output"}
	}
	if err := json.Unmarshal(raw, &output); err != nil {
		return output, &sandbox.Error{Kind: sandbox.PluginProtocol, Message: fmt.Sprintf("plugin output is not valid JSON: %s", err)}
	}
	return output, nil
}

// verdict is the merged outcome of all plugins of one review.
type verdict struct {
	allowed          bool
	messages         []string
	warnings         []string
	auditAnnotations map[string]string
}

func (v verdict) message() string {
	return strings.Join(v.messages, "; ")
}

// aggregate merges plugin results in their (lexicographic) order. The review
// is denied iff any plugin denies or fails closed; warnings and error
// messages concatenate; audit annotations merge under a per-plugin prefix
// with first-writer-wins on collision.
func aggregate(results []pluginResult) verdict {
	v := verdict{allowed: true, auditAnnotations: map[string]string{}}

	for _, r := range results {
		if r.err != nil {
			kind := sandbox.KindOf(r.err)
			if r.failOpen {
				v.warnings = append(v.warnings, fmt.Sprintf("[%s] %s: plugin failure tolerated (failOpen)", r.name, kind))
			} else {
				v.allowed = false
				v.messages = append(v.messages, fmt.Sprintf("[%s] %s: %s", r.name, kind, r.err.Error()))
			}
			continue
		}

		if !r.output.Allowed {
			v.allowed = false
			message := r.output.Message
			if message == "" {
				message = "denied"
			}
			v.messages = append(v.messages, fmt.Sprintf("[%s] %s", r.name, message))
			for _, fieldErr := range r.output.Errors {
				v.messages = append(v.messages, fmt.Sprintf("[%s] %s: %s (%s)", r.name, fieldErr.Field, fieldErr.Message, fieldErr.ErrorType))
			}
		}

		for _, warning := range r.output.Warnings {
			v.warnings = append(v.warnings, fmt.Sprintf("[%s] %s", r.name, warning))
		}

		for key, value := range r.output.AuditAnnotations {
			prefixed := fmt.Sprintf("%s/%s", r.name, key)
			if existing, collision := v.auditAnnotations[prefixed]; collision {
				log.Info("Audit annotation collision, keeping first value",
					"plugin_name", r.name, "key", prefixed, "kept", existing)
				continue
			}
			v.auditAnnotations[prefixed] = value
		}
	}
	return v
}
