// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"gomodules.xyz/jsonpatch/v2"
	admissionv1 "k8s.io/api/admission/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/stellar/node-operator/pkg/admission/sandbox"
	stellarv1alpha1 "github.com/stellar/node-operator/pkg/apis/stellarnode/v1alpha1"
)

// handleMutate applies the built-in defaulting, then chains the mutating
// plugins: each plugin sees the output of the previous one and may write back
// a full desired object. The response carries an RFC 6902 patch from the
// submitted object to the final desired one.
func (s *Server) handleMutate(w http.ResponseWriter, req *http.Request) {
	review, ok := parseReview(w, req)
	if !ok {
		return
	}
	request := review.Request

	desired := request.Object.Raw
	if isStellarNode(request) && request.Operation != admissionv1.Delete {
		var err error
		desired, err = applyDefaults(request.Object.Raw)
		if err != nil {
			writeResponse(w, review, deniedResponse(http.StatusBadRequest, err.Error()))
			return
		}
	}

	// plugin-authored mutations are ordered: later plugins operate on the
	// output of earlier ones, so they run sequentially in lexicographic name
	// order under the shared review budget
	ctx, cancel := context.WithTimeout(req.Context(), reviewBudget-responseMargin)
	defer cancel()

	plugins := s.registry.Select(operationOf(request))
	var results []pluginResult
	for _, plugin := range plugins {
		input := pluginInput(request, requestIDOf(req.Context()))
		input.Object = desired

		serialized, err := encodeInput(input)
		var result pluginResult
		if err != nil {
			result = pluginResult{name: plugin.Name, failOpen: plugin.FailOpen, err: err}
		} else {
			result = s.executeOne(ctx, plugin, serialized)
		}
		results = append(results, result)

		if result.err == nil && result.output.Allowed && len(result.output.Object) > 0 {
			desired = result.output.Object
		}
	}

	v := aggregate(results)
	response := &admissionv1.AdmissionResponse{
		UID:      request.UID,
		Allowed:  v.allowed,
		Warnings: v.warnings,
	}
	if len(v.auditAnnotations) > 0 {
		response.AuditAnnotations = v.auditAnnotations
	}
	if !v.allowed {
		response.Result = &metav1.Status{
			Status:  metav1.StatusFailure,
			Code:    http.StatusForbidden,
			Reason:  metav1.StatusReasonForbidden,
			Message: v.message(),
		}
		writeResponse(w, review, response)
		return
	}

	patch, err := synthesizePatch(request.Object.Raw, desired)
	if err != nil {
		writeResponse(w, review, deniedResponse(http.StatusInternalServerError, err.Error()))
		return
	}
	if patch != nil {
		patchType := admissionv1.PatchTypeJSONPatch
		response.Patch = patch
		response.PatchType = &patchType
	}
	writeResponse(w, review, response)
}

// applyDefaults decodes the node, applies the operator defaulting and returns
// the re-serialized object.
func applyDefaults(raw []byte) ([]byte, error) {
	var node stellarv1alpha1.StellarNode
	if err := json.Unmarshal(raw, &node); err != nil {
		return nil, fmt.Errorf("decoding StellarNode: %w", err)
	}
	node.ApplyDefaults(time.Now())
	defaulted, err := json.Marshal(&node)
	if err != nil {
		return nil, fmt.Errorf("encoding defaulted StellarNode: %w", err)
	}
	return defaulted, nil
}

// synthesizePatch computes the JSON patch between the submitted and the final
// desired object. A desired object that is not valid JSON is a plugin
// protocol violation.
func synthesizePatch(original, desired []byte) ([]byte, error) {
	if !json.Valid(desired) {
		return nil, &sandbox.Error{Kind: sandbox.PluginProtocol, Message: "mutated object is not valid JSON"}
	}
	operations, err := jsonpatch.CreatePatch(original, desired)
	if err != nil {
		return nil, fmt.Errorf("computing mutation patch: %w", err)
	}
	if len(operations) == 0 {
		return nil, nil
	}
	return json.Marshal(operations)
}
