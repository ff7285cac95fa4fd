// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	admissionv1 "k8s.io/api/admission/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/stellar/node-operator/pkg/admission"
	stellarv1alpha1 "github.com/stellar/node-operator/pkg/apis/stellarnode/v1alpha1"
)

// maxReviewBytes bounds the request body of an admission review.
const maxReviewBytes = 8 * 1024 * 1024

// handleValidate runs built-in spec validation, then fans the review out to
// the loaded validating plugins and aggregates their verdicts.
func (s *Server) handleValidate(w http.ResponseWriter, req *http.Request) {
	review, ok := parseReview(w, req)
	if !ok {
		return
	}
	request := review.Request

	// built-in StellarNode validation runs before any plugin: a structurally
	// invalid spec is rejected without spending plugin quota on it
	if isStellarNode(request) && request.Operation != admissionv1.Delete {
		if response := validateStellarNode(request); response != nil {
			writeResponse(w, review, response)
			return
		}
	}

	plugins := s.registry.Select(operationOf(request))
	results := s.execute(req.Context(), plugins, pluginInput(request, requestIDOf(req.Context())))
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
	}
	writeResponse(w, review, response)
}

// parseReview decodes the AdmissionReview body, answering 400 on anything
// malformed.
func parseReview(w http.ResponseWriter, req *http.Request) (*admissionv1.AdmissionReview, bool) {
	body, err := io.ReadAll(io.LimitReader(req.Body, maxReviewBytes))
	if err != nil {
		http.Error(w, "reading request body: "+err.Error(), http.StatusBadRequest)
		return nil, false
	}
	var review admissionv1.AdmissionReview
	if err := json.Unmarshal(body, &review); err != nil {
		http.Error(w, "decoding admission review: "+err.Error(), http.StatusBadRequest)
		return nil, false
	}
	if review.Request == nil {
		http.Error(w, "admission review carries no request", http.StatusBadRequest)
		return nil, false
	}
	return &review, true
}

// writeResponse sends the synthesized review back, echoing the request UID
// and the incoming API version.
func writeResponse(w http.ResponseWriter, review *admissionv1.AdmissionReview, response *admissionv1.AdmissionResponse) {
	response.UID = review.Request.UID
	out := admissionv1.AdmissionReview{
		TypeMeta: review.TypeMeta,
		Response: response,
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(out); err != nil {
		log.Error(err, "Failed to write admission response")
	}
}

// validateStellarNode runs the CRD's own create/update validation. A nil
// return means the spec passed.
func validateStellarNode(request *admissionv1.AdmissionRequest) *admissionv1.AdmissionResponse {
	var node stellarv1alpha1.StellarNode
	if err := json.Unmarshal(request.Object.Raw, &node); err != nil {
		return deniedResponse(http.StatusBadRequest, "decoding StellarNode: "+err.Error())
	}

	var err error
	if request.Operation == admissionv1.Update && len(request.OldObject.Raw) > 0 {
		var old stellarv1alpha1.StellarNode
		if decodeErr := json.Unmarshal(request.OldObject.Raw, &old); decodeErr != nil {
			return deniedResponse(http.StatusBadRequest, "decoding previous StellarNode: "+decodeErr.Error())
		}
		err = node.ValidateUpdate(&old)
	} else {
		err = node.ValidateCreate()
	}
	if err == nil {
		return nil
	}

	response := &admissionv1.AdmissionResponse{Allowed: false}
	var statusErr *apierrors.StatusError
	if errors.As(err, &statusErr) {
		response.Result = &statusErr.ErrStatus
	} else {
		response.Result = &metav1.Status{
			Status:  metav1.StatusFailure,
			Code:    http.StatusUnprocessableEntity,
			Message: err.Error(),
		}
	}
	return response
}

func deniedResponse(code int32, message string) *admissionv1.AdmissionResponse {
	return &admissionv1.AdmissionResponse{
		Allowed: false,
		Result: &metav1.Status{
			Status:  metav1.StatusFailure,
			Code:    code,
			Message: message,
		},
	}
}

// isStellarNode tells whether the review concerns the operator's own CRD.
func isStellarNode(request *admissionv1.AdmissionRequest) bool {
	return request.Kind.Group == stellarv1alpha1.GroupVersion.Group &&
		request.Kind.Kind == stellarv1alpha1.Kind
}

// operationOf maps the review operation onto the plugin subscription space.
func operationOf(request *admissionv1.AdmissionRequest) admission.Operation {
	switch request.Operation {
	case admissionv1.Create:
		return admission.OperationCreate
	case admissionv1.Update:
		return admission.OperationUpdate
	case admissionv1.Delete:
		return admission.OperationDelete
	default:
		return admission.Operation(request.Operation)
	}
}

// pluginInput builds the serialized input contract from the review request.
// The request ID lets plugin-side logs correlate with the review.
func pluginInput(request *admissionv1.AdmissionRequest, requestID string) admission.PluginInput {
	input := admission.PluginInput{
		Operation: operationOf(request),
		Object:    request.Object.Raw,
		OldObject: request.OldObject.Raw,
		Namespace: request.Namespace,
		Name:      request.Name,
		UserInfo:  request.UserInfo,
		Context:   map[string]string{},
	}
	if requestID != "" {
		input.Context["requestID"] = requestID
	}
	return input
}
