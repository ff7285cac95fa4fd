// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package server

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bytecodealliance/wasmtime-go/v25"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	admissionv1 "k8s.io/api/admission/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"

	"github.com/stellar/node-operator/pkg/admission"
	"github.com/stellar/node-operator/pkg/admission/registry"
	"github.com/stellar/node-operator/pkg/admission/sandbox"
	stellarv1alpha1 "github.com/stellar/node-operator/pkg/apis/stellarnode/v1alpha1"
)

// staticOutputWat builds a plugin writing the given JSON verdict verbatim.
func staticOutputWat(t *testing.T, output string) []byte {
	t.Helper()
	wat := fmt.Sprintf(`(module
  (import "env" "write_output" (func $write_output (param i32 i32) (result i32)))
  (memory (export "memory") 1)
  (data (i32.const 0) %q)
  (func (export "validate") (result i32)
    (drop (call $write_output (i32.const 0) (i32.const %d)))
    i32.const 0))`, output, len(output))
	bytecode, err := wasmtime.Wat2Wasm(wat)
	require.NoError(t, err)
	return bytecode
}

// spinWat builds a plugin that burns its whole instruction budget.
func spinWat(t *testing.T) []byte {
	t.Helper()
	bytecode, err := wasmtime.Wat2Wasm(`(module
  (memory (export "memory") 1)
  (func (export "validate") (result i32)
    (loop $spin (br $spin))
    i32.const 0))`)
	require.NoError(t, err)
	return bytecode
}

func newTestServer(t *testing.T) (*Server, *registry.Registry) {
	t.Helper()
	runtime, err := sandbox.NewRuntime()
	require.NoError(t, err)
	reg := registry.NewRegistry(runtime, nil)
	s, err := NewServer(Params{Registry: reg, Runtime: runtime})
	require.NoError(t, err)
	return s, reg
}

func loadPlugin(t *testing.T, reg *registry.Registry, name string, bytecode []byte, failOpen bool) {
	t.Helper()
	require.NoError(t, reg.Load(t.Context(), registry.Descriptor{
		Metadata:       registry.Metadata{Name: name},
		BytecodeBase64: base64.StdEncoding.EncodeToString(bytecode),
		Operations:     []admission.Operation{admission.OperationCreate, admission.OperationUpdate},
		Enabled:        true,
		FailOpen:       failOpen,
	}, false))
}

func horizonNode() stellarv1alpha1.StellarNode {
	return stellarv1alpha1.StellarNode{
		TypeMeta:   metav1.TypeMeta{APIVersion: "stellar.org/v1alpha1", Kind: "StellarNode"},
		ObjectMeta: metav1.ObjectMeta{Namespace: "default", Name: "horizon-test"},
		Spec: stellarv1alpha1.StellarNodeSpec{
			NodeType: stellarv1alpha1.NodeTypeHorizon,
			Network:  stellarv1alpha1.NetworkTestnet,
			Version:  "registry.example/horizon:v21.0.0",
			HorizonConfig: &stellarv1alpha1.HorizonConfig{
				DatabaseSecretRef: "horizon-db",
				StellarCoreUrl:    "http://core:11626",
			},
		},
	}
}

func reviewFor(t *testing.T, node stellarv1alpha1.StellarNode, op admissionv1.Operation) []byte {
	t.Helper()
	raw, err := json.Marshal(&node)
	require.NoError(t, err)
	review := admissionv1.AdmissionReview{
		TypeMeta: metav1.TypeMeta{APIVersion: "admission.k8s.io/v1", Kind: "AdmissionReview"},
		Request: &admissionv1.AdmissionRequest{
			UID:       "test-uid",
			Kind:      metav1.GroupVersionKind{Group: "stellar.org", Version: "v1alpha1", Kind: "StellarNode"},
			Operation: op,
			Namespace: node.Namespace,
			Name:      node.Name,
			Object:    runtime.RawExtension{Raw: raw},
		},
	}
	body, err := json.Marshal(review)
	require.NoError(t, err)
	return body
}

func postReview(t *testing.T, handler http.Handler, path string, body []byte) *admissionv1.AdmissionReview {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var review admissionv1.AdmissionReview
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &review))
	require.NotNil(t, review.Response)
	assert.Equal(t, "test-uid", string(review.Response.UID))
	return &review
}

func TestValidateMalformedReview(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/validate", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestValidateBuiltInValidation(t *testing.T) {
	s, _ := newTestServer(t)
	node := horizonNode()
	node.Spec.ServiceMesh = &stellarv1alpha1.ServiceMeshConfig{
		Istio: &stellarv1alpha1.IstioMeshConfig{
			CircuitBreaker: &stellarv1alpha1.CircuitBreakerConfig{
				ConsecutiveErrors: 0,
				TimeWindowSecs:    30,
				BaseEjectionSecs:  30,
			},
		},
	}

	review := postReview(t, s.Routes(), "/validate", reviewFor(t, node, admissionv1.Create))
	require.False(t, review.Response.Allowed)
	require.NotNil(t, review.Response.Result)
	assert.Contains(t, review.Response.Result.Message, "consecutiveErrors")
}

func TestValidateNoPluginsAllows(t *testing.T) {
	s, _ := newTestServer(t)
	review := postReview(t, s.Routes(), "/validate", reviewFor(t, horizonNode(), admissionv1.Create))
	assert.True(t, review.Response.Allowed)
}

func TestValidatePluginDenies(t *testing.T) {
	s, reg := newTestServer(t)
	loadPlugin(t, reg, "image-policy",
		staticOutputWat(t, `{"allowed":false,"message":"image registry not approved"}`), false)

	review := postReview(t, s.Routes(), "/validate", reviewFor(t, horizonNode(), admissionv1.Create))
	require.False(t, review.Response.Allowed)
	assert.Contains(t, review.Response.Result.Message, "[image-policy] image registry not approved")
}

func TestValidateDenyWinsOverAllow(t *testing.T) {
	s, reg := newTestServer(t)
	loadPlugin(t, reg, "allow-all", staticOutputWat(t, `{"allowed":true}`), false)
	loadPlugin(t, reg, "deny-all", staticOutputWat(t, `{"allowed":false,"message":"no"}`), false)

	review := postReview(t, s.Routes(), "/validate", reviewFor(t, horizonNode(), admissionv1.Create))
	assert.False(t, review.Response.Allowed)
}

func TestValidateFuelExhaustionHonorsFailOpen(t *testing.T) {
	t.Run("failOpen=true tolerates with a warning", func(t *testing.T) {
		s, reg := newTestServer(t)
		loadPlugin(t, reg, "spinner", spinWat(t), true)

		review := postReview(t, s.Routes(), "/validate", reviewFor(t, horizonNode(), admissionv1.Create))
		assert.True(t, review.Response.Allowed)
		require.Len(t, review.Response.Warnings, 1)
		assert.Contains(t, review.Response.Warnings[0], "PluginOutOfFuel")
	})

	t.Run("failOpen=false denies", func(t *testing.T) {
		s, reg := newTestServer(t)
		loadPlugin(t, reg, "spinner", spinWat(t), false)

		review := postReview(t, s.Routes(), "/validate", reviewFor(t, horizonNode(), admissionv1.Create))
		require.False(t, review.Response.Allowed)
		assert.Contains(t, review.Response.Result.Message, "PluginOutOfFuel")
	})
}

func TestValidateWarningsAndAnnotationsAggregate(t *testing.T) {
	s, reg := newTestServer(t)
	loadPlugin(t, reg, "alpha",
		staticOutputWat(t, `{"allowed":true,"warnings":["w1"],"auditAnnotations":{"k":"a"}}`), false)
	loadPlugin(t, reg, "beta",
		staticOutputWat(t, `{"allowed":true,"warnings":["w2"],"auditAnnotations":{"k":"b"}}`), false)

	review := postReview(t, s.Routes(), "/validate", reviewFor(t, horizonNode(), admissionv1.Create))
	require.True(t, review.Response.Allowed)
	assert.Equal(t, []string{"[alpha] w1", "[beta] w2"}, review.Response.Warnings)
	assert.Equal(t, map[string]string{"alpha/k": "a", "beta/k": "b"}, review.Response.AuditAnnotations)
}

func TestMutateAppliesDefaults(t *testing.T) {
	s, _ := newTestServer(t)
	node := horizonNode()
	node.Spec.Version = "" // defaulting fills it in

	review := postReview(t, s.Routes(), "/mutate", reviewFor(t, node, admissionv1.Create))
	require.True(t, review.Response.Allowed)
	require.NotNil(t, review.Response.Patch)
	require.NotNil(t, review.Response.PatchType)
	assert.Equal(t, admissionv1.PatchTypeJSONPatch, *review.Response.PatchType)

	var operations []map[string]interface{}
	require.NoError(t, json.Unmarshal(review.Response.Patch, &operations))
	patched := false
	for _, op := range operations {
		if path, _ := op["path"].(string); strings.Contains(path, "version") {
			patched = true
		}
	}
	assert.True(t, patched, "expected a patch operation on spec.version, got %v", operations)
}

func TestMutatePluginRewritesObject(t *testing.T) {
	s, reg := newTestServer(t)
	node := horizonNode()
	raw, err := json.Marshal(&node)
	require.NoError(t, err)

	// a "mutating" plugin returning a fixed desired object with one added label
	var rewritten map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &rewritten))
	metadata := rewritten["metadata"].(map[string]interface{})
	metadata["labels"] = map[string]interface{}{"mutated": "yes"}
	desired, err := json.Marshal(rewritten)
	require.NoError(t, err)

	output, err := json.Marshal(map[string]interface{}{
		"allowed": true,
		"object":  json.RawMessage(desired),
	})
	require.NoError(t, err)
	loadPlugin(t, reg, "labeler", staticOutputWat(t, string(output)), false)

	review := postReview(t, s.Routes(), "/mutate", reviewFor(t, node, admissionv1.Create))
	require.True(t, review.Response.Allowed)
	require.NotNil(t, review.Response.Patch)
	assert.Contains(t, string(review.Response.Patch), "mutated")
}

func TestHealthAndReady(t *testing.T) {
	s, reg := newTestServer(t)
	handler := s.Routes()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	// not ready before the first plugin loads
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	loadPlugin(t, reg, "allow-all", staticOutputWat(t, `{"allowed":true}`), false)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPluginManagementAPI(t *testing.T) {
	s, _ := newTestServer(t)
	handler := s.Routes()

	descriptor := registry.Descriptor{
		Metadata:       registry.Metadata{Name: "image-policy", Version: "1.0.0"},
		BytecodeBase64: base64.StdEncoding.EncodeToString(staticOutputWat(t, `{"allowed":true}`)),
		Operations:     []admission.Operation{admission.OperationCreate},
		Enabled:        true,
	}
	body, err := json.Marshal(descriptor)
	require.NoError(t, err)

	// POST creates
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/plugins", bytes.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// duplicate POST conflicts
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/plugins", bytes.NewReader(body)))
	assert.Equal(t, http.StatusConflict, rec.Code)

	// integrity failure is unprocessable
	bad := descriptor
	bad.Metadata.Name = "broken"
	bad.Metadata.SHA256 = strings.Repeat("0", 64)
	badBody, err := json.Marshal(bad)
	require.NoError(t, err)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/plugins", bytes.NewReader(badBody)))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	// GET lists the loaded plugin
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/plugins", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var summaries []pluginSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summaries))
	require.Len(t, summaries, 1)
	assert.Equal(t, "image-policy", summaries[0].Name)

	// DELETE removes, second DELETE is a 404
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/plugins/image-policy", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/plugins/image-policy", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestManagementTokenGuard(t *testing.T) {
	runtime, err := sandbox.NewRuntime()
	require.NoError(t, err)
	reg := registry.NewRegistry(runtime, nil)
	hash, err := bcrypt.GenerateFromPassword([]byte("secret-token"), bcrypt.MinCost)
	require.NoError(t, err)
	s, err := NewServer(Params{
		Registry:  reg,
		Runtime:   runtime,
		TokenHash: hash,
	})
	require.NoError(t, err)
	handler := s.Routes()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/plugins", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/plugins", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAggregateCollisionKeepsFirst(t *testing.T) {
	results := []pluginResult{
		{name: "alpha", output: admission.PluginOutput{Allowed: true, AuditAnnotations: map[string]string{"k": "first"}}},
		{name: "alpha", output: admission.PluginOutput{Allowed: true, AuditAnnotations: map[string]string{"k": "second"}}},
	}
	v := aggregate(results)
	assert.True(t, v.allowed)
	assert.Equal(t, map[string]string{"alpha/k": "first"}, v.auditAnnotations)
}

func TestAggregateProtocolFailure(t *testing.T) {
	_, err := decodeOutput(nil)
	require.Error(t, err)
	assert.Equal(t, sandbox.PluginProtocol, sandbox.KindOf(err))

	_, err = decodeOutput([]byte("not json"))
	require.Error(t, err)
	assert.Equal(t, sandbox.PluginProtocol, sandbox.KindOf(err))
}
