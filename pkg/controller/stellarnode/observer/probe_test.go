// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package observer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	stellarv1alpha1 "github.com/stellar/node-operator/pkg/apis/stellarnode/v1alpha1"
)

func TestProbeCore(t *testing.T) {
	for _, tt := range []struct {
		name       string
		body       string
		statusCode int
		want       Health
	}{
		{
			name: "synced core is healthy",
			body: `{"info": {"state": "Synced!", "ledger": {"num": 123456}}}`,
			want: Health{Status: HealthHealthy, LedgerSequence: 123456},
		},
		{
			name: "catching up core is unhealthy",
			body: `{"info": {"state": "Catching up", "ledger": {"num": 100}}}`,
			want: Health{Status: HealthUnhealthy, Reason: `core state is "Catching up"`},
		},
		{
			name:       "http error is unhealthy",
			body:       `{}`,
			statusCode: http.StatusInternalServerError,
			want:       Health{Status: HealthUnhealthy, Reason: "probe returned HTTP 500"},
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/info", r.URL.Path)
				if tt.statusCode != 0 {
					w.WriteHeader(tt.statusCode)
				}
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			got := Probe(context.Background(), server.Client(), stellarv1alpha1.NodeTypeValidator, server.URL)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProbeHorizon(t *testing.T) {
	for _, tt := range []struct {
		name string
		body string
		want Health
	}{
		{
			name: "ingestion caught up",
			body: `{"core_latest_ledger": 500, "ingest_latest_ledger": 500}`,
			want: Health{Status: HealthHealthy, LedgerSequence: 500},
		},
		{
			name: "one ledger behind is still healthy",
			body: `{"core_latest_ledger": 500, "ingest_latest_ledger": 499}`,
			want: Health{Status: HealthHealthy, LedgerSequence: 499},
		},
		{
			name: "ingestion lagging",
			body: `{"core_latest_ledger": 500, "ingest_latest_ledger": 400}`,
			want: Health{Status: HealthUnhealthy, Reason: "ingestion at ledger 400 behind core at 500"},
		},
		{
			name: "core not started",
			body: `{"core_latest_ledger": 0, "ingest_latest_ledger": 0}`,
			want: Health{Status: HealthUnhealthy, Reason: "ingestion at ledger 0 behind core at 0"},
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			got := Probe(context.Background(), server.Client(), stellarv1alpha1.NodeTypeHorizon, server.URL)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProbeSoroban(t *testing.T) {
	for _, tt := range []struct {
		name string
		body string
		want Health
	}{
		{
			name: "healthy rpc",
			body: `{"jsonrpc": "2.0", "id": 1, "result": {"status": "healthy", "latestLedger": 777}}`,
			want: Health{Status: HealthHealthy, LedgerSequence: 777},
		},
		{
			name: "unhealthy rpc status",
			body: `{"jsonrpc": "2.0", "id": 1, "result": {"status": "unhealthy"}}`,
			want: Health{Status: HealthUnhealthy, Reason: `rpc status is "unhealthy"`},
		},
		{
			name: "rpc error",
			body: `{"jsonrpc": "2.0", "id": 1, "error": {"code": -32601, "message": "method not found"}}`,
			want: Health{Status: HealthUnhealthy, Reason: "method not found"},
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			got := Probe(context.Background(), server.Client(), stellarv1alpha1.NodeTypeSorobanRpc, server.URL)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProbeUnreachableNodeIsUnknown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // probe against a closed server

	got := Probe(context.Background(), http.DefaultClient, stellarv1alpha1.NodeTypeValidator, server.URL)
	assert.Equal(t, HealthUnknown, got.Status)
	assert.NotEmpty(t, got.Reason)
}
