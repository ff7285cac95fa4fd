// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package observer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.elastic.co/apm/module/apmhttp/v2"

	stellarv1alpha1 "github.com/stellar/node-operator/pkg/apis/stellarnode/v1alpha1"
	"github.com/stellar/node-operator/pkg/utils/net"
)

// probeTimeout is the hard per-probe deadline. No retries within a probe.
const probeTimeout = 60 * time.Second

// maxProbeBodySize guards against unexpectedly large responses.
const maxProbeBodySize = 1 << 20

// coreSyncedState is the state string reported by a synced stellar-core.
const coreSyncedState = "Synced!"

// NewProbeClient returns the HTTP client used for sync-status probes. A
// non-nil dialer replaces the default connection dialing, e.g. to tunnel
// probes through a port-forwarder in development.
func NewProbeClient(dialer net.Dialer) *http.Client {
	client := &http.Client{Timeout: probeTimeout}
	if dialer != nil {
		client.Transport = &http.Transport{DialContext: dialer.DialContext}
	}
	return apmhttp.WrapClient(client)
}

// Probe issues a single sync-status probe against the node API and returns a
// pure verdict. It never mutates cluster state.
func Probe(ctx context.Context, httpClient *http.Client, nodeType stellarv1alpha1.NodeType, baseURL string) Health {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	switch nodeType {
	case stellarv1alpha1.NodeTypeValidator:
		return probeCore(ctx, httpClient, baseURL)
	case stellarv1alpha1.NodeTypeHorizon:
		return probeHorizon(ctx, httpClient, baseURL)
	default:
		return probeSoroban(ctx, httpClient, baseURL)
	}
}

func probeCore(ctx context.Context, httpClient *http.Client, baseURL string) Health {
	var body struct {
		Info struct {
			State  string `json:"state"`
			Ledger struct {
				Num int64 `json:"num"`
			} `json:"ledger"`
		} `json:"info"`
	}
	if health, ok := getJSON(ctx, httpClient, baseURL+"/info", &body); !ok {
		return health
	}
	if body.Info.State != coreSyncedState {
		return Health{Status: HealthUnhealthy, Reason: fmt.Sprintf("core state is %q", body.Info.State)}
	}
	return Health{Status: HealthHealthy, LedgerSequence: body.Info.Ledger.Num}
}

func probeHorizon(ctx context.Context, httpClient *http.Client, baseURL string) Health {
	var body struct {
		CoreLatestLedger   int64 `json:"core_latest_ledger"`
		IngestLatestLedger int64 `json:"ingest_latest_ledger"`
	}
	if health, ok := getJSON(ctx, httpClient, baseURL+"/", &body); !ok {
		return health
	}
	// ingestion trailing core by more than one ledger means not caught up
	if body.CoreLatestLedger == 0 || body.IngestLatestLedger < body.CoreLatestLedger-1 {
		return Health{
			Status: HealthUnhealthy,
			Reason: fmt.Sprintf("ingestion at ledger %d behind core at %d", body.IngestLatestLedger, body.CoreLatestLedger),
		}
	}
	return Health{Status: HealthHealthy, LedgerSequence: body.IngestLatestLedger}
}

func probeSoroban(ctx context.Context, httpClient *http.Client, baseURL string) Health {
	request := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "getHealth",
	}
	payload, err := json.Marshal(request)
	if err != nil {
		return Health{Status: HealthUnknown, Reason: err.Error()}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL, bytes.NewReader(payload))
	if err != nil {
		return Health{Status: HealthUnknown, Reason: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return Health{Status: HealthUnknown, Reason: err.Error()}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Health{Status: HealthUnhealthy, Reason: fmt.Sprintf("probe returned HTTP %d", resp.StatusCode)}
	}

	var body struct {
		Result struct {
			Status       string `json:"status"`
			LatestLedger int64  `json:"latestLedger"`
		} `json:"result"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxProbeBodySize)).Decode(&body); err != nil {
		return Health{Status: HealthUnknown, Reason: err.Error()}
	}
	if body.Error != nil {
		return Health{Status: HealthUnhealthy, Reason: body.Error.Message}
	}
	if body.Result.Status != "healthy" {
		return Health{Status: HealthUnhealthy, Reason: fmt.Sprintf("rpc status is %q", body.Result.Status)}
	}
	return Health{Status: HealthHealthy, LedgerSequence: body.Result.LatestLedger}
}

// getJSON issues a GET and decodes a 2xx JSON body into out. On any other
// outcome it returns the verdict to surface and ok=false.
func getJSON(ctx context.Context, httpClient *http.Client, url string, out interface{}) (Health, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Health{Status: HealthUnknown, Reason: err.Error()}, false
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return Health{Status: HealthUnknown, Reason: err.Error()}, false
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Health{Status: HealthUnhealthy, Reason: fmt.Sprintf("probe returned HTTP %d", resp.StatusCode)}, false
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxProbeBodySize)).Decode(out); err != nil {
		return Health{Status: HealthUnknown, Reason: err.Error()}, false
	}
	return Health{}, true
}
