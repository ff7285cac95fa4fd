// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

// Package server implements the admission webhook HTTP service: the /validate
// and /mutate AdmissionReview endpoints backed by sandboxed plugins, the
// plugin management API and the health endpoints.
package server

import (
	"context"
	"crypto/tls"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/stellar/node-operator/pkg/admission"
	"github.com/stellar/node-operator/pkg/admission/registry"
	"github.com/stellar/node-operator/pkg/admission/sandbox"
	"github.com/stellar/node-operator/pkg/utils/cryptutil"
	ulog "github.com/stellar/node-operator/pkg/utils/log"
)

var log = ulog.Log.WithName("admission-server")

const (
	// reviewBudget is the Kubernetes webhook timeout. Plugin execution gets
	// slightly less so the synthesized response still makes it out in time.
	reviewBudget = 10 * time.Second
	// responseMargin is reserved for aggregation and serialization.
	responseMargin = 500 * time.Millisecond

	// CertFileName and KeyFileName are the expected file names inside the
	// configured certificate directory.
	CertFileName = "tls.crt"
	KeyFileName  = "tls.key"
)

// Params configure the admission server.
type Params struct {
	// Address is the bind address, defaults to :8443.
	Address string
	// CertDir holds tls.crt and tls.key. TLS is mandatory.
	CertDir string
	// TokenHash is an optional bcrypt hash protecting the management API.
	// Empty means the API trusts the network (e.g. mTLS enforced upstream).
	TokenHash []byte
	Registry  *registry.Registry
	Runtime   *sandbox.Runtime
}

// Server serves the admission and plugin management endpoints.
type Server struct {
	address  string
	certDir  string
	registry *registry.Registry
	runtime  *sandbox.Runtime
	verifier cryptutil.TokenVerifier
}

// NewServer builds the server from its parameters.
func NewServer(params Params) (*Server, error) {
	address := params.Address
	if address == "" {
		address = ":8443"
	}
	var verifier cryptutil.TokenVerifier
	if len(params.TokenHash) > 0 {
		var err error
		verifier, err = cryptutil.NewTokenVerifier(params.TokenHash, 64)
		if err != nil {
			return nil, errors.Wrap(err, "building management token verifier")
		}
	}
	return &Server{
		address:  address,
		certDir:  params.CertDir,
		registry: params.Registry,
		runtime:  params.Runtime,
		verifier: verifier,
	}, nil
}

type ctxKey int

const requestIDKey ctxKey = iota

// withRequestID tags every request with a correlation ID so plugin executions
// can be traced back to the originating review. A client-supplied X-Request-Id
// is preserved, anything else gets a fresh UUID.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		id := req.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, req.WithContext(context.WithValue(req.Context(), requestIDKey, id)))
	})
}

func requestIDOf(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// Routes builds the HTTP handler tree.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(withRequestID)
	r.Post("/validate", s.handleValidate)
	r.Post("/mutate", s.handleMutate)
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Route("/plugins", func(r chi.Router) {
		r.Use(s.requireManagementToken)
		r.Get("/", s.handleListPlugins)
		r.Post("/", s.handleLoadPlugin)
		r.Delete("/{name}", s.handleUnloadPlugin)
	})
	return r
}

// Start runs the HTTPS server until the context is cancelled. It satisfies
// manager.Runnable so the operator manager owns its lifecycle.
func (s *Server) Start(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.address,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		TLSConfig:         &tls.Config{MinVersion: tls.VersionTLS12},
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting admission server", "address", s.address)
		errChan <- httpServer.ListenAndServeTLS(
			filepath.Join(s.certDir, CertFileName),
			filepath.Join(s.certDir, KeyFileName),
		)
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}

// NeedLeaderElection keeps the webhook serving on every replica: admission
// must answer even when this replica is not the active reconciler.
func (s *Server) NeedLeaderElection() bool {
	return false
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// handleReady gates readiness on at least one loaded plugin, so the API
// server does not route reviews to a replica that would fail everything open.
func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if !s.registry.Ready() {
		http.Error(w, "no plugin loaded", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// pluginResult is the outcome of one plugin invocation within a review.
type pluginResult struct {
	name     string
	failOpen bool
	output   admission.PluginOutput
	err      error
}

// execute fans a review out to the selected plugins in parallel, each under
// its own quota, all bounded by the shared review budget. Results come back
// in the order of the (lexicographically sorted) plugin slice so aggregation
// is deterministic.
func (s *Server) execute(ctx context.Context, plugins []*registry.Plugin, input admission.PluginInput) []pluginResult {
	serialized, err := encodeInput(input)
	if err != nil {
		results := make([]pluginResult, len(plugins))
		for i, p := range plugins {
			results[i] = pluginResult{name: p.Name, failOpen: p.FailOpen, err: err}
		}
		return results
	}

	ctx, cancel := context.WithTimeout(ctx, reviewBudget-responseMargin)
	defer cancel()

	results := make([]pluginResult, len(plugins))
	var wg sync.WaitGroup
	for i, plugin := range plugins {
		wg.Add(1)
		go func(i int, plugin *registry.Plugin) {
			defer wg.Done()
			results[i] = s.executeOne(ctx, plugin, serialized)
		}(i, plugin)
	}
	wg.Wait()
	return results
}

// executeOne runs a single plugin and decodes its verdict.
func (s *Server) executeOne(ctx context.Context, plugin *registry.Plugin, input []byte) pluginResult {
	start := time.Now()
	result := pluginResult{name: plugin.Name, failOpen: plugin.FailOpen}

	raw, err := s.runtime.Execute(ctx, plugin.Module, input, plugin.Limits)
	if err != nil {
		result.err = err
		observeExecution(plugin.Name, string(sandbox.KindOf(err)), time.Since(start))
		return result
	}
	output, err := decodeOutput(raw)
	if err != nil {
		result.err = err
		observeExecution(plugin.Name, string(sandbox.PluginProtocol), time.Since(start))
		return result
	}
	result.output = output
	outcome := "allowed"
	if !output.Allowed {
		outcome = "denied"
	}
	observeExecution(plugin.Name, outcome, time.Since(start))
	return result
}
