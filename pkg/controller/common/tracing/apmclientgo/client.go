// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

// Package apmclientgo traces client-go requests to the API server as APM
// spans, attached to the transaction found in the request context.
package apmclientgo

import (
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"unsafe"

	"github.com/pkg/errors"
	"go.elastic.co/apm/module/apmhttp/v2"
	"go.elastic.co/apm/v2"
)

// WrapRoundTripper wraps rt so that each request is reported as a span when
// the request context carries a sampled transaction. An optional fallback
// transaction factory covers requests whose context cannot be controlled,
// like client-go's informer cache management.
func WrapRoundTripper(rt http.RoundTripper, opts ...ClientOption) http.RoundTripper {
	if rt == nil {
		rt = http.DefaultTransport
	}
	wrapped := &roundTripper{next: rt}
	for _, o := range opts {
		o(wrapped)
	}
	return wrapped
}

// ClientOption sets options for tracing client requests.
type ClientOption func(*roundTripper)

// WithDefaultTransaction makes the round tripper start a transaction from f
// for requests that do not carry one already.
func WithDefaultTransaction(f func() *apm.Transaction) ClientOption {
	return func(rt *roundTripper) {
		rt.fallbackTx = f
	}
}

type roundTripper struct {
	next       http.RoundTripper
	fallbackTx func() *apm.Transaction
}

func (r roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	tx := apm.TransactionFromContext(ctx)
	if tx == nil && r.fallbackTx != nil {
		tx = r.fallbackTx()
		if tx != nil {
			defer tx.End()
		}
	}
	if tx == nil {
		return r.next.RoundTrip(req)
	}
	traceContext := tx.TraceContext()
	if !tx.Sampled() {
		apmhttp.SetHeaders(req, traceContext, false)
		return r.next.RoundTrip(req)
	}

	propagateLegacyHeader := tx.ShouldPropagateLegacyHeader()
	statement := requestName(req)
	span := tx.StartSpan("Kubernetes: "+statement, "db.kubernetes", apm.SpanFromContext(ctx))
	if span.Dropped() {
		span.End()
		apmhttp.SetHeaders(req, traceContext, propagateLegacyHeader)
		return r.next.RoundTrip(req)
	}

	traceContext = span.TraceContext()
	req = apmhttp.RequestWithContext(apm.ContextWithSpan(ctx, span), req)
	span.Context.SetHTTPRequest(req)
	span.Context.SetDestinationService(apm.DestinationServiceSpanContext{
		Name:     "Kubernetes API server",
		Resource: "Kubernetes",
	})
	span.Context.SetDatabase(apm.DatabaseSpanContext{
		Statement: statement,
		Type:      "kubernetes",
	})

	apmhttp.SetHeaders(req, traceContext, propagateLegacyHeader)
	resp, err := r.next.RoundTrip(req)
	if err != nil {
		span.End()
		return resp, err
	}
	span.Context.SetHTTPStatusCode(resp.StatusCode)
	// the span stays open until the caller drains or closes the body
	resp.Body = &responseBody{span: span, body: resp.Body}
	return resp, nil
}

// CloseIdleConnections forwards to the wrapped transport if supported.
func (r *roundTripper) CloseIdleConnections() {
	type closeIdler interface {
		CloseIdleConnections()
	}
	if tr, ok := r.next.(closeIdler); ok {
		tr.CloseIdleConnections()
	}
}

// CancelRequest forwards to the wrapped transport if supported.
func (r *roundTripper) CancelRequest(req *http.Request) {
	type cancelRequester interface {
		CancelRequest(*http.Request)
	}
	if tr, ok := r.next.(cancelRequester); ok {
		tr.CancelRequest(req)
	}
}

// requestName summarizes a request as "<verb> <trailing path>", with watch
// requests called out explicitly and PUT requests keeping the namespace
// segment for context.
func requestName(req *http.Request) string {
	statement := req.Method
	numSegments := 2
	if req.Method == http.MethodPut {
		numSegments = 3
	}
	if req.URL.Query().Get("watch") == "true" {
		statement = "WATCH"
	}

	pathSegments := strings.Split(req.URL.Path, "/")
	path := strings.Join(pathSegments[len(pathSegments)-numSegments:], "/")
	return statement + " " + path
}

type responseBody struct {
	span *apm.Span
	body io.ReadCloser
}

// Close closes the response body and ends the span if still open.
func (b *responseBody) Close() error {
	b.endSpan()
	return b.body.Close()
}

// Read reads from the response body, ending the span at io.EOF.
func (b *responseBody) Read(p []byte) (n int, err error) {
	n, err = b.body.Read(p)
	if errors.Is(err, io.EOF) {
		b.endSpan()
	}
	return n, err
}

func (b *responseBody) endSpan() {
	addr := (*unsafe.Pointer)(unsafe.Pointer(&b.span))
	if old := atomic.SwapPointer(addr, nil); old != nil {
		(*apm.Span)(old).End()
	}
}
