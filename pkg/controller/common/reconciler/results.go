// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package reconciler

import (
	"context"
	"time"

	k8serrors "k8s.io/apimachinery/pkg/util/errors"
	"sigs.k8s.io/controller-runtime/pkg/reconcile"
)

type resultKind int

const (
	noqueueKind  resultKind = iota // reconcile.Result{}
	specificKind                   // reconcile.Result{RequeueAfter: x}
	genericKind                    // reconcile.Result{Requeue: true}
)

// Requeue is a fluent convenience to requeue the reconciliation without a specific delay.
var Requeue = ReconciliationState{Result: reconcile.Result{Requeue: true}} //nolint:staticcheck

// RequeueAfter returns a ReconciliationState that requeues after the given duration.
func RequeueAfter(requeueAfter time.Duration) ReconciliationState {
	return ReconciliationState{Result: reconcile.Result{RequeueAfter: requeueAfter}}
}

// ReconciliationState extends a reconcile.Result with the reason why a requeue is necessary
// and whether the resource can still be considered fully reconciled.
type ReconciliationState struct {
	Result reconcile.Result
	// isReconciled, if true, marks the requeue as a maintenance rescheduling rather than
	// an incomplete reconciliation.
	isReconciled bool
	reason       string
}

// WithReason attaches a human-readable reason for the requeue, surfaced in the resource status.
func (s ReconciliationState) WithReason(reason string) ReconciliationState {
	return ReconciliationState{
		Result:       s.Result,
		isReconciled: s.isReconciled,
		reason:       reason,
	}
}

// ReconciliationComplete marks this state as not preventing the overall reconciliation
// from being reported as complete, e.g. a scheduled recheck far in the future.
func (s ReconciliationState) ReconciliationComplete() ReconciliationState {
	return ReconciliationState{
		Result:       s.Result,
		isReconciled: true,
		reason:       s.reason,
	}
}

func kindOf(r reconcile.Result) resultKind {
	switch {
	case r.RequeueAfter > 0:
		return specificKind
	case r.Requeue: //nolint:staticcheck
		return genericKind
	default:
		return noqueueKind
	}
}

// MaximumRequeueAfter is the maximum period of time in which we requeue a reconciliation.
const MaximumRequeueAfter = 10 * time.Hour

// Results collects intermediate results of a reconciliation run and any errors that occurred.
type Results struct {
	currResult ReconciliationState
	currKind   resultKind
	errors     []error
	ctx        context.Context
}

// NewResult returns an empty Results carrying the given context for logging purposes.
func NewResult(ctx context.Context) *Results {
	return &Results{
		ctx: ctx,
	}
}

// HasError returns true if Results contains one or more errors.
func (r *Results) HasError() bool {
	return len(r.errors) > 0
}

// HasRequeue returns true if Results contains a requeue, either specific or generic.
func (r *Results) HasRequeue() bool {
	return r.currKind != noqueueKind
}

// WithResults appends the results and error from the other Results.
func (r *Results) WithResults(other *Results) *Results {
	if other != nil {
		r.mergeResult(other.currKind, other.currResult)
		r.errors = append(r.errors, other.errors...)
	}
	return r
}

// WithError adds an error to the results.
func (r *Results) WithError(err error) *Results {
	if err != nil {
		r.errors = append(r.errors, err)
	}
	return r
}

// WithRequeue requests a requeue, optionally after the given duration. Without argument
// the default generic requeue is applied.
func (r *Results) WithRequeue(requeueAfter ...time.Duration) *Results {
	if len(requeueAfter) == 0 {
		return r.WithResult(reconcile.Result{Requeue: true}) //nolint:staticcheck
	}
	return r.WithResult(reconcile.Result{RequeueAfter: requeueAfter[0]})
}

// WithResult adds a result to the results.
func (r *Results) WithResult(res reconcile.Result) *Results {
	kind := kindOf(res)
	r.mergeResult(kind, ReconciliationState{Result: res})
	return r
}

// WithReconciliationState adds a result with context about the reconciliation status to the results.
func (r *Results) WithReconciliationState(state ReconciliationState) *Results {
	r.mergeResult(kindOf(state.Result), state)
	return r
}

// mergeResult updates the current result if the other result takes precedence over the current one.
// Precedence is as follows:
// - Requeue without delay always takes precedence over a delayed requeue.
// - At equal kind, an unfinished reconciliation takes precedence over a completed one
//   so that a scheduled recheck never masks pending work.
// - A shorter requeue delay takes precedence over a longer one.
func (r *Results) mergeResult(kind resultKind, result ReconciliationState) {
	switch {
	case kind > r.currKind:
		r.currKind = kind
		r.currResult = result
	case kind == specificKind && r.currKind == specificKind:
		switch {
		case r.currResult.isReconciled && !result.isReconciled:
			r.currResult = result
		case result.isReconciled == r.currResult.isReconciled &&
			result.Result.RequeueAfter < r.currResult.Result.RequeueAfter:
			r.currResult = result
		}
	}
}

// IsReconciled returns true if no error has been reported and if there is no
// unfinished reconciliation attempt. If the reconciliation is not complete it
// also attempts to return the reason.
func (r *Results) IsReconciled() (bool, string) {
	if len(r.errors) > 0 {
		return false, r.errors[0].Error()
	}
	if r.currKind == noqueueKind || r.currResult.isReconciled {
		return true, ""
	}
	return false, r.currResult.reason
}

// Aggregate returns the highest priority reconcile result and any errors seen so far.
// The aggregated result RequeueAfter period will not be larger than MaximumRequeueAfter.
func (r *Results) Aggregate() (reconcile.Result, error) {
	current := r.currResult.Result
	if current.RequeueAfter > MaximumRequeueAfter {
		// Restrict the requeue to a fixed short-term value to work around leaky
		// client-go timers on long requeue periods.
		current.RequeueAfter = MaximumRequeueAfter
	}
	return current, k8serrors.NewAggregate(r.errors)
}
