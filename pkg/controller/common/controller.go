// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package common

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	"go.elastic.co/apm/v2"
	"sigs.k8s.io/controller-runtime/pkg/controller"
	"sigs.k8s.io/controller-runtime/pkg/manager"
	"sigs.k8s.io/controller-runtime/pkg/reconcile"

	"github.com/stellar/node-operator/pkg/controller/common/operator"
	"github.com/stellar/node-operator/pkg/controller/common/tracing"
	logconf "github.com/stellar/node-operator/pkg/utils/log"
)

// NewController registers a new controller with the manager, wiring the shared
// concurrency setting from the operator parameters.
func NewController(mgr manager.Manager, name string, r reconcile.Reconciler, p operator.Parameters) (controller.Controller, error) {
	return controller.New(name, mgr, controller.Options{
		Reconciler:              r,
		MaxConcurrentReconciles: p.MaxConcurrentReconciles,
	})
}

// NewReconciliationContext increments iteration, creates an apm transaction and sets up a logger
// with the relevant reconciliation metadata in the returned context.
func NewReconciliationContext(
	ctx context.Context, iteration *uint64, tracer *apm.Tracer, controllerName, nameField string, request reconcile.Request,
) context.Context {
	it := atomic.AddUint64(iteration, 1)
	itString := strconv.FormatUint(it, 10)
	newCtx := logconf.AddToContext(ctx, logconf.FromContext(ctx).WithValues(
		"iteration", itString,
		"namespace", request.Namespace,
		nameField, request.Name,
	))
	newCtx = tracing.NewContextTransaction(newCtx, tracer, tracing.ReconciliationTxType, controllerName, map[string]string{"iteration": itString})
	// correlate logs with the APM transaction, if any
	return logconf.AddToContext(newCtx, tracing.LoggerFromContext(newCtx))
}

// LogReconciliationRun logs the start of a reconciliation run and returns a function
// logging its end together with the duration.
func LogReconciliationRun(log logr.Logger) func() {
	log.V(1).Info("Starting reconciliation run")
	startTime := time.Now()
	return func() {
		totalTime := time.Since(startTime)
		log.V(1).Info("Ending reconciliation run", "took", totalTime)
	}
}
