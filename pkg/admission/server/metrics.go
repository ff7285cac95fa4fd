// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	crmetrics "sigs.k8s.io/controller-runtime/pkg/metrics"
)

var (
	pluginExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stellar_operator",
			Subsystem: "admission",
			Name:      "plugin_executions_total",
			Help:      "Number of admission plugin executions, broken down by plugin and outcome.",
		},
		[]string{"plugin", "outcome"},
	)
	pluginDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "stellar_operator",
			Subsystem: "admission",
			Name:      "plugin_execution_duration_seconds",
			Help:      "Wall-clock duration of admission plugin executions.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0},
		},
		[]string{"plugin"},
	)
)

func init() {
	crmetrics.Registry.MustRegister(pluginExecutions, pluginDuration)
}

func observeExecution(plugin, outcome string, took time.Duration) {
	pluginExecutions.WithLabelValues(plugin, outcome).Inc()
	pluginDuration.WithLabelValues(plugin).Observe(took.Seconds())
}
