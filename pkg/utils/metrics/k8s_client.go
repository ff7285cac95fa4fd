// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package metrics

import (
	"context"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	clmetrics "k8s.io/client-go/tools/metrics"
	crmetrics "sigs.k8s.io/controller-runtime/pkg/metrics"
)

// rateLimiterLatency surfaces how long API requests wait in the client-side
// rate limiter, the usual suspect when reconciliations feel sluggish.
var rateLimiterLatency = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "k8s_client_rate_limiter_duration_seconds",
		Help:      "Kubernetes client rate limiter latency in seconds, by verb and host.",
		Buckets:   []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1.0, 2.0, 4.0, 8.0, 15.0, 30.0, 60.0},
	},
	[]string{"verb", "host"},
)

var _ clmetrics.LatencyMetric = &latencyMetrics{}

func init() {
	crmetrics.Registry.MustRegister(rateLimiterLatency)
	clmetrics.RateLimiterLatency = &latencyMetrics{histogram: rateLimiterLatency}
}

// latencyMetrics adapts the histogram to the client-go LatencyMetric hook.
type latencyMetrics struct {
	histogram *prometheus.HistogramVec
}

func (c *latencyMetrics) Observe(_ context.Context, verb string, u url.URL, latency time.Duration) {
	c.histogram.WithLabelValues(verb, u.Host).Observe(latency.Seconds())
}
