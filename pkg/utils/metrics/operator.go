// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package metrics

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	crmetrics "sigs.k8s.io/controller-runtime/pkg/metrics"
)

const (
	namespace = "stellar_operator"
	LeaderKey = "leader"

	OperatorNamespaceLabel = "operator_namespace"
	UUIDLabel              = "uuid"
)

// Leader is set to 1 on the instance currently holding the leader election
// lease, 0 on the others.
var Leader = registerGauge(prometheus.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: namespace,
	Name:      LeaderKey,
	Help:      "Gauge used to evaluate if an instance is elected",
}, []string{UUIDLabel, OperatorNamespaceLabel}))

func registerGauge(gauge *prometheus.GaugeVec) *prometheus.GaugeVec {
	err := crmetrics.Registry.Register(gauge)
	if err != nil {
		existsErr := new(prometheus.AlreadyRegisteredError)
		if errors.As(err, &existsErr) {
			return existsErr.ExistingCollector.(*prometheus.GaugeVec) //nolint:forcetypeassert
		}

		panic(fmt.Errorf("failed to register gauge: %w", err))
	}

	return gauge
}
