// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package operator

import (
	"time"

	"go.elastic.co/apm/v2"

	"github.com/stellar/node-operator/pkg/about"
	"github.com/stellar/node-operator/pkg/utils/net"
)

// Parameters contain parameters to create new controllers.
type Parameters struct {
	// OperatorNamespace is the control plane namespace of the operator.
	OperatorNamespace string
	// OperatorInfo is information about the operator.
	OperatorInfo about.OperatorInfo
	// ManagedNamespaces is the list of namespaces the operator watches. Empty means all.
	ManagedNamespaces []string
	// Dialer is used to create the HTTP client probing node pods.
	Dialer net.Dialer
	// MaxConcurrentReconciles controls the number of goroutines per controller.
	MaxConcurrentReconciles int
	// HealthProbeInterval is the period between two node health probes.
	HealthProbeInterval time.Duration
	// WebhookCertDir is the directory holding the webhook server certificate and key.
	WebhookCertDir string
	// PluginConfigMapName names the ConfigMap holding declarative webhook plugin descriptors.
	PluginConfigMapName string
	// Tracer is a shared APM tracer instance or nil.
	Tracer *apm.Tracer
}
