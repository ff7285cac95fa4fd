// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package operator

const (
	ContainerRegistryFlag       = "container-registry"
	ContainerSuffixFlag         = "container-suffix"
	EnableLeaderElectionFlag    = "enable-leader-election"
	EnableTracingFlag           = "enable-tracing"
	EnableWebhookFlag           = "enable-webhook"
	HealthProbeIntervalFlag     = "health-probe-interval"
	MaxConcurrentReconcilesFlag = "max-concurrent-reconciles"
	MetricsPortFlag             = "metrics-port"
	NamespacesFlag              = "namespaces"
	OperatorNamespaceFlag       = "operator-namespace"
	PluginConfigMapFlag         = "plugin-configmap"
	PluginTokenHashFileFlag     = "plugin-token-hash-file"
	WebhookCertDirFlag          = "webhook-cert-dir"
	WebhookPortFlag             = "webhook-port"
)
