// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package manager

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	// automatically set GOMEMLIMIT from the container memory limit
	_ "github.com/KimMachineGun/automemlimit"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.elastic.co/apm/v2"
	"go.uber.org/automaxprocs/maxprocs"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/tools/leaderelection/resourcelock"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/cache"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/healthz"
	metricsserver "sigs.k8s.io/controller-runtime/pkg/metrics/server"

	"github.com/stellar/node-operator/pkg/about"
	"github.com/stellar/node-operator/pkg/controller/common/container"
	"github.com/stellar/node-operator/pkg/controller/common/operator"
	controllerscheme "github.com/stellar/node-operator/pkg/controller/common/scheme"
	"github.com/stellar/node-operator/pkg/controller/common/tracing"
	"github.com/stellar/node-operator/pkg/controller/common/tracing/apmclientgo"
	"github.com/stellar/node-operator/pkg/controller/stellarnode"
	ulog "github.com/stellar/node-operator/pkg/utils/log"
	"github.com/stellar/node-operator/pkg/utils/metrics"
	"github.com/stellar/node-operator/pkg/webhook"
)

const (
	DefaultMetricsPort     = 8080
	DefaultWebhookPort     = 9443
	DefaultHealthProbePort = 8081

	// LeaderElectionLeaseName is the name of the lease all operator replicas
	// compete for.
	LeaderElectionLeaseName = "stellar-node-operator-leader"
)

var log = ulog.Log.WithName("manager")

// Command returns the cobra command starting the operator manager.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "manager",
		Short: "Start the operator manager",
		RunE: func(_ *cobra.Command, _ []string) error {
			return doRun()
		},
	}

	cmd.Flags().String(
		operator.ContainerRegistryFlag,
		container.DefaultContainerRegistry,
		"Container registry to use when downloading node images",
	)
	cmd.Flags().String(
		operator.ContainerSuffixFlag,
		"",
		"Suffix to be appended to container images by default, cannot be combined with image customization",
	)
	cmd.Flags().Bool(
		operator.EnableLeaderElectionFlag,
		true,
		"Enable leader election, ensuring at most one active operator per lease",
	)
	cmd.Flags().Bool(
		operator.EnableTracingFlag,
		false,
		"Enable APM tracing in the operator process",
	)
	cmd.Flags().Bool(
		operator.EnableWebhookFlag,
		false,
		"Enable the admission webhook server",
	)
	cmd.Flags().Duration(
		operator.HealthProbeIntervalFlag,
		10*time.Second,
		"Default duration between two health probes of a managed node",
	)
	cmd.Flags().Int(
		operator.MaxConcurrentReconcilesFlag,
		3,
		"Maximum number of concurrent reconciles per controller",
	)
	cmd.Flags().Int(
		operator.MetricsPortFlag,
		DefaultMetricsPort,
		"Port to use for exposing metrics in the Prometheus format, set 0 to disable",
	)
	cmd.Flags().StringSlice(
		operator.NamespacesFlag,
		nil,
		"Comma-separated list of namespaces in which this operator should manage resources, defaults to all namespaces",
	)
	cmd.Flags().String(
		operator.OperatorNamespaceFlag,
		"",
		"Kubernetes namespace the operator runs in",
	)
	cmd.Flags().String(
		operator.PluginConfigMapFlag,
		"stellar-webhook-plugins",
		"Name of the ConfigMap in the operator namespace declaring admission plugins, set empty to disable declarative plugin loading",
	)
	cmd.Flags().String(
		operator.PluginTokenHashFileFlag,
		"",
		"Path to a file containing the bcrypt hash of the plugin management API token, the management API is unauthenticated when empty",
	)
	cmd.Flags().String(
		operator.WebhookCertDirFlag,
		"/tmp/k8s-webhook-server/serving-certs",
		"Path to the directory that contains the webhook server key and certificate",
	)
	cmd.Flags().Int(
		operator.WebhookPortFlag,
		DefaultWebhookPort,
		"Port the webhook server binds to",
	)
	ulog.BindFlags(cmd.Flags())

	// enable dashed notation in flags and underscores in env
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		log.Error(err, "Unexpected error while binding flags")
		os.Exit(1)
	}
	viper.AutomaticEnv()

	return cmd
}

func doRun() error {
	var tracer *apm.Tracer
	if viper.GetBool(operator.EnableTracingFlag) {
		tracer = tracing.NewTracer("stellar-node-operator")
	}
	ulog.InitLogger(ulog.WithTracer(tracer))
	if tracer != nil {
		defer tracer.Close()
	}

	// adjust GOMAXPROCS to the container CPU limit
	if _, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...interface{}) {
		log.Info(fmt.Sprintf(format, args...))
	})); err != nil {
		log.Error(err, "Error setting GOMAXPROCS")
	}

	return startOperator(ctrl.SetupSignalHandler(), tracer)
}

func startOperator(ctx context.Context, tracer *apm.Tracer) error {
	operatorNamespace := viper.GetString(operator.OperatorNamespaceFlag)
	if operatorNamespace == "" {
		return fmt.Errorf("%s is a required flag", operator.OperatorNamespaceFlag)
	}

	if err := controllerscheme.SetupScheme(); err != nil {
		return errors.Wrap(err, "setting up scheme")
	}

	container.SetContainerRegistry(viper.GetString(operator.ContainerRegistryFlag))
	if suffix := viper.GetString(operator.ContainerSuffixFlag); suffix != "" {
		container.SetContainerSuffix(suffix)
	}

	cfg, err := ctrl.GetConfig()
	if err != nil {
		return errors.Wrap(err, "loading kubeconfig")
	}
	if tracer != nil {
		cfg.Wrap(func(rt http.RoundTripper) http.RoundTripper {
			return apmclientgo.WrapRoundTripper(rt)
		})
	}

	opts := ctrl.Options{
		Scheme:                     clientgoscheme.Scheme,
		LeaderElection:             viper.GetBool(operator.EnableLeaderElectionFlag),
		LeaderElectionResourceLock: resourcelock.LeasesResourceLock,
		LeaderElectionID:           LeaderElectionLeaseName,
		LeaderElectionNamespace:    operatorNamespace,
		HealthProbeBindAddress:     fmt.Sprintf(":%d", DefaultHealthProbePort),
	}

	metricsPort := viper.GetInt(operator.MetricsPortFlag)
	opts.Metrics = metricsserver.Options{BindAddress: "0"} // disabled
	if metricsPort != 0 {
		log.Info("Exposing Prometheus metrics on /metrics", "port", metricsPort)
		opts.Metrics = metricsserver.Options{BindAddress: fmt.Sprintf(":%d", metricsPort)}
	}

	managedNamespaces := viper.GetStringSlice(operator.NamespacesFlag)
	if len(managedNamespaces) == 0 {
		log.Info("Operator configured to manage all namespaces")
	} else {
		log.Info("Operator configured to manage multiple namespaces", "namespaces", managedNamespaces, "operator_namespace", operatorNamespace)
		defaultNamespaces := make(map[string]cache.Config, len(managedNamespaces)+1)
		for _, ns := range managedNamespaces {
			defaultNamespaces[ns] = cache.Config{}
		}
		// the operator namespace holds the plugin ConfigMap and the identity holder
		defaultNamespaces[operatorNamespace] = cache.Config{}
		opts.Cache = cache.Options{DefaultNamespaces: defaultNamespaces}
	}

	mgr, err := ctrl.NewManager(cfg, opts)
	if err != nil {
		return errors.Wrap(err, "creating controller manager")
	}

	// the manager cache is not started yet, resolve the operator identity
	// through a direct client
	directClient, err := client.New(cfg, client.Options{Scheme: clientgoscheme.Scheme})
	if err != nil {
		return errors.Wrap(err, "creating direct client")
	}
	operatorInfo, err := about.GetOperatorInfo(ctx, directClient, cfg, operatorNamespace)
	if err != nil {
		return errors.Wrap(err, "resolving operator identity")
	}
	log.Info("Setting up the operator",
		"version", operatorInfo.BuildInfo.VersionString(),
		"uuid", operatorInfo.OperatorUUID,
		"namespace", operatorNamespace,
		"distribution", operatorInfo.KubernetesDistribution,
	)

	params := operator.Parameters{
		OperatorNamespace:       operatorNamespace,
		OperatorInfo:            operatorInfo,
		ManagedNamespaces:       managedNamespaces,
		MaxConcurrentReconciles: viper.GetInt(operator.MaxConcurrentReconcilesFlag),
		HealthProbeInterval:     viper.GetDuration(operator.HealthProbeIntervalFlag),
		WebhookCertDir:          viper.GetString(operator.WebhookCertDirFlag),
		PluginConfigMapName:     viper.GetString(operator.PluginConfigMapFlag),
		Tracer:                  tracer,
	}

	if err := stellarnode.Add(mgr, params); err != nil {
		return errors.Wrap(err, "registering the StellarNode controller")
	}

	if viper.GetBool(operator.EnableWebhookFlag) {
		tokenHash, err := readTokenHash(viper.GetString(operator.PluginTokenHashFileFlag))
		if err != nil {
			return err
		}
		webhookParams := webhook.Params{
			Address:   fmt.Sprintf(":%d", viper.GetInt(operator.WebhookPortFlag)),
			CertDir:   params.WebhookCertDir,
			TokenHash: tokenHash,
		}
		if err := webhook.Setup(mgr, webhookParams, params); err != nil {
			return errors.Wrap(err, "setting up the admission webhook")
		}
	}

	if err := mgr.AddHealthzCheck("ping", healthz.Ping); err != nil {
		return errors.Wrap(err, "adding healthz check")
	}
	// only the elected instance reports ready so that per-replica Services
	// route traffic to the active operator
	if err := mgr.AddReadyzCheck("elected", func(_ *http.Request) error {
		select {
		case <-mgr.Elected():
			return nil
		default:
			return fmt.Errorf("this instance is not the elected leader")
		}
	}); err != nil {
		return errors.Wrap(err, "adding readyz check")
	}

	go func() {
		<-mgr.Elected()
		log.Info("Acquired leader election lease", "lease", LeaderElectionLeaseName)
		metrics.Leader.WithLabelValues(string(operatorInfo.OperatorUUID), operatorNamespace).Set(1)
	}()

	log.Info("Starting the manager")
	if err := mgr.Start(ctx); err != nil {
		select {
		case <-mgr.Elected():
			// failing while holding the lease must not leave this replica
			// competing for it again without a restart
			log.Error(err, "Manager stopped after leadership was acquired, exiting")
			os.Exit(2)
		default:
		}
		return errors.Wrap(err, "starting the manager")
	}
	return nil
}

// readTokenHash loads the bcrypt hash protecting the plugin management API.
// An empty path disables authentication.
func readTokenHash(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	hash, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	hash = []byte(strings.TrimSpace(string(hash)))
	if len(hash) == 0 {
		return nil, fmt.Errorf("token hash file %s is empty", path)
	}
	return hash, nil
}
