// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

// Package webhook wires the admission server, the plugin sandbox and the
// plugin registry into the operator manager.
package webhook

import (
	"github.com/pkg/errors"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/manager"

	"github.com/stellar/node-operator/pkg/admission/registry"
	"github.com/stellar/node-operator/pkg/admission/sandbox"
	"github.com/stellar/node-operator/pkg/admission/server"
	"github.com/stellar/node-operator/pkg/controller/common/operator"
)

// Params configure the webhook stack.
type Params struct {
	// Address is the bind address of the admission server, defaults to :8443.
	Address string
	// CertDir holds the tls.crt/tls.key pair the server presents.
	CertDir string
	// TokenHash optionally protects the plugin management API.
	TokenHash []byte
}

// Setup builds the sandbox runtime, the registry and the admission server and
// registers them with the manager. The declarative plugin ConfigMap named in
// the operator parameters is watched for hot reloads.
func Setup(mgr manager.Manager, params Params, operatorParams operator.Parameters) error {
	runtime, err := sandbox.NewRuntime()
	if err != nil {
		return errors.Wrap(err, "building plugin sandbox")
	}
	reg := registry.NewRegistry(runtime, mgr.GetClient())

	if operatorParams.PluginConfigMapName != "" {
		configMap := types.NamespacedName{
			Namespace: operatorParams.OperatorNamespace,
			Name:      operatorParams.PluginConfigMapName,
		}
		if err := registry.WatchConfigMap(mgr, reg, configMap, operatorParams); err != nil {
			return errors.Wrap(err, "watching plugin ConfigMap")
		}
	}

	admissionServer, err := server.NewServer(server.Params{
		Address:   params.Address,
		CertDir:   params.CertDir,
		TokenHash: params.TokenHash,
		Registry:  reg,
		Runtime:   runtime,
	})
	if err != nil {
		return errors.Wrap(err, "building admission server")
	}
	return mgr.Add(admissionServer)
}
