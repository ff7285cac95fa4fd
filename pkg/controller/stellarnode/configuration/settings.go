// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package configuration

import (
	"github.com/pkg/errors"

	stellarv1alpha1 "github.com/stellar/node-operator/pkg/apis/stellarnode/v1alpha1"
)

// Well-known file names inside the rendered configuration ConfigMap.
const (
	CoreConfigFileName        = "stellar-core.cfg"
	HorizonConfigFileName     = "horizon.yml"
	SorobanConfigFileName     = "soroban-rpc.yml"
	CaptiveCoreConfigFileName = "captive-core.cfg"
)

const (
	// HorizonHTTPPort is the Horizon API listen port.
	HorizonHTTPPort = 8000
	// SorobanHTTPPort is the Soroban RPC listen port.
	SorobanHTTPPort = 8000
)

// ConfigMountPath is where the node ConfigMap is mounted in pods.
const ConfigMountPath = "/etc/stellar/config"

// RenderConfigData returns the rendered configuration files for the given node,
// keyed by file name, ready to be stored in the node ConfigMap.
func RenderConfigData(node stellarv1alpha1.StellarNode) (map[string]string, error) {
	switch node.Spec.NodeType {
	case stellarv1alpha1.NodeTypeValidator:
		cfg, err := RenderCoreConfig(node)
		if err != nil {
			return nil, err
		}
		return map[string]string{CoreConfigFileName: string(cfg)}, nil

	case stellarv1alpha1.NodeTypeHorizon:
		cfg, err := horizonSettings(node).Render()
		if err != nil {
			return nil, err
		}
		return map[string]string{HorizonConfigFileName: string(cfg)}, nil

	case stellarv1alpha1.NodeTypeSorobanRpc:
		cfg, err := sorobanSettings(node).Render()
		if err != nil {
			return nil, err
		}
		data := map[string]string{SorobanConfigFileName: string(cfg)}
		if sc := node.Spec.SorobanConfig; sc != nil && sc.CaptiveCore != nil {
			captive, err := RenderCaptiveCoreConfig(node)
			if err != nil {
				return nil, err
			}
			data[CaptiveCoreConfigFileName] = string(captive)
		}
		return data, nil

	default:
		return nil, errors.Errorf("unsupported node type %q", node.Spec.NodeType)
	}
}

func horizonSettings(node stellarv1alpha1.StellarNode) *CanonicalConfig {
	settings := map[string]interface{}{
		"port":               HorizonHTTPPort,
		"network.passphrase": node.Spec.Network.Passphrase(),
		"history_archive_urls": node.Spec.Network.
			HistoryArchiveURLs(),
	}
	if hc := node.Spec.HorizonConfig; hc != nil {
		settings["stellar_core.url"] = hc.StellarCoreUrl
		settings["ingest.enabled"] = hc.EnableIngest
		if hc.IngestWorkers != nil {
			settings["ingest.parallel_workers"] = *hc.IngestWorkers
		}
	}
	return MustCanonicalConfig(settings)
}

func sorobanSettings(node stellarv1alpha1.StellarNode) *CanonicalConfig {
	settings := map[string]interface{}{
		"endpoint.port":      SorobanHTTPPort,
		"network.passphrase": node.Spec.Network.Passphrase(),
	}
	if sc := node.Spec.SorobanConfig; sc != nil {
		settings["stellar_core.url"] = sc.StellarCoreUrl
		settings["preflight.enabled"] = sc.EnablePreflight
		if sc.MaxEventsPerRequest != nil {
			settings["events.max_per_request"] = *sc.MaxEventsPerRequest
		}
		if sc.CaptiveCore != nil {
			settings["captive_core.config_path"] = ConfigMountPath + "/" + CaptiveCoreConfigFileName
		}
	}
	return MustCanonicalConfig(settings)
}
