// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package configuration

import (
	"strings"
	"testing"

	"github.com/gkampitakis/go-snaps/snaps"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/utils/ptr"

	stellarv1alpha1 "github.com/stellar/node-operator/pkg/apis/stellarnode/v1alpha1"
)

func TestCanonicalConfigRender(t *testing.T) {
	cfg := MustCanonicalConfig(map[string]interface{}{
		"b.c": "val",
		"a":   1,
	})
	require.NoError(t, cfg.Set("b.d", "other"))
	rendered, err := cfg.Render()
	require.NoError(t, err)
	// keys sorted, dotted keys expanded
	assert.Equal(t, "a: 1\nb:\n  c: val\n  d: other\n", string(rendered))
}

func TestCanonicalConfigMergeWith(t *testing.T) {
	base := MustCanonicalConfig(map[string]interface{}{"a": "1", "b": "2"})
	override := MustCanonicalConfig(map[string]interface{}{"b": "3"})
	require.NoError(t, base.MergeWith(override))
	rendered, err := base.Render()
	require.NoError(t, err)
	assert.Equal(t, "a: \"1\"\nb: \"3\"\n", string(rendered))
}

func validatorNode() stellarv1alpha1.StellarNode {
	return stellarv1alpha1.StellarNode{
		ObjectMeta: metav1.ObjectMeta{Name: "val", Namespace: "ns"},
		Spec: stellarv1alpha1.StellarNodeSpec{
			NodeType: stellarv1alpha1.NodeTypeValidator,
			Network:  stellarv1alpha1.NetworkTestnet,
			ValidatorConfig: &stellarv1alpha1.ValidatorConfig{
				SeedSecretRef: "val-seed",
				QuorumSet: []stellarv1alpha1.QuorumSetEntry{
					{ValidatorName: "sdf1", PublicKey: "GABCD"},
					{ValidatorName: "sdf2", PublicKey: "GEFGH"},
				},
			},
		},
	}
}

func TestRenderCoreConfig(t *testing.T) {
	cfg, err := RenderCoreConfig(validatorNode())
	require.NoError(t, err)
	rendered := string(cfg)

	assert.Contains(t, rendered, `NETWORK_PASSPHRASE = "Test SDF Network ; September 2015"`)
	assert.Contains(t, rendered, "NODE_IS_VALIDATOR = true")
	assert.Contains(t, rendered, `"GABCD sdf1"`)
	assert.Contains(t, rendered, `"GEFGH sdf2"`)
	// default testnet archives used for catchup
	assert.Contains(t, rendered, "core-testnet/core_testnet_001")
	// no publication unless enableHistoryArchive
	assert.NotContains(t, rendered, "put =")
}

func TestRenderCoreConfigHistoryPublication(t *testing.T) {
	node := validatorNode()
	node.Spec.ValidatorConfig.EnableHistoryArchive = true
	node.Spec.ValidatorConfig.HistoryArchiveUrls = []string{"https://archive.example.com"}
	cfg, err := RenderCoreConfig(node)
	require.NoError(t, err)
	rendered := string(cfg)

	// configured archives replace the network defaults
	assert.NotContains(t, rendered, "core-testnet")
	assert.Contains(t, rendered, `get = "curl -sf https://archive.example.com/{0} -o {1}"`)
	assert.Contains(t, rendered, `put = "curl -sf -T {1} https://archive.example.com/{0}"`)
}

func TestRenderCoreConfigSnapshot(t *testing.T) {
	cfg, err := RenderCoreConfig(validatorNode())
	require.NoError(t, err)
	snaps.MatchSnapshot(t, string(cfg))
}

func TestRenderConfigData(t *testing.T) {
	tests := []struct {
		name      string
		node      stellarv1alpha1.StellarNode
		wantFiles []string
		wantParts map[string][]string
	}{
		{
			name:      "validator renders a core config",
			node:      validatorNode(),
			wantFiles: []string{CoreConfigFileName},
		},
		{
			name: "horizon renders a yaml config",
			node: stellarv1alpha1.StellarNode{
				Spec: stellarv1alpha1.StellarNodeSpec{
					NodeType: stellarv1alpha1.NodeTypeHorizon,
					Network:  stellarv1alpha1.NetworkMainnet,
					HorizonConfig: &stellarv1alpha1.HorizonConfig{
						DatabaseSecretRef: "horizon-db",
						StellarCoreUrl:    "http://core:11626",
						EnableIngest:      true,
						IngestWorkers:     ptr.To[int32](4),
					},
				},
			},
			wantFiles: []string{HorizonConfigFileName},
			wantParts: map[string][]string{
				HorizonConfigFileName: {
					"url: http://core:11626",
					"parallel_workers: 4",
					"Public Global Stellar Network ; September 2015",
				},
			},
		},
		{
			name: "soroban with captive core renders both files",
			node: stellarv1alpha1.StellarNode{
				Spec: stellarv1alpha1.StellarNodeSpec{
					NodeType: stellarv1alpha1.NodeTypeSorobanRpc,
					Network:  stellarv1alpha1.NetworkFuturenet,
					SorobanConfig: &stellarv1alpha1.SorobanConfig{
						StellarCoreUrl: "http://localhost:11626",
						CaptiveCore:    &stellarv1alpha1.CaptiveCoreConfig{},
					},
				},
			},
			wantFiles: []string{SorobanConfigFileName, CaptiveCoreConfigFileName},
			wantParts: map[string][]string{
				CaptiveCoreConfigFileName: {"NODE_IS_VALIDATOR = false"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := RenderConfigData(tt.node)
			require.NoError(t, err)
			require.Len(t, data, len(tt.wantFiles))
			for _, f := range tt.wantFiles {
				require.Contains(t, data, f)
			}
			for f, parts := range tt.wantParts {
				for _, p := range parts {
					if !strings.Contains(data[f], p) {
						t.Errorf("%s: expected to contain %q, got:\n%s", f, p, data[f])
					}
				}
			}
		})
	}
}

func TestRenderConfigDataDeterministic(t *testing.T) {
	node := validatorNode()
	first, err := RenderConfigData(node)
	require.NoError(t, err)
	second, err := RenderConfigData(node)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
