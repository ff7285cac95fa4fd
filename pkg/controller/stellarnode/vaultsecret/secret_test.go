// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package vaultsecret

import (
	"context"
	"testing"

	vaultapi "github.com/hashicorp/vault/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"

	stellarv1alpha1 "github.com/stellar/node-operator/pkg/apis/stellarnode/v1alpha1"
	controllerscheme "github.com/stellar/node-operator/pkg/controller/common/scheme"
	"github.com/stellar/node-operator/pkg/utils/k8s"
)

func TestParseLocator(t *testing.T) {
	tests := []struct {
		name    string
		ref     string
		want    Locator
		wantErr bool
	}{
		{
			name: "valid locator",
			ref:  "vault:secret/stellar/mainnet-validator#seed",
			want: Locator{Mount: "secret", Path: "stellar/mainnet-validator", Field: "seed"},
		},
		{
			name:    "missing field",
			ref:     "vault:secret/stellar/mainnet-validator",
			wantErr: true,
		},
		{
			name:    "missing path",
			ref:     "vault:secret#seed",
			wantErr: true,
		},
		{
			name:    "not a vault ref",
			ref:     "my-secret",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLocator(tt.ref)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.Mount+"/data/"+tt.want.Path, got.ReadPath())
		})
	}
}

func TestSeedSecretNameFor(t *testing.T) {
	node := validatorNode("vault:secret/stellar/val#seed")
	assert.Equal(t, "val-seed", SeedSecretNameFor(node))

	node = validatorNode("user-provided-secret")
	assert.Equal(t, "user-provided-secret", SeedSecretNameFor(node))
}

type fakeVault struct {
	data map[string]map[string]interface{}
}

func (f fakeVault) Read(path string) (*vaultapi.Secret, error) {
	data, ok := f.data[path]
	if !ok {
		return nil, nil
	}
	return &vaultapi.Secret{Data: data}, nil
}

func TestEnsureSeedSecret(t *testing.T) {
	require.NoError(t, controllerscheme.SetupScheme())
	c := k8s.NewFakeClient()
	node := validatorNode("vault:secret/stellar/val#seed")
	vaultClient := fakeVault{data: map[string]map[string]interface{}{
		// KV v2 nests fields under "data"
		"secret/data/stellar/val": {"data": map[string]interface{}{"seed": "SABCD"}},
	}}

	require.NoError(t, EnsureSeedSecret(context.Background(), c, vaultClient, node))

	var secret corev1.Secret
	require.NoError(t, c.Get(context.Background(), types.NamespacedName{Namespace: "ns", Name: "val-seed"}, &secret))
	assert.Equal(t, []byte("SABCD"), secret.Data[SeedFileName])
	// owned by the node so it is garbage collected with it
	require.Len(t, secret.OwnerReferences, 1)
	assert.Equal(t, "val", secret.OwnerReferences[0].Name)
}

func TestEnsureSeedSecretNoopForPlainRefs(t *testing.T) {
	c := k8s.NewFakeClient()
	node := validatorNode("plain-secret")
	require.NoError(t, EnsureSeedSecret(context.Background(), c, nil, node))
	var secrets corev1.SecretList
	require.NoError(t, c.List(context.Background(), &secrets))
	assert.Empty(t, secrets.Items)
}

func validatorNode(seedRef string) stellarv1alpha1.StellarNode {
	return stellarv1alpha1.StellarNode{
		ObjectMeta: metav1.ObjectMeta{Name: "val", Namespace: "ns"},
		Spec: stellarv1alpha1.StellarNodeSpec{
			NodeType:        stellarv1alpha1.NodeTypeValidator,
			Network:         stellarv1alpha1.NetworkMainnet,
			ValidatorConfig: &stellarv1alpha1.ValidatorConfig{SeedSecretRef: seedRef},
		},
	}
}
