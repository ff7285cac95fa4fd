// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

// Package vaultsecret materializes seed material referenced through a
// `vault:<mount>/<path>#<field>` locator into a regular Kubernetes Secret, so
// that workload pods never talk to the external secret store themselves.
package vaultsecret

import (
	"context"
	"fmt"
	"strings"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	stellarv1alpha1 "github.com/stellar/node-operator/pkg/apis/stellarnode/v1alpha1"
	"github.com/stellar/node-operator/pkg/controller/common/reconciler"
	"github.com/stellar/node-operator/pkg/utils/k8s"
	"github.com/stellar/node-operator/pkg/utils/vault"
)

// LocatorPrefix marks a seedSecretRef as an external Vault locator.
const LocatorPrefix = "vault:"

// SeedFileName is the key under which the seed is stored in the materialized Secret.
const SeedFileName = "seed"

// IsVaultRef returns true if the given seedSecretRef points into Vault rather
// than at an existing Kubernetes Secret.
func IsVaultRef(ref string) bool {
	return strings.HasPrefix(ref, LocatorPrefix)
}

// Locator is a parsed `vault:<mount>/<path>#<field>` reference.
type Locator struct {
	Mount string
	Path  string
	Field string
}

// ReadPath returns the Vault read path for the locator, using the KV v2 data layout.
func (l Locator) ReadPath() string {
	return fmt.Sprintf("%s/data/%s", l.Mount, l.Path)
}

// ParseLocator parses a `vault:<mount>/<path>#<field>` seed reference.
func ParseLocator(ref string) (Locator, error) {
	if !IsVaultRef(ref) {
		return Locator{}, fmt.Errorf("not a vault locator: %s", ref)
	}
	rest := strings.TrimPrefix(ref, LocatorPrefix)
	pathAndField := strings.SplitN(rest, "#", 2)
	if len(pathAndField) != 2 || pathAndField[1] == "" {
		return Locator{}, fmt.Errorf("vault locator %q is missing the #<field> suffix", ref)
	}
	mountAndPath := strings.SplitN(pathAndField[0], "/", 2)
	if len(mountAndPath) != 2 || mountAndPath[0] == "" || mountAndPath[1] == "" {
		return Locator{}, fmt.Errorf("vault locator %q must be of the form vault:<mount>/<path>#<field>", ref)
	}
	return Locator{
		Mount: mountAndPath[0],
		Path:  mountAndPath[1],
		Field: pathAndField[1],
	}, nil
}

// SeedSecretNameFor returns the name of the Kubernetes Secret mounted by the
// workload: the materialized per-node Secret for Vault locators, the
// user-provided Secret otherwise.
func SeedSecretNameFor(node stellarv1alpha1.StellarNode) string {
	ref := seedRef(node)
	if IsVaultRef(ref) {
		return stellarv1alpha1.SeedSecretName(node.Name)
	}
	return ref
}

// EnsureSeedSecret materializes the seed Secret of a Validator whose
// seedSecretRef is a Vault locator. It is a no-op for other nodes.
func EnsureSeedSecret(
	ctx context.Context,
	c k8s.Client,
	vaultClient vault.Client,
	node stellarv1alpha1.StellarNode,
) error {
	ref := seedRef(node)
	if !IsVaultRef(ref) {
		return nil
	}
	if vaultClient == nil {
		return fmt.Errorf("seedSecretRef %q requires a configured Vault client", ref)
	}

	locator, err := ParseLocator(ref)
	if err != nil {
		return err
	}
	seed, err := vault.ReadField(vaultClient, locator.ReadPath(), locator.Field)
	if err != nil {
		return fmt.Errorf("while reading seed from vault: %w", err)
	}

	expected := corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{
			Name:      stellarv1alpha1.SeedSecretName(node.Name),
			Namespace: node.Namespace,
			Labels:    node.GetIdentityLabels(),
		},
		Data: map[string][]byte{
			SeedFileName: []byte(seed),
		},
	}
	_, err = reconciler.ReconcileSecret(ctx, c, expected, &node)
	return err
}

func seedRef(node stellarv1alpha1.StellarNode) string {
	if node.Spec.ValidatorConfig == nil {
		return ""
	}
	return node.Spec.ValidatorConfig.SeedSecretRef
}
