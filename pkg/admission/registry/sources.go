// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package registry

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/types"

	"github.com/stellar/node-operator/pkg/admission/sandbox"
	"github.com/stellar/node-operator/pkg/utils/k8s"
)

const (
	// urlFetchTimeout bounds a bytecode download from a remote source.
	urlFetchTimeout = 30 * time.Second
	// maxBytecodeBytes caps the size of a plugin module from any source.
	maxBytecodeBytes = 32 * 1024 * 1024
)

// fetchBytecode resolves the plugin bytecode from whichever source the
// descriptor declares. Exactly one source must be set.
func fetchBytecode(ctx context.Context, client k8s.Client, desc Descriptor) ([]byte, error) {
	switch {
	case desc.BytecodeBase64 != "":
		bytecode, err := base64.StdEncoding.DecodeString(desc.BytecodeBase64)
		if err != nil {
			return nil, sandboxProtocolError("bytecodeBase64 does not decode: %s", err)
		}
		return bytecode, nil
	case desc.ConfigMapRef != nil:
		return fetchFromConfigMap(ctx, client, *desc.ConfigMapRef)
	case desc.SecretRef != nil:
		return fetchFromSecret(ctx, client, *desc.SecretRef)
	case desc.URL != "":
		if desc.Metadata.SHA256 == "" {
			return nil, sandboxIntegrityError("url sources require a declared sha256")
		}
		return fetchFromURL(ctx, desc.URL)
	default:
		return nil, sandboxProtocolError("descriptor %q declares no bytecode source", desc.Metadata.Name)
	}
}

func fetchFromConfigMap(ctx context.Context, client k8s.Client, ref ObjectRef) ([]byte, error) {
	if client == nil {
		return nil, errors.New("no API client available to resolve configMapRef")
	}
	var cm corev1.ConfigMap
	if err := client.Get(ctx, types.NamespacedName{Namespace: ref.Namespace, Name: ref.Name}, &cm); err != nil {
		return nil, errors.Wrapf(err, "fetching ConfigMap %s/%s", ref.Namespace, ref.Name)
	}
	if data, ok := cm.BinaryData[ref.Key]; ok {
		return data, nil
	}
	if data, ok := cm.Data[ref.Key]; ok {
		// string data carries wasm as base64
		bytecode, err := base64.StdEncoding.DecodeString(data)
		if err != nil {
			return nil, sandboxProtocolError("ConfigMap key %q is not base64: %s", ref.Key, err)
		}
		return bytecode, nil
	}
	return nil, errors.Errorf("ConfigMap %s/%s has no key %q", ref.Namespace, ref.Name, ref.Key)
}

func fetchFromSecret(ctx context.Context, client k8s.Client, ref ObjectRef) ([]byte, error) {
	if client == nil {
		return nil, errors.New("no API client available to resolve secretRef")
	}
	var secret corev1.Secret
	if err := client.Get(ctx, types.NamespacedName{Namespace: ref.Namespace, Name: ref.Name}, &secret); err != nil {
		return nil, errors.Wrapf(err, "fetching Secret %s/%s", ref.Namespace, ref.Name)
	}
	data, ok := secret.Data[ref.Key]
	if !ok {
		return nil, errors.Errorf("Secret %s/%s has no key %q", ref.Namespace, ref.Name, ref.Key)
	}
	return data, nil
}

func fetchFromURL(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, urlFetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "building bytecode request")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching bytecode from %s", url)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("fetching bytecode from %s: status %d", url, resp.StatusCode)
	}
	bytecode, err := io.ReadAll(io.LimitReader(resp.Body, maxBytecodeBytes+1))
	if err != nil {
		return nil, errors.Wrapf(err, "reading bytecode from %s", url)
	}
	if len(bytecode) > maxBytecodeBytes {
		return nil, sandboxIntegrityError("bytecode from %s exceeds %d bytes", url, maxBytecodeBytes)
	}
	return bytecode, nil
}

// verifyIntegrity checks the fetched bytecode against the declared digest,
// when one is declared.
func verifyIntegrity(desc Descriptor, bytecode []byte) error {
	if desc.Metadata.SHA256 == "" {
		return nil
	}
	if actual := sandbox.BytecodeHash(bytecode); actual != desc.Metadata.SHA256 {
		return sandboxIntegrityError("bytecode hash %s does not match declared %s", actual, desc.Metadata.SHA256)
	}
	return nil
}

func sandboxIntegrityError(format string, args ...interface{}) error {
	return &sandbox.Error{Kind: sandbox.PluginIntegrity, Message: fmt.Sprintf(format, args...)}
}

func sandboxProtocolError(format string, args ...interface{}) error {
	return &sandbox.Error{Kind: sandbox.PluginProtocol, Message: fmt.Sprintf(format, args...)}
}
