// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package sandbox

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/bytecodealliance/wasmtime-go/v25"
	lru "github.com/hashicorp/golang-lru/v2"
)

// compilationCacheSize bounds the number of compiled modules kept in memory.
const compilationCacheSize = 64

// moduleCache memoizes compiled modules keyed by the sha256 of their bytecode,
// so that re-loading a known plugin skips compilation.
type moduleCache struct {
	modules *lru.Cache[string, *wasmtime.Module]
}

func newModuleCache() (*moduleCache, error) {
	modules, err := lru.New[string, *wasmtime.Module](compilationCacheSize)
	if err != nil {
		return nil, err
	}
	return &moduleCache{modules: modules}, nil
}

func (c *moduleCache) get(key string) (*wasmtime.Module, bool) {
	return c.modules.Get(key)
}

func (c *moduleCache) add(key string, module *wasmtime.Module) {
	c.modules.Add(key, module)
}

func (c *moduleCache) remove(key string) {
	c.modules.Remove(key)
}

// BytecodeHash returns the hex sha256 of the given bytecode, the cache key and
// integrity reference of a plugin.
func BytecodeHash(bytecode []byte) string {
	sum := sha256.Sum256(bytecode)
	return hex.EncodeToString(sum[:])
}
