// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

// Package sandbox executes admission plugins as WebAssembly modules under
// hard resource ceilings: an instruction budget (fuel), a memory cap and a
// wall-clock timeout enforced through epoch interruption. Plugins see no
// filesystem, no network and no environment, only the host ABI of hostfns.go.
package sandbox

import (
	"context"
	"errors"
	"time"

	"github.com/bytecodealliance/wasmtime-go/v25"
)

// entryPoint is the exported function every plugin must provide.
const entryPoint = "validate"

// memoryExport is the exported linear memory the host copies I/O through.
const memoryExport = "memory"

// Runtime compiles and runs admission plugins. A single Runtime is shared by
// all plugins; per-invocation state lives in a fresh Store.
type Runtime struct {
	engine *wasmtime.Engine
	cache  *moduleCache
}

// NewRuntime builds the shared engine: fuel metering and epoch interruption
// on, SIMD on, threads and reference types off.
func NewRuntime() (*Runtime, error) {
	cfg := wasmtime.NewConfig()
	cfg.SetConsumeFuel(true)
	cfg.SetEpochInterruption(true)
	cfg.SetWasmSIMD(true)
	cfg.SetWasmThreads(false)
	cfg.SetWasmReferenceTypes(false)
	cfg.SetMaxWasmStack(maxWasmStack)

	cache, err := newModuleCache()
	if err != nil {
		return nil, err
	}
	return &Runtime{
		engine: wasmtime.NewEngineWithConfig(cfg),
		cache:  cache,
	}, nil
}

// Compile turns bytecode into a ready-to-run module, reusing the compilation
// cache when the same bytecode was seen before. The module must export
// `validate` and `memory`, anything else is rejected as an integrity failure.
func (r *Runtime) Compile(bytecode []byte) (*wasmtime.Module, string, error) {
	key := BytecodeHash(bytecode)
	if module, ok := r.cache.get(key); ok {
		return module, key, nil
	}

	module, err := wasmtime.NewModule(r.engine, bytecode)
	if err != nil {
		return nil, "", newError(PluginIntegrity, "bytecode does not compile: %s", err)
	}
	if err := checkABI(module); err != nil {
		return nil, "", err
	}
	r.cache.add(key, module)
	return module, key, nil
}

// Evict drops a compiled module from the cache, called when the last plugin
// referencing the bytecode is unloaded.
func (r *Runtime) Evict(hash string) {
	r.cache.remove(hash)
}

// Execute runs one plugin invocation: instantiate, feed input, call validate,
// collect output. The returned bytes are whatever the plugin wrote through
// write_output; protocol-level validation is the caller's concern.
func (r *Runtime) Execute(ctx context.Context, module *wasmtime.Module, input []byte, limits Limits) ([]byte, error) {
	limits = limits.WithDefaults()

	store := wasmtime.NewStore(r.engine)
	if err := store.SetFuel(limits.MaxFuel); err != nil {
		return nil, newError(PluginTrap, "setting fuel: %s", err)
	}
	store.Limiter(limits.MaxMemoryBytes, -1, -1, -1, -1)
	store.SetEpochDeadline(epochDeadline)

	inv := &invocation{input: input}
	linker := wasmtime.NewLinker(r.engine)
	if err := defineHostFunctions(linker, store, inv); err != nil {
		return nil, newError(PluginTrap, "linking host functions: %s", err)
	}

	instance, err := linker.Instantiate(store, module)
	if err != nil {
		return nil, classifyTrap(err)
	}

	// the timer goroutine turns the wall clock into an epoch tick; one tick
	// past the deadline interrupts the running plugin. Caller cancellation
	// (budget exhaustion on the review) interrupts the same way. A normal
	// return stops the timer without touching the engine epoch.
	finished := make(chan struct{})
	defer close(finished)
	go func() {
		timer := time.NewTimer(limits.Timeout)
		defer timer.Stop()
		select {
		case <-timer.C:
			r.engine.IncrementEpoch()
		case <-ctx.Done():
			r.engine.IncrementEpoch()
		case <-finished:
		}
	}()

	entry := instance.GetFunc(store, entryPoint)
	if entry == nil {
		return nil, newError(PluginIntegrity, "module does not export %q", entryPoint)
	}
	if _, err := entry.Call(store); err != nil {
		return nil, classifyTrap(err)
	}
	return inv.output, nil
}

// classifyTrap maps a wasmtime error to the deterministic failure taxonomy.
func classifyTrap(err error) error {
	var trap *wasmtime.Trap
	if !errors.As(err, &trap) {
		return newError(PluginTrap, "%s", err)
	}
	code := trap.Code()
	if code == nil {
		return newError(PluginTrap, "%s", trap.Message())
	}
	switch *code {
	case wasmtime.OutOfFuel:
		return newError(PluginOutOfFuel, "instruction budget exhausted")
	case wasmtime.Interrupt:
		return newError(PluginTimeout, "wall-clock budget exhausted")
	case wasmtime.MemoryOutOfBounds, wasmtime.StackOverflow:
		return newError(PluginOutOfMemory, "%s", trap.Message())
	default:
		return newError(PluginTrap, "%s", trap.Message())
	}
}

// checkABI verifies the module exposes the required entry point and memory.
func checkABI(module *wasmtime.Module) error {
	var hasEntry, hasMemory bool
	for _, export := range module.Exports() {
		switch export.Name() {
		case entryPoint:
			hasEntry = export.Type().FuncType() != nil
		case memoryExport:
			hasMemory = export.Type().MemoryType() != nil
		}
	}
	if !hasEntry {
		return newError(PluginIntegrity, "module does not export a %q function", entryPoint)
	}
	if !hasMemory {
		return newError(PluginIntegrity, "module does not export a %q memory", memoryExport)
	}
	return nil
}
