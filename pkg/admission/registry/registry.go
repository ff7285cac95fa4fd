// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

// Package registry maintains the set of loaded admission plugins. The plugin
// map follows a copy-on-write discipline: readers snapshot the current map and
// keep it for the duration of a review, mutators build a new map and swap it
// atomically. No reader ever blocks a writer.
package registry

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/bytecodealliance/wasmtime-go/v25"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/stellar/node-operator/pkg/admission"
	"github.com/stellar/node-operator/pkg/admission/sandbox"
	"github.com/stellar/node-operator/pkg/utils/k8s"
	ulog "github.com/stellar/node-operator/pkg/utils/log"
)

var log = ulog.Log.WithName("plugin-registry")

var (
	// ErrDuplicate is returned by Load when a plugin of the same name already
	// exists and the caller did not ask for an overwrite.
	ErrDuplicate = errors.New("plugin already loaded")
	// ErrNotFound is returned by Unload for an unknown plugin name.
	ErrNotFound = errors.New("plugin not found")
)

// Metadata describes a plugin independently of its bytecode source.
type Metadata struct {
	Name    string          `json:"name"`
	Version string          `json:"version,omitempty"`
	// SHA256 is the declared hex digest of the bytecode. Optional for
	// in-cluster sources, mandatory for URL sources.
	SHA256 string          `json:"sha256,omitempty"`
	Limits *sandbox.Limits `json:"limits,omitempty"`
}

// ObjectRef points at a key inside an in-cluster ConfigMap or Secret.
type ObjectRef struct {
	Namespace string `json:"namespace,omitempty"`
	Name      string `json:"name"`
	Key       string `json:"key"`
}

// Descriptor is the serialized form of a plugin registration, as accepted by
// the management API and the declarative ConfigMap source. Exactly one of the
// bytecode sources must be set.
type Descriptor struct {
	Metadata       Metadata              `json:"metadata"`
	BytecodeBase64 string                `json:"bytecodeBase64,omitempty"`
	ConfigMapRef   *ObjectRef            `json:"configMapRef,omitempty"`
	SecretRef      *ObjectRef            `json:"secretRef,omitempty"`
	URL            string                `json:"url,omitempty"`
	Operations     []admission.Operation `json:"operations"`
	Enabled        bool                  `json:"enabled"`
	FailOpen       bool                  `json:"failOpen"`
}

// Plugin is a loaded, compiled plugin ready for execution.
type Plugin struct {
	Name       string
	Version    string
	Hash       string
	Operations []admission.Operation
	Enabled    bool
	FailOpen   bool
	Limits     sandbox.Limits
	Module     *wasmtime.Module
}

// Subscribed tells whether the plugin wants to see the given operation.
func (p *Plugin) Subscribed(op admission.Operation) bool {
	for _, o := range p.Operations {
		if o == op {
			return true
		}
	}
	return false
}

// Registry is the in-memory plugin map plus the shared sandbox runtime that
// compiles and caches bytecode.
type Registry struct {
	runtime *sandbox.Runtime
	client  k8s.Client

	// mu serializes mutators; readers go through the atomic snapshot only.
	mu      sync.Mutex
	plugins atomic.Pointer[map[string]*Plugin]
}

// NewRegistry returns an empty registry on top of the given runtime. The
// client resolves in-cluster bytecode sources and may be nil when only inline
// and URL sources are used.
func NewRegistry(runtime *sandbox.Runtime, client k8s.Client) *Registry {
	r := &Registry{runtime: runtime, client: client}
	r.plugins.Store(&map[string]*Plugin{})
	return r
}

// Load fetches, verifies, compiles and inserts a plugin. A duplicate name is
// rejected with ErrDuplicate unless overwrite is set. Integrity failures
// surface as sandbox errors of kind PluginIntegrity.
func (r *Registry) Load(ctx context.Context, desc Descriptor, overwrite bool) error {
	bytecode, err := fetchBytecode(ctx, r.client, desc)
	if err != nil {
		return err
	}
	if err := verifyIntegrity(desc, bytecode); err != nil {
		return err
	}

	module, hash, err := r.runtime.Compile(bytecode)
	if err != nil {
		return err
	}

	limits := sandbox.Limits{}
	if desc.Metadata.Limits != nil {
		limits = *desc.Metadata.Limits
	}
	plugin := &Plugin{
		Name:       desc.Metadata.Name,
		Version:    desc.Metadata.Version,
		Hash:       hash,
		Operations: append([]admission.Operation(nil), desc.Operations...),
		Enabled:    desc.Enabled,
		FailOpen:   desc.FailOpen,
		Limits:     limits,
		Module:     module,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	current := *r.plugins.Load()
	previous, exists := current[plugin.Name]
	if exists && !overwrite {
		return ErrDuplicate
	}

	next := clone(current)
	next[plugin.Name] = plugin
	r.plugins.Store(&next)

	if exists && previous.Hash != plugin.Hash {
		r.evictIfUnreferenced(next, previous.Hash)
	}
	log.Info("Plugin loaded", "plugin_name", plugin.Name, "version", plugin.Version, "hash", plugin.Hash, "enabled", plugin.Enabled)
	return nil
}

// Unload removes a plugin from the map and evicts its compiled module from
// the cache when no other plugin references the same bytecode.
func (r *Registry) Unload(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current := *r.plugins.Load()
	plugin, exists := current[name]
	if !exists {
		return ErrNotFound
	}

	next := clone(current)
	delete(next, name)
	r.plugins.Store(&next)
	r.evictIfUnreferenced(next, plugin.Hash)
	log.Info("Plugin unloaded", "plugin_name", name)
	return nil
}

// Sync reconciles the registry against a declarative set of descriptors:
// descriptors are loaded (overwriting existing versions), plugins absent from
// the set are unloaded. Load failures are collected but do not abort the
// remaining descriptors.
func (r *Registry) Sync(ctx context.Context, descriptors []Descriptor) error {
	declared := map[string]struct{}{}
	var errs *multierror.Error
	for _, desc := range descriptors {
		declared[desc.Metadata.Name] = struct{}{}
		if err := r.Load(ctx, desc, true); err != nil {
			errs = multierror.Append(errs, errors.Wrapf(err, "loading plugin %s", desc.Metadata.Name))
		}
	}
	for _, plugin := range r.List() {
		if _, ok := declared[plugin.Name]; !ok {
			if err := r.Unload(plugin.Name); err != nil && !errors.Is(err, ErrNotFound) {
				errs = multierror.Append(errs, errors.Wrapf(err, "unloading plugin %s", plugin.Name))
			}
		}
	}
	return errs.ErrorOrNil()
}

// List returns a point-in-time snapshot of the loaded plugins, sorted by name.
func (r *Registry) List() []*Plugin {
	current := *r.plugins.Load()
	list := make([]*Plugin, 0, len(current))
	for _, p := range current {
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}

// Select returns the enabled plugins subscribed to the given operation, in
// lexicographic name order so that aggregation tie-breaks are deterministic.
func (r *Registry) Select(op admission.Operation) []*Plugin {
	var selected []*Plugin
	for _, p := range r.List() {
		if p.Enabled && p.Subscribed(op) {
			selected = append(selected, p)
		}
	}
	return selected
}

// Get returns the named plugin, if loaded.
func (r *Registry) Get(name string) (*Plugin, bool) {
	current := *r.plugins.Load()
	p, ok := current[name]
	return p, ok
}

// Ready reports whether at least one plugin is loaded, the readiness gate of
// the webhook server.
func (r *Registry) Ready() bool {
	return len(*r.plugins.Load()) > 0
}

// evictIfUnreferenced drops a compiled module from the runtime cache once no
// remaining plugin uses the bytecode. Callers must hold mu.
func (r *Registry) evictIfUnreferenced(plugins map[string]*Plugin, hash string) {
	for _, p := range plugins {
		if p.Hash == hash {
			return
		}
	}
	r.runtime.Evict(hash)
}

func clone(m map[string]*Plugin) map[string]*Plugin {
	next := make(map[string]*Plugin, len(m)+1)
	for k, v := range m {
		next[k] = v
	}
	return next
}
