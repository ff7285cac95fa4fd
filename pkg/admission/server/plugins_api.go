// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stellar/node-operator/pkg/admission"
	"github.com/stellar/node-operator/pkg/admission/registry"
	"github.com/stellar/node-operator/pkg/admission/sandbox"
)

// pluginSummary is the management API view of a loaded plugin.
type pluginSummary struct {
	Name       string                `json:"name"`
	Version    string                `json:"version,omitempty"`
	SHA256     string                `json:"sha256"`
	Operations []admission.Operation `json:"operations"`
	Enabled    bool                  `json:"enabled"`
	FailOpen   bool                  `json:"failOpen"`
}

// handleListPlugins answers GET /plugins with a snapshot of loaded plugins.
func (s *Server) handleListPlugins(w http.ResponseWriter, _ *http.Request) {
	plugins := s.registry.List()
	summaries := make([]pluginSummary, 0, len(plugins))
	for _, p := range plugins {
		summaries = append(summaries, pluginSummary{
			Name:       p.Name,
			Version:    p.Version,
			SHA256:     p.Hash,
			Operations: p.Operations,
			Enabled:    p.Enabled,
			FailOpen:   p.FailOpen,
		})
	}
	writeJSON(w, http.StatusOK, summaries)
}

// handleLoadPlugin answers POST /plugins: 201 on success, 409 for a duplicate
// name without the overwrite flag, 422 on integrity failure.
func (s *Server) handleLoadPlugin(w http.ResponseWriter, req *http.Request) {
	var desc registry.Descriptor
	if err := json.NewDecoder(req.Body).Decode(&desc); err != nil {
		http.Error(w, "decoding plugin descriptor: "+err.Error(), http.StatusBadRequest)
		return
	}
	if desc.Metadata.Name == "" {
		http.Error(w, "plugin descriptor declares no name", http.StatusBadRequest)
		return
	}
	overwrite := req.URL.Query().Get("overwrite") == "true"

	if err := s.registry.Load(req.Context(), desc, overwrite); err != nil {
		switch {
		case errors.Is(err, registry.ErrDuplicate):
			http.Error(w, err.Error(), http.StatusConflict)
		case sandbox.KindOf(err) == sandbox.PluginIntegrity:
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	plugin, _ := s.registry.Get(desc.Metadata.Name)
	w.Header().Set("Location", "/plugins/"+desc.Metadata.Name)
	writeJSON(w, http.StatusCreated, pluginSummary{
		Name:       plugin.Name,
		Version:    plugin.Version,
		SHA256:     plugin.Hash,
		Operations: plugin.Operations,
		Enabled:    plugin.Enabled,
		FailOpen:   plugin.FailOpen,
	})
}

// handleUnloadPlugin answers DELETE /plugins/{name}: 204 on success, 404 for
// an unknown plugin.
func (s *Server) handleUnloadPlugin(w http.ResponseWriter, req *http.Request) {
	name := chi.URLParam(req, "name")
	if err := s.registry.Unload(name); err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error(err, "Failed to write management API response")
	}
}
