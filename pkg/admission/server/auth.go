// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package server

import (
	"net/http"
	"strings"
)

// requireManagementToken guards the plugin management API with a shared
// bearer token checked against a bcrypt hash. With no hash configured the
// API is open, relying on network-level protection of the private port.
func (s *Server) requireManagementToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if s.verifier == nil {
			next.ServeHTTP(w, req)
			return
		}
		token, ok := bearerToken(req)
		if !ok || !s.verifier.Verify([]byte(token)) {
			http.Error(w, "invalid or missing management token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, req)
	})
}

func bearerToken(req *http.Request) (string, bool) {
	header := req.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	return token, token != ""
}
