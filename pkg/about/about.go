// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package about

import "fmt"

// Default values replaced at build time through ldflags.
var (
	version       = "0.0.0"
	buildHash     = "00000000"
	buildDate     = "1970-01-01T00:00:00Z"
	buildSnapshot = "true"
)

// BuildInfo contains build metadata.
type BuildInfo struct {
	Version  string `json:"version"`
	Hash     string `json:"hash"`
	Date     string `json:"date"`
	Snapshot string `json:"snapshot"`
}

// GetBuildInfo returns the build information stamped into the binary.
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:  version,
		Hash:     buildHash,
		Date:     buildDate,
		Snapshot: buildSnapshot,
	}
}

// VersionString returns a human-friendly one-line description of the build.
func (i BuildInfo) VersionString() string {
	return fmt.Sprintf("%s-%s (%s)", i.Version, i.Hash, i.Date)
}
