// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

// Package archive verifies the health of Stellar history archives by fetching
// the well-known archive state file from each configured location.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/pkg/errors"

	stellarv1alpha1 "github.com/stellar/node-operator/pkg/apis/stellarnode/v1alpha1"
)

// WellKnownPath is the archive state file every Stellar history archive serves.
const WellKnownPath = ".well-known/stellar-history.json"

// State is the subset of the archive state file the checker inspects.
type State struct {
	Version       int    `json:"version"`
	Server        string `json:"server"`
	CurrentLedger int64  `json:"currentLedger"`
}

// Result is the outcome of checking a single archive.
type Result struct {
	URL           string
	CurrentLedger int64
	Err           error
}

// fetcher retrieves the raw archive state file from one URL scheme.
type fetcher interface {
	fetch(ctx context.Context, u *url.URL) ([]byte, error)
}

// Checker fetches archive state files over http(s), s3, gs and azblob.
type Checker struct {
	fetchers map[string]fetcher
}

// NewChecker returns a checker with all supported schemes wired.
func NewChecker() *Checker {
	httpFetcher := newHTTPFetcher()
	return &Checker{
		fetchers: map[string]fetcher{
			"http":   httpFetcher,
			"https":  httpFetcher,
			"s3":     &s3Fetcher{},
			"gs":     &gcsFetcher{},
			"azblob": &azblobFetcher{},
		},
	}
}

// Check fetches the archive state from each URL and returns one result per
// archive, in input order.
func (c *Checker) Check(ctx context.Context, archiveURLs []string) []Result {
	results := make([]Result, 0, len(archiveURLs))
	for _, archiveURL := range archiveURLs {
		ledger, err := c.checkOne(ctx, archiveURL)
		results = append(results, Result{URL: archiveURL, CurrentLedger: ledger, Err: err})
	}
	return results
}

// CheckNode checks the archives relevant for the given node: the configured
// archive URLs of a Validator publishing history, or nothing.
func (c *Checker) CheckNode(ctx context.Context, node stellarv1alpha1.StellarNode) []Result {
	vc := node.Spec.ValidatorConfig
	if node.Spec.NodeType != stellarv1alpha1.NodeTypeValidator || vc == nil || !vc.EnableHistoryArchive {
		return nil
	}
	urls := vc.HistoryArchiveUrls
	if len(urls) == 0 {
		urls = node.Spec.Network.HistoryArchiveURLs()
	}
	return c.Check(ctx, urls)
}

// AllHealthy returns true when every result carries a positive ledger and no error.
func AllHealthy(results []Result) bool {
	for _, r := range results {
		if r.Err != nil || r.CurrentLedger <= 0 {
			return false
		}
	}
	return true
}

func (c *Checker) checkOne(ctx context.Context, archiveURL string) (int64, error) {
	u, err := url.Parse(archiveURL)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid archive URL %s", archiveURL)
	}
	f, ok := c.fetchers[u.Scheme]
	if !ok {
		return 0, fmt.Errorf("unsupported archive URL scheme %q", u.Scheme)
	}
	raw, err := f.fetch(ctx, u)
	if err != nil {
		return 0, errors.Wrapf(err, "while fetching archive state from %s", archiveURL)
	}
	var state State
	if err := json.Unmarshal(raw, &state); err != nil {
		return 0, errors.Wrapf(err, "while parsing archive state from %s", archiveURL)
	}
	if state.CurrentLedger <= 0 {
		return 0, fmt.Errorf("archive %s reports no current ledger", archiveURL)
	}
	return state.CurrentLedger, nil
}

// stateObjectPath joins the path prefix of an archive URL with the well-known
// state file location.
func stateObjectPath(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return WellKnownPath
	}
	return prefix + "/" + WellKnownPath
}
