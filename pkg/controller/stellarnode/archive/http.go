// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package archive

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.elastic.co/apm/module/apmhttp/v2"
)

const (
	httpFetchTimeout = 30 * time.Second
	maxStateFileSize = 1 << 20
)

type httpFetcher struct {
	client *http.Client
}

func newHTTPFetcher() *httpFetcher {
	return &httpFetcher{
		client: apmhttp.WrapClient(&http.Client{Timeout: httpFetchTimeout}),
	}
}

func (f *httpFetcher) fetch(ctx context.Context, u *url.URL) ([]byte, error) {
	stateURL := strings.TrimRight(u.String(), "/") + "/" + WellKnownPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, stateURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s returned HTTP %d", stateURL, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxStateFileSize))
}
