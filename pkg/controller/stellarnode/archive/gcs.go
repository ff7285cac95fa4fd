// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package archive

import (
	"context"
	"io"
	"net/url"
	"os"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// gcsFetcher reads archive state files from `gs://bucket/prefix` locations.
// Public archives are read without authentication unless application default
// credentials are configured.
type gcsFetcher struct {
	client *storage.Client
}

func (f *gcsFetcher) fetch(ctx context.Context, u *url.URL) ([]byte, error) {
	if f.client == nil {
		client, err := newGCSClient(ctx)
		if err != nil {
			return nil, err
		}
		f.client = client
	}
	reader, err := f.client.Bucket(u.Host).Object(stateObjectPath(u.Path)).NewReader(ctx)
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	return io.ReadAll(io.LimitReader(reader, maxStateFileSize))
}

func newGCSClient(ctx context.Context) (*storage.Client, error) {
	if os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") != "" {
		return storage.NewClient(ctx)
	}
	return storage.NewClient(ctx, option.WithoutAuthentication())
}
