// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package archive

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

// azblobFetcher reads archive state files from
// `azblob://account/container/prefix` locations, anonymously.
type azblobFetcher struct {
	// newClient is overridable in tests
	newClient func(serviceURL string) (azblobDownloader, error)
}

type azblobDownloader interface {
	DownloadStream(ctx context.Context, containerName, blobName string, o *azblob.DownloadStreamOptions) (azblob.DownloadStreamResponse, error)
}

func (f *azblobFetcher) fetch(ctx context.Context, u *url.URL) ([]byte, error) {
	container, prefix, ok := strings.Cut(strings.Trim(u.Path, "/"), "/")
	if !ok {
		container = strings.Trim(u.Path, "/")
	}
	if container == "" {
		return nil, fmt.Errorf("azblob archive URL %s is missing a container", u)
	}

	newClient := f.newClient
	if newClient == nil {
		newClient = func(serviceURL string) (azblobDownloader, error) {
			return azblob.NewClientWithNoCredential(serviceURL, nil)
		}
	}
	client, err := newClient(fmt.Sprintf("https://%s.blob.core.windows.net/", u.Host))
	if err != nil {
		return nil, err
	}

	resp, err := client.DownloadStream(ctx, container, stateObjectPath(prefix), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(io.LimitReader(resp.Body, maxStateFileSize))
}
