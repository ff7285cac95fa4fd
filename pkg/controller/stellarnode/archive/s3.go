// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package archive

import (
	"context"
	"io"
	"net/url"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const defaultS3Region = "us-east-1"

// s3Fetcher reads archive state files from `s3://bucket/prefix` locations.
// Public archives are read anonymously, static credentials are picked up from
// the conventional environment variables when present.
type s3Fetcher struct {
	// client is lazily built on first use; tests inject their own
	client s3GetObjectAPI
}

type s3GetObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

func (f *s3Fetcher) fetch(ctx context.Context, u *url.URL) ([]byte, error) {
	if f.client == nil {
		f.client = newS3Client()
	}
	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(u.Host),
		Key:    aws.String(stateObjectPath(u.Path)),
	})
	if err != nil {
		return nil, err
	}
	defer out.Body.Close()
	return io.ReadAll(io.LimitReader(out.Body, maxStateFileSize))
}

func newS3Client() *s3.Client {
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = defaultS3Region
	}
	var provider aws.CredentialsProvider = aws.AnonymousCredentials{}
	if accessKey := os.Getenv("AWS_ACCESS_KEY_ID"); accessKey != "" {
		provider = credentials.NewStaticCredentialsProvider(
			accessKey,
			os.Getenv("AWS_SECRET_ACCESS_KEY"),
			os.Getenv("AWS_SESSION_TOKEN"),
		)
	}
	return s3.New(s3.Options{
		Region:      region,
		Credentials: provider,
	})
}
