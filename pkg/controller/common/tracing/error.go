// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package tracing

import (
	"context"

	"go.elastic.co/apm/v2"
)

// CaptureError reports err to the APM transaction tied to ctx and returns the
// original error so call sites keep their error flow unchanged.
func CaptureError(ctx context.Context, err error) error {
	if ctx == nil {
		return err
	}
	if captured := apm.CaptureError(ctx, err); captured != nil {
		captured.Send()
	}
	return err
}
