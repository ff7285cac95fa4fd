// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package net

import (
	"context"
	"net"
)

// Dialer creates network connections. Health probes accept one so tests and
// constrained environments can substitute the transport.
type Dialer interface {
	DialContext(ctx context.Context, network, addr string) (net.Conn, error)
}
