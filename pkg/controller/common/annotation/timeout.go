// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

// Package annotation reads per-object behavior overrides from metadata
// annotations.
package annotation

import (
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	ulog "github.com/stellar/node-operator/pkg/utils/log"
)

var log = ulog.Log.WithName("annotation")

// ExtractTimeout reads a duration override from the given annotation on the
// object. A missing annotation returns defaultVal; a malformed one is logged
// and also falls back to defaultVal rather than failing the caller.
func ExtractTimeout(objMeta metav1.ObjectMeta, annotation string, defaultVal time.Duration) time.Duration {
	raw, ok := objMeta.Annotations[annotation]
	if !ok {
		return defaultVal
	}

	timeout, err := time.ParseDuration(raw)
	if err != nil {
		log.Error(err, "Failed to parse timeout value from annotation", "annotation", annotation, "value", raw)
		return defaultVal
	}
	return timeout
}
