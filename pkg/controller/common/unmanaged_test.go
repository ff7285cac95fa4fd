// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package common

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

func TestIsUnmanaged(t *testing.T) {
	tests := []struct {
		name        string
		annotations map[string]string
		want        bool
	}{
		{name: "no annotations", want: false},
		{name: "managed true", annotations: map[string]string{ManagedAnnotation: "true"}, want: false},
		{name: "managed false", annotations: map[string]string{ManagedAnnotation: "false"}, want: true},
		{name: "managed 0", annotations: map[string]string{ManagedAnnotation: "0"}, want: true},
		{name: "unparseable value is treated as managed", annotations: map[string]string{ManagedAnnotation: "XXXX"}, want: false},
		{name: "empty value is treated as managed", annotations: map[string]string{ManagedAnnotation: ""}, want: false},
		{name: "unrelated annotation", annotations: map[string]string{"stellar.org/other": "false"}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// testing with a secret, but could be any kind
			obj := &corev1.Secret{ObjectMeta: metav1.ObjectMeta{Name: "bar", Namespace: "foo", Annotations: tt.annotations}}
			assert.Equal(t, tt.want, IsUnmanaged(context.Background(), obj))
		})
	}
}
