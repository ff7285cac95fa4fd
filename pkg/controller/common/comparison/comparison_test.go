// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package comparison

import (
	"testing"

	"github.com/stretchr/testify/assert"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

func workload(kind, resourceVersion, nodeName string) *appsv1.StatefulSet {
	sset := &appsv1.StatefulSet{
		TypeMeta: metav1.TypeMeta{Kind: kind},
		ObjectMeta: metav1.ObjectMeta{
			Name:            "mainnet-validator",
			ResourceVersion: resourceVersion,
		},
	}
	if nodeName != "" {
		sset.Spec.Template = corev1.PodTemplateSpec{
			Spec: corev1.PodSpec{NodeName: nodeName},
		}
	}
	return sset
}

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b metav1.Object
		want bool
	}{
		{
			name: "typemeta and resourceVersion differences are ignored",
			a:    workload("StatefulSet", "1", ""),
			b:    workload("", "2", ""),
			want: true,
		},
		{
			name: "identical objects",
			a:    workload("StatefulSet", "1", ""),
			b:    workload("StatefulSet", "1", ""),
			want: true,
		},
		{
			name: "spec differences are detected",
			a:    workload("StatefulSet", "1", "worker-0"),
			b:    workload("StatefulSet", "2", ""),
			want: false,
		},
		{
			name: "spec differences are detected regardless of typemeta",
			a:    workload("StatefulSet", "1", "worker-0"),
			b:    workload("", "1", ""),
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Equal(tt.a, tt.b))
		})
	}
}
