// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

// Package expectations guards against reconciling with an out-of-date cache
// right after the operator's own writes.
package expectations

import (
	"sync"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
)

// Expectations stores the last generation the operator wrote per resource UID.
// A reconciliation pass observing an older generation is working from a stale
// cache and should requeue instead of acting on stale data.
type Expectations struct {
	mu sync.RWMutex
	// resource UID -> generation
	generations map[types.UID]int64
}

func NewExpectations() *Expectations {
	return &Expectations{
		generations: make(map[types.UID]int64),
	}
}

// ExpectGeneration records the generation of a resource the operator just updated.
func (e *Expectations) ExpectGeneration(meta metav1.ObjectMeta) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.generations[meta.UID] = meta.Generation
}

// SatisfiedGenerations returns true if the observed generations are at least as
// recent as the expected ones.
func (e *Expectations) SatisfiedGenerations(metaObjs ...metav1.ObjectMeta) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, meta := range metaObjs {
		if expectedGen, exists := e.generations[meta.UID]; exists && meta.Generation < expectedGen {
			return false
		}
	}
	return true
}

// Forget drops any expectation stored for the given resource.
func (e *Expectations) Forget(uid types.UID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.generations, uid)
}
