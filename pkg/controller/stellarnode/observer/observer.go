// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

// Package observer keeps one background goroutine per StellarNode probing the
// node's sync status, so reconciliations read a recent verdict instead of
// blocking on a live probe.
package observer

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.elastic.co/apm/v2"
	"k8s.io/apimachinery/pkg/types"

	stellarv1alpha1 "github.com/stellar/node-operator/pkg/apis/stellarnode/v1alpha1"
	ulog "github.com/stellar/node-operator/pkg/utils/log"
)

var log = ulog.Log.WithName("observer")

// defaultObservationInterval is the default time between two probes of the
// same node. If the node is unreachable the effective interval is the
// interval plus the probe timeout.
const defaultObservationInterval = 10 * time.Second

// Settings for one Observer.
type Settings struct {
	ObservationInterval time.Duration
	Tracer              *apm.Tracer
}

// OnObservation is invoked after every completed probe.
type OnObservation func(node types.NamespacedName, previousHealth, newHealth Health)

// target is everything needed to probe one node.
type target struct {
	nodeType stellarv1alpha1.NodeType
	baseURL  string
}

// Observer periodically probes a single node, in a thread-safe way.
type Observer struct {
	node          types.NamespacedName
	target        target
	httpClient    *http.Client
	settings      Settings
	creationTime  time.Time
	stopChan      chan struct{}
	stopOnce      sync.Once
	onObservation OnObservation
	lastHealth    Health
	mutex         sync.RWMutex
}

// NewObserver creates an Observer. It does not probe until Start is called.
func NewObserver(node types.NamespacedName, tgt target, httpClient *http.Client, settings Settings, onObservation OnObservation) *Observer {
	log.Info("Creating observer for node", "namespace", node.Namespace, "node_name", node.Name)
	return &Observer{
		node:          node,
		target:        tgt,
		httpClient:    httpClient,
		settings:      settings,
		creationTime:  time.Now(),
		stopChan:      make(chan struct{}),
		onObservation: onObservation,
		lastHealth:    UnknownHealth(),
	}
}

// Start the observer in a separate goroutine.
func (o *Observer) Start() {
	go o.runPeriodically()
}

// Stop the observer loop.
func (o *Observer) Stop() {
	o.stopOnce.Do(func() {
		close(o.stopChan)
	})
}

// LastHealth returns the most recent verdict.
func (o *Observer) LastHealth() Health {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return o.lastHealth
}

func (o *Observer) runPeriodically() {
	o.observe()

	ticker := time.NewTicker(o.settings.ObservationInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			o.observe()
		case <-o.stopChan:
			log.Info("Stopping observer for node", "namespace", o.node.Namespace, "node_name", o.node.Name)
			return
		}
	}
}

// observe runs a single probe, notifies the listener and stores the verdict.
func (o *Observer) observe() {
	ctx := context.Background()

	log.V(1).Info("Probing node sync status", "namespace", o.node.Namespace, "node_name", o.node.Name)

	if o.settings.Tracer != nil {
		tx := o.settings.Tracer.StartTransaction(o.node.String(), "stellarnode_observer")
		defer tx.End()
		ctx = apm.ContextWithTransaction(ctx, tx)
	}

	newHealth := Probe(ctx, o.httpClient, o.target.nodeType, o.target.baseURL)
	if o.onObservation != nil {
		o.onObservation(o.node, o.LastHealth(), newHealth)
	}

	o.mutex.Lock()
	o.lastHealth = newHealth
	o.mutex.Unlock()
}
