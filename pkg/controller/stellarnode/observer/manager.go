// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package observer

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.elastic.co/apm/v2"
	"k8s.io/apimachinery/pkg/types"

	stellarv1alpha1 "github.com/stellar/node-operator/pkg/apis/stellarnode/v1alpha1"
	"github.com/stellar/node-operator/pkg/controller/common/annotation"
	"github.com/stellar/node-operator/pkg/utils/k8s"
	"github.com/stellar/node-operator/pkg/utils/net"
)

// ObserverIntervalAnnotation overrides the probe interval for one node.
const ObserverIntervalAnnotation = "stellar.org/observer-interval"

// Manager keeps one observer per StellarNode.
type Manager struct {
	observerLock    sync.RWMutex
	observers       map[types.NamespacedName]*Observer
	listenerLock    sync.RWMutex
	listeners       []OnObservation
	httpClient      *http.Client
	defaultInterval time.Duration
	tracer          *apm.Tracer
}

// NewManager returns a new observer manager. A zero defaultInterval falls
// back to the package default, a nil dialer to direct connections.
func NewManager(dialer net.Dialer, defaultInterval time.Duration, tracer *apm.Tracer) *Manager {
	if defaultInterval <= 0 {
		defaultInterval = defaultObservationInterval
	}
	return &Manager{
		observers:       make(map[types.NamespacedName]*Observer),
		httpClient:      NewProbeClient(dialer),
		defaultInterval: defaultInterval,
		tracer:          tracer,
	}
}

// ObservedStateResolver registers the node for observation and returns a
// function resolving its last known health, as expected by the reconciliation
// driver.
func (m *Manager) ObservedStateResolver(node stellarv1alpha1.StellarNode, apiPort int32) func() Health {
	observer := m.Observe(node, apiPort)
	return func() Health {
		return observer.LastHealth()
	}
}

func (m *Manager) getObserver(key types.NamespacedName) (*Observer, bool) {
	m.observerLock.RLock()
	defer m.observerLock.RUnlock()
	observer, ok := m.observers[key]
	return observer, ok
}

// Observe gets or creates an observer for the given node. The observer is
// recreated when its settings or probe target changed.
func (m *Manager) Observe(node stellarv1alpha1.StellarNode, apiPort int32) *Observer {
	nsName := k8s.ExtractNamespacedName(&node)
	settings := m.extractObserverSettings(node)
	tgt := target{
		nodeType: node.Spec.NodeType,
		baseURL:  serviceURL(node, apiPort),
	}

	observer, exists := m.getObserver(nsName)
	if exists && observer.target == tgt && observer.settings == settings {
		return observer
	}
	return m.createOrReplaceObserver(nsName, tgt, settings)
}

func (m *Manager) extractObserverSettings(node stellarv1alpha1.StellarNode) Settings {
	return Settings{
		ObservationInterval: annotation.ExtractTimeout(node.ObjectMeta, ObserverIntervalAnnotation, m.defaultInterval),
		Tracer:              m.tracer,
	}
}

func (m *Manager) createOrReplaceObserver(node types.NamespacedName, tgt target, settings Settings) *Observer {
	m.observerLock.Lock()
	defer m.observerLock.Unlock()

	observer, exists := m.observers[node]
	if exists {
		log.Info("Replacing observer", "namespace", node.Namespace, "node_name", node.Name)
		observer.Stop()
		delete(m.observers, node)
	}

	observer = NewObserver(node, tgt, m.httpClient, settings, m.notifyListeners)
	observer.Start()
	m.observers[node] = observer
	return observer
}

// List returns the nodes currently observed.
func (m *Manager) List() []types.NamespacedName {
	m.observerLock.RLock()
	defer m.observerLock.RUnlock()

	names := make([]types.NamespacedName, 0, len(m.observers))
	for name := range m.observers {
		names = append(names, name)
	}
	return names
}

// AddObservationListener registers a listener notified on every observation.
func (m *Manager) AddObservationListener(listener OnObservation) {
	m.listenerLock.Lock()
	defer m.listenerLock.Unlock()
	m.listeners = append(m.listeners, listener)
}

func (m *Manager) notifyListeners(node types.NamespacedName, previousHealth, newHealth Health) {
	m.listenerLock.RLock()
	defer m.listenerLock.RUnlock()
	switch len(m.listeners) {
	case 0:
		return
	case 1:
		m.listeners[0](node, previousHealth, newHealth)
	default:
		var wg sync.WaitGroup
		for _, l := range m.listeners {
			wg.Add(1)
			go func(f OnObservation) {
				defer wg.Done()
				f(node, previousHealth, newHealth)
			}(l)
		}
		wg.Wait()
	}
}

// StopObserving stops and removes the observer of the given node, if any.
func (m *Manager) StopObserving(key types.NamespacedName) {
	m.observerLock.Lock()
	defer m.observerLock.Unlock()

	if observer, ok := m.observers[key]; ok {
		log.Info("Stopping observer", "namespace", key.Namespace, "node_name", key.Name)
		observer.Stop()
		delete(m.observers, key)
	}
}

// serviceURL is the in-cluster URL of the node's stable Service.
func serviceURL(node stellarv1alpha1.StellarNode, apiPort int32) string {
	return fmt.Sprintf("http://%s.%s.svc:%d", stellarv1alpha1.ServiceName(node.Name), node.Namespace, apiPort)
}
