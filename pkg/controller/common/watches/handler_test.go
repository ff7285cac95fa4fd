// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package watches

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/util/workqueue"
	"sigs.k8s.io/controller-runtime/pkg/event"
	"sigs.k8s.io/controller-runtime/pkg/reconcile"
)

func newQueue() workqueue.TypedRateLimitingInterface[reconcile.Request] {
	return workqueue.NewTypedRateLimitingQueue(workqueue.DefaultTypedControllerRateLimiter[reconcile.Request]())
}

func TestDynamicEnqueueRequest(t *testing.T) {
	watcher := types.NamespacedName{Namespace: "ns", Name: "watcher"}
	watchedSecret := types.NamespacedName{Namespace: "ns", Name: "watched"}

	d := NewDynamicEnqueueRequest[*corev1.Secret, reconcile.Request]()
	assert.Empty(t, d.Registrations())

	require.NoError(t, d.AddHandler(NamedWatch[*corev1.Secret]{
		Name:    "secret-watch",
		Watched: []types.NamespacedName{watchedSecret},
		Watcher: watcher,
	}))
	assert.Equal(t, []string{"secret-watch"}, d.Registrations())

	q := newQueue()
	secret := &corev1.Secret{ObjectMeta: metav1.ObjectMeta{Namespace: "ns", Name: "watched"}}
	d.Create(context.Background(), event.TypedCreateEvent[*corev1.Secret]{Object: secret}, q)
	require.Equal(t, 1, q.Len())
	req, _ := q.Get()
	assert.Equal(t, reconcile.Request{NamespacedName: watcher}, req)
	q.Done(req)

	// events for unrelated objects are dropped
	other := &corev1.Secret{ObjectMeta: metav1.ObjectMeta{Namespace: "ns", Name: "other"}}
	d.Update(context.Background(), event.TypedUpdateEvent[*corev1.Secret]{ObjectOld: other, ObjectNew: other}, q)
	assert.Equal(t, 0, q.Len())

	// removing the handler stops the enqueueing
	d.RemoveHandlerForKey("secret-watch")
	assert.Empty(t, d.Registrations())
	d.Create(context.Background(), event.TypedCreateEvent[*corev1.Secret]{Object: secret}, q)
	assert.Equal(t, 0, q.Len())
}

func TestWatchUserProvidedSecrets(t *testing.T) {
	watcher := types.NamespacedName{Namespace: "ns", Name: "node-1"}
	watches := NewDynamicWatches()

	require.NoError(t, WatchUserProvidedSecrets(watcher, watches, "node-1-secrets", []string{"seed-secret"}))
	assert.Equal(t, []string{"node-1-secrets"}, watches.Secrets.Registrations())

	// an empty list removes the watch
	require.NoError(t, WatchUserProvidedSecrets(watcher, watches, "node-1-secrets", nil))
	assert.Empty(t, watches.Secrets.Registrations())
}
