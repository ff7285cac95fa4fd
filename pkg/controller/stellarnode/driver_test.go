// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package stellarnode

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	apimeta "k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/tools/record"

	stellarv1alpha1 "github.com/stellar/node-operator/pkg/apis/stellarnode/v1alpha1"
	"github.com/stellar/node-operator/pkg/controller/common/expectations"
	"github.com/stellar/node-operator/pkg/controller/common/reconciler"
	controllerscheme "github.com/stellar/node-operator/pkg/controller/common/scheme"
	"github.com/stellar/node-operator/pkg/controller/common/watches"
	"github.com/stellar/node-operator/pkg/controller/stellarnode/archive"
	"github.com/stellar/node-operator/pkg/controller/stellarnode/mesh"
	"github.com/stellar/node-operator/pkg/controller/stellarnode/observer"
	"github.com/stellar/node-operator/pkg/utils/k8s"
)

func newTestNode() *stellarv1alpha1.StellarNode {
	return &stellarv1alpha1.StellarNode{
		ObjectMeta: metav1.ObjectMeta{
			Name:       "val",
			Namespace:  "ns",
			Generation: 1,
			Finalizers: []string{stellarv1alpha1.Finalizer},
		},
		Spec: stellarv1alpha1.StellarNodeSpec{
			NodeType: stellarv1alpha1.NodeTypeValidator,
			Network:  stellarv1alpha1.NetworkTestnet,
			ValidatorConfig: &stellarv1alpha1.ValidatorConfig{
				SeedSecretRef: "val-seed-secret",
			},
		},
	}
}

func newTestDriver(c k8s.Client, health observer.Health) (*driver, *record.FakeRecorder) {
	recorder := record.NewFakeRecorder(100)
	return &driver{
		client:         c,
		recorder:       recorder,
		dynamicWatches: watches.NewDynamicWatches(),
		observers:      observer.NewManager(nil, 0, nil),
		expectations:   expectations.NewExpectations(),
		archives:       archive.NewChecker(),
		observedState: func(_ stellarv1alpha1.StellarNode) observer.Health {
			return health
		},
	}, recorder
}

func condition(status *statusState, conditionType string) *metav1.Condition {
	return apimeta.FindStatusCondition(status.status.Conditions, conditionType)
}

func TestDriverHappyPathReachesRunning(t *testing.T) {
	require.NoError(t, controllerscheme.SetupScheme())
	node := newTestNode()
	c := k8s.NewFakeClient(node)
	d, _ := newTestDriver(c, observer.Health{Status: observer.HealthHealthy, LedgerSequence: 5000})

	results, status := d.run(context.Background(), *node)
	_, err := results.Aggregate()
	require.NoError(t, err)

	assert.Equal(t, stellarv1alpha1.NodePhaseRunning, status.status.Phase)
	assert.Equal(t, int64(1), status.status.ObservedGeneration)
	assert.Equal(t, int64(5000), status.status.LedgerSequence)
	ready := condition(status, stellarv1alpha1.ConditionReady)
	require.NotNil(t, ready)
	assert.Equal(t, metav1.ConditionTrue, ready.Status)
	assert.Equal(t, stellarv1alpha1.ReasonNodeSynced, ready.Reason)

	// all children of a Validator exist
	var sset appsv1.StatefulSet
	require.NoError(t, c.Get(context.Background(), types.NamespacedName{Namespace: "ns", Name: "val"}, &sset))
	assert.Equal(t, int32(1), *sset.Spec.Replicas)
	var svc corev1.Service
	require.NoError(t, c.Get(context.Background(), types.NamespacedName{Namespace: "ns", Name: "val-service"}, &svc))
	var cm corev1.ConfigMap
	require.NoError(t, c.Get(context.Background(), types.NamespacedName{Namespace: "ns", Name: "val-config"}, &cm))
}

func TestDriverAddsFinalizerFirst(t *testing.T) {
	require.NoError(t, controllerscheme.SetupScheme())
	node := newTestNode()
	node.Finalizers = nil
	c := k8s.NewFakeClient(node)
	d, _ := newTestDriver(c, observer.Health{Status: observer.HealthHealthy})

	results, _ := d.run(context.Background(), *node)
	assert.True(t, results.HasRequeue())

	var updated stellarv1alpha1.StellarNode
	require.NoError(t, c.Get(context.Background(), types.NamespacedName{Namespace: "ns", Name: "val"}, &updated))
	assert.True(t, updated.HasFinalizer())

	// no children until the finalized object is re-read
	var sset appsv1.StatefulSet
	err := c.Get(context.Background(), types.NamespacedName{Namespace: "ns", Name: "val"}, &sset)
	assert.True(t, apierrors.IsNotFound(err))
}

func TestDriverInvalidSpecGoesFailed(t *testing.T) {
	require.NoError(t, controllerscheme.SetupScheme())
	node := newTestNode()
	node.Spec.ValidatorConfig = nil // required for Validators
	c := k8s.NewFakeClient(node)
	d, recorder := newTestDriver(c, observer.Health{Status: observer.HealthHealthy})

	results, status := d.run(context.Background(), *node)
	_, err := results.Aggregate()
	require.NoError(t, err)
	assert.False(t, results.HasRequeue())

	assert.Equal(t, stellarv1alpha1.NodePhaseFailed, status.status.Phase)
	ready := condition(status, stellarv1alpha1.ConditionReady)
	require.NotNil(t, ready)
	assert.Equal(t, metav1.ConditionFalse, ready.Status)
	assert.Equal(t, stellarv1alpha1.ReasonSpecInvalid, ready.Reason)

	select {
	case event := <-recorder.Events:
		assert.Contains(t, event, "Validation")
	default:
		t.Fatal("expected a Validation event")
	}

	// nothing was created
	var sset appsv1.StatefulSet
	getErr := c.Get(context.Background(), types.NamespacedName{Namespace: "ns", Name: "val"}, &sset)
	assert.True(t, apierrors.IsNotFound(getErr))
}

func TestDriverSuspendedScalesToZero(t *testing.T) {
	require.NoError(t, controllerscheme.SetupScheme())
	node := newTestNode()
	node.Spec.Suspended = true
	c := k8s.NewFakeClient(node)
	d, recorder := newTestDriver(c, observer.Health{Status: observer.HealthHealthy})

	_, status := d.run(context.Background(), *node)

	assert.Equal(t, stellarv1alpha1.NodePhasePending, status.status.Phase)
	ready := condition(status, stellarv1alpha1.ConditionReady)
	require.NotNil(t, ready)
	assert.Equal(t, stellarv1alpha1.ReasonSuspended, ready.Reason)

	var sset appsv1.StatefulSet
	require.NoError(t, c.Get(context.Background(), types.NamespacedName{Namespace: "ns", Name: "val"}, &sset))
	assert.Equal(t, int32(0), *sset.Spec.Replicas)

	select {
	case event := <-recorder.Events:
		assert.Contains(t, event, "Suspended")
	default:
		t.Fatal("expected a Suspended event")
	}
}

func TestDriverHealthUnknownRequeuesFixedPeriod(t *testing.T) {
	require.NoError(t, controllerscheme.SetupScheme())
	node := newTestNode()
	c := k8s.NewFakeClient(node)
	d, _ := newTestDriver(c, observer.UnknownHealth())

	results, status := d.run(context.Background(), *node)
	result, err := results.Aggregate()
	require.NoError(t, err)
	assert.Equal(t, healthUnknownRequeue, result.RequeueAfter)

	assert.Equal(t, stellarv1alpha1.NodePhaseCreating, status.status.Phase)
	ready := condition(status, stellarv1alpha1.ConditionReady)
	require.NotNil(t, ready)
	assert.Equal(t, stellarv1alpha1.ReasonHealthUnknown, ready.Reason)
}

func TestDriverUnhealthyEmitsEventAndRequeues(t *testing.T) {
	require.NoError(t, controllerscheme.SetupScheme())
	node := newTestNode()
	c := k8s.NewFakeClient(node)
	d, recorder := newTestDriver(c, observer.Health{Status: observer.HealthUnhealthy, Reason: "node reports Catching up"})

	results, status := d.run(context.Background(), *node)
	result, err := results.Aggregate()
	require.NoError(t, err)
	assert.Equal(t, healthUnknownRequeue, result.RequeueAfter)

	ready := condition(status, stellarv1alpha1.ConditionReady)
	require.NotNil(t, ready)
	assert.Equal(t, stellarv1alpha1.ReasonNodeUnhealthy, ready.Reason)

	select {
	case event := <-recorder.Events:
		assert.Contains(t, event, "Unhealthy")
	default:
		t.Fatal("expected an Unhealthy event")
	}
}

func TestDriverMeshPoliciesAfterHealthy(t *testing.T) {
	require.NoError(t, controllerscheme.SetupScheme())
	node := newTestNode()
	node.Spec.ServiceMesh = &stellarv1alpha1.ServiceMeshConfig{
		SidecarInjection: true,
		Istio:            &stellarv1alpha1.IstioMeshConfig{},
	}

	t.Run("unhealthy node gets no mesh policies", func(t *testing.T) {
		c := k8s.NewFakeClient(node.DeepCopy())
		d, _ := newTestDriver(c, observer.UnknownHealth())
		_, _ = d.run(context.Background(), *node)
		assertMeshObjectCount(t, c, *node, 0)
	})

	t.Run("healthy node gets all four policies", func(t *testing.T) {
		c := k8s.NewFakeClient(node.DeepCopy())
		d, _ := newTestDriver(c, observer.Health{Status: observer.HealthHealthy, LedgerSequence: 1})
		results, _ := d.run(context.Background(), *node)
		_, err := results.Aggregate()
		require.NoError(t, err)
		assertMeshObjectCount(t, c, *node, 4)
	})
}

func TestDriverMeshRemovalDeletesPolicies(t *testing.T) {
	require.NoError(t, controllerscheme.SetupScheme())
	meshed := newTestNode()
	meshed.Spec.ServiceMesh = &stellarv1alpha1.ServiceMeshConfig{
		Istio: &stellarv1alpha1.IstioMeshConfig{},
	}
	c := k8s.NewFakeClient(meshed)
	d, _ := newTestDriver(c, observer.Health{Status: observer.HealthHealthy, LedgerSequence: 1})

	results, _ := d.run(context.Background(), *meshed)
	_, err := results.Aggregate()
	require.NoError(t, err)
	assertMeshObjectCount(t, c, *meshed, 4)

	// dropping serviceMesh from the spec removes the policy objects on the
	// next pass
	unmeshed := meshed.DeepCopy()
	unmeshed.Spec.ServiceMesh = nil
	results, _ = d.run(context.Background(), *unmeshed)
	_, err = results.Aggregate()
	require.NoError(t, err)
	// look the concrete objects up through the previous, meshed spec
	assertMeshObjectCount(t, c, *meshed, 0)
}

func TestDriverDeletionRemovesFinalizer(t *testing.T) {
	require.NoError(t, controllerscheme.SetupScheme())
	now := metav1.Now()
	node := newTestNode()
	node.DeletionTimestamp = &now
	c := k8s.NewFakeClient(node)
	d, recorder := newTestDriver(c, observer.UnknownHealth())

	results, status := d.run(context.Background(), *node)
	_, err := results.Aggregate()
	require.NoError(t, err)

	assert.Equal(t, stellarv1alpha1.NodePhaseDeleting, status.status.Phase)

	// removing the last finalizer lets the API server collect the object
	var gone stellarv1alpha1.StellarNode
	getErr := c.Get(context.Background(), types.NamespacedName{Namespace: "ns", Name: "val"}, &gone)
	assert.True(t, apierrors.IsNotFound(getErr))

	foundDeleted := false
	for len(recorder.Events) > 0 {
		if strings.Contains(<-recorder.Events, "Deleted") {
			foundDeleted = true
		}
	}
	assert.True(t, foundDeleted)
}

func TestDriverStatusUpdateWritesSubresource(t *testing.T) {
	require.NoError(t, controllerscheme.SetupScheme())
	node := newTestNode()
	c := k8s.NewFakeClient(node)
	d, _ := newTestDriver(c, observer.Health{Status: observer.HealthHealthy, LedgerSequence: 77})

	_, status := d.run(context.Background(), *node)
	require.NoError(t, status.update(context.Background(), c))

	var live stellarv1alpha1.StellarNode
	require.NoError(t, c.Get(context.Background(), types.NamespacedName{Namespace: "ns", Name: "val"}, &live))
	assert.Equal(t, stellarv1alpha1.NodePhaseRunning, live.Status.Phase)
	assert.Equal(t, int64(77), live.Status.LedgerSequence)
}

func TestDriverSecondPassIsIdempotent(t *testing.T) {
	require.NoError(t, controllerscheme.SetupScheme())
	node := newTestNode()
	c := k8s.NewFakeClient(node)
	d, _ := newTestDriver(c, observer.Health{Status: observer.HealthHealthy, LedgerSequence: 1})

	results, _ := d.run(context.Background(), *node)
	_, err := results.Aggregate()
	require.NoError(t, err)

	var first appsv1.StatefulSet
	require.NoError(t, c.Get(context.Background(), types.NamespacedName{Namespace: "ns", Name: "val"}, &first))

	results, _ = d.run(context.Background(), *node)
	_, err = results.Aggregate()
	require.NoError(t, err)

	var second appsv1.StatefulSet
	require.NoError(t, c.Get(context.Background(), types.NamespacedName{Namespace: "ns", Name: "val"}, &second))
	assert.Equal(t, first.ResourceVersion, second.ResourceVersion, "an unchanged pass must not update the workload")
}

// A pass that never settles is cut off after exactly maxStepTransitions
// transitions and requeued with a long backoff.
func TestWalkBoundsStepTransitions(t *testing.T) {
	node := newTestNode()
	status := newStatusState(*node)
	results := reconciler.NewResult(context.Background())

	calls := 0
	looping := func(_ context.Context, current step, _ *stellarv1alpha1.StellarNode, _ *statusState, _ *reconciler.Results) (step, bool) {
		calls++
		return current, false
	}
	walked, _ := walk(context.Background(), node, status, results, looping)

	assert.Equal(t, maxStepTransitions, calls)
	result, err := walked.Aggregate()
	require.NoError(t, err)
	assert.Equal(t, internalErrorRequeue, result.RequeueAfter)
}

func TestReferencedSecrets(t *testing.T) {
	node := newTestNode()
	assert.Equal(t, []string{"val-seed-secret"}, referencedSecrets(*node))

	node.Spec.ValidatorConfig.SeedSecretRef = "vault:secret/stellar/val#seed"
	assert.Empty(t, referencedSecrets(*node))

	horizon := stellarv1alpha1.StellarNode{
		Spec: stellarv1alpha1.StellarNodeSpec{
			NodeType:      stellarv1alpha1.NodeTypeHorizon,
			HorizonConfig: &stellarv1alpha1.HorizonConfig{DatabaseSecretRef: "horizon-db"},
		},
	}
	assert.Equal(t, []string{"horizon-db"}, referencedSecrets(horizon))
}

// assertMeshObjectCount counts how many of the node's mesh policy objects
// currently exist in the cluster.
func assertMeshObjectCount(t *testing.T, c k8s.Client, node stellarv1alpha1.StellarNode, want int) {
	t.Helper()
	found := 0
	for _, expected := range mesh.Resources(node) {
		existing := &unstructured.Unstructured{}
		existing.SetGroupVersionKind(expected.GroupVersionKind())
		err := c.Get(context.Background(), types.NamespacedName{
			Namespace: expected.GetNamespace(), Name: expected.GetName(),
		}, existing)
		if err == nil {
			found++
		}
	}
	assert.Equal(t, want, found)
}
