// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package stellarnode

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	corev1 "k8s.io/api/core/v1"
	policyv1 "k8s.io/api/policy/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	apimeta "k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/apimachinery/pkg/util/intstr"
	"k8s.io/client-go/tools/record"

	stellarv1alpha1 "github.com/stellar/node-operator/pkg/apis/stellarnode/v1alpha1"
	"github.com/stellar/node-operator/pkg/controller/common"
	"github.com/stellar/node-operator/pkg/controller/common/deployment"
	"github.com/stellar/node-operator/pkg/controller/common/events"
	"github.com/stellar/node-operator/pkg/controller/common/expectations"
	"github.com/stellar/node-operator/pkg/controller/common/finalizer"
	"github.com/stellar/node-operator/pkg/controller/common/operator"
	"github.com/stellar/node-operator/pkg/controller/common/reconciler"
	"github.com/stellar/node-operator/pkg/controller/common/statefulset"
	"github.com/stellar/node-operator/pkg/controller/common/tracing"
	"github.com/stellar/node-operator/pkg/controller/common/watches"
	"github.com/stellar/node-operator/pkg/controller/stellarnode/archive"
	"github.com/stellar/node-operator/pkg/controller/stellarnode/cleanup"
	"github.com/stellar/node-operator/pkg/controller/stellarnode/mesh"
	"github.com/stellar/node-operator/pkg/controller/stellarnode/nodespec"
	"github.com/stellar/node-operator/pkg/controller/stellarnode/observer"
	"github.com/stellar/node-operator/pkg/controller/stellarnode/vaultsecret"
	"github.com/stellar/node-operator/pkg/utils/k8s"
	ulog "github.com/stellar/node-operator/pkg/utils/log"
	"github.com/stellar/node-operator/pkg/utils/vault"
)

// driver runs a single reconciliation pass for one StellarNode. A fresh driver
// is built per pass; all cross-pass state lives in the shared observer manager
// and expectations.
type driver struct {
	client         k8s.Client
	recorder       record.EventRecorder
	dynamicWatches watches.DynamicWatches
	observers      *observer.Manager
	expectations   *expectations.Expectations
	vaultClient    vault.Client
	archives       *archive.Checker
	params         operator.Parameters

	// observedState resolves the last known health of the node, defaulting to
	// the observer manager. Overridable in tests.
	observedState func(node stellarv1alpha1.StellarNode) observer.Health
}

func (d *driver) observe(node stellarv1alpha1.StellarNode) observer.Health {
	if d.observedState != nil {
		return d.observedState(node)
	}
	return d.observers.ObservedStateResolver(node, nodespec.APIPort(node))()
}

// run derives the current step from spec, status and deletion timestamp, then
// walks the state machine until a terminal step or a requeue decision. The
// walk is bounded: more than maxStepTransitions transitions means a logic bug
// and aborts the pass with a long backoff.
func (d *driver) run(ctx context.Context, node stellarv1alpha1.StellarNode) (*reconciler.Results, *statusState) {
	defer tracing.Span(&ctx)()
	results := reconciler.NewResult(ctx)
	status := newStatusState(node)
	return walk(ctx, &node, status, results, d.step)
}

type stepFunc func(ctx context.Context, current step, node *stellarv1alpha1.StellarNode, status *statusState, results *reconciler.Results) (step, bool)

// walk drives stepFn from stepInit until it reports the pass as finished,
// allowing at most maxStepTransitions transitions.
func walk(
	ctx context.Context,
	node *stellarv1alpha1.StellarNode,
	status *statusState,
	results *reconciler.Results,
	stepFn stepFunc,
) (*reconciler.Results, *statusState) {
	current := stepInit
	for transitions := 0; transitions < maxStepTransitions; transitions++ {
		next, done := stepFn(ctx, current, node, status, results)
		if done {
			return results, status
		}
		current = next
	}

	err := fmt.Errorf("state machine exceeded %d transitions in a single pass", maxStepTransitions)
	ulog.FromContext(ctx).Error(err, "Aborting reconciliation pass",
		"namespace", node.Namespace, "node_name", node.Name)
	results.WithReconciliationState(
		reconciler.RequeueAfter(internalErrorRequeue).WithReason("Internal error: " + err.Error()),
	)
	return results, status
}

// step executes one state and returns the next one, or done=true when the
// pass is finished.
func (d *driver) step(
	ctx context.Context,
	current step,
	node *stellarv1alpha1.StellarNode,
	status *statusState,
	results *reconciler.Results,
) (step, bool) {
	switch current {
	case stepInit:
		return d.doInit(ctx, node, results)
	case stepValidateSpec:
		return d.doValidateSpec(node, status)
	case stepSpecInvalid:
		return d.doSpecInvalid(node, status, results)
	case stepEnsureChildren:
		return d.doEnsureChildren(ctx, node, status, results)
	case stepSuspended:
		return d.doSuspended(node, status, results)
	case stepHealthCheck:
		return d.doHealthCheck(node, status, results)
	case stepEnsureMesh:
		return d.doEnsureMesh(ctx, node, status, results)
	case stepStable:
		return d.doStable(ctx, node, status, results)
	case stepDeleting:
		return d.doDeleting(ctx, node, status, results)
	case stepDeleted:
		return stepDeleted, true
	default:
		results.WithError(fmt.Errorf("unknown reconciliation step %q", current))
		return current, true
	}
}

func (d *driver) doInit(ctx context.Context, node *stellarv1alpha1.StellarNode, results *reconciler.Results) (step, bool) {
	if node.IsMarkedForDeletion() {
		return stepDeleting, false
	}
	added, err := finalizer.Add(ctx, d.client, node, stellarv1alpha1.Finalizer)
	if err != nil {
		results.WithError(errors.Wrap(err, "while adding finalizer"))
		return stepInit, true
	}
	if added {
		// pick up the finalized object on the next pass
		results.WithRequeue()
		return stepInit, true
	}
	return stepValidateSpec, false
}

func (d *driver) doValidateSpec(node *stellarv1alpha1.StellarNode, status *statusState) (step, bool) {
	if errs := node.ValidateSpec(); len(errs) > 0 {
		msgs := make([]string, 0, len(errs))
		for _, e := range errs {
			msgs = append(msgs, e.Error())
		}
		status.setMessage(strings.Join(msgs, "; "))
		return stepSpecInvalid, false
	}
	// Ready stays untouched here: the pass decides it at its terminal step,
	// so a stable node does not flap its condition on every pass.
	return stepEnsureChildren, false
}

func (d *driver) doSpecInvalid(node *stellarv1alpha1.StellarNode, status *statusState, results *reconciler.Results) (step, bool) {
	message := status.status.Message
	status.setPhase(stellarv1alpha1.NodePhaseFailed)
	status.setCondition(stellarv1alpha1.ConditionReady, metav1.ConditionFalse,
		stellarv1alpha1.ReasonSpecInvalid, message)
	status.setCondition(stellarv1alpha1.ConditionProgressing, metav1.ConditionFalse,
		stellarv1alpha1.ReasonSpecInvalid, "Reconciliation on hold until the spec is fixed")
	d.recorder.Event(node, corev1.EventTypeWarning, events.EventReasonValidation, message)
	// no requeue: a generation change will enqueue a new pass
	results.WithReconciliationState(reconciler.ReconciliationState{}.WithReason(message).ReconciliationComplete())
	return stepSpecInvalid, true
}

// doEnsureChildren creates or updates the owned children in dependency order:
// seed material, configuration, workload, service, disruption budget.
func (d *driver) doEnsureChildren(ctx context.Context, node *stellarv1alpha1.StellarNode, status *statusState, results *reconciler.Results) (step, bool) {
	span := tracing.Span(&ctx)
	defer span()

	if err := d.reconcileWatches(*node); err != nil {
		results.WithError(err)
		return stepEnsureChildren, true
	}

	if err := vaultsecret.EnsureSeedSecret(ctx, d.client, d.vaultClient, *node); err != nil {
		d.failProgressing(status, err)
		results.WithError(errors.Wrap(err, "while ensuring seed secret"))
		return stepEnsureChildren, true
	}

	expectedConfig, checksum, err := nodespec.BuildConfigMap(*node)
	if err != nil {
		d.failProgressing(status, err)
		results.WithError(errors.Wrap(err, "while rendering configuration"))
		return stepEnsureChildren, true
	}
	if err := reconcileConfigMap(ctx, d.client, node, expectedConfig); err != nil {
		d.failProgressing(status, err)
		results.WithError(err)
		return stepEnsureChildren, true
	}

	satisfied, err := d.reconcileWorkload(ctx, node, checksum)
	if err != nil {
		d.failProgressing(status, err)
		results.WithError(err)
		return stepEnsureChildren, true
	}

	expectedService := nodespec.BuildService(*node)
	if _, err := common.ReconcileService(ctx, d.client, &expectedService, node); err != nil {
		d.failProgressing(status, err)
		results.WithError(err)
		return stepEnsureChildren, true
	}

	if err := d.reconcilePodDisruptionBudget(ctx, node); err != nil {
		d.failProgressing(status, err)
		results.WithError(err)
		return stepEnsureChildren, true
	}

	status.setCondition(stellarv1alpha1.ConditionProgressing, metav1.ConditionTrue,
		stellarv1alpha1.ReasonChildrenEnsured, "All children are up to date")

	if !satisfied {
		// the workload cache has not caught up with our own update yet,
		// health and mesh decisions would be based on stale data
		if status.status.EffectivePhase() == stellarv1alpha1.NodePhasePending {
			status.setPhase(stellarv1alpha1.NodePhaseCreating)
		}
		results.WithReconciliationState(reconciler.RequeueAfter(healthUnknownRequeue).WithReason("Waiting for the workload cache to catch up"))
		return stepEnsureChildren, true
	}

	if node.Spec.Suspended {
		return stepSuspended, false
	}
	return stepHealthCheck, false
}

func (d *driver) doSuspended(node *stellarv1alpha1.StellarNode, status *statusState, results *reconciler.Results) (step, bool) {
	// the observer has nothing to probe while the workload is scaled to zero
	d.observers.StopObserving(k8s.ExtractNamespacedName(node))

	status.setPhase(stellarv1alpha1.NodePhasePending)
	status.setCondition(stellarv1alpha1.ConditionReady, metav1.ConditionFalse,
		stellarv1alpha1.ReasonSuspended, "Node is suspended, workload scaled to zero")
	status.setCondition(stellarv1alpha1.ConditionProgressing, metav1.ConditionFalse,
		stellarv1alpha1.ReasonSuspended, "Node is suspended")
	if !alreadySuspended(*node) {
		d.recorder.Event(node, corev1.EventTypeNormal, events.EventReasonSuspended, "Node suspended")
	}
	results.WithReconciliationState(reconciler.ReconciliationState{}.WithReason("Node suspended").ReconciliationComplete())
	return stepSuspended, true
}

func (d *driver) doHealthCheck(node *stellarv1alpha1.StellarNode, status *statusState, results *reconciler.Results) (step, bool) {
	health := d.observe(*node)
	status.setLedgerSequence(health.LedgerSequence)

	switch health.Status {
	case observer.HealthHealthy:
		return stepEnsureMesh, false
	case observer.HealthUnhealthy:
		downgradePhase(status)
		status.setCondition(stellarv1alpha1.ConditionReady, metav1.ConditionFalse,
			stellarv1alpha1.ReasonNodeUnhealthy, health.Reason)
		d.recorder.Event(node, corev1.EventTypeWarning, events.EventReasonUnhealthy, health.Reason)
		results.WithReconciliationState(reconciler.RequeueAfter(healthUnknownRequeue).WithReason(health.Reason))
		return stepHealthCheck, true
	default:
		downgradePhase(status)
		status.setCondition(stellarv1alpha1.ConditionReady, metav1.ConditionFalse,
			stellarv1alpha1.ReasonHealthUnknown, health.Reason)
		results.WithReconciliationState(reconciler.RequeueAfter(healthUnknownRequeue).WithReason(health.Reason))
		return stepHealthCheck, true
	}
}

func (d *driver) doEnsureMesh(ctx context.Context, node *stellarv1alpha1.StellarNode, status *statusState, results *reconciler.Results) (step, bool) {
	if err := mesh.Ensure(ctx, d.client, *node); err != nil {
		d.failProgressing(status, err)
		results.WithError(errors.Wrap(err, "while ensuring mesh policies"))
		return stepEnsureMesh, true
	}
	return stepStable, false
}

func (d *driver) doStable(ctx context.Context, node *stellarv1alpha1.StellarNode, status *statusState, results *reconciler.Results) (step, bool) {
	status.setPhase(stellarv1alpha1.NodePhaseRunning)
	status.setCondition(stellarv1alpha1.ConditionReady, metav1.ConditionTrue,
		stellarv1alpha1.ReasonNodeSynced, "Node is synced with the network")
	status.setCondition(stellarv1alpha1.ConditionProgressing, metav1.ConditionFalse,
		stellarv1alpha1.ReasonChildrenEnsured, "All children are up to date")
	status.markObservedGeneration()

	if archiveResults := d.archives.CheckNode(ctx, *node); !archive.AllHealthy(archiveResults) {
		msgs := make([]string, 0, len(archiveResults))
		for _, r := range archiveResults {
			if r.Err != nil {
				msgs = append(msgs, fmt.Sprintf("%s: %s", r.URL, r.Err))
			}
		}
		status.setMessage("History archive check failed: " + strings.Join(msgs, "; "))
	}

	if status.phaseChanged() {
		d.recorder.Event(node, corev1.EventTypeNormal, events.EventReasonStateChange, "Node is Running")
	}
	results.WithReconciliationState(reconciler.ReconciliationState{}.ReconciliationComplete())
	return stepStable, true
}

func (d *driver) doDeleting(ctx context.Context, node *stellarv1alpha1.StellarNode, status *statusState, results *reconciler.Results) (step, bool) {
	if !node.HasFinalizer() {
		// nothing to tear down, the API server takes it from here
		return stepDeleted, false
	}

	status.setPhase(stellarv1alpha1.NodePhaseDeleting)
	status.setCondition(stellarv1alpha1.ConditionReady, metav1.ConditionFalse,
		stellarv1alpha1.ReasonDeleting, "Node is being deleted")

	done, err := cleanup.Run(ctx, d.client, d.recorder, *node)
	if err != nil {
		results.WithError(errors.Wrap(err, "while deleting children"))
		return stepDeleting, true
	}
	if !done {
		results.WithReconciliationState(reconciler.RequeueAfter(healthUnknownRequeue).WithReason("Waiting for children to be deleted"))
		return stepDeleting, true
	}

	nsn := k8s.ExtractNamespacedName(node)
	d.observers.StopObserving(nsn)
	removeDynamicWatches(d.dynamicWatches, nsn)
	if _, err := finalizer.Remove(ctx, d.client, node, stellarv1alpha1.Finalizer); err != nil && !apierrors.IsNotFound(err) {
		results.WithError(errors.Wrap(err, "while removing finalizer"))
		return stepDeleting, true
	}
	d.recorder.Event(node, corev1.EventTypeNormal, events.EventReasonDeleted, "All owned children deleted")
	return stepDeleted, false
}

// reconcileWorkload ensures the node workload and reports whether the cached
// workload generation has caught up with previous updates.
func (d *driver) reconcileWorkload(ctx context.Context, node *stellarv1alpha1.StellarNode, configChecksum string) (bool, error) {
	if node.Spec.NodeType == stellarv1alpha1.NodeTypeHorizon {
		expected := nodespec.BuildDeployment(*node, configChecksum)
		reconciled, _, err := deployment.Reconcile(ctx, d.client, expected, node)
		if err != nil {
			return false, errors.Wrap(err, "while reconciling deployment")
		}
		satisfied := d.expectations.SatisfiedGenerations(reconciled.ObjectMeta)
		d.expectations.ExpectGeneration(reconciled.ObjectMeta)
		return satisfied, nil
	}

	expected := nodespec.BuildStatefulSet(*node, configChecksum)
	reconciled, _, err := statefulset.Reconcile(ctx, d.client, expected, node)
	if err != nil {
		return false, errors.Wrap(err, "while reconciling statefulset")
	}
	satisfied := d.expectations.SatisfiedGenerations(reconciled.ObjectMeta)
	d.expectations.ExpectGeneration(reconciled.ObjectMeta)
	return satisfied, nil
}

// reconcilePodDisruptionBudget ensures the optional budget, deleting a
// leftover one when the spec no longer asks for it.
func (d *driver) reconcilePodDisruptionBudget(ctx context.Context, node *stellarv1alpha1.StellarNode) error {
	if !nodespec.WantsPodDisruptionBudget(*node) {
		pdb := policyv1.PodDisruptionBudget{ObjectMeta: metav1.ObjectMeta{
			Namespace: node.Namespace,
			Name:      stellarv1alpha1.PodDisruptionBudgetName(node.Name),
		}}
		err := d.client.Delete(ctx, &pdb)
		if err != nil && !apierrors.IsNotFound(err) {
			return errors.Wrap(err, "while deleting obsolete pod disruption budget")
		}
		return nil
	}

	expected := nodespec.BuildPodDisruptionBudget(*node)
	reconciled := &policyv1.PodDisruptionBudget{}
	_, err := reconciler.ReconcileResource(reconciler.Params{
		Context:    ctx,
		Client:     d.client,
		Owner:      node,
		Expected:   &expected,
		Reconciled: reconciled,
		NeedsUpdate: func() bool {
			return !equalPDBSpecs(expected.Spec, reconciled.Spec)
		},
		UpdateReconciled: func() {
			reconciled.Labels = expected.Labels
			reconciled.Spec = expected.Spec
		},
	})
	return err
}

// reconcileWatches keeps the dynamic watches on user-provided Secrets in sync
// with the spec, so that edits to referenced credentials trigger a new pass.
func (d *driver) reconcileWatches(node stellarv1alpha1.StellarNode) error {
	nsn := k8s.ExtractNamespacedName(&node)
	return watches.WatchUserProvidedSecrets(nsn, d.dynamicWatches, userSecretWatchName(nsn), referencedSecrets(node))
}

// referencedSecrets lists the user-provided Secrets the node spec points at.
// Vault locators are excluded, they are materialized by the operator itself.
func referencedSecrets(node stellarv1alpha1.StellarNode) []string {
	var secrets []string
	if vc := node.Spec.ValidatorConfig; vc != nil && vc.SeedSecretRef != "" && !vaultsecret.IsVaultRef(vc.SeedSecretRef) {
		secrets = append(secrets, vc.SeedSecretRef)
	}
	if hc := node.Spec.HorizonConfig; hc != nil && hc.DatabaseSecretRef != "" {
		secrets = append(secrets, hc.DatabaseSecretRef)
	}
	if sc := node.Spec.SorobanConfig; sc != nil && sc.DatabaseSecretRef != "" {
		secrets = append(secrets, sc.DatabaseSecretRef)
	}
	return secrets
}

func userSecretWatchName(node types.NamespacedName) string {
	return fmt.Sprintf("%s-%s-user-secrets", node.Namespace, node.Name)
}

func removeDynamicWatches(dynamicWatches watches.DynamicWatches, node types.NamespacedName) {
	dynamicWatches.Secrets.RemoveHandlerForKey(userSecretWatchName(node))
}

func (d *driver) failProgressing(status *statusState, err error) {
	status.setCondition(stellarv1alpha1.ConditionProgressing, metav1.ConditionFalse,
		events.EventReconciliationError, err.Error())
}

// downgradePhase moves a not-yet-Running node to Creating. A Running node
// keeps its phase through a transient probe failure, conditions carry the
// degraded signal.
func downgradePhase(status *statusState) {
	if status.status.EffectivePhase() != stellarv1alpha1.NodePhaseRunning {
		status.setPhase(stellarv1alpha1.NodePhaseCreating)
	}
}

// alreadySuspended tells whether the last persisted status already reflects
// the suspension, to emit the Suspended event only once.
func alreadySuspended(node stellarv1alpha1.StellarNode) bool {
	ready := apimeta.FindStatusCondition(node.Status.Conditions, stellarv1alpha1.ConditionReady)
	return ready != nil && ready.Reason == stellarv1alpha1.ReasonSuspended
}

func reconcileConfigMap(ctx context.Context, c k8s.Client, owner *stellarv1alpha1.StellarNode, expected corev1.ConfigMap) error {
	reconciled := &corev1.ConfigMap{}
	_, err := reconciler.ReconcileResource(reconciler.Params{
		Context:    ctx,
		Client:     c,
		Owner:      owner,
		Expected:   &expected,
		Reconciled: reconciled,
		NeedsUpdate: func() bool {
			return !equalStringMaps(expected.Data, reconciled.Data)
		},
		UpdateReconciled: func() {
			reconciled.Labels = expected.Labels
			reconciled.Data = expected.Data
		},
	})
	if err != nil {
		return errors.Wrap(err, "while reconciling configuration")
	}
	return nil
}

func equalStringMaps(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

func equalPDBSpecs(a, b policyv1.PodDisruptionBudgetSpec) bool {
	return equalIntStr(a.MinAvailable, b.MinAvailable) &&
		equalIntStr(a.MaxUnavailable, b.MaxUnavailable)
}

func equalIntStr(a, b *intstr.IntOrString) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
