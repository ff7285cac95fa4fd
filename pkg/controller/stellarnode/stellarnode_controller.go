// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package stellarnode

import (
	"context"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	policyv1 "k8s.io/api/policy/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/tools/record"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/controller"
	"sigs.k8s.io/controller-runtime/pkg/event"
	"sigs.k8s.io/controller-runtime/pkg/handler"
	"sigs.k8s.io/controller-runtime/pkg/manager"
	"sigs.k8s.io/controller-runtime/pkg/predicate"
	"sigs.k8s.io/controller-runtime/pkg/reconcile"
	"sigs.k8s.io/controller-runtime/pkg/source"

	stellarv1alpha1 "github.com/stellar/node-operator/pkg/apis/stellarnode/v1alpha1"
	"github.com/stellar/node-operator/pkg/controller/common"
	"github.com/stellar/node-operator/pkg/controller/common/events"
	"github.com/stellar/node-operator/pkg/controller/common/expectations"
	"github.com/stellar/node-operator/pkg/controller/common/operator"
	"github.com/stellar/node-operator/pkg/controller/common/predicates"
	"github.com/stellar/node-operator/pkg/controller/common/tracing"
	"github.com/stellar/node-operator/pkg/controller/common/watches"
	"github.com/stellar/node-operator/pkg/controller/stellarnode/archive"
	"github.com/stellar/node-operator/pkg/controller/stellarnode/observer"
	"github.com/stellar/node-operator/pkg/utils/k8s"
	ulog "github.com/stellar/node-operator/pkg/utils/log"
	"github.com/stellar/node-operator/pkg/utils/vault"
)

const controllerName = "stellarnode-controller"

// Add creates a new StellarNode controller and adds it to the manager.
// The manager will set fields on the controller and start it when the manager starts.
func Add(mgr manager.Manager, params operator.Parameters) error {
	r := newReconciler(mgr, params)
	c, err := common.NewController(mgr, controllerName, r, params)
	if err != nil {
		return err
	}
	return addWatches(mgr, c, r)
}

// newReconciler returns a new reconcile.Reconciler.
func newReconciler(mgr manager.Manager, params operator.Parameters) *ReconcileStellarNode {
	vaultClient, err := vault.NewClient()
	if err != nil {
		// external seed stores are optional, nodes referencing one fail later
		// with an actionable message
		ulog.Log.Info("No Vault client available, vault: seed references will not resolve", "error", err.Error())
	}
	return &ReconcileStellarNode{
		Client:         mgr.GetClient(),
		recorder:       mgr.GetEventRecorderFor(controllerName),
		dynamicWatches: watches.NewDynamicWatches(),
		observers:      observer.NewManager(params.Dialer, params.HealthProbeInterval, params.Tracer),
		expectations:   expectations.NewExpectations(),
		vaultClient:    vaultClient,
		archives:       archive.NewChecker(),
		Parameters:     params,
	}
}

// addWatches registers watches for the StellarNode kind and every owned child kind.
func addWatches(mgr manager.Manager, c controller.Controller, r *ReconcileStellarNode) error {
	// watch StellarNode objects in managed namespaces
	if err := c.Watch(source.Kind(mgr.GetCache(), &stellarv1alpha1.StellarNode{},
		&handler.TypedEnqueueRequestForObject[*stellarv1alpha1.StellarNode]{},
		managedNamespacesPredicate[*stellarv1alpha1.StellarNode](r.ManagedNamespaces),
	)); err != nil {
		return err
	}

	// watch owned children, mapped back to the owner key
	if err := watchOwned(mgr, c, &appsv1.StatefulSet{}); err != nil {
		return err
	}
	if err := watchOwned(mgr, c, &appsv1.Deployment{}); err != nil {
		return err
	}
	if err := watchOwned(mgr, c, &corev1.Service{}); err != nil {
		return err
	}
	if err := watchOwned(mgr, c, &corev1.ConfigMap{}); err != nil {
		return err
	}
	if err := watchOwned(mgr, c, &corev1.Secret{}); err != nil {
		return err
	}
	if err := watchOwned(mgr, c, &policyv1.PodDisruptionBudget{}); err != nil {
		return err
	}

	// watch pods so health-relevant restarts surface without waiting for the
	// workload status to converge
	if err := watches.WatchPods(mgr, c, stellarv1alpha1.NodeNameLabelName); err != nil {
		return err
	}

	// trigger a new pass whenever the observed health of a node changes, so a
	// node that stops probing healthy does not stay Running until an unrelated
	// event comes in
	if err := c.Watch(observer.WatchHealthChange(r.observers)); err != nil {
		return err
	}

	// watch dynamically referenced secrets (seeds, database credentials)
	return c.Watch(source.Kind(mgr.GetCache(), &corev1.Secret{}, r.dynamicWatches.Secrets))
}

func watchOwned[T client.Object](mgr manager.Manager, c controller.Controller, obj T) error {
	return c.Watch(source.Kind(mgr.GetCache(), obj,
		handler.TypedEnqueueRequestForOwner[T](
			mgr.GetScheme(), mgr.GetRESTMapper(), &stellarv1alpha1.StellarNode{}, handler.OnlyControllerOwner(),
		),
	))
}

// managedNamespacesPredicate filters out events from namespaces the operator
// does not manage.
func managedNamespacesPredicate[T client.Object](managedNamespaces []string) predicate.TypedPredicate[T] {
	return predicate.TypedFuncs[T]{
		CreateFunc: func(e event.TypedCreateEvent[T]) bool {
			return predicates.IsNamespaceManaged(e.Object.GetNamespace(), managedNamespaces)
		},
		UpdateFunc: func(e event.TypedUpdateEvent[T]) bool {
			return predicates.IsNamespaceManaged(e.ObjectNew.GetNamespace(), managedNamespaces)
		},
		DeleteFunc: func(e event.TypedDeleteEvent[T]) bool {
			return predicates.IsNamespaceManaged(e.Object.GetNamespace(), managedNamespaces)
		},
		GenericFunc: func(e event.TypedGenericEvent[T]) bool {
			return predicates.IsNamespaceManaged(e.Object.GetNamespace(), managedNamespaces)
		},
	}
}

var _ reconcile.Reconciler = &ReconcileStellarNode{}

// ReconcileStellarNode reconciles a StellarNode object.
type ReconcileStellarNode struct {
	k8s.Client
	recorder       record.EventRecorder
	dynamicWatches watches.DynamicWatches
	observers      *observer.Manager
	expectations   *expectations.Expectations
	vaultClient    vault.Client
	archives       *archive.Checker
	operator.Parameters
	// iteration is the number of times this controller has run its Reconcile method
	iteration uint64
}

// Reconcile reads the state of the cluster for a StellarNode object and drives
// owned children towards the declared state.
// +kubebuilder:rbac:groups=apps,resources=statefulsets;deployments,verbs=get;list;watch;create;update;patch;delete
// +kubebuilder:rbac:groups="",resources=services;configmaps;secrets;persistentvolumeclaims;pods,verbs=get;list;watch;create;update;patch;delete
// +kubebuilder:rbac:groups=policy,resources=poddisruptionbudgets,verbs=get;list;watch;create;update;patch;delete
// +kubebuilder:rbac:groups=stellar.org,resources=stellarnodes,verbs=get;list;watch;create;update;patch;delete
// +kubebuilder:rbac:groups=stellar.org,resources=stellarnodes/status,verbs=get;update;patch
// +kubebuilder:rbac:groups=security.istio.io;networking.istio.io,resources=*,verbs=get;list;watch;create;update;patch;delete
func (r *ReconcileStellarNode) Reconcile(ctx context.Context, request reconcile.Request) (reconcile.Result, error) {
	ctx = common.NewReconciliationContext(ctx, &r.iteration, r.Tracer, controllerName, "stellarnode_name", request)
	defer common.LogReconciliationRun(ulog.FromContext(ctx))()
	defer tracing.EndContextTransaction(ctx)

	var node stellarv1alpha1.StellarNode
	if err := r.Client.Get(ctx, request.NamespacedName, &node); err != nil {
		if apierrors.IsNotFound(err) {
			r.onDelete(request.NamespacedName)
			return reconcile.Result{}, nil
		}
		return reconcile.Result{}, tracing.CaptureError(ctx, err)
	}

	if common.IsUnmanaged(ctx, &node) {
		ulog.FromContext(ctx).Info("Object is currently not managed by this controller. Skipping reconciliation")
		return reconcile.Result{}, nil
	}

	d := &driver{
		client:         r.Client,
		recorder:       r.recorder,
		dynamicWatches: r.dynamicWatches,
		observers:      r.observers,
		expectations:   r.expectations,
		vaultClient:    r.vaultClient,
		archives:       r.archives,
		params:         r.Parameters,
	}
	results, status := d.run(ctx, node)

	// the status write comes last; the finalizer may already be gone together
	// with the object
	if err := status.update(ctx, r.Client); err != nil && !apierrors.IsNotFound(err) {
		if apierrors.IsConflict(err) {
			return results.WithRequeue().Aggregate()
		}
		results.WithError(err)
	}

	result, err := results.Aggregate()
	k8s.EmitErrorEvent(r.recorder, err, &node, events.EventReconciliationError, "Reconciliation error: %v", err)
	return result, err
}

// onDelete frees everything attached to a StellarNode that no longer exists.
func (r *ReconcileStellarNode) onDelete(nsn types.NamespacedName) {
	r.observers.StopObserving(nsn)
	removeDynamicWatches(r.dynamicWatches, nsn)
}
