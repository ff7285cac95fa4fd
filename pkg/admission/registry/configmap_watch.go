// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package registry

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/handler"
	"sigs.k8s.io/controller-runtime/pkg/manager"
	"sigs.k8s.io/controller-runtime/pkg/predicate"
	"sigs.k8s.io/controller-runtime/pkg/reconcile"
	"sigs.k8s.io/controller-runtime/pkg/source"

	"github.com/stellar/node-operator/pkg/controller/common"
	"github.com/stellar/node-operator/pkg/controller/common/operator"
	"github.com/stellar/node-operator/pkg/utils/k8s"
	ulog "github.com/stellar/node-operator/pkg/utils/log"
)

const configMapControllerName = "webhook-plugins-controller"

// ConfigMapReconciler hot-reloads the registry from a declarative ConfigMap:
// each data entry is a JSON plugin Descriptor. Plugins loaded through the
// management API are unaffected as long as the ConfigMap does not declare the
// same name; Sync removes only plugins the ConfigMap declared before.
type ConfigMapReconciler struct {
	client    k8s.Client
	registry  *Registry
	configMap types.NamespacedName

	// declared remembers the plugin names seen in the previous pass so that a
	// removed entry unloads exactly the plugins this source introduced.
	declared map[string]struct{}
}

// WatchConfigMap registers a controller reloading the registry whenever the
// given ConfigMap changes.
func WatchConfigMap(mgr manager.Manager, registry *Registry, configMap types.NamespacedName, params operator.Parameters) error {
	r := &ConfigMapReconciler{
		client:    mgr.GetClient(),
		registry:  registry,
		configMap: configMap,
		declared:  map[string]struct{}{},
	}
	c, err := common.NewController(mgr, configMapControllerName, r, params)
	if err != nil {
		return err
	}
	return c.Watch(source.Kind(mgr.GetCache(), &corev1.ConfigMap{},
		&handler.TypedEnqueueRequestForObject[*corev1.ConfigMap]{},
		predicate.NewTypedPredicateFuncs[*corev1.ConfigMap](func(cm *corev1.ConfigMap) bool {
			return cm.Namespace == configMap.Namespace && cm.Name == configMap.Name
		}),
	))
}

// Reconcile reads the ConfigMap and syncs the registry with its descriptors.
// A deleted ConfigMap unloads every plugin it declared.
func (r *ConfigMapReconciler) Reconcile(ctx context.Context, request reconcile.Request) (reconcile.Result, error) {
	log := ulog.FromContext(ctx).WithValues("configmap", r.configMap.String())

	var cm corev1.ConfigMap
	err := r.client.Get(ctx, r.configMap, &cm)
	if err != nil && !apierrors.IsNotFound(err) {
		return reconcile.Result{}, err
	}

	var descriptors []Descriptor
	if err == nil {
		descriptors, err = parseDescriptors(cm)
		if err != nil {
			// a malformed entry must not wedge the rest, parseDescriptors
			// already dropped it; log what was wrong
			log.Error(err, "Ignoring malformed plugin descriptors")
		}
	}

	if err := r.syncDeclared(ctx, descriptors); err != nil {
		log.Error(err, "Plugin sync incomplete")
		return reconcile.Result{}, err
	}
	log.V(1).Info("Plugin ConfigMap synced", "plugin_count", len(descriptors))
	return reconcile.Result{}, nil
}

// syncDeclared loads the given descriptors and unloads plugins this source
// declared previously but no longer does.
func (r *ConfigMapReconciler) syncDeclared(ctx context.Context, descriptors []Descriptor) error {
	next := make(map[string]struct{}, len(descriptors))
	var errs *multierror.Error
	for _, desc := range descriptors {
		next[desc.Metadata.Name] = struct{}{}
		if err := r.registry.Load(ctx, desc, true); err != nil {
			errs = multierror.Append(errs, errors.Wrapf(err, "loading plugin %s", desc.Metadata.Name))
		}
	}
	for name := range r.declared {
		if _, still := next[name]; !still {
			if err := r.registry.Unload(name); err != nil && !errors.Is(err, ErrNotFound) {
				errs = multierror.Append(errs, errors.Wrapf(err, "unloading plugin %s", name))
			}
		}
	}
	r.declared = next
	return errs.ErrorOrNil()
}

// parseDescriptors decodes every data entry as a JSON Descriptor, in sorted
// key order. Malformed entries are skipped and reported through the returned
// error; well-formed entries still load.
func parseDescriptors(cm corev1.ConfigMap) ([]Descriptor, error) {
	keys := make([]string, 0, len(cm.Data))
	for k := range cm.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var descriptors []Descriptor
	var errs *multierror.Error
	for _, key := range keys {
		var desc Descriptor
		if err := json.Unmarshal([]byte(cm.Data[key]), &desc); err != nil {
			errs = multierror.Append(errs, errors.Wrapf(err, "entry %q", key))
			continue
		}
		if desc.Metadata.Name == "" {
			errs = multierror.Append(errs, errors.Errorf("entry %q declares no plugin name", key))
			continue
		}
		descriptors = append(descriptors, desc)
	}
	return descriptors, errs.ErrorOrNil()
}
