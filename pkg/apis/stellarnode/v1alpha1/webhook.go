// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package v1alpha1

import (
	"errors"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/util/validation/field"

	ulog "github.com/stellar/node-operator/pkg/utils/log"
)

var (
	groupKind     = schema.GroupKind{Group: GroupVersion.Group, Kind: Kind}
	validationLog = ulog.Log.WithName("stellarnode-v1alpha1-validation")
)

// ValidateCreate validates a new StellarNode.
func (n *StellarNode) ValidateCreate() error {
	validationLog.V(1).Info("Validate create", "name", n.Name)
	return n.validate(nil)
}

// ValidateDelete is a no-op: deletion is gated by the cleanup finalizer, not by admission.
func (n *StellarNode) ValidateDelete() error {
	validationLog.V(1).Info("Validate delete", "name", n.Name)
	return nil
}

// ValidateUpdate validates an updated StellarNode against the previous version.
func (n *StellarNode) ValidateUpdate(old runtime.Object) error {
	validationLog.V(1).Info("Validate update", "name", n.Name)
	oldNode, ok := old.(*StellarNode)
	if !ok {
		return errors.New("cannot cast old object to StellarNode type")
	}
	return n.validate(oldNode)
}

func (n *StellarNode) validate(old *StellarNode) error {
	var errs field.ErrorList
	if old != nil {
		errs = append(errs, n.ValidateUpdateSpec(old)...)
	}
	errs = append(errs, n.ValidateSpec()...)
	if len(errs) > 0 {
		return apierrors.NewInvalid(groupKind, n.Name, errs)
	}
	return nil
}
