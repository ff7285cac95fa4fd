// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package stellarnode

import (
	"context"

	apimeta "k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"

	stellarv1alpha1 "github.com/stellar/node-operator/pkg/apis/stellarnode/v1alpha1"
	"github.com/stellar/node-operator/pkg/controller/common"
	"github.com/stellar/node-operator/pkg/utils/k8s"
)

// statusState accumulates the status of a StellarNode throughout a single
// reconciliation pass. It is written back through the status subresource
// exactly once, at the end of the pass.
type statusState struct {
	node   stellarv1alpha1.StellarNode
	status stellarv1alpha1.StellarNodeStatus
}

func newStatusState(node stellarv1alpha1.StellarNode) *statusState {
	status := *node.Status.DeepCopy()
	// a fresh pass starts with a clean message, conditions carry over
	status.Message = ""
	return &statusState{node: node, status: status}
}

func (s *statusState) setPhase(phase stellarv1alpha1.StellarNodePhase) {
	s.status.Phase = phase
}

// phaseChanged returns true when the pass is about to move the node to a
// different lifecycle phase than the one last persisted.
func (s *statusState) phaseChanged() bool {
	return s.node.Status.EffectivePhase() != s.status.EffectivePhase()
}

func (s *statusState) setCondition(conditionType string, conditionStatus metav1.ConditionStatus, reason, message string) {
	apimeta.SetStatusCondition(&s.status.Conditions, metav1.Condition{
		Type:               conditionType,
		Status:             conditionStatus,
		Reason:             reason,
		Message:            message,
		ObservedGeneration: s.node.Generation,
	})
}

func (s *statusState) setLedgerSequence(sequence int64) {
	if sequence > 0 {
		s.status.LedgerSequence = sequence
	}
}

func (s *statusState) setMessage(message string) {
	s.status.Message = message
}

func (s *statusState) markObservedGeneration() {
	s.status.ObservedGeneration = s.node.Generation
}

// apply writes the accumulated status onto the live object, re-read on
// conflict by the retrying caller.
func (s *statusState) apply(live client.Object) {
	node, ok := live.(*stellarv1alpha1.StellarNode)
	if !ok {
		return
	}
	node.Status = s.status
}

// update persists the accumulated status through the status subresource with
// conflict retry.
func (s *statusState) update(ctx context.Context, c k8s.Client) error {
	node := s.node.DeepCopy()
	return common.UpdateStatusWithRetry(ctx, c, node, s.apply)
}
