// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package observer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/event"

	stellarv1alpha1 "github.com/stellar/node-operator/pkg/apis/stellarnode/v1alpha1"
)

func Test_hasHealthChanged(t *testing.T) {
	tests := []struct {
		name     string
		previous Health
		current  Health
		want     bool
	}{
		{
			name:     "both unknown",
			previous: UnknownHealth(),
			current:  UnknownHealth(),
			want:     false,
		},
		{
			name:     "first verdict",
			previous: UnknownHealth(),
			current:  Health{Status: HealthHealthy},
			want:     true,
		},
		{
			name:     "healthy node starts failing",
			previous: Health{Status: HealthHealthy},
			current:  Health{Status: HealthUnhealthy, Reason: "node reports Catching up"},
			want:     true,
		},
		{
			name:     "healthy node advances its ledger",
			previous: Health{Status: HealthHealthy, LedgerSequence: 100},
			current:  Health{Status: HealthHealthy, LedgerSequence: 101},
			want:     false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := hasHealthChanged(tt.previous, tt.current); got != tt.want {
				t.Errorf("hasHealthChanged() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHealthChangeListener(t *testing.T) {
	evtChan := make(chan event.TypedGenericEvent[*stellarv1alpha1.StellarNode], 1)
	listener := healthChangeListener(evtChan)
	nsn := types.NamespacedName{Namespace: "ns", Name: "mainnet-validator"}

	// no event when health stays the same
	listener(nsn, Health{Status: HealthHealthy}, Health{Status: HealthHealthy})
	select {
	case <-evtChan:
		t.Fatal("no event expected for an unchanged health")
	default:
	}

	// an event targeting the node when health changed
	listener(nsn, Health{Status: HealthHealthy}, Health{Status: HealthUnhealthy})
	select {
	case evt := <-evtChan:
		require.NotNil(t, evt.Object)
		assert.Equal(t, "ns", evt.Object.GetNamespace())
		assert.Equal(t, "mainnet-validator", evt.Object.GetName())
	default:
		t.Fatal("expected an event for the changed health")
	}
}
