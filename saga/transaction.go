package saga

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/arunvm123/reservationengine/clock"
	"github.com/arunvm123/reservationengine/model"
	"github.com/arunvm123/reservationengine/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TransactionManager tracks the 2PC-style bookkeeping of a saga's
// participants (§3, §4.F), separate from Coordinator because a
// TransactionContext can outlive the in-process saga run that created it —
// reconciliation reads it back from persistence after a crash.
type TransactionManager struct {
	store repository.SagaStore
	gw    repository.Gateway
	clock clock.Clock
}

func NewTransactionManager(store repository.SagaStore, gw repository.Gateway, c clock.Clock) *TransactionManager {
	return &TransactionManager{store: store, gw: gw, clock: c}
}

// Open creates a TransactionContext with one Participant per name, all
// starting in the initiated state.
func (m *TransactionManager) Open(ctx context.Context, tenant, sagaID string, ttl time.Duration, participantNames []string) (string, error) {
	txID := uuid.NewString()
	tc := &model.TransactionContext{
		TransactionID: txID,
		Tenant:        tenant,
		SagaID:        sagaID,
		ExpiresAt:     m.clock.Now().Add(ttl),
	}
	participants := make([]model.Participant, 0, len(participantNames))
	for _, name := range participantNames {
		participants = append(participants, model.Participant{
			Name:   name,
			Status: model.ParticipantInitiated,
		})
	}

	err := m.gw.WithTx(ctx, func(tx *gorm.DB) error {
		return m.store.CreateTransaction(ctx, tx, tc, participants)
	})
	if err != nil {
		return "", fmt.Errorf("failed to open transaction context: %w", err)
	}
	return txID, nil
}

func (m *TransactionManager) Advance(ctx context.Context, transactionID, participant string, status model.ParticipantStatus, compensationData model.JSONMap) error {
	return m.gw.WithTx(ctx, func(tx *gorm.DB) error {
		return m.store.UpdateParticipant(ctx, tx, transactionID, participant, status, compensationData)
	})
}

// ReconcileStuck finds transactions parked past their ExpiresAt and logs
// them for operator attention. A participant left in a non-terminal state
// (prepared/committing/compensating) past the deadline means a worker died
// mid-flight; this does not attempt automatic resolution since that
// decision is domain-specific (§4.F step 6 mentions only "surface").
func (m *TransactionManager) ReconcileStuck(ctx context.Context, limit int) (int, error) {
	stuck, err := m.store.ListStuck(ctx, m.clock.Now(), limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list stuck transactions: %w", err)
	}
	for _, tc := range stuck {
		_, participants, err := m.store.GetTransaction(ctx, tc.TransactionID)
		if err != nil {
			log.Printf("reconcile: failed to load participants for %s: %v", tc.TransactionID, err)
			continue
		}
		for _, p := range participants {
			if !isTerminal(p.Status) {
				log.Printf("reconcile: transaction %s participant %s stuck in %s since expiry %s",
					tc.TransactionID, p.Name, p.Status, tc.ExpiresAt)
			}
		}
	}
	return len(stuck), nil
}

func isTerminal(s model.ParticipantStatus) bool {
	switch s {
	case model.ParticipantCommitted, model.ParticipantAborted, model.ParticipantCompensated, model.ParticipantFailed:
		return true
	default:
		return false
	}
}
