package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arunvm123/reservationengine/model"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SagaRepository persists saga executions and their 2PC-style transaction
// contexts (§4.F), grounded on the booking_saga.go ToMap/FromMap pattern
// from the retrieval pack, adapted to GORM jsonb columns instead of a
// hand-rolled map encoding.
type SagaRepository struct {
	db *gorm.DB
}

func NewSagaRepository(db *gorm.DB) *SagaRepository {
	return &SagaRepository{db: db}
}

func (r *SagaRepository) CreateSaga(ctx context.Context, tx *gorm.DB, s *model.SagaExecution) error {
	if s.SagaID == "" {
		s.SagaID = uuid.NewString()
	}
	if err := tx.WithContext(ctx).Create(s).Error; err != nil {
		return fmt.Errorf("failed to create saga execution: %w", err)
	}
	return nil
}

func (r *SagaRepository) UpdateSagaStatus(ctx context.Context, tx *gorm.DB, sagaID string, status model.SagaStatus, currentStep int) error {
	err := tx.WithContext(ctx).Model(&model.SagaExecution{}).
		Where("saga_id = ?", sagaID).
		Updates(map[string]interface{}{"status": status, "updated_at": time.Now().UTC()}).Error
	if err != nil {
		return fmt.Errorf("failed to update saga status: %w", err)
	}
	return nil
}

func (r *SagaRepository) AppendCompletedStep(ctx context.Context, tx *gorm.DB, sagaID string, stepName string) error {
	var s model.SagaExecution
	if err := tx.WithContext(ctx).Where("saga_id = ?", sagaID).First(&s).Error; err != nil {
		return fmt.Errorf("failed to load saga for step append: %w", err)
	}
	completed, _ := s.CompletedSteps["steps"].([]interface{})
	completed = append(completed, stepName)
	if s.CompletedSteps == nil {
		s.CompletedSteps = model.JSONMap{}
	}
	s.CompletedSteps["steps"] = completed
	err := tx.WithContext(ctx).Model(&model.SagaExecution{}).
		Where("saga_id = ?", sagaID).
		Update("completed_steps", s.CompletedSteps).Error
	if err != nil {
		return fmt.Errorf("failed to append completed step: %w", err)
	}
	return nil
}

func (r *SagaRepository) CreateTransaction(ctx context.Context, tx *gorm.DB, tc *model.TransactionContext, participants []model.Participant) error {
	if tc.TransactionID == "" {
		tc.TransactionID = uuid.NewString()
	}
	if err := tx.WithContext(ctx).Create(tc).Error; err != nil {
		return fmt.Errorf("failed to create transaction context: %w", err)
	}
	for i := range participants {
		if participants[i].ID == "" {
			participants[i].ID = uuid.NewString()
		}
		participants[i].TransactionID = tc.TransactionID
	}
	if len(participants) > 0 {
		if err := tx.WithContext(ctx).Create(&participants).Error; err != nil {
			return fmt.Errorf("failed to create participants: %w", err)
		}
	}
	return nil
}

func (r *SagaRepository) UpdateParticipant(ctx context.Context, tx *gorm.DB, transactionID, participantName string, status model.ParticipantStatus, compensationData model.JSONMap) error {
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}
	if compensationData != nil {
		updates["compensation_data"] = compensationData
	}
	err := tx.WithContext(ctx).Model(&model.Participant{}).
		Where("transaction_id = ? AND name = ?", transactionID, participantName).
		Updates(updates).Error
	if err != nil {
		return fmt.Errorf("failed to update participant: %w", err)
	}
	return nil
}

func (r *SagaRepository) GetTransaction(ctx context.Context, transactionID string) (*model.TransactionContext, []model.Participant, error) {
	var tc model.TransactionContext
	if err := r.db.WithContext(ctx).Where("transaction_id = ?", transactionID).First(&tc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, fmt.Errorf("transaction context not found")
		}
		return nil, nil, fmt.Errorf("failed to get transaction context: %w", err)
	}
	var participants []model.Participant
	if err := r.db.WithContext(ctx).Where("transaction_id = ?", transactionID).Find(&participants).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to get participants: %w", err)
	}
	return &tc, participants, nil
}

// ListStuck returns transaction contexts past their deadline, whatever
// their participants' states, feeding the reconciliation sweep (§4.F
// step 6), which itself picks out the non-terminal participants.
func (r *SagaRepository) ListStuck(ctx context.Context, olderThan time.Time, limit int) ([]model.TransactionContext, error) {
	var stuck []model.TransactionContext
	err := r.db.WithContext(ctx).
		Where("expires_at < ?", olderThan).
		Limit(limit).
		Find(&stuck).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list stuck transactions: %w", err)
	}
	return stuck, nil
}
