package saga

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/arunvm123/reservationengine/clock"
	"github.com/arunvm123/reservationengine/model"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

// fakeGateway runs WithTx inline against a nil *gorm.DB, since fakeSagaStore
// never touches it. Exercising Run/compensate only needs the call ordering
// the real Gateway provides, not a live connection.
type fakeGateway struct{}

func (fakeGateway) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error { return fn(nil) }
func (fakeGateway) DB() *gorm.DB                                              { return nil }
func (fakeGateway) Close() error                                              { return nil }

type fakeSagaStore struct {
	created   []model.SagaExecution
	completed []string
	statuses  []model.SagaStatus
}

func (f *fakeSagaStore) CreateSaga(_ context.Context, _ *gorm.DB, s *model.SagaExecution) error {
	f.created = append(f.created, *s)
	return nil
}

func (f *fakeSagaStore) UpdateSagaStatus(_ context.Context, _ *gorm.DB, _ string, status model.SagaStatus, _ int) error {
	f.statuses = append(f.statuses, status)
	return nil
}

func (f *fakeSagaStore) AppendCompletedStep(_ context.Context, _ *gorm.DB, _ string, stepName string) error {
	f.completed = append(f.completed, stepName)
	return nil
}

func (f *fakeSagaStore) CreateTransaction(context.Context, *gorm.DB, *model.TransactionContext, []model.Participant) error {
	return nil
}
func (f *fakeSagaStore) UpdateParticipant(context.Context, *gorm.DB, string, string, model.ParticipantStatus, model.JSONMap) error {
	return nil
}
func (f *fakeSagaStore) GetTransaction(context.Context, string) (*model.TransactionContext, []model.Participant, error) {
	return nil, nil, nil
}
func (f *fakeSagaStore) ListStuck(context.Context, time.Time, int) ([]model.TransactionContext, error) {
	return nil, nil
}

func TestCoordinatorRunCompletesAllSteps(t *testing.T) {
	store := &fakeSagaStore{}
	c := NewCoordinator(store, fakeGateway{}, clock.NewFrozen(time.Now()))

	var executed []string
	err := c.Run(context.Background(), "tenant-1", "booking.confirm", []Step{
		{
			Name: "reserveCapacity",
			Execute: func(ctx context.Context) (map[string]any, error) {
				executed = append(executed, "reserveCapacity")
				return map[string]any{"bookingId": "b1"}, nil
			},
		},
	})

	assert.NoError(t, err)
	assert.Equal(t, []string{"reserveCapacity"}, executed)
	assert.Equal(t, []string{"reserveCapacity"}, store.completed)
	assert.Equal(t, []model.SagaStatus{model.SagaCompleted}, store.statuses)
}

func TestCoordinatorRunCompensatesCompletedStepsOnFailure(t *testing.T) {
	store := &fakeSagaStore{}
	c := NewCoordinator(store, fakeGateway{}, clock.NewFrozen(time.Now()))

	var compensated []string
	err := c.Run(context.Background(), "tenant-1", "booking.confirm", []Step{
		{
			Name: "reserveCapacity",
			Execute: func(ctx context.Context) (map[string]any, error) {
				return map[string]any{"bookingId": "b1"}, nil
			},
			Compensate: func(ctx context.Context, result map[string]any) error {
				compensated = append(compensated, "reserveCapacity")
				return nil
			},
		},
		{
			Name: "authorizePayment",
			Execute: func(ctx context.Context) (map[string]any, error) {
				return nil, errors.New("payment declined")
			},
		},
	})

	assert.Error(t, err)
	assert.Equal(t, []string{"reserveCapacity"}, compensated)
	assert.Equal(t, []model.SagaStatus{model.SagaCompensated}, store.statuses)
}
