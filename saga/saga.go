package saga

import (
	"context"
	"fmt"
	"log"

	"github.com/arunvm123/reservationengine/clock"
	"github.com/arunvm123/reservationengine/model"
	"github.com/arunvm123/reservationengine/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Step is one named leg of a saga, grounded on the booking_saga.go
// {name, execute, compensate} shape, adapted from that repo's Kafka-command
// orchestration to direct in-process execution since this saga runs inside
// a single booking coordinator call rather than across worker processes.
type Step struct {
	Name       string
	Execute    func(ctx context.Context) (map[string]any, error)
	Compensate func(ctx context.Context, result map[string]any) error
}

// Coordinator runs an ordered list of steps against a persisted
// SagaExecution, compensating in reverse order on failure (§4.F).
type Coordinator struct {
	store repository.SagaStore
	gw    repository.Gateway
	clock clock.Clock
}

func NewCoordinator(store repository.SagaStore, gw repository.Gateway, c clock.Clock) *Coordinator {
	return &Coordinator{store: store, gw: gw, clock: c}
}

// Run executes steps in order against a newly created SagaExecution named
// name. On failure of step k, steps 0..k-1 are compensated in reverse
// order, best-effort: a compensation failure is logged and the saga still
// transitions, ending as compensated (or failed if any step's compensation
// fails).
func (c *Coordinator) Run(ctx context.Context, tenant, name string, steps []Step) error {
	sagaID := uuid.NewString()
	stepNames := make([]any, len(steps))
	for i, s := range steps {
		stepNames[i] = s.Name
	}

	exec := &model.SagaExecution{
		SagaID:         sagaID,
		Tenant:         tenant,
		Name:           name,
		Status:         model.SagaExecuting,
		Steps:          model.JSONMap{"names": stepNames},
		CompletedSteps: model.JSONMap{"steps": []any{}},
		Results:        model.JSONMap{},
	}

	err := c.gw.WithTx(ctx, func(tx *gorm.DB) error {
		return c.store.CreateSaga(ctx, tx, exec)
	})
	if err != nil {
		return fmt.Errorf("failed to create saga execution: %w", err)
	}

	results := make([]map[string]any, 0, len(steps))
	for i, step := range steps {
		result, execErr := step.Execute(ctx)
		if execErr != nil {
			c.compensate(ctx, sagaID, steps[:i], results)
			return fmt.Errorf("saga %s failed at step %q: %w", sagaID, step.Name, execErr)
		}
		results = append(results, result)
		txErr := c.gw.WithTx(ctx, func(tx *gorm.DB) error {
			return c.store.AppendCompletedStep(ctx, tx, sagaID, step.Name)
		})
		if txErr != nil {
			log.Printf("saga %s: failed to persist completed step %q: %v", sagaID, step.Name, txErr)
		}
	}

	return c.gw.WithTx(ctx, func(tx *gorm.DB) error {
		return c.store.UpdateSagaStatus(ctx, tx, sagaID, model.SagaCompleted, len(steps))
	})
}

// compensate invokes Compensate for every completed step in reverse order,
// best-effort: a single step's compensation failure is logged but does not
// stop compensation of the remaining steps.
func (c *Coordinator) compensate(ctx context.Context, sagaID string, completed []Step, results []map[string]any) {
	failed := false
	for i := len(completed) - 1; i >= 0; i-- {
		step := completed[i]
		if step.Compensate == nil {
			continue
		}
		var result map[string]any
		if i < len(results) {
			result = results[i]
		}
		if err := step.Compensate(ctx, result); err != nil {
			log.Printf("saga %s: compensation for step %q failed: %v", sagaID, step.Name, err)
			failed = true
		}
	}

	status := model.SagaCompensated
	if failed {
		status = model.SagaFailed
	}
	err := c.gw.WithTx(ctx, func(tx *gorm.DB) error {
		return c.store.UpdateSagaStatus(ctx, tx, sagaID, status, len(completed))
	})
	if err != nil {
		log.Printf("saga %s: failed to persist final status %s: %v", sagaID, status, err)
	}
}
