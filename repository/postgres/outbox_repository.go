package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/arunvm123/reservationengine/model"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OutboxRepository is the transactional outbox writer and relay-side
// claimant (§4.H), grounded on the baechuer real-time-ressys outbox worker's
// SELECT ... FOR UPDATE SKIP LOCKED claim batch and computeNextRetry
// exponential backoff with jitter.
type OutboxRepository struct {
	db *gorm.DB
}

func NewOutboxRepository(db *gorm.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

func (r *OutboxRepository) Append(ctx context.Context, tx *gorm.DB, e *model.OutboxEvent) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Status == "" {
		e.Status = model.OutboxPending
	}
	if e.NextAttemptAt.IsZero() {
		e.NextAttemptAt = time.Now().UTC()
	}
	if err := tx.WithContext(ctx).Create(e).Error; err != nil {
		return fmt.Errorf("failed to append outbox event: %w", err)
	}
	return nil
}

// ClaimBatch atomically claims due pending/failed rows for this worker,
// using FOR UPDATE SKIP LOCKED so concurrent relay instances partition the
// queue without blocking on each other.
func (r *OutboxRepository) ClaimBatch(ctx context.Context, workerID string, limit int) ([]model.OutboxEvent, error) {
	var claimed []model.OutboxEvent

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []model.OutboxEvent
		err := tx.Raw(`
			SELECT * FROM outbox_events
			WHERE status IN ('pending', 'failed') AND next_attempt_at <= ?
			ORDER BY next_attempt_at ASC, created_at ASC
			LIMIT ?
			FOR UPDATE SKIP LOCKED`, time.Now().UTC(), limit).
			Scan(&rows).Error
		if err != nil {
			return fmt.Errorf("failed to select claimable outbox rows: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}

		ids := make([]string, 0, len(rows))
		for _, row := range rows {
			ids = append(ids, row.ID)
		}
		now := time.Now().UTC()
		err = tx.Model(&model.OutboxEvent{}).Where("id IN ?", ids).
			Updates(map[string]interface{}{
				"status":     model.OutboxPublishing,
				"claimed_by": workerID,
				"claimed_at": now,
			}).Error
		if err != nil {
			return fmt.Errorf("failed to mark outbox rows claimed: %w", err)
		}
		claimed = rows
		return nil
	})

	return claimed, err
}

func (r *OutboxRepository) MarkPublished(ctx context.Context, id string) error {
	now := time.Now().UTC()
	err := r.db.WithContext(ctx).Model(&model.OutboxEvent{}).Where("id = ?", id).
		Updates(map[string]interface{}{"status": model.OutboxPublished, "published_at": now}).Error
	if err != nil {
		return fmt.Errorf("failed to mark outbox event published: %w", err)
	}
	return nil
}

// computeNextRetry applies exponential backoff capped at 30 minutes, the
// same cap the baechuer outbox worker uses, plus a fixed offset of
// (attempts mod 7) x 200ms. The offset is not random: rows with the same
// attempt count get the same delay.
func computeNextRetry(attempts int) time.Time {
	base := time.Duration(1<<uint(attempts)) * time.Second
	ceiling := 30 * time.Minute
	if base > ceiling {
		base = ceiling
	}
	jitter := time.Duration(attempts%7) * 200 * time.Millisecond
	return time.Now().UTC().Add(base + jitter)
}

func (r *OutboxRepository) MarkFailed(ctx context.Context, id string, sendErr error, nextAttemptAt time.Time) error {
	if nextAttemptAt.IsZero() {
		var attempts int
		r.db.WithContext(ctx).Model(&model.OutboxEvent{}).Where("id = ?", id).Pluck("attempts", &attempts)
		nextAttemptAt = computeNextRetry(attempts)
	}
	errMsg := ""
	if sendErr != nil {
		errMsg = sendErr.Error()
	}
	err := r.db.WithContext(ctx).Model(&model.OutboxEvent{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":          model.OutboxFailed,
			"attempts":        gorm.Expr("attempts + 1"),
			"last_error":      errMsg,
			"next_attempt_at": nextAttemptAt,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to mark outbox event failed: %w", err)
	}
	return nil
}

func (r *OutboxRepository) MarkDeadletter(ctx context.Context, id string, sendErr error) error {
	errMsg := ""
	if sendErr != nil {
		errMsg = sendErr.Error()
	}
	err := r.db.WithContext(ctx).Model(&model.OutboxEvent{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     model.OutboxDeadletter,
			"last_error": errMsg,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to mark outbox event deadletter: %w", err)
	}
	return nil
}
