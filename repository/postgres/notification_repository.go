package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arunvm123/reservationengine/model"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NotificationRepository persists per-channel dispatch rows and delivery
// preferences (§4.I), grounded on the notification-service's model package
// for the content shape and the teacher's redis cache conventions for how a
// status is re-read after a write.
type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// CreateDispatches inserts one row per (channel, recipient), ignoring
// conflicts on the unique (outbox_event_id, channel, recipient) index so a
// relay retry of the same outbox event never double-enqueues a send.
func (r *NotificationRepository) CreateDispatches(ctx context.Context, tx *gorm.DB, ds []model.NotificationDispatch) error {
	if len(ds) == 0 {
		return nil
	}
	for i := range ds {
		if ds[i].ID == "" {
			ds[i].ID = uuid.NewString()
		}
		if ds[i].Status == "" {
			ds[i].Status = model.DispatchPending
		}
		if ds[i].NextAttemptAt.IsZero() {
			ds[i].NextAttemptAt = time.Now().UTC()
		}
		if ds[i].MaxRetries == 0 {
			ds[i].MaxRetries = 5
		}
	}
	err := tx.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&ds).Error
	if err != nil {
		return fmt.Errorf("failed to create notification dispatches: %w", err)
	}
	return nil
}

func (r *NotificationRepository) ClaimBatch(ctx context.Context, channel model.Channel, limit int) ([]model.NotificationDispatch, error) {
	var claimed []model.NotificationDispatch
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []model.NotificationDispatch
		err := tx.Raw(`
			SELECT * FROM notification_dispatches
			WHERE channel = ? AND status IN ('pending', 'failed') AND next_attempt_at <= ?
			ORDER BY priority DESC, next_attempt_at ASC
			LIMIT ?
			FOR UPDATE SKIP LOCKED`, channel, time.Now().UTC(), limit).
			Scan(&rows).Error
		if err != nil {
			return fmt.Errorf("failed to select claimable dispatches: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		ids := make([]string, 0, len(rows))
		for _, row := range rows {
			ids = append(ids, row.ID)
		}
		err = tx.Model(&model.NotificationDispatch{}).Where("id IN ?", ids).
			Update("status", model.DispatchSending).Error
		if err != nil {
			return fmt.Errorf("failed to mark dispatches sending: %w", err)
		}
		claimed = rows
		return nil
	})
	return claimed, err
}

func (r *NotificationRepository) MarkSent(ctx context.Context, id string, externalID string) error {
	err := r.db.WithContext(ctx).Model(&model.NotificationDispatch{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":      model.DispatchSent,
			"external_id": externalID,
			"attempts":    gorm.Expr("attempts + 1"),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to mark dispatch sent: %w", err)
	}
	return nil
}

func (r *NotificationRepository) MarkDelivered(ctx context.Context, id string) error {
	now := time.Now().UTC()
	err := r.db.WithContext(ctx).Model(&model.NotificationDispatch{}).Where("id = ?", id).
		Updates(map[string]interface{}{"status": model.DispatchDelivered, "delivered_at": now}).Error
	if err != nil {
		return fmt.Errorf("failed to mark dispatch delivered: %w", err)
	}
	return nil
}

func (r *NotificationRepository) MarkFailed(ctx context.Context, id string, lastErr string, nextAttemptAt time.Time) error {
	err := r.db.WithContext(ctx).Model(&model.NotificationDispatch{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":          model.DispatchFailed,
			"attempts":        gorm.Expr("attempts + 1"),
			"last_error":      lastErr,
			"next_attempt_at": nextAttemptAt,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to mark dispatch failed: %w", err)
	}
	return nil
}

func (r *NotificationRepository) MarkExpired(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).Model(&model.NotificationDispatch{}).Where("id = ?", id).
		Update("status", model.DispatchExpired).Error
	if err != nil {
		return fmt.Errorf("failed to mark dispatch expired: %w", err)
	}
	return nil
}

func (r *NotificationRepository) GetPreferences(ctx context.Context, tenant, recipientID string) (*model.NotificationPreferences, error) {
	var prefs model.NotificationPreferences
	err := r.db.WithContext(ctx).Where("tenant = ? AND recipient_id = ?", tenant, recipientID).First(&prefs).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get notification preferences: %w", err)
	}
	return &prefs, nil
}

func (r *NotificationRepository) GetTemplate(ctx context.Context, tenant, templateType, language string) (*model.NotificationTemplate, error) {
	var tmpl model.NotificationTemplate
	err := r.db.WithContext(ctx).
		Where("tenant = ? AND type = ? AND language = ?", tenant, templateType, language).
		First(&tmpl).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get notification template: %w", err)
	}
	return &tmpl, nil
}
