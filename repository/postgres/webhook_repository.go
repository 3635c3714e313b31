package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/arunvm123/reservationengine/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WebhookRepository dedups inbound provider callbacks on (provider,
// providerEventId) (§4.J), grounded on the teacher's cache InvalidateKey
// idempotent-write style, using the same INSERT ... ON CONFLICT DO NOTHING
// race-safety as the idempotency store's Begin.
type WebhookRepository struct {
	db *gorm.DB
}

func NewWebhookRepository(db *gorm.DB) *WebhookRepository {
	return &WebhookRepository{db: db}
}

func (r *WebhookRepository) RecordIfNew(ctx context.Context, provider, providerEventID string) (bool, error) {
	rec := model.WebhookDedupRecord{
		Provider:        provider,
		ProviderEventID: providerEventID,
		ReceivedAt:      time.Now().UTC(),
	}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rec)
	if res.Error != nil {
		return false, fmt.Errorf("failed to record webhook dedup row: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *WebhookRepository) MarkProcessed(ctx context.Context, provider, providerEventID string, response model.JSONMap) error {
	err := r.db.WithContext(ctx).Model(&model.WebhookDedupRecord{}).
		Where("provider = ? AND provider_event_id = ?", provider, providerEventID).
		Updates(map[string]interface{}{"processed": true, "response_meta": response}).Error
	if err != nil {
		return fmt.Errorf("failed to mark webhook processed: %w", err)
	}
	return nil
}
