package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arunvm123/reservationengine/model"
	"github.com/arunvm123/reservationengine/repository"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// IdempotencyRepository is the durable tier of the idempotency/saga store
// (§4.E), grounded on the teacher's single-statement GORM update style but
// using INSERT ... ON CONFLICT DO NOTHING for the race-safe begin step the
// teacher never needed.
type IdempotencyRepository struct {
	db       *gorm.DB
	bookings repository.BookingStore
}

// NewIdempotencyRepository wires in the booking store so SweepStale can
// reconcile a stale processing record against the booking it may have
// already produced, rather than blindly failing it (§4.E reconciliation).
func NewIdempotencyRepository(db *gorm.DB, bookings repository.BookingStore) *IdempotencyRepository {
	return &IdempotencyRepository{db: db, bookings: bookings}
}

func (r *IdempotencyRepository) Begin(ctx context.Context, tenant, key, fingerprint string, ttl time.Duration) (*model.IdempotencyRecord, bool, error) {
	now := time.Now().UTC()
	rec := model.IdempotencyRecord{
		Key:         key,
		Tenant:      tenant,
		Fingerprint: fingerprint,
		Status:      model.IdempotencyPending,
		ExpiresAt:   now.Add(ttl),
		MaxRetries:  3,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rec)
	if res.Error != nil {
		return nil, false, fmt.Errorf("failed to begin idempotency record: %w", res.Error)
	}
	if res.RowsAffected == 1 {
		return &rec, true, nil
	}

	existing, err := r.Get(ctx, tenant, key)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *IdempotencyRepository) MarkProcessing(ctx context.Context, tenant, key string) error {
	return r.updateStatus(ctx, tenant, key, model.IdempotencyProcessing, nil)
}

func (r *IdempotencyRepository) Complete(ctx context.Context, tenant, key string, response model.JSONMap) error {
	return r.updateStatus(ctx, tenant, key, model.IdempotencyCompleted, response)
}

func (r *IdempotencyRepository) Fail(ctx context.Context, tenant, key string, response model.JSONMap) error {
	return r.updateStatus(ctx, tenant, key, model.IdempotencyFailed, response)
}

func (r *IdempotencyRepository) Cancel(ctx context.Context, tenant, key string) error {
	return r.updateStatus(ctx, tenant, key, model.IdempotencyCancelled, nil)
}

func (r *IdempotencyRepository) updateStatus(ctx context.Context, tenant, key string, status model.IdempotencyStatus, response model.JSONMap) error {
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}
	if response != nil {
		updates["response_meta"] = response
	}
	err := r.db.WithContext(ctx).Model(&model.IdempotencyRecord{}).
		Where("tenant = ? AND key = ?", tenant, key).
		Updates(updates).Error
	if err != nil {
		return fmt.Errorf("failed to update idempotency record: %w", err)
	}
	return nil
}

func (r *IdempotencyRepository) Get(ctx context.Context, tenant, key string) (*model.IdempotencyRecord, error) {
	var rec model.IdempotencyRecord
	err := r.db.WithContext(ctx).Where("tenant = ? AND key = ?", tenant, key).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get idempotency record: %w", err)
	}
	return &rec, nil
}

// SweepStale reclaims records abandoned mid-processing (crash between
// MarkProcessing and Complete/Fail) and expires records past their TTL,
// the background half of the §4.E state machine.
//
// A record stuck in processing does not mean the work never happened: the
// coordinator may have committed the Booking and crashed before the
// trailing Complete() call (booking/coordinator.go). Blindly failing that
// record would let a client retry re-run the whole confirm and create a
// second Booking for the same key, so each stale record is first
// reconciled against bookings by (tenant, key): if a Booking already
// exists the record is completed with its persisted response, and it is
// only failed when no Booking was ever created.
func (r *IdempotencyRepository) SweepStale(ctx context.Context, staleBefore, expireBefore time.Time, batchSize int) (int, int, error) {
	var stale []model.IdempotencyRecord
	err := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", model.IdempotencyProcessing, staleBefore).
		Limit(batchSize).
		Find(&stale).Error
	if err != nil {
		return 0, 0, fmt.Errorf("failed to list stale idempotency records: %w", err)
	}

	reclaimed := 0
	for _, rec := range stale {
		if err := r.reconcileStale(ctx, rec); err != nil {
			return reclaimed, 0, err
		}
		reclaimed++
	}

	expire := r.db.WithContext(ctx).Model(&model.IdempotencyRecord{}).
		Where("status IN ? AND expires_at < ?", []model.IdempotencyStatus{model.IdempotencyCompleted, model.IdempotencyFailed}, expireBefore).
		Limit(batchSize).
		Update("status", model.IdempotencyExpired)
	if expire.Error != nil {
		return reclaimed, 0, fmt.Errorf("failed to expire idempotency records: %w", expire.Error)
	}

	return reclaimed, int(expire.RowsAffected), nil
}

// reconcileStale resolves one stale processing record by checking whether
// its confirm actually committed a Booking before the crash.
func (r *IdempotencyRepository) reconcileStale(ctx context.Context, rec model.IdempotencyRecord) error {
	booking, err := r.bookings.GetByIdempotencyKey(ctx, rec.Tenant, rec.Key)
	if err != nil {
		return fmt.Errorf("failed to look up booking for stale idempotency record %s/%s: %w", rec.Tenant, rec.Key, err)
	}
	if booking == nil {
		return r.Fail(ctx, rec.Tenant, rec.Key, nil)
	}

	response := model.JSONMap{
		"bookingId":  booking.ID,
		"status":     booking.Status,
		"totalMinor": booking.TotalMinor,
	}
	if booking.ExpiresAt != nil {
		response["expiresAt"] = booking.ExpiresAt
	}
	return r.Complete(ctx, rec.Tenant, rec.Key, response)
}
