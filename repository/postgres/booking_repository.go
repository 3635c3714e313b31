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

// BookingRepository persists Booking aggregates and their audit trail,
// grounded on the teacher's CreateBooking/GetBookingByID/UpdateBookingStatus
// shape, generalized to the tenant-scoped multi-item booking model.
type BookingRepository struct {
	db *gorm.DB
}

func NewBookingRepository(db *gorm.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

func (r *BookingRepository) Create(ctx context.Context, tx *gorm.DB, b *model.Booking, items []model.BookingItem) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if err := tx.WithContext(ctx).Create(b).Error; err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}
	for i := range items {
		items[i].ID = uuid.NewString()
		items[i].BookingID = b.ID
	}
	if len(items) > 0 {
		if err := tx.WithContext(ctx).Create(&items).Error; err != nil {
			return fmt.Errorf("failed to create booking items: %w", err)
		}
	}
	return nil
}

func (r *BookingRepository) GetByID(ctx context.Context, tenant, bookingID string) (*model.Booking, []model.BookingItem, error) {
	var b model.Booking
	err := r.db.WithContext(ctx).Where("id = ? AND tenant = ?", bookingID, tenant).First(&b).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, fmt.Errorf("booking not found")
		}
		return nil, nil, fmt.Errorf("failed to get booking: %w", err)
	}
	var items []model.BookingItem
	if err := r.db.WithContext(ctx).Where("booking_id = ?", bookingID).Find(&items).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to get booking items: %w", err)
	}
	return &b, items, nil
}

// UpdateStatus transitions a booking's status and appends an audit row in
// the same transaction, guarding the transition with a WHERE on the
// expected current status so concurrent cancel/confirm races lose cleanly
// instead of double-applying.
func (r *BookingRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, bookingID string, from, to model.BookingStatus, change model.BookingChange) error {
	res := tx.WithContext(ctx).Model(&model.Booking{}).
		Where("id = ? AND status = ?", bookingID, from).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update booking status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("booking %s is not in expected status %s", bookingID, from)
	}

	change.ID = uuid.NewString()
	change.BookingID = bookingID
	change.OldStatus = from
	change.NewStatus = to
	change.CreatedAt = time.Now().UTC()
	if err := tx.WithContext(ctx).Create(&change).Error; err != nil {
		return fmt.Errorf("failed to record booking change: %w", err)
	}
	return nil
}

func (r *BookingRepository) ListByCustomer(ctx context.Context, tenant, customerID string, limit, offset int) ([]model.Booking, error) {
	var bookings []model.Booking
	err := r.db.WithContext(ctx).
		Where("tenant = ? AND customer_id = ?", tenant, customerID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&bookings).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return bookings, nil
}

func (r *BookingRepository) ListExpiringTentative(ctx context.Context, before time.Time, limit int) ([]model.Booking, error) {
	var bookings []model.Booking
	err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at < ?", model.BookingStatusTentative, before).
		Limit(limit).
		Find(&bookings).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list expiring tentative bookings: %w", err)
	}
	return bookings, nil
}

// GetByIdempotencyKey looks up the booking, if any, already committed for
// (tenant, idempotencyKey). Used by idempotency reconciliation to tell a
// crash between Create() and the idempotency record's Complete() apart
// from a request that genuinely never ran.
func (r *BookingRepository) GetByIdempotencyKey(ctx context.Context, tenant, key string) (*model.Booking, error) {
	var b model.Booking
	err := r.db.WithContext(ctx).Where("tenant = ? AND idempotency_key = ?", tenant, key).First(&b).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get booking by idempotency key: %w", err)
	}
	return &b, nil
}

func (r *BookingRepository) CountActiveForCustomer(ctx context.Context, tenant, customerID string) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Booking{}).
		Where("tenant = ? AND customer_id = ? AND status IN ?", tenant, customerID,
			[]model.BookingStatus{model.BookingStatusTentative, model.BookingStatusConfirmed}).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count active bookings: %w", err)
	}
	return int(count), nil
}
