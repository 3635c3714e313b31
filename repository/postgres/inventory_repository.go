package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/arunvm123/reservationengine/model"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InventoryRepository is the timeslot ledger, grounded on the event-service
// repository's seat/hold capacity mutations (CheckSeatsAvailability,
// tx.Model(&model.Seat{}).Where(...).Updates(map[string]interface{}{...}))
// generalized from discrete seats to a capacity counter per timeslot.
type InventoryRepository struct {
	db *gorm.DB
}

func NewInventoryRepository(db *gorm.DB) *InventoryRepository {
	return &InventoryRepository{db: db}
}

// CreateTimeslots is an idempotent upsert keyed on the
// (tenant, resource, start, end) unique index (§4.C, §6): reseeding a
// window that already exists resets its capacity and bumps its version
// rather than erroring or creating a duplicate row.
func (r *InventoryRepository) CreateTimeslots(ctx context.Context, tenant, resourceID string, seeds []model.TimeslotSeed) error {
	if len(seeds) == 0 {
		return nil
	}
	rows := make([]model.Timeslot, 0, len(seeds))
	for _, s := range seeds {
		rows = append(rows, model.Timeslot{
			ID:                uuid.NewString(),
			Tenant:            tenant,
			ResourceID:        resourceID,
			Start:             s.Start,
			End:               s.End,
			TotalCapacity:     s.Capacity,
			AvailableCapacity: s.Capacity,
			Version:           1,
		})
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "tenant"}, {Name: "resource_id"}, {Name: "start"}, {Name: "end"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"total_capacity":     gorm.Expr("EXCLUDED.total_capacity"),
			"available_capacity": gorm.Expr("EXCLUDED.available_capacity"),
			"version":            gorm.Expr("timeslots.version + 1"),
			"updated_at":         gorm.Expr("now()"),
		}),
	}).CreateInBatches(rows, 500).Error
	if err != nil {
		return fmt.Errorf("failed to create timeslots: %w", err)
	}
	return nil
}

// GetTimeslotByID loads one timeslot row by its primary key, used to
// recover the (Start, End) window of an already-booked item.
func (r *InventoryRepository) GetTimeslotByID(ctx context.Context, timeslotID string) (*model.Timeslot, error) {
	var ts model.Timeslot
	err := r.db.WithContext(ctx).Where("id = ?", timeslotID).First(&ts).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get timeslot: %w", err)
	}
	return &ts, nil
}

// FindTimeslot resolves the exact row for one requested window, relying
// on the (tenant, resource, start, end) unique constraint (§6).
func (r *InventoryRepository) FindTimeslot(ctx context.Context, tenant, resourceID string, start, end time.Time) (*model.Timeslot, error) {
	var ts model.Timeslot
	err := r.db.WithContext(ctx).
		Where("tenant = ? AND resource_id = ? AND start = ? AND \"end\" = ?", tenant, resourceID, start, end).
		First(&ts).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find timeslot: %w", err)
	}
	return &ts, nil
}

// AvailableSlots answers the public availability read (§4.C, §6), joining
// timeslots to the resources serving the requested service.
func (r *InventoryRepository) AvailableSlots(ctx context.Context, q model.AvailabilityQuery) ([]model.AvailabilityRow, error) {
	var rows []model.AvailabilityRow

	tx := r.db.WithContext(ctx).Table("timeslots AS t").
		Select(`t.id AS timeslot_id, r.tenant AS tenant_id, rs.service_id AS service_id,
			t.resource_id AS resource_id, t.start AS start, t.end AS end,
			t.available_capacity AS available_capacity, t.total_capacity AS total_capacity,
			t.updated_at AS updated_at`).
		Joins("JOIN resources r ON r.id = t.resource_id").
		Joins("JOIN resource_services rs ON rs.resource_id = r.id").
		Where("r.tenant = ?", q.TenantID).
		Where("rs.service_id = ?", q.ServiceID).
		Where("r.status = ?", model.ResourceStatusActive).
		Where("t.start >= ? AND t.end <= ?", q.From, q.To).
		Where("t.available_capacity > 0").
		Order("t.start ASC")

	if q.ResourceID != "" {
		tx = tx.Where("t.resource_id = ?", q.ResourceID)
	}

	if err := tx.Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query available slots: %w", err)
	}
	return rows, nil
}

// BatchAvailability answers whether each requested (resource, window)
// combination has enough aggregate capacity, for multi-slot booking
// pre-checks (§4.C batchAvailability).
func (r *InventoryRepository) BatchAvailability(ctx context.Context, q model.BatchAvailabilityQuery) (model.BatchAvailabilityResult, error) {
	var minAvailable int
	err := r.db.WithContext(ctx).Table("timeslots").
		Select("COALESCE(MIN(available_capacity), 0)").
		Where("resource_id = ? AND start >= ? AND \"end\" <= ?", q.ResourceID, q.Start, q.End).
		Scan(&minAvailable).Error
	if err != nil {
		return model.BatchAvailabilityResult{}, fmt.Errorf("failed to compute batch availability: %w", err)
	}
	return model.BatchAvailabilityResult{
		ResourceID: q.ResourceID,
		Available:  minAvailable,
		Fits:       minAvailable >= q.Required,
	}, nil
}

// Reserve decrements AvailableCapacity on one timeslot using SELECT ... FOR
// UPDATE row locking plus an optimistic version check, so a stale read never
// silently overwrites a concurrent mutation (invariant I-1).
func (r *InventoryRepository) Reserve(ctx context.Context, tx *gorm.DB, timeslotID string, capacity int, expectedVersion int64) (model.ReserveOutcome, error) {
	var ts model.Timeslot
	err := tx.WithContext(ctx).Raw(
		`SELECT * FROM timeslots WHERE id = ? FOR UPDATE`, timeslotID,
	).Scan(&ts).Error
	if err != nil {
		return model.ReserveOutcome{}, fmt.Errorf("failed to lock timeslot: %w", err)
	}
	if ts.ID == "" {
		return model.ReserveOutcome{Kind: model.OutcomeSlotNotFound}, nil
	}
	if expectedVersion != 0 && ts.Version != expectedVersion {
		return model.ReserveOutcome{
			Kind:           model.OutcomeVersionMismatch,
			CurrentVersion: ts.Version,
			CurrentCapacity: ts.AvailableCapacity,
		}, nil
	}
	if ts.AvailableCapacity < capacity {
		return model.ReserveOutcome{
			Kind:            model.OutcomeCapacityExceeded,
			CurrentVersion:  ts.Version,
			CurrentCapacity: ts.AvailableCapacity,
		}, nil
	}

	newCapacity := ts.AvailableCapacity - capacity
	newVersion := ts.Version + 1
	res := tx.WithContext(ctx).Model(&model.Timeslot{}).
		Where("id = ? AND version = ?", timeslotID, ts.Version).
		Updates(map[string]interface{}{
			"available_capacity": newCapacity,
			"version":             newVersion,
			"updated_at":          time.Now().UTC(),
		})
	if res.Error != nil {
		return model.ReserveOutcome{}, fmt.Errorf("failed to reserve capacity: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// Lost the race between the lock read and the update despite FOR
		// UPDATE; surface as a version mismatch for the caller to retry.
		return model.ReserveOutcome{Kind: model.OutcomeVersionMismatch}, nil
	}
	return model.ReserveOutcome{Kind: model.OutcomeOK, NewCapacity: newCapacity, NewVersion: newVersion}, nil
}

// Release restores capacity, used by cancellation and saga compensation.
// Unlike Reserve it does not need an expected version: a release is always
// safe to apply against the current state.
func (r *InventoryRepository) Release(ctx context.Context, tx *gorm.DB, timeslotID string, capacity int) error {
	res := tx.WithContext(ctx).Exec(`
		UPDATE timeslots
		SET available_capacity = LEAST(total_capacity, available_capacity + ?),
		    version = version + 1,
		    updated_at = ?
		WHERE id = ?`, capacity, time.Now().UTC(), timeslotID)
	if res.Error != nil {
		return fmt.Errorf("failed to release capacity: %w", res.Error)
	}
	return nil
}

// SetCapacity overwrites AvailableCapacity to value under the same
// SELECT ... FOR UPDATE plus optimistic version check as Reserve, for
// administrative capacity edits rather than a booking-driven delta (§4.C).
func (r *InventoryRepository) SetCapacity(ctx context.Context, tx *gorm.DB, timeslotID string, value int, expectedVersion int64) (model.ReserveOutcome, error) {
	var ts model.Timeslot
	err := tx.WithContext(ctx).Raw(
		`SELECT * FROM timeslots WHERE id = ? FOR UPDATE`, timeslotID,
	).Scan(&ts).Error
	if err != nil {
		return model.ReserveOutcome{}, fmt.Errorf("failed to lock timeslot: %w", err)
	}
	if ts.ID == "" {
		return model.ReserveOutcome{Kind: model.OutcomeSlotNotFound}, nil
	}
	if expectedVersion != 0 && ts.Version != expectedVersion {
		return model.ReserveOutcome{
			Kind:            model.OutcomeVersionMismatch,
			CurrentVersion:  ts.Version,
			CurrentCapacity: ts.AvailableCapacity,
		}, nil
	}
	if value > ts.TotalCapacity {
		return model.ReserveOutcome{
			Kind:            model.OutcomeCapacityExceeded,
			CurrentVersion:  ts.Version,
			CurrentCapacity: ts.AvailableCapacity,
		}, nil
	}

	newVersion := ts.Version + 1
	res := tx.WithContext(ctx).Model(&model.Timeslot{}).
		Where("id = ? AND version = ?", timeslotID, ts.Version).
		Updates(map[string]interface{}{
			"available_capacity": value,
			"version":            newVersion,
			"updated_at":         time.Now().UTC(),
		})
	if res.Error != nil {
		return model.ReserveOutcome{}, fmt.Errorf("failed to set capacity: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return model.ReserveOutcome{Kind: model.OutcomeVersionMismatch}, nil
	}
	return model.ReserveOutcome{Kind: model.OutcomeOK, NewCapacity: value, NewVersion: newVersion}, nil
}

// CleanupExpired deletes timeslot rows with End < before for tenant,
// batched (§4.C cleanupExpired), the retention sweep that
// config.Cleanup.RetentionDays drives. Distinct from CleanupExpiredHolds,
// which releases capacity held by expired tentative bookings rather than
// retiring stale timeslot rows.
func (r *InventoryRepository) CleanupExpired(ctx context.Context, tenant string, before time.Time, batchSize int) (int, error) {
	res := r.db.WithContext(ctx).Exec(`
		DELETE FROM timeslots WHERE id IN (
			SELECT id FROM timeslots WHERE tenant = ? AND "end" < ? LIMIT ?
		)`, tenant, before, batchSize)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to cleanup expired timeslots: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

// BulkMutate applies capacity updates across a resource's timeslots in
// canonical (ResourceID, TimeslotID) lock order, the deadlock-avoidance
// discipline referenced throughout §4.C.
func (r *InventoryRepository) BulkMutate(ctx context.Context, tx *gorm.DB, resourceID string, updates []model.CapacityUpdate) error {
	sorted := make([]model.CapacityUpdate, len(updates))
	copy(sorted, updates)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].TimeslotID < sorted[j-1].TimeslotID; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}

	for _, u := range sorted {
		if u.SetAbsolute {
			res := tx.WithContext(ctx).Model(&model.Timeslot{}).
				Where("id = ?", u.TimeslotID).
				Updates(map[string]interface{}{
					"available_capacity": u.Delta,
					"version":            gorm.Expr("version + 1"),
					"updated_at":         time.Now().UTC(),
				})
			if res.Error != nil {
				return fmt.Errorf("failed to set capacity for %s: %w", u.TimeslotID, res.Error)
			}
			continue
		}
		if u.Delta < 0 {
			outcome, err := r.Reserve(ctx, tx, u.TimeslotID, -u.Delta, u.ExpectedVersion)
			if err != nil {
				return err
			}
			if outcome.Kind != model.OutcomeOK {
				return fmt.Errorf("bulk mutate failed on timeslot %s: %s", u.TimeslotID, outcome.Kind)
			}
			continue
		}
		if err := r.Release(ctx, tx, u.TimeslotID, u.Delta); err != nil {
			return err
		}
	}
	return nil
}

// CleanupExpiredHolds releases capacity for tentative bookings that expired
// without confirmation, mirroring the event-service's CleanupExpiredHolds.
func (r *InventoryRepository) CleanupExpiredHolds(ctx context.Context, olderThan time.Time, batchSize int) (int, error) {
	var bookingIDs []string
	err := r.db.WithContext(ctx).Model(&model.Booking{}).
		Where("status = ? AND expires_at < ?", model.BookingStatusTentative, olderThan).
		Limit(batchSize).
		Pluck("id", &bookingIDs).Error
	if err != nil {
		return 0, fmt.Errorf("failed to find expired holds: %w", err)
	}
	if len(bookingIDs) == 0 {
		return 0, nil
	}

	count := 0
	for _, id := range bookingIDs {
		var items []model.BookingItem
		if err := r.db.WithContext(ctx).Where("booking_id = ?", id).Find(&items).Error; err != nil {
			return count, fmt.Errorf("failed to load items for expired booking %s: %w", id, err)
		}
		err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			for _, item := range items {
				if err := r.Release(ctx, tx, item.TimeslotID, item.ReservedCapacity); err != nil {
					return err
				}
			}
			return tx.Model(&model.Booking{}).Where("id = ?", id).
				Update("status", model.BookingStatusCancelled).Error
		})
		if err != nil {
			return count, fmt.Errorf("failed to cleanup expired booking %s: %w", id, err)
		}
		count++
	}
	return count, nil
}
