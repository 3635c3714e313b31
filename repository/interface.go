package repository

import (
	"context"
	"time"

	"github.com/arunvm123/reservationengine/model"
	"gorm.io/gorm"
)

// Gateway owns the connection pool and exposes tenant-scoped transaction
// boundaries, grounded on the teacher's GetDB()-returning repository and
// generalized into an explicit persistence gateway (§4.B).
type Gateway interface {
	// WithTx runs fn inside a single DB transaction, retrying the whole
	// transaction on a serialization failure or deadlock (Postgres
	// SQLSTATE 40001 / 40P01) up to the configured deadlock.maxRetries,
	// with exponential backoff starting at deadlock.backoffMs.
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error

	// DB returns the underlying pool for read-only queries and health
	// checks, mirroring the teacher's GetDB().
	DB() *gorm.DB

	Close() error
}

// InventoryStore is the timeslot ledger (§4.C).
type InventoryStore interface {
	CreateTimeslots(ctx context.Context, tenant, resourceID string, seeds []model.TimeslotSeed) error

	AvailableSlots(ctx context.Context, q model.AvailabilityQuery) ([]model.AvailabilityRow, error)
	BatchAvailability(ctx context.Context, q model.BatchAvailabilityQuery) (model.BatchAvailabilityResult, error)

	// Reserve decrements available capacity on one timeslot inside tx,
	// using SELECT ... FOR UPDATE row locking and an optimistic version
	// check, returning the outcome kind rather than an error for the
	// expected contention paths (version_mismatch, capacity_exceeded).
	Reserve(ctx context.Context, tx *gorm.DB, timeslotID string, capacity int, expectedVersion int64) (model.ReserveOutcome, error)

	// Release restores capacity previously reserved, used by cancellation
	// and saga compensation.
	Release(ctx context.Context, tx *gorm.DB, timeslotID string, capacity int) error

	// SetCapacity overwrites AvailableCapacity to value, analogous to
	// Reserve/Release but for administrative capacity edits rather than a
	// booking-driven delta, using the same SELECT ... FOR UPDATE plus
	// optimistic version check (§4.C).
	SetCapacity(ctx context.Context, tx *gorm.DB, timeslotID string, value int, expectedVersion int64) (model.ReserveOutcome, error)

	// BulkMutate applies the given capacity updates for one resource,
	// sorted by timeslotId so callers lock rows in the same order, for
	// multi-slot bookings and admin capacity edits. It touches only the
	// timeslots named in updates.
	BulkMutate(ctx context.Context, tx *gorm.DB, resourceID string, updates []model.CapacityUpdate) error

	CleanupExpiredHolds(ctx context.Context, olderThan time.Time, batchSize int) (int, error)

	// CleanupExpired deletes timeslot rows with End < before for tenant,
	// batched (§4.C cleanupExpired), distinct from CleanupExpiredHolds:
	// this retires stale timeslot rows past the retention window, not
	// capacity held by expired tentative bookings.
	CleanupExpired(ctx context.Context, tenant string, before time.Time, batchSize int) (int, error)

	// FindTimeslot resolves the exact timeslot row for one requested
	// (resource, start, end) window, relying on the
	// (tenant, resource, start, end) unique constraint (§6).
	FindTimeslot(ctx context.Context, tenant, resourceID string, start, end time.Time) (*model.Timeslot, error)

	GetTimeslotByID(ctx context.Context, timeslotID string) (*model.Timeslot, error)
}

// CatalogStore is the read-mostly reference data the policy validator runs
// against: resources, services, customers, and the scheduling exceptions
// that shape business hours (§4.D).
type CatalogStore interface {
	GetResource(ctx context.Context, tenant, resourceID string) (*model.Resource, error)
	GetService(ctx context.Context, tenant, serviceID string) (*model.Service, error)
	GetCustomer(ctx context.Context, tenant, customerID string) (*model.Customer, error)
	ListBusinessHours(ctx context.Context, tenant, resourceID string) ([]model.BusinessHours, error)
	ListHolidays(ctx context.Context, tenant string, from, to time.Time) ([]model.Holiday, error)
	ListTimeOff(ctx context.Context, tenant, resourceID string, from, to time.Time) ([]model.ResourceTimeOff, error)

	// ListTenants returns every known tenant ID, used by background sweeps
	// that must iterate tenant by tenant (e.g. timeslot retention).
	ListTenants(ctx context.Context) ([]string, error)
}

// BookingStore persists Booking aggregates and their audit trail (§4.A/G).
type BookingStore interface {
	Create(ctx context.Context, tx *gorm.DB, b *model.Booking, items []model.BookingItem) error
	GetByID(ctx context.Context, tenant, bookingID string) (*model.Booking, []model.BookingItem, error)
	UpdateStatus(ctx context.Context, tx *gorm.DB, bookingID string, from, to model.BookingStatus, change model.BookingChange) error
	ListByCustomer(ctx context.Context, tenant, customerID string, limit, offset int) ([]model.Booking, error)
	ListExpiringTentative(ctx context.Context, before time.Time, limit int) ([]model.Booking, error)
	CountActiveForCustomer(ctx context.Context, tenant, customerID string) (int, error)

	// GetByIdempotencyKey looks up the booking, if any, already persisted
	// for (tenant, idempotencyKey), the lookup the §4.E reconciliation
	// sweep needs to tell "crashed before Complete() but the booking
	// committed" apart from "genuinely never ran".
	GetByIdempotencyKey(ctx context.Context, tenant, key string) (*model.Booking, error)
}

// IdempotencyStore is the durable tier of the idempotency/saga store (§4.E).
type IdempotencyStore interface {
	// Begin atomically inserts a pending record or returns the existing
	// one, implementing the check-then-act as a single INSERT ... ON
	// CONFLICT DO NOTHING followed by a read, so concurrent callers race
	// safely on the same key.
	Begin(ctx context.Context, tenant, key, fingerprint string, ttl time.Duration) (*model.IdempotencyRecord, bool, error)

	MarkProcessing(ctx context.Context, tenant, key string) error
	Complete(ctx context.Context, tenant, key string, response model.JSONMap) error
	Fail(ctx context.Context, tenant, key string, response model.JSONMap) error
	Cancel(ctx context.Context, tenant, key string) error

	Get(ctx context.Context, tenant, key string) (*model.IdempotencyRecord, error)

	// SweepStale reclaims records stuck in processing past
	// idempotency.staleProcessingMinutes, and expires records past
	// ExpiresAt, returning how many rows of each it touched.
	SweepStale(ctx context.Context, staleBefore, expireBefore time.Time, batchSize int) (reclaimed int, expired int, err error)
}

// SagaStore persists saga executions and 2PC-style transaction contexts
// (§4.F).
type SagaStore interface {
	CreateSaga(ctx context.Context, tx *gorm.DB, s *model.SagaExecution) error
	UpdateSagaStatus(ctx context.Context, tx *gorm.DB, sagaID string, status model.SagaStatus, currentStep int) error
	AppendCompletedStep(ctx context.Context, tx *gorm.DB, sagaID string, stepName string) error

	CreateTransaction(ctx context.Context, tx *gorm.DB, tc *model.TransactionContext, participants []model.Participant) error
	UpdateParticipant(ctx context.Context, tx *gorm.DB, transactionID, participantName string, status model.ParticipantStatus, compensationData model.JSONMap) error
	GetTransaction(ctx context.Context, transactionID string) (*model.TransactionContext, []model.Participant, error)

	// ListStuck returns transactions whose ExpiresAt is before olderThan,
	// whatever their participants' states, feeding the reconciliation
	// sweep (§4.F step 6).
	ListStuck(ctx context.Context, olderThan time.Time, limit int) ([]model.TransactionContext, error)
}

// OutboxStore is the transactional outbox writer and relay-side claimant
// (§4.H).
type OutboxStore interface {
	// Append writes an event row in the same transaction as the state
	// change it describes (invariant I-7). Must be called with a tx
	// already opened by the caller.
	Append(ctx context.Context, tx *gorm.DB, e *model.OutboxEvent) error

	// ClaimBatch atomically claims up to limit pending/due rows for this
	// worker using SELECT ... FOR UPDATE SKIP LOCKED, so concurrent relay
	// instances never double-process a row.
	ClaimBatch(ctx context.Context, workerID string, limit int) ([]model.OutboxEvent, error)

	MarkPublished(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, err error, nextAttemptAt time.Time) error
	MarkDeadletter(ctx context.Context, id string, err error) error
}

// NotificationStore persists per-channel dispatch rows and delivery
// preferences (§4.I).
type NotificationStore interface {
	// CreateDispatches inserts one row per (channel, recipient), ignoring
	// conflicts on the (outboxEventId, channel, recipientId) unique index
	// so a relay retry never double-enqueues a send.
	CreateDispatches(ctx context.Context, tx *gorm.DB, ds []model.NotificationDispatch) error

	ClaimBatch(ctx context.Context, channel model.Channel, limit int) ([]model.NotificationDispatch, error)
	MarkSent(ctx context.Context, id string, externalID string) error
	MarkDelivered(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, lastErr string, nextAttemptAt time.Time) error
	MarkExpired(ctx context.Context, id string) error

	GetPreferences(ctx context.Context, tenant, recipientID string) (*model.NotificationPreferences, error)
	GetTemplate(ctx context.Context, tenant, templateType, language string) (*model.NotificationTemplate, error)
}

// WebhookStore dedups inbound provider callbacks (§4.J).
type WebhookStore interface {
	// RecordIfNew inserts the dedup row, returning false if
	// (provider, providerEventId) was already seen.
	RecordIfNew(ctx context.Context, provider, providerEventID string) (bool, error)
	MarkProcessed(ctx context.Context, provider, providerEventID string, response model.JSONMap) error
}
