package model

import "time"

// IdempotencyStatus enumerates the state machine of §4.E.
type IdempotencyStatus string

const (
	IdempotencyPending    IdempotencyStatus = "pending"
	IdempotencyProcessing IdempotencyStatus = "processing"
	IdempotencyCompleted  IdempotencyStatus = "completed"
	IdempotencyFailed     IdempotencyStatus = "failed"
	IdempotencyExpired    IdempotencyStatus = "expired"
	IdempotencyCancelled  IdempotencyStatus = "cancelled"
)

// IdempotencyRecord is the server-side memory of a client-supplied key.
// Invariant I-5: (Key, Tenant) is unique. Invariant I-6: at most one record
// with Status in {pending,processing} per (Key, Tenant) at any committed
// state.
type IdempotencyRecord struct {
	Key                  string            `gorm:"type:varchar(255);primary_key"`
	Tenant               string            `gorm:"type:uuid;primary_key"`
	Fingerprint          string            `gorm:"type:varchar(64);not null"`
	Status               IdempotencyStatus `gorm:"type:varchar(20);not null"`
	RequestMeta          JSONMap           `gorm:"type:jsonb"`
	ResponseMeta         JSONMap           `gorm:"type:jsonb"`
	ExpiresAt            time.Time         `gorm:"not null;index:idx_idem_expires"`
	RetryCount           int               `gorm:"not null;default:0"`
	MaxRetries           int               `gorm:"not null;default:3"`
	SagaID               *string           `gorm:"type:uuid"`
	TransactionID        *string           `gorm:"type:uuid"`
	LockAcquisitionMs    int64
	DatabaseMs           int64
	ProcessingDurationMs int64
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

func (IdempotencyRecord) TableName() string { return "idempotency_records" }

// ConflictCode enumerates the §7 conflict taxonomy surfaced by the
// idempotency check protocol.
type ConflictCode string

const (
	ConflictNone                ConflictCode = ""
	ConflictKeyExpired          ConflictCode = "KEY_EXPIRED"
	ConflictFingerprintMismatch ConflictCode = "FINGERPRINT_MISMATCH"
	ConflictInvalidState        ConflictCode = "INVALID_STATE"
)

// CheckOutcome is the result of the §4.E check(key, requestMeta, tenant)
// protocol.
type CheckOutcome struct {
	Proceed        bool
	ShouldWait     bool
	WaitMs         int
	Conflict       ConflictCode
	CachedResponse JSONMap
}
