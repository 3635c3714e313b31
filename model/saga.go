package model

import "time"

// SagaStatus enumerates the lifecycle of a SagaExecution (§4.F).
type SagaStatus string

const (
	SagaExecuting   SagaStatus = "executing"
	SagaCompleted   SagaStatus = "completed"
	SagaFailed      SagaStatus = "failed"
	SagaCompensated SagaStatus = "compensated"
)

// SagaExecution is the persisted record of an in-flight or finished saga.
type SagaExecution struct {
	SagaID         string     `gorm:"type:uuid;primary_key"`
	Tenant         string     `gorm:"type:uuid;not null;index:idx_saga_tenant"`
	Name           string     `gorm:"type:varchar(255);not null"`
	Status         SagaStatus `gorm:"type:varchar(20);not null"`
	Steps          JSONMap    `gorm:"type:jsonb"` // ordered step names
	CompletedSteps JSONMap    `gorm:"type:jsonb"`
	Results        JSONMap    `gorm:"type:jsonb"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (SagaExecution) TableName() string { return "saga_executions" }

// ParticipantStatus enumerates the 2PC-style bookkeeping states (§3).
type ParticipantStatus string

const (
	ParticipantInitiated    ParticipantStatus = "initiated"
	ParticipantPreparing    ParticipantStatus = "preparing"
	ParticipantPrepared     ParticipantStatus = "prepared"
	ParticipantCommitting   ParticipantStatus = "committing"
	ParticipantCommitted    ParticipantStatus = "committed"
	ParticipantAborting     ParticipantStatus = "aborting"
	ParticipantAborted      ParticipantStatus = "aborted"
	ParticipantCompensating ParticipantStatus = "compensating"
	ParticipantCompensated  ParticipantStatus = "compensated"
	ParticipantFailed       ParticipantStatus = "failed"
)

// TransactionContext groups the participants of one distributed
// transaction (e.g. reserveCapacity + authorizePayment).
type TransactionContext struct {
	TransactionID string    `gorm:"type:uuid;primary_key"`
	Tenant        string    `gorm:"type:uuid;not null"`
	SagaID        string    `gorm:"type:uuid;index:idx_txctx_saga"`
	ExpiresAt     time.Time `gorm:"not null;index:idx_txctx_expires"`
	CreatedAt     time.Time
}

func (TransactionContext) TableName() string { return "transaction_contexts" }

// Participant is one leg of a TransactionContext.
type Participant struct {
	ID                     string            `gorm:"type:uuid;primary_key"`
	TransactionID          string            `gorm:"type:uuid;not null;index:idx_participant_tx"`
	Name                   string            `gorm:"type:varchar(255);not null"`
	Status                 ParticipantStatus `gorm:"type:varchar(20);not null"`
	CompensationData       JSONMap           `gorm:"type:jsonb"`
	CompensationCompleted  bool              `gorm:"not null;default:false"`
	UpdatedAt              time.Time
}

func (Participant) TableName() string { return "participants" }
