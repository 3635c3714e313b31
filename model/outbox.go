package model

import "time"

// OutboxStatus enumerates the lifecycle of an OutboxEvent (§3, §4.H/I).
type OutboxStatus string

const (
	OutboxPending    OutboxStatus = "pending"
	OutboxPublishing OutboxStatus = "publishing"
	OutboxPublished  OutboxStatus = "published"
	OutboxFailed     OutboxStatus = "failed"
	OutboxDeadletter OutboxStatus = "deadletter"
)

// Outbox event type constants referenced by the booking coordinator and
// webhook ingress.
const (
	EventBookingCreated         = "BOOKING_CREATED"
	EventBookingCancelled       = "BOOKING_CANCELLED"
	EventBookingConfirmed       = "BOOKING_CONFIRMED"
	EventPaymentRefundRequested = "PAYMENT_REFUND_REQUESTED"
	EventTentativeExpired       = "TENTATIVE_EXPIRED"
)

// OutboxEvent is a durable event row appended in the same DB transaction as
// the state change it describes (invariant I-7).
type OutboxEvent struct {
	ID              string       `gorm:"type:uuid;primary_key"`
	Tenant          string       `gorm:"type:uuid;not null;index:idx_outbox_tenant"`
	Type            string       `gorm:"type:varchar(100);not null"`
	AggregateType   string       `gorm:"type:varchar(100);not null"`
	AggregateID     string       `gorm:"type:uuid;not null;index:idx_outbox_aggregate"`
	Payload         JSONMap      `gorm:"type:jsonb"`
	Status          OutboxStatus `gorm:"type:varchar(20);not null;index:idx_outbox_status_next"`
	Attempts        int          `gorm:"not null;default:0"`
	LastError       string       `gorm:"type:text"`
	NextAttemptAt   time.Time    `gorm:"not null;index:idx_outbox_status_next"`
	ClaimedBy       string       `gorm:"type:varchar(255)"`
	ClaimedAt       *time.Time
	CreatedAt       time.Time
	PublishedAt     *time.Time
	TraceID         string `gorm:"type:varchar(64)"`
	CorrelationID   string `gorm:"type:varchar(64)"`
}

func (OutboxEvent) TableName() string { return "outbox_events" }

// BookingCreatedPayload is the JSON payload of an EventBookingCreated row.
type BookingCreatedPayload struct {
	BookingID      string    `json:"bookingId"`
	Tenant         string    `json:"tenant"`
	CustomerID     string    `json:"customerId"`
	CustomerEmail  string    `json:"customerEmail"`
	ServiceID      string    `json:"serviceId"`
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
	TotalMinor     int64     `json:"totalMinor"`
	CorrelationID  string    `json:"correlationId"`
}

// BookingCancelledPayload is the JSON payload of an EventBookingCancelled row.
type BookingCancelledPayload struct {
	BookingID     string `json:"bookingId"`
	Tenant        string `json:"tenant"`
	CustomerID    string `json:"customerId"`
	CustomerEmail string `json:"customerEmail"`
	RefundAmount  int64  `json:"refundAmount"`
	Reason        string `json:"reason"`
}
