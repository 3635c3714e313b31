package model

import "time"

// BookingStatus enumerates the lifecycle states of a Booking (§3).
type BookingStatus string

const (
	BookingStatusTentative BookingStatus = "tentative"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusNoShow    BookingStatus = "noshow"
	BookingStatusCompleted BookingStatus = "completed"
)

// Booking is the confirmed or pending reservation made by a customer
// against one or more timeslots.
type Booking struct {
	ID             string        `gorm:"type:uuid;primary_key"`
	Tenant         string        `gorm:"type:uuid;not null;index:idx_booking_tenant"`
	CustomerID     string        `gorm:"type:uuid;not null;index:idx_booking_customer"`
	ServiceID      string        `gorm:"type:uuid;not null"`
	Start          time.Time     `gorm:"not null"`
	End            time.Time     `gorm:"not null"`
	Status         BookingStatus `gorm:"type:varchar(20);not null;index:idx_booking_status"`
	TotalMinor     int64         `gorm:"not null"`
	IdempotencyKey string        `gorm:"type:varchar(255);index:idx_booking_idem_key"`
	ExpiresAt      *time.Time
	Metadata       JSONMap `gorm:"type:jsonb"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (Booking) TableName() string { return "bookings" }

// BookingItem is one (timeslot, resource) reservation belonging to a
// Booking. Invariant I-4: the sum of ReservedCapacity across all items of
// confirmed/tentative bookings touching a given timeslot never exceeds that
// timeslot's total capacity at the moment of write.
type BookingItem struct {
	ID               string `gorm:"type:uuid;primary_key"`
	BookingID        string `gorm:"type:uuid;not null;index:idx_item_booking"`
	TimeslotID       string `gorm:"type:uuid;not null;index:idx_item_timeslot"`
	ResourceID       string `gorm:"type:uuid;not null"`
	ReservedCapacity int    `gorm:"not null"`
}

func (BookingItem) TableName() string { return "booking_items" }

// BookingChange is an immutable audit record of a status transition.
type BookingChange struct {
	ID         string        `gorm:"type:uuid;primary_key"`
	BookingID  string        `gorm:"type:uuid;not null;index:idx_change_booking"`
	OldStatus  BookingStatus `gorm:"type:varchar(20)"`
	NewStatus  BookingStatus `gorm:"type:varchar(20);not null"`
	Reason     string        `gorm:"type:varchar(255)"`
	Actor      string        `gorm:"type:varchar(255)"`
	CreatedAt  time.Time
}

func (BookingChange) TableName() string { return "booking_changes" }

// CancellationReason enumerates §4.D cancellation evaluator reason codes.
type CancellationReason string

const (
	ReasonCustomerRequest  CancellationReason = "CUSTOMER_REQUEST"
	ReasonEmergency        CancellationReason = "EMERGENCY"
	ReasonBusinessClosure  CancellationReason = "BUSINESS_CLOSURE"
	ReasonPaymentFailed    CancellationReason = "PAYMENT_FAILED"
	ReasonNoShow           CancellationReason = "NO_SHOW"
)

// ============================================================================
// Request / response DTOs for the booking coordinator (§4.G)
// ============================================================================

// BookingItemRequest is one requested (resource, timeslot range, capacity)
// tuple within a ConfirmRequest.
type BookingItemRequest struct {
	ResourceID string
	Start      time.Time
	End        time.Time
	Capacity   int
}

// ConfirmRequest is the input to booking.Coordinator.Confirm.
type ConfirmRequest struct {
	Tenant         string
	CustomerID     string
	ServiceID      string
	Items          []BookingItemRequest
	TotalMinor     int64
	IdempotencyKey string
	RequireAllSlots bool
	RequestMeta    map[string]any
}

// ConfirmResponse is the output persisted verbatim as the idempotent
// cached response for a given key.
type ConfirmResponse struct {
	BookingID   string        `json:"bookingId"`
	Status      BookingStatus `json:"status"`
	TotalMinor  int64         `json:"totalMinor"`
	ExpiresAt   *time.Time    `json:"expiresAt,omitempty"`
}

// Alternative is a suggested alternate slot returned alongside a capacity
// failure (§7 User-visible failure).
type Alternative struct {
	ResourceID string    `json:"resourceId"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Reason     string    `json:"reason"`
}

// CancelRequest is the input to booking.Coordinator.Cancel.
type CancelRequest struct {
	Tenant      string
	BookingID   string
	Reason      CancellationReason
	RequestedAt time.Time
}

// CancelResponse reports the financial outcome of a cancellation.
type CancelResponse struct {
	BookingID      string  `json:"bookingId"`
	Status         BookingStatus `json:"status"`
	PenaltyAmount  int64   `json:"penaltyAmount"`
	RefundAmount   int64   `json:"refundAmount"`
}

// JSONMap is a convenience alias used for jsonb metadata columns.
type JSONMap map[string]any
