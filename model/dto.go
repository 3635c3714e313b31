package model

import "time"

// ============================================================================
// Public availability read API (§6 — specified bit-exact)
// ============================================================================

// AvailabilityQuery is the parsed form of GET /v1/public/availability.
type AvailabilityQuery struct {
	TenantID    string
	ServiceID   string
	From        time.Time
	To          time.Time
	ResourceID  string
	Granularity int // minutes; 0 = service default
}

// AvailabilitySlot is one row of the 200 response body.
type AvailabilitySlot struct {
	TimeslotID        string    `json:"timeslot_id"`
	TenantID          string    `json:"tenant_id"`
	ServiceID         string    `json:"service_id"`
	ResourceID        string    `json:"resource_id"`
	StartAt           time.Time `json:"start_at"`
	EndAt             time.Time `json:"end_at"`
	AvailableCapacity int       `json:"available_capacity"`
}

// ErrorResponse is the API error envelope (§6 400 response, §7 taxonomy).
type ErrorResponse struct {
	Code    ErrorCode     `json:"code"`
	Message string        `json:"message"`
	Details []FieldDetail `json:"details,omitempty"`
}

// ============================================================================
// Administrative booking API DTOs — camelCase wire names per §6/§9
// ============================================================================

// CreateBookingAPIRequest is the admin API body for a confirm request.
type CreateBookingAPIRequest struct {
	CustomerID      string                    `json:"customerId" binding:"required"`
	ServiceID       string                    `json:"serviceId" binding:"required"`
	Items           []BookingItemAPIRequest   `json:"items" binding:"required,min=1"`
	RequireAllSlots bool                      `json:"requireAllSlots"`
}

// BookingItemAPIRequest is one requested slot in the wire format.
type BookingItemAPIRequest struct {
	ResourceID string    `json:"resourceId" binding:"required"`
	Start      time.Time `json:"start" binding:"required"`
	End        time.Time `json:"end" binding:"required"`
	Capacity   int       `json:"capacity" binding:"required,gt=0"`
}

// BookingAPIResponse is the persisted entity plus response metadata
// returned by the admin API on every write.
type BookingAPIResponse struct {
	BookingID     string        `json:"bookingId"`
	Status        BookingStatus `json:"status"`
	TotalMinor    int64         `json:"totalMinor"`
	ExpiresAt     *time.Time    `json:"expiresAt,omitempty"`
	Alternatives  []Alternative `json:"alternatives,omitempty"`
}

// CancelAPIRequest is the admin API body for a cancellation.
type CancelAPIRequest struct {
	Reason CancellationReason `json:"reason" binding:"required"`
}

// ============================================================================
// Webhook ingress DTOs (§4.J, §6)
// ============================================================================

// WebhookEnvelope is the parsed provider payload, already verified.
type WebhookEnvelope struct {
	Provider        string `json:"provider"`
	ProviderEventID string `json:"providerEventId"`
	Type            string `json:"type"`
	Payload         []byte `json:"-"`
}

// WebhookReceipt is the response to every webhook POST.
type WebhookReceipt struct {
	Received  bool `json:"received"`
	Processed bool `json:"processed"`
}

// HealthResponse mirrors the teacher's health check payload shape.
type HealthResponse struct {
	Status    string    `json:"status"`
	Service   string    `json:"service"`
	Timestamp time.Time `json:"timestamp"`
}
