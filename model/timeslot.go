package model

import "time"

// Timeslot is a fixed-duration bucket on a resource carrying a mutable
// availableCapacity. Invariant I-1: 0 <= AvailableCapacity <= total
// capacity of the owning resource at every committed state. Invariant I-2:
// for a fixed (tenant, resource), timeslots are pairwise non-overlapping.
//
// Version is a strictly monotonic counter, bumped by exactly one on every
// successful mutation (§9 Open Question — resolved in favor of an explicit
// integer column rather than a derived updated_at epoch, see DESIGN.md).
type Timeslot struct {
	ID                string    `gorm:"type:uuid;primary_key"`
	Tenant            string    `gorm:"type:uuid;not null;uniqueIndex:uq_ts_tenant_resource_window"`
	ResourceID        string    `gorm:"type:uuid;not null;uniqueIndex:uq_ts_tenant_resource_window"`
	Start             time.Time `gorm:"not null;uniqueIndex:uq_ts_tenant_resource_window"`
	End               time.Time `gorm:"not null;uniqueIndex:uq_ts_tenant_resource_window"`
	TotalCapacity     int       `gorm:"not null"`
	AvailableCapacity int       `gorm:"not null"`
	Version           int64     `gorm:"not null;default:1"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (Timeslot) TableName() string { return "timeslots" }

// AvailabilityRow is the read-path projection joining a Timeslot to its
// owning resource's total capacity, per §4.C availableSlots.
type AvailabilityRow struct {
	TimeslotID        string
	TenantID          string
	ResourceID        string
	ServiceID         string
	Start             time.Time
	End               time.Time
	AvailableCapacity int
	TotalCapacity     int
	UpdatedAt         time.Time
}

// BatchAvailabilityQuery is one entry of a batchAvailability request.
type BatchAvailabilityQuery struct {
	ResourceID string
	Start      time.Time
	End        time.Time
	Required   int
}

// BatchAvailabilityResult is the aggregated per-range answer.
type BatchAvailabilityResult struct {
	ResourceID string
	Available  int
	Fits       bool
}

// ReserveOutcomeKind enumerates the result classes of a capacity mutation
// (§4.C reserve/release/setCapacity Outcome).
type ReserveOutcomeKind string

const (
	OutcomeOK                 ReserveOutcomeKind = "ok"
	OutcomeVersionMismatch    ReserveOutcomeKind = "version_mismatch"
	OutcomeSlotNotFound       ReserveOutcomeKind = "slot_not_found"
	OutcomeCapacityExceeded   ReserveOutcomeKind = "capacity_exceeded"
	OutcomeResourceNotFound   ReserveOutcomeKind = "resource_not_found"
	OutcomeBusinessRuleViolation ReserveOutcomeKind = "business_rule_violation"
)

// ReserveOutcome is the result of a single capacity mutation attempt.
type ReserveOutcome struct {
	Kind              ReserveOutcomeKind
	NewCapacity       int
	NewVersion        int64
	CurrentVersion    int64
	CurrentCapacity   int
}

// CapacityUpdate is one entry of a bulkMutate request, processed in
// canonical (ResourceID, TimeslotID) order by the inventory store.
type CapacityUpdate struct {
	TimeslotID      string
	ResourceID      string
	Delta           int // positive = release, negative = reserve
	ExpectedVersion int64
	SetAbsolute     bool // when true, Delta is instead the absolute new value
}

// TimeslotSeed is one requested slot for createTimeslots.
type TimeslotSeed struct {
	Start    time.Time
	End      time.Time
	Capacity int
}
