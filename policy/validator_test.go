package policy

import (
	"context"
	"testing"
	"time"

	"github.com/arunvm123/reservationengine/clock"
	"github.com/arunvm123/reservationengine/config"
	"github.com/arunvm123/reservationengine/model"
	"github.com/stretchr/testify/assert"
)

func testBookingConfig() config.Booking {
	return config.Booking{
		PreventDoubleBooking: true,
		MinBookingDuration:   5,
		MaxBookingDuration:   480,
		AdvanceBookingDays:   90,
	}
}

func baseRef() ReferenceData {
	open := "09:00"
	close := "17:00"
	return ReferenceData{
		Resource: &model.Resource{ID: "res-1", TotalCapacity: 5, Status: model.ResourceStatusActive},
		BusinessHours: []model.BusinessHours{
			{DayOfWeek: 1, OpenTime: open, CloseTime: close},
			{DayOfWeek: 2, OpenTime: open, CloseTime: close},
			{DayOfWeek: 3, OpenTime: open, CloseTime: close},
			{DayOfWeek: 4, OpenTime: open, CloseTime: close},
			{DayOfWeek: 5, OpenTime: open, CloseTime: close},
		},
	}
}

func TestValidateAcceptsWellFormedRequest(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC) // Monday
	v := NewValidator(testBookingConfig(), clock.NewFrozen(now))

	start := now.Add(24 * time.Hour).Truncate(time.Hour).Add(time.Hour) // Tuesday 09:00
	req := model.BookingItemRequest{ResourceID: "res-1", Start: start, End: start.Add(time.Hour), Capacity: 1}

	res := v.Validate(context.Background(), req, baseRef())

	assert.True(t, res.OK(), "expected no errors, got %+v", res.Errors)
}

func TestValidateRejectsPastStart(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	v := NewValidator(testBookingConfig(), clock.NewFrozen(now))

	req := model.BookingItemRequest{ResourceID: "res-1", Start: now.Add(-time.Hour), End: now, Capacity: 1}
	res := v.Validate(context.Background(), req, baseRef())

	assert.False(t, res.OK())
}

func TestValidateRejectsInactiveResource(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	v := NewValidator(testBookingConfig(), clock.NewFrozen(now))
	ref := baseRef()
	ref.Resource.Status = model.ResourceStatusMaintenance

	start := now.Add(24 * time.Hour)
	req := model.BookingItemRequest{ResourceID: "res-1", Start: start, End: start.Add(time.Hour), Capacity: 1}
	res := v.Validate(context.Background(), req, ref)

	assert.False(t, res.OK())
}

func TestValidateRejectsOutsideBusinessHours(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	v := NewValidator(testBookingConfig(), clock.NewFrozen(now))
	ref := baseRef()

	start := time.Date(2026, 3, 3, 20, 0, 0, 0, time.UTC) // Tuesday night, after close
	req := model.BookingItemRequest{ResourceID: "res-1", Start: start, End: start.Add(time.Hour), Capacity: 1}
	res := v.Validate(context.Background(), req, ref)

	assert.False(t, res.OK())
}

func TestValidateMultiSlotDetectsDoubleBooking(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	v := NewValidator(testBookingConfig(), clock.NewFrozen(now))

	start := time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC)
	ref := baseRef()
	ref.CustomerBookings = func(string) ([]model.BookingItemRequest, error) {
		return []model.BookingItemRequest{
			{ResourceID: "res-1", Start: start, End: start.Add(time.Hour)},
		}, nil
	}

	items := []model.BookingItemRequest{
		{ResourceID: "res-1", Start: start.Add(30 * time.Minute), End: start.Add(90 * time.Minute), Capacity: 1},
	}
	res := v.ValidateMultiSlot(context.Background(), items, []ReferenceData{ref}, false)

	assert.False(t, res.OK())
}
