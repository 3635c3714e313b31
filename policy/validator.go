package policy

import (
	"context"
	"fmt"
	"time"

	"github.com/arunvm123/reservationengine/clock"
	"github.com/arunvm123/reservationengine/config"
	"github.com/arunvm123/reservationengine/model"
)

// Result is the single value policy checks return instead of exceptions
// (§9: exceptions for validation/policy collapse into one Result type
// carrying errors/warnings/suggestions, no stack-unwinding across
// component boundaries).
type Result struct {
	Errors      []model.FieldDetail
	Warnings    []model.FieldDetail
	Suggestions []model.Alternative
}

func (r Result) OK() bool { return len(r.Errors) == 0 }

func (r *Result) addError(field, msg string) {
	r.Errors = append(r.Errors, model.FieldDetail{Field: field, Message: msg})
}

func (r *Result) addWarning(field, msg string) {
	r.Warnings = append(r.Warnings, model.FieldDetail{Field: field, Message: msg})
}

// ReferenceData is the lookup surface the validator runs purely against
// (§4.D), populated by the caller before invoking Validate;
// booking.ReferenceResolver fills it from the catalog, inventory and
// booking stores, not from the cache.
type ReferenceData struct {
	Resource         *model.Resource
	Timeslot         *model.Timeslot
	Service          *model.Service
	Customer         *model.Customer
	BusinessHours    []model.BusinessHours
	Holidays         []model.Holiday
	TimeOff          []model.ResourceTimeOff
	ActiveCount      int
	BatchAvailable   func(resourceID string, start, end time.Time, required int) (bool, error)
	CustomerBookings func(customerID string) ([]model.BookingItemRequest, error)
}

// Validator runs the §4.D per-booking checks.
type Validator struct {
	cfg   config.Booking
	clock clock.Clock
}

func NewValidator(cfg config.Booking, c clock.Clock) *Validator {
	return &Validator{cfg: cfg, clock: c}
}

// Validate runs every per-booking check for one requested item, following
// the §4.D ordering: required fields, timing, resource, service, customer,
// business hours, availability, double-booking.
func (v *Validator) Validate(ctx context.Context, req model.BookingItemRequest, ref ReferenceData) Result {
	var res Result
	now := v.clock.Now()

	if req.ResourceID == "" {
		res.addError("resourceId", "resource is required")
	}
	if req.Start.IsZero() || req.End.IsZero() {
		res.addError("start", "start and end are required")
		return res
	}
	if !req.Start.Before(req.End) {
		res.addError("start", "start must be before end")
		return res
	}

	duration := req.End.Sub(req.Start)
	if duration < time.Duration(v.cfg.MinBookingDuration)*time.Minute {
		res.addError("duration", fmt.Sprintf("booking must be at least %d minutes", v.cfg.MinBookingDuration))
	}
	if duration > time.Duration(v.cfg.MaxBookingDuration)*time.Minute {
		res.addError("duration", fmt.Sprintf("booking must be at most %d minutes", v.cfg.MaxBookingDuration))
	}
	if duration > 8*time.Hour {
		res.addWarning("duration", "booking exceeds 8 hours")
	}

	if !req.Start.After(now) {
		res.addError("start", "start must be in the future")
	}
	if req.Start.After(now.AddDate(0, 0, v.cfg.AdvanceBookingDays)) {
		res.addError("start", fmt.Sprintf("start exceeds the %d day advance-booking window", v.cfg.AdvanceBookingDays))
	}

	if ref.Resource == nil {
		res.addError("resourceId", "resource not found")
		return res
	}
	if ref.Resource.Status != model.ResourceStatusActive {
		res.addError("resourceId", "resource is not active")
	}
	if ref.Resource.TotalCapacity < req.Capacity {
		res.addError("capacity", "requested capacity exceeds resource total capacity")
	}

	if ref.Service != nil {
		v.validateService(req, ref, duration, now, &res)
	}

	if ref.Customer != nil {
		if ref.Customer.Blacklisted {
			res.addError("customerId", "customer is blacklisted")
		}
		if ref.ActiveCount >= ref.Customer.MaxConcurrent {
			res.addError("customerId", "customer has reached their active booking limit")
		}
	}

	v.validateBusinessHours(req, ref, &res)

	if ref.BatchAvailable != nil {
		fits, err := ref.BatchAvailable(req.ResourceID, req.Start, req.End, req.Capacity)
		if err != nil {
			res.addError("capacity", "failed to verify availability")
		} else if !fits {
			res.addError("capacity", "requested capacity is not available")
		}
	}

	if v.cfg.PreventDoubleBooking && ref.CustomerBookings != nil {
		existing, err := ref.CustomerBookings("")
		if err == nil {
			for _, e := range existing {
				if e.ResourceID == req.ResourceID && req.Start.Before(e.End) && e.Start.Before(req.End) {
					res.addError("start", "overlaps an existing active booking")
					break
				}
			}
		}
	}

	return res
}

func (v *Validator) validateService(req model.BookingItemRequest, ref ReferenceData, duration time.Duration, now time.Time, res *Result) {
	svc := ref.Service
	if !svc.Active {
		res.addError("serviceId", "service is not active")
	}
	expected := time.Duration(svc.DurationMinutes) * time.Minute
	if diff := duration - expected; diff > 5*time.Minute || diff < -5*time.Minute {
		res.addWarning("duration", "requested duration does not match service duration")
	}
	if req.Start.Sub(now) < time.Duration(svc.MinAdvanceMinutes)*time.Minute {
		res.addError("start", "does not satisfy the service's minimum advance notice")
	}
	if req.Start.After(now.AddDate(0, 0, svc.MaxAdvanceDays)) {
		res.addError("start", "exceeds the service's maximum advance window")
	}
	weekday := req.Start.Weekday()
	if !svc.AllowWeekends && (weekday == time.Saturday || weekday == time.Sunday) {
		res.addError("start", "service does not allow weekend bookings")
	}
	if !svc.AllowHolidays {
		for _, h := range ref.Holidays {
			if sameDate(h.Date, req.Start) {
				res.addError("start", "falls on a holiday")
				break
			}
		}
	}
}

func (v *Validator) validateBusinessHours(req model.BookingItemRequest, ref ReferenceData, res *Result) {
	for _, t := range ref.TimeOff {
		if t.ResourceID == req.ResourceID && req.Start.Before(t.End) && t.Start.Before(req.End) {
			res.addError("start", "resource is unavailable during the requested window")
			return
		}
	}

	weekday := int(req.Start.Weekday())
	var matched *model.BusinessHours
	for i := range ref.BusinessHours {
		bh := ref.BusinessHours[i]
		if bh.DayOfWeek != weekday {
			continue
		}
		if bh.ResourceID != nil && *bh.ResourceID != req.ResourceID {
			continue
		}
		if bh.EffectiveFrom != nil && req.Start.Before(*bh.EffectiveFrom) {
			continue
		}
		if bh.EffectiveTo != nil && req.Start.After(*bh.EffectiveTo) {
			continue
		}
		matched = &bh
		break
	}
	if matched == nil {
		res.addError("start", "outside business hours")
		return
	}

	openMin, _ := parseHHMM(matched.OpenTime)
	closeMin, _ := parseHHMM(matched.CloseTime)
	startMin := req.Start.Hour()*60 + req.Start.Minute()
	endMin := req.End.Hour()*60 + req.End.Minute()
	if startMin < openMin || endMin > closeMin {
		res.addError("start", "outside business hours")
		nextOpen := time.Date(req.Start.Year(), req.Start.Month(), req.Start.Day(), openMin/60, openMin%60, 0, 0, req.Start.Location())
		res.Suggestions = append(res.Suggestions, model.Alternative{
			ResourceID: req.ResourceID,
			Start:      nextOpen,
			End:        nextOpen.Add(req.End.Sub(req.Start)),
			Reason:     "next business-hours opening",
		})
	}
}

func parseHHMM(s string) (int, error) {
	var h, m int
	_, err := fmt.Sscanf(s, "%d:%d", &h, &m)
	return h*60 + m, err
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// ValidateMultiSlot runs Validate over every item and applies the §4.D
// multi-slot cross-checks: same-resource overlap and requireAllSlots
// short-circuit.
func (v *Validator) ValidateMultiSlot(ctx context.Context, items []model.BookingItemRequest, refs []ReferenceData, requireAllSlots bool) Result {
	var combined Result
	var total time.Duration

	for i, item := range items {
		r := v.Validate(ctx, item, refs[i])
		combined.Errors = append(combined.Errors, r.Errors...)
		combined.Warnings = append(combined.Warnings, r.Warnings...)
		combined.Suggestions = append(combined.Suggestions, r.Suggestions...)
		total += item.End.Sub(item.Start)
		if requireAllSlots && !r.OK() {
			break
		}
	}

	for i := 0; i < len(items); i++ {
		for j := i + 1; j < len(items); j++ {
			if items[i].ResourceID != items[j].ResourceID {
				continue
			}
			if items[i].Start.Before(items[j].End) && items[j].Start.Before(items[i].End) {
				combined.addError("items", "requested slots on the same resource overlap")
			}
		}
	}
	if total > 8*time.Hour {
		combined.addWarning("items", "summed duration exceeds 8 hours")
	}

	return combined
}
