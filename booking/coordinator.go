package booking

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/arunvm123/reservationengine/cache"
	"github.com/arunvm123/reservationengine/clock"
	"github.com/arunvm123/reservationengine/config"
	"github.com/arunvm123/reservationengine/metrics"
	"github.com/arunvm123/reservationengine/model"
	"github.com/arunvm123/reservationengine/policy"
	"github.com/arunvm123/reservationengine/repository"
	"github.com/arunvm123/reservationengine/saga"
	"github.com/arunvm123/reservationengine/telemetry"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

// Coordinator is the single entry point for a confirm/cancel/reschedule,
// grounded on the §4.G pseudocode and on the teacher's BookingProcessor
// (worker/booking_processor.go), whose processBooking/processPayment two-
// step pipeline is the same shape as this coordinator's
// validate-then-reserve-then-persist sequence, generalized from a
// single-event-venue booking into the canonical-lock-order multi-resource
// model.
type Coordinator struct {
	gw           repository.Gateway
	bookings     repository.BookingStore
	inventory    repository.InventoryStore
	idempotency  repository.IdempotencyStore
	outbox       repository.OutboxStore
	saga         *saga.Coordinator
	validator    *policy.Validator
	cancellation *policy.CancellationEvaluator
	clock        clock.Clock
	tentative    config.Tentative
	idemCfg      config.Idempotency
	idemCache    *cache.IdempotencyCache
	sf           singleflight.Group
}

func NewCoordinator(
	gw repository.Gateway,
	bookings repository.BookingStore,
	inventory repository.InventoryStore,
	idempotency repository.IdempotencyStore,
	outbox repository.OutboxStore,
	confirmSaga *saga.Coordinator,
	validator *policy.Validator,
	cancellation *policy.CancellationEvaluator,
	c clock.Clock,
	tentative config.Tentative,
	idemCfg config.Idempotency,
	idemCache *cache.IdempotencyCache,
) *Coordinator {
	return &Coordinator{
		gw: gw, bookings: bookings, inventory: inventory, idempotency: idempotency,
		outbox: outbox, saga: confirmSaga, validator: validator, cancellation: cancellation, clock: c,
		tentative: tentative, idemCfg: idemCfg, idemCache: idemCache,
	}
}

// lockPlanItem is one requested item annotated with its resolved timeslot
// and current version, sorted into canonical (resourceId, timeslotId) order
// before any lock is acquired (§4.G, §5 ordering guarantees).
type lockPlanItem struct {
	model.BookingItemRequest
	TimeslotID string
	Version    int64
}

func orderLocksCanonically(items []lockPlanItem) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].ResourceID != items[j].ResourceID {
			return items[i].ResourceID < items[j].ResourceID
		}
		return items[i].TimeslotID < items[j].TimeslotID
	})
}

// Confirm implements the §4.G confirm pseudocode: idempotency check,
// policy validation, canonical-order reservation under a retrying
// transaction, persistence of the booking and its outbox event, and final
// idempotency completion.
func (c *Coordinator) Confirm(ctx context.Context, req model.ConfirmRequest, refs []policy.ReferenceData) (resp *model.ConfirmResponse, err error) {
	ctx, span := telemetry.StartSpan(ctx, "booking.Confirm", telemetry.Tenant(req.Tenant))
	defer span.End()
	defer func() {
		outcome := "confirmed"
		switch {
		case err != nil:
			outcome = "error"
		case resp != nil && resp.Status == model.BookingStatusTentative:
			outcome = "tentative"
		}
		metrics.BookingConfirmsTotal.WithLabelValues(req.Tenant, outcome).Inc()
	}()

	fingerprint := Fingerprint(req)

	outcome, err := c.checkIdempotency(ctx, req.Tenant, req.IdempotencyKey, fingerprint)
	if err != nil {
		return nil, err
	}
	if outcome.CachedResponse != nil {
		var cached model.ConfirmResponse
		if err := decodeJSONMap(outcome.CachedResponse, &cached); err != nil {
			return nil, model.WrapAppError(model.ErrInternal, "failed to decode cached response", err)
		}
		return &cached, nil
	}
	if !outcome.Proceed && outcome.ShouldWait {
		return nil, model.NewAppError(model.ErrIdempotencyProcessing, "a request with this idempotency key is already in flight")
	}
	if !outcome.Proceed {
		return nil, model.NewAppError(model.ErrIdempotencyFingerprint, "idempotency key was used with a different request body")
	}

	if req.IdempotencyKey != "" {
		if err := c.idempotency.MarkProcessing(ctx, req.Tenant, req.IdempotencyKey); err != nil {
			log.Printf("booking: failed to mark idempotency key %s processing: %v", req.IdempotencyKey, err)
		}
	}

	validation := c.validator.ValidateMultiSlot(ctx, req.Items, refs, req.RequireAllSlots)
	if !validation.OK() {
		c.failIdempotency(ctx, req.Tenant, req.IdempotencyKey, validation)
		return nil, model.NewAppError(model.ErrValidation, "booking request failed validation", validation.Errors...)
	}

	plan := make([]lockPlanItem, 0, len(req.Items))
	for i, item := range req.Items {
		if refs[i].Timeslot == nil {
			return nil, model.NewAppError(model.ErrResourceUnavailable, "no timeslot resolved for requested window")
		}
		plan = append(plan, lockPlanItem{
			BookingItemRequest: item,
			TimeslotID:         refs[i].Timeslot.ID,
			Version:            refs[i].Timeslot.Version,
		})
	}
	orderLocksCanonically(plan)

	status := model.BookingStatusConfirmed
	var expiresAt *time.Time
	if c.tentative.Enabled {
		status = model.BookingStatusTentative
		t := c.clock.Now().Add(time.Duration(c.tentative.TimeoutMinutes) * time.Minute)
		expiresAt = &t
	}

	booking := &model.Booking{
		Tenant:         req.Tenant,
		CustomerID:     req.CustomerID,
		ServiceID:      req.ServiceID,
		Status:         status,
		TotalMinor:     req.TotalMinor,
		IdempotencyKey: req.IdempotencyKey,
		ExpiresAt:      expiresAt,
		Metadata:       req.RequestMeta,
	}
	items := make([]model.BookingItem, 0, len(plan))
	for _, p := range plan {
		items = append(items, model.BookingItem{
			TimeslotID:       p.TimeslotID,
			ResourceID:       p.ResourceID,
			ReservedCapacity: p.Capacity,
		})
	}
	if len(items) > 0 {
		booking.Start, booking.End = plan[0].Start, plan[0].End
	}

	err = c.saga.Run(ctx, req.Tenant, "booking.confirm", []saga.Step{
		{
			Name: "reserveCapacity",
			Execute: func(ctx context.Context) (map[string]any, error) {
				if err := c.confirmWithRetry(ctx, plan, booking, items); err != nil {
					return nil, err
				}
				return map[string]any{"bookingId": booking.ID}, nil
			},
			Compensate: func(ctx context.Context, _ map[string]any) error {
				return c.releasePlan(ctx, plan)
			},
		},
	})
	if err != nil {
		c.failIdempotency(ctx, req.Tenant, req.IdempotencyKey, err)
		return nil, err
	}

	resp = &model.ConfirmResponse{
		BookingID:  booking.ID,
		Status:     booking.Status,
		TotalMinor: booking.TotalMinor,
		ExpiresAt:  booking.ExpiresAt,
	}

	if req.IdempotencyKey != "" {
		responseMeta := encodeJSONMap(resp)
		if err := c.idempotency.Complete(ctx, req.Tenant, req.IdempotencyKey, responseMeta); err != nil {
			// A crash here leaves the record processing; the sweeper and
			// background reconciliation (see idempotency.SweepStale) are
			// what make the next request with the same key safe, exactly
			// as documented for this window in §4.G.
			log.Printf("booking: failed to mark idempotency key %s completed: %v", req.IdempotencyKey, err)
		} else if c.idemCache != nil {
			c.idemCache.Set(ctx, req.Tenant, req.IdempotencyKey, string(model.IdempotencyCompleted), responseMeta)
		}
	}

	return resp, nil
}

// confirmWithRetry runs the reservation+persist transaction, making at most
// maxVersionRetries (3) attempts when a reservation reports a version
// mismatch, each retry using the current version the mismatch reported.
func (c *Coordinator) confirmWithRetry(ctx context.Context, plan []lockPlanItem, booking *model.Booking, items []model.BookingItem) error {
	const maxVersionRetries = 3
	for attempt := 0; attempt < maxVersionRetries; attempt++ {
		retryNeeded := false

		err := c.gw.WithTx(ctx, func(tx *gorm.DB) error {
			for i := range plan {
				outcome, err := c.inventory.Reserve(ctx, tx, plan[i].TimeslotID, plan[i].Capacity, plan[i].Version)
				if err != nil {
					return model.WrapAppError(model.ErrInternal, "failed to reserve capacity", err)
				}
				switch outcome.Kind {
				case model.OutcomeOK:
					continue
				case model.OutcomeVersionMismatch:
					plan[i].Version = outcome.CurrentVersion
					retryNeeded = true
					return errVersionRetry
				case model.OutcomeCapacityExceeded:
					return model.NewAppError(model.ErrCapacityExceeded, "requested capacity is no longer available")
				case model.OutcomeSlotNotFound:
					return model.NewAppError(model.ErrResourceUnavailable, "timeslot not found")
				default:
					return model.NewAppError(model.ErrResourceUnavailable, string(outcome.Kind))
				}
			}

			if err := c.bookings.Create(ctx, tx, booking, items); err != nil {
				return model.WrapAppError(model.ErrInternal, "failed to persist booking", err)
			}

			event := &model.OutboxEvent{
				Tenant:        booking.Tenant,
				Type:          model.EventBookingCreated,
				AggregateType: "booking",
				AggregateID:   booking.ID,
				Payload: encodeJSONMap(model.BookingCreatedPayload{
					BookingID:  booking.ID,
					Tenant:     booking.Tenant,
					CustomerID: booking.CustomerID,
					ServiceID:  booking.ServiceID,
					Start:      booking.Start,
					End:        booking.End,
					TotalMinor: booking.TotalMinor,
				}),
			}
			if err := c.outbox.Append(ctx, tx, event); err != nil {
				return model.WrapAppError(model.ErrInternal, "failed to append outbox event", err)
			}

			return nil
		})

		if err == errVersionRetry {
			if retryNeeded {
				continue
			}
		}
		return err
	}
	return model.NewAppError(model.ErrCapacityExceeded, "exhausted retries resolving concurrent reservation conflicts")
}

var errVersionRetry = fmt.Errorf("version mismatch, retry with refreshed version")

// releasePlan is the reserveCapacity step's compensation: undo every
// reservation the step made. With a single-step confirm saga this never
// fires: the saga compensates a step only when a step after it fails. It exists
// so the engine has a real compensation to run rather than a no-op.
func (c *Coordinator) releasePlan(ctx context.Context, plan []lockPlanItem) error {
	return c.gw.WithTx(ctx, func(tx *gorm.DB) error {
		for _, p := range plan {
			if err := c.inventory.Release(ctx, tx, p.TimeslotID, p.Capacity); err != nil {
				return model.WrapAppError(model.ErrInternal, "failed to compensate reservation", err)
			}
		}
		return nil
	})
}

// checkIdempotency implements the §4.E check protocol as a dual-tier read:
// a fast-cache hit on an already-completed record answers without touching
// Postgres, and singleflight collapses concurrent callers sharing the same
// (tenant, key, fingerprint) onto a single durable-store round trip instead
// of racing each other through Begin.
func (c *Coordinator) checkIdempotency(ctx context.Context, tenant, key, fingerprint string) (model.CheckOutcome, error) {
	if key == "" {
		return model.CheckOutcome{Proceed: true}, nil
	}

	if c.idemCache != nil {
		if status, response, ok := c.idemCache.Get(ctx, tenant, key); ok && status == string(model.IdempotencyCompleted) {
			return model.CheckOutcome{Proceed: false, CachedResponse: model.JSONMap(response)}, nil
		}
	}

	sfKey := tenant + ":" + key + ":" + fingerprint
	v, err, _ := c.sf.Do(sfKey, func() (interface{}, error) {
		ttl := time.Duration(c.idemCfg.DefaultExpirationMinutes) * time.Minute
		rec, created, err := c.idempotency.Begin(ctx, tenant, key, fingerprint, ttl)
		if err != nil {
			return model.CheckOutcome{}, model.WrapAppError(model.ErrInternal, "failed to check idempotency", err)
		}
		if created {
			return model.CheckOutcome{Proceed: true}, nil
		}
		outcome := interpretExisting(rec, fingerprint, c.clock.Now())
		if outcome.CachedResponse != nil && c.idemCache != nil {
			c.idemCache.Set(ctx, tenant, key, string(model.IdempotencyCompleted), outcome.CachedResponse)
		}
		return outcome, nil
	})
	if err != nil {
		return model.CheckOutcome{}, err
	}
	return v.(model.CheckOutcome), nil
}

// interpretExisting implements the §4.E check() steps 2-6 against an
// already-existing record.
func interpretExisting(rec *model.IdempotencyRecord, fingerprint string, now time.Time) model.CheckOutcome {
	if now.After(rec.ExpiresAt) {
		return model.CheckOutcome{Proceed: true, Conflict: model.ConflictKeyExpired}
	}
	if rec.Fingerprint != fingerprint {
		return model.CheckOutcome{Proceed: false, Conflict: model.ConflictFingerprintMismatch}
	}
	switch rec.Status {
	case model.IdempotencyCompleted:
		return model.CheckOutcome{Proceed: false, CachedResponse: rec.ResponseMeta}
	case model.IdempotencyPending, model.IdempotencyProcessing:
		return model.CheckOutcome{Proceed: false, ShouldWait: true, WaitMs: 100}
	case model.IdempotencyFailed:
		if rec.RetryCount < rec.MaxRetries {
			return model.CheckOutcome{Proceed: true}
		}
		return model.CheckOutcome{Proceed: false, Conflict: model.ConflictInvalidState}
	default:
		return model.CheckOutcome{Proceed: false, Conflict: model.ConflictInvalidState}
	}
}

func (c *Coordinator) failIdempotency(ctx context.Context, tenant, key string, cause any) {
	if key == "" {
		return
	}
	if err := c.idempotency.Fail(ctx, tenant, key, encodeJSONMap(cause)); err != nil {
		log.Printf("booking: failed to mark idempotency key %s failed: %v", key, err)
	}
}
