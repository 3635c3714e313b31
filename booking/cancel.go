package booking

import (
	"context"
	"log"

	"github.com/arunvm123/reservationengine/metrics"
	"github.com/arunvm123/reservationengine/model"
	"github.com/arunvm123/reservationengine/telemetry"
	"gorm.io/gorm"
)

// Cancel implements the §4.G cancellation path: policy evaluator, then a
// transactional release of every item's capacity, status transition to
// cancelled, and an outbox BOOKING_CANCELLED event carrying the computed
// refund.
func (c *Coordinator) Cancel(ctx context.Context, req model.CancelRequest) (resp *model.CancelResponse, err error) {
	ctx, span := telemetry.StartSpan(ctx, "booking.Cancel", telemetry.Tenant(req.Tenant), telemetry.BookingID(req.BookingID))
	defer span.End()
	defer func() {
		outcome := "cancelled"
		if err != nil {
			outcome = "error"
		}
		metrics.BookingCancelsTotal.WithLabelValues(req.Tenant, outcome).Inc()
	}()

	b, items, err := c.bookings.GetByID(ctx, req.Tenant, req.BookingID)
	if err != nil {
		return nil, model.NewAppError(model.ErrValidation, "booking not found")
	}
	if b.Status != model.BookingStatusConfirmed && b.Status != model.BookingStatusTentative {
		return nil, model.NewAppError(model.ErrValidation, "booking is not in a cancellable state")
	}

	eval := c.cancellation.Evaluate(b, req.Reason, req.RequestedAt)
	if !eval.Allowed {
		return nil, model.NewAppError(model.ErrValidation, eval.DenyReason)
	}

	fromStatus := b.Status
	err = c.gw.WithTx(ctx, func(tx *gorm.DB) error {
		for _, item := range items {
			if err := c.inventory.Release(ctx, tx, item.TimeslotID, item.ReservedCapacity); err != nil {
				return model.WrapAppError(model.ErrInternal, "failed to release capacity", err)
			}
		}

		change := model.BookingChange{Reason: string(req.Reason), Actor: "customer"}
		if err := c.bookings.UpdateStatus(ctx, tx, b.ID, fromStatus, model.BookingStatusCancelled, change); err != nil {
			return model.WrapAppError(model.ErrInternal, "failed to update booking status", err)
		}

		event := &model.OutboxEvent{
			Tenant:        b.Tenant,
			Type:          model.EventBookingCancelled,
			AggregateType: "booking",
			AggregateID:   b.ID,
			Payload: encodeJSONMap(model.BookingCancelledPayload{
				BookingID:    b.ID,
				Tenant:       b.Tenant,
				CustomerID:   b.CustomerID,
				RefundAmount: eval.RefundMinor,
				Reason:       string(req.Reason),
			}),
		}
		if err := c.outbox.Append(ctx, tx, event); err != nil {
			return model.WrapAppError(model.ErrInternal, "failed to append outbox event", err)
		}

		if eval.RefundMinor > 0 {
			refundEvent := &model.OutboxEvent{
				Tenant:        b.Tenant,
				Type:          model.EventPaymentRefundRequested,
				AggregateType: "booking",
				AggregateID:   b.ID,
				Payload: encodeJSONMap(map[string]any{
					"bookingId":    b.ID,
					"refundMinor":  eval.RefundMinor,
					"penaltyMinor": eval.PenaltyMinor,
				}),
			}
			if err := c.outbox.Append(ctx, tx, refundEvent); err != nil {
				return model.WrapAppError(model.ErrInternal, "failed to append refund outbox event", err)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	resp = &model.CancelResponse{
		BookingID:     b.ID,
		Status:        model.BookingStatusCancelled,
		PenaltyAmount: eval.PenaltyMinor,
		RefundAmount:  eval.RefundMinor,
	}
	return resp, nil
}

// ConfirmTentative transitions a tentative booking to confirmed once a
// payment-confirmation webhook (§4.J) reports success, honoring
// tentative.autoConfirmOnPayment.
func (c *Coordinator) ConfirmTentative(ctx context.Context, tenant, bookingID string) error {
	b, _, err := c.bookings.GetByID(ctx, tenant, bookingID)
	if err != nil {
		return model.NewAppError(model.ErrValidation, "booking not found")
	}
	if b.Status != model.BookingStatusTentative {
		log.Printf("booking: ConfirmTentative called on booking %s in status %s, ignoring", bookingID, b.Status)
		return nil
	}
	return c.gw.WithTx(ctx, func(tx *gorm.DB) error {
		change := model.BookingChange{Reason: "payment confirmed", Actor: "webhook"}
		return c.bookings.UpdateStatus(ctx, tx, bookingID, model.BookingStatusTentative, model.BookingStatusConfirmed, change)
	})
}
