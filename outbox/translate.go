package outbox

import (
	"encoding/json"
	"fmt"

	"github.com/arunvm123/reservationengine/model"
)

// DefaultTranslator maps the booking coordinator's outbox event types to
// notification dispatches, grounded on the notification-service's
// NotificationRequest/NotificationBookingData shape — one EMAIL dispatch
// per event here in place of that service's direct Kafka consumer, since
// this repo's relay already plays that role.
func DefaultTranslator(event model.OutboxEvent) ([]model.NotificationDispatch, error) {
	switch event.Type {
	case model.EventBookingCreated:
		var p model.BookingCreatedPayload
		if err := decodePayload(event.Payload, &p); err != nil {
			return nil, err
		}
		if p.CustomerEmail == "" {
			return nil, nil
		}
		return []model.NotificationDispatch{{
			OutboxEventID: &event.ID,
			Tenant:        event.Tenant,
			Channel:       model.ChannelEmail,
			Recipient:     p.CustomerEmail,
			TemplateType:  "BOOKING_CONFIRMATION",
			Priority:      model.PriorityHigh,
			Variables: model.JSONMap{
				"bookingId": p.BookingID,
				"start":     p.Start,
				"end":       p.End,
			},
		}}, nil

	case model.EventBookingCancelled:
		var p model.BookingCancelledPayload
		if err := decodePayload(event.Payload, &p); err != nil {
			return nil, err
		}
		if p.CustomerEmail == "" {
			return nil, nil
		}
		return []model.NotificationDispatch{{
			OutboxEventID: &event.ID,
			Tenant:        event.Tenant,
			Channel:       model.ChannelEmail,
			Recipient:     p.CustomerEmail,
			TemplateType:  "BOOKING_CANCELLED",
			Priority:      model.PriorityNormal,
			Variables: model.JSONMap{
				"bookingId":    p.BookingID,
				"refundAmount": p.RefundAmount,
				"reason":       p.Reason,
			},
		}}, nil

	case model.EventPaymentRefundRequested, model.EventTentativeExpired:
		// These events drive payment/saga advancement rather than a
		// customer-facing notification; the relay still marks them
		// published with zero dispatches so they do not retry forever.
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown outbox event type %q", event.Type)
	}
}

func decodePayload(m model.JSONMap, out any) error {
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}
