package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/arunvm123/reservationengine/model"
	"github.com/arunvm123/reservationengine/repository"
)

// Renderer resolves a NotificationTemplate and substitutes a dispatch's
// Variables into it, falling back to a built-in template when the tenant
// has not configured one — grounded on the notification-service's
// GenerateBookingConfirmationEmail/GenerateBookingFailedEmail, which built
// subject/body by string concatenation rather than a template engine.
type Renderer struct {
	store repository.NotificationStore
}

func NewRenderer(store repository.NotificationStore) *Renderer {
	return &Renderer{store: store}
}

func (r *Renderer) Render(ctx context.Context, d model.NotificationDispatch) (Rendered, error) {
	tmpl, err := r.store.GetTemplate(ctx, d.Tenant, d.TemplateType, "default")
	if err != nil || tmpl == nil {
		return fallbackTemplate(d), nil
	}
	return Rendered{
		Subject: substitute(tmpl.Subject, d.Variables),
		Body:    substitute(tmpl.Body, d.Variables),
	}, nil
}

// substitute replaces {{key}} placeholders with their string value, the
// same bracket convention used by the pack's other templating examples.
func substitute(s string, vars model.JSONMap) string {
	for k, v := range vars {
		s = strings.ReplaceAll(s, "{{"+k+"}}", fmt.Sprintf("%v", v))
	}
	return s
}

func fallbackTemplate(d model.NotificationDispatch) Rendered {
	switch d.TemplateType {
	case "BOOKING_CONFIRMATION":
		return Rendered{
			Subject: "Your booking is confirmed",
			Body: "Your booking " + fmt.Sprintf("%v", d.Variables["bookingId"]) +
				" is confirmed for " + fmt.Sprintf("%v", d.Variables["start"]) +
				" to " + fmt.Sprintf("%v", d.Variables["end"]) + ".",
		}
	case "BOOKING_CANCELLED":
		return Rendered{
			Subject: "Your booking has been cancelled",
			Body: "Your booking " + fmt.Sprintf("%v", d.Variables["bookingId"]) +
				" has been cancelled. Reason: " + fmt.Sprintf("%v", d.Variables["reason"]) +
				". Refund: " + fmt.Sprintf("%v", d.Variables["refundAmount"]) + ".",
		}
	default:
		return Rendered{
			Subject: "Notification",
			Body:    fmt.Sprintf("%v", d.Variables),
		}
	}
}
