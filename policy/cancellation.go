package policy

import (
	"time"

	"github.com/arunvm123/reservationengine/config"
	"github.com/arunvm123/reservationengine/model"
)

// CancellationEvaluator implements the §4.D cancellation evaluator: given a
// booking, a reason, and the moment of the request, decides whether the
// cancellation is allowed and how much of the total is refunded.
type CancellationEvaluator struct {
	cfg config.Cancellation
}

func NewCancellationEvaluator(cfg config.Cancellation) *CancellationEvaluator {
	return &CancellationEvaluator{cfg: cfg}
}

// Evaluation is the outcome of evaluating one cancellation request.
type Evaluation struct {
	Allowed       bool
	DenyReason    string
	RefundMinor   int64
	PenaltyMinor  int64
}

func isForceMajeure(reason model.CancellationReason) bool {
	return reason == model.ReasonEmergency || reason == model.ReasonBusinessClosure
}

func (e *CancellationEvaluator) Evaluate(booking *model.Booking, reason model.CancellationReason, requestedAt time.Time) Evaluation {
	hoursUntilStart := booking.Start.Sub(requestedAt).Hours()

	if hoursUntilStart < float64(e.cfg.AllowedUntilHours) && !isForceMajeure(reason) {
		return Evaluation{
			Allowed:    false,
			DenyReason: "cancellation window has passed",
		}
	}

	if isForceMajeure(reason) {
		return Evaluation{Allowed: true, RefundMinor: booking.TotalMinor, PenaltyMinor: 0}
	}

	penalty := int64(float64(booking.TotalMinor) * e.cfg.PenaltyPercentage / 100.0)
	refund := booking.TotalMinor - penalty
	if refund < 0 {
		refund = 0
	}
	return Evaluation{Allowed: true, RefundMinor: refund, PenaltyMinor: penalty}
}
