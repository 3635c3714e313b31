package policy

import (
	"testing"
	"time"

	"github.com/arunvm123/reservationengine/config"
	"github.com/arunvm123/reservationengine/model"
	"github.com/stretchr/testify/assert"
)

func testCancellationConfig() config.Cancellation {
	return config.Cancellation{
		AllowedUntilHours: 24,
		PenaltyPercentage: 10,
		RefundPolicy:      "PARTIAL",
	}
}

func TestEvaluateDeniesWithinCancellationWindow(t *testing.T) {
	e := NewCancellationEvaluator(testCancellationConfig())
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	b := &model.Booking{Start: start, TotalMinor: 10000}

	eval := e.Evaluate(b, model.ReasonCustomerRequest, start.Add(-time.Hour))

	assert.False(t, eval.Allowed)
	assert.NotEmpty(t, eval.DenyReason)
}

func TestEvaluateAllowsEmergencyInsideWindow(t *testing.T) {
	e := NewCancellationEvaluator(testCancellationConfig())
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	b := &model.Booking{Start: start, TotalMinor: 10000}

	eval := e.Evaluate(b, model.ReasonEmergency, start.Add(-time.Hour))

	assert.True(t, eval.Allowed)
	assert.Equal(t, int64(0), eval.PenaltyMinor)
	assert.Equal(t, int64(10000), eval.RefundMinor)
}

func TestEvaluateAppliesPenaltyOutsideWindow(t *testing.T) {
	e := NewCancellationEvaluator(testCancellationConfig())
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	b := &model.Booking{Start: start, TotalMinor: 10000}

	eval := e.Evaluate(b, model.ReasonCustomerRequest, start.Add(-48*time.Hour))

	assert.True(t, eval.Allowed)
	assert.Equal(t, int64(1000), eval.PenaltyMinor)
	assert.Equal(t, int64(9000), eval.RefundMinor)
}
