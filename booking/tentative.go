package booking

import (
	"context"
	"log"
	"time"

	"github.com/arunvm123/reservationengine/model"
	"gorm.io/gorm"
)

// SweepExpiredTentative implements the §4.G background task: every
// cleanup.intervalMinutes, finds tentative bookings past their expiresAt,
// re-opens their capacity, and transitions them to
// cancelled(reason=PAYMENT_FAILED).
func (c *Coordinator) SweepExpiredTentative(ctx context.Context, batchSize int) (int, error) {
	expired, err := c.bookings.ListExpiringTentative(ctx, c.clock.Now(), batchSize)
	if err != nil {
		return 0, model.WrapAppError(model.ErrInternal, "failed to list expiring tentative bookings", err)
	}

	swept := 0
	for _, b := range expired {
		_, items, err := c.bookings.GetByID(ctx, b.Tenant, b.ID)
		if err != nil {
			log.Printf("tentative sweep: failed to load items for booking %s: %v", b.ID, err)
			continue
		}
		err = c.gw.WithTx(ctx, func(tx *gorm.DB) error {
			for _, item := range items {
				if err := c.inventory.Release(ctx, tx, item.TimeslotID, item.ReservedCapacity); err != nil {
					return err
				}
			}
			change := model.BookingChange{Reason: string(model.ReasonPaymentFailed), Actor: "system"}
			return c.bookings.UpdateStatus(ctx, tx, b.ID, model.BookingStatusTentative, model.BookingStatusCancelled, change)
		})
		if err != nil {
			log.Printf("tentative sweep: failed to cancel expired booking %s: %v", b.ID, err)
			continue
		}
		swept++
	}
	return swept, nil
}

// StartTentativeSweeper runs SweepExpiredTentative on a ticker until ctx is
// cancelled, grounded on the teacher's cmd/worker graceful-shutdown loop
// shape (signal.Notify + context cancellation).
func (c *Coordinator) StartTentativeSweeper(ctx context.Context, interval time.Duration, batchSize int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := c.SweepExpiredTentative(ctx, batchSize)
			if err != nil {
				log.Printf("tentative sweeper: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("tentative sweeper: cancelled %d expired tentative bookings", n)
			}
		}
	}
}
