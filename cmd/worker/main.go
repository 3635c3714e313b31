package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arunvm123/reservationengine/booking"
	"github.com/arunvm123/reservationengine/clock"
	"github.com/arunvm123/reservationengine/config"
	"github.com/arunvm123/reservationengine/model"
	"github.com/arunvm123/reservationengine/notify"
	"github.com/arunvm123/reservationengine/outbox"
	"github.com/arunvm123/reservationengine/policy"
	"github.com/arunvm123/reservationengine/repository/postgres"
	"github.com/arunvm123/reservationengine/saga"
	kafka "github.com/segmentio/kafka-go"
	"golang.org/x/sync/errgroup"
)

// main runs every background loop the HTTP process does not: the outbox
// relay, the tentative-hold sweeper, the per-channel notification
// dispatchers, the saga reconciliation sweep, the idempotency-record
// sweep, and the timeslot retention sweep. Kept in the teacher's
// worker-entrypoint shape (load config, wire repositories, start one
// goroutine per loop, wait on a signal channel), generalized from the
// single Kafka booking-processor consumer to this repo's six independent
// loops.
func main() {
	fmt.Println("Starting reservation engine worker")

	cfg, err := config.Initialise("config.yaml", false)
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	gw, err := postgres.NewGateway(cfg.Database, cfg.Deadlock)
	if err != nil {
		log.Fatal("Failed to initialize database gateway:", err)
	}
	defer gw.Close()

	bookingRepo := postgres.NewBookingRepository(gw.DB())
	inventoryRepo := postgres.NewInventoryRepository(gw.DB())
	catalogRepo := postgres.NewCatalogRepository(gw.DB())
	idempotencyRepo := postgres.NewIdempotencyRepository(gw.DB(), bookingRepo)
	outboxRepo := postgres.NewOutboxRepository(gw.DB())
	notificationRepo := postgres.NewNotificationRepository(gw.DB())
	sagaRepo := postgres.NewSagaRepository(gw.DB())

	c := clock.Real{}
	validator := policy.NewValidator(cfg.Booking, c)
	cancellation := policy.NewCancellationEvaluator(cfg.Cancellation)
	confirmSaga := saga.NewCoordinator(sagaRepo, gw, c)
	coordinator := booking.NewCoordinator(gw, bookingRepo, inventoryRepo, idempotencyRepo, outboxRepo,
		confirmSaga, validator, cancellation, c, cfg.Tentative, cfg.Idempotency, nil)

	kafkaWriter := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Kafka.Brokers...),
		Topic:    cfg.Kafka.NotificationTopic,
		Balancer: &kafka.LeastBytes{},
	}
	defer kafkaWriter.Close()

	relay := outbox.NewRelay(outboxRepo, notificationRepo, gw, outbox.DefaultTranslator, kafkaWriter,
		"worker-1", cfg.Cleanup.BatchSize, 2*time.Second)

	alerter := notify.NewSlackAlerter(cfg.Slack)
	renderer := notify.NewRenderer(notificationRepo)
	channels := map[model.Channel]*notify.ChannelDispatcher{
		model.ChannelEmail:   notify.NewChannelDispatcher(model.ChannelEmail, notify.NewLogSender(model.ChannelEmail, c), renderer, notificationRepo, c, cfg.Notification.Email, alerter),
		model.ChannelSMS:     notify.NewChannelDispatcher(model.ChannelSMS, notify.NewLogSender(model.ChannelSMS, c), renderer, notificationRepo, c, cfg.Notification.SMS, alerter),
		model.ChannelPush:    notify.NewChannelDispatcher(model.ChannelPush, notify.NewLogSender(model.ChannelPush, c), renderer, notificationRepo, c, cfg.Notification.Push, alerter),
		model.ChannelLine:    notify.NewChannelDispatcher(model.ChannelLine, notify.NewLogSender(model.ChannelLine, c), renderer, notificationRepo, c, cfg.Notification.Line, alerter),
		model.ChannelWebhook: notify.NewChannelDispatcher(model.ChannelWebhook, notify.NewWebhookSender(c), renderer, notificationRepo, c, cfg.Notification.Webhook, alerter),
	}
	dispatcher := notify.NewDispatcher(channels, 2*time.Second, 50)

	txManager := saga.NewTransactionManager(sagaRepo, gw, c)

	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("Received shutdown signal, stopping worker...")
		cancel()
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		relay.Run(gctx)
		return nil
	})
	g.Go(func() error {
		dispatcher.Run(gctx)
		return nil
	})
	g.Go(func() error {
		coordinator.StartTentativeSweeper(gctx, time.Duration(cfg.Cleanup.IntervalMinutes)*time.Minute, cfg.Cleanup.BatchSize)
		return nil
	})
	g.Go(func() error {
		runIdempotencySweep(gctx, idempotencyRepo, cfg)
		return nil
	})
	g.Go(func() error {
		runSagaReconciliation(gctx, txManager)
		return nil
	})
	g.Go(func() error {
		runRetentionSweep(gctx, catalogRepo, inventoryRepo, cfg)
		return nil
	})

	fmt.Println("Worker loops started")
	if err := g.Wait(); err != nil {
		log.Printf("worker: loop exited with error: %v", err)
	}
	fmt.Println("Worker stopped gracefully")
}

func runIdempotencySweep(ctx context.Context, store interface {
	SweepStale(ctx context.Context, staleBefore, expireBefore time.Time, batchSize int) (int, int, error)
}, cfg *config.Config) {
	interval := time.Duration(cfg.Idempotency.SweepIntervalSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			staleBefore := now.Add(-time.Duration(cfg.Idempotency.StaleProcessingMinutes) * time.Minute)
			reclaimed, expired, err := store.SweepStale(ctx, staleBefore, now, cfg.Idempotency.SweepBatchSize)
			if err != nil {
				log.Printf("idempotency sweep: %v", err)
				continue
			}
			if reclaimed > 0 || expired > 0 {
				log.Printf("idempotency sweep: reclaimed=%d expired=%d", reclaimed, expired)
			}
		}
	}
}

// runRetentionSweep retires timeslot rows past cfg.Cleanup.RetentionDays,
// tenant by tenant, the cleanupExpired half of the inventory store that
// reseeding leaves behind once a window has fully elapsed.
func runRetentionSweep(ctx context.Context, tenants interface {
	ListTenants(ctx context.Context) ([]string, error)
}, inventory interface {
	CleanupExpired(ctx context.Context, tenant string, before time.Time, batchSize int) (int, error)
}, cfg *config.Config) {
	interval := time.Duration(cfg.Cleanup.IntervalMinutes) * time.Minute
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			before := now.AddDate(0, 0, -cfg.Cleanup.RetentionDays)
			ids, err := tenants.ListTenants(ctx)
			if err != nil {
				log.Printf("retention sweep: failed to list tenants: %v", err)
				continue
			}
			total := 0
			for _, tenant := range ids {
				n, err := inventory.CleanupExpired(ctx, tenant, before, cfg.Cleanup.BatchSize)
				if err != nil {
					log.Printf("retention sweep: tenant %s: %v", tenant, err)
					continue
				}
				total += n
			}
			if total > 0 {
				log.Printf("retention sweep: deleted %d expired timeslots", total)
			}
		}
	}
}

func runSagaReconciliation(ctx context.Context, m *saga.TransactionManager) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := m.ReconcileStuck(ctx, 50)
			if err != nil {
				log.Printf("saga reconciliation: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("saga reconciliation: reconciled %d stuck transactions", n)
			}
		}
	}
}
