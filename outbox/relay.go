package outbox

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/arunvm123/reservationengine/metrics"
	"github.com/arunvm123/reservationengine/model"
	"github.com/arunvm123/reservationengine/repository"
	kafka "github.com/segmentio/kafka-go"
	"gorm.io/gorm"
)

// maxAttempts before an outbox row is deadlettered (§4.I step 3).
const maxAttempts = 8

// Translator turns one claimed OutboxEvent into zero or more
// NotificationDispatch rows, the "translate event -> dispatch rows" half
// of §4.I step 2. Kept as a function value rather than a fixed switch so
// new event types can be wired in without touching the relay loop.
type Translator func(event model.OutboxEvent) ([]model.NotificationDispatch, error)

// Relay is the outbox claim loop, grounded on the baechuer outbox worker's
// StartOutboxWorker/processOutboxBatch structure — the claim-batch /
// translate / mark-published cycle is identical, adapted from publishing
// onto RabbitMQ to fanning out into this repo's own NotificationDispatch
// table instead (§4.H says "no direct publish path exists — §4.I is the
// only reader/updater"). When a Kafka writer is configured it also mirrors
// every claimed event onto the notification topic, the same
// submit-to-Kafka hop the teacher's router.go wires for booking
// submissions, generalized here to the outbox's publish step so other
// services can subscribe to booking lifecycle events without querying
// this service's database directly.
type Relay struct {
	store        repository.OutboxStore
	notify       repository.NotificationStore
	gw           repository.Gateway
	translate    Translator
	kafkaWriter  *kafka.Writer
	workerID     string
	batchSize    int
	pollInterval time.Duration
}

func NewRelay(store repository.OutboxStore, notify repository.NotificationStore, gw repository.Gateway, translate Translator, kafkaWriter *kafka.Writer, workerID string, batchSize int, pollInterval time.Duration) *Relay {
	return &Relay{
		store: store, notify: notify, gw: gw, translate: translate, kafkaWriter: kafkaWriter,
		workerID: workerID, batchSize: batchSize, pollInterval: pollInterval,
	}
}

// Run claims and processes batches until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.processBatch(ctx); err != nil {
				log.Printf("outbox relay %s: %v", r.workerID, err)
			}
		}
	}
}

func (r *Relay) processBatch(ctx context.Context) error {
	batch, err := r.store.ClaimBatch(ctx, r.workerID, r.batchSize)
	if err != nil {
		return err
	}
	for _, event := range batch {
		r.processOne(ctx, event)
	}
	return nil
}

func (r *Relay) processOne(ctx context.Context, event model.OutboxEvent) {
	dispatches, err := r.translate(event)
	if err != nil {
		r.fail(ctx, event, err)
		return
	}

	if len(dispatches) > 0 {
		err = r.gw.WithTx(ctx, func(tx *gorm.DB) error {
			return r.notify.CreateDispatches(ctx, tx, dispatches)
		})
		if err != nil {
			r.fail(ctx, event, err)
			return
		}
	}

	if markErr := r.store.MarkPublished(ctx, event.ID); markErr != nil {
		log.Printf("outbox relay %s: failed to mark event %s published: %v", r.workerID, event.ID, markErr)
		return
	}
	metrics.OutboxRelayLagSeconds.Observe(time.Since(event.CreatedAt).Seconds())
	r.mirrorToKafka(ctx, event)
}

// mirrorToKafka is best-effort: a failed publish here never blocks the
// outbox from being marked published, since the row-backed
// NotificationDispatch path is this service's source of truth.
func (r *Relay) mirrorToKafka(ctx context.Context, event model.OutboxEvent) {
	if r.kafkaWriter == nil {
		return
	}
	body, err := json.Marshal(event)
	if err != nil {
		log.Printf("outbox relay %s: failed to marshal event %s for kafka: %v", r.workerID, event.ID, err)
		return
	}
	msg := kafka.Message{Key: []byte(event.AggregateID), Value: body}
	if err := r.kafkaWriter.WriteMessages(ctx, msg); err != nil {
		log.Printf("outbox relay %s: failed to publish event %s to kafka: %v", r.workerID, event.ID, err)
	}
}

func (r *Relay) fail(ctx context.Context, event model.OutboxEvent, cause error) {
	if event.Attempts+1 >= maxAttempts {
		if err := r.store.MarkDeadletter(ctx, event.ID, cause); err != nil {
			log.Printf("outbox relay %s: failed to deadletter event %s: %v", r.workerID, event.ID, err)
		}
		return
	}
	if err := r.store.MarkFailed(ctx, event.ID, cause, time.Time{}); err != nil {
		log.Printf("outbox relay %s: failed to mark event %s failed: %v", r.workerID, event.ID, err)
	}
}
