package notify

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arunvm123/reservationengine/clock"
	"github.com/arunvm123/reservationengine/config"
	"github.com/arunvm123/reservationengine/metrics"
	"github.com/arunvm123/reservationengine/model"
	"github.com/arunvm123/reservationengine/repository"
	"golang.org/x/time/rate"
)

// ChannelDispatcher claims and delivers NotificationDispatch rows for one
// channel, grounded on worker/booking_processor.go's BookingProcessor /
// BookingWorker job-channel pool: a fixed number of workers register an
// unbuffered job channel into a shared pool, and the claim loop hands each
// claimed row to whichever worker is free, in place of that processor's
// Kafka-message dispatch. A token-bucket limiter (x/time/rate) throttles
// claims to the channel's configured sends-per-minute, the equivalent of
// its Kafka consumer's natural backpressure.
type ChannelDispatcher struct {
	channel  model.Channel
	sender   Sender
	renderer *Renderer
	store    repository.NotificationStore
	clock    clock.Clock
	cfg      config.ChannelConfig
	limiter  *rate.Limiter
	alerter  *SlackAlerter

	workerPool chan chan model.NotificationDispatch
	workers    []*dispatchWorker

	processed int64
	active    int64
}

type dispatchWorker struct {
	id         int
	d          *ChannelDispatcher
	jobChannel chan model.NotificationDispatch
	pool       chan chan model.NotificationDispatch
	quit       chan struct{}
}

func NewChannelDispatcher(channel model.Channel, sender Sender, renderer *Renderer, store repository.NotificationStore, c clock.Clock, cfg config.ChannelConfig, alerter *SlackAlerter) *ChannelDispatcher {
	d := &ChannelDispatcher{
		channel:    channel,
		sender:     sender,
		renderer:   renderer,
		store:      store,
		clock:      c,
		cfg:        cfg,
		limiter:    rate.NewLimiter(rate.Limit(float64(cfg.RateLimitPerMinute)/60.0), cfg.RateLimitPerMinute),
		alerter:    alerter,
		workerPool: make(chan chan model.NotificationDispatch, cfg.MaxConcurrent),
		workers:    make([]*dispatchWorker, cfg.MaxConcurrent),
	}
	for i := 0; i < cfg.MaxConcurrent; i++ {
		d.workers[i] = &dispatchWorker{
			id:         i,
			d:          d,
			jobChannel: make(chan model.NotificationDispatch),
			pool:       d.workerPool,
			quit:       make(chan struct{}),
		}
	}
	return d
}

// Run polls for claimable rows every pollInterval and fans them out to the
// worker pool until ctx is cancelled.
func (d *ChannelDispatcher) Run(ctx context.Context, pollInterval time.Duration, batchSize int) {
	for _, w := range d.workers {
		w.start()
	}
	defer d.shutdown()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.pollOnce(ctx, batchSize)
		}
	}
}

func (d *ChannelDispatcher) pollOnce(ctx context.Context, batchSize int) {
	batch, err := d.store.ClaimBatch(ctx, d.channel, batchSize)
	if err != nil {
		log.Printf("notify[%s]: claim batch: %v", d.channel, err)
		return
	}
	for _, dispatch := range batch {
		if err := d.limiter.Wait(ctx); err != nil {
			return
		}
		select {
		case jobChannel := <-d.workerPool:
			select {
			case jobChannel <- dispatch:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (w *dispatchWorker) start() {
	go func() {
		for {
			w.pool <- w.jobChannel
			select {
			case job := <-w.jobChannel:
				atomic.AddInt64(&w.d.active, 1)
				w.d.process(context.Background(), job)
				atomic.AddInt64(&w.d.processed, 1)
				atomic.AddInt64(&w.d.active, -1)
			case <-w.quit:
				return
			}
		}
	}()
}

func (w *dispatchWorker) stop() { close(w.quit) }

func (d *ChannelDispatcher) shutdown() {
	for _, w := range d.workers {
		w.stop()
	}
}

// process renders and sends one dispatch, then persists the outcome —
// §4.I step 2's "check preferences -> render -> send -> interpret result".
func (d *ChannelDispatcher) process(ctx context.Context, dispatch model.NotificationDispatch) {
	if blocked := d.quietHoursBlock(ctx, dispatch); blocked {
		// Quiet hours defer the send: the row is marked failed (which
		// counts as an attempt) with a retry time 15 minutes out, the
		// same store call a transient provider error uses.
		_ = d.store.MarkFailed(ctx, dispatch.ID, "deferred: recipient quiet hours", d.clock.Now().Add(15*time.Minute))
		return
	}

	rendered, err := d.renderer.Render(ctx, dispatch)
	if err != nil {
		d.fail(ctx, dispatch, err.Error())
		return
	}

	result, externalID, err := d.sender.Send(ctx, dispatch, rendered)
	if err != nil {
		d.fail(ctx, dispatch, err.Error())
		return
	}

	switch result {
	case model.DeliveryDelivered:
		metrics.NotificationDispatchTotal.WithLabelValues(string(d.channel), "delivered").Inc()
		if err := d.store.MarkSent(ctx, dispatch.ID, externalID); err != nil {
			log.Printf("notify[%s]: mark sent %s: %v", d.channel, dispatch.ID, err)
			return
		}
		if err := d.store.MarkDelivered(ctx, dispatch.ID); err != nil {
			log.Printf("notify[%s]: mark delivered %s: %v", d.channel, dispatch.ID, err)
		}
	case model.DeliveryPending:
		metrics.NotificationDispatchTotal.WithLabelValues(string(d.channel), "pending").Inc()
		if err := d.store.MarkSent(ctx, dispatch.ID, externalID); err != nil {
			log.Printf("notify[%s]: mark sent %s: %v", d.channel, dispatch.ID, err)
		}
	case model.DeliveryPermanent:
		metrics.NotificationDispatchTotal.WithLabelValues(string(d.channel), "permanent_failure").Inc()
		d.deadletter(ctx, dispatch, "permanent provider rejection")
	default: // DeliveryRetryable
		metrics.NotificationDispatchTotal.WithLabelValues(string(d.channel), "retryable_failure").Inc()
		d.fail(ctx, dispatch, "retryable provider error")
	}
}

func (d *ChannelDispatcher) quietHoursBlock(ctx context.Context, dispatch model.NotificationDispatch) bool {
	prefs, err := d.store.GetPreferences(ctx, dispatch.Tenant, dispatch.Recipient)
	if err != nil || prefs == nil {
		return false
	}
	if prefs.QuietHoursStart == "" || prefs.QuietHoursEnd == "" {
		return false
	}
	if dispatch.Priority == model.PriorityUrgent {
		return false
	}
	loc, err := time.LoadLocation(prefs.TimeZone)
	if err != nil {
		loc = time.UTC
	}
	now := d.clock.Now().In(loc).Format("15:04")
	start, end := prefs.QuietHoursStart, prefs.QuietHoursEnd
	if start <= end {
		return now >= start && now < end
	}
	// Quiet window wraps midnight, e.g. 22:00-07:00.
	return now >= start || now < end
}

func (d *ChannelDispatcher) fail(ctx context.Context, dispatch model.NotificationDispatch, cause string) {
	if dispatch.Attempts+1 >= dispatch.MaxRetries {
		d.deadletter(ctx, dispatch, cause)
		return
	}
	backoff := time.Duration(d.cfg.BackoffBaseMs) * time.Duration(1<<uint(dispatch.Attempts)) * time.Millisecond
	ceiling := time.Duration(d.cfg.BackoffCapMs) * time.Millisecond
	if backoff > ceiling {
		backoff = ceiling
	}
	if err := d.store.MarkFailed(ctx, dispatch.ID, cause, d.clock.Now().Add(backoff)); err != nil {
		log.Printf("notify[%s]: mark failed %s: %v", d.channel, dispatch.ID, err)
	}
}

func (d *ChannelDispatcher) deadletter(ctx context.Context, dispatch model.NotificationDispatch, cause string) {
	if err := d.store.MarkFailed(ctx, dispatch.ID, "deadletter: "+cause, d.clock.Now().Add(24*time.Hour)); err != nil {
		log.Printf("notify[%s]: mark deadletter %s: %v", d.channel, dispatch.ID, err)
	}
	if d.alerter != nil {
		d.alerter.AlertDeadletter(d.channel, dispatch, cause)
	}
}

// Dispatcher owns one ChannelDispatcher per channel and runs them all
// concurrently, the multi-channel analogue of BookingProcessor owning a
// single worker pool.
type Dispatcher struct {
	channels     map[model.Channel]*ChannelDispatcher
	pollInterval time.Duration
	batchSize    int
}

func NewDispatcher(channels map[model.Channel]*ChannelDispatcher, pollInterval time.Duration, batchSize int) *Dispatcher {
	return &Dispatcher{channels: channels, pollInterval: pollInterval, batchSize: batchSize}
}

func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, cd := range d.channels {
		wg.Add(1)
		go func(cd *ChannelDispatcher) {
			defer wg.Done()
			cd.Run(ctx, d.pollInterval, d.batchSize)
		}(cd)
	}
	wg.Wait()
}
