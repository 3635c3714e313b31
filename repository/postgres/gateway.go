package postgres

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/arunvm123/reservationengine/config"
	"github.com/arunvm123/reservationengine/model"
	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// retryableSQLStates are the Postgres SQLSTATEs that mean "retry the whole
// transaction", per §4.B: 40001 serialization_failure, 40P01 deadlock_detected.
var retryableSQLStates = map[string]bool{
	"40001": true,
	"40P01": true,
}

// Gateway is the connection-pool owner and tenant-agnostic transaction
// runner, grounded on the teacher's gorm.Open/AutoMigrate bootstrap in
// repository/postgres/booking_repository.go, generalized with the
// deadlock-retry loop the teacher never needed because its single-row
// UPDATE never contended with itself.
type Gateway struct {
	db         *gorm.DB
	maxRetries int
	backoffMs  int
}

func NewGateway(cfg config.Database, deadlock config.Deadlock) (*Gateway, error) {
	db, err := gorm.Open(postgres.Open(cfg.GetDatabaseURL()), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)

	if err := db.AutoMigrate(
		&model.Tenant{},
		&model.Resource{},
		&model.Service{},
		&model.ResourceService{},
		&model.BusinessHours{},
		&model.Holiday{},
		&model.ResourceTimeOff{},
		&model.Customer{},
		&model.Timeslot{},
		&model.Booking{},
		&model.BookingItem{},
		&model.BookingChange{},
		&model.IdempotencyRecord{},
		&model.OutboxEvent{},
		&model.NotificationDispatch{},
		&model.NotificationPreferences{},
		&model.NotificationTemplate{},
		&model.WebhookDedupRecord{},
		&model.SagaExecution{},
		&model.TransactionContext{},
		&model.Participant{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Gateway{db: db, maxRetries: deadlock.MaxRetries, backoffMs: deadlock.BackoffMs}, nil
}

func (g *Gateway) DB() *gorm.DB { return g.db }

func (g *Gateway) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// WithTx runs fn inside a transaction, retrying the entire transaction on a
// retryable SQLSTATE with exponential backoff (base backoffMs, at most
// maxRetries retries after the first attempt), following the same contention the canonical
// (resourceId, timeslotId) lock order is meant to make rare rather than
// prevent outright.
func (g *Gateway) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Duration(g.backoffMs) * time.Millisecond
	b.Multiplier = 2
	b.MaxElapsedTime = 0
	bo := backoff.WithMaxRetries(b, uint64(g.maxRetries))

	attempt := 0
	op := func() error {
		attempt++
		err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return fn(tx)
		})
		if err != nil && isRetryable(err) {
			log.Printf("gateway: retrying transaction after attempt %d: %v", attempt, err)
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}

	return backoff.Retry(op, bo)
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return retryableSQLStates[pgErr.Code]
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return retryableSQLStates[string(pqErr.Code)]
	}
	return false
}
