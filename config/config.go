package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is the root configuration, loaded from config.yaml with
// environment-variable fallback, exactly as the teacher's
// config.Initialise does.
type Config struct {
	Port         string       `yaml:"port" env:"PORT" env-default:"8083"`
	JWTSecret    string       `yaml:"jwt_secret" env:"JWT_SECRET" env-required:"true"`
	WebhookSecret string      `yaml:"webhook_secret" env:"WEBHOOK_SECRET" env-required:"true"`
	Database     Database     `yaml:"database"`
	Redis        Redis        `yaml:"redis"`
	Kafka        Kafka        `yaml:"kafka"`
	Worker       Worker       `yaml:"worker"`
	Booking      Booking      `yaml:"booking"`
	Cancellation Cancellation `yaml:"cancellation"`
	Tentative    Tentative    `yaml:"tentative"`
	Idempotency  Idempotency  `yaml:"idempotency"`
	Deadlock     Deadlock     `yaml:"deadlock"`
	Cleanup      Cleanup      `yaml:"cleanup"`
	Notification NotificationConfig `yaml:"notification"`
	Cache        Cache        `yaml:"cache"`
	Slack        Slack        `yaml:"slack"`
}

type Worker struct {
	MaxWorkers int `yaml:"max_workers" env:"WORKER_MAX_WORKERS" env-default:"20"`
}

type Database struct {
	User         string `yaml:"user" env:"DB_USER" env-required:"true"`
	Password     string `yaml:"password" env:"DB_PASSWORD" env-required:"true"`
	DatabaseName string `yaml:"database_name" env:"DB_NAME" env-required:"true"`
	Host         string `yaml:"host" env:"DB_HOST" env-default:"localhost"`
	Port         string `yaml:"port" env:"DB_PORT" env-default:"5432"`
	SSLMode      string `yaml:"ssl_mode" env:"DB_SSL_MODE" env-default:"disable"`

	// Connection Pool Settings
	MaxOpenConns    int `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	MaxIdleConns    int `yaml:"max_idle_conns" env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	ConnMaxLifetime int `yaml:"conn_max_lifetime_minutes" env:"DB_CONN_MAX_LIFETIME" env-default:"30"`
}

func (d *Database) GetDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DatabaseName, d.SSLMode)
}

type Redis struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port     string `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD" env-default:""`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

func (r *Redis) GetRedisURL() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

// Kafka names the topic the outbox relay mirrors each published event onto
// (best-effort), in the teacher's booking -> notification topology. The
// relay hands work to the notification dispatcher through
// notification_dispatches rows, not through Kafka.
type Kafka struct {
	Brokers           []string `yaml:"brokers" env:"KAFKA_BROKERS" env-default:"localhost:9092" env-separator:","`
	NotificationTopic string   `yaml:"notification_topic" env:"KAFKA_NOTIFICATION_TOPIC" env-default:"notification-dispatches"`
	ConsumerGroup     string   `yaml:"consumer_group" env:"KAFKA_CONSUMER_GROUP" env-default:"reservation-engine"`
}

// Booking holds the §6 BOOKING.* configuration keys.
type Booking struct {
	PreventDoubleBooking bool `yaml:"prevent_double_booking" env:"BOOKING_PREVENT_DOUBLE_BOOKING" env-default:"true"`
	AllowOverbooking     bool `yaml:"allow_overbooking" env:"BOOKING_ALLOW_OVERBOOKING" env-default:"false"`
	OverbookingPercent   int  `yaml:"overbooking_percent" env:"BOOKING_OVERBOOKING_PERCENT" env-default:"0"`
	MinBookingDuration   int  `yaml:"min_booking_duration_minutes" env:"BOOKING_MIN_DURATION" env-default:"5"`
	MaxBookingDuration   int  `yaml:"max_booking_duration_minutes" env:"BOOKING_MAX_DURATION" env-default:"480"`
	AdvanceBookingDays   int  `yaml:"advance_booking_days" env:"BOOKING_ADVANCE_DAYS" env-default:"90"`
}

// Cancellation holds the §6 CANCELLATION.* configuration keys.
type Cancellation struct {
	AllowedUntilHours int     `yaml:"allowed_until_hours" env:"CANCELLATION_ALLOWED_UNTIL_HOURS" env-default:"24"`
	PenaltyPercentage float64 `yaml:"penalty_percentage" env:"CANCELLATION_PENALTY_PERCENTAGE" env-default:"10"`
	RefundPolicy      string  `yaml:"refund_policy" env:"CANCELLATION_REFUND_POLICY" env-default:"PARTIAL"`
}

// Tentative holds the §6 TENTATIVE.* configuration keys.
type Tentative struct {
	Enabled              bool `yaml:"enabled" env:"TENTATIVE_ENABLED" env-default:"false"`
	TimeoutMinutes       int  `yaml:"timeout_minutes" env:"TENTATIVE_TIMEOUT_MINUTES" env-default:"15"`
	AutoConfirmOnPayment bool `yaml:"auto_confirm_on_payment" env:"TENTATIVE_AUTO_CONFIRM_ON_PAYMENT" env-default:"true"`
	MaxPerCustomer       int  `yaml:"max_per_customer" env:"TENTATIVE_MAX_PER_CUSTOMER" env-default:"3"`
}

// Idempotency holds the §6 IDEMPOTENCY.* configuration keys.
type Idempotency struct {
	DefaultExpirationMinutes int `yaml:"default_expiration_minutes" env:"IDEMPOTENCY_DEFAULT_EXPIRATION_MINUTES" env-default:"1440"`
	MaxRetries               int `yaml:"max_retries" env:"IDEMPOTENCY_MAX_RETRIES" env-default:"3"`
	StaleProcessingMinutes   int `yaml:"stale_processing_minutes" env:"IDEMPOTENCY_STALE_PROCESSING_MINUTES" env-default:"5"`
	SweepIntervalSeconds     int `yaml:"sweep_interval_seconds" env:"IDEMPOTENCY_SWEEP_INTERVAL_SECONDS" env-default:"60"`
	SweepBatchSize           int `yaml:"sweep_batch_size" env:"IDEMPOTENCY_SWEEP_BATCH_SIZE" env-default:"100"`
}

// Deadlock holds the §6 DEADLOCK.* configuration keys governing the
// inventory store's retry policy.
type Deadlock struct {
	MaxRetries int `yaml:"max_retries" env:"DEADLOCK_MAX_RETRIES" env-default:"3"`
	BackoffMs  int `yaml:"backoff_ms" env:"DEADLOCK_BACKOFF_MS" env-default:"100"`
}

// Cleanup holds the §6 CLEANUP.* configuration keys.
type Cleanup struct {
	IntervalMinutes int `yaml:"interval_minutes" env:"CLEANUP_INTERVAL_MINUTES" env-default:"15"`
	RetentionDays   int `yaml:"retention_days" env:"CLEANUP_RETENTION_DAYS" env-default:"90"`
	BatchSize       int `yaml:"batch_size" env:"CLEANUP_BATCH_SIZE" env-default:"1000"`
}

// ChannelConfig holds the §6 NOTIFICATION.<channel>.* configuration keys
// for one channel.
type ChannelConfig struct {
	MaxConcurrent     int `yaml:"max_concurrent"`
	RateLimitPerMinute int `yaml:"rate_limit_per_minute"`
	MaxRetries        int `yaml:"max_retries"`
	BackoffBaseMs     int `yaml:"backoff_base_ms"`
	BackoffCapMs      int `yaml:"backoff_cap_ms"`
}

// NotificationConfig holds per-channel dispatcher tuning plus the
// AlertOnDeadletter flag (§9 Open Question 3). AlertOnDeadletter is not
// read by the dispatcher: a deadlettered dispatch is posted to Slack
// whenever Slack.WebhookURL is set, and only logged otherwise.
type NotificationConfig struct {
	Email             ChannelConfig `yaml:"email"`
	SMS               ChannelConfig `yaml:"sms"`
	Push              ChannelConfig `yaml:"push"`
	Line              ChannelConfig `yaml:"line"`
	Webhook           ChannelConfig `yaml:"webhook"`
	AlertOnDeadletter bool          `yaml:"alert_on_deadletter" env:"NOTIFICATION_ALERT_ON_DEADLETTER" env-default:"false"`
}

// Cache holds the §4.K two-tier cache sizing knobs.
type Cache struct {
	LRUSize       int `yaml:"lru_size" env:"CACHE_LRU_SIZE" env-default:"10000"`
	DefaultTTLSec int `yaml:"default_ttl_seconds" env:"CACHE_DEFAULT_TTL_SECONDS" env-default:"15"`
}

// Slack configures the optional ops-alert channel for deadlettered
// notifications.
type Slack struct {
	WebhookURL string `yaml:"webhook_url" env:"SLACK_WEBHOOK_URL" env-default:""`
	Channel    string `yaml:"channel" env:"SLACK_CHANNEL" env-default:"#ops-alerts"`
}

func defaultChannel(maxConcurrent, rateLimit, maxRetries, backoffBaseMs int) ChannelConfig {
	return ChannelConfig{
		MaxConcurrent:      maxConcurrent,
		RateLimitPerMinute: rateLimit,
		MaxRetries:         maxRetries,
		BackoffBaseMs:      backoffBaseMs,
		BackoffCapMs:       5 * 60 * 1000,
	}
}

// applyChannelDefaults fills zero-valued channel configs with the §4.I
// defaults (EMAIL 10, SMS 3, PUSH 10, LINE 5, WEBHOOK 5).
func (n *NotificationConfig) applyChannelDefaults() {
	if n.Email.MaxConcurrent == 0 {
		n.Email = defaultChannel(10, 100, 3, 1000)
	}
	if n.SMS.MaxConcurrent == 0 {
		n.SMS = defaultChannel(3, 30, 3, 1000)
	}
	if n.Push.MaxConcurrent == 0 {
		n.Push = defaultChannel(10, 200, 3, 500)
	}
	if n.Line.MaxConcurrent == 0 {
		n.Line = defaultChannel(5, 60, 3, 1000)
	}
	if n.Webhook.MaxConcurrent == 0 {
		n.Webhook = defaultChannel(5, 60, 5, 1000)
	}
}

func Initialise(configPath string, useEnv bool) (*Config, error) {
	cfg := &Config{}

	if useEnv {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment variables: %w", err)
		}
		cfg.Notification.applyChannelDefaults()
		return cfg, nil
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			if err := cleanenv.ReadConfig(configPath, cfg); err != nil {
				return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
			}
			cfg.Notification.applyChannelDefaults()
			return cfg, nil
		}
	}

	// Fallback to environment variables
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment variables: %w", err)
	}

	cfg.Notification.applyChannelDefaults()
	return cfg, nil
}
