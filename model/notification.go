package model

import "time"

// Channel enumerates the notification delivery channels (§3).
type Channel string

const (
	ChannelEmail   Channel = "EMAIL"
	ChannelSMS     Channel = "SMS"
	ChannelPush    Channel = "PUSH"
	ChannelLine    Channel = "LINE"
	ChannelWebhook Channel = "WEBHOOK"
)

// Priority enumerates dispatch priority classes feeding the immediate /
// scheduled / bulk / retry queues of §4.I.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityNormal Priority = "NORMAL"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

// DispatchStatus enumerates the one-way progression of a
// NotificationDispatch row, except pending->cancelled and
// sending->pending (invariant I-8).
type DispatchStatus string

const (
	DispatchPending   DispatchStatus = "pending"
	DispatchSending   DispatchStatus = "sending"
	DispatchSent      DispatchStatus = "sent"
	DispatchDelivered DispatchStatus = "delivered"
	DispatchFailed    DispatchStatus = "failed"
	DispatchCancelled DispatchStatus = "cancelled"
	DispatchExpired   DispatchStatus = "expired"
)

// NotificationDispatch is a single scheduled delivery attempt over one
// channel to one recipient, deterministically keyed by
// (OutboxEventID, Channel, Recipient) for exactly-once semantics.
type NotificationDispatch struct {
	ID            string         `gorm:"type:uuid;primary_key"`
	OutboxEventID *string        `gorm:"type:uuid;index:idx_dispatch_outbox_channel_recipient,unique"`
	Tenant        string         `gorm:"type:uuid;not null;index:idx_dispatch_tenant"`
	Channel       Channel        `gorm:"type:varchar(20);not null;index:idx_dispatch_outbox_channel_recipient,unique"`
	Status        DispatchStatus `gorm:"type:varchar(20);not null;index:idx_dispatch_status_next"`
	Recipient     string         `gorm:"type:varchar(255);not null;index:idx_dispatch_outbox_channel_recipient,unique"`
	TemplateType  string         `gorm:"type:varchar(100);not null"`
	Variables     JSONMap        `gorm:"type:jsonb"`
	Priority      Priority       `gorm:"type:varchar(10);not null;default:'NORMAL'"`
	Attempts      int            `gorm:"not null;default:0"`
	MaxRetries    int            `gorm:"not null;default:5"`
	NextAttemptAt time.Time      `gorm:"not null;index:idx_dispatch_status_next"`
	LastError     string         `gorm:"type:text"`
	ExternalID    *string        `gorm:"type:varchar(255);index:idx_dispatch_external"`
	DeliveredAt   *time.Time
	ExpiresAt     *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (NotificationDispatch) TableName() string { return "notification_dispatches" }

// NotificationPreferences governs quiet hours and channel/type opt-outs
// for one recipient, consulted before every send (§4.I).
type NotificationPreferences struct {
	Tenant           string  `gorm:"type:uuid;primary_key"`
	RecipientID      string  `gorm:"type:uuid;primary_key"`
	EnabledChannels  JSONMap `gorm:"type:jsonb"` // channel -> bool
	EnabledTypes     JSONMap `gorm:"type:jsonb"` // templateType -> bool
	QuietHoursStart  string  `gorm:"type:varchar(5)"` // "HH:MM" in RecipientTZ
	QuietHoursEnd    string  `gorm:"type:varchar(5)"`
	TimeZone         string  `gorm:"type:varchar(64);default:'UTC'"`
}

func (NotificationPreferences) TableName() string { return "notification_preferences" }

// NotificationTemplate is the per-(tenant,type,language) template used to
// render a dispatch's content.
type NotificationTemplate struct {
	Tenant   string `gorm:"type:uuid;primary_key"`
	Type     string `gorm:"type:varchar(100);primary_key"`
	Language string `gorm:"type:varchar(10);primary_key;default:'default'"`
	Subject  string `gorm:"type:varchar(500)"`
	Body     string `gorm:"type:text;not null"`
}

func (NotificationTemplate) TableName() string { return "notification_templates" }

// DeliveryResult is the interpreted outcome of invoking a channel
// provider (§4.I step 2).
type DeliveryResult string

const (
	DeliveryDelivered DeliveryResult = "delivered"
	DeliveryPending   DeliveryResult = "pending"
	DeliveryRetryable DeliveryResult = "retryable"
	DeliveryPermanent DeliveryResult = "permanent"
)

// WebhookDedupRecord backs the (provider, providerEventId) uniqueness
// constraint for incoming provider callbacks (§4.J, §6).
type WebhookDedupRecord struct {
	Provider        string `gorm:"type:varchar(100);primary_key"`
	ProviderEventID string `gorm:"type:varchar(255);primary_key"`
	ReceivedAt      time.Time
	Processed       bool
	ResponseMeta    JSONMap `gorm:"type:jsonb"`
}

func (WebhookDedupRecord) TableName() string { return "webhook_dedup_records" }
