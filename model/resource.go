package model

import "time"

// ResourceKind enumerates the bookable unit types (§3 Data Model).
type ResourceKind string

const (
	ResourceKindStaff ResourceKind = "staff"
	ResourceKindSeat  ResourceKind = "seat"
	ResourceKindRoom  ResourceKind = "room"
	ResourceKindTable ResourceKind = "table"
)

// ResourceStatus enumerates resource availability states.
type ResourceStatus string

const (
	ResourceStatusActive      ResourceStatus = "active"
	ResourceStatusMaintenance ResourceStatus = "maintenance"
	ResourceStatusInactive    ResourceStatus = "inactive"
)

// Resource is a shared, finite-capacity bookable unit. Immutable across a
// single booking transaction (I: capacity/status read once per confirm).
type Resource struct {
	ID              string         `gorm:"type:uuid;primary_key"`
	Tenant          string         `gorm:"type:uuid;not null;index:idx_resource_tenant"`
	Kind            ResourceKind   `gorm:"type:varchar(20);not null"`
	Name            string         `gorm:"type:varchar(255);not null"`
	TotalCapacity   int            `gorm:"not null"`
	Status          ResourceStatus `gorm:"type:varchar(20);not null;default:'active'"`
	SlotGranularity int            `gorm:"not null;default:900"` // seconds: 300 or 900
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (Resource) TableName() string { return "resources" }

// Service describes a bookable offering with its own duration/pricing and
// advance-booking rules.
type Service struct {
	ID                string `gorm:"type:uuid;primary_key"`
	Tenant            string `gorm:"type:uuid;not null;index:idx_service_tenant"`
	Name              string `gorm:"type:varchar(255);not null"`
	DurationMinutes   int    `gorm:"not null"`
	PriceMinor        int64  `gorm:"not null"`
	BufferBeforeMin   int    `gorm:"not null;default:0"`
	BufferAfterMin    int    `gorm:"not null;default:0"`
	MinAdvanceMinutes int    `gorm:"not null;default:0"`
	MaxAdvanceDays    int    `gorm:"not null;default:90"`
	AllowWeekends     bool   `gorm:"not null;default:true"`
	AllowHolidays     bool   `gorm:"not null;default:false"`
	RequiresApproval  bool   `gorm:"not null;default:false"`
	Active            bool   `gorm:"not null;default:true"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (Service) TableName() string { return "services" }

// ResourceService is the many-to-many capability mapping between resources
// and the services they can fulfil.
type ResourceService struct {
	Tenant     string `gorm:"type:uuid;primary_key"`
	ResourceID string `gorm:"type:uuid;primary_key"`
	ServiceID  string `gorm:"type:uuid;primary_key"`
}

func (ResourceService) TableName() string { return "resource_services" }

// BusinessHours is a recurring open/close window per weekday. A nil
// ResourceID row is a tenant-wide default.
type BusinessHours struct {
	ID            string     `gorm:"type:uuid;primary_key"`
	Tenant        string     `gorm:"type:uuid;not null;index:idx_bh_tenant"`
	ResourceID    *string    `gorm:"type:uuid;index:idx_bh_resource"`
	DayOfWeek     int        `gorm:"not null"` // 0=Sunday..6=Saturday
	OpenTime      string     `gorm:"type:varchar(5);not null"`  // "HH:MM"
	CloseTime     string     `gorm:"type:varchar(5);not null"`  // "HH:MM"
	EffectiveFrom *time.Time
	EffectiveTo   *time.Time
}

func (BusinessHours) TableName() string { return "business_hours" }

// Holiday is a tenant-wide absence window (e.g. a public holiday).
type Holiday struct {
	ID     string    `gorm:"type:uuid;primary_key"`
	Tenant string    `gorm:"type:uuid;not null;index:idx_holiday_tenant"`
	Date   time.Time `gorm:"type:date;not null"`
	Name   string    `gorm:"type:varchar(255)"`
}

func (Holiday) TableName() string { return "holidays" }

// ResourceTimeOff is a per-resource absence window (vacation, sickness,
// maintenance block).
type ResourceTimeOff struct {
	ID         string    `gorm:"type:uuid;primary_key"`
	Tenant     string    `gorm:"type:uuid;not null;index:idx_timeoff_tenant"`
	ResourceID string    `gorm:"type:uuid;not null;index:idx_timeoff_resource"`
	Start      time.Time `gorm:"not null"`
	End        time.Time `gorm:"not null"`
	Reason     string    `gorm:"type:varchar(255)"`
}

func (ResourceTimeOff) TableName() string { return "resource_time_off" }

// Customer is the party making bookings.
type Customer struct {
	ID            string `gorm:"type:uuid;primary_key"`
	Tenant        string `gorm:"type:uuid;not null;index:idx_customer_tenant"`
	Name          string `gorm:"type:varchar(255);not null"`
	Email         string `gorm:"type:varchar(255)"`
	Blacklisted   bool   `gorm:"not null;default:false"`
	MaxConcurrent int    `gorm:"not null;default:5"`
	CreatedAt     time.Time
}

func (Customer) TableName() string { return "customers" }
