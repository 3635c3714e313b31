package model

import "time"

// Tenant partitions every other entity in the system. Tenants are created
// and deleted only by administrative tooling outside this module's scope.
type Tenant struct {
	ID        string `gorm:"type:uuid;primary_key"`
	Name      string `gorm:"type:varchar(255);not null"`
	CreatedAt time.Time
}

func (Tenant) TableName() string { return "tenants" }
