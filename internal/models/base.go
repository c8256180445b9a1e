package models

import (
	"time"

	"backoffice/internal/uuid"

	"gorm.io/gorm"
)

// Base contains common columns for mutable tables
type Base struct {
	ID        string         `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

// BeforeCreate hook generates a UUIDv7 for new records
func (b *Base) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.New()
	}
	return nil
}

// TenantBase is Base plus the owning organization. Every tenant-scoped
// table embeds it so tenant.Scope can filter on organization_id.
type TenantBase struct {
	Base
	OrganizationID string `gorm:"type:uuid;not null;index" json:"organization_id"`
}

// DateOnlyUTC truncates t to midnight UTC of its calendar day in UTC.
// As-of dates are compared with equality, so every write and every lookup
// goes through it.
func DateOnlyUTC(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	u := t.UTC()
	y, m, d := u.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateLayout is the ISO-8601 calendar date layout used in hashes, messages and filenames.
const DateLayout = "2006-01-02"
