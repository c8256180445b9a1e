package models

import (
	"time"

	"backoffice/internal/uuid"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// FXRate is a global (not tenant-scoped) exchange rate: one unit of
// BaseCurrency costs Rate units of QuoteCurrency on Date.
type FXRate struct {
	ID            string          `gorm:"type:uuid;primaryKey" json:"id"`
	BaseCurrency  string          `gorm:"type:varchar(3);not null;uniqueIndex:uniq_fx_rate_pair_type_date,priority:1" json:"base_currency"`
	QuoteCurrency string          `gorm:"type:varchar(3);not null;uniqueIndex:uniq_fx_rate_pair_type_date,priority:2" json:"quote_currency"`
	RateType      FXRateType      `gorm:"not null;default:'mid';uniqueIndex:uniq_fx_rate_pair_type_date,priority:3" json:"rate_type"`
	Date          time.Time       `gorm:"type:date;not null;uniqueIndex:uniq_fx_rate_pair_type_date,priority:4" json:"date"`
	Rate          decimal.Decimal `gorm:"type:numeric(20,10);not null" json:"rate"`
	Source        string          `json:"source,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// BeforeCreate hook generates a UUIDv7 for new records
func (r *FXRate) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New()
	}
	return nil
}

// YieldCurve is a named curve for one currency.
type YieldCurve struct {
	TenantBase
	Name      string `gorm:"not null" json:"name"`
	CurveType string `json:"curve_type,omitempty"`
	Currency  string `gorm:"type:varchar(3);not null;index" json:"currency"`
	Country   string `json:"country,omitempty"`
}

// YieldCurvePoint is one tenor of a curve on one date.
// This is immutable time-series data, no Base embed, no soft deletes.
type YieldCurvePoint struct {
	ID             string          `gorm:"type:uuid;primaryKey" json:"id"`
	OrganizationID string          `gorm:"type:uuid;not null;index" json:"organization_id"`
	CurveID        string          `gorm:"type:uuid;not null;index:idx_curve_points_curve_date,priority:1" json:"curve_id"`
	Date           time.Time       `gorm:"type:date;not null;index:idx_curve_points_curve_date,priority:2" json:"date"`
	Tenor          string          `gorm:"not null" json:"tenor"`
	TenorDays      int             `gorm:"not null" json:"tenor_days"`
	Rate           decimal.Decimal `gorm:"type:numeric(20,10);not null" json:"rate"`
	CreatedAt      time.Time       `json:"created_at"`

	Curve *YieldCurve `gorm:"foreignKey:CurveID" json:"curve,omitempty"`
}

// BeforeCreate hook generates a UUIDv7 for new records
func (p *YieldCurvePoint) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New()
	}
	return nil
}
