package models

import (
	"time"

	"backoffice/internal/money"
	"backoffice/internal/uuid"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SnapshotUniqueIndex names the constraint guaranteeing one snapshot per
// organization, portfolio, instrument and as-of date.
const SnapshotUniqueIndex = "uniq_pos_snapshot_org_port_instr_date"

// PositionSnapshot is the position of one instrument in one portfolio on one date.
// This is immutable time-series data, no Base embed, no soft deletes.
type PositionSnapshot struct {
	ID                string    `gorm:"type:uuid;primaryKey" json:"id"`
	OrganizationID    string    `gorm:"type:uuid;not null;uniqueIndex:uniq_pos_snapshot_org_port_instr_date,priority:1" json:"organization_id"`
	PortfolioID       string    `gorm:"type:uuid;not null;uniqueIndex:uniq_pos_snapshot_org_port_instr_date,priority:2" json:"portfolio_id"`
	InstrumentID      string    `gorm:"type:uuid;not null;uniqueIndex:uniq_pos_snapshot_org_port_instr_date,priority:3" json:"instrument_id"`
	AsOfDate          time.Time `gorm:"type:date;not null;uniqueIndex:uniq_pos_snapshot_org_port_instr_date,priority:4" json:"as_of_date"`
	PortfolioImportID *string   `gorm:"type:uuid;index" json:"portfolio_import_id,omitempty"`

	Quantity                decimal.Decimal     `gorm:"type:numeric(20,6);not null" json:"quantity"`
	BookPrice               decimal.NullDecimal `gorm:"type:numeric(20,6)" json:"book_price"`
	BookValue               money.Money         `gorm:"embedded;embeddedPrefix:book_value_" json:"book_value"`
	MarketValue             money.Money         `gorm:"embedded;embeddedPrefix:market_value_" json:"market_value"`
	Price                   decimal.Decimal     `gorm:"type:numeric(20,6);not null" json:"price"`
	AccruedInterest         decimal.NullDecimal `gorm:"type:numeric(20,6)" json:"accrued_interest"`
	AccruedInterestCurrency string              `gorm:"type:varchar(3)" json:"accrued_interest_currency,omitempty"`

	ValuationMethod   ValuationMethod `gorm:"not null;default:'mark_to_market'" json:"valuation_method"`
	ValuationSource   ValuationSource `gorm:"not null" json:"valuation_source"`
	LastValuationDate *time.Time      `gorm:"type:date" json:"last_valuation_date,omitempty"`
	StaleAfterDays    *int            `json:"stale_after_days,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Instrument *Instrument `gorm:"foreignKey:InstrumentID" json:"instrument,omitempty"`
}

// BeforeCreate hook generates a UUIDv7 for new records
func (p *PositionSnapshot) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New()
	}
	return nil
}

// Accrued returns the accrued interest as money when present.
func (p *PositionSnapshot) Accrued() (money.Money, bool) {
	if !p.AccruedInterest.Valid {
		return money.Money{}, false
	}
	return money.New(p.AccruedInterest.Decimal, p.AccruedInterestCurrency), true
}
