package models

import (
	"time"

	"backoffice/internal/uuid"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Instrument is reference data for a tradable security, looked up by ISIN or ticker.
type Instrument struct {
	TenantBase
	Name            string          `gorm:"not null" json:"name"`
	ISIN            string          `gorm:"column:isin;index" json:"isin,omitempty"`
	Ticker          string          `gorm:"index" json:"ticker,omitempty"`
	Currency        string          `gorm:"type:varchar(3);not null" json:"currency"`
	InstrumentGroup string          `json:"instrument_group,omitempty"`
	InstrumentType  string          `json:"instrument_type,omitempty"`
	IssuerCode      string          `json:"issuer_code,omitempty"`
	ValuationMethod ValuationMethod `json:"valuation_method,omitempty"`
	Country         string          `json:"country,omitempty"`
	Sector          string          `json:"sector,omitempty"`
}

// DisplayName returns the name, falling back to the identifiers.
func (i *Instrument) DisplayName() string {
	switch {
	case i.Name != "":
		return i.Name
	case i.ISIN != "":
		return i.ISIN
	}
	return i.Ticker
}

// InstrumentPrice is one price observation for an instrument.
// This is immutable time-series data, no Base embed, no soft deletes.
type InstrumentPrice struct {
	ID             string          `gorm:"type:uuid;primaryKey" json:"id"`
	OrganizationID string          `gorm:"type:uuid;not null;index" json:"organization_id"`
	InstrumentID   string          `gorm:"type:uuid;not null;index:idx_instrument_prices_lookup,priority:1" json:"instrument_id"`
	Date           time.Time       `gorm:"type:date;not null;index:idx_instrument_prices_lookup,priority:2" json:"date"`
	PriceType      PriceType       `gorm:"not null;default:'close'" json:"price_type"`
	Price          decimal.Decimal `gorm:"type:numeric(20,6);not null" json:"price"`
	Currency       string          `gorm:"type:varchar(3);not null" json:"currency"`
	Source         string          `json:"source,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// BeforeCreate hook generates a UUIDv7 for new records
func (p *InstrumentPrice) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New()
	}
	return nil
}
