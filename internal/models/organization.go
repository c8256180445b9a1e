package models

// Organization is the tenant boundary. No other record is visible across organizations.
type Organization struct {
	Base
	Name string `gorm:"not null" json:"name"`
	Slug string `gorm:"not null;uniqueIndex" json:"slug"`
}

// Portfolio groups position snapshots reported in one base currency.
type Portfolio struct {
	TenantBase
	Name         string `gorm:"not null" json:"name"`
	BaseCurrency string `gorm:"type:varchar(3);not null" json:"base_currency"`
}
