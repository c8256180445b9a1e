package models

import "gorm.io/datatypes"

// AuditEvent records an operation performed on tenant data.
type AuditEvent struct {
	TenantBase
	ActorID      string         `gorm:"index" json:"actor_id,omitempty"`
	Action       string         `gorm:"not null;index" json:"action"`
	ResourceType string         `gorm:"not null" json:"resource_type"`
	ResourceID   string         `gorm:"index" json:"resource_id,omitempty"`
	IPAddress    string         `json:"ip_address,omitempty"`
	Changes      datatypes.JSON `json:"changes,omitempty"`
}

// All lists every model, in dependency order, for AutoMigrate in tests.
func All() []interface{} {
	return []interface{}{
		&Organization{},
		&Portfolio{},
		&Instrument{},
		&InstrumentPrice{},
		&PortfolioImport{},
		&PortfolioImportError{},
		&PositionSnapshot{},
		&FXRate{},
		&YieldCurve{},
		&YieldCurvePoint{},
		&AuditEvent{},
	}
}
