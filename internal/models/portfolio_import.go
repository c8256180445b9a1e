package models

import (
	"time"

	"backoffice/internal/uuid"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PortfolioImport is one attempt to ingest a file into a portfolio for one as-of date.
// Once Status is terminal the record is never reprocessed; a retry needs a new import.
type PortfolioImport struct {
	TenantBase
	PortfolioID   string           `gorm:"type:uuid;not null;index" json:"portfolio_id"`
	FilePath      string           `gorm:"not null" json:"file_path"`
	FileName      string           `json:"file_name"`
	SheetName     string           `json:"sheet_name,omitempty"`
	AsOfDate      time.Time        `gorm:"type:date;not null" json:"as_of_date"`
	MappingJSON   datatypes.JSON   `json:"mapping,omitempty"`
	SourceType    ImportSourceType `gorm:"not null;default:'custodian'" json:"source_type"`
	Status        ImportStatus     `gorm:"not null;default:'pending';index" json:"status"`
	ErrorMessage  string           `json:"error_message,omitempty"`
	RowsProcessed int              `gorm:"not null;default:0" json:"rows_processed"`
	RowsTotal     int              `gorm:"not null;default:0" json:"rows_total"`
	InputsHash    string           `gorm:"type:varchar(64);index" json:"inputs_hash,omitempty"`
	CompletedAt   *time.Time       `json:"completed_at,omitempty"`

	Portfolio *Portfolio `gorm:"foreignKey:PortfolioID" json:"portfolio,omitempty"`
}

// PortfolioImportError is one failed row of an import. Immutable once written.
type PortfolioImportError struct {
	ID                string          `gorm:"type:uuid;primaryKey" json:"id"`
	OrganizationID    string          `gorm:"type:uuid;not null;index" json:"organization_id"`
	PortfolioImportID string          `gorm:"type:uuid;not null;index:idx_import_errors_import_row,priority:1" json:"portfolio_import_id"`
	RowNumber         int             `gorm:"not null;index:idx_import_errors_import_row,priority:2" json:"row_number"`
	ColumnName        string          `json:"column_name,omitempty"`
	RawRowData        datatypes.JSON  `json:"raw_row_data"`
	ErrorType         ImportErrorType `gorm:"not null" json:"error_type"`
	ErrorMessage      string          `gorm:"not null" json:"error_message"`
	ErrorCode         string          `json:"error_code,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}

// BeforeCreate hook generates a UUIDv7 for new records
func (e *PortfolioImportError) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.New()
	}
	return nil
}
