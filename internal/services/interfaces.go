package services

import (
	"context"
	"io"
	"time"

	"github.com/shopspring/decimal"

	"backoffice/internal/ingestion"
	"backoffice/internal/models"
	"backoffice/internal/pagination"
)

// PortfolioServicer defines the contract for portfolio lookups.
type PortfolioServicer interface {
	CreatePortfolio(ctx context.Context, name, baseCurrency string) (*models.Portfolio, error)
	GetPortfolio(ctx context.Context, portfolioID string) (*models.Portfolio, error)
	ListPortfolios(ctx context.Context, page pagination.PageRequest) (*pagination.PageResponse[models.Portfolio], error)
}

// InstrumentInput holds the fields for a new instrument.
type InstrumentInput struct {
	Name            string
	ISIN            string
	Ticker          string
	Currency        string
	InstrumentGroup string
	InstrumentType  string
	IssuerCode      string
	ValuationMethod models.ValuationMethod
	Country         string
	Sector          string
}

// InstrumentPriceInput is one price observation to record.
type InstrumentPriceInput struct {
	Date      time.Time
	Price     decimal.Decimal
	Currency  string
	PriceType models.PriceType
	Source    string
}

// InstrumentServicer defines the contract for instrument reference data.
type InstrumentServicer interface {
	// Resolve maps identifiers to instruments by ISIN first, then ticker.
	// Unresolved identifiers are absent from the result.
	Resolve(ctx context.Context, identifiers []string) (map[string]*models.Instrument, error)
	CreateInstrument(ctx context.Context, in InstrumentInput) (*models.Instrument, error)
	GetInstrument(ctx context.Context, instrumentID string) (*models.Instrument, error)
	ListInstruments(ctx context.Context, page pagination.PageRequest) (*pagination.PageResponse[models.Instrument], error)
	RecordPrices(ctx context.Context, instrumentID string, prices []InstrumentPriceInput) (int, error)
}

// CreateImportInput describes an uploaded holdings file.
type CreateImportInput struct {
	PortfolioID string
	FileName    string
	SheetName   string
	AsOfDate    time.Time
	SourceType  models.ImportSourceType
	Mapping     ingestion.Mapping
	Content     io.Reader
}

// ImportOptions tunes a single ImportFromFile run.
type ImportOptions struct {
	// FilePath overrides the stored file location.
	FilePath string
	// SheetName selects a worksheet of an Excel file.
	SheetName string
	// MappingOverride replaces column detection entirely.
	MappingOverride ingestion.Mapping
}

// ImportResult summarizes a finished import.
type ImportResult struct {
	ImportID  string              `json:"import_id"`
	Created   int                 `json:"created"`
	Errors    int                 `json:"errors"`
	TotalRows int                 `json:"total_rows"`
	Status    models.ImportStatus `json:"status"`
}

// PortfolioImportServicer defines the contract for the snapshot ingestion pipeline.
type PortfolioImportServicer interface {
	CreateImport(ctx context.Context, in CreateImportInput) (*models.PortfolioImport, error)
	GetImport(ctx context.Context, importID string) (*models.PortfolioImport, error)
	ImportFromFile(ctx context.Context, importID string, opts ImportOptions) (*ImportResult, error)
	CheckDuplicate(ctx context.Context, portfolioID, digest, excludeImportID string) (*models.PortfolioImport, error)
	MarkFailed(ctx context.Context, importID, message string) error
	ListErrors(ctx context.Context, importID string, page pagination.PageRequest) (*pagination.PageResponse[models.PortfolioImportError], error)
}

// MissingFXRate is a currency pair without a mid rate on the as-of date.
type MissingFXRate struct {
	From string `json:"from"`
	To   string `json:"to"`
	Date string `json:"date"`
}

// MissingPrice is a resolved instrument without a close price on the as-of date.
type MissingPrice struct {
	InstrumentID string `json:"instrument_id"`
	Identifier   string `json:"identifier"`
	Date         string `json:"date"`
}

// MissingCurve is a currency with fixed income holdings but no curve points on the as-of date.
type MissingCurve struct {
	Currency string `json:"currency"`
	Date     string `json:"date"`
}

// PreflightResult reports whether an import's reference data is complete.
// Missing instruments and FX rates block the import; prices and curves are advisory.
type PreflightResult struct {
	Ready              bool            `json:"ready"`
	MissingInstruments []string        `json:"missing_instruments"`
	MissingFXRates     []MissingFXRate `json:"missing_fx_rates"`
	MissingPrices      []MissingPrice  `json:"missing_prices"`
	MissingCurves      []MissingCurve  `json:"missing_curves"`
	Warnings           []string        `json:"warnings"`
}

// PreflightServicer defines the contract for read-only import checks.
type PreflightServicer interface {
	Preflight(ctx context.Context, importID string) (*PreflightResult, error)
}

// ExportFile is a generated download.
type ExportFile struct {
	Name        string
	ContentType string
	Content     []byte
}

// MissingInstrumentExporter defines the contract for the instrument template export.
type MissingInstrumentExporter interface {
	Export(ctx context.Context, importID string) (*ExportFile, error)
}

// PositionSnapshotServicer defines the contract for reading position snapshots.
type PositionSnapshotServicer interface {
	List(ctx context.Context, portfolioID string, asOf *time.Time, page pagination.PageRequest) (*pagination.PageResponse[models.PositionSnapshot], error)
	ExistingInstrumentIDs(ctx context.Context, portfolioID string, asOf time.Time) (map[string]bool, error)
}

// FXSyncResult summarizes an FX rate sync.
type FXSyncResult struct {
	Date    string   `json:"date"`
	Quote   string   `json:"quote"`
	Created int      `json:"created"`
	Skipped int      `json:"skipped"`
	Failed  []string `json:"failed"`
}

// FXRateServicer defines the contract for FX reference data.
type FXRateServicer interface {
	Sync(ctx context.Context, currencies []string, quote string, date time.Time) (*FXSyncResult, error)
	Has(ctx context.Context, base, quote string, date time.Time) (bool, error)
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(ctx context.Context, action, resourceType, resourceID, ipAddress string, changes map[string]interface{})
}
