package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"backoffice/internal/models"
	"backoffice/internal/money"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// AsOf is the as-of date used by fixtures unless a test picks its own.
var AsOf = time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)

// CreateTestOrganization creates an organization with a unique slug.
func CreateTestOrganization(t *testing.T, db *gorm.DB) *models.Organization {
	t.Helper()

	n := nextID()
	org := &models.Organization{
		Name: fmt.Sprintf("Test Org %d", n),
		Slug: fmt.Sprintf("test-org-%d", n),
	}
	if err := db.Create(org).Error; err != nil {
		t.Fatalf("failed to create test organization: %v", err)
	}
	return org
}

// CreateTestPortfolio creates a portfolio in the given base currency.
func CreateTestPortfolio(t *testing.T, db *gorm.DB, orgID, baseCurrency string) *models.Portfolio {
	t.Helper()

	p := &models.Portfolio{
		TenantBase:   models.TenantBase{OrganizationID: orgID},
		Name:         fmt.Sprintf("Test Portfolio %d", nextID()),
		BaseCurrency: baseCurrency,
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("failed to create test portfolio: %v", err)
	}
	return p
}

// CreateTestInstrument creates an instrument identified by isin and ticker.
// Either may be empty.
func CreateTestInstrument(t *testing.T, db *gorm.DB, orgID, isin, ticker string) *models.Instrument {
	t.Helper()
	return CreateTestInstrumentInGroup(t, db, orgID, isin, ticker, "Equity", "USD")
}

// CreateTestInstrumentInGroup creates an instrument with a group name and currency.
func CreateTestInstrumentInGroup(t *testing.T, db *gorm.DB, orgID, isin, ticker, group, currency string) *models.Instrument {
	t.Helper()

	inst := &models.Instrument{
		TenantBase:      models.TenantBase{OrganizationID: orgID},
		Name:            fmt.Sprintf("Test Instrument %d", nextID()),
		ISIN:            isin,
		Ticker:          ticker,
		Currency:        currency,
		InstrumentGroup: group,
	}
	if err := db.Create(inst).Error; err != nil {
		t.Fatalf("failed to create test instrument: %v", err)
	}
	return inst
}

// WriteTestFile writes content to a file in a temporary directory and
// returns its path.
func WriteTestFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}
	return path
}

// CreateTestImport creates a pending import of filePath for the fixture as-of date.
func CreateTestImport(t *testing.T, db *gorm.DB, orgID, portfolioID, filePath string) *models.PortfolioImport {
	t.Helper()

	imp := &models.PortfolioImport{
		TenantBase:  models.TenantBase{OrganizationID: orgID},
		PortfolioID: portfolioID,
		FilePath:    filePath,
		FileName:    filepath.Base(filePath),
		AsOfDate:    AsOf,
		SourceType:  models.ImportSourceCustodian,
		Status:      models.ImportStatusPending,
	}
	if err := db.Create(imp).Error; err != nil {
		t.Fatalf("failed to create test import: %v", err)
	}
	return imp
}

// CreateTestSnapshot creates a position snapshot for the instrument on asOf.
func CreateTestSnapshot(t *testing.T, db *gorm.DB, orgID, portfolioID, instrumentID string, asOf time.Time) *models.PositionSnapshot {
	t.Helper()

	snap := &models.PositionSnapshot{
		OrganizationID:  orgID,
		PortfolioID:     portfolioID,
		InstrumentID:    instrumentID,
		AsOfDate:        models.DateOnlyUTC(asOf),
		Quantity:        decimal.NewFromInt(10),
		BookValue:       money.New(decimal.NewFromInt(900), "USD"),
		MarketValue:     money.New(decimal.NewFromInt(1000), "USD"),
		Price:           decimal.NewFromInt(100),
		ValuationMethod: models.ValuationMarkToMarket,
		ValuationSource: models.ValuationSourceCustodian,
	}
	if err := db.Create(snap).Error; err != nil {
		t.Fatalf("failed to create test snapshot: %v", err)
	}
	return snap
}

// CreateTestFXRate creates a mid rate for base/quote on date.
func CreateTestFXRate(t *testing.T, db *gorm.DB, base, quote string, date time.Time, rate string) *models.FXRate {
	t.Helper()

	fx := &models.FXRate{
		BaseCurrency:  base,
		QuoteCurrency: quote,
		RateType:      models.FXRateMid,
		Date:          models.DateOnlyUTC(date),
		Rate:          decimal.RequireFromString(rate),
		Source:        "test",
	}
	if err := db.Create(fx).Error; err != nil {
		t.Fatalf("failed to create test fx rate: %v", err)
	}
	return fx
}

// CreateTestInstrumentPrice creates a close price for the instrument on date.
func CreateTestInstrumentPrice(t *testing.T, db *gorm.DB, orgID, instrumentID string, date time.Time) *models.InstrumentPrice {
	t.Helper()

	p := &models.InstrumentPrice{
		OrganizationID: orgID,
		InstrumentID:   instrumentID,
		Date:           models.DateOnlyUTC(date),
		PriceType:      models.PriceTypeClose,
		Price:          decimal.NewFromInt(100),
		Currency:       "USD",
		Source:         "test",
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("failed to create test instrument price: %v", err)
	}
	return p
}

// CreateTestYieldCurve creates a curve in currency with a single 1Y point on date.
func CreateTestYieldCurve(t *testing.T, db *gorm.DB, orgID, currency string, date time.Time) *models.YieldCurve {
	t.Helper()

	curve := &models.YieldCurve{
		TenantBase: models.TenantBase{OrganizationID: orgID},
		Name:       fmt.Sprintf("Test Curve %d", nextID()),
		CurveType:  "government",
		Currency:   currency,
	}
	if err := db.Create(curve).Error; err != nil {
		t.Fatalf("failed to create test yield curve: %v", err)
	}

	point := &models.YieldCurvePoint{
		OrganizationID: orgID,
		CurveID:        curve.ID,
		Date:           models.DateOnlyUTC(date),
		Tenor:          "1Y",
		TenorDays:      365,
		Rate:           decimal.RequireFromString("0.0325"),
	}
	if err := db.Create(point).Error; err != nil {
		t.Fatalf("failed to create test yield curve point: %v", err)
	}
	return curve
}
