package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gorm.io/gorm"

	apperrors "backoffice/internal/errors"
	"backoffice/internal/ingestion"
	"backoffice/internal/logger"
	"backoffice/internal/metrics"
	"backoffice/internal/models"
	"backoffice/internal/money"
)

// preflightService checks an import's reference data without writing anything.
type preflightService struct {
	db          *gorm.DB
	imports     PortfolioImportServicer
	instruments InstrumentServicer
	fxRates     FXRateServicer
	metrics     *metrics.Registry
}

// NewPreflightService creates a new PreflightServicer. m may be nil.
func NewPreflightService(
	db *gorm.DB,
	imports PortfolioImportServicer,
	instruments InstrumentServicer,
	fxRates FXRateServicer,
	m *metrics.Registry,
) PreflightServicer {
	return &preflightService{
		db:          db,
		imports:     imports,
		instruments: instruments,
		fxRates:     fxRates,
		metrics:     m,
	}
}

// Preflight reads the import's file and reports the reference data it is
// missing. Unknown instruments and missing FX rates make the import not
// ready; missing prices and curves are reported for information only.
func (s *preflightService) Preflight(ctx context.Context, importID string) (*PreflightResult, error) {
	imp, err := s.imports.GetImport(ctx, importID)
	if err != nil {
		return nil, err
	}
	if imp.Portfolio == nil {
		return nil, apperrors.ErrPortfolioNotFound
	}

	table, err := readImportFile(imp)
	if err != nil {
		return nil, err
	}

	persisted, err := ingestion.ParseMapping(imp.MappingJSON)
	if err != nil {
		logger.Get().Warnw("ignoring unreadable stored mapping", "import_id", imp.ID, "error", err)
		persisted = nil
	}
	mapping := ingestion.DetectMapping(table.Columns, persisted)

	result := &PreflightResult{
		Ready:              true,
		MissingInstruments: []string{},
		MissingFXRates:     []MissingFXRate{},
		MissingPrices:      []MissingPrice{},
		MissingCurves:      []MissingCurve{},
		Warnings:           []string{},
	}
	defer func() { s.metrics.Preflight(result.Ready) }()

	identifierCol, ok := mapping.Column(ingestion.FieldInstrumentIdentifier)
	if !ok {
		result.Ready = false
		result.Warnings = append(result.Warnings, "Cannot validate instruments: instrument_identifier column not found")
		return result, nil
	}

	identifiers := normalizeIdentifiers(columnValues(table, identifierCol))
	resolved, err := s.instruments.Resolve(ctx, identifiers)
	if err != nil {
		return nil, err
	}
	for _, id := range identifiers {
		if _, ok := resolved[id]; !ok {
			result.MissingInstruments = append(result.MissingInstruments, id)
		}
	}
	if len(result.MissingInstruments) > 0 {
		result.Ready = false
	}

	asOf := imp.AsOfDate
	date := asOf.Format(models.DateLayout)
	base := money.NormalizeCurrency(imp.Portfolio.BaseCurrency)

	if currencyCol, ok := mapping.Column(ingestion.FieldCurrency); ok {
		for _, currency := range uniqueCurrencies(columnValues(table, currencyCol)) {
			if currency == base {
				continue
			}
			has, err := s.fxRates.Has(ctx, currency, base, asOf)
			if err != nil {
				return nil, err
			}
			if !has {
				result.MissingFXRates = append(result.MissingFXRates, MissingFXRate{From: currency, To: base, Date: date})
				result.Ready = false
			}
		}
	}

	instruments := make([]*models.Instrument, 0, len(resolved))
	for _, id := range identifiers {
		if inst, ok := resolved[id]; ok {
			instruments = append(instruments, inst)
		}
	}

	missingPrices, err := s.missingPrices(ctx, imp, instruments)
	if err != nil {
		return nil, err
	}
	result.MissingPrices = missingPrices

	missingCurves, err := s.missingCurves(ctx, imp, instruments)
	if err != nil {
		return nil, err
	}
	result.MissingCurves = missingCurves

	if len(missingPrices) > 0 {
		result.Warnings = append(result.Warnings, fmt.Sprintf("%d instruments have no close price on %s", len(missingPrices), date))
	}
	if len(missingCurves) > 0 {
		result.Warnings = append(result.Warnings, fmt.Sprintf("%d currencies have fixed income holdings but no yield curve on %s", len(missingCurves), date))
	}

	return result, nil
}

func (s *preflightService) missingPrices(ctx context.Context, imp *models.PortfolioImport, instruments []*models.Instrument) ([]MissingPrice, error) {
	missing := []MissingPrice{}
	if len(instruments) == 0 {
		return missing, nil
	}

	ids := make([]string, 0, len(instruments))
	for _, inst := range instruments {
		ids = append(ids, inst.ID)
	}

	var priced []string
	if err := s.db.WithContext(ctx).Model(&models.InstrumentPrice{}).
		Where("organization_id = ? AND instrument_id IN ? AND date = ? AND price_type = ?",
			imp.OrganizationID, ids, models.DateOnlyUTC(imp.AsOfDate), models.PriceTypeClose).
		Distinct().
		Pluck("instrument_id", &priced).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	has := make(map[string]bool, len(priced))
	for _, id := range priced {
		has[id] = true
	}

	date := imp.AsOfDate.Format(models.DateLayout)
	for _, inst := range instruments {
		if has[inst.ID] {
			continue
		}
		identifier := inst.ISIN
		if identifier == "" {
			identifier = inst.Ticker
		}
		if identifier == "" {
			identifier = inst.ID
		}
		missing = append(missing, MissingPrice{InstrumentID: inst.ID, Identifier: identifier, Date: date})
	}
	return missing, nil
}

func (s *preflightService) missingCurves(ctx context.Context, imp *models.PortfolioImport, instruments []*models.Instrument) ([]MissingCurve, error) {
	missing := []MissingCurve{}

	currencies := make(map[string]struct{})
	for _, inst := range instruments {
		if strings.Contains(strings.ToLower(inst.InstrumentGroup), "fixed") {
			currencies[money.NormalizeCurrency(inst.Currency)] = struct{}{}
		}
	}
	if len(currencies) == 0 {
		return missing, nil
	}

	sorted := make([]string, 0, len(currencies))
	for c := range currencies {
		sorted = append(sorted, c)
	}
	sort.Strings(sorted)

	date := imp.AsOfDate.Format(models.DateLayout)
	for _, currency := range sorted {
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.YieldCurvePoint{}).
			Joins("JOIN yield_curves ON yield_curves.id = yield_curve_points.curve_id").
			Where("yield_curve_points.organization_id = ? AND yield_curves.currency = ? AND yield_curve_points.date = ?",
				imp.OrganizationID, currency, models.DateOnlyUTC(imp.AsOfDate)).
			Count(&count).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if count == 0 {
			missing = append(missing, MissingCurve{Currency: currency, Date: date})
		}
	}
	return missing, nil
}

// readImportFile reads and parses the stored file of an import.
func readImportFile(imp *models.PortfolioImport) (*ingestion.Table, error) {
	data, err := os.ReadFile(imp.FilePath)
	if err != nil {
		return nil, apperrors.WithMessage(apperrors.ErrFileRead, fmt.Sprintf("Failed to read file: %v", err))
	}
	name := imp.FileName
	if name == "" {
		name = filepath.Base(imp.FilePath)
	}
	table, err := ingestion.Parse(name, data, imp.SheetName)
	if err != nil {
		return nil, apperrors.WithMessage(apperrors.ErrFileRead, fmt.Sprintf("Failed to read file: %v", err))
	}
	return table, nil
}

// columnValues returns the non-blank cells of column, in row order.
func columnValues(table *ingestion.Table, column string) []string {
	values := make([]string, 0, len(table.Rows))
	for _, row := range table.Rows {
		if v, ok := row.Get(column); ok {
			values = append(values, v)
		}
	}
	return values
}

func uniqueCurrencies(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0)
	for _, v := range values {
		c := money.NormalizeCurrency(v)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
