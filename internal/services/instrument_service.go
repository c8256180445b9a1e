package services

import (
	"context"
	"errors"
	"sort"
	"strings"

	"gorm.io/gorm"

	apperrors "backoffice/internal/errors"
	"backoffice/internal/ingestion"
	"backoffice/internal/models"
	"backoffice/internal/money"
	"backoffice/internal/pagination"
	"backoffice/internal/tenant"
)

// instrumentService handles instrument reference data.
type instrumentService struct {
	db *gorm.DB
}

// NewInstrumentService creates a new InstrumentServicer.
func NewInstrumentService(db *gorm.DB) InstrumentServicer {
	return &instrumentService{db: db}
}

// Resolve looks up instruments of the current organization in two batch
// queries: by ISIN, then by ticker for whatever is left. An ISIN match wins
// over a ticker match for the same identifier.
func (s *instrumentService) Resolve(ctx context.Context, identifiers []string) (map[string]*models.Instrument, error) {
	db, _, err := tenant.DB(ctx, s.db)
	if err != nil {
		return nil, err
	}

	wanted := normalizeIdentifiers(identifiers)
	resolved := make(map[string]*models.Instrument, len(wanted))
	if len(wanted) == 0 {
		return resolved, nil
	}

	var byISIN []models.Instrument
	if err := db.Where("UPPER(isin) IN ?", wanted).Find(&byISIN).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	for i := range byISIN {
		resolved[ingestion.NormalizeIdentifier(byISIN[i].ISIN)] = &byISIN[i]
	}

	remaining := make([]string, 0, len(wanted))
	for _, id := range wanted {
		if _, ok := resolved[id]; !ok {
			remaining = append(remaining, id)
		}
	}
	if len(remaining) == 0 {
		return resolved, nil
	}

	var byTicker []models.Instrument
	if err := db.Where("UPPER(ticker) IN ?", remaining).Find(&byTicker).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	for i := range byTicker {
		key := ingestion.NormalizeIdentifier(byTicker[i].Ticker)
		if _, ok := resolved[key]; !ok {
			resolved[key] = &byTicker[i]
		}
	}

	return resolved, nil
}

// normalizeIdentifiers trims, uppercases, drops empties and de-duplicates.
func normalizeIdentifiers(identifiers []string) []string {
	seen := make(map[string]struct{}, len(identifiers))
	out := make([]string, 0, len(identifiers))
	for _, raw := range identifiers {
		id := ingestion.NormalizeIdentifier(raw)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// CreateInstrument creates an instrument in the current organization.
func (s *instrumentService) CreateInstrument(ctx context.Context, in InstrumentInput) (*models.Instrument, error) {
	db, orgID, err := tenant.DB(ctx, s.db)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(in.Name) == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Name is required")
	}
	isin := ingestion.NormalizeIdentifier(in.ISIN)
	ticker := ingestion.NormalizeIdentifier(in.Ticker)
	if isin == "" && ticker == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "ISIN or ticker is required")
	}
	currency := money.NormalizeCurrency(in.Currency)
	if !money.IsKnownCurrency(currency) {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Currency must be an ISO 4217 code")
	}

	var existing int64
	q := db.Model(&models.Instrument{})
	switch {
	case isin != "" && ticker != "":
		q = q.Where("UPPER(isin) = ? OR UPPER(ticker) = ?", isin, ticker)
	case isin != "":
		q = q.Where("UPPER(isin) = ?", isin)
	default:
		q = q.Where("UPPER(ticker) = ?", ticker)
	}
	if err := q.Count(&existing).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if existing > 0 {
		return nil, apperrors.ErrDuplicateInstrument
	}

	method := in.ValuationMethod
	if method == "" {
		method = models.ValuationMarkToMarket
	}

	instrument := &models.Instrument{
		TenantBase:      models.TenantBase{OrganizationID: orgID},
		Name:            strings.TrimSpace(in.Name),
		ISIN:            isin,
		Ticker:          ticker,
		Currency:        currency,
		InstrumentGroup: in.InstrumentGroup,
		InstrumentType:  in.InstrumentType,
		IssuerCode:      in.IssuerCode,
		ValuationMethod: method,
		Country:         in.Country,
		Sector:          in.Sector,
	}

	if err := s.db.WithContext(ctx).Create(instrument).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return instrument, nil
}

// GetInstrument returns an instrument of the current organization.
func (s *instrumentService) GetInstrument(ctx context.Context, instrumentID string) (*models.Instrument, error) {
	db, _, err := tenant.DB(ctx, s.db)
	if err != nil {
		return nil, err
	}

	var instrument models.Instrument
	if err := db.Where("id = ?", instrumentID).First(&instrument).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrInstrumentNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &instrument, nil
}

// ListInstruments returns a paginated list of instruments ordered by name.
func (s *instrumentService) ListInstruments(ctx context.Context, page pagination.PageRequest) (*pagination.PageResponse[models.Instrument], error) {
	db, _, err := tenant.DB(ctx, s.db)
	if err != nil {
		return nil, err
	}
	page.Defaults()

	var totalItems int64
	base := db.Model(&models.Instrument{})
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var instruments []models.Instrument
	if err := base.Order("name ASC").Scopes(pagination.Paginate(page)).Find(&instruments).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(instruments, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// RecordPrices bulk-inserts price observations for an instrument, skipping
// any already recorded for the same date and price type.
func (s *instrumentService) RecordPrices(ctx context.Context, instrumentID string, prices []InstrumentPriceInput) (int, error) {
	if len(prices) == 0 {
		return 0, apperrors.WithMessage(apperrors.ErrInvalidInput, "Prices array is empty")
	}

	instrument, err := s.GetInstrument(ctx, instrumentID)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, p := range prices {
		if !p.Price.IsPositive() {
			return count, apperrors.WithMessage(apperrors.ErrInvalidInput, "Price must be positive")
		}
		priceType := p.PriceType
		if priceType == "" {
			priceType = models.PriceTypeClose
		}
		currency := money.NormalizeCurrency(p.Currency)
		if currency == "" {
			currency = instrument.Currency
		}

		row := models.InstrumentPrice{
			OrganizationID: instrument.OrganizationID,
			InstrumentID:   instrument.ID,
			Date:           models.DateOnlyUTC(p.Date),
			PriceType:      priceType,
			Price:          p.Price,
			Currency:       currency,
			Source:         p.Source,
		}
		result := s.db.WithContext(ctx).
			Where("instrument_id = ? AND date = ? AND price_type = ?", row.InstrumentID, row.Date, row.PriceType).
			FirstOrCreate(&row)
		if result.Error != nil {
			return count, apperrors.Wrap(apperrors.ErrInternalServer, result.Error)
		}
		if result.RowsAffected > 0 {
			count++
		}
	}

	return count, nil
}
