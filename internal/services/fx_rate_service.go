package services

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "backoffice/internal/errors"
	"backoffice/internal/logger"
	"backoffice/internal/models"
	"backoffice/internal/money"
)

// FXRateFetcher returns the price of one unit of from in to.
type FXRateFetcher interface {
	Rate(ctx context.Context, from, to string) (decimal.Decimal, error)
}

// fxRateService maintains the global FX rate table.
type fxRateService struct {
	db      *gorm.DB
	fetcher FXRateFetcher
	audit   AuditServicer
	source  string
}

// NewFXRateService creates a new FXRateServicer. fetcher may be nil when
// only lookups are needed; audit may be nil.
func NewFXRateService(db *gorm.DB, fetcher FXRateFetcher, audit AuditServicer, source string) FXRateServicer {
	return &fxRateService{db: db, fetcher: fetcher, audit: audit, source: source}
}

// Has reports whether a mid rate for base/quote exists on date.
func (s *fxRateService) Has(ctx context.Context, base, quote string, date time.Time) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.FXRate{}).
		Where("base_currency = ? AND quote_currency = ? AND rate_type = ? AND date = ?",
			money.NormalizeCurrency(base), money.NormalizeCurrency(quote), models.FXRateMid, models.DateOnlyUTC(date)).
		Count(&count).Error; err != nil {
		return false, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return count > 0, nil
}

// Sync fetches and stores mid rates from each currency to quote for date.
// Pairs already stored are skipped. Individual fetch failures are reported
// in the result; the call fails only when every fetch failed.
func (s *fxRateService) Sync(ctx context.Context, currencies []string, quote string, date time.Time) (*FXSyncResult, error) {
	if s.fetcher == nil {
		return nil, apperrors.ErrPipelineNotConfigured
	}

	quote = money.NormalizeCurrency(quote)
	if !money.IsKnownCurrency(quote) {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, fmt.Sprintf("Invalid quote currency: %s", quote))
	}
	if len(currencies) == 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Currencies are required")
	}
	if date.IsZero() {
		date = time.Now()
	}
	day := models.DateOnlyUTC(date)

	result := &FXSyncResult{Date: day.Format(models.DateLayout), Quote: quote, Failed: []string{}}
	attempted := 0
	for _, currency := range uniqueCurrencies(currencies) {
		if currency == quote {
			continue
		}
		if !money.IsKnownCurrency(currency) {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, fmt.Sprintf("Invalid currency: %s", currency))
		}

		has, err := s.Has(ctx, currency, quote, day)
		if err != nil {
			return nil, err
		}
		if has {
			result.Skipped++
			continue
		}

		attempted++
		r, err := s.fetcher.Rate(ctx, currency, quote)
		if err != nil {
			logger.Get().Warnw("fx rate fetch failed", "from", currency, "to", quote, "error", err)
			result.Failed = append(result.Failed, currency)
			continue
		}

		row := &models.FXRate{
			BaseCurrency:  currency,
			QuoteCurrency: quote,
			RateType:      models.FXRateMid,
			Date:          day,
			Rate:          r,
			Source:        s.source,
		}
		res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(row)
		if res.Error != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, res.Error)
		}
		if res.RowsAffected > 0 {
			result.Created++
		} else {
			result.Skipped++
		}
	}

	if attempted > 0 && len(result.Failed) == attempted {
		return nil, apperrors.WithMessage(apperrors.ErrFXProvider,
			fmt.Sprintf("Failed to fetch FX rates for %v", result.Failed))
	}

	if s.audit != nil {
		s.audit.Log(ctx, AuditFXRatesSynced, "fx_rate", "", "", map[string]any{
			"date":    result.Date,
			"quote":   quote,
			"created": result.Created,
			"skipped": result.Skipped,
			"failed":  result.Failed,
		})
	}
	return result, nil
}
