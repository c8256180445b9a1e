package ingestion

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"backoffice/internal/models"
	"backoffice/internal/money"
)

// Validation error codes stored on import error rows.
const (
	CodeMissingInstrument      = "MISSING_INSTRUMENT"
	CodeMissingQuantity        = "MISSING_QUANTITY"
	CodeInvalidQuantityValue   = "INVALID_QUANTITY_VALUE"
	CodeMissingCurrency        = "MISSING_CURRENCY"
	CodeInvalidCurrency        = "INVALID_CURRENCY"
	CodeInvalidPriceValue      = "INVALID_PRICE_VALUE"
	CodeMissingMarketValue     = "MISSING_MARKET_VALUE"
	CodePriceComputationError  = "PRICE_COMPUTATION_ERROR"
	CodeInvalidMarketValue     = "INVALID_MARKET_VALUE"
	CodeMissingBookValue       = "MISSING_BOOK_VALUE"
	CodeInvalidBookValue       = "INVALID_BOOK_VALUE"
	CodeMissingValuationSource = "MISSING_VALUATION_SOURCE"
	CodeInvalidValuationSource = "INVALID_VALUATION_SOURCE"
	CodeInvalidAccruedInterest = "INVALID_ACCRUED_INTEREST"
)

// ValidationError is a business rule violation on one row.
type ValidationError struct {
	Field   Field
	Code    string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(f Field, code, msg string) *ValidationError {
	return &ValidationError{Field: f, Code: code, Message: msg}
}

// NormalizedRow is a row that passed every rule, with price and market
// value both resolved.
type NormalizedRow struct {
	Identifier      string
	Quantity        decimal.Decimal
	Currency        string
	Price           decimal.Decimal
	MarketValue     money.Money
	BookValue       money.Money
	AccruedInterest *money.Money
	ValuationSource models.ValuationSource
	// ForeignCurrency is set when Currency differs from the portfolio base currency.
	ForeignCurrency bool
	// Warnings lists data corrections applied silently, such as an amount
	// re-tagged from its own currency to the row currency.
	Warnings []string
}

// ValidateRow applies the position rules in order and stops at the first
// violation. Market value is taken as given, or derived as quantity × price;
// a missing price is derived as market value ÷ quantity.
func ValidateRow(row ExtractedRow, baseCurrency string) (NormalizedRow, error) {
	var out NormalizedRow

	if row.Identifier == "" {
		return out, invalid(FieldInstrumentIdentifier, CodeMissingInstrument, "instrument_identifier is required")
	}
	if !row.Quantity.Valid {
		return out, invalid(FieldQuantity, CodeMissingQuantity, "quantity is required")
	}
	if strings.TrimSpace(row.Currency) == "" {
		return out, invalid(FieldCurrency, CodeMissingCurrency, "currency is required")
	}

	quantity := row.Quantity.Decimal
	if !quantity.IsPositive() {
		return out, invalid(FieldQuantity, CodeInvalidQuantityValue, "quantity must be positive")
	}

	currency := money.NormalizeCurrency(row.Currency)
	if len(currency) != 3 {
		return out, invalid(FieldCurrency, CodeInvalidCurrency, "currency must be a 3-character ISO code")
	}

	if row.Price.Valid && !row.Price.Decimal.IsPositive() {
		return out, invalid(FieldPrice, CodeInvalidPriceValue, "price must be positive")
	}

	var marketValue money.Money
	switch {
	case row.MarketValue != nil:
		marketValue = *row.MarketValue
		if marketValue.Currency == "" {
			marketValue.Currency = currency
		}
	case row.Price.Valid:
		marketValue = money.New(quantity.Mul(row.Price.Decimal), currency)
	default:
		return out, invalid(FieldMarketValue, CodeMissingMarketValue,
			"market_value is required, or both quantity and price must be provided")
	}

	price := row.Price.Decimal
	if !row.Price.Valid {
		derived, err := marketValue.Div(quantity)
		if err != nil {
			return out, invalid(FieldPrice, CodePriceComputationError, "Cannot compute price: division error")
		}
		price = derived.Amount
	}

	if !marketValue.IsPositive() {
		return out, invalid(FieldMarketValue, CodeInvalidMarketValue, "market_value must be positive")
	}

	if row.BookValue == nil {
		return out, invalid(FieldBookValue, CodeMissingBookValue, "book_value is required")
	}
	if !row.BookValue.IsPositive() {
		return out, invalid(FieldBookValue, CodeInvalidBookValue, "book_value must be positive")
	}
	bookValue, warning := retag(FieldBookValue, *row.BookValue, currency)
	out.addWarning(warning)

	source := strings.ToLower(strings.TrimSpace(row.ValuationSource))
	if source == "" {
		return out, invalid(FieldValuationSource, CodeMissingValuationSource, "valuation_source is required")
	}
	if !models.ValuationSource(source).Valid() {
		return out, invalid(FieldValuationSource, CodeInvalidValuationSource,
			fmt.Sprintf("Invalid valuation_source: %s. Valid: %v", source, models.ValuationSources))
	}

	if row.AccruedInterest != nil {
		if row.AccruedInterest.IsNegative() {
			return out, invalid(FieldAccruedInterest, CodeInvalidAccruedInterest, "accrued_interest must be non-negative")
		}
		accrued, warning := retag(FieldAccruedInterest, *row.AccruedInterest, currency)
		out.addWarning(warning)
		out.AccruedInterest = &accrued
	}

	out.Identifier = row.Identifier
	out.Quantity = quantity
	out.Currency = currency
	out.Price = price
	out.MarketValue = marketValue
	out.BookValue = bookValue
	out.ValuationSource = models.ValuationSource(source)
	out.ForeignCurrency = baseCurrency != "" && currency != money.NormalizeCurrency(baseCurrency)
	return out, nil
}

// retag moves an amount onto the row currency. The amount is kept as is;
// a differing explicit currency produces a warning.
func retag(f Field, m money.Money, currency string) (money.Money, string) {
	if m.Currency == "" || m.Currency == currency {
		return m.Retag(currency), ""
	}
	return m.Retag(currency), fmt.Sprintf("%s re-tagged from %s to row currency %s without conversion", f, m.Currency, currency)
}

func (r *NormalizedRow) addWarning(w string) {
	if w != "" {
		r.Warnings = append(r.Warnings, w)
	}
}
