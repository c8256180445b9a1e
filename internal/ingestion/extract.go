package ingestion

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"backoffice/internal/money"
)

// ExtractedRow holds the typed cells of one row before business rules run.
// Absent cells stay zero-valued (empty string, invalid NullDecimal, nil).
type ExtractedRow struct {
	Identifier string
	Quantity   decimal.NullDecimal
	Currency   string
	Price      decimal.NullDecimal
	// MarketValue, BookValue and AccruedInterest keep an explicit currency
	// when the cell carried one ("1000 USD"); an empty Currency means a bare
	// amount in the row currency.
	MarketValue     *money.Money
	BookValue       *money.Money
	AccruedInterest *money.Money
	ValuationSource string
}

// FormatError reports a cell that could not be converted to its type.
type FormatError struct {
	Field  Field
	Column string
	Value  string
	Err    error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("Invalid %s: %q", e.Field, e.Value)
}

func (e *FormatError) Unwrap() error { return e.Err }

// Extract converts the mapped cells of row into typed values.
//
// Quantity and book_value are required numerics: an unparseable value is a
// FormatError. Price, market_value and accrued_interest are optional and an
// unparseable value is treated as absent. Missing cells are left for
// ValidateRow to report. When no currency column is mapped the portfolio
// base currency applies.
func Extract(row RawRow, m Mapping, baseCurrency string) (ExtractedRow, error) {
	var out ExtractedRow

	if v, ok := cell(row, m, FieldInstrumentIdentifier); ok {
		out.Identifier = NormalizeIdentifier(v)
	}

	if v, ok := cell(row, m, FieldQuantity); ok {
		q, err := ParseDecimal(v)
		if err != nil {
			return out, formatError(m, FieldQuantity, v, err)
		}
		out.Quantity = decimal.NewNullDecimal(q)
	}

	if _, mapped := m.Column(FieldCurrency); mapped {
		out.Currency, _ = cell(row, m, FieldCurrency)
	} else {
		out.Currency = baseCurrency
	}

	if v, ok := cell(row, m, FieldPrice); ok {
		if p, err := ParseDecimal(v); err == nil {
			out.Price = decimal.NewNullDecimal(p)
		}
	}

	if v, ok := cell(row, m, FieldMarketValue); ok {
		if mv, err := ParseAmount(v); err == nil {
			out.MarketValue = &mv
		}
	}

	if v, ok := cell(row, m, FieldBookValue); ok {
		bv, err := ParseAmount(v)
		if err != nil {
			return out, formatError(m, FieldBookValue, v, err)
		}
		out.BookValue = &bv
	}

	if v, ok := cell(row, m, FieldValuationSource); ok {
		out.ValuationSource = v
	}

	if v, ok := cell(row, m, FieldAccruedInterest); ok {
		if ai, err := ParseAmount(v); err == nil {
			out.AccruedInterest = &ai
		}
	}

	return out, nil
}

func cell(row RawRow, m Mapping, f Field) (string, bool) {
	col, ok := m.Column(f)
	if !ok {
		return "", false
	}
	return row.Get(col)
}

func formatError(m Mapping, f Field, value string, err error) *FormatError {
	col, _ := m.Column(f)
	return &FormatError{Field: f, Column: col, Value: value, Err: err}
}

// NormalizeIdentifier trims and uppercases an ISIN or ticker.
func NormalizeIdentifier(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

var numberCleaner = strings.NewReplacer(",", "", " ", "", "\u00a0", "", "_", "")

// ParseDecimal parses a numeric cell exactly. Thousands separators are
// ignored and "(123)" is read as -123.
func ParseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = s[1 : len(s)-1]
	}
	s = numberCleaner.Replace(s)
	if s == "" {
		return decimal.Decimal{}, fmt.Errorf("empty number")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if neg {
		d = d.Neg()
	}
	return d, nil
}

// ParseAmount parses a money cell: a bare number, or a number with a
// three-letter currency code before or after it ("USD 1,000", "1000 usd").
func ParseAmount(s string) (money.Money, error) {
	fields := strings.Fields(s)
	if len(fields) == 2 {
		for i, code := range fields {
			if isCurrencyCode(code) {
				amount, err := ParseDecimal(fields[1-i])
				if err != nil {
					return money.Money{}, err
				}
				return money.New(amount, code), nil
			}
		}
	}
	amount, err := ParseDecimal(s)
	if err != nil {
		return money.Money{}, err
	}
	return money.Money{Amount: amount}, nil
}

func isCurrencyCode(s string) bool {
	if len(s) != 3 {
		return false
	}
	for _, r := range s {
		if (r < 'A' || r > 'Z') && (r < 'a' || r > 'z') {
			return false
		}
	}
	return true
}
