// Package ingestion turns spreadsheet rows into validated position records.
//
// It is free of persistence: readers produce RawRows, Extract types the
// mapped cells, and ValidateRow applies the business rules and derives the
// missing side of price and market value.
package ingestion

import (
	"encoding/json"
	"strings"
)

// Field is a canonical column of a holdings file.
type Field string

const (
	FieldInstrumentIdentifier Field = "instrument_identifier"
	FieldQuantity             Field = "quantity"
	FieldCurrency             Field = "currency"
	FieldPrice                Field = "price"
	FieldMarketValue          Field = "market_value"
	FieldBookValue            Field = "book_value"
	FieldValuationSource      Field = "valuation_source"
	FieldAccruedInterest      Field = "accrued_interest"
)

// RequiredFields must all be mapped.
var RequiredFields = []Field{
	FieldInstrumentIdentifier,
	FieldQuantity,
	FieldCurrency,
	FieldBookValue,
	FieldValuationSource,
}

// FlexibleFields need at least one of them mapped.
var FlexibleFields = []Field{FieldPrice, FieldMarketValue}

// OptionalFields may be absent.
var OptionalFields = []Field{FieldAccruedInterest}

// FlexibleRequirement is reported by ValidateMapping when no flexible field is mapped.
const FlexibleRequirement = "price or market_value"

// abbreviations lists the known short headers per field, tried after the
// exact and underscore-to-space matches.
var abbreviations = map[Field][]string{
	FieldInstrumentIdentifier: {"isin", "ticker", "instrument_id", "security_id"},
	FieldQuantity:             {"qty", "units", "shares", "nominal"},
	FieldPrice:                {"unit_price", "price_per_unit"},
	FieldMarketValue:          {"mv", "market_val", "current_value"},
	FieldBookValue:            {"cost", "cost_basis", "book_cost"},
	FieldValuationSource:      {"val_source", "source"},
	FieldAccruedInterest:      {"accrued", "ai"},
}

// Mapping maps canonical fields to source column names.
type Mapping map[Field]string

// Column returns the source column mapped to f.
func (m Mapping) Column(f Field) (string, bool) {
	col, ok := m[f]
	if !ok || col == "" {
		return "", false
	}
	return col, true
}

// JSON encodes the mapping for persistence on the import record.
func (m Mapping) JSON() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMapping decodes a persisted mapping. Empty input yields a nil mapping.
func ParseMapping(data []byte) (Mapping, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var m Mapping
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func allFields() []Field {
	fields := make([]Field, 0, len(RequiredFields)+len(FlexibleFields)+len(OptionalFields))
	fields = append(fields, RequiredFields...)
	fields = append(fields, FlexibleFields...)
	return append(fields, OptionalFields...)
}

// KnownField reports whether name is a canonical field.
func KnownField(name string) bool {
	for _, f := range allFields() {
		if string(f) == name {
			return true
		}
	}
	return false
}

// DetectMapping maps source columns onto canonical fields. A non-empty
// explicit mapping is returned unchanged. Otherwise each field is looked up
// by exact case-insensitive name, then with underscores as spaces, then by
// the abbreviation table. The first match wins.
func DetectMapping(columns []string, explicit Mapping) Mapping {
	if len(explicit) > 0 {
		return explicit
	}

	lookup := make(map[string]string, len(columns))
	for _, col := range columns {
		key := strings.ToLower(strings.TrimSpace(col))
		if _, seen := lookup[key]; !seen {
			lookup[key] = col
		}
	}

	mapping := make(Mapping)
	for _, field := range allFields() {
		if col, ok := matchField(field, lookup); ok {
			mapping[field] = col
		}
	}
	return mapping
}

func matchField(field Field, lookup map[string]string) (string, bool) {
	name := string(field)
	if col, ok := lookup[name]; ok {
		return col, true
	}
	if col, ok := lookup[strings.ReplaceAll(name, "_", " ")]; ok {
		return col, true
	}
	for _, abbr := range abbreviations[field] {
		if col, ok := lookup[abbr]; ok {
			return col, true
		}
	}
	return "", false
}

// ValidateMapping returns the names of required fields missing from the
// mapping, plus FlexibleRequirement when neither price nor market_value is
// mapped. A nil required list means RequiredFields. An empty result means
// the mapping is usable.
func ValidateMapping(m Mapping, required []Field) []string {
	if required == nil {
		required = RequiredFields
	}

	var missing []string
	for _, f := range required {
		if _, ok := m.Column(f); !ok {
			missing = append(missing, string(f))
		}
	}

	hasFlexible := false
	for _, f := range FlexibleFields {
		if _, ok := m.Column(f); ok {
			hasFlexible = true
			break
		}
	}
	if !hasFlexible {
		missing = append(missing, FlexibleRequirement)
	}
	return missing
}
