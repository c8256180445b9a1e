package validator

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
)

func TestCustomValidators(t *testing.T) {
	v := validator.New()
	RegisterOn(v)

	tests := []struct {
		tag   string
		value string
		valid bool
	}{
		{"iso4217", "USD", true},
		{"iso4217", "MYR", true},
		{"iso4217", "usd", false},
		{"iso4217", "ABC", false},
		{"valuation_source", "custodian", true},
		{"valuation_source", "broker", false},
		{"valuation_method", "mark_to_model", true},
		{"valuation_method", "guess", false},
		{"import_source_type", "manual", true},
		{"import_source_type", "fax", false},
		{"import_status", "partial", true},
		{"import_status", "done", false},
		{"price_type", "close", true},
		{"price_type", "last", false},
		{"iso_date", "2026-03-31", true},
		{"iso_date", "31/03/2026", false},
	}

	for _, tt := range tests {
		t.Run(tt.tag+"_"+tt.value, func(t *testing.T) {
			err := v.Var(tt.value, tt.tag)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
