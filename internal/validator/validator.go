// Package validator provides custom validation functions for Gin's binding engine.
package validator

import (
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"backoffice/internal/models"
	"backoffice/internal/money"
)

// Register registers all custom validators with the Gin binding engine.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		RegisterOn(v)
	}
}

// RegisterOn registers the custom validators on v.
func RegisterOn(v *validator.Validate) {
	_ = v.RegisterValidation("iso4217", validateISO4217)
	_ = v.RegisterValidation("valuation_source", validateValuationSource)
	_ = v.RegisterValidation("valuation_method", validateValuationMethod)
	_ = v.RegisterValidation("import_source_type", validateImportSourceType)
	_ = v.RegisterValidation("import_status", validateImportStatus)
	_ = v.RegisterValidation("price_type", validatePriceType)
	_ = v.RegisterValidation("iso_date", validateISODate)
}

// validateISO4217 accepts upper-case codes known to the currency table.
func validateISO4217(fl validator.FieldLevel) bool {
	code := fl.Field().String()
	return code == money.NormalizeCurrency(code) && money.IsKnownCurrency(code)
}

func validateValuationSource(fl validator.FieldLevel) bool {
	return models.ValuationSource(fl.Field().String()).Valid()
}

func validateValuationMethod(fl validator.FieldLevel) bool {
	switch models.ValuationMethod(fl.Field().String()) {
	case models.ValuationMarkToMarket, models.ValuationMarkToModel,
		models.ValuationExternalAppraisal, models.ValuationManualDeclared:
		return true
	}
	return false
}

func validateImportSourceType(fl validator.FieldLevel) bool {
	return models.ImportSourceType(fl.Field().String()).Valid()
}

func validateImportStatus(fl validator.FieldLevel) bool {
	switch models.ImportStatus(fl.Field().String()) {
	case models.ImportStatusPending, models.ImportStatusParsing, models.ImportStatusValidating,
		models.ImportStatusProcessing, models.ImportStatusImporting, models.ImportStatusSuccess,
		models.ImportStatusFailed, models.ImportStatusPartial:
		return true
	}
	return false
}

func validatePriceType(fl validator.FieldLevel) bool {
	switch models.PriceType(fl.Field().String()) {
	case models.PriceTypeClose, models.PriceTypeBid, models.PriceTypeAsk, models.PriceTypeMid:
		return true
	}
	return false
}

func validateISODate(fl validator.FieldLevel) bool {
	_, err := time.Parse(models.DateLayout, fl.Field().String())
	return err == nil
}
