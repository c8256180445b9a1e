// Package errors provides the structured error type shared by the services,
// the HTTP layer and the CLI. Service-layer failures are AppErrors so callers
// can branch on a stable code without parsing messages.
package errors

import "net/http"

// AppError represents a structured application error with an error code,
// human-readable message, HTTP status code, and optional internal error.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Is matches any AppError carrying the same code, so wrapped copies of a
// sentinel compare equal to it.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Wrap creates a new AppError with the same code/message/status but wraps an internal error.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// WithMessage creates a new AppError with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

// Authentication & tenancy errors.
var (
	ErrUnauthorized          = &AppError{Code: "UNAUTHORIZED", Message: "Authentication required", StatusCode: http.StatusUnauthorized}
	ErrMissingTenantContext  = &AppError{Code: "MISSING_TENANT_CONTEXT", Message: "No organization is set for this operation", StatusCode: http.StatusUnauthorized}
	ErrOrganizationNotFound  = &AppError{Code: "ORGANIZATION_NOT_FOUND", Message: "Organization not found", StatusCode: http.StatusNotFound}
	ErrPipelineNotConfigured = &AppError{Code: "PIPELINE_NOT_CONFIGURED", Message: "Pipeline endpoints are not configured", StatusCode: http.StatusServiceUnavailable}
	ErrInvalidAPIKey         = &AppError{Code: "INVALID_API_KEY", Message: "Invalid or missing API key", StatusCode: http.StatusUnauthorized}
)

// General errors.
var (
	ErrInvalidInput   = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrNotFound       = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
)

// Portfolio errors.
var (
	ErrPortfolioNotFound   = &AppError{Code: "PORTFOLIO_NOT_FOUND", Message: "Portfolio not found", StatusCode: http.StatusNotFound}
	ErrInstrumentNotFound  = &AppError{Code: "INSTRUMENT_NOT_FOUND", Message: "Instrument not found", StatusCode: http.StatusNotFound}
	ErrDuplicateInstrument = &AppError{Code: "DUPLICATE_INSTRUMENT", Message: "An instrument with this ISIN or ticker already exists", StatusCode: http.StatusConflict}
)

// Import pipeline errors.
var (
	ErrImportNotFound         = &AppError{Code: "IMPORT_NOT_FOUND", Message: "Portfolio import not found", StatusCode: http.StatusNotFound}
	ErrImportAlreadyProcessed = &AppError{Code: "IMPORT_ALREADY_PROCESSED", Message: "Portfolio import has already been processed; create a new import to retry", StatusCode: http.StatusConflict}
	ErrDuplicateImport        = &AppError{Code: "DUPLICATE_IMPORT", Message: "Duplicate import detected", StatusCode: http.StatusConflict}
	ErrFileRead               = &AppError{Code: "FILE_READ_ERROR", Message: "Failed to read file", StatusCode: http.StatusUnprocessableEntity}
	ErrMappingIncomplete      = &AppError{Code: "MAPPING_INCOMPLETE", Message: "Missing required column mappings", StatusCode: http.StatusUnprocessableEntity}
	ErrNoMissingInstruments   = &AppError{Code: "NO_MISSING_INSTRUMENTS", Message: "No missing instrument errors found for this import", StatusCode: http.StatusNotFound}
	ErrQueueFull              = &AppError{Code: "QUEUE_FULL", Message: "Import queue is full, try again later", StatusCode: http.StatusServiceUnavailable}
)

// Market data errors.
var (
	ErrFXProvider = &AppError{Code: "FX_PROVIDER_ERROR", Message: "Failed to fetch FX rates", StatusCode: http.StatusBadGateway}
)
