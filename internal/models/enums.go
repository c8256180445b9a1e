package models

// ImportStatus is the lifecycle state of a PortfolioImport.
type ImportStatus string

const (
	ImportStatusPending    ImportStatus = "pending"
	ImportStatusParsing    ImportStatus = "parsing"
	ImportStatusValidating ImportStatus = "validating"
	ImportStatusProcessing ImportStatus = "processing"
	ImportStatusImporting  ImportStatus = "importing"
	ImportStatusSuccess    ImportStatus = "success"
	ImportStatusFailed     ImportStatus = "failed"
	ImportStatusPartial    ImportStatus = "partial"
)

// IsTerminal reports whether the pipeline is done with an import in this state.
func (s ImportStatus) IsTerminal() bool {
	switch s {
	case ImportStatusSuccess, ImportStatusFailed, ImportStatusPartial:
		return true
	}
	return false
}

// ImportSourceType describes where an uploaded file came from.
type ImportSourceType string

const (
	ImportSourceCustodian ImportSourceType = "custodian"
	ImportSourceInternal  ImportSourceType = "internal"
	ImportSourceManual    ImportSourceType = "manual"
	ImportSourceExternal  ImportSourceType = "external"
)

// Valid reports whether s is a known source type.
func (s ImportSourceType) Valid() bool {
	switch s {
	case ImportSourceCustodian, ImportSourceInternal, ImportSourceManual, ImportSourceExternal:
		return true
	}
	return false
}

// ValuationSource records who supplied a position valuation.
type ValuationSource string

const (
	ValuationSourceInternal  ValuationSource = "internal"
	ValuationSourceExternal  ValuationSource = "external"
	ValuationSourceCustodian ValuationSource = "custodian"
	ValuationSourceManual    ValuationSource = "manual"
	ValuationSourceMarket    ValuationSource = "market"
)

// ValuationSources lists every accepted valuation source in display order.
var ValuationSources = []ValuationSource{
	ValuationSourceInternal,
	ValuationSourceExternal,
	ValuationSourceCustodian,
	ValuationSourceManual,
	ValuationSourceMarket,
}

// Valid reports whether s is a known valuation source.
func (s ValuationSource) Valid() bool {
	for _, v := range ValuationSources {
		if v == s {
			return true
		}
	}
	return false
}

// ValuationMethod is how a position value was derived.
type ValuationMethod string

const (
	ValuationMarkToMarket      ValuationMethod = "mark_to_market"
	ValuationMarkToModel       ValuationMethod = "mark_to_model"
	ValuationExternalAppraisal ValuationMethod = "external_appraisal"
	ValuationManualDeclared    ValuationMethod = "manual_declared"
)

// ImportErrorType classifies a row-level import failure.
type ImportErrorType string

const (
	ImportErrorValidation    ImportErrorType = "validation"
	ImportErrorFormat        ImportErrorType = "format"
	ImportErrorBusinessRule  ImportErrorType = "business_rule"
	ImportErrorReferenceData ImportErrorType = "reference_data"
	ImportErrorSystem        ImportErrorType = "system"
)

// Row-level error codes set by the orchestrator itself. Validation codes
// come from the ingestion package.
const (
	ErrorCodeInstrumentNotFound = "INSTRUMENT_NOT_FOUND"
	ErrorCodeDuplicateSnapshot  = "DUPLICATE_SNAPSHOT"
	ErrorCodeFormat             = "FORMAT_ERROR"
	ErrorCodeSystem             = "SYSTEM_ERROR"
)

// FXRateType distinguishes quotes of the same currency pair.
type FXRateType string

const (
	FXRateMid FXRateType = "mid"
	FXRateBid FXRateType = "bid"
	FXRateAsk FXRateType = "ask"
)

// PriceType distinguishes instrument price observations.
type PriceType string

const (
	PriceTypeClose PriceType = "close"
	PriceTypeBid   PriceType = "bid"
	PriceTypeAsk   PriceType = "ask"
	PriceTypeMid   PriceType = "mid"
)
