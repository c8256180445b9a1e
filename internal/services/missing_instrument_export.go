package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"gorm.io/gorm"

	apperrors "backoffice/internal/errors"
	"backoffice/internal/ingestion"
	"backoffice/internal/logger"
	"backoffice/internal/models"
)

// MissingInstrumentColumns is the header of the instrument template.
var MissingInstrumentColumns = []string{
	"instrument_identifier",
	"name",
	"instrument_group_code",
	"instrument_type_code",
	"currency",
	"issuer_code",
	"valuation_method",
	"isin",
	"ticker",
	"country",
	"sector",
}

var notFoundPattern = regexp.MustCompile(`Instrument '([^']+)' not found`)

// rawIdentifierKeys are tried in order on the raw row when the message has no identifier.
var rawIdentifierKeys = []string{"instrument_identifier", "isin", "ticker", "ISIN", "TICKER"}

const utf8BOM = "\ufeff"

// missingInstrumentExporter builds a CSV template of unknown instruments.
type missingInstrumentExporter struct {
	db        *gorm.DB
	imports   PortfolioImportServicer
	preflight PreflightServicer
}

// NewMissingInstrumentExporter creates a new MissingInstrumentExporter.
func NewMissingInstrumentExporter(db *gorm.DB, imports PortfolioImportServicer, preflight PreflightServicer) MissingInstrumentExporter {
	return &missingInstrumentExporter{db: db, imports: imports, preflight: preflight}
}

// Export lists the identifiers an import could not resolve, taken from its
// INSTRUMENT_NOT_FOUND row errors or, before any run, from preflight. The
// CSV starts with a UTF-8 byte-order mark so spreadsheet tools detect the
// encoding.
func (e *missingInstrumentExporter) Export(ctx context.Context, importID string) (*ExportFile, error) {
	imp, err := e.imports.GetImport(ctx, importID)
	if err != nil {
		return nil, err
	}

	var rows []models.PortfolioImportError
	if err := e.db.WithContext(ctx).
		Where("organization_id = ? AND portfolio_import_id = ? AND error_type = ? AND error_code = ?",
			imp.OrganizationID, imp.ID, models.ImportErrorReferenceData, models.ErrorCodeInstrumentNotFound).
		Order("row_number ASC").
		Find(&rows).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	identifiers := make(map[string]struct{})
	if len(rows) > 0 {
		for i := range rows {
			if id := identifierFromError(&rows[i]); id != "" {
				identifiers[id] = struct{}{}
			}
		}
	} else {
		result, err := e.preflight.Preflight(ctx, imp.ID)
		if err != nil {
			logger.Get().Warnw("preflight failed during missing instrument export", "import_id", imp.ID, "error", err)
		} else {
			for _, id := range result.MissingInstruments {
				identifiers[id] = struct{}{}
			}
		}
	}

	if len(identifiers) == 0 {
		return nil, apperrors.WithMessage(apperrors.ErrNoMissingInstruments,
			"No missing instrument errors found. Run preflight validation first or attempt an import to generate error records.")
	}

	sorted := make([]string, 0, len(identifiers))
	for id := range identifiers {
		sorted = append(sorted, id)
	}
	sort.Strings(sorted)

	content, err := renderMissingInstruments(sorted)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return &ExportFile{
		Name:        fmt.Sprintf("missing_instruments_import_%s.csv", imp.ID),
		ContentType: "text/csv; charset=utf-8",
		Content:     content,
	}, nil
}

func renderMissingInstruments(identifiers []string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(utf8BOM)

	w := csv.NewWriter(&buf)
	if err := w.Write(MissingInstrumentColumns); err != nil {
		return nil, err
	}
	for _, id := range identifiers {
		isin, ticker := "", id
		if looksLikeISIN(id) {
			isin, ticker = id, ""
		}
		record := []string{id, "", "", "", "", "", string(models.ValuationMarkToMarket), isin, ticker, "", ""}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// looksLikeISIN is a loose check: at least ten characters, the first two letters.
func looksLikeISIN(id string) bool {
	if utf8.RuneCountInString(id) < 10 {
		return false
	}
	n := 0
	for _, r := range id {
		if n == 2 {
			break
		}
		if !unicode.IsLetter(r) {
			return false
		}
		n++
	}
	return true
}

// identifierFromError recovers the identifier from the error message, or
// from the raw row when the message does not carry it.
func identifierFromError(row *models.PortfolioImportError) string {
	if m := notFoundPattern.FindStringSubmatch(row.ErrorMessage); m != nil {
		return ingestion.NormalizeIdentifier(m[1])
	}

	if len(row.RawRowData) == 0 {
		return ""
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(row.RawRowData, &raw); err != nil {
		return ""
	}
	for _, key := range rawIdentifierKeys {
		if v, ok := raw[key]; ok && v != nil {
			if s := strings.TrimSpace(fmt.Sprint(v)); s != "" {
				return strings.ToUpper(s)
			}
		}
	}
	return ""
}
