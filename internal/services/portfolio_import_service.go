package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "backoffice/internal/errors"
	"backoffice/internal/ingestion"
	"backoffice/internal/logger"
	"backoffice/internal/metrics"
	"backoffice/internal/models"
	"backoffice/internal/pagination"
	"backoffice/internal/tenant"
	"backoffice/internal/uuid"
)

// DefaultImportBatchSize is the insert batch size when none is configured.
const DefaultImportBatchSize = 500

// ImportConfig holds the tunables of the import pipeline.
type ImportConfig struct {
	UploadDir string
	BatchSize int
}

// portfolioImportService runs the snapshot ingestion pipeline.
type portfolioImportService struct {
	db          *gorm.DB
	instruments InstrumentServicer
	snapshots   PositionSnapshotServicer
	audit       AuditServicer
	metrics     *metrics.Registry
	cfg         ImportConfig
}

// NewPortfolioImportService creates a new PortfolioImportServicer.
// audit and m may be nil.
func NewPortfolioImportService(
	db *gorm.DB,
	instruments InstrumentServicer,
	snapshots PositionSnapshotServicer,
	audit AuditServicer,
	m *metrics.Registry,
	cfg ImportConfig,
) PortfolioImportServicer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultImportBatchSize
	}
	return &portfolioImportService{
		db:          db,
		instruments: instruments,
		snapshots:   snapshots,
		audit:       audit,
		metrics:     m,
		cfg:         cfg,
	}
}

// CreateImport stores an uploaded file and creates a pending import for it.
func (s *portfolioImportService) CreateImport(ctx context.Context, in CreateImportInput) (*models.PortfolioImport, error) {
	db, orgID, err := tenant.DB(ctx, s.db)
	if err != nil {
		return nil, err
	}

	if in.AsOfDate.IsZero() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "as_of_date is required")
	}
	if !ingestion.Supported(in.FileName) {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "File must be CSV or Excel (.csv, .xlsx, .xlsm)")
	}
	sourceType := in.SourceType
	if sourceType == "" {
		sourceType = models.ImportSourceCustodian
	}
	if !sourceType.Valid() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, fmt.Sprintf("Invalid source_type: %s", sourceType))
	}
	if in.Content == nil {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "File is required")
	}

	var portfolio models.Portfolio
	if err := db.Where("id = ?", in.PortfolioID).First(&portfolio).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrPortfolioNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	path, err := s.storeFile(orgID, in.FileName, in.Content)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	imp := &models.PortfolioImport{
		TenantBase:  models.TenantBase{OrganizationID: orgID},
		PortfolioID: portfolio.ID,
		FilePath:    path,
		FileName:    filepath.Base(in.FileName),
		SheetName:   in.SheetName,
		AsOfDate:    models.DateOnlyUTC(in.AsOfDate),
		SourceType:  sourceType,
		Status:      models.ImportStatusPending,
	}
	if len(in.Mapping) > 0 {
		data, err := in.Mapping.JSON()
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInvalidInput, err)
		}
		imp.MappingJSON = datatypes.JSON(data)
	}

	if err := s.db.WithContext(ctx).Create(imp).Error; err != nil {
		_ = os.Remove(path)
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	s.logAudit(ctx, AuditImportCreated, imp.ID, map[string]any{
		"portfolio_id": imp.PortfolioID,
		"file_name":    imp.FileName,
		"as_of_date":   imp.AsOfDate.Format(models.DateLayout),
		"source_type":  imp.SourceType,
	})

	return imp, nil
}

// storeFile copies content under the upload directory, partitioned by organization.
func (s *portfolioImportService) storeFile(orgID, fileName string, content io.Reader) (string, error) {
	dir := filepath.Join(s.cfg.UploadDir, orgID)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	path := filepath.Join(dir, uuid.New()+strings.ToLower(filepath.Ext(fileName)))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	if _, err := io.Copy(f, content); err != nil {
		f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write upload file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("close upload file: %w", err)
	}
	return path, nil
}

// GetImport returns an import of the current organization.
func (s *portfolioImportService) GetImport(ctx context.Context, importID string) (*models.PortfolioImport, error) {
	db, _, err := tenant.DB(ctx, s.db)
	if err != nil {
		return nil, err
	}

	var imp models.PortfolioImport
	if err := db.Preload("Portfolio").Where("id = ?", importID).First(&imp).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrImportNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &imp, nil
}

// CheckDuplicate returns a successful import of the same portfolio with the
// same inputs digest, or nil. excludeImportID is ignored in the lookup.
func (s *portfolioImportService) CheckDuplicate(ctx context.Context, portfolioID, digest, excludeImportID string) (*models.PortfolioImport, error) {
	db, _, err := tenant.DB(ctx, s.db)
	if err != nil {
		return nil, err
	}

	q := db.Where("portfolio_id = ? AND inputs_hash = ? AND status = ?", portfolioID, digest, models.ImportStatusSuccess)
	if excludeImportID != "" {
		q = q.Where("id <> ?", excludeImportID)
	}

	var prior models.PortfolioImport
	if err := q.Order("completed_at ASC").First(&prior).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &prior, nil
}

// MarkFailed moves a non-terminal import to FAILED. Terminal imports are left as they are.
func (s *portfolioImportService) MarkFailed(ctx context.Context, importID, message string) error {
	db, _, err := tenant.DB(ctx, s.db)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	result := db.Model(&models.PortfolioImport{}).
		Where("id = ? AND status NOT IN ?", importID, terminalStatuses).
		Updates(map[string]interface{}{
			"status":        models.ImportStatusFailed,
			"error_message": message,
			"completed_at":  now,
		})
	if result.Error != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, result.Error)
	}
	if result.RowsAffected == 0 {
		if _, err := s.GetImport(ctx, importID); err != nil {
			return err
		}
	}
	return nil
}

// ImportRunner runs imports and records failures. PortfolioImportServicer
// satisfies it.
type ImportRunner interface {
	ImportFromFile(ctx context.Context, importID string, opts ImportOptions) (*ImportResult, error)
	MarkFailed(ctx context.Context, importID, message string) error
}

// RunImport calls ImportFromFile and, when the run aborts with an error,
// marks the import FAILED so it does not stay PENDING or PROCESSING. The
// mark survives cancellation of ctx. Imports that are missing or already
// terminal are left alone.
func RunImport(ctx context.Context, r ImportRunner, importID string, opts ImportOptions) (*ImportResult, error) {
	result, err := r.ImportFromFile(ctx, importID, opts)
	if err == nil {
		return result, nil
	}
	if errors.Is(err, apperrors.ErrImportAlreadyProcessed) ||
		errors.Is(err, apperrors.ErrImportNotFound) ||
		errors.Is(err, apperrors.ErrMissingTenantContext) {
		return nil, err
	}
	if markErr := r.MarkFailed(context.WithoutCancel(ctx), importID, err.Error()); markErr != nil {
		logger.Get().Errorw("failed to mark import as failed", "import_id", importID, "error", markErr)
	}
	return nil, err
}

var terminalStatuses = []models.ImportStatus{
	models.ImportStatusSuccess,
	models.ImportStatusFailed,
	models.ImportStatusPartial,
}

// ListErrors returns the row errors of an import ordered by row number.
func (s *portfolioImportService) ListErrors(
	ctx context.Context,
	importID string,
	page pagination.PageRequest,
) (*pagination.PageResponse[models.PortfolioImportError], error) {
	imp, err := s.GetImport(ctx, importID)
	if err != nil {
		return nil, err
	}
	page.Defaults()

	base := s.db.WithContext(ctx).Model(&models.PortfolioImportError{}).
		Where("organization_id = ? AND portfolio_import_id = ?", imp.OrganizationID, imp.ID)

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var rows []models.PortfolioImportError
	if err := base.Order("row_number ASC").Scopes(pagination.Paginate(page)).Find(&rows).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(rows, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// ImportFromFile runs an import end to end:
//
//  1. read the file and reject it when an identical file already imported
//     successfully for the same portfolio and date;
//  2. parse it and resolve the column mapping;
//  3. batch-resolve instruments and prefetch existing snapshots;
//  4. turn every row into a snapshot or a row error;
//  5. insert snapshots and errors in one transaction;
//  6. record the final status.
//
// Row problems never abort the run. Pipeline problems mark the import
// FAILED and are returned.
func (s *portfolioImportService) ImportFromFile(ctx context.Context, importID string, opts ImportOptions) (*ImportResult, error) {
	started := time.Now()
	orgID, err := tenant.Require(ctx)
	if err != nil {
		return nil, err
	}

	imp, err := s.GetImport(ctx, importID)
	if err != nil {
		return nil, err
	}
	if imp.Status.IsTerminal() {
		return nil, apperrors.ErrImportAlreadyProcessed
	}
	if imp.Portfolio == nil {
		return nil, apperrors.ErrPortfolioNotFound
	}

	log := logger.With("organization_id", orgID, "import_id", imp.ID, "portfolio_id", imp.PortfolioID)

	filePath, fileName := imp.FilePath, imp.FileName
	if opts.FilePath != "" {
		filePath, fileName = opts.FilePath, filepath.Base(opts.FilePath)
	}
	if fileName == "" {
		fileName = filepath.Base(filePath)
	}
	sheet := opts.SheetName
	if sheet == "" {
		sheet = imp.SheetName
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, s.fail(ctx, imp, started, apperrors.ErrFileRead, fmt.Sprintf("Failed to read file: %v", err), err)
	}

	digest := ingestion.ComputeInputsHash(data, imp.PortfolioID, imp.AsOfDate)
	prior, err := s.CheckDuplicate(ctx, imp.PortfolioID, digest, imp.ID)
	if err != nil {
		return nil, err
	}
	if prior != nil {
		completed := "an earlier date"
		if prior.CompletedAt != nil {
			completed = prior.CompletedAt.UTC().Format(time.RFC3339)
		}
		msg := fmt.Sprintf("Duplicate import detected. Same file was already imported successfully on %s.", completed)
		return nil, s.fail(ctx, imp, started, apperrors.ErrDuplicateImport, msg, nil)
	}

	table, err := ingestion.Parse(fileName, data, sheet)
	if err != nil {
		return nil, s.fail(ctx, imp, started, apperrors.ErrFileRead, fmt.Sprintf("Failed to read file: %v", err), err)
	}

	if err := s.update(ctx, imp, map[string]interface{}{
		"status":      models.ImportStatusParsing,
		"inputs_hash": digest,
	}); err != nil {
		return nil, err
	}

	explicit := opts.MappingOverride
	if len(explicit) == 0 {
		explicit, err = ingestion.ParseMapping(imp.MappingJSON)
		if err != nil {
			log.Warnw("ignoring unreadable stored mapping", "error", err)
			explicit = nil
		}
	}
	mapping := ingestion.DetectMapping(table.Columns, explicit)
	if missing := ingestion.ValidateMapping(mapping, nil); len(missing) > 0 {
		msg := fmt.Sprintf("Missing required column mappings: %s", strings.Join(missing, ", "))
		return nil, s.fail(ctx, imp, started, apperrors.ErrMappingIncomplete, msg, nil)
	}

	mappingJSON, err := mapping.JSON()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if err := s.update(ctx, imp, map[string]interface{}{
		"status":       models.ImportStatusValidating,
		"mapping_json": datatypes.JSON(mappingJSON),
		"rows_total":   len(table.Rows),
	}); err != nil {
		return nil, err
	}

	identifierCol, _ := mapping.Column(ingestion.FieldInstrumentIdentifier)
	identifiers := make([]string, 0, len(table.Rows))
	for _, row := range table.Rows {
		if v, ok := row.Get(identifierCol); ok {
			identifiers = append(identifiers, v)
		}
	}
	instruments, err := s.instruments.Resolve(ctx, identifiers)
	if err != nil {
		return nil, s.fail(ctx, imp, started, apperrors.ErrInternalServer, fmt.Sprintf("System error: %v", err), err)
	}
	existing, err := s.snapshots.ExistingInstrumentIDs(ctx, imp.PortfolioID, imp.AsOfDate)
	if err != nil {
		return nil, s.fail(ctx, imp, started, apperrors.ErrInternalServer, fmt.Sprintf("System error: %v", err), err)
	}

	rc := &rowContext{
		imp:          imp,
		mapping:      mapping,
		baseCurrency: imp.Portfolio.BaseCurrency,
		instruments:  instruments,
		existing:     existing,
		claimed:      make(map[string]int),
	}

	snapshots := make([]models.PositionSnapshot, 0, len(table.Rows))
	rowErrors := make([]models.PortfolioImportError, 0)
	for _, row := range table.Rows {
		if err := ctx.Err(); err != nil {
			log.Warnw("import cancelled, leaving it for manual retry", "error", err, "row", row.Number)
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		outcome := s.processRow(rc, row)
		for _, w := range outcome.warnings {
			log.Warnw("row corrected", "row", row.Number, "warning", w)
		}
		if outcome.failure != nil {
			rowErrors = append(rowErrors, outcome.failure.record(orgID, imp.ID, row))
			s.metrics.RowError(string(outcome.failure.kind))
			continue
		}
		snapshots = append(snapshots, *outcome.snapshot)
	}

	created, err := s.persist(ctx, snapshots, rowErrors)
	if err != nil {
		return nil, s.fail(ctx, imp, started, apperrors.ErrInternalServer, fmt.Sprintf("System error: %v", err), err)
	}
	if skipped := len(snapshots) - created; skipped > 0 {
		log.Warnw("snapshot rows skipped on conflict", "skipped", skipped)
		s.metrics.RowsProcessed(metrics.RowSkipped, skipped)
	}
	s.metrics.RowsProcessed(metrics.RowCreated, created)
	s.metrics.RowsProcessed(metrics.RowFailed, len(rowErrors))

	status := models.ImportStatusFailed
	switch {
	case len(rowErrors) == 0:
		status = models.ImportStatusSuccess
	case created > 0:
		status = models.ImportStatusPartial
	}

	var summary string
	if len(rowErrors) > 0 {
		first := rowErrors[0]
		summary = fmt.Sprintf("%d errors. First error (row %d): %s", len(rowErrors), first.RowNumber, first.ErrorMessage)
	}

	now := time.Now().UTC()
	if err := s.update(ctx, imp, map[string]interface{}{
		"status":         status,
		"rows_processed": created,
		"error_message":  summary,
		"completed_at":   now,
	}); err != nil {
		return nil, err
	}

	result := &ImportResult{
		ImportID:  imp.ID,
		Created:   created,
		Errors:    len(rowErrors),
		TotalRows: len(table.Rows),
		Status:    status,
	}

	s.metrics.ImportFinished(string(status), started)
	s.logAudit(ctx, AuditImportCompleted, imp.ID, map[string]any{
		"status":     status,
		"created":    created,
		"errors":     len(rowErrors),
		"total_rows": len(table.Rows),
	})
	log.Infow("portfolio import finished",
		"status", status,
		"created", created,
		"errors", len(rowErrors),
		"total_rows", len(table.Rows),
		"duration", time.Since(started),
	)

	return result, nil
}

// persist inserts snapshots, ignoring key conflicts, and row errors in one
// transaction. It returns the number of snapshots actually inserted.
func (s *portfolioImportService) persist(ctx context.Context, snapshots []models.PositionSnapshot, rowErrors []models.PortfolioImportError) (int, error) {
	created := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(snapshots) > 0 {
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(snapshots, s.cfg.BatchSize)
			if res.Error != nil {
				return res.Error
			}
			created = int(res.RowsAffected)
		}
		if len(rowErrors) > 0 {
			if err := tx.CreateInBatches(rowErrors, s.cfg.BatchSize).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}

// update writes columns of the import and mirrors them on imp.
func (s *portfolioImportService) update(ctx context.Context, imp *models.PortfolioImport, values map[string]interface{}) error {
	if err := s.db.WithContext(ctx).Model(&models.PortfolioImport{}).
		Where("id = ? AND organization_id = ?", imp.ID, imp.OrganizationID).
		Updates(values).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if v, ok := values["status"].(models.ImportStatus); ok {
		imp.Status = v
	}
	return nil
}

// fail marks the import FAILED with message and returns sentinel carrying it.
func (s *portfolioImportService) fail(
	ctx context.Context,
	imp *models.PortfolioImport,
	started time.Time,
	sentinel *apperrors.AppError,
	message string,
	cause error,
) error {
	logger.Get().Warnw("portfolio import failed",
		"import_id", imp.ID,
		"organization_id", imp.OrganizationID,
		"code", sentinel.Code,
		"message", message,
		"error", cause,
	)
	if err := s.MarkFailed(ctx, imp.ID, message); err != nil {
		logger.Get().Errorw("failed to mark import as failed", "import_id", imp.ID, "error", err)
	}
	imp.Status = models.ImportStatusFailed
	s.metrics.ImportFinished(string(models.ImportStatusFailed), started)

	appErr := apperrors.WithMessage(sentinel, message)
	appErr.Internal = cause
	return appErr
}

func (s *portfolioImportService) logAudit(ctx context.Context, action, resourceID string, changes map[string]any) {
	if s.audit == nil {
		return
	}
	s.audit.Log(ctx, action, "portfolio_import", resourceID, "", changes)
}

// rowContext is the read-only state shared by every row of one import.
type rowContext struct {
	imp          *models.PortfolioImport
	mapping      ingestion.Mapping
	baseCurrency string
	instruments  map[string]*models.Instrument
	existing     map[string]bool
	// claimed maps instrument ID to the first row of this file that
	// produced a snapshot for it.
	claimed map[string]int
}

// rowFailure is why a row produced no snapshot.
type rowFailure struct {
	kind    models.ImportErrorType
	code    string
	message string
	column  string
}

func (f *rowFailure) record(orgID, importID string, row ingestion.RawRow) models.PortfolioImportError {
	raw, err := json.Marshal(row.Values)
	if err != nil {
		raw = []byte("{}")
	}
	return models.PortfolioImportError{
		OrganizationID:    orgID,
		PortfolioImportID: importID,
		RowNumber:         row.Number,
		ColumnName:        f.column,
		RawRowData:        datatypes.JSON(raw),
		ErrorType:         f.kind,
		ErrorMessage:      f.message,
		ErrorCode:         f.code,
	}
}

// rowOutcome holds exactly one of snapshot or failure.
type rowOutcome struct {
	snapshot *models.PositionSnapshot
	failure  *rowFailure
	warnings []string
}

// processRow turns one row into a snapshot or a failure. A panic is
// contained to the row and reported as a system error.
func (s *portfolioImportService) processRow(rc *rowContext, row ingestion.RawRow) (out rowOutcome) {
	defer func() {
		if r := recover(); r != nil {
			logger.Get().Errorw("panic while processing import row",
				"import_id", rc.imp.ID,
				"row", row.Number,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			out = rowOutcome{failure: &rowFailure{
				kind:    models.ImportErrorSystem,
				code:    models.ErrorCodeSystem,
				message: fmt.Sprintf("System error: %v", r),
			}}
		}
	}()

	extracted, err := ingestion.Extract(row, rc.mapping, rc.baseCurrency)
	if err != nil {
		var fe *ingestion.FormatError
		if errors.As(err, &fe) {
			return rowOutcome{failure: &rowFailure{
				kind:    models.ImportErrorFormat,
				code:    models.ErrorCodeFormat,
				message: fe.Error(),
				column:  fe.Column,
			}}
		}
		panic(err)
	}

	normalized, err := ingestion.ValidateRow(extracted, rc.baseCurrency)
	if err != nil {
		var ve *ingestion.ValidationError
		if errors.As(err, &ve) {
			col, _ := rc.mapping.Column(ve.Field)
			return rowOutcome{failure: &rowFailure{
				kind:    models.ImportErrorValidation,
				code:    ve.Code,
				message: ve.Message,
				column:  col,
			}}
		}
		panic(err)
	}

	instrument := rc.instruments[normalized.Identifier]
	if instrument == nil {
		col, _ := rc.mapping.Column(ingestion.FieldInstrumentIdentifier)
		return rowOutcome{failure: &rowFailure{
			kind:    models.ImportErrorReferenceData,
			code:    models.ErrorCodeInstrumentNotFound,
			message: fmt.Sprintf("Instrument '%s' not found (by ISIN or ticker)", normalized.Identifier),
			column:  col,
		}}
	}

	asOf := rc.imp.AsOfDate.Format(models.DateLayout)
	if rc.existing[instrument.ID] {
		return rowOutcome{failure: &rowFailure{
			kind:    models.ImportErrorBusinessRule,
			code:    models.ErrorCodeDuplicateSnapshot,
			message: fmt.Sprintf("Position snapshot already exists for %s on %s. Snapshots are immutable.", instrument.DisplayName(), asOf),
		}}
	}

	warnings := normalized.Warnings
	if first, dup := rc.claimed[instrument.ID]; dup {
		warnings = append(warnings, fmt.Sprintf("%s also appears on row %d; only the first row is kept", instrument.DisplayName(), first))
	} else {
		rc.claimed[instrument.ID] = row.Number
	}

	return rowOutcome{snapshot: buildSnapshot(rc.imp, instrument, normalized), warnings: warnings}
}

func buildSnapshot(imp *models.PortfolioImport, instrument *models.Instrument, row ingestion.NormalizedRow) *models.PositionSnapshot {
	method := instrument.ValuationMethod
	if method == "" {
		method = models.ValuationMarkToMarket
	}
	asOf := models.DateOnlyUTC(imp.AsOfDate)
	importID := imp.ID

	snap := &models.PositionSnapshot{
		OrganizationID:    imp.OrganizationID,
		PortfolioID:       imp.PortfolioID,
		InstrumentID:      instrument.ID,
		AsOfDate:          asOf,
		PortfolioImportID: &importID,
		Quantity:          row.Quantity,
		BookValue:         row.BookValue,
		MarketValue:       row.MarketValue,
		Price:             row.Price,
		ValuationMethod:   method,
		ValuationSource:   row.ValuationSource,
		LastValuationDate: &asOf,
	}
	if row.AccruedInterest != nil {
		snap.AccruedInterest.Decimal = row.AccruedInterest.Amount
		snap.AccruedInterest.Valid = true
		snap.AccruedInterestCurrency = row.AccruedInterest.Currency
	}
	return snap
}
