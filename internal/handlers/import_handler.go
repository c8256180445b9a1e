package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "backoffice/internal/errors"
	"backoffice/internal/ingestion"
	"backoffice/internal/models"
	"backoffice/internal/pagination"
	"backoffice/internal/services"
	"backoffice/internal/tenant"
	"backoffice/internal/worker"
)

// maxUploadBytes caps the size of an uploaded holdings file.
const maxUploadBytes = 32 << 20

// JobSubmitter queues imports for background processing.
type JobSubmitter interface {
	Submit(job worker.Job) error
}

// ImportHandler handles portfolio import requests.
type ImportHandler struct {
	importService services.PortfolioImportServicer
	preflight     services.PreflightServicer
	exporter      services.MissingInstrumentExporter
	jobs          JobSubmitter
}

// NewImportHandler creates a new ImportHandler. jobs may be nil, in which
// case async runs are rejected.
func NewImportHandler(
	importService services.PortfolioImportServicer,
	preflight services.PreflightServicer,
	exporter services.MissingInstrumentExporter,
	jobs JobSubmitter,
) *ImportHandler {
	return &ImportHandler{
		importService: importService,
		preflight:     preflight,
		exporter:      exporter,
		jobs:          jobs,
	}
}

// UploadImportRequest represents the multipart form fields of an upload.
type UploadImportRequest struct {
	AsOfDate   string `form:"as_of_date" binding:"required,iso_date"`
	SourceType string `form:"source_type" binding:"omitempty,import_source_type"`
	SheetName  string `form:"sheet_name" binding:"omitempty,max=100"`
	Mapping    string `form:"mapping"`
	Run        string `form:"run" binding:"omitempty,oneof=sync async"`
}

// RunImportRequest represents the request payload for running an import.
type RunImportRequest struct {
	SheetName string            `json:"sheet_name,omitempty" binding:"omitempty,max=100"`
	Mapping   ingestion.Mapping `json:"mapping,omitempty"`
	Async     bool              `json:"async"`
}

// UploadImport handles uploading a holdings file for a portfolio.
// @Summary     Upload holdings file
// @Description Store a CSV or Excel holdings file and create a pending import, optionally running it
// @Tags        imports
// @Accept      multipart/form-data
// @Produce     json
// @Security    BearerAuth
// @Param       id          path     string true  "Portfolio ID"
// @Param       file        formData file   true  "Holdings file (.csv, .xlsx, .xlsm)"
// @Param       as_of_date  formData string true  "As-of date (YYYY-MM-DD)"
// @Param       source_type formData string false "custodian, internal, manual or external"
// @Param       sheet_name  formData string false "Excel worksheet"
// @Param       mapping     formData string false "Column mapping as a JSON object"
// @Param       run         formData string false "sync or async"
// @Success     201 {object} models.PortfolioImport "Import created"
// @Success     202 {object} map[string]interface{} "Import created and queued"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Portfolio not found"
// @Failure     409 {object} ErrorResponse "Duplicate import"
// @Router      /portfolios/{id}/imports [post]
func (h *ImportHandler) UploadImport(c *gin.Context) {
	portfolioID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UploadImportRequest
	if err := c.ShouldBind(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	asOf, err := parseDate("as_of_date", req.AsOfDate)
	if err != nil {
		respondWithError(c, err)
		return
	}

	mapping, err := ingestion.ParseMapping([]byte(req.Mapping))
	if err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "mapping must be a JSON object of field to column"))
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "file is required"))
		return
	}
	if fh.Size > maxUploadBytes {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "file exceeds the 32MB upload limit"))
		return
	}
	f, err := fh.Open()
	if err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrFileRead, err))
		return
	}
	defer f.Close()

	sourceType := models.ImportSourceType(req.SourceType)
	if sourceType == "" {
		sourceType = models.ImportSourceManual
	}

	imp, err := h.importService.CreateImport(c.Request.Context(), services.CreateImportInput{
		PortfolioID: portfolioID,
		FileName:    fh.Filename,
		SheetName:   req.SheetName,
		AsOfDate:    asOf,
		SourceType:  sourceType,
		Mapping:     mapping,
		Content:     f,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	switch req.Run {
	case "sync":
		result, err := services.RunImport(c.Request.Context(), h.importService, imp.ID, services.ImportOptions{SheetName: req.SheetName})
		if err != nil {
			respondWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"import": imp, "result": result})
	case "async":
		if err := h.enqueue(c, imp.ID, services.ImportOptions{SheetName: req.SheetName}); err != nil {
			respondWithError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"import": imp, "queued": true})
	default:
		c.JSON(http.StatusCreated, gin.H{"import": imp})
	}
}

// RunImport handles running a pending import.
// @Summary     Run import
// @Description Run the ingestion pipeline for an import, inline or on the background queue
// @Tags        imports
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string           true  "Import ID"
// @Param       request body RunImportRequest false "Run options"
// @Success     200 {object} services.ImportResult "Import finished"
// @Success     202 {object} map[string]interface{} "Import queued"
// @Failure     404 {object} ErrorResponse "Import not found"
// @Failure     409 {object} ErrorResponse "Import already processed or duplicate"
// @Failure     503 {object} ErrorResponse "Queue full"
// @Router      /imports/{id}/run [post]
func (h *ImportHandler) RunImport(c *gin.Context) {
	importID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req RunImportRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
			return
		}
	}

	opts := services.ImportOptions{SheetName: req.SheetName, MappingOverride: req.Mapping}

	if req.Async {
		imp, err := h.importService.GetImport(c.Request.Context(), importID)
		if err != nil {
			respondWithError(c, err)
			return
		}
		if imp.Status.IsTerminal() {
			respondWithError(c, apperrors.ErrImportAlreadyProcessed)
			return
		}
		if err := h.enqueue(c, importID, opts); err != nil {
			respondWithError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"import_id": importID, "queued": true})
		return
	}

	result, err := services.RunImport(c.Request.Context(), h.importService, importID, opts)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": result})
}

func (h *ImportHandler) enqueue(c *gin.Context, importID string, opts services.ImportOptions) error {
	if h.jobs == nil {
		return apperrors.WithMessage(apperrors.ErrQueueFull, "Background imports are not enabled")
	}
	orgID, err := getOrgID(c)
	if err != nil {
		return err
	}
	return h.jobs.Submit(worker.Job{
		OrgID:    orgID,
		ActorID:  tenant.Actor(c.Request.Context()),
		ImportID: importID,
		Options:  opts,
	})
}

// GetImport handles retrieving an import record.
// @Summary     Get import by ID
// @Tags        imports
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Import ID"
// @Success     200 {object} models.PortfolioImport "Import details"
// @Failure     404 {object} ErrorResponse "Import not found"
// @Router      /imports/{id} [get]
func (h *ImportHandler) GetImport(c *gin.Context) {
	importID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	imp, err := h.importService.GetImport(c.Request.Context(), importID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"import": imp})
}

// ListErrors handles listing the row errors of an import.
// @Summary     List import errors
// @Description Get paginated row errors ordered by row number
// @Tags        imports
// @Produce     json
// @Security    BearerAuth
// @Param       id        path  string true  "Import ID"
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.PortfolioImportError] "Paginated errors"
// @Failure     404 {object} ErrorResponse "Import not found"
// @Router      /imports/{id}/errors [get]
func (h *ImportHandler) ListErrors(c *gin.Context) {
	importID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.importService.ListErrors(c.Request.Context(), importID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Preflight handles the read-only reference data check of an import.
// @Summary     Preflight import
// @Description Report missing instruments and FX rates (blocking) and missing prices and curves (advisory)
// @Tags        imports
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Import ID"
// @Success     200 {object} services.PreflightResult "Preflight report"
// @Failure     404 {object} ErrorResponse "Import not found"
// @Failure     422 {object} ErrorResponse "File could not be read"
// @Router      /imports/{id}/preflight [get]
func (h *ImportHandler) Preflight(c *gin.Context) {
	importID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.preflight.Preflight(c.Request.Context(), importID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"preflight": result})
}

// ExportMissingInstruments handles downloading the missing instrument template.
// @Summary     Export missing instruments
// @Description Download a CSV template of the instruments an import could not resolve
// @Tags        imports
// @Produce     text/csv
// @Security    BearerAuth
// @Param       id path string true "Import ID"
// @Success     200 {file} file "CSV template"
// @Failure     404 {object} ErrorResponse "Import not found or nothing missing"
// @Router      /imports/{id}/missing-instruments.csv [get]
func (h *ImportHandler) ExportMissingInstruments(c *gin.Context) {
	importID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	file, err := h.exporter.Export(c.Request.Context(), importID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+file.Name+`"`)
	c.Data(http.StatusOK, file.ContentType, file.Content)
}
