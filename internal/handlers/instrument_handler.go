package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "backoffice/internal/errors"
	"backoffice/internal/models"
	"backoffice/internal/pagination"
	"backoffice/internal/services"
)

// InstrumentHandler handles instrument reference data requests.
type InstrumentHandler struct {
	instrumentService services.InstrumentServicer
	auditService      services.AuditServicer
}

// NewInstrumentHandler creates a new InstrumentHandler.
func NewInstrumentHandler(instrumentService services.InstrumentServicer, auditService services.AuditServicer) *InstrumentHandler {
	return &InstrumentHandler{instrumentService: instrumentService, auditService: auditService}
}

// CreateInstrumentRequest represents the request payload for creating an instrument.
type CreateInstrumentRequest struct {
	Name            string                 `json:"name" binding:"required,min=1,max=200"`
	ISIN            string                 `json:"isin,omitempty" binding:"omitempty,len=12"`
	Ticker          string                 `json:"ticker,omitempty" binding:"omitempty,max=32"`
	Currency        string                 `json:"currency" binding:"required,iso4217"`
	InstrumentGroup string                 `json:"instrument_group,omitempty"`
	InstrumentType  string                 `json:"instrument_type,omitempty"`
	IssuerCode      string                 `json:"issuer_code,omitempty"`
	ValuationMethod models.ValuationMethod `json:"valuation_method,omitempty" binding:"omitempty,valuation_method"`
	Country         string                 `json:"country,omitempty"`
	Sector          string                 `json:"sector,omitempty"`
}

// RecordPricesRequest represents the request payload for bulk price recording.
type RecordPricesRequest struct {
	Prices []RecordPriceEntry `json:"prices" binding:"required,min=1,dive"`
}

// RecordPriceEntry represents a single price entry in a bulk request.
type RecordPriceEntry struct {
	Date      string           `json:"date" binding:"required,iso_date"`
	Price     decimal.Decimal  `json:"price"`
	Currency  string           `json:"currency,omitempty" binding:"omitempty,iso4217"`
	PriceType models.PriceType `json:"price_type,omitempty" binding:"omitempty,price_type"`
	Source    string           `json:"source,omitempty"`
}

// CreateInstrument handles creating a new instrument.
// @Summary     Create instrument
// @Description Create an instrument in the caller's organization
// @Tags        instruments
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateInstrumentRequest true "Instrument details"
// @Success     201 {object} models.Instrument "Instrument created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     409 {object} ErrorResponse "Duplicate instrument"
// @Router      /instruments [post]
func (h *InstrumentHandler) CreateInstrument(c *gin.Context) {
	var req CreateInstrumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	instrument, err := h.instrumentService.CreateInstrument(c.Request.Context(), services.InstrumentInput{
		Name:            req.Name,
		ISIN:            req.ISIN,
		Ticker:          req.Ticker,
		Currency:        req.Currency,
		InstrumentGroup: req.InstrumentGroup,
		InstrumentType:  req.InstrumentType,
		IssuerCode:      req.IssuerCode,
		ValuationMethod: req.ValuationMethod,
		Country:         req.Country,
		Sector:          req.Sector,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(c.Request.Context(), services.AuditInstrumentCreated, "instrument", instrument.ID, c.ClientIP(),
		map[string]interface{}{"isin": instrument.ISIN, "ticker": instrument.Ticker})

	c.JSON(http.StatusCreated, gin.H{"instrument": instrument})
}

// ListInstruments handles listing instruments.
// @Summary     List instruments
// @Tags        instruments
// @Produce     json
// @Security    BearerAuth
// @Param       page      query int false "Page number (default 1)"
// @Param       page_size query int false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.Instrument] "Paginated instruments"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /instruments [get]
func (h *InstrumentHandler) ListInstruments(c *gin.Context) {
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.instrumentService.ListInstruments(c.Request.Context(), page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetInstrument handles retrieving a specific instrument.
// @Summary     Get instrument by ID
// @Tags        instruments
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Instrument ID"
// @Success     200 {object} models.Instrument "Instrument details"
// @Failure     400 {object} ErrorResponse "Invalid instrument ID"
// @Failure     404 {object} ErrorResponse "Instrument not found"
// @Router      /instruments/{id} [get]
func (h *InstrumentHandler) GetInstrument(c *gin.Context) {
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	instrument, err := h.instrumentService.GetInstrument(c.Request.Context(), id)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"instrument": instrument})
}

// RecordPrices handles bulk price recording for an instrument.
// @Summary     Record instrument prices
// @Description Bulk record prices; prices already stored for a date and type are skipped
// @Tags        instruments
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string              true "Instrument ID"
// @Param       request body RecordPricesRequest true "Price entries"
// @Success     200 {object} map[string]int "Prices recorded count"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Instrument not found"
// @Router      /instruments/{id}/prices [post]
func (h *InstrumentHandler) RecordPrices(c *gin.Context) {
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req RecordPricesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	inputs := make([]services.InstrumentPriceInput, len(req.Prices))
	for i, p := range req.Prices {
		date, err := parseDate("date", p.Date)
		if err != nil {
			respondWithError(c, err)
			return
		}
		inputs[i] = services.InstrumentPriceInput{
			Date:      date,
			Price:     p.Price,
			Currency:  p.Currency,
			PriceType: p.PriceType,
			Source:    p.Source,
		}
	}

	count, err := h.instrumentService.RecordPrices(c.Request.Context(), id, inputs)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"prices_recorded": count})
}
