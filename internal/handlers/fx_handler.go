package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "backoffice/internal/errors"
	"backoffice/internal/services"
)

// FXHandler handles FX reference data pipeline requests.
type FXHandler struct {
	fxService services.FXRateServicer
}

// NewFXHandler creates a new FXHandler.
func NewFXHandler(fxService services.FXRateServicer) *FXHandler {
	return &FXHandler{fxService: fxService}
}

// SyncFXRatesRequest represents the request payload for an FX rate sync.
type SyncFXRatesRequest struct {
	Currencies []string `json:"currencies" binding:"required,min=1,dive,iso4217"`
	Quote      string   `json:"quote" binding:"required,iso4217"`
	Date       string   `json:"date,omitempty" binding:"omitempty,iso_date"`
}

// SyncFXRates handles fetching and storing mid rates for a set of currencies.
// @Summary     Sync FX rates
// @Description Fetch mid rates from each currency to the quote currency and store the missing ones (pipeline)
// @Tags        pipeline
// @Accept      json
// @Produce     json
// @Security    ApiKeyAuth
// @Param       request body SyncFXRatesRequest true "Currencies, quote currency and optional date"
// @Success     200 {object} services.FXSyncResult "Sync summary"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Invalid API key"
// @Failure     502 {object} ErrorResponse "FX provider error"
// @Router      /pipeline/fx-rates/sync [post]
func (h *FXHandler) SyncFXRates(c *gin.Context) {
	var req SyncFXRatesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	var date time.Time
	if req.Date != "" {
		d, err := parseDate("date", req.Date)
		if err != nil {
			respondWithError(c, err)
			return
		}
		date = d
	}

	result, err := h.fxService.Sync(c.Request.Context(), req.Currencies, req.Quote, date)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": result})
}
