package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "backoffice/internal/errors"
	"backoffice/internal/pagination"
	"backoffice/internal/services"
)

// PortfolioHandler handles portfolio and position snapshot requests.
type PortfolioHandler struct {
	portfolioService services.PortfolioServicer
	snapshotService  services.PositionSnapshotServicer
}

// NewPortfolioHandler creates a new PortfolioHandler.
func NewPortfolioHandler(portfolioService services.PortfolioServicer, snapshotService services.PositionSnapshotServicer) *PortfolioHandler {
	return &PortfolioHandler{portfolioService: portfolioService, snapshotService: snapshotService}
}

// CreatePortfolioRequest represents the request payload for creating a portfolio.
type CreatePortfolioRequest struct {
	Name         string `json:"name" binding:"required,min=1,max=200"`
	BaseCurrency string `json:"base_currency" binding:"required,iso4217"`
}

// CreatePortfolio handles creating a new portfolio.
// @Summary     Create portfolio
// @Description Create a portfolio in the caller's organization
// @Tags        portfolios
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreatePortfolioRequest true "Portfolio details"
// @Success     201 {object} models.Portfolio "Portfolio created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /portfolios [post]
func (h *PortfolioHandler) CreatePortfolio(c *gin.Context) {
	var req CreatePortfolioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	portfolio, err := h.portfolioService.CreatePortfolio(c.Request.Context(), req.Name, req.BaseCurrency)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"portfolio": portfolio})
}

// ListPortfolios handles listing portfolios.
// @Summary     List portfolios
// @Description Get a paginated list of the organization's portfolios
// @Tags        portfolios
// @Produce     json
// @Security    BearerAuth
// @Param       page      query int false "Page number (default 1)"
// @Param       page_size query int false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.Portfolio] "Paginated portfolios"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /portfolios [get]
func (h *PortfolioHandler) ListPortfolios(c *gin.Context) {
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.portfolioService.ListPortfolios(c.Request.Context(), page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetPortfolio handles retrieving a specific portfolio.
// @Summary     Get portfolio by ID
// @Tags        portfolios
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Portfolio ID"
// @Success     200 {object} models.Portfolio "Portfolio details"
// @Failure     400 {object} ErrorResponse "Invalid portfolio ID"
// @Failure     404 {object} ErrorResponse "Portfolio not found"
// @Router      /portfolios/{id} [get]
func (h *PortfolioHandler) GetPortfolio(c *gin.Context) {
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	portfolio, err := h.portfolioService.GetPortfolio(c.Request.Context(), id)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"portfolio": portfolio})
}

// ListSnapshots handles listing the position snapshots of a portfolio.
// @Summary     List position snapshots
// @Description Get paginated position snapshots, newest first, optionally for one as-of date
// @Tags        portfolios
// @Produce     json
// @Security    BearerAuth
// @Param       id         path  string true  "Portfolio ID"
// @Param       as_of_date query string false "As-of date (YYYY-MM-DD)"
// @Param       page       query int    false "Page number (default 1)"
// @Param       page_size  query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.PositionSnapshot] "Paginated snapshots"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Portfolio not found"
// @Router      /portfolios/{id}/snapshots [get]
func (h *PortfolioHandler) ListSnapshots(c *gin.Context) {
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	var asOf *time.Time
	if raw := c.Query("as_of_date"); raw != "" {
		d, err := parseDate("as_of_date", raw)
		if err != nil {
			respondWithError(c, err)
			return
		}
		asOf = &d
	}

	if _, err := h.portfolioService.GetPortfolio(c.Request.Context(), id); err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.snapshotService.List(c.Request.Context(), id, asOf, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
