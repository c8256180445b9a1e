package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	apperrors "backoffice/internal/errors"
	"backoffice/internal/models"
	"backoffice/internal/money"
	"backoffice/internal/pagination"
	"backoffice/internal/tenant"
)

// portfolioService handles portfolio lookups.
type portfolioService struct {
	db *gorm.DB
}

// NewPortfolioService creates a new PortfolioServicer.
func NewPortfolioService(db *gorm.DB) PortfolioServicer {
	return &portfolioService{db: db}
}

// CreatePortfolio creates a portfolio in the current organization.
func (s *portfolioService) CreatePortfolio(ctx context.Context, name, baseCurrency string) (*models.Portfolio, error) {
	orgID, err := tenant.Require(ctx)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Name is required")
	}
	currency := money.NormalizeCurrency(baseCurrency)
	if !money.IsKnownCurrency(currency) {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Base currency must be an ISO 4217 code")
	}

	var orgCount int64
	if err := s.db.WithContext(ctx).Model(&models.Organization{}).Where("id = ?", orgID).Count(&orgCount).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if orgCount == 0 {
		return nil, apperrors.ErrOrganizationNotFound
	}

	portfolio := &models.Portfolio{
		TenantBase:   models.TenantBase{OrganizationID: orgID},
		Name:         strings.TrimSpace(name),
		BaseCurrency: currency,
	}
	if err := s.db.WithContext(ctx).Create(portfolio).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return portfolio, nil
}

// GetPortfolio returns a portfolio of the current organization.
func (s *portfolioService) GetPortfolio(ctx context.Context, portfolioID string) (*models.Portfolio, error) {
	db, _, err := tenant.DB(ctx, s.db)
	if err != nil {
		return nil, err
	}

	var portfolio models.Portfolio
	if err := db.Where("id = ?", portfolioID).First(&portfolio).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrPortfolioNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &portfolio, nil
}

// ListPortfolios returns a paginated list of portfolios ordered by name.
func (s *portfolioService) ListPortfolios(ctx context.Context, page pagination.PageRequest) (*pagination.PageResponse[models.Portfolio], error) {
	db, _, err := tenant.DB(ctx, s.db)
	if err != nil {
		return nil, err
	}
	page.Defaults()

	var totalItems int64
	base := db.Model(&models.Portfolio{})
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var portfolios []models.Portfolio
	if err := base.Order("name ASC").Scopes(pagination.Paginate(page)).Find(&portfolios).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(portfolios, page.Page, page.PageSize, totalItems)
	return &result, nil
}
