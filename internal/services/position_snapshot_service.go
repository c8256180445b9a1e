package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	apperrors "backoffice/internal/errors"
	"backoffice/internal/models"
	"backoffice/internal/pagination"
	"backoffice/internal/tenant"
)

// positionSnapshotService reads position snapshots. Snapshots are written
// only by the import pipeline.
type positionSnapshotService struct {
	db *gorm.DB
}

// NewPositionSnapshotService creates a new PositionSnapshotServicer.
func NewPositionSnapshotService(db *gorm.DB) PositionSnapshotServicer {
	return &positionSnapshotService{db: db}
}

// List returns paginated snapshots of a portfolio, newest date first,
// optionally restricted to one as-of date.
func (s *positionSnapshotService) List(
	ctx context.Context,
	portfolioID string,
	asOf *time.Time,
	page pagination.PageRequest,
) (*pagination.PageResponse[models.PositionSnapshot], error) {
	db, _, err := tenant.DB(ctx, s.db)
	if err != nil {
		return nil, err
	}
	page.Defaults()

	var totalItems int64
	base := db.Model(&models.PositionSnapshot{}).Where("portfolio_id = ?", portfolioID)
	if asOf != nil {
		base = base.Where("as_of_date = ?", models.DateOnlyUTC(*asOf))
	}
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var snapshots []models.PositionSnapshot
	if err := base.Preload("Instrument").
		Order("as_of_date DESC").Order("id ASC").
		Scopes(pagination.Paginate(page)).
		Find(&snapshots).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(snapshots, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// ExistingInstrumentIDs returns the instruments that already have a
// snapshot in the portfolio on asOf.
func (s *positionSnapshotService) ExistingInstrumentIDs(ctx context.Context, portfolioID string, asOf time.Time) (map[string]bool, error) {
	db, _, err := tenant.DB(ctx, s.db)
	if err != nil {
		return nil, err
	}

	var ids []string
	if err := db.Model(&models.PositionSnapshot{}).
		Where("portfolio_id = ? AND as_of_date = ?", portfolioID, models.DateOnlyUTC(asOf)).
		Pluck("instrument_id", &ids).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	existing := make(map[string]bool, len(ids))
	for _, id := range ids {
		existing[id] = true
	}
	return existing, nil
}
