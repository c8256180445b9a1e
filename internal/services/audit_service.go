package services

import (
	"context"
	"encoding/json"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"backoffice/internal/logger"
	"backoffice/internal/models"
	"backoffice/internal/tenant"
)

// Audit actions.
const (
	AuditImportCreated     = "portfolio_import.created"
	AuditImportCompleted   = "portfolio_import.completed"
	AuditInstrumentCreated = "instrument.created"
	AuditFXRatesSynced     = "fx_rates.synced"
)

// auditService handles audit event recording.
type auditService struct {
	db *gorm.DB
}

// NewAuditService creates a new AuditServicer.
func NewAuditService(db *gorm.DB) AuditServicer {
	return &auditService{db: db}
}

// Log records an audit event for the organization on ctx. Errors are logged
// but never propagate to avoid disrupting the main operation. Events outside
// a tenant scope are logged only.
func (s *auditService) Log(ctx context.Context, action, resourceType, resourceID, ipAddress string, changes map[string]any) {
	orgID, ok := tenant.OrgID(ctx)
	if !ok {
		logger.Get().Infow("audit event without organization",
			"actor", tenant.Actor(ctx),
			"action", action,
			"resource_type", resourceType,
			"resource_id", resourceID,
		)
		return
	}

	var changesJSON datatypes.JSON
	if changes != nil {
		data, err := json.Marshal(changes)
		if err != nil {
			logger.Get().Errorw("failed to marshal audit event changes", "error", err, "action", action)
			data = []byte("{}")
		}
		changesJSON = datatypes.JSON(data)
	}

	entry := &models.AuditEvent{
		TenantBase:   models.TenantBase{OrganizationID: orgID},
		ActorID:      tenant.Actor(ctx),
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		IPAddress:    ipAddress,
		Changes:      changesJSON,
	}

	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		logger.Get().Errorw("failed to create audit event",
			"error", err,
			"organization_id", orgID,
			"action", action,
			"resource_type", resourceType,
			"resource_id", resourceID,
		)
	}
}
