package services

import (
	"context"
	"encoding/json"
	"testing"

	"backoffice/internal/models"
	"backoffice/internal/tenant"
	"backoffice/internal/testutil"
)

func TestAuditLog(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewAuditService(db)

	org := testutil.CreateTestOrganization(t, db)

	t.Run("records_event", func(t *testing.T) {
		ctx := tenant.WithActor(orgContext(org.ID), "user-42")
		svc.Log(ctx, AuditInstrumentCreated, "instrument", "inst-1", "10.0.0.1", map[string]any{"isin": "US0378331005"})

		var event models.AuditEvent
		if err := db.Where("resource_id = ?", "inst-1").First(&event).Error; err != nil {
			t.Fatalf("expected audit event: %v", err)
		}
		if event.OrganizationID != org.ID || event.ActorID != "user-42" || event.IPAddress != "10.0.0.1" {
			t.Errorf("unexpected event %+v", event)
		}

		var changes map[string]string
		if err := json.Unmarshal(event.Changes, &changes); err != nil {
			t.Fatalf("changes are not JSON: %v", err)
		}
		if changes["isin"] != "US0378331005" {
			t.Errorf("unexpected changes %v", changes)
		}
	})

	t.Run("without_tenant_is_not_stored", func(t *testing.T) {
		svc.Log(context.Background(), AuditFXRatesSynced, "fx_rate", "", "", nil)

		var count int64
		db.Model(&models.AuditEvent{}).Where("action = ?", AuditFXRatesSynced).Count(&count)
		if count != 0 {
			t.Errorf("expected no stored event, got %d", count)
		}
	})
}
