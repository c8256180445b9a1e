package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "backoffice/internal/errors"
	"backoffice/internal/models"
	"backoffice/internal/services"
)

func setupFXRouter(handler *FXHandler) *gin.Engine {
	r := gin.New()
	r.POST("/pipeline/fx-rates/sync", handler.SyncFXRates)
	return r
}

func TestFXHandler_SyncFXRates(t *testing.T) {
	t.Run("returns_200_with_summary", func(t *testing.T) {
		var gotCurrencies []string
		var gotDate time.Time
		svc := &mockFXService{
			syncFn: func(_ context.Context, currencies []string, quote string, date time.Time) (*services.FXSyncResult, error) {
				gotCurrencies = currencies
				gotDate = date
				return &services.FXSyncResult{Date: date.Format(models.DateLayout), Quote: quote, Created: 2, Failed: []string{}}, nil
			},
		}
		r := setupFXRouter(NewFXHandler(svc))

		rec := doRequest(r, "POST", "/pipeline/fx-rates/sync", `{"currencies":["EUR","GBP"],"quote":"USD","date":"2026-03-31"}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if len(gotCurrencies) != 2 || gotDate.Format(models.DateLayout) != "2026-03-31" {
			t.Errorf("unexpected service input: %v %v", gotCurrencies, gotDate)
		}
		result := parseJSON(t, rec)["result"].(map[string]interface{})
		if result["created"].(float64) != 2 {
			t.Errorf("expected created=2, got %v", result["created"])
		}
	})

	t.Run("date_is_optional", func(t *testing.T) {
		var gotDate time.Time
		svc := &mockFXService{
			syncFn: func(_ context.Context, _ []string, quote string, date time.Time) (*services.FXSyncResult, error) {
				gotDate = date
				return &services.FXSyncResult{Quote: quote, Failed: []string{}}, nil
			},
		}
		r := setupFXRouter(NewFXHandler(svc))

		rec := doRequest(r, "POST", "/pipeline/fx-rates/sync", `{"currencies":["EUR"],"quote":"USD"}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if !gotDate.IsZero() {
			t.Errorf("expected zero date, got %v", gotDate)
		}
	})

	t.Run("returns_400_invalid", func(t *testing.T) {
		tests := []struct {
			name string
			body string
		}{
			{"no_currencies", `{"currencies":[],"quote":"USD"}`},
			{"unknown_currency", `{"currencies":["ZZZ"],"quote":"USD"}`},
			{"lowercase_quote", `{"currencies":["EUR"],"quote":"usd"}`},
			{"bad_date", `{"currencies":["EUR"],"quote":"USD","date":"2026/03/31"}`},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				r := setupFXRouter(NewFXHandler(&mockFXService{}))

				rec := doRequest(r, "POST", "/pipeline/fx-rates/sync", tt.body)

				if rec.Code != http.StatusBadRequest {
					t.Fatalf("expected 400, got %d", rec.Code)
				}
			})
		}
	})

	t.Run("returns_502_provider_error", func(t *testing.T) {
		svc := &mockFXService{
			syncFn: func(context.Context, []string, string, time.Time) (*services.FXSyncResult, error) {
				return nil, apperrors.ErrFXProvider
			},
		}
		r := setupFXRouter(NewFXHandler(svc))

		rec := doRequest(r, "POST", "/pipeline/fx-rates/sync", `{"currencies":["EUR"],"quote":"USD"}`)

		if rec.Code != http.StatusBadGateway {
			t.Fatalf("expected 502, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "FX_PROVIDER_ERROR")
	})
}
