package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "backoffice/internal/errors"
	"backoffice/internal/models"
	"backoffice/internal/pagination"
	"backoffice/internal/tenant"
)

const testPortfolioID = "0190a000-0000-7000-8000-000000000010"

func setupPortfolioRouter(handler *PortfolioHandler) *gin.Engine {
	r := gin.New()
	auth := r.Group("", injectOrg(testOrgID))
	auth.POST("/portfolios", handler.CreatePortfolio)
	auth.GET("/portfolios", handler.ListPortfolios)
	auth.GET("/portfolios/:id", handler.GetPortfolio)
	auth.GET("/portfolios/:id/snapshots", handler.ListSnapshots)
	return r
}

func TestPortfolioHandler_CreatePortfolio(t *testing.T) {
	t.Run("returns_201_on_success", func(t *testing.T) {
		var gotOrg string
		svc := &mockPortfolioService{
			createPortfolioFn: func(ctx context.Context, name, baseCurrency string) (*models.Portfolio, error) {
				gotOrg, _ = tenant.OrgID(ctx)
				return &models.Portfolio{Name: name, BaseCurrency: baseCurrency}, nil
			},
		}
		r := setupPortfolioRouter(NewPortfolioHandler(svc, &mockSnapshotService{}))

		rec := doRequest(r, "POST", "/portfolios", `{"name":"Main","base_currency":"EUR"}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if gotOrg != testOrgID {
			t.Errorf("expected service ctx scoped to %s, got %q", testOrgID, gotOrg)
		}
		portfolio := parseJSON(t, rec)["portfolio"].(map[string]interface{})
		if portfolio["base_currency"] != "EUR" {
			t.Errorf("expected base_currency EUR, got %v", portfolio["base_currency"])
		}
	})

	t.Run("returns_400_for_unknown_currency", func(t *testing.T) {
		r := setupPortfolioRouter(NewPortfolioHandler(&mockPortfolioService{}, &mockSnapshotService{}))

		rec := doRequest(r, "POST", "/portfolios", `{"name":"Main","base_currency":"XXQ"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
	})

	t.Run("returns_400_missing_name", func(t *testing.T) {
		r := setupPortfolioRouter(NewPortfolioHandler(&mockPortfolioService{}, &mockSnapshotService{}))

		rec := doRequest(r, "POST", "/portfolios", `{"base_currency":"USD"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestPortfolioHandler_ListPortfolios(t *testing.T) {
	t.Run("passes_pagination", func(t *testing.T) {
		var gotPage pagination.PageRequest
		svc := &mockPortfolioService{
			listPortfoliosFn: func(_ context.Context, page pagination.PageRequest) (*pagination.PageResponse[models.Portfolio], error) {
				gotPage = page
				resp := pagination.NewPageResponse([]models.Portfolio{{Name: "Main"}}, page.Page, page.PageSize, 1)
				return &resp, nil
			},
		}
		r := setupPortfolioRouter(NewPortfolioHandler(svc, &mockSnapshotService{}))

		rec := doRequest(r, "GET", "/portfolios?page=2&page_size=5", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if gotPage.Page != 2 || gotPage.PageSize != 5 {
			t.Errorf("expected page 2 size 5, got %+v", gotPage)
		}
	})

	t.Run("returns_400_for_oversized_page", func(t *testing.T) {
		r := setupPortfolioRouter(NewPortfolioHandler(&mockPortfolioService{}, &mockSnapshotService{}))

		rec := doRequest(r, "GET", "/portfolios?page_size=500", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestPortfolioHandler_GetPortfolio(t *testing.T) {
	t.Run("returns_200", func(t *testing.T) {
		r := setupPortfolioRouter(NewPortfolioHandler(&mockPortfolioService{}, &mockSnapshotService{}))

		rec := doRequest(r, "GET", "/portfolios/"+testPortfolioID, "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("returns_400_invalid_id", func(t *testing.T) {
		r := setupPortfolioRouter(NewPortfolioHandler(&mockPortfolioService{}, &mockSnapshotService{}))

		rec := doRequest(r, "GET", "/portfolios/not-a-uuid", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
	})

	t.Run("returns_404_not_found", func(t *testing.T) {
		svc := &mockPortfolioService{
			getPortfolioFn: func(context.Context, string) (*models.Portfolio, error) {
				return nil, apperrors.ErrPortfolioNotFound
			},
		}
		r := setupPortfolioRouter(NewPortfolioHandler(svc, &mockSnapshotService{}))

		rec := doRequest(r, "GET", "/portfolios/"+testPortfolioID, "")

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "PORTFOLIO_NOT_FOUND")
	})
}

func TestPortfolioHandler_ListSnapshots(t *testing.T) {
	t.Run("filters_by_as_of_date", func(t *testing.T) {
		var gotAsOf *time.Time
		snapshots := &mockSnapshotService{
			listFn: func(_ context.Context, portfolioID string, asOf *time.Time, _ pagination.PageRequest) (*pagination.PageResponse[models.PositionSnapshot], error) {
				if portfolioID != testPortfolioID {
					t.Errorf("expected portfolio %s, got %s", testPortfolioID, portfolioID)
				}
				gotAsOf = asOf
				resp := pagination.NewPageResponse([]models.PositionSnapshot{}, 1, 20, 0)
				return &resp, nil
			},
		}
		r := setupPortfolioRouter(NewPortfolioHandler(&mockPortfolioService{}, snapshots))

		rec := doRequest(r, "GET", "/portfolios/"+testPortfolioID+"/snapshots?as_of_date=2026-03-31", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if gotAsOf == nil || gotAsOf.Format(models.DateLayout) != "2026-03-31" {
			t.Errorf("expected as_of_date 2026-03-31, got %v", gotAsOf)
		}
	})

	t.Run("without_date_lists_all", func(t *testing.T) {
		called := false
		snapshots := &mockSnapshotService{
			listFn: func(_ context.Context, _ string, asOf *time.Time, _ pagination.PageRequest) (*pagination.PageResponse[models.PositionSnapshot], error) {
				called = true
				if asOf != nil {
					t.Errorf("expected nil as_of_date, got %v", asOf)
				}
				resp := pagination.NewPageResponse([]models.PositionSnapshot{}, 1, 20, 0)
				return &resp, nil
			},
		}
		r := setupPortfolioRouter(NewPortfolioHandler(&mockPortfolioService{}, snapshots))

		rec := doRequest(r, "GET", "/portfolios/"+testPortfolioID+"/snapshots", "")

		if rec.Code != http.StatusOK || !called {
			t.Fatalf("expected 200 and a service call, got %d", rec.Code)
		}
	})

	t.Run("returns_400_bad_date", func(t *testing.T) {
		r := setupPortfolioRouter(NewPortfolioHandler(&mockPortfolioService{}, &mockSnapshotService{}))

		rec := doRequest(r, "GET", "/portfolios/"+testPortfolioID+"/snapshots?as_of_date=31-03-2026", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("returns_404_for_foreign_portfolio", func(t *testing.T) {
		portfolios := &mockPortfolioService{
			getPortfolioFn: func(context.Context, string) (*models.Portfolio, error) {
				return nil, apperrors.ErrPortfolioNotFound
			},
		}
		r := setupPortfolioRouter(NewPortfolioHandler(portfolios, &mockSnapshotService{}))

		rec := doRequest(r, "GET", "/portfolios/"+testPortfolioID+"/snapshots", "")

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})
}
