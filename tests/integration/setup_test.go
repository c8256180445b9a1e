package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	_ "backoffice/internal/docs"
	"backoffice/internal/handlers"
	"backoffice/internal/logger"
	"backoffice/internal/marketdata"
	"backoffice/internal/metrics"
	"backoffice/internal/middleware"
	"backoffice/internal/models"
	"backoffice/internal/services"
	"backoffice/internal/validator"
	"backoffice/internal/worker"
)

const (
	testJWTSecret = "integration-secret"
	testAPIKey    = "integration-pipeline-key"
)

// testApp holds the full application stack for integration tests.
type testApp struct {
	DB         *gorm.DB
	Router     *gin.Engine
	Metrics    *metrics.Registry
	Dispatcher *worker.Dispatcher
}

// dbCounter ensures each test gets a unique in-memory database.
var dbCounter atomic.Int64

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
	validator.Register()
}

// setupIsolatedDB creates an isolated in-memory SQLite database for a single test.
func setupIsolatedDB(t *testing.T) *gorm.DB {
	t.Helper()

	n := dbCounter.Add(1)
	dsn := fmt.Sprintf("file:integrationdb%d?mode=memory&cache=shared", n)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// setupApp creates a full application stack backed by an isolated in-memory
// SQLite. fxRates, when non-nil, are served by a fake chart endpoint keyed
// by ticker (e.g. "EURUSD=X").
func setupApp(t *testing.T, fxRates map[string]string) *testApp {
	t.Helper()

	db := setupIsolatedDB(t)
	m := metrics.New()

	fxServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ticker := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
		price, ok := fxRates[ticker]
		w.Header().Set("Content-Type", "application/json")
		if !ok {
			fmt.Fprint(w, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`)
			return
		}
		fmt.Fprintf(w, `{"chart":{"result":[{"meta":{"symbol":%q,"regularMarketPrice":%s}}],"error":null}}`, ticker, price)
	}))
	t.Cleanup(fxServer.Close)

	// Services
	auditService := services.NewAuditService(db)
	portfolioService := services.NewPortfolioService(db)
	instrumentService := services.NewInstrumentService(db)
	snapshotService := services.NewPositionSnapshotService(db)
	forex := marketdata.NewForexClient(marketdata.WithBaseURL(fxServer.URL), marketdata.WithRateLimit(100))
	fxService := services.NewFXRateService(db, forex, auditService, "test")
	importService := services.NewPortfolioImportService(db, instrumentService, snapshotService, auditService, m,
		services.ImportConfig{UploadDir: t.TempDir(), BatchSize: 2})
	preflightService := services.NewPreflightService(db, importService, instrumentService, fxService, m)
	exporter := services.NewMissingInstrumentExporter(db, importService, preflightService)

	dispatcher := worker.NewDispatcher(importService, m, 1, 4)
	dispatcher.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = dispatcher.Stop(ctx)
	})

	routes := &handlers.Routes{
		Portfolios:  handlers.NewPortfolioHandler(portfolioService, snapshotService),
		Instruments: handlers.NewInstrumentHandler(instrumentService, auditService),
		Imports:     handlers.NewImportHandler(importService, preflightService, exporter, dispatcher),
		FX:          handlers.NewFXHandler(fxService),
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging(m))
	router.Use(middleware.ErrorHandler())
	router.GET("/metrics", gin.WrapH(m.Handler()))
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.NoRoute(middleware.NotFound())
	routes.Register(router.Group("/api/v1"),
		middleware.TenantMiddleware(testJWTSecret),
		middleware.PipelineAuthMiddleware(testAPIKey))

	return &testApp{DB: db, Router: router, Metrics: m, Dispatcher: dispatcher}
}

// tokenFor issues a tenant token for orgID.
func tokenFor(t *testing.T, orgID string) string {
	t.Helper()
	token, err := middleware.GenerateTenantToken([]byte(testJWTSecret), orgID, "user-"+orgID[:8], time.Hour)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	return token
}

// request makes an HTTP request to the test router and returns the recorder.
func (app *testApp) request(method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

// pipelineRequest makes a request authenticated with the pipeline API key.
func (app *testApp) pipelineRequest(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", testAPIKey)
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

// upload posts a holdings file as multipart form data.
func (app *testApp) upload(t *testing.T, path, token, fileName, content string, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	part, err := w.CreateFormFile("file", fileName)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := io.WriteString(part, content); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

// parseJSON parses the response body into a map.
func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

// errorCode extracts the error code from an error response.
func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	errObj, ok := parseJSON(t, rec)["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error object, got: %s", rec.Body.String())
	}
	code, _ := errObj["code"].(string)
	return code
}

// createPortfolio creates a portfolio through the API and returns its ID.
func (app *testApp) createPortfolio(t *testing.T, token, name, baseCurrency string) string {
	t.Helper()
	rec := app.request("POST", "/api/v1/portfolios", fmt.Sprintf(`{"name":%q,"base_currency":%q}`, name, baseCurrency), token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create portfolio failed: %d %s", rec.Code, rec.Body.String())
	}
	return parseJSON(t, rec)["portfolio"].(map[string]interface{})["id"].(string)
}

// createInstrument creates an instrument through the API and returns its ID.
func (app *testApp) createInstrument(t *testing.T, token, name, isin, currency string) string {
	t.Helper()
	body := fmt.Sprintf(`{"name":%q,"isin":%q,"currency":%q}`, name, isin, currency)
	rec := app.request("POST", "/api/v1/instruments", body, token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create instrument failed: %d %s", rec.Code, rec.Body.String())
	}
	return parseJSON(t, rec)["instrument"].(map[string]interface{})["id"].(string)
}
