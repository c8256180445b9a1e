package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"backoffice/internal/models"
	"backoffice/internal/pagination"
	"backoffice/internal/services"
	"backoffice/internal/tenant"
	"backoffice/internal/validator"
	"backoffice/internal/worker"
)

const testOrgID = "0190a000-0000-7000-8000-000000000001"

// --- mock services ---

type mockPortfolioService struct {
	createPortfolioFn func(ctx context.Context, name, baseCurrency string) (*models.Portfolio, error)
	getPortfolioFn    func(ctx context.Context, portfolioID string) (*models.Portfolio, error)
	listPortfoliosFn  func(ctx context.Context, page pagination.PageRequest) (*pagination.PageResponse[models.Portfolio], error)
}

var _ services.PortfolioServicer = (*mockPortfolioService)(nil)

func (m *mockPortfolioService) CreatePortfolio(ctx context.Context, name, baseCurrency string) (*models.Portfolio, error) {
	if m.createPortfolioFn != nil {
		return m.createPortfolioFn(ctx, name, baseCurrency)
	}
	return &models.Portfolio{Name: name, BaseCurrency: baseCurrency}, nil
}

func (m *mockPortfolioService) GetPortfolio(ctx context.Context, portfolioID string) (*models.Portfolio, error) {
	if m.getPortfolioFn != nil {
		return m.getPortfolioFn(ctx, portfolioID)
	}
	p := &models.Portfolio{Name: "Main", BaseCurrency: "USD"}
	p.ID = portfolioID
	return p, nil
}

func (m *mockPortfolioService) ListPortfolios(ctx context.Context, page pagination.PageRequest) (*pagination.PageResponse[models.Portfolio], error) {
	if m.listPortfoliosFn != nil {
		return m.listPortfoliosFn(ctx, page)
	}
	resp := pagination.NewPageResponse([]models.Portfolio{}, 1, 20, 0)
	return &resp, nil
}

type mockSnapshotService struct {
	listFn func(ctx context.Context, portfolioID string, asOf *time.Time, page pagination.PageRequest) (*pagination.PageResponse[models.PositionSnapshot], error)
}

var _ services.PositionSnapshotServicer = (*mockSnapshotService)(nil)

func (m *mockSnapshotService) List(ctx context.Context, portfolioID string, asOf *time.Time, page pagination.PageRequest) (*pagination.PageResponse[models.PositionSnapshot], error) {
	if m.listFn != nil {
		return m.listFn(ctx, portfolioID, asOf, page)
	}
	resp := pagination.NewPageResponse([]models.PositionSnapshot{}, 1, 20, 0)
	return &resp, nil
}

func (m *mockSnapshotService) ExistingInstrumentIDs(context.Context, string, time.Time) (map[string]bool, error) {
	return map[string]bool{}, nil
}

type mockInstrumentService struct {
	createInstrumentFn func(ctx context.Context, in services.InstrumentInput) (*models.Instrument, error)
	getInstrumentFn    func(ctx context.Context, instrumentID string) (*models.Instrument, error)
	listInstrumentsFn  func(ctx context.Context, page pagination.PageRequest) (*pagination.PageResponse[models.Instrument], error)
	recordPricesFn     func(ctx context.Context, instrumentID string, prices []services.InstrumentPriceInput) (int, error)
}

var _ services.InstrumentServicer = (*mockInstrumentService)(nil)

func (m *mockInstrumentService) Resolve(context.Context, []string) (map[string]*models.Instrument, error) {
	return map[string]*models.Instrument{}, nil
}

func (m *mockInstrumentService) CreateInstrument(ctx context.Context, in services.InstrumentInput) (*models.Instrument, error) {
	if m.createInstrumentFn != nil {
		return m.createInstrumentFn(ctx, in)
	}
	return &models.Instrument{Name: in.Name, ISIN: in.ISIN, Ticker: in.Ticker, Currency: in.Currency}, nil
}

func (m *mockInstrumentService) GetInstrument(ctx context.Context, instrumentID string) (*models.Instrument, error) {
	if m.getInstrumentFn != nil {
		return m.getInstrumentFn(ctx, instrumentID)
	}
	return &models.Instrument{Name: "Apple"}, nil
}

func (m *mockInstrumentService) ListInstruments(ctx context.Context, page pagination.PageRequest) (*pagination.PageResponse[models.Instrument], error) {
	if m.listInstrumentsFn != nil {
		return m.listInstrumentsFn(ctx, page)
	}
	resp := pagination.NewPageResponse([]models.Instrument{}, 1, 20, 0)
	return &resp, nil
}

func (m *mockInstrumentService) RecordPrices(ctx context.Context, instrumentID string, prices []services.InstrumentPriceInput) (int, error) {
	if m.recordPricesFn != nil {
		return m.recordPricesFn(ctx, instrumentID, prices)
	}
	return len(prices), nil
}

type mockImportService struct {
	createImportFn   func(ctx context.Context, in services.CreateImportInput) (*models.PortfolioImport, error)
	getImportFn      func(ctx context.Context, importID string) (*models.PortfolioImport, error)
	importFromFileFn func(ctx context.Context, importID string, opts services.ImportOptions) (*services.ImportResult, error)
	listErrorsFn     func(ctx context.Context, importID string, page pagination.PageRequest) (*pagination.PageResponse[models.PortfolioImportError], error)
	failed           []string
}

var _ services.PortfolioImportServicer = (*mockImportService)(nil)

func (m *mockImportService) CreateImport(ctx context.Context, in services.CreateImportInput) (*models.PortfolioImport, error) {
	if m.createImportFn != nil {
		return m.createImportFn(ctx, in)
	}
	if _, err := io.Copy(io.Discard, in.Content); err != nil {
		return nil, err
	}
	imp := &models.PortfolioImport{PortfolioID: in.PortfolioID, FileName: in.FileName, Status: models.ImportStatusPending}
	imp.ID = "0190a000-0000-7000-8000-0000000000aa"
	return imp, nil
}

func (m *mockImportService) GetImport(ctx context.Context, importID string) (*models.PortfolioImport, error) {
	if m.getImportFn != nil {
		return m.getImportFn(ctx, importID)
	}
	imp := &models.PortfolioImport{Status: models.ImportStatusPending}
	imp.ID = importID
	return imp, nil
}

func (m *mockImportService) ImportFromFile(ctx context.Context, importID string, opts services.ImportOptions) (*services.ImportResult, error) {
	if m.importFromFileFn != nil {
		return m.importFromFileFn(ctx, importID, opts)
	}
	return &services.ImportResult{ImportID: importID, Status: models.ImportStatusSuccess}, nil
}

func (m *mockImportService) CheckDuplicate(context.Context, string, string, string) (*models.PortfolioImport, error) {
	return nil, nil
}

func (m *mockImportService) MarkFailed(_ context.Context, importID, _ string) error {
	m.failed = append(m.failed, importID)
	return nil
}

func (m *mockImportService) ListErrors(ctx context.Context, importID string, page pagination.PageRequest) (*pagination.PageResponse[models.PortfolioImportError], error) {
	if m.listErrorsFn != nil {
		return m.listErrorsFn(ctx, importID, page)
	}
	resp := pagination.NewPageResponse([]models.PortfolioImportError{}, 1, 20, 0)
	return &resp, nil
}

type mockPreflightService struct {
	preflightFn func(ctx context.Context, importID string) (*services.PreflightResult, error)
}

func (m *mockPreflightService) Preflight(ctx context.Context, importID string) (*services.PreflightResult, error) {
	if m.preflightFn != nil {
		return m.preflightFn(ctx, importID)
	}
	return &services.PreflightResult{Ready: true}, nil
}

type mockExporter struct {
	exportFn func(ctx context.Context, importID string) (*services.ExportFile, error)
}

func (m *mockExporter) Export(ctx context.Context, importID string) (*services.ExportFile, error) {
	if m.exportFn != nil {
		return m.exportFn(ctx, importID)
	}
	return &services.ExportFile{Name: "missing.csv", ContentType: "text/csv; charset=utf-8", Content: []byte("instrument_identifier\n")}, nil
}

type mockFXService struct {
	syncFn func(ctx context.Context, currencies []string, quote string, date time.Time) (*services.FXSyncResult, error)
}

var _ services.FXRateServicer = (*mockFXService)(nil)

func (m *mockFXService) Sync(ctx context.Context, currencies []string, quote string, date time.Time) (*services.FXSyncResult, error) {
	if m.syncFn != nil {
		return m.syncFn(ctx, currencies, quote, date)
	}
	return &services.FXSyncResult{Quote: quote, Created: len(currencies), Failed: []string{}}, nil
}

func (m *mockFXService) Has(context.Context, string, string, time.Time) (bool, error) {
	return true, nil
}

type mockAuditService struct {
	actions []string
}

func (m *mockAuditService) Log(_ context.Context, action, _, _, _ string, _ map[string]interface{}) {
	m.actions = append(m.actions, action)
}

type mockSubmitter struct {
	jobs []worker.Job
	err  error
}

func (m *mockSubmitter) Submit(job worker.Job) error {
	if m.err != nil {
		return m.err
	}
	m.jobs = append(m.jobs, job)
	return nil
}

// --- test helpers ---

func init() {
	gin.SetMode(gin.TestMode)
	validator.Register()
}

// injectOrg scopes the request context to orgID the way TenantMiddleware does.
func injectOrg(orgID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := tenant.WithActor(tenant.WithOrg(c.Request.Context(), orgID), "user-1")
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func doRequest(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

func assertErrorCode(t *testing.T, result map[string]interface{}, code string) {
	t.Helper()
	errObj, ok := result["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error object in response, got: %v", result)
	}
	if errObj["code"] != code {
		t.Errorf("expected error code %q, got %q", code, errObj["code"])
	}
}
