package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/stockimport/internal/config"
	"github.com/JonMunkholm/stockimport/internal/core"
	"github.com/JonMunkholm/stockimport/internal/store"
)

const sampleCSV = "SKU,Name,Qty\nA1,Widget,10\n,Bad,5\nA2,Gadget,-3\nA3,Thing,notanumber\n"

// =============================================================================
// Test Helpers
// =============================================================================

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{RequestTimeout: 10 * time.Second},
		Database: config.DatabaseConfig{
			Driver: config.DriverMemory,
		},
		Upload: config.UploadConfig{
			MaxFileSize:   1024,
			MaxConcurrent: 2,
			MaxWaitTime:   time.Second,
			Timeout:       5 * time.Second,
		},
		Rate:     config.RateLimitConfig{Enabled: false},
		Security: config.SecurityConfig{EnableCSP: true},
		Logging:  config.LoggingConfig{Level: "debug", Format: "text"},
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// newTestServer wires a real service over gw.
func newTestServer(t *testing.T, cfg *config.Config, gw core.Gateway) *Server {
	t.Helper()
	svc, err := core.NewService(gw, cfg, discardLogger())
	require.NoError(t, err)
	srv := NewServer(svc, cfg, discardLogger())
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func uploadRequest(t *testing.T, field, fileName, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(field, fileName)
	require.NoError(t, err)
	_, err = io.WriteString(part, content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/import", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.RemoteAddr = "192.0.2.10:40000"
	return req
}

func serve(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

type failingGateway struct {
	insertErr error
	findErr   error
	pingErr   error
}

func (g failingGateway) BulkInsert(context.Context, []core.ProductRecord) error { return g.insertErr }
func (g failingGateway) FindAll(context.Context) ([]core.Product, error)        { return nil, g.findErr }
func (g failingGateway) Ping(context.Context) error                             { return g.pingErr }

// busyService rejects every import as if all upload slots were taken.
type busyService struct {
	StockService
}

func (busyService) Import(context.Context, string, []byte) (*core.ImportOutcome, error) {
	return nil, core.ErrTooManyUploads
}

// =============================================================================
// POST /api/import
// =============================================================================

func TestImport_PartialSuccess(t *testing.T) {
	mem := store.NewMemory()
	srv := newTestServer(t, testConfig(), mem)

	rec := serve(srv, uploadRequest(t, "file", "stock.csv", sampleCSV))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp ImportResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, "stock.csv", resp.FileName)
	assert.NotEmpty(t, resp.UploadID)
	assert.Equal(t, 4, resp.TotalRows)
	assert.Equal(t, 2, resp.Imported)
	assert.Equal(t, 2, resp.Skipped)
	assert.Equal(t, map[core.SkipReason]int{
		core.SkipEmptySKU:            1,
		core.SkipInvalidNumberFormat: 1,
	}, resp.SkipReasons)
	assert.Equal(t, 1, resp.Clamped)
	assert.Equal(t, 1, resp.OutOfStock)
	assert.Len(t, resp.SkippedRows, 2)

	assert.Equal(t, 2, mem.Len())
}

func TestImport_Errors(t *testing.T) {
	tests := []struct {
		name     string
		field    string
		fileName string
		content  string
		status   int
		code     string
	}{
		{"wrong extension", "file", "stock.txt", sampleCSV, http.StatusBadRequest, "FILE004"},
		{"empty file", "file", "stock.csv", "", http.StatusBadRequest, "FILE004"},
		{"missing file field", "upload", "stock.csv", sampleCSV, http.StatusBadRequest, "FILE004"},
		{"header only", "file", "stock.csv", "SKU,Name,Qty\n", http.StatusBadRequest, "FILE005"},
		{"no valid rows", "file", "stock.csv", "SKU,Name,Qty\n,Bad,5\nA1,,2\n", http.StatusBadRequest, "VAL001"},
		{"malformed quoting", "file", "stock.csv", "SKU,Name,Qty\nA1,Wi\"dget,10\n", http.StatusBadRequest, "FILE002"},
		{"over size limit", "file", "stock.csv", "SKU,Name,Qty\n" + strings.Repeat("A1,Widget,10\n", 100), http.StatusRequestEntityTooLarge, "FILE001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := store.NewMemory()
			srv := newTestServer(t, testConfig(), mem)

			rec := serve(srv, uploadRequest(t, tt.field, tt.fileName, tt.content))

			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			resp := decodeError(t, rec)
			assert.Equal(t, tt.code, resp.Code)
			assert.NotEmpty(t, resp.Message)
			assert.NotEmpty(t, resp.Action)
			assert.Equal(t, 0, mem.Len(), "nothing may be stored on failure")
		})
	}
}

func TestImport_NotMultipart(t *testing.T) {
	srv := newTestServer(t, testConfig(), store.NewMemory())

	req := httptest.NewRequest(http.MethodPost, "/api/import", strings.NewReader(sampleCSV))
	req.Header.Set("Content-Type", "text/csv")
	rec := serve(srv, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "FILE004", decodeError(t, rec).Code)
}

func TestImport_PersistenceFailure(t *testing.T) {
	srv := newTestServer(t, testConfig(), failingGateway{insertErr: errors.New("disk full")})

	rec := serve(srv, uploadRequest(t, "file", "stock.csv", sampleCSV))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "DB008", decodeError(t, rec).Code)
}

func TestImport_DuplicateKeyReported(t *testing.T) {
	gw := failingGateway{insertErr: fmt.Errorf("%w: %w", core.ErrDuplicateProduct,
		errors.New(`ERROR: duplicate key value violates unique constraint "products_sku_key"`))}
	srv := newTestServer(t, testConfig(), gw)

	rec := serve(srv, uploadRequest(t, "file", "stock.csv", sampleCSV))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "DB001", decodeError(t, rec).Code)
}

func TestImport_Busy(t *testing.T) {
	cfg := testConfig()
	srv := NewServer(busyService{}, cfg, discardLogger())

	rec := serve(srv, uploadRequest(t, "file", "stock.csv", sampleCSV))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "5", rec.Header().Get("Retry-After"))
	assert.Equal(t, "UPL002", decodeError(t, rec).Code)
}

// =============================================================================
// GET /api/products
// =============================================================================

func TestListProducts_Empty(t *testing.T) {
	srv := newTestServer(t, testConfig(), store.NewMemory())

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/api/products", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestListProducts_AfterImport(t *testing.T) {
	srv := newTestServer(t, testConfig(), store.NewMemory())
	require.Equal(t, http.StatusOK, serve(srv, uploadRequest(t, "file", "stock.csv", sampleCSV)).Code)

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/api/products", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[
		{"id":1,"sku":"A1","name":"Widget","stockQuantity":10},
		{"id":2,"sku":"A2","name":"Gadget","stockQuantity":0}
	]`, rec.Body.String())
}

func TestListProducts_StoreFailure(t *testing.T) {
	srv := newTestServer(t, testConfig(), failingGateway{findErr: errors.New("connection refused")})

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/api/products", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "DB004", decodeError(t, rec).Code)
}

func TestProductSummary(t *testing.T) {
	srv := newTestServer(t, testConfig(), store.NewMemory())
	require.Equal(t, http.StatusOK, serve(srv, uploadRequest(t, "file", "stock.csv", sampleCSV)).Code)

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/api/products/summary", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"total":2,"outOfStock":1}`, rec.Body.String())
}

// =============================================================================
// Health, dashboard and middleware
// =============================================================================

func TestHealth(t *testing.T) {
	srv := newTestServer(t, testConfig(), store.NewMemory())
	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status  string                   `json:"status"`
		Uploads core.UploadLimiterStatus `json:"uploads"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, 2, body.Uploads.MaxConcurrent)

	down := newTestServer(t, testConfig(), failingGateway{pingErr: errors.New("connection refused")})
	rec = serve(down, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestDashboard_EscapesProductFields(t *testing.T) {
	mem := store.NewMemory()
	require.NoError(t, mem.BulkInsert(context.Background(), []core.ProductRecord{
		{SKU: "X<1>", Name: "<script>alert(1)</script>", StockQuantity: 0},
		{SKU: "A1", Name: "Widget", StockQuantity: 3},
	}))
	srv := newTestServer(t, testConfig(), mem)

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, "&lt;script&gt;alert(1)&lt;/script&gt;")
	assert.NotContains(t, body, "<script>alert(1)</script>")
	assert.Contains(t, body, "X&lt;1&gt;")
	assert.Contains(t, body, `<tr class="out">`)
	assert.Contains(t, body, "Out of stock: <strong>1</strong>")
}

func TestDashboard_ErrorIsPlainText(t *testing.T) {
	var logs bytes.Buffer
	cfg := testConfig()
	svc, err := core.NewService(failingGateway{findErr: errors.New("dial tcp: connection refused")}, cfg, discardLogger())
	require.NoError(t, err)
	srv := NewServer(svc, cfg, slog.New(slog.NewTextHandler(&logs, nil)))
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t,
		"Unable to connect to database (Code: DB004). Please try again in a few moments\n",
		rec.Body.String())
	assert.Contains(t, logs.String(), "code=DB004")
	assert.Contains(t, logs.String(), "mapped=true")
}

func TestRespondError_UnmappedLoggedAsError(t *testing.T) {
	var logs bytes.Buffer
	srv := NewServer(busyService{}, testConfig(), slog.New(slog.NewTextHandler(&logs, nil)))
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	req := httptest.NewRequest(http.MethodGet, "/api/anything", nil)
	rec := httptest.NewRecorder()
	srv.respondError(rec, req, errors.New("something strange"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "ERR000", decodeError(t, rec).Code)
	assert.Contains(t, logs.String(), "level=ERROR")
	assert.Contains(t, logs.String(), "mapped=false")
}

func TestSecurityHeaders(t *testing.T) {
	srv := newTestServer(t, testConfig(), store.NewMemory())

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/api/products", nil))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))
}

func TestCORS(t *testing.T) {
	cfg := testConfig()
	cfg.Security.AllowedOrigins = []string{"https://stock.example.com"}
	srv := newTestServer(t, cfg, store.NewMemory())

	req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
	req.Header.Set("Origin", "https://stock.example.com")
	rec := serve(srv, req)
	assert.Equal(t, "https://stock.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/products", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = serve(srv, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimit_UploadRoute(t *testing.T) {
	cfg := testConfig()
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 100, UploadLimit: 1}
	srv := newTestServer(t, cfg, store.NewMemory())

	first := serve(srv, uploadRequest(t, "file", "stock.csv", sampleCSV))
	require.Equal(t, http.StatusOK, first.Code)

	second := serve(srv, uploadRequest(t, "file", "stock.csv", sampleCSV))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "60", second.Header().Get("Retry-After"))
	assert.Equal(t, "RATE001", decodeError(t, second).Code)

	// Reads are limited separately.
	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/api/products", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{core.ErrFileTooLarge, http.StatusRequestEntityTooLarge},
		{core.ErrInvalidInput, http.StatusBadRequest},
		{core.ErrMalformedContent, http.StatusBadRequest},
		{core.ErrNoDataRows, http.StatusBadRequest},
		{core.ErrNoValidRows, http.StatusBadRequest},
		{core.ErrSourceNotFound, http.StatusInternalServerError},
		{core.ErrPersistenceFailure, http.StatusInternalServerError},
		{core.ErrTooManyUploads, http.StatusServiceUnavailable},
		{fmt.Errorf("%w: %w", core.ErrPersistenceFailure, core.ErrDuplicateProduct), http.StatusConflict},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), "statusFor(%v)", tt.err)
	}
}
