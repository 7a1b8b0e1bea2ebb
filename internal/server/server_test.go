package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"ibex-sync/internal/config"
	"ibex-sync/internal/service"
	"ibex-sync/internal/storage"
)

func testBackends(t *testing.T, values [][]any, tokenStatus int) (*httptest.Server, *httptest.Server) {
	t.Helper()

	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if tokenStatus != http.StatusOK {
			w.WriteHeader(tokenStatus)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "T"})
	}))
	t.Cleanup(tokenSrv.Close)

	sheetSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"values": values})
	}))
	t.Cleanup(sheetSrv.Close)

	return tokenSrv, sheetSrv
}

func newTestServer(tokenURL, sheetsURL string) (*Server, *storage.MemoryStore) {
	cfg := &config.Config{
		Server: config.ServerConfig{CacheTTL: 5 * time.Minute},
		Sheets: config.SheetsConfig{
			SheetID:        "sheet-1",
			ClientID:       "client",
			ClientSecret:   "secret",
			RefreshToken:   "refresh",
			TokenURL:       tokenURL,
			BaseURL:        sheetsURL,
			Scope:          "scope",
			RequestTimeout: time.Second,
		},
	}

	store := storage.NewMemoryStore()
	svc := service.New(cfg, store, nil, zerolog.Nop())
	return New(cfg.Server, svc, store, zerolog.Nop()), store
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var envelope map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("response is not JSON: %v\n%s", err, rec.Body.String())
	}
	return envelope
}

func TestCompaniesSuccessEnvelope(t *testing.T) {
	values := [][]any{
		{"SAN.MC", "Santander", "Banking", "SAN", "4.50", "60000000000", "1000000"},
		{"ITX.MC", "Inditex", "Retail", "ITX", 47.3, 1.47e11, 2.4e7},
	}
	tokenSrv, sheetSrv := testBackends(t, values, http.StatusOK)
	srv, _ := newTestServer(tokenSrv.URL, sheetSrv.URL)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/companies", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("expected open CORS, got %q", got)
	}
	cacheControl := rec.Header().Get("Cache-Control")
	if !strings.Contains(cacheControl, "public") || !strings.Contains(cacheControl, "max-age=300") {
		t.Fatalf("success responses must be cacheable, got %q", cacheControl)
	}

	envelope := decodeEnvelope(t, rec)
	if envelope["success"] != true {
		t.Fatalf("expected success envelope: %v", envelope)
	}
	if envelope["count"] != float64(2) {
		t.Fatalf("expected count 2, got %v", envelope["count"])
	}
	if envelope["source"] != "oauth-refresh" {
		t.Fatalf("expected source oauth-refresh, got %v", envelope["source"])
	}
	if _, ok := envelope["error"]; ok {
		t.Fatal("success envelope must not carry an error field")
	}
	data, ok := envelope["data"].([]any)
	if !ok || len(data) != 2 {
		t.Fatalf("expected 2 data records: %v", envelope["data"])
	}
}

func TestCompaniesServedFromCacheWhenFresh(t *testing.T) {
	values := [][]any{
		{"SAN.MC", "Santander", "Banking", "SAN", "4.50", "60000000000", "1000000"},
	}
	tokenSrv, sheetSrv := testBackends(t, values, http.StatusOK)
	srv, _ := newTestServer(tokenSrv.URL, sheetSrv.URL)

	first := httptest.NewRecorder()
	srv.Handler().ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/api/companies", nil))
	if first.Code != http.StatusOK {
		t.Fatalf("priming request failed: %d", first.Code)
	}

	second := httptest.NewRecorder()
	srv.Handler().ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/api/companies", nil))
	if second.Code != http.StatusOK {
		t.Fatalf("cached request failed: %d", second.Code)
	}

	envelope := decodeEnvelope(t, second)
	if envelope["source"] != "cache" {
		t.Fatalf("second request within the TTL should be served from the store, got %v", envelope["source"])
	}
}

func TestCompaniesMissingConfiguration(t *testing.T) {
	srv, _ := newTestServer("http://unused.invalid", "http://unused.invalid")
	srv.svc = service.New(&config.Config{
		Server: config.ServerConfig{CacheTTL: 5 * time.Minute},
		Sheets: config.SheetsConfig{RequestTimeout: time.Second},
	}, storage.NewMemoryStore(), nil, zerolog.Nop())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/companies", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("error responses still carry CORS, got %q", got)
	}
	if got := rec.Header().Get("Cache-Control"); got != "no-store" {
		t.Fatalf("error responses must not be cacheable, got %q", got)
	}

	envelope := decodeEnvelope(t, rec)
	if envelope["success"] != false {
		t.Fatalf("expected error envelope: %v", envelope)
	}
	if envelope["status"] != float64(500) {
		t.Fatalf("expected status 500 in body, got %v", envelope["status"])
	}
	msg, _ := envelope["error"].(string)
	if !strings.Contains(msg, "configuration") {
		t.Fatalf("error should name the configuration failure: %q", msg)
	}
	if _, ok := envelope["data"]; ok {
		t.Fatal("error envelope must not carry a data field")
	}
}

func TestCompaniesTokenExchangeFailure(t *testing.T) {
	tokenSrv, sheetSrv := testBackends(t, nil, http.StatusUnauthorized)
	srv, _ := newTestServer(tokenSrv.URL, sheetSrv.URL)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/companies", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}

	envelope := decodeEnvelope(t, rec)
	msg, _ := envelope["error"].(string)
	if !strings.Contains(msg, "token exchange") || !strings.Contains(msg, "401") {
		t.Fatalf("error should name the token exchange and upstream status: %q", msg)
	}
}

func TestCompanyByTicker(t *testing.T) {
	tokenSrv, sheetSrv := testBackends(t, nil, http.StatusOK)
	srv, store := newTestServer(tokenSrv.URL, sheetSrv.URL)

	batch := []storage.Company{
		{Ticker: "SAN.MC", Name: "Santander", Sector: "Banking", FormattedTicker: "SAN", CurrentPriceEur: 4.5},
	}
	if err := store.ReplaceCompanies(context.Background(), batch, time.Now()); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/companies/SAN.MC", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	envelope := decodeEnvelope(t, rec)
	data, _ := envelope["data"].(map[string]any)
	if data["ticker"] != "SAN.MC" {
		t.Fatalf("wrong record: %v", envelope["data"])
	}

	missing := httptest.NewRecorder()
	srv.Handler().ServeHTTP(missing, httptest.NewRequest(http.MethodGet, "/api/companies/NOPE.MC", nil))
	if missing.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", missing.Code)
	}
	missingEnvelope := decodeEnvelope(t, missing)
	if missingEnvelope["success"] != false {
		t.Fatalf("expected error envelope: %v", missingEnvelope)
	}
}

func TestSectors(t *testing.T) {
	tokenSrv, sheetSrv := testBackends(t, nil, http.StatusOK)
	srv, store := newTestServer(tokenSrv.URL, sheetSrv.URL)

	batch := []storage.Company{
		{Ticker: "SAN.MC", Name: "Santander", Sector: "Banking", CurrentPriceEur: 4.5, MarketCapEur: 6e10},
		{Ticker: "BBVA.MC", Name: "BBVA", Sector: "Banking", CurrentPriceEur: 10.9, MarketCapEur: 6.3e10},
	}
	if err := store.ReplaceCompanies(context.Background(), batch, time.Now()); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sectors", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	envelope := decodeEnvelope(t, rec)
	if envelope["count"] != float64(1) {
		t.Fatalf("expected one sector, got %v", envelope["count"])
	}
}

func TestPreflight(t *testing.T) {
	tokenSrv, sheetSrv := testBackends(t, nil, http.StatusOK)
	srv, _ := newTestServer(tokenSrv.URL, sheetSrv.URL)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/companies", nil))

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("preflight must allow any origin, got %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(got, "GET") {
		t.Fatalf("preflight must advertise GET, got %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Headers"); got != "Content-Type" {
		t.Fatalf("unexpected allowed headers %q", got)
	}
	if got := rec.Header().Get("Access-Control-Max-Age"); got != "86400" {
		t.Fatalf("unexpected preflight max-age %q", got)
	}
	if rec.Body.Len() != 0 {
		t.Fatalf("preflight must have an empty body, got %q", rec.Body.String())
	}
}

func TestMethodNotAllowed(t *testing.T) {
	tokenSrv, sheetSrv := testBackends(t, nil, http.StatusOK)
	srv, _ := newTestServer(tokenSrv.URL, sheetSrv.URL)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/companies", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); !strings.HasPrefix(got, "text/plain") {
		t.Fatalf("405 is plain text, got %q", got)
	}
	if rec.Body.String() != "Method not allowed" {
		t.Fatalf("unexpected 405 body %q", rec.Body.String())
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("405 responses still carry CORS, got %q", got)
	}
}

func TestHealthz(t *testing.T) {
	tokenSrv, sheetSrv := testBackends(t, nil, http.StatusOK)
	srv, _ := newTestServer(tokenSrv.URL, sheetSrv.URL)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ok") {
		t.Fatalf("unexpected health body %q", rec.Body.String())
	}
}
