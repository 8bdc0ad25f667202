package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/JonMunkholm/inventory/internal/asset"
	"github.com/JonMunkholm/inventory/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{RequestTimeout: 5 * time.Second},
		Rate:   config.RateLimitConfig{Enabled: false},
	}
}

// writeRecords fills a temp dir with record files for hosts plus one
// malformed file, and returns the dir.
func writeRecords(t *testing.T, hosts ...string) string {
	t.Helper()
	dir := t.TempDir()

	m, err := asset.NewMapper(asset.ReferenceLayout())
	if err != nil {
		t.Fatal(err)
	}
	var records []asset.Record
	for _, h := range hosts {
		rec, err := m.Map(2, []string{
			"B240", "R1", "U1", h, "chtc.wisc.edu", "R640", "SN-" + h, "", "ST",
			"UW", "CSL", "MG", "UW PO 77",
		})
		if err != nil {
			t.Fatal(err)
		}
		records = append(records, rec)
	}
	if _, err := (&asset.Writer{}).WriteAll(context.Background(), dir, records); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "bad.chtc.wisc.edu.yaml"), []byte("- nope\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func newTestServer(t *testing.T, cfg *config.Config, dir string) *Server {
	t.Helper()
	s := NewServer(cfg, asset.NewLoader(), dir)
	if _, err := s.Reload(context.Background()); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	return s
}

func do(t *testing.T, s *Server, method, path string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestServer_Health(t *testing.T) {
	s := newTestServer(t, testConfig(), writeRecords(t, "e1", "e2"))

	rec := do(t, s, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "ok" || body.Records != 2 || body.Errors != 1 {
		t.Errorf("health = %+v", body)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing security headers")
	}
}

func TestServer_ListAssets(t *testing.T) {
	s := newTestServer(t, testConfig(), writeRecords(t, "e1", "e2", "e3"))

	rec := do(t, s, http.MethodGet, "/api/assets", nil)
	var list []AssetSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 {
		t.Fatalf("got %d assets, want 3", len(list))
	}
	for _, a := range list {
		if a.Identity != a.Hostname+"."+a.Domain || a.Domain != "chtc.wisc.edu" {
			t.Errorf("summary = %+v", a)
		}
	}
}

func TestServer_GetAsset(t *testing.T) {
	s := newTestServer(t, testConfig(), writeRecords(t, "e1"))

	tests := []struct {
		name     string
		path     string
		wantCode int
		check    func(t *testing.T, rec *httptest.ResponseRecorder)
	}{
		{
			name:     "json",
			path:     "/api/assets/e1.chtc.wisc.edu",
			wantCode: http.StatusOK,
			check: func(t *testing.T, rec *httptest.ResponseRecorder) {
				var body map[string]any
				if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
					t.Fatal(err)
				}
				hw := body["hardware"].(map[string]any)
				if hw["serial_number"] != "SN-e1" {
					t.Errorf("serial_number = %v", hw["serial_number"])
				}
				if v, ok := hw["purpose"]; !ok || v != nil {
					t.Errorf("absent purpose should be null, got %v", v)
				}
				acq := body["acquisition"].(map[string]any)
				if acq["purchase_order"] != "77" || acq["is_fabrication"] != false {
					t.Errorf("acquisition = %v", acq)
				}
			},
		},
		{
			name:     "yaml",
			path:     "/api/assets/e1.chtc.wisc.edu/yaml",
			wantCode: http.StatusOK,
			check: func(t *testing.T, rec *httptest.ResponseRecorder) {
				if !strings.HasPrefix(rec.Header().Get("Content-Type"), "application/yaml") {
					t.Errorf("Content-Type = %q", rec.Header().Get("Content-Type"))
				}
				got, err := asset.Decode(rec.Body.Bytes())
				if err != nil {
					t.Fatal(err)
				}
				if got.Hardware.SerialNumber != asset.Text("SN-e1") {
					t.Errorf("decoded serial = %v", got.Hardware.SerialNumber)
				}
			},
		},
		{
			name:     "unknown identity",
			path:     "/api/assets/nope.chtc.wisc.edu",
			wantCode: http.StatusNotFound,
			check: func(t *testing.T, rec *httptest.ResponseRecorder) {
				var body ErrorResponse
				if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
					t.Fatal(err)
				}
				if body.Code != "REC005" {
					t.Errorf("code = %q, want REC005", body.Code)
				}
			},
		},
		{
			name:     "malformed file is not served",
			path:     "/api/assets/bad.chtc.wisc.edu",
			wantCode: http.StatusNotFound,
			check:    func(t *testing.T, rec *httptest.ResponseRecorder) {},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodGet, tt.path, nil)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantCode, rec.Body.String())
			}
			tt.check(t, rec)
		})
	}
}

func TestServer_ListErrors(t *testing.T) {
	s := newTestServer(t, testConfig(), writeRecords(t, "e1"))

	rec := do(t, s, http.MethodGet, "/api/errors", nil)
	var errs []LoadError
	if err := json.Unmarshal(rec.Body.Bytes(), &errs); err != nil {
		t.Fatal(err)
	}
	if len(errs) != 1 || errs[0].File != "bad.chtc.wisc.edu.yaml" || errs[0].Code != "REC001" {
		t.Errorf("errors = %+v", errs)
	}
}

func TestServer_Reload(t *testing.T) {
	dir := writeRecords(t, "e1")
	hash, err := bcrypt.GenerateFromPassword([]byte("reload-key"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	cfg := testConfig()
	cfg.Security = config.SecurityConfig{RequireAPIKey: true, APIKeyHashes: []string{string(hash)}}
	s := newTestServer(t, cfg, dir)

	if rec := do(t, s, http.MethodPost, "/api/reload", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("reload without key: status = %d, want 401", rec.Code)
	}

	if err := os.Remove(filepath.Join(dir, "bad.chtc.wisc.edu.yaml")); err != nil {
		t.Fatal(err)
	}

	rec := do(t, s, http.MethodPost, "/api/reload", http.Header{"X-Api-Key": {"reload-key"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("reload: status = %d: %s", rec.Code, rec.Body.String())
	}
	var body ReloadResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Records != 1 || len(body.Errors) != 0 {
		t.Errorf("reload = %+v", body)
	}

	// A failed reload keeps the previous snapshot.
	if err := os.RemoveAll(dir); err != nil {
		t.Fatal(err)
	}
	rec = do(t, s, http.MethodPost, "/api/reload", http.Header{"X-Api-Key": {"reload-key"}})
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("reload of missing dir: status = %d, want 500", rec.Code)
	}
	if rec := do(t, s, http.MethodGet, "/api/assets/e1.chtc.wisc.edu", nil); rec.Code != http.StatusOK {
		t.Errorf("previous snapshot lost: status = %d", rec.Code)
	}
}

func TestServer_RateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerSecond: 0.001, Burst: 2}
	s := newTestServer(t, cfg, writeRecords(t, "e1"))

	for i := 0; i < 2; i++ {
		if rec := do(t, s, http.MethodGet, "/healthz", nil); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i, rec.Code)
		}
	}

	rec := do(t, s, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}
	var body ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Code != "RATE001" {
		t.Errorf("code = %q, want RATE001", body.Code)
	}
}

func TestServer_StartShutdown(t *testing.T) {
	cfg := testConfig()
	cfg.Server.Host = "127.0.0.1"
	s := newTestServer(t, cfg, writeRecords(t, "e1"))

	errCh := make(chan error, 1)
	go func() { errCh <- s.Start() }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Start() error = %v, want nil after shutdown", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start() did not return after Shutdown")
	}
}

func TestServer_ShutdownWaitsForReload(t *testing.T) {
	s := newTestServer(t, testConfig(), writeRecords(t, "e1"))
	if err := s.gate.acquire(context.Background()); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		done <- s.Shutdown(ctx)
	}()

	select {
	case <-done:
		t.Fatal("Shutdown() returned while a reload was running")
	case <-time.After(30 * time.Millisecond):
	}

	s.gate.release()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Shutdown() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Shutdown() did not return after the reload finished")
	}
}
