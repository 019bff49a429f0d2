package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/eugenenazirov/mcp-foundation/internal/config"
)

type controllableClock struct {
	mu  sync.RWMutex
	now time.Time
}

func newControllableClock(initial time.Time) *controllableClock {
	return &controllableClock{now: initial}
}

func (c *controllableClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

func (c *controllableClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testServer struct {
	router  http.Handler
	clock   *controllableClock
	holder  *config.Holder
	envFile string
}

func writeEnvFile(t *testing.T, path string, lines ...string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
}

func setupTestServer(t *testing.T, env map[string]string, lines ...string) *testServer {
	t.Helper()

	envFile := filepath.Join(t.TempDir(), ".env")
	writeEnvFile(t, envFile, lines...)

	logger := zaptest.NewLogger(t)
	resolver := config.NewResolver(
		config.WithEnvironment(config.MapEnv(env)),
		config.WithOverrideFile(envFile),
		config.WithLogger(logger),
	)
	initial, err := resolver.Resolve()
	if err != nil {
		t.Fatalf("resolve config: %v", err)
	}

	holder := config.NewHolder(initial, resolver, logger)
	clock := newControllableClock(time.Date(2024, 11, 1, 12, 0, 0, 0, time.UTC))
	handler := NewHandler(holder, WithClock(clock.Now))

	return &testServer{
		router:  NewRouter(handler, logger, WithLogging(false)),
		clock:   clock,
		holder:  holder,
		envFile: envFile,
	}
}

type configBody struct {
	Config struct {
		Mode        string            `json:"deploymentMode"`
		Category    string            `json:"category"`
		Port        int               `json:"port"`
		DatabaseURL string            `json:"databaseUrl"`
		SecretKey   string            `json:"secretKey"`
		Sources     map[string]string `json:"sources"`
	} `json:"config"`
	Storage struct {
		Backend string `json:"backend"`
		Bucket  string `json:"bucket"`
	} `json:"storage"`
	HotReload   bool      `json:"hotReload"`
	GeneratedAt time.Time `json:"generatedAt"`
	Message     string    `json:"message"`
}

func decodeConfig(t *testing.T, r io.Reader) configBody {
	t.Helper()
	var body configBody
	if err := json.NewDecoder(r).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return body
}

func TestRequestIDHelpers(t *testing.T) {
	ctx := contextWithRequestID(context.Background(), "abc")
	if got := requestIDFromContext(ctx); got != "abc" {
		t.Fatalf("expected abc, got %s", got)
	}
	resp := httptest.NewRecorder()
	writeInternalError(resp, assertError("boom"))
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 status, got %d", resp.Code)
	}
}

type assertError string

func (a assertError) Error() string { return string(a) }

func TestGetConfigReturnsActiveConfig(t *testing.T) {
	srv := setupTestServer(t, map[string]string{"DEPLOYMENT_MODE": "uvx"}, "PORT=9100")
	srv.clock.Advance(time.Minute)

	req := httptest.NewRequest(http.MethodGet, "/api/config", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Cache-Control"); got != "no-store" {
		t.Fatalf("expected Cache-Control no-store, got %q", got)
	}

	body := decodeConfig(t, rec.Body)
	if body.Config.Mode != "uvx" || body.Config.Category != "local" {
		t.Fatalf("unexpected mode %s/%s", body.Config.Mode, body.Config.Category)
	}
	if body.Config.Port != 9100 {
		t.Fatalf("expected port 9100, got %d", body.Config.Port)
	}
	if body.Config.Sources["port"] != "override_file" {
		t.Fatalf("expected port provenance override_file, got %q", body.Config.Sources["port"])
	}
	if body.Storage.Backend != "local" {
		t.Fatalf("expected local storage, got %s", body.Storage.Backend)
	}
	if !body.HotReload {
		t.Fatalf("expected hot reload to be enabled in uvx mode")
	}
	if !body.GeneratedAt.Equal(srv.clock.Now()) {
		t.Fatalf("expected generatedAt %s, got %s", srv.clock.Now(), body.GeneratedAt)
	}
}

func TestGetConfigNeverLeaksSecrets(t *testing.T) {
	srv := setupTestServer(t, map[string]string{
		"DEPLOYMENT_MODE": "production",
		"SECRET_KEY":      "super-secret-value",
		"DATABASE_URL":    "postgresql://app:hunter2@db:5432/app",
		"STORAGE_BUCKET":  "objects",
	})

	req := httptest.NewRequest(http.MethodGet, "/api/config", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	raw := rec.Body.String()
	if strings.Contains(raw, "super-secret-value") || strings.Contains(raw, "hunter2") {
		t.Fatalf("response leaked a secret: %s", raw)
	}

	body := decodeConfig(t, strings.NewReader(raw))
	if body.Config.SecretKey != "xxxxx" {
		t.Fatalf("expected masked secret, got %q", body.Config.SecretKey)
	}
	if body.Storage.Bucket != "objects" {
		t.Fatalf("expected bucket objects, got %q", body.Storage.Bucket)
	}
	if body.HotReload {
		t.Fatalf("expected hot reload to be disabled in production")
	}
}

func TestReloadEndpointAppliesNewConfig(t *testing.T) {
	srv := setupTestServer(t, nil, "PORT=9100")
	writeEnvFile(t, srv.envFile, "PORT=9200")

	req := httptest.NewRequest(http.MethodPost, "/api/config/reload", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeConfig(t, rec.Body)
	if body.Config.Port != 9200 || body.Message == "" {
		t.Fatalf("unexpected reload response %+v", body)
	}
	if srv.holder.Current().Port() != 9200 {
		t.Fatalf("expected holder to publish port 9200")
	}
}

func TestReloadEndpointReportsViolations(t *testing.T) {
	srv := setupTestServer(t, nil, "PORT=9100")
	writeEnvFile(t, srv.envFile, "PORT=0", "WORKERS=none")

	req := httptest.NewRequest(http.MethodPost, "/api/config/reload", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d", rec.Code)
	}

	var body struct {
		Violations []struct {
			Field string `json:"field"`
			Kind  string `json:"kind"`
		} `json:"violations"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(body.Violations) != 2 {
		t.Fatalf("expected 2 violations, got %+v", body.Violations)
	}
	if srv.holder.Current().Port() != 9100 {
		t.Fatalf("expected the active config to be kept")
	}
}

func TestReloadEndpointRefusedInDeployedMode(t *testing.T) {
	srv := setupTestServer(t, map[string]string{
		"DEPLOYMENT_MODE": "docker",
		"SECRET_KEY":      "docker-secret",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/config/reload", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rec.Code)
	}

	var resp errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if resp.Error != "Reload not allowed" || resp.Suggestion == "" {
		t.Fatalf("expected refusal with a suggestion, got %+v", resp)
	}
}

type failingHolder struct {
	cfg *config.Config
}

func (f failingHolder) Current() *config.Config { return f.cfg }

func (f failingHolder) Reload() (*config.Config, error) {
	return f.cfg, errors.New("resolver unavailable")
}

func TestReloadEndpointUnexpectedError(t *testing.T) {
	srv := setupTestServer(t, nil)
	handler := NewHandler(failingHolder{cfg: srv.holder.Current()})
	router := NewRouter(handler, zaptest.NewLogger(t), WithLogging(false))

	req := httptest.NewRequest(http.MethodPost, "/api/config/reload", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rec.Code)
	}
}

func TestUnknownMethodIsRejected(t *testing.T) {
	srv := setupTestServer(t, nil)

	req := httptest.NewRequest(http.MethodDelete, "/api/config", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status 405, got %d", rec.Code)
	}
}

func TestPreflightIsNotServed(t *testing.T) {
	srv := setupTestServer(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/config/reload", nil)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")

	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status 405, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatalf("diagnostics API must not advertise cross-origin access")
	}
}

func TestRequestIDPropagation(t *testing.T) {
	srv := setupTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/config", nil)
	req.Header.Set("X-Request-ID", "test-request-id")

	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "test-request-id" {
		t.Fatalf("expected X-Request-ID to be echoed, got %q", got)
	}
}
