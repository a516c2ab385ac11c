package main

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/SamuelFortes/plataforma-virtual/internal/config"
	"github.com/SamuelFortes/plataforma-virtual/internal/domain/diagnosis"
	"github.com/SamuelFortes/plataforma-virtual/internal/domain/identity"
	"github.com/SamuelFortes/plataforma-virtual/internal/platform/auth"
	"github.com/SamuelFortes/plataforma-virtual/internal/platform/db"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func testApp(pingErr error) *app {
	cfg := &config.Config{
		Env:                "test",
		CORSOrigins:        []string{"http://localhost:5173"},
		BodyLimit:          "1M",
		MaxUploadBytes:     1 << 20,
		AuthRateLimitRPS:   1,
		AuthRateLimitBurst: 10,
	}
	tokens := auth.NewTokenIssuer("test-secret-test-secret-test-secret", time.Hour)
	reg := prometheus.NewRegistry()
	svc := diagnosis.NewService(nil, nil)
	svc.SetMetrics(diagnosis.NewMetrics(reg))
	return &app{
		cfg:       cfg,
		logger:    zerolog.Nop(),
		pinger:    fakePinger{err: pingErr},
		registry:  reg,
		tokens:    tokens,
		identity:  identity.NewService(nil, tokens, nil),
		diagnosis: svc,
	}
}

func serve(e *echo.Echo, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRootCommand_Tree(t *testing.T) {
	root := rootCmd()
	for _, path := range [][]string{
		{"serve"},
		{"migrate", "up"},
		{"migrate", "status"},
		{"catalog", "seed"},
		{"ubs", "purge"},
	} {
		cmd, _, err := root.Find(path)
		if err != nil || cmd.Name() != path[len(path)-1] {
			t.Errorf("expected command %v, got %v (%v)", path, cmd, err)
		}
	}
}

func TestPurgeCommand_RequiresID(t *testing.T) {
	root := rootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"ubs", "purge"})
	if err := root.Execute(); err == nil {
		t.Fatal("expected an error without --id")
	}
}

func TestMigrationsFS(t *testing.T) {
	embedded := migrationsFS(filepath.Join(t.TempDir(), "missing"))
	names, err := fs.Glob(embedded, "*.sql")
	if err != nil || len(names) < 3 {
		t.Fatalf("expected the embedded migrations, got %v (%v)", names, err)
	}

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "001_only.sql"), []byte("SELECT 1;"), 0o644); err != nil {
		t.Fatal(err)
	}
	m := db.NewMigrator(nil, migrationsFS(dir))
	migs, err := m.LoadMigrations()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(migs) != 1 || migs[0].Version != 1 {
		t.Errorf("expected the on-disk migration, got %+v", migs)
	}
}

func TestPrintMigrationStatus(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	var buf bytes.Buffer
	printMigrationStatus(&buf, []db.MigrationStatus{
		{Version: 1, Name: "identity", Applied: true, AppliedAt: &at},
		{Version: 2, Name: "diagnosis"},
	})
	out := buf.String()
	if !strings.Contains(out, "applied    2024-01-02 03:04:05") {
		t.Errorf("expected the applied row, got:\n%s", out)
	}
	if !strings.Contains(out, "pending    -") {
		t.Errorf("expected the pending row, got:\n%s", out)
	}
}

func TestRouter_PublicEndpoints(t *testing.T) {
	e := newRouter(testApp(nil))

	rec := serve(e, http.MethodGet, "/health")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("unexpected /health: %d %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected a request id header")
	}

	rec = serve(e, http.MethodGet, "/health/db")
	if rec.Code != http.StatusOK {
		t.Errorf("expected healthy db, got %d", rec.Code)
	}

	rec = serve(e, http.MethodGet, "/metrics")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "http_requests_total") {
		t.Errorf("expected the request counter in /metrics, got %d", rec.Code)
	}
}

func TestRouter_DBUnhealthy(t *testing.T) {
	rec := serve(newRouter(testApp(errors.New("connection refused"))), http.MethodGet, "/health/db")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}

func TestRouter_ProtectedRoutesNeedToken(t *testing.T) {
	e := newRouter(testApp(nil))
	for _, target := range []string{"/ubs", "/ubs/1/diagnosis", "/auth/me", "/ubs/1/report.pdf"} {
		rec := serve(e, http.MethodGet, target)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401, got %d", target, rec.Code)
		}
	}
}
