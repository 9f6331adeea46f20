package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/AndrewDeWitt/grimlog/internal/platform/auth"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{
		"GRIMLOG_HTTP_ADDR", "GRIMLOG_CATALOG_DB_PATH", "GRIMLOG_GAME_DB_PATH",
		"GRIMLOG_AI_PROVIDER", "GRIMLOG_ADMIN_JWT_ISSUER",
	} {
		t.Setenv(key, "")
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("http addr = %q", cfg.HTTPAddr)
	}
	if cfg.CatalogDBPath != filepath.Join("data", "catalog.db") {
		t.Fatalf("catalog db path = %q", cfg.CatalogDBPath)
	}
	if cfg.AdminJWTIssuer != "grimlog" {
		t.Fatalf("issuer = %q", cfg.AdminJWTIssuer)
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("GRIMLOG_HTTP_ADDR", ":9999")
	t.Setenv("GRIMLOG_WORKER_INTERVAL", "30s")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.HTTPAddr != ":9999" {
		t.Fatalf("http addr = %q", cfg.HTTPAddr)
	}
	if cfg.WorkerInterval != 30*time.Second {
		t.Fatalf("worker interval = %v", cfg.WorkerInterval)
	}
}

func TestNewAssemblesRoutes(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		HTTPAddr:       ":0",
		CatalogDBPath:  filepath.Join(dir, "catalog.db"),
		GameDBPath:     filepath.Join(dir, "game.db"),
		AdminJWTSecret: "test-secret",
		AdminJWTIssuer: "grimlog-test",
	}
	srv, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	defer srv.Close()

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("healthz status = %d", resp.StatusCode)
	}

	// Game API is live.
	body, _ := json.Marshal(map[string]any{"name": "Friday league", "startingCp": 3})
	resp, err = http.Post(ts.URL+"/api/sessions", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create session status = %d", resp.StatusCode)
	}

	// Catalog admin routes reject anonymous callers and accept a minted
	// token.
	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/admin/factions", bytes.NewReader([]byte(`{"name":"Orks"}`)))
	anon, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("anonymous admin call: %v", err)
	}
	anon.Body.Close()
	if anon.StatusCode != http.StatusUnauthorized {
		t.Fatalf("anonymous status = %d", anon.StatusCode)
	}

	token, err := auth.MintToken(auth.Config{Issuer: cfg.AdminJWTIssuer, Secret: []byte(cfg.AdminJWTSecret)}, "admin-1", time.Hour)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	req, _ = http.NewRequest(http.MethodPost, ts.URL+"/api/admin/factions", bytes.NewReader([]byte(`{"name":"Orks"}`)))
	req.Header.Set("Authorization", "Bearer "+token)
	authed, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("authed admin call: %v", err)
	}
	authed.Body.Close()
	if authed.StatusCode != http.StatusCreated {
		t.Fatalf("authed status = %d", authed.StatusCode)
	}

	// AI routes are absent when no provider is configured.
	resp, err = http.Post(ts.URL+"/api/ai/armylist", "application/json", bytes.NewReader([]byte(`{"listText":"x"}`)))
	if err != nil {
		t.Fatalf("armylist: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		t.Fatalf("ai route should not be registered without a provider")
	}
}

func TestNewRejectsUnknownProvider(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		CatalogDBPath: filepath.Join(dir, "catalog.db"),
		GameDBPath:    filepath.Join(dir, "game.db"),
		AIProvider:    "watson",
	}
	if _, err := New(context.Background(), cfg); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}
