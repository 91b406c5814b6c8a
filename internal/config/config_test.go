package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "docbridge.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  listen_addr: ":9090"
  upload_dir: "tmp/uploads"
servers:
  - name: DocumentService
    url: http://localhost:8001/sse
    transport: sse
  - name: RAGService
    url: http://localhost:8002/mcp
    transport: http
    headers:
      Authorization: Bearer token
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.ListenAddr != ":9090" {
		t.Errorf("unexpected listen addr: %s", cfg.Server.ListenAddr)
	}
	if cfg.Server.DBPath != DefaultDBPath() {
		t.Errorf("db path should default, got %s", cfg.Server.DBPath)
	}
	if len(cfg.Servers) != 2 {
		t.Fatalf("expected 2 servers, got %d", len(cfg.Servers))
	}
	if cfg.Servers[0].Transport != "sse" || cfg.Servers[1].Transport != "http" {
		t.Errorf("unexpected transports: %+v", cfg.Servers)
	}
	if cfg.Servers[1].Headers["Authorization"] != "Bearer token" {
		t.Errorf("headers not preserved: %+v", cfg.Servers[1].Headers)
	}
}

func TestLoadDefaultsTransportToHTTP(t *testing.T) {
	path := writeConfig(t, `
servers:
  - name: DocumentService
    url: http://localhost:8001/mcp
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Servers[0].Transport != "http" {
		t.Errorf("expected http default, got %s", cfg.Servers[0].Transport)
	}
}

func TestLoadRejectsUnknownTransport(t *testing.T) {
	path := writeConfig(t, `
servers:
  - name: DocumentService
    url: http://localhost:8001
    transport: websocket
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "unsupported transport") {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestLoadRejectsDuplicateServerNames(t *testing.T) {
	path := writeConfig(t, `
servers:
  - name: DocumentService
    url: http://localhost:8001/sse
  - name: DocumentService
    url: http://localhost:8003/sse
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "duplicate server name") {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, `
servers:
  - name: DocumentService
    url: http://localhost:8001/sse
    timeout: 5s
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected unknown field error")
	}
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("DOC_SERVICE_HOST", "docs.internal")
	t.Setenv("DOC_SERVICE_TOKEN", "s3cret")
	path := writeConfig(t, `
servers:
  - name: DocumentService
    url: http://${DOC_SERVICE_HOST}:8001/sse
    transport: sse
    headers:
      Authorization: Bearer ${DOC_SERVICE_TOKEN}
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Servers[0].URL != "http://docs.internal:8001/sse" {
		t.Errorf("url not expanded: %s", cfg.Servers[0].URL)
	}
	if cfg.Servers[0].Headers["Authorization"] != "Bearer s3cret" {
		t.Errorf("header not expanded: %+v", cfg.Servers[0].Headers)
	}
}

func TestLoadOrInitSeedsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docbridge.yaml")
	cfg, err := LoadOrInit(path)
	if err != nil {
		t.Fatalf("load or init: %v", err)
	}
	if len(cfg.Servers) != 2 {
		t.Fatalf("expected 2 seeded servers, got %d", len(cfg.Servers))
	}
	if cfg.Servers[0].Name != "DocumentService" || cfg.Servers[1].Name != "RAGService" {
		t.Errorf("unexpected seeds: %+v", cfg.Servers)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("seed file should exist: %v", err)
	}

	// Second call must read the file it just wrote.
	again, err := LoadOrInit(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(again.Servers) != 2 {
		t.Errorf("reload lost servers: %+v", again.Servers)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docbridge.yaml")
	cfg := &Config{
		Server: ServerConfig{ListenAddr: ":7000"},
		Servers: []ToolServer{
			{Name: "DocumentService", URL: "http://localhost:8001/sse", Transport: "sse"},
		},
	}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Server.ListenAddr != ":7000" || loaded.Servers[0].Name != "DocumentService" {
		t.Errorf("round trip mismatch: %+v", loaded)
	}
}

func TestSaveRejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docbridge.yaml")
	cfg := &Config{Servers: []ToolServer{{Name: "", URL: "http://x"}}}
	if err := Save(path, cfg); err == nil {
		t.Fatal("expected validation error")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("invalid config must not be written")
	}
}

func TestAzureCompleteness(t *testing.T) {
	if (AzureOpenAI{APIKey: "k", Endpoint: "https://x"}).Complete() {
		t.Error("deployment missing, should be incomplete")
	}
	if !(AzureOpenAI{APIKey: "k", Endpoint: "https://x", Deployment: "gpt-4o"}).Complete() {
		t.Error("expected complete settings")
	}
}
