package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MariusDragic/RailwayRAG/internal/models"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  store_dir: "./store"
embedding:
  timeout: 5s
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Storage.StoreDir != filepath.Join(dir, "store") {
		t.Errorf("store_dir = %s", cfg.Storage.StoreDir)
	}
	if cfg.Embedding.Timeout != 5*time.Second {
		t.Errorf("timeout = %v, want 5s", cfg.Embedding.Timeout)
	}
	if cfg.Search.ChunkSize != 1200 || cfg.Search.ChunkOverlap != 150 || cfg.Search.TopK != 5 {
		t.Errorf("unexpected search defaults: %+v", cfg.Search)
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_explicitZeroOverlapKept(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
search:
  chunk_size: 500
  chunk_overlap: 0
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Search.ChunkSize != 500 || cfg.Search.ChunkOverlap != 0 {
		t.Errorf("search = %+v, want size 500 overlap 0", cfg.Search)
	}
}

func TestLoad_missingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" {
		t.Errorf("default host: got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default port: got %d", cfg.Server.Port)
	}
	if cfg.Embedding.Provider != ProviderHash {
		t.Errorf("default provider: got %s", cfg.Embedding.Provider)
	}
	if cfg.Embedding.BatchSize != 64 {
		t.Errorf("default batch size: got %d", cfg.Embedding.BatchSize)
	}
	if len(cfg.Ingest.Extensions) != 5 || cfg.Ingest.Extensions[0] != ".pdf" {
		t.Errorf("ingest extensions: got %v", cfg.Ingest.Extensions)
	}
}

func TestWatchConfig_EnabledOrDefault(t *testing.T) {
	t.Run("nil_returns_true", func(t *testing.T) {
		w := &WatchConfig{}
		if got := w.EnabledOrDefault(); !got {
			t.Errorf("EnabledOrDefault() = %v, want true", got)
		}
	})
	t.Run("false_returns_false", func(t *testing.T) {
		f := false
		w := &WatchConfig{Enabled: &f}
		if got := w.EnabledOrDefault(); got {
			t.Errorf("EnabledOrDefault() = %v, want false", got)
		}
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"zero overlap", func(c *Config) { c.Search.ChunkOverlap = 0 }, false},
		{"overlap equals size", func(c *Config) { c.Search.ChunkOverlap = c.Search.ChunkSize }, true},
		{"negative overlap", func(c *Config) { c.Search.ChunkOverlap = -1 }, true},
		{"zero top_k", func(c *Config) { c.Search.TopK = 0 }, true},
		{"zero batch", func(c *Config) { c.Embedding.BatchSize = 0 }, true},
		{"unknown provider", func(c *Config) { c.Embedding.Provider = "magic" }, true},
		{"onnx without model", func(c *Config) { c.Embedding.Provider = ProviderONNX }, true},
		{"extensions without dot", func(c *Config) { c.Ingest.Extensions = []string{"pdf", "PPTX", ".ods"} }, false},
		{"unsupported extension", func(c *Config) { c.Ingest.Extensions = []string{".pdf", ".dwg"} }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr && !errors.Is(err, models.ErrConfig) {
				t.Errorf("Validate() error = %v, want ErrConfig", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Validate() unexpected error: %v", err)
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvChunkSize:      "800",
		EnvChunkOverlap:   "0",
		EnvTopK:           "3",
		EnvOllamaEndpoint: "http://ollama:11434",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
	cfg := Default()
	if err := ApplyEnv(cfg, lookup); err != nil {
		t.Fatal(err)
	}
	if cfg.Search.ChunkSize != 800 || cfg.Search.ChunkOverlap != 0 || cfg.Search.TopK != 3 {
		t.Errorf("search = %+v", cfg.Search)
	}
	if cfg.Embedding.BaseURL != "http://ollama:11434" {
		t.Errorf("base url = %s", cfg.Embedding.BaseURL)
	}

	env[EnvTopK] = "five"
	if err := ApplyEnv(Default(), lookup); !errors.Is(err, models.ErrConfig) {
		t.Errorf("ApplyEnv() error = %v, want ErrConfig", err)
	}
}

func TestApplyEnv_storeDirMovesCatalog(t *testing.T) {
	tests := []struct {
		name        string
		catalogPath string
		wantCatalog string
	}{
		{"default catalog follows the store", "", filepath.Join("/data/rail-store", CatalogFileName)},
		{"explicit catalog is kept", "/var/lib/railrag/builds.db", "/var/lib/railrag/builds.db"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			if tt.catalogPath != "" {
				cfg.Storage.CatalogPath = tt.catalogPath
			}
			lookup := func(k string) (string, bool) {
				if k == EnvStoreDir {
					return "/data/rail-store", true
				}
				return "", false
			}
			if err := ApplyEnv(cfg, lookup); err != nil {
				t.Fatal(err)
			}
			if cfg.Storage.StoreDir != "/data/rail-store" {
				t.Errorf("store dir = %s", cfg.Storage.StoreDir)
			}
			if cfg.Storage.CatalogPath != tt.wantCatalog {
				t.Errorf("catalog path = %s, want %s", cfg.Storage.CatalogPath, tt.wantCatalog)
			}
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("RAILRAG_TEST_DOTENV=yes\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Unsetenv("RAILRAG_TEST_DOTENV") })
	if err := LoadDotEnv(path, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatal(err)
	}
	if os.Getenv("RAILRAG_TEST_DOTENV") != "yes" {
		t.Error("expected variable from .env to be set")
	}
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "saved.yaml")
	cfg := Default()
	cfg.Server.Port = 9090
	cfg.Storage.StoreDir = "/tmp/railrag-store"
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9090 {
		t.Errorf("loaded port: got %d", loaded.Server.Port)
	}
	if loaded.Embedding.Timeout != cfg.Embedding.Timeout {
		t.Errorf("loaded timeout: got %v", loaded.Embedding.Timeout)
	}
}
