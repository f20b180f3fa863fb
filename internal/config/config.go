// Package config provides configuration loading and structs for the railrag tools.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MariusDragic/RailwayRAG/internal/extract"
	"github.com/MariusDragic/RailwayRAG/internal/models"
)

// Embedding providers.
const (
	ProviderHash   = "hash"
	ProviderOllama = "ollama"
	ProviderONNX   = "onnx"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Search    SearchConfig    `yaml:"search"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Watch     WatchConfig     `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// StorageConfig holds the artifact directory and the build catalog path.
type StorageConfig struct {
	StoreDir    string `yaml:"store_dir"`
	CatalogPath string `yaml:"catalog_path"`
}

// EmbeddingConfig selects and tunes the embedding backend.
// Dimensions is an expectation: 0 means the dimension is taken from the first vector produced.
type EmbeddingConfig struct {
	Provider   string        `yaml:"provider"`
	ModelPath  string        `yaml:"model_path"`
	Model      string        `yaml:"model"`
	BaseURL    string        `yaml:"base_url"`
	Dimensions int           `yaml:"dimensions"`
	MaxTokens  int           `yaml:"max_tokens"`
	CacheSize  int           `yaml:"cache_size"`
	BatchSize  int           `yaml:"batch_size"`
	Workers    int           `yaml:"workers"`
	Timeout    time.Duration `yaml:"timeout"`
	RetryCount int           `yaml:"retry_count"`
}

// SearchConfig holds chunking and retrieval settings.
type SearchConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
	TopK         int `yaml:"top_k"`
}

// IngestConfig holds the dataset directory scanned by the build command.
type IngestConfig struct {
	DatasetDir string   `yaml:"dataset_dir"`
	Extensions []string `yaml:"extensions"`
}

// WatchConfig controls reloading the served build when a new one is committed.
type WatchConfig struct {
	Enabled  *bool         `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce"`
}

// EnabledOrDefault returns whether to watch the store; defaults to true when unset.
func (w *WatchConfig) EnabledOrDefault() bool {
	if w.Enabled != nil {
		return *w.Enabled
	}
	return true
}

// Load reads and parses the config file at path on top of Default, expands paths, and
// applies defaults. Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.StoreDir = expandPath(cfg.Storage.StoreDir, configDir)
	cfg.Storage.CatalogPath = expandPath(cfg.Storage.CatalogPath, configDir)
	cfg.Ingest.DatasetDir = expandPath(cfg.Ingest.DatasetDir, configDir)
	if cfg.Embedding.ModelPath != "" {
		cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	}

	return cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate checks the settings that the chunker, the index, and the embedder rely on.
func (c *Config) Validate() error {
	s := c.Search
	switch {
	case s.ChunkSize <= 0:
		return fmt.Errorf("%w: chunk_size must be positive, got %d", models.ErrConfig, s.ChunkSize)
	case s.ChunkOverlap < 0:
		return fmt.Errorf("%w: chunk_overlap must not be negative, got %d", models.ErrConfig, s.ChunkOverlap)
	case s.ChunkOverlap >= s.ChunkSize:
		return fmt.Errorf("%w: chunk_overlap %d must be smaller than chunk_size %d",
			models.ErrConfig, s.ChunkOverlap, s.ChunkSize)
	case s.TopK <= 0:
		return fmt.Errorf("%w: top_k must be positive, got %d", models.ErrConfig, s.TopK)
	}
	e := c.Embedding
	switch {
	case e.BatchSize <= 0:
		return fmt.Errorf("%w: embedding batch_size must be positive, got %d", models.ErrConfig, e.BatchSize)
	case e.Workers <= 0:
		return fmt.Errorf("%w: embedding workers must be positive, got %d", models.ErrConfig, e.Workers)
	case e.Dimensions < 0:
		return fmt.Errorf("%w: embedding dimensions must not be negative", models.ErrConfig)
	}
	switch e.Provider {
	case ProviderHash, ProviderOllama:
	case ProviderONNX:
		if e.ModelPath == "" {
			return fmt.Errorf("%w: onnx provider requires model_path", models.ErrConfig)
		}
	default:
		return fmt.Errorf("%w: unknown embedding provider %q", models.ErrConfig, e.Provider)
	}
	for _, ext := range c.Ingest.Extensions {
		if !extract.Supported("." + strings.TrimPrefix(ext, ".")) {
			return fmt.Errorf("%w: no extractor for ingest extension %q", models.ErrConfig, ext)
		}
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
