package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/MariusDragic/RailwayRAG/internal/models"
)

// Environment variables that override the config file.
const (
	EnvChunkSize      = "CHUNK_SIZE"
	EnvChunkOverlap   = "CHUNK_OVERLAP"
	EnvTopK           = "TOP_K"
	EnvOllamaEndpoint = "OLLAMA_ENDPOINT"
	EnvEmbeddingModel = "EMBEDDING_MODEL"
	EnvStoreDir       = "RAILRAG_STORE_DIR"
)

// LoadDotEnv loads variables from the given .env files into the process environment
// without overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides cfg with values found through lookup (typically os.LookupEnv).
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	ints := []struct {
		key string
		dst *int
	}{
		{EnvChunkSize, &cfg.Search.ChunkSize},
		{EnvChunkOverlap, &cfg.Search.ChunkOverlap},
		{EnvTopK, &cfg.Search.TopK},
	}
	for _, it := range ints {
		v, ok := lookup(it.key)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not an integer", models.ErrConfig, it.key, v)
		}
		*it.dst = n
	}
	if v, ok := lookup(EnvOllamaEndpoint); ok && v != "" {
		cfg.Embedding.BaseURL = v
	}
	if v, ok := lookup(EnvEmbeddingModel); ok && v != "" {
		cfg.Embedding.Model = v
	}
	if v, ok := lookup(EnvStoreDir); ok && v != "" {
		// A catalog kept inside the store directory moves with it.
		if filepath.Clean(cfg.Storage.CatalogPath) == filepath.Join(cfg.Storage.StoreDir, CatalogFileName) {
			cfg.Storage.CatalogPath = filepath.Join(v, CatalogFileName)
		}
		cfg.Storage.StoreDir = v
	}
	return nil
}
