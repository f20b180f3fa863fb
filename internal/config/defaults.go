package config

import "time"

// CatalogFileName is the catalog's file name inside the store directory.
const CatalogFileName = "catalog.db"

// Default returns a configuration with every setting at its default value.
func Default() *Config {
	cfg := &Config{
		Search: SearchConfig{
			ChunkSize:    1200,
			ChunkOverlap: 150,
			TopK:         5,
		},
	}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults sets default values for any zero values in cfg. Chunk overlap is left
// alone since zero is a valid overlap; Default provides its initial value.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.StoreDir == "" {
		cfg.Storage.StoreDir = "./store"
	}
	if cfg.Storage.CatalogPath == "" {
		cfg.Storage.CatalogPath = "./store/" + CatalogFileName
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = ProviderHash
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "all-minilm"
	}
	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = "http://localhost:11434"
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 1024
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 64
	}
	if cfg.Embedding.Workers == 0 {
		cfg.Embedding.Workers = 1
	}
	if cfg.Embedding.Timeout == 0 {
		cfg.Embedding.Timeout = 30 * time.Second
	}
	if cfg.Embedding.RetryCount == 0 {
		cfg.Embedding.RetryCount = 3
	}
	if cfg.Embedding.Provider == ProviderONNX && cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Search.ChunkSize == 0 {
		cfg.Search.ChunkSize = 1200
	}
	if cfg.Search.TopK == 0 {
		cfg.Search.TopK = 5
	}
	if cfg.Ingest.DatasetDir == "" {
		cfg.Ingest.DatasetDir = "./dataset"
	}
	if cfg.Ingest.Extensions == nil {
		cfg.Ingest.Extensions = []string{".pdf", ".txt", ".md", ".docx", ".xlsx"}
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}
}
