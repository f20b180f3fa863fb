// Package embedding turns text into unit-length vectors through pluggable backends.
package embedding

import (
	"context"
	"fmt"

	"github.com/MariusDragic/RailwayRAG/internal/config"
	"github.com/MariusDragic/RailwayRAG/internal/models"
)

// Embedder produces L2-normalized vector embeddings for text. Implementations must be
// deterministic for a fixed backend and safe for concurrent use.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Dimensions returns the vector length, or 0 while it is not known yet.
	Dimensions() int
	Close() error
}

// New builds the embedder selected by cfg.Provider. When CacheSize is positive the
// embedder is wrapped in a query cache.
func New(cfg config.EmbeddingConfig) (Embedder, error) {
	var (
		e   Embedder
		err error
	)
	switch cfg.Provider {
	case config.ProviderHash, "":
		e = NewHashEmbedder(cfg.Dimensions)
	case config.ProviderOllama:
		e = NewOllamaEmbedder(OllamaConfig{
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Timeout:    cfg.Timeout,
			RetryCount: cfg.RetryCount,
		})
	case config.ProviderONNX:
		e, err = NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", models.ErrEmbeddingUnavailable, err)
		}
	default:
		return nil, fmt.Errorf("%w: unknown embedding provider %q", models.ErrConfig, cfg.Provider)
	}
	if cfg.CacheSize <= 0 {
		return e, nil
	}
	cached, err := NewCachedEmbedder(e, cfg.CacheSize)
	if err != nil {
		_ = e.Close()
		return nil, err
	}
	return cached, nil
}

// Pinger is implemented by backends that can check reachability without embedding.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ping checks that the backend behind e is reachable. Backends without a reachability
// check, such as in-process models, always succeed.
func Ping(ctx context.Context, e Embedder) error {
	if c, ok := e.(*CachedEmbedder); ok {
		e = c.Embedder
	}
	if p, ok := e.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Name describes the backend selected by cfg, for manifests and status output.
func Name(cfg config.EmbeddingConfig) string {
	switch cfg.Provider {
	case config.ProviderOllama:
		return "ollama:" + cfg.Model
	case config.ProviderONNX:
		return "onnx:" + cfg.ModelPath
	default:
		return config.ProviderHash
	}
}
