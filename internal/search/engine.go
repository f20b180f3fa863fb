// Package search answers retrieval queries against the loaded build generation.
package search

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/MariusDragic/RailwayRAG/internal/embedding"
	"github.com/MariusDragic/RailwayRAG/internal/models"
	"github.com/MariusDragic/RailwayRAG/internal/storage"
	"github.com/MariusDragic/RailwayRAG/pkg/utils"
)

// Engine embeds queries and ranks the chunks of the current snapshot by cosine similarity.
// The snapshot is swapped atomically on reload, so in-flight searches keep the pair they
// started with and never see an index from one generation with chunks from another.
type Engine struct {
	embedder     embedding.Embedder
	store        *storage.Store
	current      atomic.Pointer[storage.Snapshot]
	topK         int
	timeout      time.Duration
	embedderName string
	logger       *zap.Logger
	reloadMu     sync.Mutex
}

// Stats describes the loaded generation.
type Stats struct {
	Loaded     bool      `json:"loaded"`
	Generation string    `json:"generation,omitempty"`
	BuildID    string    `json:"build_id,omitempty"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
	Chunks     int       `json:"chunks"`
	Dimensions int       `json:"dimensions"`
	Embedder   string    `json:"embedder,omitempty"`
	Sources    []string  `json:"sources,omitempty"`
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets a logger for query and reload events.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithStore sets the store that Reload reads from.
func WithStore(s *storage.Store) Option {
	return func(e *Engine) { e.store = s }
}

// WithEmbedTimeout bounds the query embedding call. Zero means no bound beyond the caller's context.
func WithEmbedTimeout(d time.Duration) Option {
	return func(e *Engine) { e.timeout = d }
}

// WithEmbedderName sets the label of the query embedder; a snapshot built with a
// different label is still served but logged.
func WithEmbedderName(name string) Option {
	return func(e *Engine) { e.embedderName = name }
}

// NewEngine creates an engine that embeds queries with embedder and returns defaultTopK
// hits when a query does not ask for a count. No snapshot is loaded yet.
func NewEngine(embedder embedding.Embedder, defaultTopK int, opts ...Option) *Engine {
	e := &Engine{embedder: embedder, topK: defaultTopK}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = utils.OrNop(e.logger)
	return e
}

// Load makes snap the snapshot served by subsequent searches.
func (e *Engine) Load(snap *storage.Snapshot) error {
	if snap == nil || snap.Index == nil || snap.Chunks == nil {
		return fmt.Errorf("%w: snapshot is incomplete", models.ErrCorruptStore)
	}
	if snap.Index.Size() != snap.Chunks.Len() {
		return fmt.Errorf("%w: index holds %d vectors but store holds %d chunks",
			models.ErrCorruptStore, snap.Index.Size(), snap.Chunks.Len())
	}
	if e.embedderName != "" && snap.Manifest.Embedder != "" && snap.Manifest.Embedder != e.embedderName {
		e.logger.Warn("snapshot built with a different embedder",
			zap.String("built_with", snap.Manifest.Embedder),
			zap.String("querying_with", e.embedderName))
	}
	e.current.Store(snap)
	return nil
}

// Reload reads the current generation from the store and swaps it in. On failure the
// previously loaded snapshot keeps serving.
func (e *Engine) Reload(ctx context.Context) (storage.Manifest, error) {
	if e.store == nil {
		return storage.Manifest{}, fmt.Errorf("%w: engine has no store to reload from", models.ErrConfig)
	}
	e.reloadMu.Lock()
	defer e.reloadMu.Unlock()

	prev := e.current.Load()
	snap, err := e.store.Load(ctx)
	if err != nil {
		e.logger.Error("reload failed", zap.String("store", e.store.Dir()), zap.Error(err))
		return storage.Manifest{}, err
	}
	if prev != nil && prev.Manifest.Generation == snap.Manifest.Generation {
		return prev.Manifest, nil
	}
	if err := e.Load(snap); err != nil {
		return storage.Manifest{}, err
	}
	e.logger.Info("generation swapped",
		zap.String("generation", snap.Manifest.Generation),
		zap.Int("chunks", snap.Size()))
	return snap.Manifest, nil
}

// Snapshot returns the loaded snapshot, or nil.
func (e *Engine) Snapshot() *storage.Snapshot {
	return e.current.Load()
}

// Search validates query, embeds it and returns the top hits by descending score, ties by
// ascending position. An empty hit list is a valid response carrying NoPassagesMessage.
func (e *Engine) Search(ctx context.Context, query models.SearchQuery) (*models.SearchResponse, error) {
	startTime := time.Now()
	if err := ProcessQuery(&query, e.topK); err != nil {
		return nil, err
	}
	snap := e.current.Load()
	if snap == nil {
		return nil, fmt.Errorf("%w: no snapshot loaded", models.ErrIndexNotLoaded)
	}

	vec, err := e.embedQuery(ctx, query.Query)
	if err != nil {
		return nil, err
	}
	results, err := snap.Index.Search(ctx, vec, query.TopK)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	response := &models.SearchResponse{
		Query:      query.Query,
		Hits:       make([]*models.Hit, 0, len(results)),
		Generation: snap.Manifest.Generation,
	}
	for _, r := range results {
		if r.Position < 0 {
			continue
		}
		chunk, err := snap.Chunks.Get(r.Position)
		if err != nil {
			return nil, err
		}
		response.Hits = append(response.Hits, &models.Hit{
			Text:     chunk.Text,
			Metadata: chunk.Metadata,
			Score:    r.Score,
			Position: r.Position,
			Rank:     len(response.Hits) + 1,
		})
	}
	response.Total = len(response.Hits)
	if response.Total == 0 {
		response.Message = models.NoPassagesMessage
	}
	response.QueryTime = time.Since(startTime).Milliseconds()
	e.logger.Debug("search completed",
		zap.String("query", utils.Truncate(query.Query, 80)),
		zap.Int("top_k", query.TopK),
		zap.Int("hits", response.Total),
		zap.Duration("took", time.Since(startTime)))
	return response, nil
}

func (e *Engine) embedQuery(ctx context.Context, text string) ([]float32, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	vec, err := e.embedder.Embed(ctx, text)
	if err != nil {
		if errors.Is(err, models.ErrEmbeddingUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", models.ErrEmbeddingUnavailable, err)
	}
	return vec, nil
}

// Chunk returns the chunk at position in the loaded snapshot.
func (e *Engine) Chunk(position int) (*models.Chunk, error) {
	snap := e.current.Load()
	if snap == nil {
		return nil, fmt.Errorf("%w: no snapshot loaded", models.ErrIndexNotLoaded)
	}
	return snap.Chunks.Get(position)
}

// Stats describes the loaded snapshot; Loaded is false before the first load.
func (e *Engine) Stats() Stats {
	snap := e.current.Load()
	if snap == nil {
		return Stats{}
	}
	m := snap.Manifest
	return Stats{
		Loaded:     true,
		Generation: m.Generation,
		BuildID:    m.BuildID,
		CreatedAt:  m.CreatedAt,
		Chunks:     snap.Size(),
		Dimensions: snap.Index.Dimensions(),
		Embedder:   m.Embedder,
		Sources:    snap.Chunks.Sources(),
	}
}
