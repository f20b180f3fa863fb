package embedding

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/MariusDragic/RailwayRAG/internal/models"
	"github.com/MariusDragic/RailwayRAG/pkg/utils"
)

// unitTolerance bounds how far an embedding norm may drift from 1.
const unitTolerance = 1e-3

// BatchEmbedder embeds a corpus in fixed-size batches. Batches may run concurrently;
// each result is written at its batch offset so the output order matches the input.
type BatchEmbedder struct {
	embedder   Embedder
	batchSize  int
	workers    int
	dimensions int
	logger     *zap.Logger
}

// BatchOption configures a BatchEmbedder.
type BatchOption func(*BatchEmbedder)

// WithWorkers sets how many batches may be embedded at the same time.
func WithWorkers(n int) BatchOption {
	return func(b *BatchEmbedder) {
		if n > 0 {
			b.workers = n
		}
	}
}

// WithDimensions sets the expected vector dimension. Zero accepts whatever the backend produces.
func WithDimensions(d int) BatchOption {
	return func(b *BatchEmbedder) { b.dimensions = d }
}

// WithLogger sets a logger for per-batch debug output.
func WithLogger(l *zap.Logger) BatchOption {
	return func(b *BatchEmbedder) { b.logger = l }
}

// NewBatchEmbedder returns a batcher over e. batchSize must be positive.
func NewBatchEmbedder(e Embedder, batchSize int, opts ...BatchOption) (*BatchEmbedder, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("%w: batch size must be positive, got %d", models.ErrConfig, batchSize)
	}
	b := &BatchEmbedder{embedder: e, batchSize: batchSize, workers: 1}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = utils.OrNop(b.logger)
	return b, nil
}

// EmbedAll embeds texts and returns one unit vector per text, in input order. Any backend
// failure aborts the whole call with ErrEmbeddingUnavailable; a dimension that differs from
// the configured expectation is ErrConfig.
func (b *BatchEmbedder) EmbedAll(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for start := 0; start < len(texts); start += b.batchSize {
		end := min(start+b.batchSize, len(texts))
		g.Go(func() error {
			vecs, err := b.embedder.EmbedBatch(gctx, texts[start:end])
			if err != nil {
				return fmt.Errorf("batch [%d:%d]: %w", start, end, err)
			}
			if len(vecs) != end-start {
				return fmt.Errorf("batch [%d:%d]: backend returned %d vectors", start, end, len(vecs))
			}
			copy(out[start:end], vecs)
			b.logger.Debug("embedded batch", zap.Int("start", start), zap.Int("end", end))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrEmbeddingUnavailable, err)
	}
	if err := b.validate(out); err != nil {
		return nil, err
	}
	return out, nil
}

func (b *BatchEmbedder) validate(vecs [][]float32) error {
	if len(vecs) == 0 {
		return nil
	}
	dim := len(vecs[0])
	if dim == 0 {
		return fmt.Errorf("%w: backend returned an empty vector", models.ErrEmbeddingUnavailable)
	}
	if b.dimensions > 0 && dim != b.dimensions {
		return fmt.Errorf("%w: embedding dimension %d, expected %d", models.ErrConfig, dim, b.dimensions)
	}
	for i, v := range vecs {
		if len(v) != dim {
			return fmt.Errorf("%w: vector %d has dimension %d, expected %d",
				models.ErrEmbeddingUnavailable, i, len(v), dim)
		}
		if !utils.IsUnit(v, unitTolerance) {
			return fmt.Errorf("%w: vector %d is not unit length (norm %.4f)",
				models.ErrEmbeddingUnavailable, i, utils.L2Norm(v))
		}
	}
	return nil
}
