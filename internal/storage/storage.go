// Package storage persists build artifacts: the chunk store, the vector index that is aligned
// with it, the manifest that names the current generation, and the SQLite build catalog.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/MariusDragic/RailwayRAG/internal/models"
)

// ErrBuildNotFound is returned by the catalog when no matching build was recorded.
var ErrBuildNotFound = errors.New("build not found")

// BuildRecord describes one committed build.
type BuildRecord struct {
	BuildID      string                 `json:"build_id"`
	Generation   string                 `json:"generation"`
	CreatedAt    time.Time              `json:"created_at"`
	Chunks       int                    `json:"chunks"`
	Dimensions   int                    `json:"dimensions"`
	ChunkSize    int                    `json:"chunk_size"`
	ChunkOverlap int                    `json:"chunk_overlap"`
	Embedder     string                 `json:"embedder"`
	Documents    []models.DocumentStats `json:"documents,omitempty"`
}

// Catalog keeps the history of committed builds. It is informational: the artifacts
// named by the manifest are the source of truth for what gets served.
type Catalog interface {
	RecordBuild(ctx context.Context, rec *BuildRecord) error
	LatestBuild(ctx context.Context) (*BuildRecord, error)
	ListBuilds(ctx context.Context, limit int) ([]*BuildRecord, error)
	Close() error
}
