package storage

import (
	"fmt"
	"time"

	"github.com/MariusDragic/RailwayRAG/internal/models"
	"github.com/MariusDragic/RailwayRAG/internal/vector"
)

// Manifest names the current generation and records what it was built with.
type Manifest struct {
	Generation   string    `json:"generation"`
	BuildID      string    `json:"build_id"`
	CreatedAt    time.Time `json:"created_at"`
	Count        int       `json:"count"`
	Dimensions   int       `json:"dimensions"`
	ChunkSize    int       `json:"chunk_size"`
	ChunkOverlap int       `json:"chunk_overlap"`
	Embedder     string    `json:"embedder"`
	IndexFile    string    `json:"index_file"`
	ChunksFile   string    `json:"chunks_file"`
}

// Snapshot pairs an index with the chunk store it was built from. Position i in the index
// and position i in the store always describe the same chunk.
type Snapshot struct {
	Index    *vector.FlatIndex
	Chunks   *ChunkStore
	Manifest Manifest
}

// NewSnapshot pairs idx and chunks, failing with ErrCorruptStore when their sizes differ.
func NewSnapshot(idx *vector.FlatIndex, chunks *ChunkStore) (*Snapshot, error) {
	if idx == nil || chunks == nil {
		return nil, fmt.Errorf("%w: snapshot needs both an index and a chunk store", models.ErrCorruptStore)
	}
	if idx.Size() != chunks.Len() {
		return nil, fmt.Errorf("%w: index holds %d vectors but store holds %d chunks",
			models.ErrCorruptStore, idx.Size(), chunks.Len())
	}
	return &Snapshot{Index: idx, Chunks: chunks}, nil
}

// Size returns the number of aligned entries.
func (s *Snapshot) Size() int {
	return s.Chunks.Len()
}
