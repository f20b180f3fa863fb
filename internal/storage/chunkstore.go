package storage

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/MariusDragic/RailwayRAG/internal/models"
)

// ChunkStore is the ordered list of chunks; position i holds the chunk whose vector is at
// position i of the index. It is filled once during a build and read-only afterwards.
type ChunkStore struct {
	chunks []models.Chunk
}

// NewChunkStore returns a store holding copies of chunks, in order.
func NewChunkStore(chunks ...*models.Chunk) *ChunkStore {
	s := &ChunkStore{chunks: make([]models.Chunk, 0, len(chunks))}
	s.Append(chunks...)
	return s
}

// Append adds chunks at the end of the store.
func (s *ChunkStore) Append(chunks ...*models.Chunk) {
	for _, c := range chunks {
		s.chunks = append(s.chunks, *c)
	}
}

// Get returns a copy of the chunk at position.
func (s *ChunkStore) Get(position int) (*models.Chunk, error) {
	if position < 0 || position >= len(s.chunks) {
		return nil, fmt.Errorf("%w: position %d, store holds %d chunks", models.ErrOutOfRange, position, len(s.chunks))
	}
	c := s.chunks[position]
	return &c, nil
}

// Len returns the number of chunks.
func (s *ChunkStore) Len() int {
	return len(s.chunks)
}

// All returns a copy of every chunk in position order.
func (s *ChunkStore) All() []models.Chunk {
	return slices.Clone(s.chunks)
}

// Sources returns the distinct source names in store order.
func (s *ChunkStore) Sources() []string {
	seen := make(map[string]bool)
	var out []string
	for _, c := range s.chunks {
		if !seen[c.Metadata.Source] {
			seen[c.Metadata.Source] = true
			out = append(out, c.Metadata.Source)
		}
	}
	return out
}

// WriteTo writes the store as an indented JSON array of chunk records.
func (s *ChunkStore) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	enc := json.NewEncoder(cw)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	chunks := s.chunks
	if chunks == nil {
		chunks = []models.Chunk{}
	}
	if err := enc.Encode(chunks); err != nil {
		return cw.n, fmt.Errorf("encode chunks: %w", err)
	}
	return cw.n, nil
}

// ReadChunkStore decodes a store written by WriteTo. Malformed input is ErrCorruptStore.
func ReadChunkStore(r io.Reader) (*ChunkStore, error) {
	var chunks []models.Chunk
	dec := json.NewDecoder(r)
	if err := dec.Decode(&chunks); err != nil {
		return nil, fmt.Errorf("%w: chunk store: %w", models.ErrCorruptStore, err)
	}
	for i, c := range chunks {
		if c.ID == "" || c.Text == "" {
			return nil, fmt.Errorf("%w: chunk store: record %d is incomplete", models.ErrCorruptStore, i)
		}
	}
	return &ChunkStore{chunks: chunks}, nil
}

// WriteChunkFile writes the store to path and syncs it to disk.
func WriteChunkFile(path string, s *ChunkStore) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("create chunk file: %w", err)
	}
	bw := bufio.NewWriter(file)
	if _, err := s.WriteTo(bw); err != nil {
		_ = file.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		_ = file.Close()
		return fmt.Errorf("flush chunk file: %w", err)
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		return fmt.Errorf("sync chunk file: %w", err)
	}
	return file.Close()
}

// ReadChunkFile loads a store from path.
func ReadChunkFile(path string) (*ChunkStore, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: chunk file missing: %w", models.ErrCorruptStore, err)
		}
		return nil, fmt.Errorf("open chunk file: %w", err)
	}
	defer file.Close()
	return ReadChunkStore(bufio.NewReader(file))
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
