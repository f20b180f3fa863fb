package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/MariusDragic/RailwayRAG/internal/models"
	"github.com/MariusDragic/RailwayRAG/internal/vector"
	"github.com/MariusDragic/RailwayRAG/pkg/utils"
)

// Store directory layout. CURRENT is replaced atomically and names the generation
// directory holding the index and chunk files of the live build.
const (
	CurrentFile    = "CURRENT"
	IndexFileName  = "index.bin"
	ChunksFileName = "chunks.json"

	lockFileName     = ".lock"
	generationPrefix = "gen-"
	tempPrefix       = ".tmp-"
	lockRetryDelay   = 50 * time.Millisecond
)

// Store reads and writes build generations under a directory.
type Store struct {
	dir    string
	logger *zap.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger sets a logger for commit and prune events.
func WithLogger(l *zap.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// NewStore returns a store rooted at dir. Nothing is created until the first commit.
func NewStore(dir string, opts ...StoreOption) *Store {
	s := &Store{dir: dir}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = utils.OrNop(s.logger)
	return s
}

// Dir returns the store directory.
func (s *Store) Dir() string { return s.dir }

// CurrentPath returns the path of the CURRENT manifest.
func (s *Store) CurrentPath() string { return filepath.Join(s.dir, CurrentFile) }

// Commit persists snap as a new generation and makes it current. The index and chunk files
// are written into a fresh directory first; only then is CURRENT swapped, so readers see
// either the previous pair or the new pair, never a mix. On failure the previous
// generation stays current. Manifest fields describing the build configuration are taken
// from snap.Manifest; the returned manifest is also stored back into snap.
func (s *Store) Commit(ctx context.Context, snap *Snapshot) (Manifest, error) {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return Manifest{}, fmt.Errorf("create store dir: %w", err)
	}
	lock := flock.New(filepath.Join(s.dir, lockFileName))
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return Manifest{}, fmt.Errorf("acquire store lock: %w", err)
	}
	if !locked {
		return Manifest{}, fmt.Errorf("acquire store lock: %s is busy", s.dir)
	}
	defer func() { _ = lock.Unlock() }()

	m := snap.Manifest
	m.BuildID = uuid.NewString()
	m.Generation = generationPrefix + m.BuildID
	m.CreatedAt = time.Now().UTC()
	m.Count = snap.Size()
	m.Dimensions = snap.Index.Dimensions()
	m.IndexFile = IndexFileName
	m.ChunksFile = ChunksFileName

	tmpDir, err := os.MkdirTemp(s.dir, tempPrefix+m.Generation+"-")
	if err != nil {
		return Manifest{}, fmt.Errorf("create staging dir: %w", err)
	}
	genDir := filepath.Join(s.dir, m.Generation)
	committed := false
	defer func() {
		_ = os.RemoveAll(tmpDir)
		if !committed {
			_ = os.RemoveAll(genDir)
		}
	}()

	if err := vector.WriteFile(filepath.Join(tmpDir, IndexFileName), snap.Index); err != nil {
		return Manifest{}, err
	}
	if err := WriteChunkFile(filepath.Join(tmpDir, ChunksFileName), snap.Chunks); err != nil {
		return Manifest{}, err
	}
	if err := ctx.Err(); err != nil {
		return Manifest{}, err
	}
	if err := os.Rename(tmpDir, genDir); err != nil {
		return Manifest{}, fmt.Errorf("publish generation: %w", err)
	}
	if err := s.writeManifest(m); err != nil {
		return Manifest{}, err
	}
	committed = true
	syncDir(s.dir)

	snap.Manifest = m
	s.logger.Info("generation committed",
		zap.String("generation", m.Generation),
		zap.Int("chunks", m.Count),
		zap.Int("dimensions", m.Dimensions))
	s.prune(m.Generation)
	return m, nil
}

func (s *Store) writeManifest(m Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	tmp, err := os.CreateTemp(s.dir, tempPrefix+CurrentFile+"-")
	if err != nil {
		return fmt.Errorf("create manifest: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close manifest: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.CurrentPath()); err != nil {
		return fmt.Errorf("swap manifest: %w", err)
	}
	return nil
}

// prune removes generations and staging leftovers other than keep. Failures are only logged.
func (s *Store) prune(keep string) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.logger.Warn("prune: read store dir", zap.Error(err))
		return
	}
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() || name == keep {
			continue
		}
		if !strings.HasPrefix(name, generationPrefix) && !strings.HasPrefix(name, tempPrefix) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.dir, name)); err != nil {
			s.logger.Warn("prune: remove generation", zap.String("generation", name), zap.Error(err))
			continue
		}
		s.logger.Debug("pruned generation", zap.String("generation", name))
	}
}

// ReadManifest returns the current manifest. A store without CURRENT is ErrIndexNotLoaded.
func (s *Store) ReadManifest() (Manifest, error) {
	data, err := os.ReadFile(s.CurrentPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Manifest{}, fmt.Errorf("%w: no build in %s", models.ErrIndexNotLoaded, s.dir)
		}
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("%w: manifest: %w", models.ErrCorruptStore, err)
	}
	if m.Generation == "" || strings.ContainsAny(m.Generation, `/\`) || m.IndexFile == "" || m.ChunksFile == "" {
		return Manifest{}, fmt.Errorf("%w: manifest is incomplete", models.ErrCorruptStore)
	}
	return m, nil
}

// Load reads the current generation. The index and the store must have the same length
// and match the manifest; otherwise the load fails with ErrCorruptStore.
func (s *Store) Load(ctx context.Context) (*Snapshot, error) {
	if _, err := os.Stat(s.CurrentPath()); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: no build in %s", models.ErrIndexNotLoaded, s.dir)
	}
	lock := flock.New(filepath.Join(s.dir, lockFileName))
	locked, err := lock.TryRLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("acquire store lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("acquire store lock: %s is busy", s.dir)
	}
	defer func() { _ = lock.Unlock() }()

	m, err := s.ReadManifest()
	if err != nil {
		return nil, err
	}
	genDir := filepath.Join(s.dir, m.Generation)
	idx, err := vector.ReadFile(filepath.Join(genDir, m.IndexFile))
	if err != nil {
		return nil, err
	}
	chunks, err := ReadChunkFile(filepath.Join(genDir, m.ChunksFile))
	if err != nil {
		return nil, err
	}
	snap, err := NewSnapshot(idx, chunks)
	if err != nil {
		return nil, err
	}
	if snap.Size() != m.Count || idx.Dimensions() != m.Dimensions {
		return nil, fmt.Errorf("%w: generation %s holds %d x %d, manifest says %d x %d",
			models.ErrCorruptStore, m.Generation, snap.Size(), idx.Dimensions(), m.Count, m.Dimensions)
	}
	snap.Manifest = m
	return snap, nil
}

func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
