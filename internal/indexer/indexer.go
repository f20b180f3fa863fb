package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/MariusDragic/RailwayRAG/internal/embedding"
	"github.com/MariusDragic/RailwayRAG/internal/extract"
	"github.com/MariusDragic/RailwayRAG/internal/models"
	"github.com/MariusDragic/RailwayRAG/internal/storage"
	"github.com/MariusDragic/RailwayRAG/internal/vector"
	"github.com/MariusDragic/RailwayRAG/pkg/utils"
)

// Builder turns source documents into a committed generation: chunk, embed, index, persist.
type Builder struct {
	chunker      *Chunker
	embedder     *embedding.BatchEmbedder
	store        *storage.Store
	embedderName string
	catalog      storage.Catalog
	openCatalog  func() (storage.Catalog, error)
	logger       *zap.Logger
}

// BuildResult describes a successful build.
type BuildResult struct {
	Manifest  storage.Manifest       `json:"manifest"`
	Documents []models.DocumentStats `json:"documents"`
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithLogger sets a logger for build progress.
func WithLogger(l *zap.Logger) BuilderOption {
	return func(b *Builder) { b.logger = l }
}

// WithCatalog records every committed build in c.
func WithCatalog(c storage.Catalog) BuilderOption {
	return func(b *Builder) { b.catalog = c }
}

// WithCatalogOpener records every committed build in the catalog returned by open. The
// catalog is opened only after a successful commit and closed once the record is written,
// so a failed build never creates catalog files.
func WithCatalogOpener(open func() (storage.Catalog, error)) BuilderOption {
	return func(b *Builder) { b.openCatalog = open }
}

// WithEmbedderName sets the embedder label written to the manifest.
func WithEmbedderName(name string) BuilderOption {
	return func(b *Builder) { b.embedderName = name }
}

// NewBuilder creates a builder committing into store.
func NewBuilder(chunker *Chunker, embedder *embedding.BatchEmbedder, store *storage.Store, opts ...BuilderOption) *Builder {
	b := &Builder{chunker: chunker, embedder: embedder, store: store}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = utils.OrNop(b.logger)
	return b
}

// Build chunks docs in order, embeds every chunk and commits the aligned index and chunk
// store as the new current generation. Nothing is written when the corpus yields no chunks
// or when any step fails; the previous generation then stays current.
func (b *Builder) Build(ctx context.Context, docs []models.SourceDocument) (*BuildResult, error) {
	seen := make(map[string]bool, len(docs))
	for _, doc := range docs {
		if seen[doc.Name] {
			return nil, fmt.Errorf("%w: %q", models.ErrDuplicateSource, doc.Name)
		}
		seen[doc.Name] = true
	}

	var chunks []*models.Chunk
	stats := make([]models.DocumentStats, 0, len(docs))
	for _, doc := range docs {
		docChunks := b.chunker.Split(doc.Name, doc.Pages)
		st := models.DocumentStats{
			Source:    doc.Name,
			Pages:     len(doc.Pages),
			KeptPages: len(FilterPages(doc.Pages)),
			Chunks:    len(docChunks),
		}
		b.logger.Debug("document chunked",
			zap.String("source", st.Source),
			zap.Int("pages", st.Pages),
			zap.Int("kept_pages", st.KeptPages),
			zap.Int("chunks", st.Chunks))
		stats = append(stats, st)
		chunks = append(chunks, docChunks...)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: %d documents produced no chunks", models.ErrEmptyCorpus, len(docs))
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := b.embedder.EmbedAll(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	idx, err := vector.Build(vectors)
	if err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}
	snap, err := storage.NewSnapshot(idx, storage.NewChunkStore(chunks...))
	if err != nil {
		return nil, err
	}
	snap.Manifest.ChunkSize = b.chunker.Size()
	snap.Manifest.ChunkOverlap = b.chunker.Overlap()
	snap.Manifest.Embedder = b.embedderName

	m, err := b.store.Commit(ctx, snap)
	if err != nil {
		return nil, fmt.Errorf("commit build: %w", err)
	}
	b.logger.Info("build committed",
		zap.String("generation", m.Generation),
		zap.Int("documents", len(docs)),
		zap.Int("chunks", m.Count))
	b.record(ctx, m, stats)
	return &BuildResult{Manifest: m, Documents: stats}, nil
}

func (b *Builder) record(ctx context.Context, m storage.Manifest, stats []models.DocumentStats) {
	catalog := b.catalog
	if catalog == nil && b.openCatalog != nil {
		c, err := b.openCatalog()
		if err != nil {
			b.logger.Warn("catalog unavailable", zap.String("build_id", m.BuildID), zap.Error(err))
			return
		}
		defer c.Close()
		catalog = c
	}
	if catalog == nil {
		return
	}
	rec := &storage.BuildRecord{
		BuildID:      m.BuildID,
		Generation:   m.Generation,
		CreatedAt:    m.CreatedAt,
		Chunks:       m.Count,
		Dimensions:   m.Dimensions,
		ChunkSize:    m.ChunkSize,
		ChunkOverlap: m.ChunkOverlap,
		Embedder:     m.Embedder,
		Documents:    stats,
	}
	if err := catalog.RecordBuild(ctx, rec); err != nil {
		b.logger.Warn("catalog record failed", zap.String("build_id", m.BuildID), zap.Error(err))
	}
}

// CollectDirectory extracts every regular file under dir whose extension is in allowedExts
// (all files when allowedExts is empty). Documents are named by their slash-separated path
// relative to dir, so files at the top level keep their base name, and returned sorted by name. Files that cannot be extracted are logged and skipped.
func CollectDirectory(ctx context.Context, dir string, allowedExts []string, extractor *extract.Extractor, logger *zap.Logger) ([]models.SourceDocument, error) {
	logger = utils.OrNop(logger)
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return nil, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", absDir)
	}

	var paths []string
	err = filepath.WalkDir(absDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if len(allowedExts) > 0 && !extensionAllowed(ext, allowedExts) {
			return nil
		}
		// Resolve symlinks so only regular files are read
		finfo, statErr := os.Stat(path)
		if statErr != nil || !finfo.Mode().IsRegular() {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	docs := make([]models.SourceDocument, 0, len(paths))
	for _, path := range paths {
		doc, err := extractor.Extract(path)
		if err != nil {
			logger.Warn("skipping unreadable document", zap.String("path", path), zap.Error(err))
			continue
		}
		doc.Name = sourceName(absDir, path)
		logger.Debug("document extracted", zap.String("path", path), zap.Int("pages", len(doc.Pages)))
		docs = append(docs, doc)
	}
	logger.Info("documents collected", zap.String("dir", absDir), zap.Int("documents", len(docs)))
	return docs, nil
}

func extensionAllowed(ext string, allowed []string) bool {
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}

// sourceName is path relative to dir with forward slashes.
func sourceName(dir, path string) string {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return filepath.Base(path)
	}
	return filepath.ToSlash(rel)
}
