package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/MariusDragic/RailwayRAG/internal/models"
)

// SQLiteCatalog implements Catalog using SQLite.
type SQLiteCatalog struct {
	db *sql.DB
}

var _ Catalog = (*SQLiteCatalog)(nil)

// NewSQLiteCatalog opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteCatalog(dbPath string) (*SQLiteCatalog, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create catalog directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initCatalogSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteCatalog{db: db}, nil
}

func initCatalogSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS builds (
		build_id TEXT PRIMARY KEY,
		generation TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		chunk_count INTEGER NOT NULL,
		dimensions INTEGER NOT NULL,
		chunk_size INTEGER NOT NULL,
		chunk_overlap INTEGER NOT NULL,
		embedder TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_builds_created_at ON builds(created_at);

	CREATE TABLE IF NOT EXISTS build_documents (
		build_id TEXT NOT NULL,
		source TEXT NOT NULL,
		pages INTEGER NOT NULL,
		kept_pages INTEGER NOT NULL,
		chunk_count INTEGER NOT NULL,
		PRIMARY KEY (build_id, source),
		FOREIGN KEY (build_id) REFERENCES builds(build_id) ON DELETE CASCADE
	);
	`
	_, err := db.Exec(schema)
	return err
}

// RecordBuild stores a build and its per-document statistics in one transaction.
func (c *SQLiteCatalog) RecordBuild(ctx context.Context, rec *BuildRecord) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO builds (build_id, generation, created_at, chunk_count, dimensions, chunk_size, chunk_overlap, embedder)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.BuildID, rec.Generation, rec.CreatedAt, rec.Chunks, rec.Dimensions,
		rec.ChunkSize, rec.ChunkOverlap, rec.Embedder,
	)
	if err != nil {
		return fmt.Errorf("failed to insert build: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO build_documents (build_id, source, pages, kept_pages, chunk_count) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()
	for _, d := range rec.Documents {
		if _, err := stmt.ExecContext(ctx, rec.BuildID, d.Source, d.Pages, d.KeptPages, d.Chunks); err != nil {
			return fmt.Errorf("failed to insert document %s: %w", d.Source, err)
		}
	}
	return tx.Commit()
}

// LatestBuild returns the most recent build with its documents.
func (c *SQLiteCatalog) LatestBuild(ctx context.Context) (*BuildRecord, error) {
	builds, err := c.ListBuilds(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(builds) == 0 {
		return nil, ErrBuildNotFound
	}
	rec := builds[0]
	rec.Documents, err = c.documents(ctx, rec.BuildID)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ListBuilds returns up to limit builds, newest first, without their documents.
func (c *SQLiteCatalog) ListBuilds(ctx context.Context, limit int) ([]*BuildRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := c.db.QueryContext(ctx,
		`SELECT build_id, generation, created_at, chunk_count, dimensions, chunk_size, chunk_overlap, embedder
		 FROM builds ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var builds []*BuildRecord
	for rows.Next() {
		var rec BuildRecord
		if err := rows.Scan(&rec.BuildID, &rec.Generation, &rec.CreatedAt, &rec.Chunks,
			&rec.Dimensions, &rec.ChunkSize, &rec.ChunkOverlap, &rec.Embedder); err != nil {
			return nil, err
		}
		builds = append(builds, &rec)
	}
	return builds, rows.Err()
}

func (c *SQLiteCatalog) documents(ctx context.Context, buildID string) ([]models.DocumentStats, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT source, pages, kept_pages, chunk_count FROM build_documents
		 WHERE build_id = ? ORDER BY source`, buildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []models.DocumentStats
	for rows.Next() {
		var d models.DocumentStats
		if err := rows.Scan(&d.Source, &d.Pages, &d.KeptPages, &d.Chunks); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// Close closes the database.
func (c *SQLiteCatalog) Close() error {
	return c.db.Close()
}
