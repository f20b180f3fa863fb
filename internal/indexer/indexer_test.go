package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/MariusDragic/RailwayRAG/internal/embedding"
	"github.com/MariusDragic/RailwayRAG/internal/extract"
	"github.com/MariusDragic/RailwayRAG/internal/models"
	"github.com/MariusDragic/RailwayRAG/internal/storage"
)

func TestExtensionAllowed(t *testing.T) {
	tests := []struct {
		ext     string
		allowed []string
		want    bool
	}{
		{".txt", []string{".txt", ".md"}, true},
		{".TXT", []string{".txt"}, true},
		{".md", []string{".txt", ".md"}, true},
		{".go", []string{".txt"}, false},
		{"", []string{".txt"}, false},
		{".pdf", []string{"pdf"}, true},
	}
	for _, tt := range tests {
		got := extensionAllowed(tt.ext, tt.allowed)
		if got != tt.want {
			t.Errorf("extensionAllowed(%q, %v) = %v, want %v", tt.ext, tt.allowed, got, tt.want)
		}
	}
}

type failingEmbedder struct{ *embedding.HashEmbedder }

func (failingEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("backend down")
}

func testBuilder(t *testing.T, dir string, e embedding.Embedder, opts ...BuilderOption) (*Builder, *storage.Store) {
	t.Helper()
	chunker, err := NewChunker(40, 10)
	if err != nil {
		t.Fatal(err)
	}
	batch, err := embedding.NewBatchEmbedder(e, 4, embedding.WithWorkers(2))
	if err != nil {
		t.Fatal(err)
	}
	store := storage.NewStore(filepath.Join(dir, "store"))
	return NewBuilder(chunker, batch, store, append([]BuilderOption{WithEmbedderName("hash")}, opts...)...), store
}

func railwayDocs() []models.SourceDocument {
	return []models.SourceDocument{
		{Name: "signals.pdf", Pages: []models.Page{
			{Number: 1, Text: "Signal maintenance is performed every six months on main lines."},
			{Number: 2, Text: "   \n"},
			{Number: 3, Text: "Level crossings need barrier checks."},
		}},
		{Name: "track.pdf", Pages: []models.Page{
			{Number: 1, Text: "Ballast renewal restores track geometry."},
		}},
	}
}

func TestBuilder_Build(t *testing.T) {
	dir := t.TempDir()
	catalog, err := storage.NewSQLiteCatalog(filepath.Join(dir, "catalog.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = catalog.Close() })
	b, store := testBuilder(t, dir, embedding.NewHashEmbedder(32), WithCatalog(catalog))
	ctx := context.Background()

	res, err := b.Build(ctx, railwayDocs())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if res.Manifest.Dimensions != 32 || res.Manifest.ChunkSize != 40 || res.Manifest.ChunkOverlap != 10 {
		t.Errorf("manifest = %+v", res.Manifest)
	}
	if len(res.Documents) != 2 {
		t.Fatalf("documents = %+v", res.Documents)
	}
	if d := res.Documents[0]; d.Source != "signals.pdf" || d.Pages != 3 || d.KeptPages != 2 {
		t.Errorf("signals stats = %+v", d)
	}
	total := res.Documents[0].Chunks + res.Documents[1].Chunks
	if res.Manifest.Count != total {
		t.Errorf("manifest count %d, documents sum %d", res.Manifest.Count, total)
	}

	snap, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if snap.Index.Size() != snap.Chunks.Len() || snap.Size() != total {
		t.Errorf("index %d, chunks %d, want %d", snap.Index.Size(), snap.Chunks.Len(), total)
	}
	first, err := snap.Chunks.Get(0)
	if err != nil {
		t.Fatal(err)
	}
	if first.ID != "signals.pdf_p1_c0" || first.Metadata.Source != "signals.pdf" {
		t.Errorf("first chunk = %+v", first)
	}
	for i := 0; i < snap.Chunks.Len(); i++ {
		c, _ := snap.Chunks.Get(i)
		if c.Metadata.Page == 2 && c.Metadata.Source == "signals.pdf" {
			t.Errorf("blank page produced chunk %s", c.ID)
		}
	}

	rec, err := catalog.LatestBuild(ctx)
	if err != nil {
		t.Fatalf("LatestBuild: %v", err)
	}
	if rec.BuildID != res.Manifest.BuildID || len(rec.Documents) != 2 {
		t.Errorf("catalog record = %+v", rec)
	}
}

func TestBuilder_emptyCorpus(t *testing.T) {
	dir := t.TempDir()
	b, store := testBuilder(t, dir, embedding.NewHashEmbedder(16))
	docs := []models.SourceDocument{{Name: "blank.pdf", Pages: []models.Page{{Number: 1, Text: " \n\t"}}}}

	if _, err := b.Build(context.Background(), docs); !errors.Is(err, models.ErrEmptyCorpus) {
		t.Fatalf("Build error = %v, want ErrEmptyCorpus", err)
	}
	if _, err := os.Stat(store.Dir()); !os.IsNotExist(err) {
		t.Errorf("store dir must not be created, stat err = %v", err)
	}
	if _, err := b.Build(context.Background(), nil); !errors.Is(err, models.ErrEmptyCorpus) {
		t.Errorf("nil corpus error = %v, want ErrEmptyCorpus", err)
	}
}

func TestBuilder_catalogOpenedAfterCommit(t *testing.T) {
	dir := t.TempDir()
	catalogPath := filepath.Join(dir, "store", "catalog.db")
	opened := 0
	opener := WithCatalogOpener(func() (storage.Catalog, error) {
		opened++
		return storage.NewSQLiteCatalog(catalogPath)
	})
	b, store := testBuilder(t, dir, embedding.NewHashEmbedder(16), opener)
	ctx := context.Background()

	blank := []models.SourceDocument{{Name: "blank.pdf", Pages: []models.Page{{Number: 1, Text: "  "}}}}
	if _, err := b.Build(ctx, blank); !errors.Is(err, models.ErrEmptyCorpus) {
		t.Fatalf("Build error = %v, want ErrEmptyCorpus", err)
	}
	if opened != 0 {
		t.Errorf("catalog opened %d times for a failed build", opened)
	}
	if _, err := os.Stat(store.Dir()); !os.IsNotExist(err) {
		t.Errorf("store dir must not be created, stat err = %v", err)
	}

	res, err := b.Build(ctx, railwayDocs())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if opened != 1 {
		t.Errorf("catalog opened %d times, want 1", opened)
	}
	catalog, err := storage.NewSQLiteCatalog(catalogPath)
	if err != nil {
		t.Fatal(err)
	}
	defer catalog.Close()
	latest, err := catalog.LatestBuild(ctx)
	if err != nil || latest.BuildID != res.Manifest.BuildID {
		t.Errorf("latest build = %+v, err %v", latest, err)
	}
}

func TestBuilder_duplicateSource(t *testing.T) {
	b, _ := testBuilder(t, t.TempDir(), embedding.NewHashEmbedder(16))
	docs := append(railwayDocs(), models.SourceDocument{Name: "track.pdf", Pages: []models.Page{{Number: 1, Text: "x"}}})
	if _, err := b.Build(context.Background(), docs); !errors.Is(err, models.ErrDuplicateSource) {
		t.Errorf("Build error = %v, want ErrDuplicateSource", err)
	}
}

func TestBuilder_failedEmbeddingKeepsPrevious(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	good, store := testBuilder(t, dir, embedding.NewHashEmbedder(16))
	first, err := good.Build(ctx, railwayDocs())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	before, err := os.ReadFile(store.CurrentPath())
	if err != nil {
		t.Fatal(err)
	}

	bad, _ := testBuilder(t, dir, failingEmbedder{embedding.NewHashEmbedder(16)})
	if _, err := bad.Build(ctx, railwayDocs()[:1]); !errors.Is(err, models.ErrEmbeddingUnavailable) {
		t.Fatalf("Build error = %v, want ErrEmbeddingUnavailable", err)
	}

	after, err := os.ReadFile(store.CurrentPath())
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Error("CURRENT changed after a failed build")
	}
	snap, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if snap.Manifest.Generation != first.Manifest.Generation || snap.Size() != first.Manifest.Count {
		t.Errorf("loaded %s with %d chunks, want %s with %d",
			snap.Manifest.Generation, snap.Size(), first.Manifest.Generation, first.Manifest.Count)
	}
}

func TestCollectDirectory(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"b_rules.txt":        "Speed limits apply near stations.",
		"a_notes.md":         "Inspect points weekly.",
		"sub/c_manual.txt":   "Overhead line tension check.",
		"ignored.go":         "package main",
		"sub/deeper/skip.go": "package main",
	}
	for name, body := range files {
		p := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(body), 0600); err != nil {
			t.Fatal(err)
		}
	}
	f := excelize.NewFile()
	f.SetCellValue("Sheet1", "A1", "Timetable")
	if err := f.SaveAs(filepath.Join(dir, "d_timetable.xlsx")); err != nil {
		t.Fatal(err)
	}
	_ = f.Close()

	docs, err := CollectDirectory(context.Background(), dir, []string{".txt", ".md", ".xlsx"}, extract.NewExtractor(), nil)
	if err != nil {
		t.Fatalf("CollectDirectory: %v", err)
	}
	want := []string{"a_notes.md", "b_rules.txt", "d_timetable.xlsx", "sub/c_manual.txt"}
	if len(docs) != len(want) {
		t.Fatalf("got %d documents, want %d", len(docs), len(want))
	}
	for i, name := range want {
		if docs[i].Name != name {
			t.Errorf("docs[%d].Name = %q, want %q", i, docs[i].Name, name)
		}
	}
	if docs[2].Pages[0].Text != "Timetable" {
		t.Errorf("xlsx page = %+v", docs[2].Pages)
	}
}

func TestCollectDirectory_sameNameInSubfolders(t *testing.T) {
	dir := t.TempDir()
	reports := map[string]string{
		"2023/report.txt": "Rail grinding covered 120 km of track in 2023.",
		"2024/report.txt": "Rail grinding covered 95 km of track in 2024.",
	}
	for name, body := range reports {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(body), 0600); err != nil {
			t.Fatal(err)
		}
	}

	docs, err := CollectDirectory(context.Background(), dir, []string{".txt"}, extract.NewExtractor(), nil)
	if err != nil {
		t.Fatalf("CollectDirectory: %v", err)
	}
	if len(docs) != 2 || docs[0].Name != "2023/report.txt" || docs[1].Name != "2024/report.txt" {
		t.Fatalf("documents = %+v", docs)
	}

	b, _ := testBuilder(t, t.TempDir(), embedding.NewHashEmbedder(32))
	res, err := b.Build(context.Background(), docs)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(res.Documents) != 2 || res.Documents[0].Source != "2023/report.txt" {
		t.Errorf("document stats = %+v", res.Documents)
	}
}

func TestCollectDirectory_notADirectory(t *testing.T) {
	p := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(p, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := CollectDirectory(context.Background(), p, nil, extract.NewExtractor(), nil); err == nil {
		t.Error("expected error for a file path")
	}
	if _, err := CollectDirectory(context.Background(), filepath.Join(p, "missing"), nil, extract.NewExtractor(), nil); err == nil {
		t.Error("expected error for a missing directory")
	}
}
