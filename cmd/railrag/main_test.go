package main

import (
	"context"
	"errors"
	"flag"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"go.uber.org/zap"

	"github.com/MariusDragic/RailwayRAG/internal/config"
	"github.com/MariusDragic/RailwayRAG/internal/embedding"
	"github.com/MariusDragic/RailwayRAG/internal/models"
	"github.com/MariusDragic/RailwayRAG/internal/search"
	"github.com/MariusDragic/RailwayRAG/internal/server"
	"github.com/MariusDragic/RailwayRAG/internal/storage"
)

func TestSearchArgsReorder(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "flags after query are moved first",
			args:     []string{"signal maintenance", "-top-k", "3"},
			expected: []string{"-top-k", "3", "signal maintenance"},
		},
		{
			name:     "flags first returns unchanged",
			args:     []string{"-top-k", "3", "signal maintenance"},
			expected: []string{"-top-k", "3", "signal maintenance"},
		},
		{
			name:     "query only returns unchanged",
			args:     []string{"signal maintenance"},
			expected: []string{"signal maintenance"},
		},
		{
			name:     "empty args returns unchanged",
			args:     []string{},
			expected: []string{},
		},
		{
			name:     "multiple positionals then flags",
			args:     []string{"level", "crossing", "-output", "json"},
			expected: []string{"-output", "json", "level", "crossing"},
		},
		{
			name:     "flag between query words keeps word order",
			args:     []string{"signal", "--top-k", "3", "maintenance"},
			expected: []string{"--top-k", "3", "signal", "maintenance"},
		},
		{
			name:     "flag with inline value",
			args:     []string{"ballast", "-output=json", "renewal"},
			expected: []string{"-output=json", "ballast", "renewal"},
		},
		{
			name:     "words after terminator stay query words",
			args:     []string{"temperature", "-top-k", "2", "--", "-5", "degrees"},
			expected: []string{"-top-k", "2", "--", "temperature", "-5", "degrees"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := searchArgsReorder(newSearchFlags(flag.ContinueOnError).fs, tt.args)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("searchArgsReorder() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestSearchFlagsParse(t *testing.T) {
	sf := newSearchFlags(flag.ContinueOnError)
	args := []string{"signal", "--top-k", "3", "maintenance", "--output", "json"}
	if err := sf.fs.Parse(searchArgsReorder(sf.fs, args)); err != nil {
		t.Fatal(err)
	}
	if got := buildSearchQuery(sf.fs.Args()); got != "signal maintenance" {
		t.Errorf("query = %q, want %q", got, "signal maintenance")
	}
	if *sf.topK != 3 || *sf.output != "json" {
		t.Errorf("top-k = %d, output = %s", *sf.topK, *sf.output)
	}
}

func TestBuildSearchQuery(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"single word", []string{"ballast"}, "ballast"},
		{"multiple words", []string{"ballast", "renewal"}, "ballast renewal"},
		{"single quoted phrase", []string{"ballast renewal"}, "ballast renewal"},
		{"surrounding whitespace", []string{"  ballast  "}, "ballast"},
		{"no args", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildSearchQuery(tt.args); got != tt.expected {
				t.Errorf("buildSearchQuery(%v) = %q, want %q", tt.args, got, tt.expected)
			}
		})
	}
}

func TestParseOutputFormat(t *testing.T) {
	for _, s := range []string{"text", "json"} {
		if _, err := parseOutputFormat(s); err != nil {
			t.Errorf("parseOutputFormat(%q): %v", s, err)
		}
	}
	if _, err := parseOutputFormat("compact"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{models.ErrConfig, 2},
		{models.ErrInvalidQuery, 2},
		{models.ErrIndexNotLoaded, 3},
		{models.ErrEmbeddingUnavailable, 3},
		{models.ErrEmptyCorpus, 1},
		{errors.New("other"), 1},
	}
	for _, tt := range tests {
		if got := exitCode(tt.err); got != tt.want {
			t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func env(vars map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}
}

func TestLoadConfig(t *testing.T) {
	t.Run("defaults when the default file is absent", func(t *testing.T) {
		t.Chdir(t.TempDir())
		cfg, err := loadConfig(defaultConfigPath, env(nil))
		if err != nil {
			t.Fatal(err)
		}
		if cfg.Search.ChunkSize != 1200 || cfg.Search.ChunkOverlap != 150 || cfg.Search.TopK != 5 {
			t.Errorf("search config = %+v", cfg.Search)
		}
	})
	t.Run("environment overrides", func(t *testing.T) {
		t.Chdir(t.TempDir())
		cfg, err := loadConfig(defaultConfigPath, env(map[string]string{"CHUNK_SIZE": "500", "TOP_K": "8"}))
		if err != nil {
			t.Fatal(err)
		}
		if cfg.Search.ChunkSize != 500 || cfg.Search.TopK != 8 {
			t.Errorf("search config = %+v", cfg.Search)
		}
	})
	t.Run("invalid overlap is rejected", func(t *testing.T) {
		t.Chdir(t.TempDir())
		_, err := loadConfig(defaultConfigPath, env(map[string]string{"CHUNK_SIZE": "100", "CHUNK_OVERLAP": "100"}))
		if !errors.Is(err, models.ErrConfig) {
			t.Errorf("error = %v, want ErrConfig", err)
		}
	})
	t.Run("explicit missing file is an error", func(t *testing.T) {
		if _, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"), env(nil)); err == nil {
			t.Error("expected error for a missing explicit config")
		}
	})
}

func writeDataset(t *testing.T, dir string) {
	t.Helper()
	files := map[string]string{
		"signals.txt": "Signal maintenance is performed every six months on main lines.",
		"track.md":    "Ballast renewal restores track geometry after heavy freight traffic.",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0600); err != nil {
			t.Fatal(err)
		}
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default()
	cfg.Storage.StoreDir = filepath.Join(root, "store")
	cfg.Storage.CatalogPath = filepath.Join(root, "store", "catalog.db")
	cfg.Ingest.DatasetDir = filepath.Join(root, "dataset")
	cfg.Embedding.Dimensions = 64
	cfg.Search.ChunkSize = 40
	cfg.Search.ChunkOverlap = 8
	if err := os.MkdirAll(cfg.Ingest.DatasetDir, 0755); err != nil {
		t.Fatal(err)
	}
	writeDataset(t, cfg.Ingest.DatasetDir)
	return cfg
}

func TestBuildThenStatus(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	res, err := build(ctx, cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if res.Manifest.Count == 0 || res.Manifest.Dimensions != 64 || len(res.Documents) != 2 {
		t.Errorf("build result = %+v", res)
	}

	st, err := localStatus(ctx, cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("localStatus: %v", err)
	}
	if !st.Index.Loaded || st.Index.Generation != res.Manifest.Generation || st.Index.Chunks != res.Manifest.Count {
		t.Errorf("status index = %+v", st.Index)
	}
	if st.Latest == nil || st.Latest.BuildID != res.Manifest.BuildID {
		t.Errorf("latest build = %+v", st.Latest)
	}
	if st.DiskUsage <= 0 {
		t.Errorf("disk usage = %d", st.DiskUsage)
	}
}

func TestBuildEmptyDatasetCreatesNothing(t *testing.T) {
	cfg := testConfig(t)
	cfg.Ingest.DatasetDir = t.TempDir()

	if _, err := build(context.Background(), cfg, zap.NewNop()); !errors.Is(err, models.ErrEmptyCorpus) {
		t.Fatalf("build error = %v, want ErrEmptyCorpus", err)
	}
	if _, err := os.Stat(cfg.Storage.StoreDir); !os.IsNotExist(err) {
		t.Errorf("store dir exists after an empty build, stat err = %v", err)
	}
}

func TestStatusWithoutBuild(t *testing.T) {
	cfg := testConfig(t)
	st, err := localStatus(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("localStatus: %v", err)
	}
	if st.Index.Loaded {
		t.Errorf("expected nothing loaded, got %+v", st.Index)
	}
}

func TestAPIClient(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()
	if _, err := build(ctx, cfg, zap.NewNop()); err != nil {
		t.Fatalf("build: %v", err)
	}
	store := storage.NewStore(cfg.Storage.StoreDir)
	engine := search.NewEngine(embedding.NewHashEmbedder(64), cfg.Search.TopK, search.WithStore(store))
	if _, err := engine.Reload(ctx); err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(server.NewServer(engine, cfg.Server, zap.NewNop(), server.WithStore(store)).Handler())
	defer ts.Close()
	client := newAPIClient(ts.URL+"/", 0)

	resp, err := client.Search(ctx, models.SearchQuery{Query: "ballast renewal", TopK: 1})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(resp.Hits) != 1 || resp.Hits[0].Metadata.Source != "track.md" {
		t.Errorf("hits = %+v", resp.Hits)
	}

	if _, err := client.Search(ctx, models.SearchQuery{Query: "  "}); !errors.Is(err, models.ErrInvalidQuery) {
		t.Errorf("blank query error = %v, want ErrInvalidQuery", err)
	}

	st, err := client.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !st.Index.Loaded || st.StoreDir != cfg.Storage.StoreDir {
		t.Errorf("status = %+v", st)
	}
}
