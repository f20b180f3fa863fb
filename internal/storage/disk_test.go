package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSized(t *testing.T, path string, n int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, make([]byte, n), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestDiskUsageBytes(t *testing.T) {
	dir := t.TempDir()
	manifest := filepath.Join(dir, CurrentFile)
	gen := filepath.Join(dir, "gen-a")
	writeSized(t, manifest, 10)
	writeSized(t, filepath.Join(gen, IndexFileName), 300)
	writeSized(t, filepath.Join(gen, ChunksFileName), 45)

	tests := []struct {
		name  string
		paths []string
		want  int64
	}{
		{"single file", []string{manifest}, 10},
		{"directory is summed recursively", []string{gen}, 345},
		{"file and directory", []string{manifest, gen}, 355},
		{"missing path is skipped", []string{manifest, filepath.Join(dir, "gen-missing")}, 10},
		{"empty path is skipped", []string{"", gen}, 345},
		{"no paths", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DiskUsageBytes(tt.paths...)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("DiskUsageBytes(%v) = %d, want %d", tt.paths, got, tt.want)
			}
		})
	}
}

func TestStoreUsage(t *testing.T) {
	root := t.TempDir()
	s := NewStore(filepath.Join(root, "store"))
	if got, err := s.Usage(); err != nil || got != 0 {
		t.Errorf("Usage() of missing store = %d, %v", got, err)
	}
	writeSized(t, filepath.Join(s.Dir(), "gen-b", ChunksFileName), 64)
	if got, err := s.Usage(); err != nil || got != 64 {
		t.Errorf("Usage() = %d, %v; want 64", got, err)
	}
}
