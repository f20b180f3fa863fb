// Package cli provides output helpers for the railrag command.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/MariusDragic/RailwayRAG/internal/indexer"
	"github.com/MariusDragic/RailwayRAG/internal/models"
	"github.com/MariusDragic/RailwayRAG/internal/search"
	"github.com/MariusDragic/RailwayRAG/internal/storage"
	"github.com/MariusDragic/RailwayRAG/pkg/utils"
)

// PreviewLength is how many characters of a passage the text output shows.
const PreviewLength = 200

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// Status is what the status command reports.
type Status struct {
	Index     search.Stats         `json:"index"`
	StoreDir  string               `json:"store_dir"`
	DiskUsage int64                `json:"disk_usage_bytes"`
	Latest    *storage.BuildRecord `json:"latest_build,omitempty"`
}

// WriteSearchResults writes search results to w in the given format.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, response)
	}
	writeSearchResultsText(w, response)
	return nil
}

func writeSearchResultsText(w io.Writer, response *models.SearchResponse) {
	if len(response.Hits) == 0 {
		fmt.Fprintln(w, models.NoPassagesMessage)
		return
	}
	fmt.Fprintf(w, "\nFound %d passages in %dms\n\n", len(response.Hits), response.QueryTime)
	for i, hit := range response.Hits {
		fmt.Fprintf(w, "[%d] file=%s page=%d score=%.4f → %s\n",
			i+1, hit.Metadata.Source, hit.Metadata.Page, hit.Score, utils.Preview(hit.Text, PreviewLength))
	}
}

// PrintSearchResults prints search results to stdout in text format.
func PrintSearchResults(response *models.SearchResponse) {
	_ = WriteSearchResults(os.Stdout, response, OutputText)
}

// WriteBuildResult writes the outcome of a build.
func WriteBuildResult(w io.Writer, res *indexer.BuildResult, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, res)
	}
	fmt.Fprintf(w, "Indexed %d chunks from %d documents (dimension %d)\n",
		res.Manifest.Count, len(res.Documents), res.Manifest.Dimensions)
	fmt.Fprintf(w, "Generation: %s\n", res.Manifest.Generation)
	for _, d := range res.Documents {
		fmt.Fprintf(w, "  %s: %d/%d pages kept, %d chunks\n", d.Source, d.KeptPages, d.Pages, d.Chunks)
	}
	return nil
}

// WriteStatus writes the status of the store and the loaded index.
func WriteStatus(w io.Writer, st *Status, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, st)
	}
	fmt.Fprintf(w, "Store: %s\n", st.StoreDir)
	if !st.Index.Loaded {
		fmt.Fprintln(w, "Index: no build committed")
	} else {
		fmt.Fprintf(w, "Generation: %s\n", st.Index.Generation)
		fmt.Fprintf(w, "Built: %s\n", st.Index.CreatedAt.Format("2006-01-02 15:04:05 MST"))
		fmt.Fprintf(w, "Chunks: %d\n", st.Index.Chunks)
		fmt.Fprintf(w, "Dimensions: %d\n", st.Index.Dimensions)
		if st.Index.Embedder != "" {
			fmt.Fprintf(w, "Embedder: %s\n", st.Index.Embedder)
		}
		fmt.Fprintf(w, "Sources: %d\n", len(st.Index.Sources))
	}
	fmt.Fprintf(w, "Disk usage: %s\n", FormatBytes(st.DiskUsage))
	if st.Latest != nil && len(st.Latest.Documents) > 0 {
		fmt.Fprintln(w, "Documents in latest build:")
		for _, d := range st.Latest.Documents {
			fmt.Fprintf(w, "  %s: %d/%d pages kept, %d chunks\n", d.Source, d.KeptPages, d.Pages, d.Chunks)
		}
	}
	return nil
}

// FormatBytes renders n with a binary unit.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
