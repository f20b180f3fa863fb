package extract

import (
	"fmt"
	"os"

	"github.com/lu4p/cat"

	"github.com/MariusDragic/RailwayRAG/internal/models"
)

// extractWithCat reads ODT and RTF documents through lu4p/cat, which works on files, so the
// content is staged in a temporary file carrying the right extension.
func extractWithCat(content []byte, ext string) ([]models.Page, error) {
	tmp, err := os.CreateTemp("", "railrag-*"+ext)
	if err != nil {
		return nil, fmt.Errorf("stage %s: %w", ext, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		return nil, fmt.Errorf("stage %s: %w", ext, err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("stage %s: %w", ext, err)
	}
	text, err := cat.File(tmp.Name())
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", ext, err)
	}
	return singlePage(normalizeNewlines(text)), nil
}
