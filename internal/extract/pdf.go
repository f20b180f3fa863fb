package extract

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"

	"github.com/MariusDragic/RailwayRAG/internal/models"
)

// extractPDF returns one page per PDF page, numbered from 1. A page whose content is
// missing or cannot be decoded yields empty text and is dropped later as blank.
func extractPDF(content []byte) ([]models.Page, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}
	numPages := r.NumPage()
	pages := make([]models.Page, 0, numPages)
	for i := 1; i <= numPages; i++ {
		pages = append(pages, models.Page{Number: i, Text: pageText(r.Page(i))})
	}
	return pages, nil
}

func pageText(page pdf.Page) (text string) {
	if page.V.IsNull() {
		return ""
	}
	// The reader panics on some malformed content streams.
	defer func() {
		if recover() != nil {
			text = ""
		}
	}()
	text, err := page.GetPlainText(nil)
	if err != nil {
		return ""
	}
	return text
}
