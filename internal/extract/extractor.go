// Package extract turns document files into named, page-numbered text.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/MariusDragic/RailwayRAG/internal/models"
)

// Extractor extracts per-page text from document files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract reads the file at path and returns it as a SourceDocument named after the file.
// Pages are numbered from 1. Formats without a page notion yield a single page; spreadsheets
// yield one page per sheet and presentations one page per slide.
func (e *Extractor) Extract(path string) (models.SourceDocument, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return models.SourceDocument{}, fmt.Errorf("read file: %w", err)
	}
	pages, err := e.ExtractBytes(content, filepath.Ext(path))
	if err != nil {
		return models.SourceDocument{}, err
	}
	return models.SourceDocument{Name: filepath.Base(path), Pages: pages}, nil
}

// ExtractBytes extracts pages from content based on the given extension.
// ext should include the leading dot (e.g. ".pdf"); unknown extensions are read as plain text.
func (e *Extractor) ExtractBytes(content []byte, ext string) ([]models.Page, error) {
	switch strings.ToLower(ext) {
	case ".pdf":
		return extractPDF(content)
	case ".docx":
		return extractDOCX(content)
	case ".odt", ".rtf":
		return extractWithCat(content, strings.ToLower(ext))
	case ".xlsx":
		return extractExcel(content)
	case ".pptx":
		return extractPPTX(content)
	case ".odp":
		return extractODP(content)
	case ".ods":
		return extractODS(content)
	default:
		return extractPlain(content)
	}
}

// Supported reports whether ext is one of the formats with a dedicated extractor or plain text.
func Supported(ext string) bool {
	switch strings.ToLower(ext) {
	case ".pdf", ".docx", ".odt", ".rtf", ".xlsx", ".pptx", ".odp", ".ods", ".txt", ".md", ".rst":
		return true
	}
	return false
}

func singlePage(text string) []models.Page {
	return []models.Page{{Number: 1, Text: text}}
}
