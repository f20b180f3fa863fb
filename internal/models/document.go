// Package models defines core data structures for source documents, chunks, queries, and hits.
package models

import "strings"

// Page is the extracted text of one page of a source document. Numbers start at 1.
type Page struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

// Blank reports whether the page carries no text once surrounding whitespace is removed.
func (p Page) Blank() bool {
	return strings.TrimSpace(p.Text) == ""
}

// SourceDocument is a named document made of ordered pages, as produced by text extraction.
type SourceDocument struct {
	Name  string `json:"name"`
	Pages []Page `json:"pages"`
}

// ChunkMetadata locates a chunk inside its source document.
type ChunkMetadata struct {
	Page    int    `json:"page"`
	ChunkID int    `json:"chunk_id"`
	Source  string `json:"source"`
}

// Chunk is a contiguous window of page text, the unit of embedding and retrieval.
type Chunk struct {
	ID       string        `json:"id"`
	Text     string        `json:"text"`
	Metadata ChunkMetadata `json:"metadata"`
}

// DocumentStats summarizes how a document contributed to a build.
type DocumentStats struct {
	Source    string `json:"source"`
	Pages     int    `json:"pages"`
	KeptPages int    `json:"kept_pages"`
	Chunks    int    `json:"chunks"`
}
