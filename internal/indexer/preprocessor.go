package indexer

import "github.com/MariusDragic/RailwayRAG/internal/models"

// FilterPages drops pages whose text is empty once whitespace is removed. Kept pages are
// returned unchanged and in order.
func FilterPages(pages []models.Page) []models.Page {
	kept := make([]models.Page, 0, len(pages))
	for _, p := range pages {
		if p.Blank() {
			continue
		}
		kept = append(kept, p)
	}
	return kept
}
