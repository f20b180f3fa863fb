package search

import "github.com/MariusDragic/RailwayRAG/internal/models"

// ProcessQuery validates the search query and applies the default result count.
func ProcessQuery(query *models.SearchQuery, defaultTopK int) error {
	return query.Validate(defaultTopK)
}
