package models

import (
	"fmt"
	"strings"
)

// SearchQuery represents a retrieval request.
type SearchQuery struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k,omitempty"`
}

// Validate rejects blank queries and negative result counts; a zero TopK takes defaultTopK.
func (q *SearchQuery) Validate(defaultTopK int) error {
	if strings.TrimSpace(q.Query) == "" {
		return fmt.Errorf("%w: query is empty", ErrInvalidQuery)
	}
	if q.TopK == 0 {
		q.TopK = defaultTopK
	}
	if q.TopK <= 0 {
		return fmt.Errorf("%w: top_k must be positive, got %d", ErrConfig, q.TopK)
	}
	return nil
}
