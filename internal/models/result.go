package models

// NoPassagesMessage is reported when a query completes without any hit.
const NoPassagesMessage = "no relevant passages found"

// Hit is one retrieved chunk with its similarity score.
type Hit struct {
	Text     string        `json:"text"`
	Metadata ChunkMetadata `json:"metadata"`
	Score    float64       `json:"score"`
	Position int           `json:"position"`
	Rank     int           `json:"rank"`
}

// SearchResponse is the response for a search request. Hits are ordered by descending score.
type SearchResponse struct {
	Query      string `json:"query"`
	Hits       []*Hit `json:"hits"`
	Total      int    `json:"total"`
	QueryTime  int64  `json:"query_time_ms"`
	Generation string `json:"generation,omitempty"`
	Message    string `json:"message,omitempty"`
}
