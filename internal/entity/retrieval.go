package entity

// VectorSearchRequest is the query against the vector-search service.
// ChatID is a mandatory pre-filter: the index only scores passages tagged
// with that conversation, so other conversations cannot leak through
// result contents or counts.
type VectorSearchRequest struct {
	Query  string `json:"query"`
	ChatID string `json:"chat_id"`
	TopK   int    `json:"top_k"`
}

type VectorSearchResponse struct {
	Results []ScoredPassage `json:"results"`
}

type VectorDeleteResponse struct {
	DeletedCount int `json:"deleted_count,omitempty"`
}

type IngestResponse struct {
	ChunksIndexed int `json:"chunks_indexed"`
}
