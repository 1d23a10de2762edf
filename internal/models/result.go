package models

import "github.com/hyperjump/shiori/internal/vector"

// SearchHit is a ranked note.
type SearchHit struct {
	NoteID string  `json:"note_id"`
	Score  float64 `json:"score"`
	Text   string  `json:"text"`
	BookID *string `json:"book_id,omitempty"`
}

// SearchResponse is the response for a search request.
type SearchResponse struct {
	Results   []SearchHit     `json:"results"`
	Query     string          `json:"query"`
	Model     vector.ModelTag `json:"model"`
	Total     int             `json:"total"`
	QueryTime int64           `json:"query_time_ms"`
}

// ClusterView is one cluster with hydrated representatives.
type ClusterView struct {
	ClusterID       int         `json:"cluster_id"`
	Size            int         `json:"size"`
	Keywords        []string    `json:"keywords"`
	Representatives []SearchHit `json:"representatives"`
}

// ClusterResponse is the response for a cluster request.
type ClusterResponse struct {
	Clusters  []ClusterView   `json:"clusters"`
	Model     vector.ModelTag `json:"model"`
	Notes     int             `json:"notes"`
	QueryTime int64           `json:"query_time_ms"`
}

// ReembedResult reports a re-embedding pass.
type ReembedResult struct {
	Model    vector.ModelTag `json:"model"`
	Embedded int             `json:"embedded"`
}

// Status summarizes the store and encoder.
type Status struct {
	Notes          int64           `json:"notes"`
	Books          int64           `json:"books"`
	EmbeddedNotes  int64           `json:"embedded_notes"`
	Model          vector.ModelTag `json:"model"`
	Dimensions     int             `json:"dimensions"`
	CachedEntries  int             `json:"cached_embeddings"`
	StorageDriver  string          `json:"storage_driver"`
	DiskUsageBytes int64           `json:"disk_usage_bytes,omitempty"`
}
