package models

import (
	"fmt"
	"strings"

	"github.com/hyperjump/shiori/internal/vector"
)

// SearchQuery is a semantic search request. A nil K means the default.
type SearchQuery struct {
	Query  string  `json:"query"`
	K      *int    `json:"k,omitempty"`
	BookID *string `json:"book_id,omitempty"`
}

// Validate trims the query, applies defaultK when K is unset and checks the range.
func (q *SearchQuery) Validate(defaultK int) error {
	q.Query = strings.TrimSpace(q.Query)
	if q.Query == "" {
		return fmt.Errorf("%w: query cannot be empty", vector.ErrInvalidParameter)
	}
	if q.K == nil {
		k := defaultK
		q.K = &k
	}
	if *q.K < 1 || *q.K > vector.MaxSearchK {
		return fmt.Errorf("%w: k must be between 1 and %d, got %d", vector.ErrInvalidParameter, vector.MaxSearchK, *q.K)
	}
	if q.BookID != nil && *q.BookID == "" {
		q.BookID = nil
	}
	return nil
}

// Limit returns K, or 0 when unset.
func (q *SearchQuery) Limit() int {
	if q.K == nil {
		return 0
	}
	return *q.K
}

// ClusterRequest asks for a clustering of the caller's notes. Nil fields take defaults.
type ClusterRequest struct {
	K          *int    `json:"k,omitempty"`
	PerCluster *int    `json:"per_cluster,omitempty"`
	BookID     *string `json:"book_id,omitempty"`
}

// ApplyDefaults fills unset fields. Range checks happen in the cluster engine.
func (r *ClusterRequest) ApplyDefaults(defaultK, defaultPerCluster int) {
	if r.K == nil {
		k := defaultK
		r.K = &k
	}
	if r.PerCluster == nil {
		p := defaultPerCluster
		r.PerCluster = &p
	}
	if r.BookID != nil && *r.BookID == "" {
		r.BookID = nil
	}
}
