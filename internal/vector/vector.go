// Package vector holds the vector types shared by retrieval and clustering,
// the textual vector codec and the brute-force similarity ranker.
package vector

import "errors"

var (
	// ErrInvalidParameter is returned when a caller-supplied parameter is out of range.
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrMalformedVector is returned when a stored vector cannot be decoded or
	// does not match the dimensionality of its peers.
	ErrMalformedVector = errors.New("malformed vector")
)

// Vector is a fixed-length embedding. Encoders emit unit-norm vectors; nothing
// in this package renormalizes them.
type Vector []float32

// ModelTag names the encoding model that produced a vector. Vectors from
// different models are never compared.
type ModelTag string

// Candidate is an entity reference paired with its decoded vector.
type Candidate struct {
	Ref    string
	Vector Vector
}

// ScoredEntity is a ranked hit.
type ScoredEntity struct {
	Ref   string  `json:"ref"`
	Score float64 `json:"score"`
}
