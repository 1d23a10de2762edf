package embedding

import (
	"context"
	"math"
	"math/rand"
	"strings"
	"unicode"
)

// MockEmbedder is a deterministic embedder for tests and for running without
// a model. Each word maps to a fixed pseudo-random direction and a text embeds
// as the normalized sum of its words, so texts sharing words score higher.
type MockEmbedder struct {
	dimensions int
}

// NewMockEmbedder returns an embedder that produces deterministic embeddings of the given dimensions.
func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &MockEmbedder{dimensions: dimensions}
}

// Embed returns a deterministic unit-norm embedding of text.
func (e *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(words) == 0 {
		words = []string{text}
	}
	sum := make([]float64, e.dimensions)
	for _, w := range words {
		rng := rand.New(rand.NewSource(int64(HashString(w))))
		for i := range sum {
			sum[i] += rng.NormFloat64()
		}
	}
	var norm float64
	for _, v := range sum {
		norm += v * v
	}
	emb := make([]float32, e.dimensions)
	if norm == 0 {
		emb[0] = 1
		return emb, nil
	}
	inv := 1 / math.Sqrt(norm)
	for i, v := range sum {
		emb[i] = float32(v * inv)
	}
	return emb, nil
}

// EmbedBatch calls Embed for each text.
func (e *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedEach(ctx, texts, e.Embed)
}

// Dimensions returns the embedding dimension.
func (e *MockEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for MockEmbedder.
func (e *MockEmbedder) Close() error {
	return nil
}
