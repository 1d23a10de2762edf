package embedding

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/hyperjump/shiori/internal/vector"
	"go.uber.org/zap"
)

// Encoder is the long-lived text encoder shared by all requests. Calls into
// the underlying Embedder are serialized; cached texts skip the model.
type Encoder struct {
	embedder Embedder
	model    vector.ModelTag
	cache    *EmbeddingCache
	logger   *zap.Logger
	mu       sync.Mutex
}

// EncoderOption configures an Encoder.
type EncoderOption func(*Encoder)

// WithCacheSize sets the LRU cache capacity; 0 disables caching.
func WithCacheSize(n int) EncoderOption {
	return func(e *Encoder) { e.cache = NewEmbeddingCache(n) }
}

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) EncoderOption {
	return func(e *Encoder) { e.logger = l }
}

// NewEncoder wraps embedder, tagging its output with model.
func NewEncoder(embedder Embedder, model vector.ModelTag, opts ...EncoderOption) *Encoder {
	e := &Encoder{
		embedder: embedder,
		model:    model,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Encode returns the model tag and a unit-norm embedding of text.
func (e *Encoder) Encode(ctx context.Context, text string) (vector.ModelTag, vector.Vector, error) {
	text = strings.TrimSpace(text)
	if cached, ok := e.cache.Get(text); ok {
		return e.model, cached, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", nil, err
	}
	emb, err := e.embedder.Embed(ctx, text)
	if err != nil {
		return "", nil, fmt.Errorf("encode with %s: %w", e.model, err)
	}
	if len(emb) != e.embedder.Dimensions() {
		return "", nil, fmt.Errorf("%w: model %s returned %d dimensions, expected %d",
			vector.ErrMalformedVector, e.model, len(emb), e.embedder.Dimensions())
	}
	e.cache.Set(text, emb)
	e.logger.Debug("encoded text", zap.String("model", string(e.model)), zap.Int("chars", len(text)))
	return e.model, emb, nil
}

// Model returns the tag attached to every vector this encoder produces.
func (e *Encoder) Model() vector.ModelTag {
	return e.model
}

// Dimensions returns the embedding dimension.
func (e *Encoder) Dimensions() int {
	return e.embedder.Dimensions()
}

// CachedEntries returns the number of cached embeddings.
func (e *Encoder) CachedEntries() int {
	return e.cache.Len()
}

// Close releases the underlying model.
func (e *Encoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.embedder.Close()
}
