package embedding

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/hyperjump/shiori/internal/vector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaEmbedder_Embed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		var req embedRequest
		require.NoError(t, gojson.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "all-minilm", req.Model)
		assert.Equal(t, "hello", req.Input)
		_ = gojson.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float32{{3, 4}}})
	}))
	defer srv.Close()

	o := NewOllamaEmbedder(OllamaConfig{BaseURL: srv.URL + "/", Dimensions: 2})
	emb, err := o.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.InDelta(t, 0.6, emb[0], 1e-6)
	assert.InDelta(t, 0.8, emb[1], 1e-6)
	assert.InDelta(t, 1.0, vector.L2Norm(emb), 1e-6)
}

func TestOllamaEmbedder_DimensionMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = gojson.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float32{{1, 0, 0}}})
	}))
	defer srv.Close()

	o := NewOllamaEmbedder(OllamaConfig{BaseURL: srv.URL, Dimensions: 2})
	_, err := o.Embed(context.Background(), "hello")
	assert.ErrorContains(t, err, "3 dimensions")
}

func TestOllamaEmbedder_BreakerOpens(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	o := NewOllamaEmbedder(OllamaConfig{BaseURL: srv.URL, Dimensions: 2, MaxFailures: 2, OpenTimeout: time.Minute})
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := o.Embed(ctx, "x")
		require.Error(t, err)
		assert.ErrorContains(t, err, "status 500")
	}
	_, err := o.Embed(ctx, "x")
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 2, hits)
}
