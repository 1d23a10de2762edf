package embedding

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hyperjump/shiori/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewFromConfig_Mock(t *testing.T) {
	enc, err := NewFromConfig(config.EmbeddingConfig{Provider: config.ProviderMock, Dimensions: 24, CacheSize: 4}, zap.NewNop())
	require.NoError(t, err)
	defer enc.Close()
	assert.Equal(t, MockModelTag(24), enc.Model())
	assert.Equal(t, 24, enc.Dimensions())

	_, v, err := enc.Encode(context.Background(), "note")
	require.NoError(t, err)
	assert.Len(t, v, 24)
}

func TestNewFromConfig_ONNXFallsBackToMock(t *testing.T) {
	cfg := config.EmbeddingConfig{
		Provider:   config.ProviderONNX,
		ModelName:  config.DefaultModelName,
		ModelPath:  filepath.Join(t.TempDir(), "missing.onnx"),
		Dimensions: 8,
		MaxTokens:  16,
	}
	enc, err := NewFromConfig(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, MockModelTag(8), enc.Model())
}

func TestNewFromConfig_Ollama(t *testing.T) {
	enc, err := NewFromConfig(config.EmbeddingConfig{
		Provider:   config.ProviderOllama,
		Dimensions: 384,
		Ollama:     config.OllamaConfig{Model: "all-minilm"},
	}, zap.NewNop())
	require.NoError(t, err)
	assert.EqualValues(t, "ollama/all-minilm", enc.Model())
}

func TestNewFromConfig_UnknownProvider(t *testing.T) {
	_, err := NewFromConfig(config.EmbeddingConfig{Provider: "word2vec"}, zap.NewNop())
	assert.ErrorContains(t, err, "unknown embedding provider")
}
