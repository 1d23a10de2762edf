package embedding

import (
	"fmt"

	"github.com/hyperjump/shiori/internal/config"
	"github.com/hyperjump/shiori/internal/vector"
	"go.uber.org/zap"
)

// NewFromConfig builds the configured embedder and wraps it in an Encoder.
// When the ONNX model cannot be loaded the deterministic mock embedder is used
// instead and the model tag says so, keeping its vectors apart from real ones.
func NewFromConfig(cfg config.EmbeddingConfig, logger *zap.Logger) (*Encoder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		embedder Embedder
		model    = vector.ModelTag(cfg.ModelName)
	)
	switch cfg.Provider {
	case config.ProviderONNX, "":
		onnx, err := NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens)
		if err != nil {
			logger.Warn("ONNX embedder unavailable, falling back to mock embeddings",
				zap.String("model_path", cfg.ModelPath), zap.Error(err))
			embedder = NewMockEmbedder(cfg.Dimensions)
			model = MockModelTag(cfg.Dimensions)
		} else {
			embedder = onnx
		}
	case config.ProviderOllama:
		embedder = NewOllamaEmbedder(OllamaConfig{
			BaseURL:    cfg.Ollama.BaseURL,
			Model:      cfg.Ollama.Model,
			Dimensions: cfg.Dimensions,
			Timeout:    cfg.Ollama.Timeout,
		})
		model = vector.ModelTag("ollama/" + cfg.Ollama.Model)
	case config.ProviderMock:
		embedder = NewMockEmbedder(cfg.Dimensions)
		model = MockModelTag(cfg.Dimensions)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: onnx, ollama, mock)", cfg.Provider)
	}

	logger.Info("encoder ready",
		zap.String("provider", cfg.Provider),
		zap.String("model", string(model)),
		zap.Int("dimensions", embedder.Dimensions()))
	return NewEncoder(embedder, model, WithCacheSize(cfg.CacheSize), WithLogger(logger)), nil
}

// MockModelTag is the model tag of MockEmbedder vectors of the given dimension.
func MockModelTag(dimensions int) vector.ModelTag {
	return vector.ModelTag(fmt.Sprintf("mock-%d", dimensions))
}
