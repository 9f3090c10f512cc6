// Package embed turns query text into vectors for semantic search.
package embed

import (
	"context"
	"fmt"
	"strings"

	"github.com/ppiankov/claimcheck/internal/model"
)

// Embedder turns text into a vector
type Embedder interface {
	Name() string
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Config holds embedding provider configuration
type Config struct {
	Provider   string
	Model      string
	APIKey     string
	BaseURL    string
	Dimensions int
	Timeout    int // seconds

	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// ConfigFromModel converts model config; proxy settings are shared with the LLM client
func ConfigFromModel(c model.EmbeddingConfig, llm model.LLMConfig) Config {
	return Config{
		Provider:   c.Provider,
		Model:      c.Model,
		APIKey:     c.APIKey,
		BaseURL:    c.BaseURL,
		Dimensions: c.Dimensions,
		Timeout:    c.Timeout,
		HTTPProxy:  llm.HTTPProxy,
		HTTPSProxy: llm.HTTPSProxy,
		NoProxy:    llm.NoProxy,
	}
}

// New creates an embedder for the configured provider
func New(ctx context.Context, config Config) (Embedder, error) {
	switch strings.ToLower(config.Provider) {
	case "openai":
		return NewOpenAIEmbedder(config)
	case "gemini", "google":
		return NewGeminiEmbedder(ctx, config)
	case "ollama":
		return NewOllamaEmbedder(config)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %q (supported: openai, gemini, ollama)", config.Provider)
	}
}
