package embed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ppiankov/claimcheck/internal/util"
)

// OllamaEmbedder calls a local Ollama server
type OllamaEmbedder struct {
	baseURL    string
	httpClient *http.Client
	config     Config
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
	Error     string    `json:"error,omitempty"`
}

// NewOllamaEmbedder creates an Ollama embedder
func NewOllamaEmbedder(config Config) (*OllamaEmbedder, error) {
	if config.Model == "" {
		return nil, fmt.Errorf("ollama embedding model must be specified (e.g., nomic-embed-text)")
	}
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	timeout := time.Duration(config.Timeout) * time.Second
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	return &OllamaEmbedder{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: util.NewHTTPClient(timeout, config.HTTPProxy, config.HTTPSProxy, config.NoProxy),
		config:     config,
	}, nil
}

// Name identifies provider and model
func (e *OllamaEmbedder) Name() string {
	return "ollama/" + e.config.Model
}

// Embed returns the embedding of text
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var out ollamaEmbedResponse
	req := ollamaEmbedRequest{Model: e.config.Model, Prompt: text}
	if err := util.PostJSON(ctx, e.httpClient, e.baseURL+"/api/embeddings", nil, req, &out, decodeOllamaError); err != nil {
		return nil, fmt.Errorf("ollama embeddings: %w", err)
	}
	if len(out.Embedding) == 0 {
		return nil, fmt.Errorf("ollama embeddings: no embedding returned")
	}
	return out.Embedding, nil
}

func decodeOllamaError(body []byte) string {
	var out ollamaEmbedResponse
	if json.Unmarshal(body, &out) != nil {
		return ""
	}
	return out.Error
}
