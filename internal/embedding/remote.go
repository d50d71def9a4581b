package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Defaults for the remote (Ollama-compatible) embedder.
const (
	DefaultRemoteBaseURL = "http://localhost:11434"
	DefaultRemoteModel   = "all-minilm"
	DefaultRemoteTimeout = 30 * time.Second
)

// RemoteConfig configures a RemoteEmbedder.
type RemoteConfig struct {
	BaseURL    string
	Model      string
	Timeout    time.Duration
	Dimensions int
	CacheSize  int
}

// RemoteEmbedder produces embeddings via an Ollama-compatible HTTP API.
// Responses are normalized before caching, so stored and query vectors stay
// comparable by inner product regardless of what the server returns.
type RemoteEmbedder struct {
	client     *http.Client
	baseURL    string
	model      string
	dimensions int
	cache      *Cache
}

type remoteEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type remoteEmbedResponse struct {
	Embedding []float64 `json:"embedding"`
}

// NewRemoteEmbedder creates a remote embedder, applying defaults for any
// zero config values.
func NewRemoteEmbedder(cfg RemoteConfig) *RemoteEmbedder {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultRemoteBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultRemoteModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultRemoteTimeout
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = DefaultDimensions
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 1024
	}
	return &RemoteEmbedder{
		client:     &http.Client{Timeout: cfg.Timeout},
		baseURL:    cfg.BaseURL,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		cache:      NewCache(cfg.CacheSize),
	}
}

// Embed generates a normalized embedding for text.
func (e *RemoteEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if cached, ok := e.cache.Get(text); ok {
		return cached, nil
	}

	jsonBody, err := json.Marshal(remoteEmbedRequest{Model: e.model, Prompt: text})
	if err != nil {
		return nil, &Error{Op: "marshal request", Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embeddings", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, &Error{Op: "create request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, &Error{Op: "send request", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return nil, &Error{Op: "embed", Err: fmt.Errorf("server returned status %d", resp.StatusCode)}
		}
		return nil, &Error{Op: "embed", Err: fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))}
	}

	var embedResp remoteEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&embedResp); err != nil {
		return nil, &Error{Op: "decode response", Err: err}
	}
	if len(embedResp.Embedding) != e.dimensions {
		return nil, &Error{Op: "embed", Err: fmt.Errorf("dimension mismatch: got %d, expected %d", len(embedResp.Embedding), e.dimensions)}
	}

	emb := make([]float32, len(embedResp.Embedding))
	for i, v := range embedResp.Embedding {
		emb[i] = float32(v)
	}
	NormalizeL2(emb)
	e.cache.Set(text, emb)
	return emb, nil
}

// EmbedBatch calls Embed for each text; the API has no native batch endpoint.
func (e *RemoteEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

// Dimensions returns the embedding dimension.
func (e *RemoteEmbedder) Dimensions() int { return e.dimensions }

// ModelID identifies the remote model.
func (e *RemoteEmbedder) ModelID() string { return "ollama:" + e.model }

// Close is a no-op; the HTTP client needs no cleanup.
func (e *RemoteEmbedder) Close() error { return nil }
