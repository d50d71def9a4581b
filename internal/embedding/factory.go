package embedding

import (
	"fmt"
	"time"
)

// Provider selects an embedder implementation.
type Provider string

const (
	ProviderONNX   Provider = "onnx"
	ProviderRemote Provider = "ollama"
	ProviderMock   Provider = "mock"
)

// FactoryConfig holds the settings needed to construct any provider.
type FactoryConfig struct {
	Provider   Provider
	ModelPath  string // ONNX model file
	BaseURL    string // remote API base URL
	Model      string // remote model name
	Dimensions int
	MaxTokens  int
	CacheSize  int
	Timeout    time.Duration
}

// New creates an embedder for the configured provider.
func New(cfg FactoryConfig) (Embedder, error) {
	switch cfg.Provider {
	case ProviderONNX:
		return NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens, cfg.CacheSize)
	case ProviderRemote:
		return NewRemoteEmbedder(RemoteConfig{
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Timeout:    cfg.Timeout,
			Dimensions: cfg.Dimensions,
			CacheSize:  cfg.CacheSize,
		}), nil
	case ProviderMock:
		return NewMockEmbedder(cfg.Dimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %q", cfg.Provider)
	}
}
