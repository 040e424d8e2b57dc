package embedding

import (
	"context"
	"fmt"
)

// Provider generates vector embeddings from text.
type Provider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// Config holds embedding provider configuration.
type Config struct {
	Provider  string `json:"provider"` // "api", "ollama" or "local"
	Endpoint  string `json:"endpoint"`
	Model     string `json:"model"`
	APIKey    string `json:"api_key"`
	Dimension int    `json:"dimension"`
}

// New builds an embedding Provider keyed on cfg.Provider. The "local"
// variant needs no network and is the default for dev and tests.
func New(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "api":
		return NewAPIProvider(cfg), nil
	case "ollama":
		return NewOllamaProvider(cfg), nil
	case "local", "":
		return NewLocalProvider(cfg.Dimension), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider %q", cfg.Provider)
	}
}
