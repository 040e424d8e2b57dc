package provider

import (
	"fmt"

	"go.uber.org/zap"
)

// New builds a Provider variant keyed on cfg.Type.
func New(cfg Config, logger *zap.Logger) (Provider, error) {
	switch cfg.Type {
	case "openai":
		return NewOpenAIProvider(cfg, logger), nil
	case "anthropic":
		return NewAnthropicProvider(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unsupported provider type %q", cfg.Type)
	}
}
