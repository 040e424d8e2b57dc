package provider

import (
	"context"
	"time"
)

// Provider is the text-generation capability. Implementations own their
// request/response adaptation; callers only see role-tagged messages in and
// generated text out.
type Provider interface {
	ID() string
	Name() string
	Model() string
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)
	GenerateStream(ctx context.Context, req *GenerateRequest) (<-chan *StreamChunk, error)
	HealthCheck(ctx context.Context) error
}

// Message is a single role-tagged chat message.
type Message struct {
	Role    string `json:"role"` // system|user|assistant
	Content string `json:"content"`
}

// GenerateRequest carries one generation call. Zero-valued Temperature and
// MaxTokens fall back to the provider's configured defaults.
type GenerateRequest struct {
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// GenerateResponse is the result of a generation call.
type GenerateResponse struct {
	Content  string            `json:"content"`
	Usage    *Usage            `json:"usage,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// StreamChunk is one increment of a streaming generation.
type StreamChunk struct {
	Content      string `json:"content,omitempty"`
	FinishReason string `json:"finish_reason,omitempty"`
	Done         bool   `json:"done"`
}

// Usage tracks token consumption.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Config holds configuration for a provider instance.
type Config struct {
	ID          string        `json:"id"`
	Type        string        `json:"type"` // openai|anthropic
	Name        string        `json:"name"`
	Endpoint    string        `json:"endpoint"`
	APIKey      string        `json:"api_key"`
	Model       string        `json:"model"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Timeout     time.Duration `json:"timeout,omitempty"`
}
