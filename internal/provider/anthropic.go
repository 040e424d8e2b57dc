package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// AnthropicProvider implements the Provider interface for the Claude API.
type AnthropicProvider struct {
	config Config
	client *http.Client
	logger *zap.Logger
}

// NewAnthropicProvider creates a new Anthropic provider.
func NewAnthropicProvider(cfg Config, logger *zap.Logger) *AnthropicProvider {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://api.anthropic.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "claude-sonnet-4-20250514"
	}
	return &AnthropicProvider{
		config: cfg,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

func (p *AnthropicProvider) ID() string    { return p.config.ID }
func (p *AnthropicProvider) Name() string  { return p.config.Name }
func (p *AnthropicProvider) Model() string { return p.config.Model }

type anthropicRequest struct {
	Model       string         `json:"model"`
	Messages    []anthropicMsg `json:"messages"`
	System      string         `json:"system,omitempty"`
	MaxTokens   int            `json:"max_tokens"`
	Temperature float64        `json:"temperature,omitempty"`
	Stream      bool           `json:"stream,omitempty"`
}

type anthropicMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// convertRequest lifts system messages into the top-level system field and
// merges them when more than one is present.
func (p *AnthropicProvider) convertRequest(req *GenerateRequest, stream bool) *anthropicRequest {
	ar := &anthropicRequest{
		Model:       p.config.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Stream:      stream,
	}
	if ar.MaxTokens == 0 {
		ar.MaxTokens = p.config.MaxTokens
	}
	if ar.MaxTokens == 0 {
		ar.MaxTokens = 4096
	}
	if ar.Temperature == 0 {
		ar.Temperature = p.config.Temperature
	}

	var system []string
	for _, m := range req.Messages {
		if m.Role == "system" {
			system = append(system, m.Content)
			continue
		}
		ar.Messages = append(ar.Messages, anthropicMsg{Role: m.Role, Content: m.Content})
	}
	ar.System = strings.Join(system, "\n\n")
	return ar
}

func (p *AnthropicProvider) post(ctx context.Context, body []byte) (*http.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.config.Endpoint+"/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.config.APIKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, string(respBody))
	}
	return resp, nil
}

// Generate sends a non-streaming request to Claude.
func (p *AnthropicProvider) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	body, err := json.Marshal(p.convertRequest(req, false))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	resp, err := p.post(ctx, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var claudeResp anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&claudeResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	var content strings.Builder
	for _, c := range claudeResp.Content {
		if c.Type == "text" {
			content.WriteString(c.Text)
		}
	}

	return &GenerateResponse{
		Content: content.String(),
		Usage: &Usage{
			PromptTokens:     claudeResp.Usage.InputTokens,
			CompletionTokens: claudeResp.Usage.OutputTokens,
			TotalTokens:      claudeResp.Usage.InputTokens + claudeResp.Usage.OutputTokens,
		},
		Metadata: map[string]string{
			"model":    p.config.Model,
			"provider": "anthropic",
		},
	}, nil
}

// GenerateStream sends a streaming request to Claude.
func (p *AnthropicProvider) GenerateStream(ctx context.Context, req *GenerateRequest) (<-chan *StreamChunk, error) {
	body, err := json.Marshal(p.convertRequest(req, true))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	resp, err := p.post(ctx, body)
	if err != nil {
		return nil, err
	}

	ch := make(chan *StreamChunk, 64)
	go p.readStream(resp.Body, ch)
	return ch, nil
}

func (p *AnthropicProvider) readStream(body io.ReadCloser, ch chan<- *StreamChunk) {
	defer close(ch)
	defer body.Close()

	buf := make([]byte, 0, 4096)
	tmp := make([]byte, 1024)
	for {
		n, err := body.Read(tmp)
		if n > 0 {
			buf = append(buf, tmp[:n]...)
			for {
				idx := bytes.Index(buf, []byte("\n\n"))
				if idx < 0 {
					break
				}
				line := string(buf[:idx])
				buf = buf[idx+2:]
				if len(line) > 6 && line[:6] == "data: " {
					data := line[6:]
					var event struct {
						Type  string `json:"type"`
						Delta struct {
							Type string `json:"type"`
							Text string `json:"text"`
						} `json:"delta"`
					}
					if json.Unmarshal([]byte(data), &event) == nil {
						switch event.Type {
						case "content_block_delta":
							ch <- &StreamChunk{Content: event.Delta.Text}
						case "message_stop":
							ch <- &StreamChunk{Done: true}
							return
						}
					}
				}
			}
		}
		if err != nil {
			return
		}
	}
}

// HealthCheck verifies the provider is reachable with a minimal request.
func (p *AnthropicProvider) HealthCheck(ctx context.Context) error {
	req := &GenerateRequest{
		Messages:  []Message{{Role: "user", Content: "ping"}},
		MaxTokens: 1,
	}
	_, err := p.Generate(ctx, req)
	return err
}
