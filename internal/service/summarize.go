package service

import (
	"context"
	"fmt"
	"strings"
)

// Summarizer produces an extractive summary of the request text plus basic
// word and sentence statistics.
type Summarizer struct{}

// NewSummarizer creates the text summarization service.
func NewSummarizer() *Summarizer { return &Summarizer{} }

func (s *Summarizer) Name() string        { return "TextSummarizationService" }
func (s *Summarizer) Description() string { return "Summarize and analyze text content" }
func (s *Summarizer) Type() Type          { return TypeTextSummarization }

func (s *Summarizer) Process(_ context.Context, req *Request) *Response {
	text := req.Query
	maxLength := req.IntParam("max_length", 200)
	summaryType := req.StringParam("type", "extractive")

	sentences := strings.Split(text, ".")

	take := sentences
	if len(take) > 3 {
		take = take[:3]
	}
	var parts []string
	for _, sentence := range take {
		if trimmed := strings.TrimSpace(sentence); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	summary := strings.Join(parts, ". ")
	if len(summary) > maxLength {
		summary = summary[:maxLength] + "..."
	}

	wordCount := len(strings.Fields(text))
	sentenceCount := 0
	for _, sentence := range sentences {
		if strings.TrimSpace(sentence) != "" {
			sentenceCount++
		}
	}

	content := fmt.Sprintf("**Summary:**\n%s\n\n**Analysis:**\n- Word count: %d\n- Sentence count: %d", summary, wordCount, sentenceCount)

	ratio := 0.0
	if len(text) > 0 {
		ratio = float64(len(summary)) / float64(len(text))
	}

	return &Response{
		Content: content,
		Metadata: map[string]any{
			"service":           s.Name(),
			"original_length":   len(text),
			"summary_length":    len(summary),
			"compression_ratio": ratio,
			"summary_type":      summaryType,
		},
		Success: true,
	}
}

func (s *Summarizer) Capabilities() map[string]any {
	return map[string]any{
		"parameters": map[string]any{
			"max_length": map[string]any{
				"type":        "integer",
				"default":     200,
				"description": "Maximum length of summary",
			},
			"type": map[string]any{
				"type":        "string",
				"default":     "extractive",
				"description": "Type of summarization (extractive/abstractive)",
			},
		},
		"supported_queries": []string{"long text", "articles", "documents", "content analysis"},
	}
}
