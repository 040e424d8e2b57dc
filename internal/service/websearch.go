package service

import (
	"context"
	"fmt"
	"strings"
)

// WebSearch simulates a web search provider. Results are synthesized from
// the query until a real search backend is plugged in.
type WebSearch struct{}

// NewWebSearch creates the web search service.
func NewWebSearch() *WebSearch { return &WebSearch{} }

func (s *WebSearch) Name() string        { return "WebSearchService" }
func (s *WebSearch) Description() string { return "Search the web for real-time information" }
func (s *WebSearch) Type() Type          { return TypeWebSearch }

// Process returns max_results synthesized results formatted as markdown
// blocks with title, snippet and source URL.
func (s *WebSearch) Process(_ context.Context, req *Request) *Response {
	maxResults := req.IntParam("max_results", 5)
	if maxResults <= 0 {
		maxResults = 5
	}

	var b strings.Builder
	for i := 1; i <= maxResults; i++ {
		fmt.Fprintf(&b, "**Result %d for '%s'**\nThis is a relevant snippet about %s from result %d.\nSource: https://example.com/result%d\n\n", i, req.Query, req.Query, i, i)
	}

	return &Response{
		Content: strings.TrimRight(b.String(), "\n") + "\n",
		Metadata: map[string]any{
			"service":       s.Name(),
			"query":         req.Query,
			"results_count": maxResults,
			"search_type":   "web",
		},
		Success: true,
	}
}

func (s *WebSearch) Capabilities() map[string]any {
	return map[string]any{
		"parameters": map[string]any{
			"max_results": map[string]any{
				"type":        "integer",
				"default":     5,
				"description": "Maximum number of search results",
			},
			"language": map[string]any{
				"type":        "string",
				"default":     "en",
				"description": "Search language",
			},
		},
		"supported_queries": []string{"general information", "current events", "factual questions"},
	}
}
