package service

import (
	"context"
	"fmt"

	"github.com/nidhogg/cogito/internal/rag"
)

// KnowledgeSource is the slice of the RAG orchestrator that document
// retrieval needs.
type KnowledgeSource interface {
	QueryKnowledge(ctx context.Context, query string, useHybrid bool, k int) (*rag.RetrievalResult, error)
	GetContextForQuery(ctx context.Context, query string) (string, error)
}

// DocumentRetrieval answers queries from the knowledge base. Without a
// configured source every request fails gracefully.
type DocumentRetrieval struct {
	source KnowledgeSource
}

// NewDocumentRetrieval creates the service. source may be nil.
func NewDocumentRetrieval(source KnowledgeSource) *DocumentRetrieval {
	return &DocumentRetrieval{source: source}
}

func (s *DocumentRetrieval) Name() string { return "DocumentRetrievalService" }
func (s *DocumentRetrieval) Description() string {
	return "Retrieve relevant documents from knowledge base"
}
func (s *DocumentRetrieval) Type() Type { return TypeDocumentRetrieval }

func (s *DocumentRetrieval) Process(ctx context.Context, req *Request) *Response {
	if s.source == nil {
		return Failure(s.Name(), "knowledge source not configured")
	}

	maxDocs := req.IntParam("max_docs", 5)
	useHybrid := req.BoolParam("use_hybrid", true)

	result, err := s.source.QueryKnowledge(ctx, req.Query, useHybrid, maxDocs)
	if err != nil {
		return Failure(s.Name(), fmt.Sprintf("document retrieval failed: %v", err))
	}
	content, err := s.source.GetContextForQuery(ctx, req.Query)
	if err != nil {
		return Failure(s.Name(), fmt.Sprintf("document retrieval failed: %v", err))
	}

	return &Response{
		Content: content,
		Metadata: map[string]any{
			"service":         s.Name(),
			"query":           req.Query,
			"documents_found": result.TotalFound,
			"retrieval_time":  result.RetrievalTime,
		},
		Success: true,
	}
}

func (s *DocumentRetrieval) Capabilities() map[string]any {
	return map[string]any{
		"parameters": map[string]any{
			"max_docs": map[string]any{
				"type":        "integer",
				"default":     5,
				"description": "Maximum number of documents to retrieve",
			},
			"use_hybrid": map[string]any{
				"type":        "boolean",
				"default":     true,
				"description": "Use hybrid retrieval strategy",
			},
		},
		"supported_queries": []string{"knowledge base questions", "document content", "specific information"},
	}
}
