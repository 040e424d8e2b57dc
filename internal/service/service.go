package service

import "context"

// Type classifies what kind of work a service performs.
type Type string

const (
	TypeWebSearch         Type = "web_search"
	TypeDocumentRetrieval Type = "document_retrieval"
	TypeCodeAnalysis      Type = "code_analysis"
	TypeDataAnalysis      Type = "data_analysis"
	TypeMathSolver        Type = "math_solver"
	TypeTextSummarization Type = "text_summarization"
)

// Request carries a query to a service. Parameters tune service behavior
// and Context carries optional caller state.
type Request struct {
	Query      string         `json:"query"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Context    map[string]any `json:"context,omitempty"`
}

// IntParam reads an integer parameter, tolerating JSON float decoding.
func (r *Request) IntParam(key string, def int) int {
	if r.Parameters == nil {
		return def
	}
	switch v := r.Parameters[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return def
}

// BoolParam reads a boolean parameter.
func (r *Request) BoolParam(key string, def bool) bool {
	if r.Parameters == nil {
		return def
	}
	if v, ok := r.Parameters[key].(bool); ok {
		return v
	}
	return def
}

// StringParam reads a string parameter.
func (r *Request) StringParam(key, def string) string {
	if r.Parameters == nil {
		return def
	}
	if v, ok := r.Parameters[key].(string); ok {
		return v
	}
	return def
}

// Response is the outcome of one service invocation. Failures are carried
// in-band: Success is false and ErrorMessage explains why.
type Response struct {
	Content      string         `json:"content"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	Success      bool           `json:"success"`
	ErrorMessage string         `json:"error_message,omitempty"`
}

// Failure builds a failed Response with the given error message.
func Failure(serviceName, msg string) *Response {
	return &Response{
		Metadata:     map[string]any{"service": serviceName, "error": msg},
		Success:      false,
		ErrorMessage: msg,
	}
}

// Service is a capability the agent can invoke during information
// gathering. Implementations must be safe for concurrent use.
type Service interface {
	Name() string
	Description() string
	Type() Type
	Process(ctx context.Context, req *Request) *Response
	Capabilities() map[string]any
}
