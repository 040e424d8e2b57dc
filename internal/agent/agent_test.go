package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/nidhogg/cogito/internal/embedding"
	"github.com/nidhogg/cogito/internal/provider"
	"github.com/nidhogg/cogito/internal/rag"
	"github.com/nidhogg/cogito/internal/service"
	"github.com/nidhogg/cogito/internal/vectorstore"
	"go.uber.org/zap"
)

// fakeProvider replays scripted responses in call order. An empty script
// repeats the last response.
type fakeProvider struct {
	mu        sync.Mutex
	responses []string
	err       error
	calls     []*provider.GenerateRequest
}

func (f *fakeProvider) ID() string    { return "fake" }
func (f *fakeProvider) Name() string  { return "fake" }
func (f *fakeProvider) Model() string { return "fake-model" }

func (f *fakeProvider) Generate(_ context.Context, req *provider.GenerateRequest) (*provider.GenerateResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if f.err != nil {
		return nil, f.err
	}
	content := "ok"
	if len(f.responses) > 0 {
		content = f.responses[0]
		if len(f.responses) > 1 {
			f.responses = f.responses[1:]
		}
	}
	return &provider.GenerateResponse{Content: content}, nil
}

func (f *fakeProvider) GenerateStream(context.Context, *provider.GenerateRequest) (<-chan *provider.StreamChunk, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeProvider) HealthCheck(context.Context) error { return nil }

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// brokenService fails in-band on every request.
type brokenService struct{}

func (brokenService) Name() string                 { return "BrokenService" }
func (brokenService) Description() string          { return "always fails" }
func (brokenService) Type() service.Type           { return service.TypeWebSearch }
func (brokenService) Capabilities() map[string]any { return nil }
func (brokenService) Process(context.Context, *service.Request) *service.Response {
	return service.Failure("BrokenService", "backend exploded")
}

func newTestAgent(t *testing.T, responder, thinker provider.Provider) *ThinkingAgent {
	t.Helper()
	embedder := embedding.NewLocalProvider(64)
	store := vectorstore.NewMemoryStore(embedder)
	retriever := rag.NewRetriever(store, 1000, 200, 5)
	orch := rag.NewOrchestrator(store, retriever, nil, 4000, zap.NewNop())

	registry := service.NewRegistry()
	registry.RegisterDefaults()

	settings := Settings{ThinkingTemperature: 0.7, ResponseTemperature: 0.3, MaxTokens: 2000}
	return NewThinkingAgent(responder, thinker, orch, registry, settings, zap.NewNop())
}

func TestProcessQueryFourSteps(t *testing.T) {
	thinker := &fakeProvider{responses: []string{
		"plan: figure out the arithmetic",
		`{"use_rag": false, "services_to_use": ["MathSolverService"], "reasoning": "math query"}`,
		"synthesis: the calculation is complete",
	}}
	responder := &fakeProvider{responses: []string{"The answer is 40."}}
	a := newTestAgent(t, responder, thinker)

	resp, err := a.ProcessQuery(context.Background(), "What is 15 + 25?", nil)
	if err != nil {
		t.Fatalf("ProcessQuery: %v", err)
	}

	if len(resp.ThinkingSteps) != 4 {
		t.Fatalf("expected 4 thinking steps, got %d", len(resp.ThinkingSteps))
	}
	wantThoughts := []string{
		"Query Analysis and Planning",
		"Information Gathering",
		"Information Synthesis and Reasoning",
		"Final Response Generation",
	}
	for i, want := range wantThoughts {
		if resp.ThinkingSteps[i].Thought != want {
			t.Errorf("step %d thought = %q, want %q", i+1, resp.ThinkingSteps[i].Thought, want)
		}
		if resp.ThinkingSteps[i].StepNumber != i+1 {
			t.Errorf("step %d numbered %d", i+1, resp.ThinkingSteps[i].StepNumber)
		}
	}

	if resp.FinalAnswer != "The answer is 40." {
		t.Errorf("FinalAnswer = %q", resp.FinalAnswer)
	}
	if len(resp.ServicesUsed) != 1 || resp.ServicesUsed[0] != "MathSolverService" {
		t.Errorf("ServicesUsed = %v", resp.ServicesUsed)
	}
	if !resp.RAGContextUsed {
		t.Error("gathered service output should mark RAGContextUsed")
	}
	if resp.Metadata["model_used"] != "fake-model" {
		t.Errorf("metadata model_used = %v", resp.Metadata["model_used"])
	}
	if resp.TotalTime <= 0 {
		t.Errorf("TotalTime = %v, want > 0", resp.TotalTime)
	}

	history := a.History()
	if len(history) != 2 {
		t.Fatalf("history length = %d, want 2", len(history))
	}
	if history[0].Role != "user" || history[1].Role != "assistant" {
		t.Errorf("unexpected history roles: %+v", history)
	}
}

func TestProcessQueryDecisionCodeFence(t *testing.T) {
	thinker := &fakeProvider{responses: []string{
		"plan",
		"```json\n{\"use_rag\": false, \"services_to_use\": [\"WebSearchService\"], \"reasoning\": \"fenced\"}\n```",
		"synthesis",
	}}
	responder := &fakeProvider{responses: []string{"answer"}}
	a := newTestAgent(t, responder, thinker)

	resp, err := a.ProcessQuery(context.Background(), "search for something", nil)
	if err != nil {
		t.Fatalf("ProcessQuery: %v", err)
	}
	if len(resp.ServicesUsed) != 1 || resp.ServicesUsed[0] != "WebSearchService" {
		t.Errorf("fenced decision not honored: %v", resp.ServicesUsed)
	}
	if !strings.Contains(resp.ThinkingSteps[1].Reasoning, "Decision: fenced") {
		t.Errorf("decision reasoning missing: %q", resp.ThinkingSteps[1].Reasoning)
	}
}

func TestProcessQueryDecisionFallback(t *testing.T) {
	thinker := &fakeProvider{responses: []string{
		"plan",
		"this is not json at all",
		"synthesis",
	}}
	responder := &fakeProvider{responses: []string{"answer"}}
	a := newTestAgent(t, responder, thinker)

	if err := a.AddKnowledge(context.Background(), "Calculators add numbers.", "docs", nil); err != nil {
		t.Fatalf("AddKnowledge: %v", err)
	}

	resp, err := a.ProcessQuery(context.Background(), "calculate 2 + 2", nil)
	if err != nil {
		t.Fatalf("ProcessQuery: %v", err)
	}
	if !strings.Contains(resp.ThinkingSteps[1].Reasoning, "Fallback decision due to parsing error") {
		t.Errorf("fallback reasoning missing: %q", resp.ThinkingSteps[1].Reasoning)
	}
	// Fallback keeps RAG on and picks the top recommendation, which for an
	// arithmetic query is the math solver.
	if len(resp.ServicesUsed) != 1 || resp.ServicesUsed[0] != "MathSolverService" {
		t.Errorf("ServicesUsed = %v", resp.ServicesUsed)
	}
	if !resp.RAGContextUsed {
		t.Error("fallback should consult the knowledge base")
	}
}

func TestProcessQueryFailedServiceExcluded(t *testing.T) {
	thinker := &fakeProvider{responses: []string{
		"plan",
		`{"use_rag": false, "services_to_use": ["NoSuchService", "MathSolverService"], "reasoning": "mixed"}`,
		"synthesis",
	}}
	responder := &fakeProvider{responses: []string{"answer"}}
	a := newTestAgent(t, responder, thinker)

	resp, err := a.ProcessQuery(context.Background(), "compute 6 * 7", nil)
	if err != nil {
		t.Fatalf("ProcessQuery: %v", err)
	}
	if len(resp.ThinkingSteps) != 4 {
		t.Fatalf("pipeline should survive a failed service, got %d steps", len(resp.ThinkingSteps))
	}
	for _, name := range resp.ServicesUsed {
		if name == "NoSuchService" {
			t.Errorf("failed service listed as used: %v", resp.ServicesUsed)
		}
	}
	if len(resp.ServicesUsed) != 1 || resp.ServicesUsed[0] != "MathSolverService" {
		t.Errorf("ServicesUsed = %v", resp.ServicesUsed)
	}
	if !strings.Contains(resp.ThinkingSteps[1].Reasoning, "Service NoSuchService error:") {
		t.Errorf("missing error note for unknown service: %q", resp.ThinkingSteps[1].Reasoning)
	}
}

func TestProcessQueryFailedServiceAddsErrorNote(t *testing.T) {
	thinker := &fakeProvider{responses: []string{
		"plan",
		`{"use_rag": false, "services_to_use": ["BrokenService"], "reasoning": "try the backend"}`,
		"synthesis",
	}}
	responder := &fakeProvider{responses: []string{"answer"}}
	a := newTestAgent(t, responder, thinker)
	a.Services().Register(brokenService{})

	resp, err := a.ProcessQuery(context.Background(), "anything", nil)
	if err != nil {
		t.Fatalf("ProcessQuery: %v", err)
	}

	step := resp.ThinkingSteps[1]
	if !strings.Contains(step.Reasoning, "Service BrokenService error: backend exploded") {
		t.Errorf("gathered text missing error note: %q", step.Reasoning)
	}
	if step.ActionResult != "Retrieved 1 information sources" {
		t.Errorf("ActionResult = %q", step.ActionResult)
	}
	if len(resp.ServicesUsed) != 0 {
		t.Errorf("failed service listed as used: %v", resp.ServicesUsed)
	}
}

func TestProcessQueryGenerationFailurePropagates(t *testing.T) {
	thinker := &fakeProvider{err: errors.New("model overloaded")}
	responder := &fakeProvider{}
	a := newTestAgent(t, responder, thinker)

	_, err := a.ProcessQuery(context.Background(), "anything", nil)
	if err == nil {
		t.Fatal("expected error when thinking model fails")
	}
	if !strings.Contains(err.Error(), "planning") {
		t.Errorf("error not attributed to the failing step: %v", err)
	}
	if len(a.History()) != 0 {
		t.Error("failed query must not touch the conversation history")
	}
}

func TestProcessQueryResponderFailurePropagates(t *testing.T) {
	thinker := &fakeProvider{responses: []string{
		"plan",
		`{"use_rag": false, "services_to_use": [], "reasoning": "none"}`,
		"synthesis",
	}}
	responder := &fakeProvider{err: errors.New("rate limited")}
	a := newTestAgent(t, responder, thinker)

	_, err := a.ProcessQuery(context.Background(), "anything", nil)
	if err == nil {
		t.Fatal("expected error when response model fails")
	}
	if !strings.Contains(err.Error(), "final response") {
		t.Errorf("error not attributed to the failing step: %v", err)
	}
	if len(a.History()) != 0 {
		t.Error("failed query must not touch the conversation history")
	}
}

func TestRespondCarriesRecentHistory(t *testing.T) {
	thinker := &fakeProvider{responses: []string{
		"plan",
		`{"use_rag": false, "services_to_use": [], "reasoning": "none"}`,
		"synthesis",
	}}
	responder := &fakeProvider{responses: []string{"answer"}}
	a := newTestAgent(t, responder, thinker)

	a.SetHistory([]provider.Message{
		{Role: "user", Content: "one"},
		{Role: "assistant", Content: "two"},
		{Role: "user", Content: "three"},
		{Role: "assistant", Content: "four"},
		{Role: "user", Content: "five"},
		{Role: "assistant", Content: "six"},
	})

	if _, err := a.ProcessQuery(context.Background(), "next question", nil); err != nil {
		t.Fatalf("ProcessQuery: %v", err)
	}

	req := responder.calls[0]
	// Last four history messages, then system, then the final prompt.
	if len(req.Messages) != 6 {
		t.Fatalf("responder got %d messages, want 6", len(req.Messages))
	}
	if req.Messages[0].Content != "three" {
		t.Errorf("history window starts at %q, want %q", req.Messages[0].Content, "three")
	}
	if req.Messages[4].Role != "system" {
		t.Errorf("message 5 role = %q, want system", req.Messages[4].Role)
	}
}

func TestExplainReasoning(t *testing.T) {
	thinker := &fakeProvider{responses: []string{"planning analysis here"}}
	responder := &fakeProvider{}
	a := newTestAgent(t, responder, thinker)

	out, err := a.ExplainReasoning(context.Background(), "calculate 1 + 1")
	if err != nil {
		t.Fatalf("ExplainReasoning: %v", err)
	}
	if !strings.Contains(out, "planning analysis here") {
		t.Errorf("plan reasoning missing:\n%s", out)
	}
	if !strings.Contains(out, "MathSolverService") {
		t.Errorf("recommendations missing:\n%s", out)
	}
	if len(a.History()) != 0 {
		t.Error("ExplainReasoning must not touch the conversation history")
	}
	if got := responder.callCount(); got != 0 {
		t.Errorf("response model called %d times during explanation", got)
	}
}

func TestPreviewKeepsRunesIntact(t *testing.T) {
	s := strings.Repeat("é", 10)
	got := preview(s, 5)
	if !utf8.ValidString(got) {
		t.Fatalf("preview produced invalid UTF-8: %q", got)
	}
	if want := strings.Repeat("é", 2) + "..."; got != want {
		t.Errorf("preview = %q, want %q", got, want)
	}
	if got := preview("short", 10); got != "short" {
		t.Errorf("preview of short input = %q", got)
	}
}

func TestClearHistory(t *testing.T) {
	a := newTestAgent(t, &fakeProvider{}, &fakeProvider{})
	a.SetHistory([]provider.Message{{Role: "user", Content: "hello"}})

	a.ClearHistory()
	if len(a.History()) != 0 {
		t.Error("history not cleared")
	}
}
