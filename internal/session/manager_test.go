package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nidhogg/cogito/internal/agent"
	"github.com/nidhogg/cogito/internal/embedding"
	"github.com/nidhogg/cogito/internal/provider"
	"github.com/nidhogg/cogito/internal/rag"
	"github.com/nidhogg/cogito/internal/service"
	"github.com/nidhogg/cogito/internal/vectorstore"
	"go.uber.org/zap"
)

type scriptedProvider struct{}

func (scriptedProvider) ID() string    { return "scripted" }
func (scriptedProvider) Name() string  { return "scripted" }
func (scriptedProvider) Model() string { return "scripted-model" }

func (scriptedProvider) Generate(_ context.Context, req *provider.GenerateRequest) (*provider.GenerateResponse, error) {
	for _, msg := range req.Messages {
		if msg.Role == "system" && msg.Content == "You are an AI that decides information gathering strategies." {
			return &provider.GenerateResponse{
				Content: `{"use_rag": false, "services_to_use": [], "reasoning": "none"}`,
			}, nil
		}
	}
	return &provider.GenerateResponse{Content: "scripted output"}, nil
}

func (scriptedProvider) GenerateStream(context.Context, *provider.GenerateRequest) (<-chan *provider.StreamChunk, error) {
	return nil, errors.New("not implemented")
}

func (scriptedProvider) HealthCheck(context.Context) error { return nil }

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	embedder := embedding.NewLocalProvider(64)
	store := vectorstore.NewMemoryStore(embedder)
	retriever := rag.NewRetriever(store, 1000, 200, 5)
	orch := rag.NewOrchestrator(store, retriever, nil, 4000, zap.NewNop())

	registry := service.NewRegistry()
	registry.RegisterDefaults()

	factory := func() *agent.ThinkingAgent {
		return agent.NewThinkingAgent(scriptedProvider{}, scriptedProvider{}, orch, registry,
			agent.Settings{ThinkingTemperature: 0.7, ResponseTemperature: 0.3, MaxTokens: 2000},
			zap.NewNop())
	}
	return NewManager(factory, nil, time.Hour, zap.NewNop())
}

func TestProcessAllocatesSession(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	resp, id, err := m.Process(ctx, "", "hello", nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if id == "" {
		t.Fatal("expected an allocated session ID")
	}
	if resp.FinalAnswer != "scripted output" {
		t.Errorf("FinalAnswer = %q", resp.FinalAnswer)
	}
	if m.Sessions() != 1 {
		t.Errorf("Sessions() = %d, want 1", m.Sessions())
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	_, first, err := m.Process(ctx, "", "first question", nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	_, second, err := m.Process(ctx, "", "second question", nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if first == second {
		t.Fatal("expected distinct session IDs")
	}

	if got := len(m.History(ctx, first)); got != 2 {
		t.Errorf("first session history = %d messages, want 2", got)
	}
	if got := len(m.History(ctx, second)); got != 2 {
		t.Errorf("second session history = %d messages, want 2", got)
	}
}

func TestSessionContinuation(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	_, id, err := m.Process(ctx, "", "first", nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	_, again, err := m.Process(ctx, id, "second", nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if again != id {
		t.Fatalf("session ID changed across calls: %q vs %q", id, again)
	}
	if got := len(m.History(ctx, id)); got != 4 {
		t.Errorf("history = %d messages, want 4", got)
	}
	if m.Sessions() != 1 {
		t.Errorf("Sessions() = %d, want 1", m.Sessions())
	}
}

func TestClearHistory(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	_, id, err := m.Process(ctx, "", "hello", nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	m.ClearHistory(ctx, id)
	if got := len(m.History(ctx, id)); got != 0 {
		t.Errorf("history = %d messages after clear", got)
	}
}

func TestReadPathsDoNotAllocateSessions(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	if got := len(m.History(ctx, "")); got != 0 {
		t.Errorf("anonymous history = %d messages, want 0", got)
	}
	if got := len(m.History(ctx, "never-seen")); got != 0 {
		t.Errorf("unknown session history = %d messages, want 0", got)
	}
	m.ClearHistory(ctx, "")
	m.ClearHistory(ctx, "never-seen")

	if m.Sessions() != 0 {
		t.Errorf("Sessions() = %d after read-only calls, want 0", m.Sessions())
	}
}

func TestConcurrentQueriesSameSession(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	_, id, err := m.Process(ctx, "", "warmup", nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := m.Process(ctx, id, "concurrent question", nil); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent Process: %v", err)
	}

	// Warmup plus n serialized exchanges.
	if got := len(m.History(ctx, id)); got != 2*(n+1) {
		t.Errorf("history = %d messages, want %d", got, 2*(n+1))
	}
}

func TestExplain(t *testing.T) {
	m := newTestManager(t)

	out, id, err := m.Explain(context.Background(), "", "calculate 2 + 2")
	if err != nil {
		t.Fatalf("Explain: %v", err)
	}
	if id == "" {
		t.Fatal("expected an allocated session ID")
	}
	if out == "" {
		t.Fatal("expected an explanation")
	}
	if got := len(m.History(context.Background(), id)); got != 0 {
		t.Errorf("Explain touched history: %d messages", got)
	}
}
