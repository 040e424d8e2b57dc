package rag

import (
	"context"
	"strings"
	"testing"

	"github.com/nidhogg/cogito/internal/embedding"
	"github.com/nidhogg/cogito/internal/vectorstore"
	"go.uber.org/zap"
)

func newTestOrchestrator(t *testing.T, maxChars int) (*Orchestrator, *vectorstore.MemoryStore) {
	t.Helper()
	embedder := embedding.NewLocalProvider(64)
	store := vectorstore.NewMemoryStore(embedder)
	retriever := NewRetriever(store, 1000, 200, 5)
	return NewOrchestrator(store, retriever, nil, maxChars, zap.NewNop()), store
}

func TestAddKnowledgeStampsMetadata(t *testing.T) {
	ctx := context.Background()
	o, _ := newTestOrchestrator(t, 4000)

	err := o.AddKnowledge(ctx, "Go maps are not safe for concurrent writes.", "docs", map[string]string{"topic": "maps"})
	if err != nil {
		t.Fatalf("AddKnowledge: %v", err)
	}

	result, err := o.QueryKnowledge(ctx, "concurrent map writes", false, 1)
	if err != nil {
		t.Fatalf("QueryKnowledge: %v", err)
	}
	if len(result.Documents) != 1 {
		t.Fatalf("expected 1 document, got %d", len(result.Documents))
	}
	m := result.Documents[0].Metadata
	if m["source"] != "docs" {
		t.Errorf("source = %q, want %q", m["source"], "docs")
	}
	if m["added_at"] == "" {
		t.Error("added_at stamp missing")
	}
	if m["topic"] != "maps" {
		t.Errorf("caller metadata dropped: %+v", m)
	}
}

func TestAddKnowledgeDefaultSource(t *testing.T) {
	ctx := context.Background()
	o, _ := newTestOrchestrator(t, 4000)

	if err := o.AddKnowledge(ctx, "Select statements choose among channel operations.", "", nil); err != nil {
		t.Fatalf("AddKnowledge: %v", err)
	}
	stats := o.KnowledgeStats(ctx)
	if len(stats.Sources) != 1 || stats.Sources[0] != "manual" {
		t.Errorf("expected default source %q, got %v", "manual", stats.Sources)
	}
}

func TestGetContextForQueryFormat(t *testing.T) {
	ctx := context.Background()
	o, _ := newTestOrchestrator(t, 4000)

	if err := o.AddKnowledge(ctx, "Goroutines are multiplexed onto OS threads.", "runtime-guide", nil); err != nil {
		t.Fatalf("AddKnowledge: %v", err)
	}
	if err := o.AddKnowledge(ctx, "Channels synchronize goroutines through communication.", "concurrency-guide", nil); err != nil {
		t.Fatalf("AddKnowledge: %v", err)
	}

	out, err := o.GetContextForQuery(ctx, "goroutines channels")
	if err != nil {
		t.Fatalf("GetContextForQuery: %v", err)
	}
	if !strings.Contains(out, "Source: runtime-guide") || !strings.Contains(out, "Source: concurrency-guide") {
		t.Errorf("source headers missing:\n%s", out)
	}
	if !strings.Contains(out, "\n---\n") {
		t.Errorf("blocks not separated:\n%s", out)
	}
}

func TestGetContextForQueryBudget(t *testing.T) {
	ctx := context.Background()
	o, _ := newTestOrchestrator(t, 120)

	long := strings.Repeat("Buffered channels decouple senders from receivers. ", 10)
	if err := o.AddKnowledge(ctx, "Channels carry typed values between goroutines.", "short", nil); err != nil {
		t.Fatalf("AddKnowledge: %v", err)
	}
	if err := o.AddKnowledge(ctx, long, "long", nil); err != nil {
		t.Fatalf("AddKnowledge: %v", err)
	}

	out, err := o.GetContextForQuery(ctx, "channels goroutines senders receivers")
	if err != nil {
		t.Fatalf("GetContextForQuery: %v", err)
	}
	if len(out) > 120 {
		t.Errorf("context exceeds budget: %d chars", len(out))
	}
}

func TestGetContextForQueryEmptyStore(t *testing.T) {
	ctx := context.Background()
	o, _ := newTestOrchestrator(t, 4000)

	out, err := o.GetContextForQuery(ctx, "anything at all")
	if err != nil {
		t.Fatalf("GetContextForQuery: %v", err)
	}
	if out != "" {
		t.Errorf("expected empty context, got %q", out)
	}
}

func TestKnowledgeStats(t *testing.T) {
	ctx := context.Background()
	o, _ := newTestOrchestrator(t, 4000)

	if err := o.AddKnowledge(ctx, "first entry", "api", nil); err != nil {
		t.Fatalf("AddKnowledge: %v", err)
	}
	if err := o.AddKnowledge(ctx, "second entry", "manual", nil); err != nil {
		t.Fatalf("AddKnowledge: %v", err)
	}
	if err := o.AddKnowledge(ctx, "third entry", "api", nil); err != nil {
		t.Fatalf("AddKnowledge: %v", err)
	}

	stats := o.KnowledgeStats(ctx)
	if stats.TotalDocuments != 3 {
		t.Errorf("TotalDocuments = %d, want 3", stats.TotalDocuments)
	}
	if len(stats.Sources) != 2 || stats.Sources[0] != "api" || stats.Sources[1] != "manual" {
		t.Errorf("Sources = %v, want [api manual]", stats.Sources)
	}
	if stats.VectorStoreType != "memory" {
		t.Errorf("VectorStoreType = %q, want %q", stats.VectorStoreType, "memory")
	}
}
