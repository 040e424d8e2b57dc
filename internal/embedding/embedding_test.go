package embedding

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAPIProviderEmbed(t *testing.T) {
	// Mock OpenAI-compatible embedding server.
	mux := http.NewServeMux()
	mux.HandleFunc("/embeddings", func(w http.ResponseWriter, r *http.Request) {
		resp := apiResponse{
			Data: []apiEmbeddingData{
				{Embedding: []float32{0.1, 0.2, 0.3}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := NewAPIProvider(Config{
		Endpoint: srv.URL,
		Model:    "test-model",
	})

	vectors, err := p.Embed(context.Background(), []string{"hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vectors) != 1 {
		t.Fatalf("got %d vectors, want 1", len(vectors))
	}
	if len(vectors[0]) != 3 {
		t.Fatalf("got dimension %d, want 3", len(vectors[0]))
	}
	if p.Dimension() != 3 {
		t.Errorf("got dimension %d, want 3", p.Dimension())
	}
}

func TestAPIProviderEmbed_Empty(t *testing.T) {
	p := NewAPIProvider(Config{
		Endpoint:  "http://unused",
		Model:     "test-model",
		Dimension: 128,
	})

	vectors, err := p.Embed(context.Background(), []string{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vectors != nil {
		t.Errorf("expected nil for empty input, got %v", vectors)
	}
}

func TestLocalProviderDeterministic(t *testing.T) {
	p := NewLocalProvider(64)

	a, err := p.Embed(context.Background(), []string{"machine learning basics"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := p.Embed(context.Background(), []string{"machine learning basics"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := range a[0] {
		if a[0][i] != b[0][i] {
			t.Fatalf("embedding not deterministic at index %d", i)
		}
	}
}

func TestLocalProviderNormalized(t *testing.T) {
	p := NewLocalProvider(128)
	vecs, err := p.Embed(context.Background(), []string{"the quick brown fox"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var norm float64
	for _, v := range vecs[0] {
		norm += float64(v) * float64(v)
	}
	if math.Abs(norm-1.0) > 1e-5 {
		t.Errorf("norm = %v, want 1.0", norm)
	}
}

func TestLocalProviderSimilarity(t *testing.T) {
	p := NewLocalProvider(256)
	vecs, err := p.Embed(context.Background(), []string{
		"go concurrency patterns with channels",
		"concurrency patterns in go channels",
		"recipe for chocolate cake",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	related := dot(vecs[0], vecs[1])
	unrelated := dot(vecs[0], vecs[2])
	if related <= unrelated {
		t.Errorf("related similarity %v not above unrelated %v", related, unrelated)
	}
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func TestNewFactory(t *testing.T) {
	p, err := New(Config{Provider: "local", Dimension: 32})
	if err != nil {
		t.Fatalf("local: %v", err)
	}
	if p.Dimension() != 32 {
		t.Errorf("dimension = %d, want 32", p.Dimension())
	}

	if _, err := New(Config{Provider: "bogus"}); err == nil {
		t.Error("expected error for unknown embedding provider")
	}
}
