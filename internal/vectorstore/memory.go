package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/nidhogg/cogito/internal/embedding"
)

// MemoryStore is an in-process Store ranking by cosine similarity over the
// embedding provider's vectors. It backs dev configs and tests.
type MemoryStore struct {
	embedder embedding.Provider

	mu   sync.RWMutex
	docs []Document
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(embedder embedding.Provider) *MemoryStore {
	return &MemoryStore{embedder: embedder}
}

// Name reports the concrete store implementation.
func (s *MemoryStore) Name() string { return "memory" }

// AddDocuments embeds and appends the documents.
func (s *MemoryStore) AddDocuments(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}
	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed documents: %w", err)
	}
	if len(vectors) != len(docs) {
		return fmt.Errorf("embedding count mismatch: %d vectors for %d documents", len(vectors), len(docs))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, d := range docs {
		if d.ID == "" {
			d.ID = uuid.New().String()
		}
		d.Embedding = vectors[i]
		s.docs = append(s.docs, d)
	}
	return nil
}

// SimilaritySearch embeds the query and returns the top-K documents by
// cosine similarity.
func (s *MemoryStore) SimilaritySearch(ctx context.Context, query string, k int) ([]Document, error) {
	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, nil
	}
	qvec := vectors[0]

	s.mu.RLock()
	scored := make([]Document, len(s.docs))
	copy(scored, s.docs)
	s.mu.RUnlock()

	for i := range scored {
		scored[i].Score = cosine(qvec, scored[i].Embedding)
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

// DeleteDocuments removes documents by ID.
func (s *MemoryStore) DeleteDocuments(_ context.Context, ids []string) error {
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.docs[:0]
	for _, d := range s.docs {
		if !drop[d.ID] {
			kept = append(kept, d)
		}
	}
	s.docs = kept
	return nil
}

// Len reports the number of stored documents.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

func cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
