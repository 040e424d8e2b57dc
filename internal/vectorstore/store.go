package vectorstore

import (
	"context"
	"fmt"

	"github.com/nidhogg/cogito/internal/embedding"
	"go.uber.org/zap"
)

// Document is a single retrievable unit of text. Documents are never mutated
// in place; replacement is delete plus re-add.
type Document struct {
	ID        string            `json:"id,omitempty"`
	Content   string            `json:"content"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Embedding []float32         `json:"embedding,omitempty"`
	Score     float32           `json:"score,omitempty"`
}

// Store is the knowledge store capability: chunked text with metadata,
// similarity search and deletion.
type Store interface {
	AddDocuments(ctx context.Context, docs []Document) error
	SimilaritySearch(ctx context.Context, query string, k int) ([]Document, error)
	DeleteDocuments(ctx context.Context, ids []string) error
	Name() string
}

// Config selects and parameterizes a Store backend.
type Config struct {
	Backend    string `json:"backend"` // "qdrant" or "memory"
	Collection string `json:"collection"`
	QdrantHost string `json:"qdrant_host"`
	QdrantPort int    `json:"qdrant_port"`
}

// New builds a Store keyed on cfg.Backend. Both backends embed queries and
// documents through the given embedding provider.
func New(ctx context.Context, cfg Config, embedder embedding.Provider, logger *zap.Logger) (Store, error) {
	switch cfg.Backend {
	case "qdrant":
		qs, err := NewQdrantStore(cfg, embedder, logger)
		if err != nil {
			return nil, err
		}
		if err := qs.Init(ctx); err != nil {
			return nil, err
		}
		return qs, nil
	case "memory", "":
		return NewMemoryStore(embedder), nil
	default:
		return nil, fmt.Errorf("unsupported vector store backend %q", cfg.Backend)
	}
}
