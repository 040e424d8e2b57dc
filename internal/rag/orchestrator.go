package rag

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nidhogg/cogito/internal/store"
	"github.com/nidhogg/cogito/internal/vectorstore"
	"go.uber.org/zap"
)

// Orchestrator coordinates chunked ingestion, retrieval strategy selection
// and context formatting over a vector store. An optional Postgres ledger
// mirrors additions for durable statistics; retrieval never touches it.
type Orchestrator struct {
	store     vectorstore.Store
	retriever *Retriever
	ledger    *store.Ledger
	maxChars  int
	logger    *zap.Logger

	mu      sync.RWMutex
	added   []ledgerEntry
	sources map[string]bool
}

type ledgerEntry struct {
	content  string
	metadata map[string]string
}

// KnowledgeStats summarizes the knowledge base.
type KnowledgeStats struct {
	TotalDocuments  int      `json:"total_documents"`
	Sources         []string `json:"sources"`
	VectorStoreType string   `json:"vector_store_type"`
}

// NewOrchestrator creates an Orchestrator. ledger may be nil.
func NewOrchestrator(vs vectorstore.Store, retriever *Retriever, ledger *store.Ledger, maxContextChars int, logger *zap.Logger) *Orchestrator {
	if maxContextChars <= 0 {
		maxContextChars = 4000
	}
	return &Orchestrator{
		store:     vs,
		retriever: retriever,
		ledger:    ledger,
		maxChars:  maxContextChars,
		logger:    logger,
		sources:   make(map[string]bool),
	}
}

// AddKnowledge stamps metadata with the source and insertion time, ingests
// the content in chunks, and records the addition in the ledgers.
func (o *Orchestrator) AddKnowledge(ctx context.Context, content, source string, metadata map[string]string) error {
	if source == "" {
		source = "manual"
	}
	base := make(map[string]string, len(metadata)+2)
	for k, v := range metadata {
		base[k] = v
	}
	base["source"] = source
	base["added_at"] = time.Now().UTC().Format(time.RFC3339)

	if err := o.retriever.AddText(ctx, content, base); err != nil {
		return fmt.Errorf("add knowledge from %s: %w", source, err)
	}

	o.mu.Lock()
	o.added = append(o.added, ledgerEntry{content: content, metadata: base})
	o.sources[source] = true
	o.mu.Unlock()

	if o.ledger != nil {
		if _, err := o.ledger.Append(ctx, content, source, metadata); err != nil {
			// The durable ledger backs statistics only; ingestion already
			// succeeded, so log and continue.
			o.logger.Warn("ledger append failed", zap.String("source", source), zap.Error(err))
		}
	}
	return nil
}

// QueryKnowledge retrieves relevant documents, hybrid by default.
func (o *Orchestrator) QueryKnowledge(ctx context.Context, query string, useHybrid bool, k int) (*RetrievalResult, error) {
	if useHybrid {
		return o.retriever.HybridRetrieve(ctx, query, k)
	}
	return o.retriever.Retrieve(ctx, query, k)
}

// GetContextForQuery runs hybrid retrieval and greedily assembles
// "Source: …" blocks in ranked order. The first block that would push the
// total past the character budget is dropped along with everything after it.
func (o *Orchestrator) GetContextForQuery(ctx context.Context, query string) (string, error) {
	result, err := o.retriever.HybridRetrieve(ctx, query, 0)
	if err != nil {
		return "", err
	}

	const sep = "\n---\n"
	var blocks []string
	total := 0
	for _, doc := range result.Documents {
		src := doc.Metadata["source"]
		if src == "" {
			src = "unknown"
		}
		block := fmt.Sprintf("Source: %s\n%s\n", src, doc.Content)
		if total+len(block) > o.maxChars {
			break
		}
		blocks = append(blocks, block)
		total += len(block)
	}
	return strings.Join(blocks, sep), nil
}

// KnowledgeStats reports totals from the durable ledger when configured,
// falling back to the in-memory record.
func (o *Orchestrator) KnowledgeStats(ctx context.Context) KnowledgeStats {
	stats := KnowledgeStats{VectorStoreType: o.store.Name()}

	if o.ledger != nil {
		count, cerr := o.ledger.Count(ctx)
		sources, serr := o.ledger.DistinctSources(ctx)
		if cerr == nil && serr == nil {
			stats.TotalDocuments = count
			stats.Sources = sources
			return stats
		}
		o.logger.Warn("ledger stats unavailable, using in-memory record",
			zap.NamedError("count_err", cerr), zap.NamedError("sources_err", serr))
	}

	o.mu.RLock()
	defer o.mu.RUnlock()
	stats.TotalDocuments = len(o.added)
	stats.Sources = make([]string, 0, len(o.sources))
	for s := range o.sources {
		stats.Sources = append(stats.Sources, s)
	}
	sort.Strings(stats.Sources)
	return stats
}
