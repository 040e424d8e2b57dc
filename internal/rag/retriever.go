package rag

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/nidhogg/cogito/internal/vectorstore"
)

// RetrievalResult is the ranked outcome of one retrieval call.
type RetrievalResult struct {
	Documents     []vectorstore.Document `json:"documents"`
	Query         string                 `json:"query"`
	TotalFound    int                    `json:"total_found"`
	RetrievalTime float64                `json:"retrieval_time"`
}

// Retriever adds chunked text to a vector store and retrieves it with
// single-pass or multi-variant strategies.
type Retriever struct {
	store        vectorstore.Store
	chunkSize    int
	chunkOverlap int
	topK         int
}

// NewRetriever creates a Retriever over the given store.
func NewRetriever(store vectorstore.Store, chunkSize, chunkOverlap, topK int) *Retriever {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize / 5
	}
	if topK <= 0 {
		topK = 5
	}
	return &Retriever{
		store:        store,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		topK:         topK,
	}
}

// AddText chunks the text and stores each chunk as one document tagged with
// its index and the total chunk count.
func (r *Retriever) AddText(ctx context.Context, text string, metadata map[string]string) error {
	chunks := r.chunkText(text)
	docs := make([]vectorstore.Document, 0, len(chunks))
	for i, chunk := range chunks {
		m := make(map[string]string, len(metadata)+2)
		for k, v := range metadata {
			m[k] = v
		}
		m["chunk_index"] = strconv.Itoa(i)
		m["total_chunks"] = strconv.Itoa(len(chunks))
		docs = append(docs, vectorstore.Document{Content: chunk, Metadata: m})
	}
	if err := r.store.AddDocuments(ctx, docs); err != nil {
		return fmt.Errorf("add %d chunks: %w", len(docs), err)
	}
	return nil
}

// Retrieve runs a single similarity search and returns the store's ranking.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) (*RetrievalResult, error) {
	start := time.Now()
	if k <= 0 {
		k = r.topK
	}

	docs, err := r.store.SimilaritySearch(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}

	return &RetrievalResult{
		Documents:     docs,
		Query:         query,
		TotalFound:    len(docs),
		RetrievalTime: time.Since(start).Seconds(),
	}, nil
}

// HybridRetrieve searches with up to three query variations, deduplicates by
// normalized content and reranks by token overlap with the original query.
func (r *Retriever) HybridRetrieve(ctx context.Context, query string, k int) (*RetrievalResult, error) {
	start := time.Now()
	if k <= 0 {
		k = r.topK
	}

	var all []vectorstore.Document
	for _, q := range queryVariations(query) {
		docs, err := r.store.SimilaritySearch(ctx, q, k)
		if err != nil {
			return nil, fmt.Errorf("similarity search %q: %w", q, err)
		}
		all = append(all, docs...)
	}

	unique := dedupe(all)
	ranked := rerank(query, unique)
	if len(ranked) > k {
		ranked = ranked[:k]
	}

	return &RetrievalResult{
		Documents:     ranked,
		Query:         query,
		TotalFound:    len(ranked),
		RetrievalTime: time.Since(start).Seconds(),
	}, nil
}

// chunkText splits text into overlapping chunks, preferring sentence
// boundaries. The backward boundary search is bounded to half the chunk size
// so a chunk never shrinks below that.
func (r *Retriever) chunkText(text string) []string {
	if len(text) <= r.chunkSize {
		return []string{strings.TrimSpace(text)}
	}

	var chunks []string
	start := 0
	for start < len(text) {
		end := start + r.chunkSize
		if end < len(text) {
			floor := start + r.chunkSize/2
			if f := end - 200; f > floor {
				floor = f
			}
			for i := end; i > floor; i-- {
				c := text[i]
				if c == '.' || c == '!' || c == '?' {
					end = i + 1
					break
				}
				if c == '\n' {
					end = i
					break
				}
			}
		} else {
			end = len(text)
		}

		if chunk := strings.TrimSpace(text[start:end]); chunk != "" {
			chunks = append(chunks, chunk)
		}

		next := end - r.chunkOverlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

var questionWords = map[string]bool{
	"what": true, "how": true, "when": true,
	"where": true, "why": true, "who": true,
}

// queryVariations returns the original query plus question-form and
// keyword-only rewrites, capped at three.
func queryVariations(query string) []string {
	variations := []string{query}

	if !strings.HasSuffix(strings.TrimSpace(query), "?") {
		variations = append(variations,
			fmt.Sprintf("What is %s?", query),
			fmt.Sprintf("How does %s work?", query),
		)
	}

	var keywords []string
	for _, w := range strings.Fields(strings.ToLower(query)) {
		if len(w) > 3 && !questionWords[w] {
			keywords = append(keywords, w)
		}
	}
	if len(keywords) > 0 {
		variations = append(variations, strings.Join(keywords, " "))
	}

	if len(variations) > 3 {
		variations = variations[:3]
	}
	return variations
}

// dedupe removes documents whose normalized content was already seen,
// keeping first occurrences in order.
func dedupe(docs []vectorstore.Document) []vectorstore.Document {
	seen := make(map[string]bool, len(docs))
	unique := make([]vectorstore.Document, 0, len(docs))
	for _, d := range docs {
		key := strings.ToLower(strings.TrimSpace(d.Content))
		if seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, d)
	}
	return unique
}

// rerank sorts documents by word overlap with the query, descending. The
// sort is stable so ties keep their prior relative order.
func rerank(query string, docs []vectorstore.Document) []vectorstore.Document {
	queryWords := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(query)) {
		queryWords[w] = true
	}

	score := func(d vectorstore.Document) float64 {
		if len(queryWords) == 0 {
			return 0
		}
		overlap := 0
		seen := make(map[string]bool)
		for _, w := range strings.Fields(strings.ToLower(d.Content)) {
			if queryWords[w] && !seen[w] {
				overlap++
				seen[w] = true
			}
		}
		return float64(overlap) / float64(len(queryWords))
	}

	type scored struct {
		doc   vectorstore.Document
		score float64
	}
	pairs := make([]scored, len(docs))
	for i, d := range docs {
		pairs[i] = scored{doc: d, score: score(d)}
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		return pairs[i].score > pairs[j].score
	})

	out := make([]vectorstore.Document, len(pairs))
	for i, p := range pairs {
		out[i] = p.doc
	}
	return out
}
