package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

const defaultLocalDimension = 384

// LocalProvider is a deterministic, network-free embedder built on feature
// hashing of word tokens. It gives stable nearest-neighbor behavior for
// lexically similar texts, which is enough for dev runs and tests; real
// deployments use the API or Ollama providers.
type LocalProvider struct {
	dimension int
}

// NewLocalProvider creates a hash-based embedder with the given dimension.
func NewLocalProvider(dimension int) *LocalProvider {
	if dimension <= 0 {
		dimension = defaultLocalDimension
	}
	return &LocalProvider{dimension: dimension}
}

// Embed hashes each token (and adjacent token bigrams) into a fixed-size
// vector and L2-normalizes the result.
func (p *LocalProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = p.embedOne(text)
	}
	return out, nil
}

func (p *LocalProvider) embedOne(text string) []float32 {
	vec := make([]float32, p.dimension)
	tokens := tokenize(text)
	for i, tok := range tokens {
		bump(vec, tok)
		if i+1 < len(tokens) {
			bump(vec, tok+" "+tokens[i+1])
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec
}

func bump(vec []float32, feature string) {
	h := fnv.New64a()
	h.Write([]byte(feature))
	sum := h.Sum64()
	idx := int(sum % uint64(len(vec)))
	// Sign from a spare hash bit keeps hash collisions from always adding up.
	if sum&(1<<63) != 0 {
		vec[idx]--
	} else {
		vec[idx]++
	}
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r > 127)
	})
}

// Dimension returns the fixed embedding vector dimension.
func (p *LocalProvider) Dimension() int {
	return p.dimension
}
