// Package embeddingtest provides deterministic embedders for tests.
package embeddingtest

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"sync"

	"github.com/HarrySoteriou/gallery/internal/embedding"
)

// HashEmbedder embeds text as a bag of hashed lowercase words, so texts
// sharing words have positive cosine similarity.
type HashEmbedder struct {
	Dim int

	mu    sync.Mutex
	Calls int
	// Err, when set, is returned by every call.
	Err error
}

// NewHash returns a HashEmbedder with dim buckets.
func NewHash(dim int) *HashEmbedder {
	return &HashEmbedder{Dim: dim}
}

func (h *HashEmbedder) Dims() int { return h.Dim }

func (h *HashEmbedder) Embed(ctx context.Context, d embedding.EmbedData) (embedding.Vector, error) {
	vs, err := h.EmbedBatch(ctx, []embedding.EmbedData{d})
	if err != nil {
		return nil, err
	}
	return vs[0], nil
}

func (h *HashEmbedder) EmbedBatch(ctx context.Context, items []embedding.EmbedData) ([]embedding.Vector, error) {
	h.mu.Lock()
	h.Calls++
	err := h.Err
	h.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if h.Dim <= 0 {
		return nil, errors.New("embeddingtest: dim must be positive")
	}
	out := make([]embedding.Vector, len(items))
	for i, it := range items {
		v := make(embedding.Vector, h.Dim)
		for _, w := range strings.Fields(strings.ToLower(it.Text)) {
			w = strings.Trim(w, ".,;:!?\"'()")
			if w == "" {
				continue
			}
			f := fnv.New32a()
			f.Write([]byte(w))
			v[int(f.Sum32()%uint32(h.Dim))]++
		}
		out[i] = v
	}
	return out, nil
}
