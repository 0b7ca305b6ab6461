package embedding

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cached memoizes vectors by formatted input in an LRU cache.
type Cached struct {
	next  Embedder
	cache *lru.Cache[string, Vector]
}

// NewCached wraps next with an LRU cache holding up to size vectors.
func NewCached(next Embedder, size int) (*Cached, error) {
	if size <= 0 {
		return nil, fmt.Errorf("embedding cache: size must be greater than zero")
	}
	cache, err := lru.New[string, Vector](size)
	if err != nil {
		return nil, fmt.Errorf("embedding cache: %w", err)
	}
	return &Cached{next: next, cache: cache}, nil
}

func (c *Cached) Dims() int { return c.next.Dims() }

func (c *Cached) Embed(ctx context.Context, d EmbedData) (Vector, error) {
	key := cacheKey(d)
	if v, ok := c.cache.Get(key); ok {
		return v, nil
	}
	v, err := c.next.Embed(ctx, d)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, v)
	return v, nil
}

func (c *Cached) EmbedBatch(ctx context.Context, items []EmbedData) ([]Vector, error) {
	out := make([]Vector, len(items))
	var (
		missing   []EmbedData
		missingAt []int
	)
	for i, it := range items {
		if v, ok := c.cache.Get(cacheKey(it)); ok {
			out[i] = v
			continue
		}
		missing = append(missing, it)
		missingAt = append(missingAt, i)
	}
	if len(missing) == 0 {
		return out, nil
	}
	vs, err := c.next.EmbedBatch(ctx, missing)
	if err != nil {
		return nil, err
	}
	for j, v := range vs {
		out[missingAt[j]] = v
		c.cache.Add(cacheKey(missing[j]), v)
	}
	return out, nil
}

// cacheKey separates query and document forms of the same text.
func cacheKey(d EmbedData) string {
	if d.queryForm() {
		return "q\x00" + FormatInput(d)
	}
	return "d\x00" + FormatInput(d)
}
