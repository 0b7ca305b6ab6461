// Package embedding provides a pluggable interface for text embedding providers.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"sync"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Vector is a float32 embedding vector.
type Vector = []float32

// ErrDisabled is returned by NewFromConfig when no provider is configured.
var ErrDisabled = errors.New("embedding: no provider configured")

// Embedder generates embedding vectors from text.
type Embedder interface {
	Embed(ctx context.Context, d EmbedData) (Vector, error)
	EmbedBatch(ctx context.Context, items []EmbedData) ([]Vector, error)
	Dims() int
}

// CosineSimilarity computes cosine similarity between two vectors.
func CosineSimilarity(a, b Vector) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Provider adapts a langchaingo embedder, formatting inputs per task first.
type Provider struct {
	name string
	impl embeddings.Embedder

	mu   sync.Mutex
	dims int
}

// Wrap builds a Provider around an existing langchaingo embedder. dims may be
// zero, in which case it is learned from the first vector produced.
func Wrap(name string, impl embeddings.Embedder, dims int) (*Provider, error) {
	if impl == nil {
		return nil, fmt.Errorf("embedder %q: implementation is required", name)
	}
	return &Provider{name: name, impl: impl, dims: dims}, nil
}

func (p *Provider) Dims() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dims
}

func (p *Provider) Embed(ctx context.Context, d EmbedData) (Vector, error) {
	if d.queryForm() {
		v, err := p.impl.EmbedQuery(ctx, FormatInput(d))
		if err != nil {
			return nil, fmt.Errorf("embedder %q: embed query: %w", p.name, err)
		}
		return p.observe(v)
	}
	vs, err := p.EmbedBatch(ctx, []EmbedData{d})
	if err != nil {
		return nil, err
	}
	return vs[0], nil
}

func (p *Provider) EmbedBatch(ctx context.Context, items []EmbedData) ([]Vector, error) {
	if len(items) == 0 {
		return nil, nil
	}
	texts := make([]string, len(items))
	for i, it := range items {
		texts[i] = FormatInput(it)
	}
	vs, err := p.impl.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedder %q: embed documents: %w", p.name, err)
	}
	if len(vs) != len(items) {
		return nil, fmt.Errorf("embedder %q: got %d vectors for %d inputs", p.name, len(vs), len(items))
	}
	for _, v := range vs {
		if _, err := p.observe(v); err != nil {
			return nil, err
		}
	}
	return vs, nil
}

// observe records the dimension of the first vector and rejects vectors
// that disagree with it.
func (p *Provider) observe(v Vector) (Vector, error) {
	if len(v) == 0 {
		return nil, fmt.Errorf("embedder %q: empty vector", p.name)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dims == 0 {
		p.dims = len(v)
	}
	if len(v) != p.dims {
		return nil, fmt.Errorf("embedder %q: vector has %d dims, want %d", p.name, len(v), p.dims)
	}
	return v, nil
}

// --- Factory ---

// Config selects and configures an embedding provider.
type Config struct {
	// Provider is "ollama", "openai" or empty (disabled).
	Provider  string
	Model     string
	ServerURL string
	APIKey    string
	Dims      int
	BatchSize int
	CacheSize int
}

// NewFromConfig constructs the configured embedder. An empty provider
// returns ErrDisabled; callers treat any error as "embedder unavailable".
func NewFromConfig(cfg Config) (Embedder, error) {
	var client embeddings.EmbedderClient
	switch cfg.Provider {
	case "":
		return nil, ErrDisabled
	case "ollama":
		model := cfg.Model
		if model == "" {
			model = "nomic-embed-text"
		}
		opts := []ollama.Option{ollama.WithModel(model)}
		if cfg.ServerURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.ServerURL))
		} else if host := os.Getenv("OLLAMA_HOST"); host != "" {
			opts = append(opts, ollama.WithServerURL(host))
		}
		llm, err := ollama.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("ollama embedder: %w", err)
		}
		client = llm
	case "openai":
		model := cfg.Model
		if model == "" {
			model = "text-embedding-3-small"
		}
		opts := []openai.Option{openai.WithEmbeddingModel(model)}
		if cfg.APIKey != "" {
			opts = append(opts, openai.WithToken(cfg.APIKey))
		}
		if cfg.ServerURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.ServerURL))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("openai embedder: %w", err)
		}
		client = llm
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
	return newFromClient(cfg, client)
}

func newFromClient(cfg Config, client embeddings.EmbedderClient) (Embedder, error) {
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 32
	}
	impl, err := embeddings.NewEmbedder(client,
		embeddings.WithBatchSize(batch),
		embeddings.WithStripNewLines(true),
	)
	if err != nil {
		return nil, fmt.Errorf("%s embedder: %w", cfg.Provider, err)
	}
	p, err := Wrap(cfg.Provider, impl, cfg.Dims)
	if err != nil {
		return nil, err
	}
	if cfg.CacheSize > 0 {
		return NewCached(p, cfg.CacheSize)
	}
	return p, nil
}
