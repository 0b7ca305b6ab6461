// Package chain implements the retrieval-and-inference chain: semantic
// search over stored memory, prompt augmentation and generation.
package chain

import (
	"context"
	"errors"
	"fmt"

	"github.com/HarrySoteriou/gallery/internal/llm"
	"github.com/HarrySoteriou/gallery/internal/model"
	"github.com/HarrySoteriou/gallery/internal/prompt"
	"github.com/HarrySoteriou/gallery/internal/store"
)

// Searcher is the part of the semantic memory the chain reads from.
type Searcher interface {
	Search(ctx context.Context, p store.SearchParams) ([]model.Match, error)
}

// Generator is the language model session the chain writes through.
type Generator interface {
	Generate(ctx context.Context, prompt string, onPartial llm.PartialFunc) (string, error)
}

// Config tunes retrieval.
type Config struct {
	NumDocuments  int
	MinSimilarity float64
}

type Request struct {
	Prompt string
}

type Response struct {
	Text string
	// Context holds the retrieved chunks spliced into the prompt.
	Context []model.Match
}

type Chain struct {
	memory Searcher
	gen    Generator
	cfg    Config
}

func New(memory Searcher, gen Generator, cfg Config) (*Chain, error) {
	if memory == nil {
		return nil, errors.New("chain: semantic memory is required")
	}
	if gen == nil {
		return nil, errors.New("chain: generator is required")
	}
	if cfg.NumDocuments <= 0 {
		cfg.NumDocuments = store.DefaultTopK
	}
	return &Chain{memory: memory, gen: gen, cfg: cfg}, nil
}

// Invoke retrieves context for the request, augments the prompt and
// generates the answer, streaming partial text to progress.
func (c *Chain) Invoke(ctx context.Context, req Request, progress llm.PartialFunc) (*Response, error) {
	matches, err := c.memory.Search(ctx, store.SearchParams{
		Query:         req.Prompt,
		TopK:          c.cfg.NumDocuments,
		MinSimilarity: c.cfg.MinSimilarity,
	})
	if err != nil {
		return nil, fmt.Errorf("chain: retrieve: %w", err)
	}
	text, err := c.gen.Generate(ctx, prompt.Augment(req.Prompt, model.Texts(matches)), progress)
	if err != nil {
		return nil, fmt.Errorf("chain: %w", err)
	}
	return &Response{Text: text, Context: matches}, nil
}
