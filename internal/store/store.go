// Package store provides the vector-backed semantic memory and its SQLite implementation.
package store

import (
	"context"

	"github.com/HarrySoteriou/gallery/internal/model"
)

// DefaultTopK is the number of matches Search returns when TopK is unset.
const DefaultTopK = 3

// SearchParams holds parameters for a similarity search.
type SearchParams struct {
	Query string
	TopK  int
	// MinSimilarity drops matches whose cosine similarity is below it.
	MinSimilarity float64
}

// Memory defines the semantic memory interface.
type Memory interface {
	// RecordBatchedMemoryItems embeds and stores chunks as one document.
	// Either every chunk becomes visible or none does.
	RecordBatchedMemoryItems(ctx context.Context, chunks []string) (string, error)

	// Search returns the stored chunks most similar to the query.
	Search(ctx context.Context, p SearchParams) ([]model.Match, error)

	// Clear removes every stored document.
	Clear(ctx context.Context) error

	// Close closes the store.
	Close() error
}
