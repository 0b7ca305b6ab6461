// Package memstore is the in-process keyword-overlap memory used when the
// embedding-backed retrieval chain is unavailable.
package memstore

import (
	"context"
	"crypto/rand"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"

	"github.com/HarrySoteriou/gallery/internal/model"
)

// DefaultMaxChunks is the number of chunks Retrieve returns when the caller
// does not ask for a specific count.
const DefaultMaxChunks = 3

// minKeywordLen is exclusive: keywords must be longer than this.
const minKeywordLen = 2

type document struct {
	key       string
	createdAt time.Time
	chunks    []string
}

// Store maps document keys to the ordered chunks memorized under them.
// It is owned by a single session and safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	docs    []document
	entropy *ulid.MonotonicEntropy
	now     func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		entropy: ulid.Monotonic(rand.Reader, 0),
		now:     time.Now,
	}
}

// Memorize stores a batch of chunks under a fresh document key and returns
// the key. Blank chunks are dropped; a batch with nothing left is a no-op
// and returns an empty key. The batch becomes visible atomically.
func (s *Store) Memorize(ctx context.Context, chunks []string) (string, error) {
	kept := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if c = strings.TrimSpace(c); c != "" {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		return "", nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	now := s.now()
	id, err := ulid.New(ulid.Timestamp(now), s.entropy)
	if err != nil {
		return "", err
	}
	s.docs = append(s.docs, document{key: id.String(), createdAt: now, chunks: kept})
	return id.String(), nil
}

// Retrieve returns the text of up to maxChunks chunks ranked by keyword
// overlap with query. Chunks that share no keyword are never returned.
func (s *Store) Retrieve(query string, maxChunks int) []string {
	return model.Texts(s.Search(query, maxChunks))
}

// Search ranks every stored chunk against the query keywords. Ties keep
// insertion order: older documents first, then chunk position.
func (s *Store) Search(query string, maxChunks int) []model.Match {
	if maxChunks <= 0 {
		maxChunks = DefaultMaxChunks
	}
	keywords := Keywords(query)
	if len(keywords) == 0 {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	var matches []model.Match
	for _, d := range s.docs {
		for seq, text := range d.chunks {
			score := Score(keywords, text)
			if score == 0 {
				continue
			}
			matches = append(matches, model.Match{
				Chunk: model.Chunk{DocumentKey: d.key, Seq: seq, Text: text},
				Score: float64(score),
			})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > maxChunks {
		matches = matches[:maxChunks]
	}
	return matches
}

// Clear discards every stored document.
func (s *Store) Clear() {
	s.mu.Lock()
	s.docs = nil
	s.mu.Unlock()
}

// Documents returns a snapshot of the stored documents in insertion order.
func (s *Store) Documents() []model.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Document, len(s.docs))
	for i, d := range s.docs {
		out[i] = model.Document{Key: d.key, CreatedAt: d.createdAt, ChunkCount: len(d.chunks)}
	}
	return out
}

// Keywords lowercases query, splits it on whitespace and keeps the distinct
// tokens longer than two characters, in first-seen order.
func Keywords(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if utf8.RuneCountInString(f) <= minKeywordLen {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// Score counts the keywords that occur as substrings of text, ignoring case.
// keywords are expected to be lowercase, as returned by Keywords.
func Score(keywords []string, text string) int {
	lower := strings.ToLower(text)
	n := 0
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			n++
		}
	}
	return n
}
