// Package model defines the core memory data types.
package model

import "time"

// Document is the set of chunks produced by one memorization call.
// It is the unit of deletion; chunks are never removed individually.
type Document struct {
	Key        string    `json:"key"`
	CreatedAt  time.Time `json:"created_at"`
	ChunkCount int       `json:"chunks"`
}

// Chunk is a bounded-size piece of text, the atomic retrieval object.
type Chunk struct {
	ID          string `json:"id,omitempty"`
	DocumentKey string `json:"document_key"`
	Seq         int    `json:"seq"`
	Text        string `json:"text"`
}

// Match is a chunk ranked against a query.
type Match struct {
	Chunk
	Score float64 `json:"score"`
}

// Texts returns the text of each match, preserving order.
func Texts(matches []Match) []string {
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.Text)
	}
	return out
}
