package store

import (
	"context"
	"fmt"
	"time"

	"github.com/HarrySoteriou/gallery/internal/model"
)

// ExportedDocument is a stored document with its chunks, without vectors.
type ExportedDocument struct {
	model.Document
	Chunks []model.Chunk `json:"items"`
}

// ExportAll returns every stored document in insertion order.
func (s *SQLiteStore) ExportAll(ctx context.Context) ([]ExportedDocument, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT d.id, d.created_at, d.chunk_count, c.id, c.seq, c.text
		 FROM documents d JOIN chunks c ON c.document_id = d.id
		 ORDER BY d.id, c.seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []ExportedDocument
	for rows.Next() {
		var (
			d         model.Document
			c         model.Chunk
			createdAt string
		)
		if err := rows.Scan(&d.Key, &createdAt, &d.ChunkCount, &c.ID, &c.Seq, &c.Text); err != nil {
			return nil, err
		}
		if d.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("document %s: created_at: %w", d.Key, err)
		}
		c.DocumentKey = d.Key
		if n := len(docs); n == 0 || docs[n-1].Key != d.Key {
			docs = append(docs, ExportedDocument{Document: d})
		}
		docs[len(docs)-1].Chunks = append(docs[len(docs)-1].Chunks, c)
	}
	return docs, rows.Err()
}

// Import records every exported document again, re-embedding its chunks.
func (s *SQLiteStore) Import(ctx context.Context, docs []ExportedDocument) (int, error) {
	imported := 0
	for _, d := range docs {
		texts := make([]string, len(d.Chunks))
		for i, c := range d.Chunks {
			texts[i] = c.Text
		}
		if _, err := s.RecordBatchedMemoryItems(ctx, texts); err != nil {
			return imported, err
		}
		imported++
	}
	return imported, nil
}
