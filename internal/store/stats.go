package store

import (
	"context"
	"os"
)

// Stats holds semantic memory statistics.
type Stats struct {
	DBPath      string `json:"db_path"`
	DBSizeBytes int64  `json:"db_size_bytes,omitempty"`
	Documents   int    `json:"documents"`
	Chunks      int    `json:"chunks"`
	Dims        int    `json:"dims"`
}

// Stats returns database statistics.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{DBPath: s.path}

	if s.path != InMemory {
		if info, err := os.Stat(s.path); err == nil {
			st.DBSizeBytes = info.Size()
		}
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&st.Documents); err != nil {
		return st, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&st.Chunks); err != nil {
		return st, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(dims), 0) FROM chunks`).Scan(&st.Dims); err != nil {
		return st, err
	}
	return st, nil
}
