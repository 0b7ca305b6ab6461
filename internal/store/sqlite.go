package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/HarrySoteriou/gallery/internal/embedding"
	"github.com/HarrySoteriou/gallery/internal/model"
)

// InMemory is the path that keeps the database in process memory for the
// lifetime of the store.
const InMemory = ":memory:"

// SQLiteStore implements Memory using SQLite and brute-force cosine search.
type SQLiteStore struct {
	db       *sql.DB
	path     string
	embedder embedding.Embedder

	idMu    sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
// Use InMemory for a session-scoped store.
func NewSQLiteStore(dbPath string, emb embedding.Embedder) (*SQLiteStore, error) {
	if emb == nil {
		return nil, errors.New("semantic memory requires an embedder")
	}
	if dbPath == "" {
		dbPath = InMemory
	}

	dsn := dbPath
	if dbPath != InMemory {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
		dsn = dbPath + "?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if dbPath == InMemory {
		// every pooled connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
		if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable foreign keys: %w", err)
		}
	}

	s := &SQLiteStore{
		db:       db,
		path:     dbPath,
		embedder: emb,
		entropy:  ulid.Monotonic(rand.Reader, 0),
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) newID() string {
	s.idMu.Lock()
	defer s.idMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id          TEXT PRIMARY KEY,
		created_at  TEXT NOT NULL,
		chunk_count INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_documents_created ON documents(created_at);

	CREATE TABLE IF NOT EXISTS chunks (
		id          TEXT PRIMARY KEY,
		document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		seq         INTEGER NOT NULL,
		text        TEXT NOT NULL,
		dims        INTEGER NOT NULL,
		embedding   BLOB NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id, seq);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) RecordBatchedMemoryItems(ctx context.Context, chunks []string) (string, error) {
	kept := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if c = strings.TrimSpace(c); c != "" {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		return "", nil
	}

	items := make([]embedding.EmbedData, len(kept))
	for i, c := range kept {
		items[i] = embedding.Document(c)
	}
	vectors, err := s.embedder.EmbedBatch(ctx, items)
	if err != nil {
		return "", fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(kept) {
		return "", fmt.Errorf("embed chunks: got %d vectors for %d chunks", len(vectors), len(kept))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	docID := s.newID()
	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO documents (id, created_at, chunk_count) VALUES (?, ?, ?)`,
		docID, now.Format(time.RFC3339Nano), len(kept))
	if err != nil {
		return "", fmt.Errorf("insert document: %w", err)
	}

	for i, text := range kept {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO chunks (id, document_id, seq, text, dims, embedding)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			s.newID(), docID, i, text, len(vectors[i]), encodeVector(vectors[i]))
		if err != nil {
			return "", fmt.Errorf("insert chunk: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return docID, nil
}

func (s *SQLiteStore) Search(ctx context.Context, p SearchParams) ([]model.Match, error) {
	topK := p.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	if strings.TrimSpace(p.Query) == "" {
		return nil, nil
	}

	query, err := s.embedder.Embed(ctx, embedding.Query(p.Query))
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, c.document_id, c.seq, c.text, c.embedding
		 FROM chunks c JOIN documents d ON d.id = c.document_id
		 ORDER BY d.id, c.seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []model.Match
	for rows.Next() {
		var (
			m    model.Match
			blob []byte
		)
		if err := rows.Scan(&m.ID, &m.DocumentKey, &m.Seq, &m.Text, &blob); err != nil {
			return nil, err
		}
		score := embedding.CosineSimilarity(query, decodeVector(blob))
		if score <= 0 || score < p.MinSimilarity {
			continue
		}
		m.Score = score
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks`); err != nil {
		return fmt.Errorf("clear chunks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents`); err != nil {
		return fmt.Errorf("clear documents: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Path returns the database path the store was opened with.
func (s *SQLiteStore) Path() string {
	return s.path
}

func encodeVector(v embedding.Vector) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) embedding.Vector {
	v := make(embedding.Vector, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v
}
