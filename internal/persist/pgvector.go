package persist

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/jinruoxinchen/one-unlimit-os/pkg/types"
)

// PgvectorSnapshotter mirrors memory records and their embeddings into
// Postgres with the pgvector extension. Like every Snapshotter it is a
// best-effort mirror, not the source of truth.
type PgvectorSnapshotter struct {
	db        *sql.DB
	dimension int
}

// NewPgvectorSnapshotter connects to the DSN and ensures the schema exists.
// dimension fixes the vector column width and must match the embedder.
func NewPgvectorSnapshotter(dsn string, dimension int) (*PgvectorSnapshotter, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("persist: vector dimension must be positive, got %d", dimension)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("persist: open postgres: %w", err)
	}

	s := &PgvectorSnapshotter{db: db, dimension: dimension}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PgvectorSnapshotter) ensureSchema() error {
	if _, err := s.db.Exec(`CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("persist: ensure pgvector extension: %w", err)
	}

	schema := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS memory_records (
			id         TEXT PRIMARY KEY,
			agent_id   TEXT NOT NULL,
			content    TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			importance DOUBLE PRECISION NOT NULL,
			tags       TEXT[] NOT NULL DEFAULT '{}',
			embedding  vector(%d)
		)`, s.dimension)
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("persist: ensure pgvector schema: %w", err)
	}
	return nil
}

// SaveRecord upserts a record row, including the embedding when present.
func (s *PgvectorSnapshotter) SaveRecord(ctx context.Context, rec types.MemoryRecord) error {
	var embedding interface{}
	if rec.HasEmbedding() && len(rec.Embedding) == s.dimension {
		vec := make([]float32, len(rec.Embedding))
		for i, v := range rec.Embedding {
			vec[i] = float32(v)
		}
		embedding = pgvector.NewVector(vec)
	}

	query := `
		INSERT INTO memory_records (id, agent_id, content, created_at, importance, tags, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			content    = excluded.content,
			importance = excluded.importance,
			tags       = excluded.tags,
			embedding  = excluded.embedding
	`
	_, err := s.db.ExecContext(ctx, query,
		rec.ID, rec.AgentID, rec.Content, rec.CreatedAt, rec.Importance,
		pq.Array(rec.Tags), embedding)
	if err != nil {
		return fmt.Errorf("persist: save record: %w", err)
	}
	return nil
}

// DeleteRecord removes a record row. Unknown IDs are a no-op.
func (s *PgvectorSnapshotter) DeleteRecord(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM memory_records WHERE id = $1`, id); err != nil {
		return fmt.Errorf("persist: delete record: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *PgvectorSnapshotter) Close() error {
	return s.db.Close()
}
