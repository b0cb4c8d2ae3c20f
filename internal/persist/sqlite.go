package persist

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/jinruoxinchen/one-unlimit-os/pkg/types"
)

// SQLiteSnapshotter mirrors memory records into a SQLite file. Embeddings
// are serialized as little-endian float64 BLOBs, tags as JSON text.
type SQLiteSnapshotter struct {
	db *sql.DB
}

// NewSQLiteSnapshotter opens (or creates) the database at path and ensures
// the schema exists.
func NewSQLiteSnapshotter(path string) (*SQLiteSnapshotter, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("persist: open sqlite: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS memory_records (
			id         TEXT PRIMARY KEY,
			agent_id   TEXT NOT NULL,
			content    TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			importance REAL NOT NULL,
			tags       TEXT NOT NULL DEFAULT '[]',
			embedding  BLOB
		);
		CREATE INDEX IF NOT EXISTS idx_memory_records_agent ON memory_records(agent_id);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("persist: ensure sqlite schema: %w", err)
	}

	return &SQLiteSnapshotter{db: db}, nil
}

// SaveRecord upserts a record row.
func (s *SQLiteSnapshotter) SaveRecord(ctx context.Context, rec types.MemoryRecord) error {
	tags, err := json.Marshal(rec.Tags)
	if err != nil {
		return fmt.Errorf("persist: marshal tags: %w", err)
	}

	var embedding []byte
	if rec.HasEmbedding() {
		embedding, err = serializeEmbedding(rec.Embedding)
		if err != nil {
			return fmt.Errorf("persist: serialize embedding: %w", err)
		}
	}

	query := `
		INSERT INTO memory_records (id, agent_id, content, created_at, importance, tags, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content    = excluded.content,
			importance = excluded.importance,
			tags       = excluded.tags,
			embedding  = excluded.embedding
	`
	_, err = s.db.ExecContext(ctx, query,
		rec.ID, rec.AgentID, rec.Content, rec.CreatedAt, rec.Importance, string(tags), embedding)
	if err != nil {
		return fmt.Errorf("persist: save record: %w", err)
	}
	return nil
}

// DeleteRecord removes a record row. Unknown IDs are a no-op.
func (s *SQLiteSnapshotter) DeleteRecord(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM memory_records WHERE id = ?`, id); err != nil {
		return fmt.Errorf("persist: delete record: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteSnapshotter) Close() error {
	return s.db.Close()
}

// serializeEmbedding encodes the vector as little-endian float64 bytes.
func serializeEmbedding(embedding []float64) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, embedding); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
