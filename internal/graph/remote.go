package graph

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/jinruoxinchen/one-unlimit-os/pkg/types"
)

// PostgresTier mirrors the graph into Postgres. It implements RemoteTier:
// the local graph stays authoritative and every call here is best-effort.
type PostgresTier struct {
	db *sql.DB
}

// NewPostgresTier opens a connection pool to the given DSN and ensures the
// schema exists.
func NewPostgresTier(dsn string) (*PostgresTier, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("graph: open remote tier: %w", err)
	}

	t := &PostgresTier{db: db}
	if err := t.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return t, nil
}

func (t *PostgresTier) ensureSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS graph_entities (
			name         TEXT PRIMARY KEY,
			entity_type  TEXT NOT NULL DEFAULT '',
			observations TEXT[] NOT NULL DEFAULT '{}',
			created_at   TIMESTAMPTZ NOT NULL,
			updated_at   TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS graph_relations (
			id            BIGSERIAL PRIMARY KEY,
			from_entity   TEXT NOT NULL,
			to_entity     TEXT NOT NULL,
			relation_type TEXT NOT NULL,
			created_at    TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_graph_relations_from ON graph_relations(from_entity);
		CREATE INDEX IF NOT EXISTS idx_graph_relations_to ON graph_relations(to_entity);
	`
	if _, err := t.db.Exec(schema); err != nil {
		return fmt.Errorf("graph: ensure remote schema: %w", err)
	}
	return nil
}

// UpsertEntity mirrors an entity, overwriting any previous row for the name.
func (t *PostgresTier) UpsertEntity(ctx context.Context, entity types.Entity) error {
	query := `
		INSERT INTO graph_entities (name, entity_type, observations, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (name) DO UPDATE SET
			entity_type  = excluded.entity_type,
			observations = excluded.observations,
			updated_at   = excluded.updated_at
	`
	_, err := t.db.ExecContext(ctx, query,
		entity.Name, entity.Type, pq.Array(entity.Observations), entity.CreatedAt, entity.UpdatedAt)
	if err != nil {
		return fmt.Errorf("graph: upsert remote entity: %w", err)
	}
	return nil
}

// InsertRelation mirrors an edge. Duplicates are allowed, matching the
// local tier's append-only semantics.
func (t *PostgresTier) InsertRelation(ctx context.Context, rel types.Relation) error {
	query := `
		INSERT INTO graph_relations (from_entity, to_entity, relation_type, created_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := t.db.ExecContext(ctx, query, rel.From, rel.To, rel.Type, rel.CreatedAt)
	if err != nil {
		return fmt.Errorf("graph: insert remote relation: %w", err)
	}
	return nil
}

// DeleteEntity removes an entity row and every edge incident to it.
func (t *PostgresTier) DeleteEntity(ctx context.Context, name string) error {
	if _, err := t.db.ExecContext(ctx,
		`DELETE FROM graph_relations WHERE from_entity = $1 OR to_entity = $1`, name); err != nil {
		return fmt.Errorf("graph: delete remote relations: %w", err)
	}
	if _, err := t.db.ExecContext(ctx,
		`DELETE FROM graph_entities WHERE name = $1`, name); err != nil {
		return fmt.Errorf("graph: delete remote entity: %w", err)
	}
	return nil
}

// Clear truncates both remote tables.
func (t *PostgresTier) Clear(ctx context.Context) error {
	if _, err := t.db.ExecContext(ctx, `TRUNCATE graph_relations, graph_entities`); err != nil {
		return fmt.Errorf("graph: clear remote tier: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (t *PostgresTier) Close() error {
	return t.db.Close()
}
