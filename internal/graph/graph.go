// Package graph implements the relationship graph: named entities and typed
// directed relations derived from memory records. The graph is a two-tier
// store — a local authoritative map plus an optional remote sync tier — and
// callers only ever see the merged (local) view. Remote reachability
// failures are never surfaced.
package graph

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/jinruoxinchen/one-unlimit-os/internal/llm"
	"github.com/jinruoxinchen/one-unlimit-os/pkg/types"
)

// RemoteTier is the capability interface for an optional remote mirror of
// the graph. All writes to it are best-effort; the local tier remains
// authoritative regardless of remote health.
type RemoteTier interface {
	UpsertEntity(ctx context.Context, entity types.Entity) error
	InsertRelation(ctx context.Context, rel types.Relation) error
	DeleteEntity(ctx context.Context, name string) error
	Clear(ctx context.Context) error
	Close() error
}

// Graph stores entities keyed by name and an append-only list of relations.
// Entity creation under an existing name overwrites the stored entity
// wholesale (last-write-wins); duplicate relations are permitted and all
// returned on query.
type Graph struct {
	mu        sync.RWMutex
	entities  map[string]types.Entity
	relations []types.Relation

	remote        RemoteTier
	breaker       *llm.CircuitBreaker
	remoteTimeout time.Duration
}

// Option configures a Graph.
type Option func(*Graph)

// WithRemoteTier attaches a remote sync tier. Writes are mirrored
// best-effort behind a circuit breaker with the given per-call timeout.
func WithRemoteTier(remote RemoteTier, timeout time.Duration) Option {
	return func(g *Graph) {
		g.remote = remote
		if timeout > 0 {
			g.remoteTimeout = timeout
		}
	}
}

// New creates an empty graph.
func New(opts ...Option) *Graph {
	g := &Graph{
		entities:      make(map[string]types.Entity),
		breaker:       llm.NewCircuitBreaker(0, 0),
		remoteTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// CreateEntity inserts an entity or, when the name already exists,
// overwrites the stored entity including its observations.
func (g *Graph) CreateEntity(name, entityType string, observations []string) types.Entity {
	now := time.Now()
	entity := types.Entity{
		Name:         name,
		Type:         entityType,
		Observations: append([]string(nil), observations...),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	g.mu.Lock()
	g.entities[name] = entity
	g.mu.Unlock()

	g.mirror(func(ctx context.Context) error {
		return g.remote.UpsertEntity(ctx, entity)
	})
	return entity
}

// CreateRelation appends a directed edge. Duplicate (from, to, type) triples
// are allowed. Endpoints that do not exist yet are auto-created as untyped
// placeholder entities so related-entity lookups always resolve.
func (g *Graph) CreateRelation(from, to, relationType string) types.Relation {
	now := time.Now()
	rel := types.Relation{From: from, To: to, Type: relationType, CreatedAt: now}

	var created []types.Entity
	g.mu.Lock()
	for _, name := range []string{from, to} {
		if _, ok := g.entities[name]; !ok {
			placeholder := types.Entity{Name: name, CreatedAt: now, UpdatedAt: now}
			g.entities[name] = placeholder
			created = append(created, placeholder)
		}
	}
	g.relations = append(g.relations, rel)
	g.mu.Unlock()

	g.mirror(func(ctx context.Context) error {
		for _, entity := range created {
			if err := g.remote.UpsertEntity(ctx, entity); err != nil {
				return err
			}
		}
		return g.remote.InsertRelation(ctx, rel)
	})
	return rel
}

// Entity returns the stored entity for a name, reporting whether it exists.
func (g *Graph) Entity(name string) (types.Entity, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	entity, ok := g.entities[name]
	return entity, ok
}

// RelatedEntities returns the entities connected to name in either
// direction, each annotated with the matched relation type and whether the
// edge was inbound or outbound from the queried entity. When relationType is
// non-empty only edges of that type match.
func (g *Graph) RelatedEntities(name, relationType string) []types.RelatedEntity {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []types.RelatedEntity
	for _, rel := range g.relations {
		if relationType != "" && rel.Type != relationType {
			continue
		}

		var other string
		var direction types.EdgeDirection
		switch name {
		case rel.From:
			other, direction = rel.To, types.DirectionOutbound
		case rel.To:
			other, direction = rel.From, types.DirectionInbound
		default:
			continue
		}

		entity, ok := g.entities[other]
		if !ok {
			continue
		}
		out = append(out, types.RelatedEntity{
			Entity:       entity,
			RelationType: rel.Type,
			Direction:    direction,
		})
	}
	return out
}

// Search returns entities whose name or any observation string contains the
// query, case-insensitive.
func (g *Graph) Search(query string) []types.Entity {
	q := strings.ToLower(query)

	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []types.Entity
	for _, entity := range g.entities {
		if strings.Contains(strings.ToLower(entity.Name), q) {
			out = append(out, entity)
			continue
		}
		for _, obs := range entity.Observations {
			if strings.Contains(strings.ToLower(obs), q) {
				out = append(out, entity)
				break
			}
		}
	}
	return out
}

// RemoveEntity deletes an entity and every edge incident to it. Unknown
// names are a no-op.
func (g *Graph) RemoveEntity(name string) {
	g.mu.Lock()
	_, existed := g.entities[name]
	delete(g.entities, name)
	if existed {
		kept := g.relations[:0]
		for _, rel := range g.relations {
			if rel.From == name || rel.To == name {
				continue
			}
			kept = append(kept, rel)
		}
		g.relations = kept
	}
	g.mu.Unlock()

	if existed {
		g.mirror(func(ctx context.Context) error {
			return g.remote.DeleteEntity(ctx, name)
		})
	}
}

// EntityCount returns the number of stored entities.
func (g *Graph) EntityCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.entities)
}

// RelationCount returns the number of stored edges.
func (g *Graph) RelationCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.relations)
}

// Clear drops every entity and relation.
func (g *Graph) Clear() {
	g.mu.Lock()
	g.entities = make(map[string]types.Entity)
	g.relations = nil
	g.mu.Unlock()

	g.mirror(func(ctx context.Context) error {
		return g.remote.Clear(ctx)
	})
}

// Close releases the remote tier's resources. The local tier needs no
// teardown.
func (g *Graph) Close() error {
	if g.remote == nil {
		return nil
	}
	return g.remote.Close()
}

// mirror runs a remote-tier write asynchronously behind the circuit
// breaker. The local tier has already committed by the time this runs, so a
// remote failure only costs mirror freshness, never data.
func (g *Graph) mirror(fn func(ctx context.Context) error) {
	if g.remote == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), g.remoteTimeout)
		defer cancel()
		_, err := g.breaker.Do(ctx, func() (interface{}, error) {
			return nil, fn(ctx)
		})
		if err != nil {
			log.Printf("graph: remote sync failed (local tier remains authoritative): %v", err)
		}
	}()
}
