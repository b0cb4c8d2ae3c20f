package types

import "time"

// Entity is a named node in the relationship graph. The name acts as the
// primary key: creating an entity under an existing name overwrites the
// stored entity wholesale (last-write-wins), including its observations.
type Entity struct {
	Name         string    `json:"name"`                   // Primary key
	Type         string    `json:"type"`                   // Free-form classification (person, app, memory, ...)
	Observations []string  `json:"observations,omitempty"` // Attached observation strings, in insertion order
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Relation is a directed, typed edge between two entities identified by
// name. Duplicate (from, to, type) triples are permitted; the graph never
// de-duplicates edges.
type Relation struct {
	From      string    `json:"from"`
	To        string    `json:"to"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

// EdgeDirection tells a caller of RelatedEntities how the matched edge was
// oriented relative to the queried entity.
type EdgeDirection string

const (
	// DirectionOutbound means the queried entity is the edge source.
	DirectionOutbound EdgeDirection = "outbound"

	// DirectionInbound means the queried entity is the edge target.
	DirectionInbound EdgeDirection = "inbound"
)

// RelatedEntity pairs an entity with the relation that connected it to the
// queried entity and the direction in which the edge matched.
type RelatedEntity struct {
	Entity       Entity        `json:"entity"`
	RelationType string        `json:"relation_type"`
	Direction    EdgeDirection `json:"direction"`
}
