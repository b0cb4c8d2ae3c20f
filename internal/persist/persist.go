// Package persist defines the injectable persistence hook for the otherwise
// volatile memory engine. The engine is in-memory by contract; a Snapshotter
// mirrors committed records to durable storage best-effort. Hook failures are
// logged and never surfaced — durability is an extension point, not a
// requirement.
package persist

import (
	"context"

	"github.com/jinruoxinchen/one-unlimit-os/pkg/types"
)

// Snapshotter receives record lifecycle events after the in-memory store has
// committed them. Implementations must tolerate being called concurrently.
type Snapshotter interface {
	// SaveRecord upserts a record, including its embedding when present.
	SaveRecord(ctx context.Context, rec types.MemoryRecord) error

	// DeleteRecord removes a record by ID. Unknown IDs are a no-op.
	DeleteRecord(ctx context.Context, id string) error

	// Close releases underlying resources.
	Close() error
}
