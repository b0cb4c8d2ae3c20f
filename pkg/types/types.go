// Package types defines the core data structures for the memory subsystem:
// memory records, observations, entities, relations, and categorical entries.
// These types are shared between the storage layer, the retrieval engine,
// and the tool-invocation gateway.
package types

// EventKind classifies a raw system observation by its source event type.
type EventKind string

// Observation event kinds. These mirror the accessibility-style event stream
// produced by the UI observation source.
const (
	// EventWindowStateChanged indicates a window or screen transition.
	EventWindowStateChanged EventKind = "window_state_changed"

	// EventWindowContentChanged indicates content changed within the
	// current window without a screen transition.
	EventWindowContentChanged EventKind = "window_content_changed"

	// EventAnnouncement indicates an app-initiated accessibility announcement.
	EventAnnouncement EventKind = "announcement"

	// EventNotification indicates a posted system notification.
	EventNotification EventKind = "notification"

	// EventClick indicates a view was clicked.
	EventClick EventKind = "click"

	// EventFocus indicates a view gained input focus.
	EventFocus EventKind = "focus"

	// EventScroll indicates a scrollable view was scrolled.
	EventScroll EventKind = "scroll"

	// EventTextChanged indicates editable text content changed.
	EventTextChanged EventKind = "text_changed"
)

// SignificantEventKinds is the fixed set of event kinds that are promoted
// from the observation buffer into durable memory records.
var SignificantEventKinds = []EventKind{
	EventWindowStateChanged,
	EventAnnouncement,
	EventNotification,
	EventClick,
}

// IsSignificant reports whether observations of this kind are promoted to
// memory records by the memory service.
func (k EventKind) IsSignificant() bool {
	for _, s := range SignificantEventKinds {
		if k == s {
			return true
		}
	}
	return false
}

// Tags reserved by the subsystem itself.
const (
	// TagConsolidated marks a record synthesized by the consolidation engine.
	TagConsolidated = "consolidated"

	// TagObservation marks a record promoted from a raw observation.
	TagObservation = "observation"

	// TagSystemEvent marks a record that originated from a system event
	// rather than an agent-authored note.
	TagSystemEvent = "system_event"

	// TagGeneral is the sentinel grouping tag for records with no tags.
	TagGeneral = "general"
)

// RelationRelatedTo is the edge type created between a new memory record and
// the records passed as related IDs at store time.
const RelationRelatedTo = "related_to"

// EntityTypeMemory is the entity type under which memory records are
// registered in the relationship graph.
const EntityTypeMemory = "memory"
