package types

import (
	"fmt"
	"strings"
	"time"
)

// Observation is a raw, ephemeral system event. Observations live only in
// the observation buffer unless the significance filter promotes them to
// memory records.
type Observation struct {
	Timestamp   time.Time `json:"timestamp"`             // When the event occurred
	Kind        EventKind `json:"kind"`                  // Event classification
	SourceApp   string    `json:"source_app"`            // Package/bundle identifier of the originating app
	Text        string    `json:"text,omitempty"`        // Display text carried by the event
	Description string    `json:"description,omitempty"` // Accessory description (content description, subtext)
}

// Summary renders the observation as a single human-readable line, used both
// for promotion into memory records and for the ui_context view.
func (o Observation) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", o.Kind, o.SourceApp)
	if o.Text != "" {
		b.WriteString(": ")
		b.WriteString(o.Text)
	}
	if o.Description != "" {
		b.WriteString(" (")
		b.WriteString(o.Description)
		b.WriteString(")")
	}
	return b.String()
}
