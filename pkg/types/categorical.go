package types

import "time"

// CategoricalEntry is the generic shape shared by all four categorical
// stores (preferences, app state, interactions, device context). Each store
// only adds key-construction and query conventions on top.
type CategoricalEntry struct {
	// Key is unique within its store. Specializations build structured keys,
	// e.g. app state uses "app-package:state-name" and device context uses
	// "device-state:<type>".
	Key string `json:"key"`

	// Value is the opaque structured payload.
	Value Value `json:"value"`

	Timestamp  time.Time `json:"timestamp"`
	Importance float64   `json:"importance"`
	Tags       []string  `json:"tags,omitempty"`
}

// HasTag reports whether the entry carries the given tag.
func (e CategoricalEntry) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
