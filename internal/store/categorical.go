package store

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jinruoxinchen/one-unlimit-os/pkg/types"
)

// CategoricalStore is a typed key-value store for one category of entries.
// The same generic contract backs all four specializations; each only adds
// key-construction and query conventions.
type CategoricalStore struct {
	mu      sync.RWMutex
	entries map[string]types.CategoricalEntry
}

// NewCategoricalStore creates an empty categorical store.
func NewCategoricalStore() *CategoricalStore {
	return &CategoricalStore{
		entries: make(map[string]types.CategoricalEntry),
	}
}

// Put upserts an entry by key.
func (s *CategoricalStore) Put(entry types.CategoricalEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.Key] = entry
}

// Get returns the entry for a key, reporting whether it exists.
func (s *CategoricalStore) Get(key string) (types.CategoricalEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[key]
	return entry, ok
}

// All returns every entry, ordered newest first for stable output.
func (s *CategoricalStore) All() []types.CategoricalEntry {
	s.mu.RLock()
	out := make([]types.CategoricalEntry, 0, len(s.entries))
	for _, entry := range s.entries {
		out = append(out, entry)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// Search returns entries whose key or stringified value contains the query,
// case-insensitive, newest first.
func (s *CategoricalStore) Search(query string) []types.CategoricalEntry {
	q := strings.ToLower(query)
	var out []types.CategoricalEntry
	for _, entry := range s.All() {
		if strings.Contains(strings.ToLower(entry.Key), q) ||
			strings.Contains(strings.ToLower(entry.Value.String()), q) {
			out = append(out, entry)
		}
	}
	return out
}

// Len returns the number of entries.
func (s *CategoricalStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Clear drops every entry.
func (s *CategoricalStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]types.CategoricalEntry)
}

// ---------------------------------------------------------------------------
// Specializations
// ---------------------------------------------------------------------------

// PreferenceStore holds user preferences keyed by preference name, tagged
// with an optional category.
type PreferenceStore struct {
	*CategoricalStore
}

// NewPreferenceStore creates an empty preference store.
func NewPreferenceStore() *PreferenceStore {
	return &PreferenceStore{CategoricalStore: NewCategoricalStore()}
}

// PutPreference upserts a preference. Category becomes a tag so preferences
// can be listed per category without a second index.
func (s *PreferenceStore) PutPreference(key string, value types.Value, category string, importance float64) {
	tags := []string{"preference"}
	if category != "" {
		tags = append(tags, category)
	}
	s.Put(types.CategoricalEntry{
		Key:        key,
		Value:      value,
		Timestamp:  time.Now(),
		Importance: types.ClampImportance(importance),
		Tags:       tags,
	})
}

// ByCategory returns preferences tagged with the category, or all
// preferences when category is empty.
func (s *PreferenceStore) ByCategory(category string) []types.CategoricalEntry {
	all := s.All()
	if category == "" {
		return all
	}
	var out []types.CategoricalEntry
	for _, entry := range all {
		if entry.HasTag(category) {
			out = append(out, entry)
		}
	}
	return out
}

// AppStateStore holds per-app navigation state keyed "app-package:state-name".
type AppStateStore struct {
	*CategoricalStore
}

// NewAppStateStore creates an empty app-state store.
func NewAppStateStore() *AppStateStore {
	return &AppStateStore{CategoricalStore: NewCategoricalStore()}
}

// AppStateKey builds the conventional key for an app state entry.
func AppStateKey(appPackage, stateName string) string {
	return appPackage + ":" + stateName
}

// PutState upserts a navigation state for an app. The app package is stored
// as a tag so LatestForApp can filter without parsing keys.
func (s *AppStateStore) PutState(appPackage, stateName string, value types.Value, importance float64) {
	s.Put(types.CategoricalEntry{
		Key:        AppStateKey(appPackage, stateName),
		Value:      value,
		Timestamp:  time.Now(),
		Importance: types.ClampImportance(importance),
		Tags:       []string{"app_state", appPackage},
	})
}

// LatestForApp returns the most recent state entry tagged with the app
// package, reporting whether any exists.
func (s *AppStateStore) LatestForApp(appPackage string) (types.CategoricalEntry, bool) {
	var latest types.CategoricalEntry
	found := false
	for _, entry := range s.All() {
		if !entry.HasTag(appPackage) {
			continue
		}
		if !found || entry.Timestamp.After(latest.Timestamp) {
			latest = entry
			found = true
		}
	}
	return latest, found
}

// InteractionStore holds user-query/agent-response exchanges keyed by a
// generated interaction ID.
type InteractionStore struct {
	*CategoricalStore
}

// NewInteractionStore creates an empty interaction store.
func NewInteractionStore() *InteractionStore {
	return &InteractionStore{CategoricalStore: NewCategoricalStore()}
}

// PutInteraction records one exchange. The agent ID is stored as a tag so
// RecentForAgent can filter without parsing payloads.
func (s *InteractionStore) PutInteraction(agentID, userQuery, agentResponse string, success bool, importance float64) string {
	key := "interaction:" + uuid.New().String()
	tags := []string{"interaction"}
	if agentID != "" {
		tags = append(tags, agentID)
	}
	s.Put(types.CategoricalEntry{
		Key: key,
		Value: types.MapValue(map[string]types.Value{
			"agent_id": types.StringValue(agentID),
			"query":    types.StringValue(userQuery),
			"response": types.StringValue(agentResponse),
			"success":  types.BoolValue(success),
		}),
		Timestamp:  time.Now(),
		Importance: types.ClampImportance(importance),
		Tags:       tags,
	})
	return key
}

// RecentForAgent returns up to limit interactions newest first, filtered to
// the agent when agentID is non-empty.
func (s *InteractionStore) RecentForAgent(agentID string, limit int) []types.CategoricalEntry {
	if limit <= 0 {
		limit = 10
	}
	var out []types.CategoricalEntry
	for _, entry := range s.All() {
		if agentID != "" && !entry.HasTag(agentID) {
			continue
		}
		out = append(out, entry)
		if len(out) == limit {
			break
		}
	}
	return out
}

// DeviceContextStore holds device-context snapshots keyed "device-state:<type>".
type DeviceContextStore struct {
	*CategoricalStore
}

// NewDeviceContextStore creates an empty device-context store.
func NewDeviceContextStore() *DeviceContextStore {
	return &DeviceContextStore{CategoricalStore: NewCategoricalStore()}
}

// DeviceContextKey builds the conventional key for a device-state type.
func DeviceContextKey(stateType string) string {
	return "device-state:" + stateType
}

// PutContext upserts a device-context snapshot for a state type.
func (s *DeviceContextStore) PutContext(stateType string, value types.Value, importance float64) {
	s.Put(types.CategoricalEntry{
		Key:        DeviceContextKey(stateType),
		Value:      value,
		Timestamp:  time.Now(),
		Importance: types.ClampImportance(importance),
		Tags:       []string{"device_context", stateType},
	})
}

// ByType returns the snapshot for one state type, or every snapshot when
// stateType is empty.
func (s *DeviceContextStore) ByType(stateType string) []types.CategoricalEntry {
	if stateType == "" {
		return s.All()
	}
	if entry, ok := s.Get(DeviceContextKey(stateType)); ok {
		return []types.CategoricalEntry{entry}
	}
	return nil
}
