package engine

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/jinruoxinchen/one-unlimit-os/internal/graph"
	"github.com/jinruoxinchen/one-unlimit-os/internal/index"
	"github.com/jinruoxinchen/one-unlimit-os/internal/observation"
	"github.com/jinruoxinchen/one-unlimit-os/internal/store"
	"github.com/jinruoxinchen/one-unlimit-os/pkg/types"
)

// Sentinel texts returned instead of errors when a lookup matches nothing.
const (
	NoRelevantMemories = "No relevant memories found."
	NoRelatedMemories  = "No related memories found."
	NoPreferences      = "No preferences stored."
	NoInteractions     = "No interactions recorded."
	NoDeviceContext    = "No device context available."
	NoRecentActivity   = "No recent observations."
)

// SystemAgent is the bucket that receives records promoted from raw
// observations, which carry no agent attribution of their own.
const SystemAgent = "system"

// observationImportance is the fixed importance of promoted observations.
const observationImportance = 0.7

// DefaultRetrieveLimit is used when a retrieval call passes no limit.
const DefaultRetrieveLimit = 5

// contentExcerptLen caps the observation string registered in the graph for
// each memory record.
const contentExcerptLen = 120

// Service is the single entry point coordinating the memory store, vector
// index, relationship graph, observation buffer, and categorical stores.
// Construct it once at process start and pass it explicitly to consumers;
// there is no ambient global instance.
type Service struct {
	memories     *store.MemoryStore
	vectors      *index.VectorIndex
	relations    *graph.Graph
	buffer       *observation.Buffer
	consolidator *Consolidator

	preferences  *store.PreferenceStore
	appStates    *store.AppStateStore
	interactions *store.InteractionStore
	deviceCtx    *store.DeviceContextStore
}

// NewService wires the façade. The embedding-arrival callback is installed
// here so the index and the authoritative store never diverge.
func NewService(memories *store.MemoryStore, vectors *index.VectorIndex, relations *graph.Graph, buffer *observation.Buffer, consolidator *Consolidator) *Service {
	s := &Service{
		memories:     memories,
		vectors:      vectors,
		relations:    relations,
		buffer:       buffer,
		consolidator: consolidator,
		preferences:  store.NewPreferenceStore(),
		appStates:    store.NewAppStateStore(),
		interactions: store.NewInteractionStore(),
		deviceCtx:    store.NewDeviceContextStore(),
	}

	vectors.SetOnEmbedded(func(id string, embedding []float64) {
		memories.SetEmbedding(id, embedding)
	})
	return s
}

// StoreMemory creates a memory record in the agent's bucket, registers it
// in the vector index (which queues embedding) and the relationship graph,
// and links it to any resolvable related records. The new ID is returned
// even though the embedding has not arrived yet: the record is simply
// excluded from similarity ranking until it does.
func (s *Service) StoreMemory(agentID, content string, importance float64, tags []string, relatedIDs []string) (string, error) {
	if agentID == "" {
		return "", fmt.Errorf("%w: agent ID is required", store.ErrInvalidInput)
	}
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("%w: content is required", store.ErrInvalidInput)
	}

	rec := s.memories.NewRecord(agentID, content, importance, tags)
	if err := s.memories.Add(rec); err != nil {
		return "", err
	}

	s.vectors.Upsert(rec)
	s.relations.CreateEntity(rec.ID, types.EntityTypeMemory, []string{excerpt(content)})

	for _, relatedID := range relatedIDs {
		if _, ok := s.memories.FindByID(relatedID); ok {
			s.relations.CreateRelation(rec.ID, relatedID, types.RelationRelatedTo)
		}
	}

	s.consolidator.MaybeTrigger()
	return rec.ID, nil
}

// FindByID returns the stored record for an ID.
func (s *Service) FindByID(id string) (types.MemoryRecord, bool) {
	return s.memories.FindByID(id)
}

// DeleteMemory removes a record and its derived index and graph entries.
// Idempotent: unknown IDs report false with no error.
func (s *Service) DeleteMemory(id string) bool {
	removed := s.memories.Delete(id)
	s.vectors.Remove(id)
	s.relations.RemoveEntity(id)
	return removed
}

// ClearAll wipes every bucket, both derived indexes, the observation
// buffer, and all four categorical stores. Privacy/reset flow.
func (s *Service) ClearAll() {
	s.memories.ClearAll()
	s.vectors.Clear()
	s.relations.Clear()
	s.buffer.Clear()
	s.preferences.Clear()
	s.appStates.Clear()
	s.interactions.Clear()
	s.deviceCtx.Clear()
}

// RetrieveRelevant ranks stored memories against the query and returns a
// formatted block of the best matches. Filters: owning agent (when agentID
// is non-empty), tag intersection (keep records carrying ANY requested tag,
// when tags is non-empty), and an importance floor. Similarity order is
// preserved through filtering. The sentinel text is returned — never an
// error — when nothing survives.
func (s *Service) RetrieveRelevant(ctx context.Context, query string, limit int, agentID string, tags []string, minImportance float64) string {
	if limit <= 0 {
		limit = DefaultRetrieveLimit
	}

	// Over-fetch so post-ranking filters still leave enough results.
	ranked, err := s.vectors.Search(ctx, query, limit*2)
	if err != nil {
		// Transient collaborator failure degrades to "nothing ranked".
		log.Printf("engine: similarity search degraded: %v", err)
		ranked = nil
	}

	matches := make([]types.MemoryRecord, 0, limit)
	for _, rec := range ranked {
		if agentID != "" && rec.AgentID != agentID {
			continue
		}
		if len(tags) > 0 && !rec.HasAnyTag(tags) {
			continue
		}
		if rec.Importance < minImportance {
			continue
		}
		matches = append(matches, rec)
		if len(matches) == limit {
			break
		}
	}

	if len(matches) == 0 {
		return NoRelevantMemories
	}

	var b strings.Builder
	b.WriteString("Relevant memories:\n")
	for i, rec := range matches {
		fmt.Fprintf(&b, "%d. %s [importance: %.2f", i+1, rec.Content, rec.Importance)
		if len(rec.Tags) > 0 {
			fmt.Fprintf(&b, ", tags: %s", strings.Join(rec.Tags, ", "))
		}
		b.WriteString("]\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// RetrieveRelated returns the graph neighbors of a memory record, formatted
// as "[type: name]: observations" with the edge direction noted.
func (s *Service) RetrieveRelated(id, relationType string) string {
	related := s.relations.RelatedEntities(id, relationType)
	if len(related) == 0 {
		return NoRelatedMemories
	}

	var b strings.Builder
	for _, r := range related {
		fmt.Fprintf(&b, "[%s: %s]: %s (%s via %s)\n",
			r.Entity.Type, r.Entity.Name,
			strings.Join(r.Entity.Observations, "; "),
			r.Direction, r.RelationType)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Observe ingests one raw system event. The observation always lands in the
// buffer; significant kinds are additionally promoted to a memory record in
// the system bucket, and window-state changes update the app-state store.
func (s *Service) Observe(obs types.Observation) {
	if obs.Timestamp.IsZero() {
		obs.Timestamp = time.Now()
	}
	s.buffer.Record(obs)

	if !obs.Kind.IsSignificant() {
		return
	}

	if _, err := s.StoreMemory(SystemAgent, obs.Summary(), observationImportance,
		[]string{types.TagObservation, types.TagSystemEvent}, nil); err != nil {
		log.Printf("engine: promote observation failed: %v", err)
	}

	if obs.Kind == types.EventWindowStateChanged && obs.SourceApp != "" {
		s.appStates.PutState(obs.SourceApp, "current_state", types.MapValue(map[string]types.Value{
			"text":        types.StringValue(obs.Text),
			"description": types.StringValue(obs.Description),
			"observed_at": types.StringValue(obs.Timestamp.Format(time.RFC3339)),
		}), observationImportance)
	}
}

// RecentObservations returns the newest limit buffer entries.
func (s *Service) RecentObservations(limit int) []types.Observation {
	return s.buffer.Recent(limit)
}

// UIContext formats the recent observation window for the gateway.
func (s *Service) UIContext() string {
	recent := s.buffer.Recent(10)
	if len(recent) == 0 {
		return NoRecentActivity
	}

	var b strings.Builder
	b.WriteString("Recent UI activity (newest first):\n")
	for i, obs := range recent {
		fmt.Fprintf(&b, "%d. %s\n", i+1, obs.Summary())
	}
	return strings.TrimRight(b.String(), "\n")
}

// StorePreference upserts a user preference.
func (s *Service) StorePreference(key string, value types.Value, category string, importance float64) error {
	if key == "" {
		return fmt.Errorf("%w: preference key is required", store.ErrInvalidInput)
	}
	s.preferences.PutPreference(key, value, category, importance)
	return nil
}

// Preferences formats stored preferences, optionally limited to a category.
func (s *Service) Preferences(category string) string {
	entries := s.preferences.ByCategory(category)
	if len(entries) == 0 {
		return NoPreferences
	}

	var b strings.Builder
	for _, entry := range entries {
		fmt.Fprintf(&b, "- %s: %s\n", entry.Key, entry.Value.String())
	}
	return strings.TrimRight(b.String(), "\n")
}

// StoreInteraction records a user-query/agent-response exchange and returns
// its generated key.
func (s *Service) StoreInteraction(agentID, userQuery, agentResponse string, success bool, importance float64) (string, error) {
	if userQuery == "" && agentResponse == "" {
		return "", fmt.Errorf("%w: interaction needs a query or a response", store.ErrInvalidInput)
	}
	return s.interactions.PutInteraction(agentID, userQuery, agentResponse, success, importance), nil
}

// RecentInteractions formats the newest interactions, filtered to one agent
// when agentID is non-empty.
func (s *Service) RecentInteractions(agentID string, limit int) string {
	entries := s.interactions.RecentForAgent(agentID, limit)
	if len(entries) == 0 {
		return NoInteractions
	}

	var b strings.Builder
	for _, entry := range entries {
		outcome := "ok"
		if v, ok := entry.Value.Map["success"]; ok && v.Kind == types.KindBool && !v.Bool {
			outcome = "failed"
		}
		query := entry.Value.Map["query"].Str
		response := entry.Value.Map["response"].Str
		fmt.Fprintf(&b, "- [%s] Q: %s | A: %s (%s)\n",
			entry.Timestamp.Format("2006-01-02 15:04"), query, response, outcome)
	}
	return strings.TrimRight(b.String(), "\n")
}

// StoreDeviceContext upserts a device-context snapshot for a state type.
func (s *Service) StoreDeviceContext(stateType string, value types.Value, importance float64) error {
	if stateType == "" {
		return fmt.Errorf("%w: device state type is required", store.ErrInvalidInput)
	}
	s.deviceCtx.PutContext(stateType, value, importance)
	return nil
}

// DeviceContext formats device-context snapshots, optionally limited to one
// state type.
func (s *Service) DeviceContext(stateType string) string {
	entries := s.deviceCtx.ByType(stateType)
	if len(entries) == 0 {
		return NoDeviceContext
	}

	var b strings.Builder
	for _, entry := range entries {
		fmt.Fprintf(&b, "- %s: %s\n", entry.Key, entry.Value.String())
	}
	return strings.TrimRight(b.String(), "\n")
}

// CreateEntity exposes graph entity creation for the gateway.
func (s *Service) CreateEntity(name, entityType string, observations []string) (types.Entity, error) {
	if name == "" {
		return types.Entity{}, fmt.Errorf("%w: entity name is required", store.ErrInvalidInput)
	}
	return s.relations.CreateEntity(name, entityType, observations), nil
}

// CreateRelation exposes graph edge creation for the gateway.
func (s *Service) CreateRelation(from, to, relationType string) (types.Relation, error) {
	if from == "" || to == "" || relationType == "" {
		return types.Relation{}, fmt.Errorf("%w: from, to, and relation type are required", store.ErrInvalidInput)
	}
	return s.relations.CreateRelation(from, to, relationType), nil
}

// SearchEntities exposes case-insensitive graph search for the gateway.
func (s *Service) SearchEntities(query string) []types.Entity {
	return s.relations.Search(query)
}

// MemoryCount returns the total live record count; surfaced for tests and
// operational visibility.
func (s *Service) MemoryCount() int {
	return s.memories.Count()
}

// AppStateForPackage returns the latest navigation state stored for an app.
func (s *Service) AppStateForPackage(appPackage string) (types.CategoricalEntry, bool) {
	return s.appStates.LatestForApp(appPackage)
}

// Close stops background workers. The service must not be used afterwards.
func (s *Service) Close() {
	s.vectors.Close()
}

// excerpt truncates content for use as a graph observation string.
func excerpt(content string) string {
	runes := []rune(content)
	if len(runes) <= contentExcerptLen {
		return content
	}
	return string(runes[:contentExcerptLen]) + "..."
}
