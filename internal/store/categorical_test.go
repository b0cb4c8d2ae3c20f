package store_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinruoxinchen/one-unlimit-os/internal/store"
	"github.com/jinruoxinchen/one-unlimit-os/pkg/types"
)

func TestCategoricalStore_PutOverwritesSameKey(t *testing.T) {
	s := store.NewCategoricalStore()

	s.Put(types.CategoricalEntry{Key: "theme", Value: types.StringValue("light"), Timestamp: time.Now()})
	s.Put(types.CategoricalEntry{Key: "theme", Value: types.StringValue("dark"), Timestamp: time.Now()})

	assert.Equal(t, 1, s.Len())
	entry, ok := s.Get("theme")
	require.True(t, ok)
	assert.Equal(t, "dark", entry.Value.Str)
}

func TestCategoricalStore_AllNewestFirst(t *testing.T) {
	s := store.NewCategoricalStore()
	base := time.Now()

	s.Put(types.CategoricalEntry{Key: "old", Value: types.StringValue("1"), Timestamp: base.Add(-time.Hour)})
	s.Put(types.CategoricalEntry{Key: "new", Value: types.StringValue("2"), Timestamp: base})
	s.Put(types.CategoricalEntry{Key: "mid", Value: types.StringValue("3"), Timestamp: base.Add(-time.Minute)})

	all := s.All()
	require.Len(t, all, 3)
	assert.Equal(t, "new", all[0].Key)
	assert.Equal(t, "mid", all[1].Key)
	assert.Equal(t, "old", all[2].Key)
}

func TestCategoricalStore_Search(t *testing.T) {
	s := store.NewCategoricalStore()
	s.Put(types.CategoricalEntry{Key: "favorite_color", Value: types.StringValue("blue"), Timestamp: time.Now()})
	s.Put(types.CategoricalEntry{Key: "volume", Value: types.NumberValue(70), Timestamp: time.Now()})

	assert.Len(t, s.Search("COLOR"), 1) // key match, case-insensitive
	assert.Len(t, s.Search("blue"), 1)  // value match
	assert.Empty(t, s.Search("missing"))
}

func TestPreferenceStore_ByCategory(t *testing.T) {
	s := store.NewPreferenceStore()

	s.PutPreference("theme", types.StringValue("dark"), "appearance", 0.5)
	s.PutPreference("font_size", types.NumberValue(14), "appearance", 0.5)
	s.PutPreference("language", types.StringValue("en"), "locale", 0.5)

	assert.Len(t, s.ByCategory("appearance"), 2)
	assert.Len(t, s.ByCategory("locale"), 1)
	assert.Len(t, s.ByCategory(""), 3)
	assert.Empty(t, s.ByCategory("unknown"))
}

func TestAppStateStore_LatestForApp(t *testing.T) {
	s := store.NewAppStateStore()

	s.PutState("com.example.mail", "inbox", types.StringValue("32 unread"), 0.5)
	s.PutState("com.example.mail", "compose", types.StringValue("draft open"), 0.5)
	s.PutState("com.example.browser", "tab", types.StringValue("news site"), 0.5)

	entry, ok := s.LatestForApp("com.example.mail")
	require.True(t, ok)
	assert.Equal(t, store.AppStateKey("com.example.mail", "compose"), entry.Key)

	_, ok = s.LatestForApp("com.example.unknown")
	assert.False(t, ok)
}

func TestInteractionStore_RecentForAgent(t *testing.T) {
	s := store.NewInteractionStore()

	k1 := s.PutInteraction("agent-1", "what's the weather", "sunny", true, 0.5)
	k2 := s.PutInteraction("agent-1", "set an alarm", "done", true, 0.5)
	k3 := s.PutInteraction("agent-2", "play music", "playing", true, 0.5)

	assert.NotEqual(t, k1, k2)
	assert.NotEqual(t, k2, k3)

	forOne := s.RecentForAgent("agent-1", 10)
	assert.Len(t, forOne, 2)

	all := s.RecentForAgent("", 10)
	assert.Len(t, all, 3)

	limited := s.RecentForAgent("", 1)
	assert.Len(t, limited, 1)
}

func TestInteractionStore_PayloadShape(t *testing.T) {
	s := store.NewInteractionStore()

	s.PutInteraction("agent-1", "query text", "response text", false, 0.5)

	entries := s.RecentForAgent("agent-1", 1)
	require.Len(t, entries, 1)

	payload := entries[0].Value
	require.Equal(t, types.KindMap, payload.Kind)
	assert.Equal(t, "query text", payload.Map["query"].Str)
	assert.Equal(t, "response text", payload.Map["response"].Str)
	assert.False(t, payload.Map["success"].Bool)
}

func TestDeviceContextStore_ByType(t *testing.T) {
	s := store.NewDeviceContextStore()

	s.PutContext("battery", types.MapValue(map[string]types.Value{
		"level":    types.NumberValue(82),
		"charging": types.BoolValue(true),
	}), 0.5)
	s.PutContext("connectivity", types.StringValue("wifi"), 0.5)

	battery := s.ByType("battery")
	require.Len(t, battery, 1)
	assert.Equal(t, store.DeviceContextKey("battery"), battery[0].Key)

	assert.Len(t, s.ByType(""), 2)

	// Same type overwrites: snapshots are current state, not history.
	s.PutContext("battery", types.NumberValue(81), 0.5)
	assert.Len(t, s.ByType("battery"), 1)
}
