package observation_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinruoxinchen/one-unlimit-os/internal/observation"
	"github.com/jinruoxinchen/one-unlimit-os/pkg/types"
)

func makeObs(kind types.EventKind, text string) types.Observation {
	return types.Observation{
		Timestamp: time.Now(),
		Kind:      kind,
		SourceApp: "com.example.app",
		Text:      text,
	}
}

func TestBuffer_RecentNewestFirst(t *testing.T) {
	buf := observation.NewBuffer(10)

	for i := 0; i < 3; i++ {
		buf.Record(makeObs(types.EventClick, fmt.Sprintf("click %d", i)))
	}

	recent := buf.Recent(10)
	require.Len(t, recent, 3)
	assert.Equal(t, "click 2", recent[0].Text)
	assert.Equal(t, "click 1", recent[1].Text)
	assert.Equal(t, "click 0", recent[2].Text)
}

func TestBuffer_EvictsOldestAtCapacity(t *testing.T) {
	buf := observation.NewBuffer(5)

	for i := 0; i < 8; i++ {
		buf.Record(makeObs(types.EventScroll, fmt.Sprintf("event %d", i)))
	}

	assert.Equal(t, 5, buf.Len())

	recent := buf.Recent(5)
	require.Len(t, recent, 5)
	// Events 0-2 fell off; newest is event 7, oldest surviving is event 3.
	assert.Equal(t, "event 7", recent[0].Text)
	assert.Equal(t, "event 3", recent[4].Text)
}

func TestBuffer_RecentLimit(t *testing.T) {
	buf := observation.NewBuffer(10)
	for i := 0; i < 6; i++ {
		buf.Record(makeObs(types.EventFocus, fmt.Sprintf("focus %d", i)))
	}

	assert.Len(t, buf.Recent(2), 2)
	assert.Len(t, buf.Recent(0), 6)  // non-positive limit returns all
	assert.Len(t, buf.Recent(99), 6) // limit above size returns all
}

func TestBuffer_RecentOfKinds(t *testing.T) {
	buf := observation.NewBuffer(10)
	buf.Record(makeObs(types.EventClick, "a click"))
	buf.Record(makeObs(types.EventScroll, "a scroll"))
	buf.Record(makeObs(types.EventNotification, "a notification"))
	buf.Record(makeObs(types.EventClick, "another click"))

	clicks := buf.RecentOfKinds([]types.EventKind{types.EventClick}, 10)
	require.Len(t, clicks, 2)
	assert.Equal(t, "another click", clicks[0].Text)
	assert.Equal(t, "a click", clicks[1].Text)

	significant := buf.RecentOfKinds(types.SignificantEventKinds, 10)
	assert.Len(t, significant, 3)
}

func TestBuffer_Clear(t *testing.T) {
	buf := observation.NewBuffer(10)
	buf.Record(makeObs(types.EventClick, "x"))
	buf.Record(makeObs(types.EventClick, "y"))

	buf.Clear()

	assert.Equal(t, 0, buf.Len())
	assert.Empty(t, buf.Recent(10))
	assert.Equal(t, 10, buf.Capacity())
}

func TestBuffer_DefaultCapacity(t *testing.T) {
	buf := observation.NewBuffer(0)
	assert.Equal(t, observation.DefaultCapacity, buf.Capacity())
}
