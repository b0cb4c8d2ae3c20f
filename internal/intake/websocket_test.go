package intake

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinruoxinchen/one-unlimit-os/pkg/types"
)

func TestDecodeFrame(t *testing.T) {
	obs, err := decodeFrame([]byte(`{
		"kind": "notification",
		"source_app": "com.example.mail",
		"text": "New message",
		"description": "from Kai",
		"timestamp": "2026-08-29T10:00:00Z"
	}`))
	require.NoError(t, err)

	assert.Equal(t, types.EventNotification, obs.Kind)
	assert.Equal(t, "com.example.mail", obs.SourceApp)
	assert.Equal(t, "New message", obs.Text)
	assert.Equal(t, "from Kai", obs.Description)
	assert.Equal(t, time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC), obs.Timestamp)
}

func TestDecodeFrame_DefaultsTimestamp(t *testing.T) {
	before := time.Now()
	obs, err := decodeFrame([]byte(`{"kind":"click","source_app":"com.example.app"}`))
	require.NoError(t, err)
	assert.False(t, obs.Timestamp.Before(before))

	// Unparsable timestamps fall back to receipt time rather than failing.
	obs, err = decodeFrame([]byte(`{"kind":"click","timestamp":"yesterday-ish"}`))
	require.NoError(t, err)
	assert.False(t, obs.Timestamp.IsZero())
}

func TestDecodeFrame_Malformed(t *testing.T) {
	_, err := decodeFrame([]byte(`{broken`))
	assert.Error(t, err)

	_, err = decodeFrame([]byte(`{"source_app":"com.example.app"}`))
	assert.Error(t, err, "frames without a kind are rejected")
}
