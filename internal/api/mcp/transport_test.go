package mcp_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinruoxinchen/one-unlimit-os/internal/api/mcp"
)

func TestStdioTransport_ServesLineDelimitedFrames(t *testing.T) {
	srv := newTestServer(t)

	in := strings.NewReader(
		`{"jsonrpc":"2.0","method":"get_ui_context","params":{},"id":1}` + "\n" +
			"\n" + // blank lines are skipped, not answered
			`{not json` + "\n")
	var out bytes.Buffer

	transport := mcp.NewStdioTransport(srv, in, &out)
	require.NoError(t, transport.Serve(context.Background()))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2, "one response line per non-blank request line")

	var first map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, float64(1), first["id"])
	assert.Contains(t, first, "result")

	var second map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	rpcErr := second["error"].(map[string]interface{})
	assert.Equal(t, float64(-32700), rpcErr["code"])
}

func TestStdioTransport_StopsOnCancel(t *testing.T) {
	srv := newTestServer(t)

	// A pipe with no writer blocks the reader; cancellation must still
	// shut the transport down.
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- mcp.NewStdioTransport(srv, pr, io.Discard).Serve(ctx)
	}()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("transport did not stop after context cancellation")
	}
}
