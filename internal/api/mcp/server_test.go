package mcp_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinruoxinchen/one-unlimit-os/internal/api/mcp"
	"github.com/jinruoxinchen/one-unlimit-os/internal/config"
	"github.com/jinruoxinchen/one-unlimit-os/internal/engine"
	"github.com/jinruoxinchen/one-unlimit-os/internal/graph"
	"github.com/jinruoxinchen/one-unlimit-os/internal/index"
	"github.com/jinruoxinchen/one-unlimit-os/internal/llm"
	"github.com/jinruoxinchen/one-unlimit-os/internal/observation"
	"github.com/jinruoxinchen/one-unlimit-os/internal/store"
)

func newTestServer(t *testing.T) *mcp.Server {
	t.Helper()
	memories, err := store.NewMemoryStore(nil)
	require.NoError(t, err)
	vectors := index.NewVectorIndex(llm.NewHashEmbedder(64), index.Options{RatePerSec: 1000})
	relations := graph.New()
	buffer := observation.NewBuffer(50)
	consolidator := engine.NewConsolidator(memories, vectors, relations, nil, config.ConsolidationConfig{
		Threshold:    50,
		Interval:     time.Hour,
		MinBucket:    10,
		MinGroupSize: 3,
	}, time.Second)
	service := engine.NewService(memories, vectors, relations, buffer, consolidator)
	t.Cleanup(service.Close)
	return mcp.NewServer(service)
}

// call dispatches one raw JSON-RPC request and unmarshals the result object.
func call(t *testing.T, srv *mcp.Server, rawRequest string) map[string]interface{} {
	t.Helper()
	resp, err := srv.HandleRequest(context.Background(), []byte(rawRequest))
	require.NoError(t, err)
	require.NotNil(t, resp)

	var jsonResp map[string]interface{}
	require.NoError(t, json.Unmarshal(resp, &jsonResp))
	require.NotContains(t, jsonResp, "error", "unexpected JSON-RPC error: %s", resp)
	result, ok := jsonResp["result"].(map[string]interface{})
	require.True(t, ok, "result is not an object: %s", resp)
	return result
}

func TestHandleStoreMemory_Success(t *testing.T) {
	srv := newTestServer(t)

	result := call(t, srv, `{"jsonrpc":"2.0","method":"store_memory","params":{"agent_id":"agent-1","content":"remember the milk","importance":0.6,"tags":["errand"]},"id":1}`)

	assert.True(t, result["success"].(bool))
	assert.NotEmpty(t, result["memory_id"])
}

func TestHandleStoreMemory_MissingAgent(t *testing.T) {
	srv := newTestServer(t)

	result := call(t, srv, `{"jsonrpc":"2.0","method":"store_memory","params":{"content":"orphan"},"id":1}`)

	// Tool failures surface inside the payload, not as JSON-RPC errors.
	assert.False(t, result["success"].(bool))
	assert.Contains(t, result["error"], "agent ID")
}

func TestHandleStoreMemory_StringifiedTags(t *testing.T) {
	srv := newTestServer(t)

	result := call(t, srv, `{"jsonrpc":"2.0","method":"store_memory","params":{"agent_id":"a","content":"tagged","tags":"[\"x\",\"y\"]"},"id":1}`)
	assert.True(t, result["success"].(bool))

	result = call(t, srv, `{"jsonrpc":"2.0","method":"store_memory","params":{"agent_id":"a","content":"comma tagged","tags":"x, y"},"id":2}`)
	assert.True(t, result["success"].(bool))
}

func TestHandleStoreMemory_DefaultImportance(t *testing.T) {
	srv := newTestServer(t)

	result := call(t, srv, `{"jsonrpc":"2.0","method":"store_memory","params":{"agent_id":"agent-1","content":"default importance note"},"id":1}`)
	require.True(t, result["success"].(bool))

	// A record stored without an importance must survive a high
	// min_importance floor once its embedding arrives.
	deadline := time.Now().Add(2 * time.Second)
	for {
		result = call(t, srv, `{"jsonrpc":"2.0","method":"retrieve_memories","params":{"query":"default importance note","min_importance":0.9},"id":2}`)
		text := result["text"].(string)
		if text != engine.NoRelevantMemories {
			assert.Contains(t, text, "default importance note")
			assert.Contains(t, text, "importance: 1.00")
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("record stored without importance never cleared the min_importance floor")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHandleRetrieveMemories(t *testing.T) {
	srv := newTestServer(t)

	result := call(t, srv, `{"jsonrpc":"2.0","method":"retrieve_memories","params":{"query":"anything"},"id":1}`)
	assert.True(t, result["success"].(bool))
	assert.Equal(t, engine.NoRelevantMemories, result["text"])

	result = call(t, srv, `{"jsonrpc":"2.0","method":"retrieve_memories","params":{},"id":2}`)
	assert.Contains(t, result["error"], "query")
}

func TestHandleRetrieveRelated(t *testing.T) {
	srv := newTestServer(t)

	stored := call(t, srv, `{"jsonrpc":"2.0","method":"store_memory","params":{"agent_id":"a","content":"anchor note"},"id":1}`)
	anchorID := stored["memory_id"].(string)

	linkReq := fmt.Sprintf(`{"jsonrpc":"2.0","method":"store_memory","params":{"agent_id":"a","content":"follow-up note","related_ids":["%s"]},"id":2}`, anchorID)
	linked := call(t, srv, linkReq)
	require.True(t, linked["success"].(bool))

	relReq := fmt.Sprintf(`{"jsonrpc":"2.0","method":"retrieve_related_memories","params":{"memory_id":"%s"},"id":3}`, anchorID)
	result := call(t, srv, relReq)
	assert.True(t, result["success"].(bool))
	assert.Contains(t, result["text"], "follow-up note")
}

func TestHandlePreferences(t *testing.T) {
	srv := newTestServer(t)

	result := call(t, srv, `{"jsonrpc":"2.0","method":"store_user_preference","params":{"key":"theme","value":"dark","category":"appearance"},"id":1}`)
	assert.True(t, result["success"].(bool))

	// Structured values are accepted too.
	result = call(t, srv, `{"jsonrpc":"2.0","method":"store_user_preference","params":{"key":"quiet_hours","value":{"from":22,"to":7}},"id":2}`)
	assert.True(t, result["success"].(bool))

	result = call(t, srv, `{"jsonrpc":"2.0","method":"get_user_preferences","params":{"category":"appearance"},"id":3}`)
	assert.True(t, result["success"].(bool))
	assert.Contains(t, result["text"], "theme: dark")
	assert.NotContains(t, result["text"], "quiet_hours")
}

func TestHandleInteractions(t *testing.T) {
	srv := newTestServer(t)

	result := call(t, srv, `{"jsonrpc":"2.0","method":"store_interaction","params":{"agent_id":"a","user_query":"weather?","agent_response":"sunny","success":true},"id":1}`)
	assert.True(t, result["success"].(bool))
	assert.NotEmpty(t, result["interaction_id"])

	result = call(t, srv, `{"jsonrpc":"2.0","method":"get_recent_interactions","params":{"agent_id":"a"},"id":2}`)
	assert.True(t, result["success"].(bool))
	assert.Contains(t, result["text"], "weather?")
	assert.Contains(t, result["text"], "sunny")
}

func TestHandleDeleteMemory(t *testing.T) {
	srv := newTestServer(t)

	stored := call(t, srv, `{"jsonrpc":"2.0","method":"store_memory","params":{"agent_id":"a","content":"short lived"},"id":1}`)
	id := stored["memory_id"].(string)

	delReq := fmt.Sprintf(`{"jsonrpc":"2.0","method":"delete_memory","params":{"memory_id":"%s"},"id":2}`, id)
	result := call(t, srv, delReq)
	assert.True(t, result["success"].(bool))
	assert.True(t, result["deleted"].(bool))

	// Second delete: success with deleted=false.
	result = call(t, srv, delReq)
	assert.True(t, result["success"].(bool))
	assert.False(t, result["deleted"].(bool))
}

func TestHandleClearMemories_RequiresConfirm(t *testing.T) {
	srv := newTestServer(t)

	call(t, srv, `{"jsonrpc":"2.0","method":"store_memory","params":{"agent_id":"a","content":"to be wiped"},"id":1}`)

	result := call(t, srv, `{"jsonrpc":"2.0","method":"clear_memories","params":{},"id":2}`)
	assert.Contains(t, result["error"], "confirm")

	result = call(t, srv, `{"jsonrpc":"2.0","method":"clear_memories","params":{"confirm":true},"id":3}`)
	assert.True(t, result["success"].(bool))

	retrieved := call(t, srv, `{"jsonrpc":"2.0","method":"retrieve_memories","params":{"query":"wiped"},"id":4}`)
	assert.Equal(t, engine.NoRelevantMemories, retrieved["text"])
}

func TestHandleGraphTools(t *testing.T) {
	srv := newTestServer(t)

	result := call(t, srv, `{"jsonrpc":"2.0","method":"create_entity","params":{"name":"alice","entity_type":"person","observations":["team lead"]},"id":1}`)
	assert.True(t, result["success"].(bool))

	result = call(t, srv, `{"jsonrpc":"2.0","method":"create_relation","params":{"from":"alice","to":"bob","relation_type":"manages"},"id":2}`)
	assert.True(t, result["success"].(bool))

	result = call(t, srv, `{"jsonrpc":"2.0","method":"create_relation","params":{"from":"alice"},"id":3}`)
	assert.Contains(t, result["error"], "relation type")

	result = call(t, srv, `{"jsonrpc":"2.0","method":"search_entities","params":{"query":"team lead"},"id":4}`)
	assert.True(t, result["success"].(bool))
	assert.Equal(t, float64(1), result["total"])
}

func TestHandleUIAndDeviceContext(t *testing.T) {
	srv := newTestServer(t)

	result := call(t, srv, `{"jsonrpc":"2.0","method":"get_ui_context","params":{},"id":1}`)
	assert.True(t, result["success"].(bool))
	assert.Equal(t, engine.NoRecentActivity, result["text"])

	result = call(t, srv, `{"jsonrpc":"2.0","method":"get_device_context","params":{"state_type":"battery"},"id":2}`)
	assert.True(t, result["success"].(bool))
	assert.Equal(t, engine.NoDeviceContext, result["text"])
}

func TestHandleRequest_ProtocolErrors(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	// Malformed JSON.
	resp, err := srv.HandleRequest(ctx, []byte(`{not json`))
	require.NoError(t, err)
	assert.Contains(t, string(resp), fmt.Sprint(mcp.ErrCodeParseError))

	// Wrong protocol version.
	resp, err = srv.HandleRequest(ctx, []byte(`{"jsonrpc":"1.0","method":"store_memory","id":1}`))
	require.NoError(t, err)
	assert.Contains(t, string(resp), fmt.Sprint(mcp.ErrCodeInvalidRequest))

	// Unknown method.
	resp, err = srv.HandleRequest(ctx, []byte(`{"jsonrpc":"2.0","method":"no_such_tool","id":1}`))
	require.NoError(t, err)
	assert.Contains(t, string(resp), fmt.Sprint(mcp.ErrCodeMethodNotFound))
}

func TestMCPLifecycle(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	resp, err := srv.HandleRequest(ctx, []byte(`{"jsonrpc":"2.0","method":"initialize","params":{"protocolVersion":"2024-11-05","clientInfo":{"name":"test","version":"0.1"}},"id":1}`))
	require.NoError(t, err)
	assert.Contains(t, string(resp), `"memoryd"`)
	assert.Contains(t, string(resp), "2024-11-05")

	resp, err = srv.HandleRequest(ctx, []byte(`{"jsonrpc":"2.0","method":"tools/list","id":2}`))
	require.NoError(t, err)
	for _, tool := range []string{
		"store_memory", "retrieve_memories", "retrieve_related_memories",
		"store_user_preference", "get_user_preferences",
		"store_interaction", "get_recent_interactions",
		"get_device_context", "get_ui_context",
		"delete_memory", "clear_memories",
		"create_entity", "create_relation", "search_entities",
	} {
		assert.Contains(t, string(resp), fmt.Sprintf("%q", tool))
	}
}

func TestToolsCall_Envelope(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	req := `{"jsonrpc":"2.0","method":"tools/call","params":{"name":"store_memory","arguments":{"agent_id":"a","content":"via tools/call"}},"id":1}`
	resp, err := srv.HandleRequest(ctx, []byte(req))
	require.NoError(t, err)

	var jsonResp struct {
		Result struct {
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
			IsError bool `json:"isError"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(resp, &jsonResp))
	require.Len(t, jsonResp.Result.Content, 1)
	assert.Equal(t, "text", jsonResp.Result.Content[0].Type)
	assert.False(t, jsonResp.Result.IsError)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(jsonResp.Result.Content[0].Text), &payload))
	assert.True(t, payload["success"].(bool))
}

func TestToolsCall_UnknownTool(t *testing.T) {
	srv := newTestServer(t)

	req := `{"jsonrpc":"2.0","method":"tools/call","params":{"name":"does_not_exist","arguments":{}},"id":1}`
	resp, err := srv.HandleRequest(context.Background(), []byte(req))
	require.NoError(t, err)
	assert.Contains(t, string(resp), "unknown tool")
	assert.Contains(t, string(resp), `"isError":true`)
}
