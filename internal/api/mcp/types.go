// Package mcp implements the JSON-RPC 2.0 tool gateway for the memory
// subsystem. Agents and UI layers invoke memory operations as named tools
// with JSON argument objects; every tool reports failures inside its result
// payload so a malformed call never takes down the session.
package mcp

import (
	"encoding/json"
	"strings"

	"github.com/jinruoxinchen/one-unlimit-os/pkg/types"
)

// StoreMemoryArgs contains arguments for the store_memory tool.
type StoreMemoryArgs struct {
	AgentID    string   `json:"agent_id"`              // Owning agent (required)
	Content    string   `json:"content"`               // Memory content (required)
	Importance *float64 `json:"importance,omitempty"`  // Importance in [0,1]; clamped; nil means 1.0
	Tags       []string `json:"tags,omitempty"`        // User-defined tags
	RelatedIDs []string `json:"related_ids,omitempty"` // Existing memory IDs to link to
}

// importanceOrDefault resolves an optional importance argument. Callers that
// omit the field get full importance, not zero; an explicit 0 is honored.
func importanceOrDefault(p *float64) float64 {
	if p == nil {
		return 1.0
	}
	return *p
}

// UnmarshalJSON accepts "tags" either as a proper JSON array or as a
// JSON-encoded string ("[\"a\",\"b\"]" or "a,b"), which some clients send.
func (a *StoreMemoryArgs) UnmarshalJSON(data []byte) error {
	type Alias StoreMemoryArgs
	aux := &struct {
		Tags json.RawMessage `json:"tags,omitempty"`
		*Alias
	}{
		Alias: (*Alias)(a),
	}
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}
	if aux.Tags == nil {
		return nil
	}
	var tags []string
	if err := json.Unmarshal(aux.Tags, &tags); err == nil {
		a.Tags = tags
		return nil
	}
	var s string
	if err := json.Unmarshal(aux.Tags, &s); err != nil {
		return nil // unrecognised tag formats are ignored rather than fatal
	}
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "[") {
		_ = json.Unmarshal([]byte(s), &tags)
		a.Tags = tags
	} else if s != "" {
		for _, t := range strings.Split(s, ",") {
			if t = strings.TrimSpace(t); t != "" {
				a.Tags = append(a.Tags, t)
			}
		}
	}
	return nil
}

// StoreMemoryResult contains the result of storing a memory.
type StoreMemoryResult struct {
	Success  bool   `json:"success"`
	MemoryID string `json:"memory_id,omitempty"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
}

// RetrieveMemoriesArgs contains arguments for the retrieve_memories tool.
type RetrieveMemoriesArgs struct {
	Query         string   `json:"query"`                    // Natural-language query (required)
	Limit         int      `json:"limit,omitempty"`          // Max results (default 5)
	AgentID       string   `json:"agent_id,omitempty"`       // Restrict to one agent's bucket
	Tags          []string `json:"tags,omitempty"`           // Keep records carrying ANY of these tags
	MinImportance float64  `json:"min_importance,omitempty"` // Importance floor
}

// RetrieveMemoriesResult contains the formatted retrieval text.
type RetrieveMemoriesResult struct {
	Success bool   `json:"success"`
	Text    string `json:"text,omitempty"`
	Error   string `json:"error,omitempty"`
}

// RetrieveRelatedArgs contains arguments for the retrieve_related_memories tool.
type RetrieveRelatedArgs struct {
	MemoryID     string `json:"memory_id"`               // Starting memory ID (required)
	RelationType string `json:"relation_type,omitempty"` // Filter edges by type
}

// RetrieveRelatedResult contains the formatted neighbor listing.
type RetrieveRelatedResult struct {
	Success bool   `json:"success"`
	Text    string `json:"text,omitempty"`
	Error   string `json:"error,omitempty"`
}

// StorePreferenceArgs contains arguments for the store_user_preference tool.
type StorePreferenceArgs struct {
	Key        string      `json:"key"`                  // Preference key (required)
	Value      types.Value `json:"value"`                // Preference value (any JSON shape)
	Category   string      `json:"category,omitempty"`   // Optional grouping category
	Importance *float64    `json:"importance,omitempty"` // Importance in [0,1]; clamped; nil means 1.0
}

// StorePreferenceResult contains the result of storing a preference.
type StorePreferenceResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// GetPreferencesArgs contains arguments for the get_user_preferences tool.
type GetPreferencesArgs struct {
	Category string `json:"category,omitempty"` // Empty returns all preferences
}

// GetPreferencesResult contains the formatted preference listing.
type GetPreferencesResult struct {
	Success bool   `json:"success"`
	Text    string `json:"text,omitempty"`
	Error   string `json:"error,omitempty"`
}

// StoreInteractionArgs contains arguments for the store_interaction tool.
type StoreInteractionArgs struct {
	AgentID       string   `json:"agent_id,omitempty"`
	UserQuery     string   `json:"user_query"`
	AgentResponse string   `json:"agent_response"`
	Success       bool     `json:"success"`              // Whether the exchange succeeded
	Importance    *float64 `json:"importance,omitempty"` // Importance in [0,1]; clamped; nil means 1.0
}

// StoreInteractionResult contains the result of recording an interaction.
type StoreInteractionResult struct {
	Success       bool   `json:"success"`
	InteractionID string `json:"interaction_id,omitempty"`
	Error         string `json:"error,omitempty"`
}

// GetInteractionsArgs contains arguments for the get_recent_interactions tool.
type GetInteractionsArgs struct {
	AgentID string `json:"agent_id,omitempty"` // Empty returns all agents
	Limit   int    `json:"limit,omitempty"`    // Max results (default 10)
}

// GetInteractionsResult contains the formatted interaction listing.
type GetInteractionsResult struct {
	Success bool   `json:"success"`
	Text    string `json:"text,omitempty"`
	Error   string `json:"error,omitempty"`
}

// GetDeviceContextArgs contains arguments for the get_device_context tool.
type GetDeviceContextArgs struct {
	StateType string `json:"state_type,omitempty"` // e.g. "battery"; empty returns all
}

// GetDeviceContextResult contains the formatted device context.
type GetDeviceContextResult struct {
	Success bool   `json:"success"`
	Text    string `json:"text,omitempty"`
	Error   string `json:"error,omitempty"`
}

// GetUIContextArgs contains arguments for the get_ui_context tool.
type GetUIContextArgs struct{}

// GetUIContextResult contains the formatted recent-activity window.
type GetUIContextResult struct {
	Success bool   `json:"success"`
	Text    string `json:"text,omitempty"`
	Error   string `json:"error,omitempty"`
}

// DeleteMemoryArgs contains arguments for the delete_memory tool.
type DeleteMemoryArgs struct {
	MemoryID string `json:"memory_id"` // Memory ID to delete (required)
}

// DeleteMemoryResult contains the result of deleting a memory.
type DeleteMemoryResult struct {
	Success bool   `json:"success"`
	Deleted bool   `json:"deleted"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ClearMemoriesArgs contains arguments for the clear_memories tool.
type ClearMemoriesArgs struct {
	Confirm bool `json:"confirm"` // Must be true; guards against accidental wipes
}

// ClearMemoriesResult contains the result of clearing all memory state.
type ClearMemoriesResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// CreateEntityArgs contains arguments for the create_entity tool.
type CreateEntityArgs struct {
	Name         string   `json:"name"`                   // Entity name, unique (required)
	EntityType   string   `json:"entity_type"`            // e.g. "person", "app", "memory"
	Observations []string `json:"observations,omitempty"` // Free-text facts about the entity
}

// CreateEntityResult contains the created entity.
type CreateEntityResult struct {
	Success bool          `json:"success"`
	Entity  *types.Entity `json:"entity,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// CreateRelationArgs contains arguments for the create_relation tool.
type CreateRelationArgs struct {
	From         string `json:"from"`          // Source entity name (required)
	To           string `json:"to"`            // Target entity name (required)
	RelationType string `json:"relation_type"` // Edge label (required)
}

// CreateRelationResult contains the created relation.
type CreateRelationResult struct {
	Success  bool            `json:"success"`
	Relation *types.Relation `json:"relation,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// SearchEntitiesArgs contains arguments for the search_entities tool.
type SearchEntitiesArgs struct {
	Query string `json:"query"` // Case-insensitive substring (required)
}

// SearchEntitiesResult contains matched entities.
type SearchEntitiesResult struct {
	Success  bool           `json:"success"`
	Entities []types.Entity `json:"entities,omitempty"`
	Total    int            `json:"total"`
	Error    string         `json:"error,omitempty"`
}

// JSONRPCRequest represents a JSON-RPC 2.0 request.
type JSONRPCRequest struct {
	JSONRPC string      `json:"jsonrpc"` // Must be "2.0"
	Method  string      `json:"method"`  // Method name
	Params  interface{} `json:"params"`  // Method parameters
	ID      interface{} `json:"id"`      // Request ID (string, number, or null)
}

// JSONRPCResponse represents a JSON-RPC 2.0 response.
type JSONRPCResponse struct {
	JSONRPC string        `json:"jsonrpc"`
	Result  interface{}   `json:"result,omitempty"`
	Error   *JSONRPCError `json:"error,omitempty"`
	ID      interface{}   `json:"id"`
}

// JSONRPCError represents a JSON-RPC 2.0 error.
type JSONRPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// JSON-RPC error codes
const (
	ErrCodeParseError     = -32700 // Invalid JSON
	ErrCodeInvalidRequest = -32600 // Invalid request object
	ErrCodeMethodNotFound = -32601 // Method not found
	ErrCodeInvalidParams  = -32602 // Invalid method parameters
	ErrCodeInternalError  = -32603 // Internal JSON-RPC error
	ErrCodeServerError    = -32000 // Server error
)

// ---------------------------------------------------------------------------
// Standard MCP protocol types (initialize / tools/list / tools/call)
// ---------------------------------------------------------------------------

// MCPInitializeParams holds the parameters sent by an MCP client in the
// initialize request.
type MCPInitializeParams struct {
	ProtocolVersion string                 `json:"protocolVersion"`
	Capabilities    map[string]interface{} `json:"capabilities,omitempty"`
	ClientInfo      MCPClientInfo          `json:"clientInfo"`
}

// MCPClientInfo identifies the connecting MCP client.
type MCPClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// MCPServerInfo identifies this MCP server.
type MCPServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// MCPServerCapabilities describes what this server supports.
type MCPServerCapabilities struct {
	Tools *MCPToolsCapability `json:"tools,omitempty"`
}

// MCPToolsCapability signals that the server exposes tools.
type MCPToolsCapability struct{}

// MCPInitializeResult is the response to the initialize request.
type MCPInitializeResult struct {
	ProtocolVersion string                `json:"protocolVersion"`
	Capabilities    MCPServerCapabilities `json:"capabilities"`
	ServerInfo      MCPServerInfo         `json:"serverInfo"`
}

// MCPTool describes a single tool exposed via the MCP tools/list endpoint.
type MCPTool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// MCPToolsListResult is the response to the tools/list request.
type MCPToolsListResult struct {
	Tools []MCPTool `json:"tools"`
}

// MCPToolCallParams holds the parameters sent in a tools/call request.
type MCPToolCallParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// MCPToolCallContent is a single content block in a tool call response.
type MCPToolCallContent struct {
	Type string `json:"type"` // always "text" for now
	Text string `json:"text"`
}

// MCPToolCallResult is the response to a tools/call request.
type MCPToolCallResult struct {
	Content []MCPToolCallContent `json:"content"`
	IsError bool                 `json:"isError,omitempty"`
}
