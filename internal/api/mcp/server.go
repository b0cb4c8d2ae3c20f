package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/jinruoxinchen/one-unlimit-os/internal/engine"
)

// Server exposes the memory subsystem over JSON-RPC 2.0. Tool handler
// failures are reported inside the result payload (success=false plus an
// error string) so a bad call degrades to an error message instead of a
// protocol fault; JSON-RPC error responses are reserved for malformed
// frames and unknown methods.
type Server struct {
	service   *engine.Service
	sessionID string // unique per server lifetime, stderr diagnostics only
}

// NewServer creates a gateway bound to a memory service.
func NewServer(service *engine.Service) *Server {
	s := &Server{
		service:   service,
		sessionID: uuid.New().String(),
	}
	log.Printf("memoryd-mcp: session ID: %s", s.sessionID)
	return s
}

// SessionID returns the gateway session identifier.
func (s *Server) SessionID() string {
	return s.sessionID
}

// HandleRequest processes a JSON-RPC 2.0 request and returns a response.
// This is the main entry point for protocol handling.
func (s *Server) HandleRequest(ctx context.Context, requestJSON []byte) ([]byte, error) {
	var req JSONRPCRequest
	if err := json.Unmarshal(requestJSON, &req); err != nil {
		return s.errorResponse(nil, ErrCodeParseError, "Parse error", err.Error())
	}

	if req.JSONRPC != "2.0" {
		return s.errorResponse(req.ID, ErrCodeInvalidRequest, "Invalid JSON-RPC version", nil)
	}

	var result interface{}
	var err error

	switch req.Method {
	// Standard MCP protocol methods
	case "initialize":
		result, err = s.handleInitialize(ctx, req.Params)
	case "initialized":
		// Notification, no response body required.
		result = map[string]interface{}{}
	case "tools/list":
		result, err = s.handleToolsList(ctx, req.Params)
	case "tools/call":
		result, err = s.handleToolsCall(ctx, req.Params)

	// Native JSON-RPC methods (kept for direct callers that skip tools/call)
	case "store_memory", "retrieve_memories", "retrieve_related_memories",
		"store_user_preference", "get_user_preferences",
		"store_interaction", "get_recent_interactions",
		"get_device_context", "get_ui_context",
		"delete_memory", "clear_memories",
		"create_entity", "create_relation", "search_entities":
		result = s.dispatchTool(ctx, req.Method, req.Params)
	default:
		return s.errorResponse(req.ID, ErrCodeMethodNotFound, fmt.Sprintf("Method not found: %s", req.Method), nil)
	}

	if err != nil {
		return s.errorResponse(req.ID, ErrCodeServerError, err.Error(), nil)
	}

	return s.successResponse(req.ID, result)
}

// dispatchTool routes a tool name to its handler. Every handler returns a
// payload struct; failures are encoded in the payload, never as an error.
func (s *Server) dispatchTool(ctx context.Context, name string, params interface{}) interface{} {
	switch name {
	case "store_memory":
		return s.handleStoreMemory(ctx, params)
	case "retrieve_memories":
		return s.handleRetrieveMemories(ctx, params)
	case "retrieve_related_memories":
		return s.handleRetrieveRelated(ctx, params)
	case "store_user_preference":
		return s.handleStorePreference(ctx, params)
	case "get_user_preferences":
		return s.handleGetPreferences(ctx, params)
	case "store_interaction":
		return s.handleStoreInteraction(ctx, params)
	case "get_recent_interactions":
		return s.handleGetInteractions(ctx, params)
	case "get_device_context":
		return s.handleGetDeviceContext(ctx, params)
	case "get_ui_context":
		return s.handleGetUIContext(ctx, params)
	case "delete_memory":
		return s.handleDeleteMemory(ctx, params)
	case "clear_memories":
		return s.handleClearMemories(ctx, params)
	case "create_entity":
		return s.handleCreateEntity(ctx, params)
	case "create_relation":
		return s.handleCreateRelation(ctx, params)
	case "search_entities":
		return s.handleSearchEntities(ctx, params)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Tool handlers
// ---------------------------------------------------------------------------

func (s *Server) handleStoreMemory(ctx context.Context, params interface{}) *StoreMemoryResult {
	var args StoreMemoryArgs
	if err := s.unmarshalParams(params, &args); err != nil {
		return &StoreMemoryResult{Error: err.Error()}
	}
	id, err := s.service.StoreMemory(args.AgentID, args.Content, importanceOrDefault(args.Importance), args.Tags, args.RelatedIDs)
	if err != nil {
		return &StoreMemoryResult{Error: err.Error()}
	}
	return &StoreMemoryResult{
		Success:  true,
		MemoryID: id,
		Message:  "Memory stored. Similarity ranking becomes available once the embedding arrives.",
	}
}

func (s *Server) handleRetrieveMemories(ctx context.Context, params interface{}) *RetrieveMemoriesResult {
	var args RetrieveMemoriesArgs
	if err := s.unmarshalParams(params, &args); err != nil {
		return &RetrieveMemoriesResult{Error: err.Error()}
	}
	if args.Query == "" {
		return &RetrieveMemoriesResult{Error: "query is required"}
	}
	text := s.service.RetrieveRelevant(ctx, args.Query, args.Limit, args.AgentID, args.Tags, args.MinImportance)
	return &RetrieveMemoriesResult{Success: true, Text: text}
}

func (s *Server) handleRetrieveRelated(ctx context.Context, params interface{}) *RetrieveRelatedResult {
	var args RetrieveRelatedArgs
	if err := s.unmarshalParams(params, &args); err != nil {
		return &RetrieveRelatedResult{Error: err.Error()}
	}
	if args.MemoryID == "" {
		return &RetrieveRelatedResult{Error: "memory_id is required"}
	}
	text := s.service.RetrieveRelated(args.MemoryID, args.RelationType)
	return &RetrieveRelatedResult{Success: true, Text: text}
}

func (s *Server) handleStorePreference(ctx context.Context, params interface{}) *StorePreferenceResult {
	var args StorePreferenceArgs
	if err := s.unmarshalParams(params, &args); err != nil {
		return &StorePreferenceResult{Error: err.Error()}
	}
	if err := s.service.StorePreference(args.Key, args.Value, args.Category, importanceOrDefault(args.Importance)); err != nil {
		return &StorePreferenceResult{Error: err.Error()}
	}
	return &StorePreferenceResult{Success: true, Message: fmt.Sprintf("Preference %q stored.", args.Key)}
}

func (s *Server) handleGetPreferences(ctx context.Context, params interface{}) *GetPreferencesResult {
	var args GetPreferencesArgs
	if err := s.unmarshalParams(params, &args); err != nil {
		return &GetPreferencesResult{Error: err.Error()}
	}
	return &GetPreferencesResult{Success: true, Text: s.service.Preferences(args.Category)}
}

func (s *Server) handleStoreInteraction(ctx context.Context, params interface{}) *StoreInteractionResult {
	var args StoreInteractionArgs
	if err := s.unmarshalParams(params, &args); err != nil {
		return &StoreInteractionResult{Error: err.Error()}
	}
	id, err := s.service.StoreInteraction(args.AgentID, args.UserQuery, args.AgentResponse, args.Success, importanceOrDefault(args.Importance))
	if err != nil {
		return &StoreInteractionResult{Error: err.Error()}
	}
	return &StoreInteractionResult{Success: true, InteractionID: id}
}

func (s *Server) handleGetInteractions(ctx context.Context, params interface{}) *GetInteractionsResult {
	var args GetInteractionsArgs
	if err := s.unmarshalParams(params, &args); err != nil {
		return &GetInteractionsResult{Error: err.Error()}
	}
	return &GetInteractionsResult{Success: true, Text: s.service.RecentInteractions(args.AgentID, args.Limit)}
}

func (s *Server) handleGetDeviceContext(ctx context.Context, params interface{}) *GetDeviceContextResult {
	var args GetDeviceContextArgs
	if err := s.unmarshalParams(params, &args); err != nil {
		return &GetDeviceContextResult{Error: err.Error()}
	}
	return &GetDeviceContextResult{Success: true, Text: s.service.DeviceContext(args.StateType)}
}

func (s *Server) handleGetUIContext(ctx context.Context, params interface{}) *GetUIContextResult {
	var args GetUIContextArgs
	if err := s.unmarshalParams(params, &args); err != nil {
		return &GetUIContextResult{Error: err.Error()}
	}
	return &GetUIContextResult{Success: true, Text: s.service.UIContext()}
}

func (s *Server) handleDeleteMemory(ctx context.Context, params interface{}) *DeleteMemoryResult {
	var args DeleteMemoryArgs
	if err := s.unmarshalParams(params, &args); err != nil {
		return &DeleteMemoryResult{Error: err.Error()}
	}
	if args.MemoryID == "" {
		return &DeleteMemoryResult{Error: "memory_id is required"}
	}
	deleted := s.service.DeleteMemory(args.MemoryID)
	msg := "Memory deleted."
	if !deleted {
		msg = "No memory with that ID; nothing to delete."
	}
	return &DeleteMemoryResult{Success: true, Deleted: deleted, Message: msg}
}

func (s *Server) handleClearMemories(ctx context.Context, params interface{}) *ClearMemoriesResult {
	var args ClearMemoriesArgs
	if err := s.unmarshalParams(params, &args); err != nil {
		return &ClearMemoriesResult{Error: err.Error()}
	}
	if !args.Confirm {
		return &ClearMemoriesResult{Error: "clear_memories wipes all stored state; pass confirm=true to proceed"}
	}
	s.service.ClearAll()
	return &ClearMemoriesResult{Success: true, Message: "All memory state cleared."}
}

func (s *Server) handleCreateEntity(ctx context.Context, params interface{}) *CreateEntityResult {
	var args CreateEntityArgs
	if err := s.unmarshalParams(params, &args); err != nil {
		return &CreateEntityResult{Error: err.Error()}
	}
	entity, err := s.service.CreateEntity(args.Name, args.EntityType, args.Observations)
	if err != nil {
		return &CreateEntityResult{Error: err.Error()}
	}
	return &CreateEntityResult{Success: true, Entity: &entity}
}

func (s *Server) handleCreateRelation(ctx context.Context, params interface{}) *CreateRelationResult {
	var args CreateRelationArgs
	if err := s.unmarshalParams(params, &args); err != nil {
		return &CreateRelationResult{Error: err.Error()}
	}
	relation, err := s.service.CreateRelation(args.From, args.To, args.RelationType)
	if err != nil {
		return &CreateRelationResult{Error: err.Error()}
	}
	return &CreateRelationResult{Success: true, Relation: &relation}
}

func (s *Server) handleSearchEntities(ctx context.Context, params interface{}) *SearchEntitiesResult {
	var args SearchEntitiesArgs
	if err := s.unmarshalParams(params, &args); err != nil {
		return &SearchEntitiesResult{Error: err.Error()}
	}
	if args.Query == "" {
		return &SearchEntitiesResult{Error: "query is required"}
	}
	entities := s.service.SearchEntities(args.Query)
	return &SearchEntitiesResult{Success: true, Entities: entities, Total: len(entities)}
}

// ---------------------------------------------------------------------------
// Standard MCP protocol handlers
// ---------------------------------------------------------------------------

// handleInitialize handles the MCP initialize handshake.
func (s *Server) handleInitialize(ctx context.Context, params interface{}) (interface{}, error) {
	return MCPInitializeResult{
		ProtocolVersion: "2024-11-05",
		Capabilities: MCPServerCapabilities{
			Tools: &MCPToolsCapability{},
		},
		ServerInfo: MCPServerInfo{
			Name:    "memoryd",
			Version: "1.0.0",
		},
	}, nil
}

// handleToolsList returns the list of all tools this server exposes.
func (s *Server) handleToolsList(ctx context.Context, params interface{}) (interface{}, error) {
	return MCPToolsListResult{Tools: s.buildToolsList()}, nil
}

// handleToolsCall dispatches a tools/call request and wraps the tool payload
// in the MCP content envelope.
func (s *Server) handleToolsCall(ctx context.Context, params interface{}) (interface{}, error) {
	var p MCPToolCallParams
	if err := s.unmarshalParams(params, &p); err != nil {
		return nil, err
	}

	// Re-marshal arguments so handlers see the same shape as native calls.
	argsJSON, err := json.Marshal(p.Arguments)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal arguments: %w", err)
	}
	var rawParams interface{}
	if err := json.Unmarshal(argsJSON, &rawParams); err != nil {
		return nil, fmt.Errorf("failed to unmarshal arguments: %w", err)
	}

	result := s.dispatchTool(ctx, p.Name, rawParams)
	if result == nil {
		return &MCPToolCallResult{
			Content: []MCPToolCallContent{{Type: "text", Text: fmt.Sprintf("unknown tool: %s", p.Name)}},
			IsError: true,
		}, nil
	}

	text, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	return &MCPToolCallResult{
		Content: []MCPToolCallContent{{Type: "text", Text: string(text)}},
	}, nil
}

// buildToolsList returns the canonical list of MCP tool definitions.
func (s *Server) buildToolsList() []MCPTool {
	str := func(desc string) map[string]interface{} {
		return map[string]interface{}{"type": "string", "description": desc}
	}
	num := func(desc string) map[string]interface{} {
		return map[string]interface{}{"type": "number", "description": desc}
	}
	integer := func(desc string) map[string]interface{} {
		return map[string]interface{}{"type": "integer", "description": desc}
	}
	boolean := func(desc string) map[string]interface{} {
		return map[string]interface{}{"type": "boolean", "description": desc}
	}
	strArray := func(desc string) map[string]interface{} {
		return map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}, "description": desc}
	}

	return []MCPTool{
		{
			Name:        "store_memory",
			Description: "Store a new memory for an agent. Returns immediately with the new memory ID; the embedding used for similarity ranking is computed asynchronously.",
			InputSchema: map[string]interface{}{
				"type":     "object",
				"required": []string{"agent_id", "content"},
				"properties": map[string]interface{}{
					"agent_id":    str("Owning agent ID (required)"),
					"content":     str("The memory content to store (required)"),
					"importance":  num("Importance in [0,1]; out-of-range values are clamped"),
					"tags":        strArray("Optional tags for categorization and filtering"),
					"related_ids": strArray("Existing memory IDs to link the new memory to"),
				},
			},
		},
		{
			Name:        "retrieve_memories",
			Description: "Retrieve memories ranked by semantic similarity to a query. Optional filters: owning agent, tags (any-match), and an importance floor. Returns formatted text; never errors when nothing matches.",
			InputSchema: map[string]interface{}{
				"type":     "object",
				"required": []string{"query"},
				"properties": map[string]interface{}{
					"query":          str("Natural-language query (required)"),
					"limit":          integer("Max results (default 5)"),
					"agent_id":       str("Restrict results to this agent's memories"),
					"tags":           strArray("Keep only memories carrying at least one of these tags"),
					"min_importance": num("Drop memories below this importance"),
				},
			},
		},
		{
			Name:        "retrieve_related_memories",
			Description: "Follow relationship edges from a memory and return its graph neighbors, formatted with the edge direction and type.",
			InputSchema: map[string]interface{}{
				"type":     "object",
				"required": []string{"memory_id"},
				"properties": map[string]interface{}{
					"memory_id":     str("Starting memory ID (required)"),
					"relation_type": str("Only follow edges of this type; empty follows all"),
				},
			},
		},
		{
			Name:        "store_user_preference",
			Description: "Store or update a user preference. The value can be any JSON shape. Same key overwrites.",
			InputSchema: map[string]interface{}{
				"type":     "object",
				"required": []string{"key", "value"},
				"properties": map[string]interface{}{
					"key":        str("Preference key (required)"),
					"value":      map[string]interface{}{"description": "Preference value; any JSON shape"},
					"category":   str("Optional grouping category, e.g. 'appearance'"),
					"importance": num("Importance in [0,1]"),
				},
			},
		},
		{
			Name:        "get_user_preferences",
			Description: "List stored user preferences, optionally filtered to one category.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"category": str("Category to filter by; empty returns all preferences"),
				},
			},
		},
		{
			Name:        "store_interaction",
			Description: "Record a user-query/agent-response exchange for later recall.",
			InputSchema: map[string]interface{}{
				"type":     "object",
				"required": []string{"user_query", "agent_response"},
				"properties": map[string]interface{}{
					"agent_id":       str("Agent that handled the exchange"),
					"user_query":     str("What the user asked"),
					"agent_response": str("What the agent answered"),
					"success":        boolean("Whether the exchange succeeded"),
					"importance":     num("Importance in [0,1]"),
				},
			},
		},
		{
			Name:        "get_recent_interactions",
			Description: "List recent interactions newest first, optionally filtered to one agent.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"agent_id": str("Agent to filter by; empty returns all agents"),
					"limit":    integer("Max results (default 10)"),
				},
			},
		},
		{
			Name:        "get_device_context",
			Description: "Return current device context snapshots (battery, connectivity, and so on), optionally limited to one state type.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"state_type": str("State type to return, e.g. 'battery'; empty returns all"),
				},
			},
		},
		{
			Name:        "get_ui_context",
			Description: "Return the recent UI/system observation window (newest first) so an agent can understand what the user is currently doing.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name:        "delete_memory",
			Description: "Delete one memory by ID, including its vector index entry and graph node. Deleting an unknown ID is not an error.",
			InputSchema: map[string]interface{}{
				"type":     "object",
				"required": []string{"memory_id"},
				"properties": map[string]interface{}{
					"memory_id": str("Memory ID to delete (required)"),
				},
			},
		},
		{
			Name:        "clear_memories",
			Description: "Wipe all stored state: every agent's memories, the vector index, the relationship graph, the observation buffer, and all categorical stores. Requires confirm=true.",
			InputSchema: map[string]interface{}{
				"type":     "object",
				"required": []string{"confirm"},
				"properties": map[string]interface{}{
					"confirm": boolean("Must be true to proceed"),
				},
			},
		},
		{
			Name:        "create_entity",
			Description: "Create or overwrite an entity in the relationship graph. Entity names are unique; storing an existing name replaces it.",
			InputSchema: map[string]interface{}{
				"type":     "object",
				"required": []string{"name"},
				"properties": map[string]interface{}{
					"name":         str("Entity name, unique across the graph (required)"),
					"entity_type":  str("Entity type, e.g. 'person', 'app', 'memory'"),
					"observations": strArray("Free-text facts about the entity"),
				},
			},
		},
		{
			Name:        "create_relation",
			Description: "Create a directed, typed edge between two entities. Missing endpoints are created as placeholder entities.",
			InputSchema: map[string]interface{}{
				"type":     "object",
				"required": []string{"from", "to", "relation_type"},
				"properties": map[string]interface{}{
					"from":          str("Source entity name (required)"),
					"to":            str("Target entity name (required)"),
					"relation_type": str("Edge label, e.g. 'related_to' (required)"),
				},
			},
		},
		{
			Name:        "search_entities",
			Description: "Case-insensitive substring search over entity names and observations.",
			InputSchema: map[string]interface{}{
				"type":     "object",
				"required": []string{"query"},
				"properties": map[string]interface{}{
					"query": str("Substring to search for (required)"),
				},
			},
		},
	}
}

// unmarshalParams unmarshals JSON-RPC parameters into a typed struct.
func (s *Server) unmarshalParams(params interface{}, dest interface{}) error {
	data, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to marshal params: %w", err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to unmarshal params: %w", err)
	}
	return nil
}

// successResponse creates a JSON-RPC success response.
func (s *Server) successResponse(id interface{}, result interface{}) ([]byte, error) {
	resp := JSONRPCResponse{
		JSONRPC: "2.0",
		Result:  result,
		ID:      id,
	}
	return json.Marshal(resp)
}

// errorResponse creates a JSON-RPC error response.
func (s *Server) errorResponse(id interface{}, code int, message string, data interface{}) ([]byte, error) {
	resp := JSONRPCResponse{
		JSONRPC: "2.0",
		Error: &JSONRPCError{
			Code:    code,
			Message: message,
			Data:    data,
		},
		ID: id,
	}
	return json.Marshal(resp)
}
