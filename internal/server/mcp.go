package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/knoguchi/graphrag/internal/service"
)

const mcpProtocolVersion = "2024-11-05"

// JSON-RPC error codes.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// toolContent is one content block of a tool call result.
type toolContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// callToolResult is the MCP tool call envelope. Tool failures are
// reported in-band with isError, not as JSON-RPC errors.
type callToolResult struct {
	Content []toolContent `json:"content"`
	IsError bool          `json:"isError"`
}

// MCPServer speaks MCP, a JSON-RPC 2.0 tool protocol, over WebSocket.
type MCPServer struct {
	server   *http.Server
	registry *ToolRegistry
	logger   *slog.Logger
	name     string
	version  string
	upgrader websocket.Upgrader
}

// MCPServerConfig holds configuration for the MCP server.
type MCPServerConfig struct {
	Port   int
	Name   string // serverInfo name reported on initialize
	Logger *slog.Logger
}

// NewMCPServer creates an MCP server exposing the registry's tools.
func NewMCPServer(cfg MCPServerConfig, svc *service.Service, registry *ToolRegistry) *MCPServer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	name := cfg.Name
	if name == "" {
		name = "graphrag"
	}

	s := &MCPServer{
		registry: registry,
		logger:   logger,
		name:     name,
		version:  svc.Version(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// MCP clients are local processes, not browsers.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleWebSocket)
	s.server = &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     mux,
		ReadTimeout: 0, // connections are long-lived
		IdleTimeout: 120 * time.Second,
	}
	return s
}

// Start starts the MCP server and blocks.
func (s *MCPServer) Start() error {
	s.logger.Info("starting MCP server", "address", s.server.Addr, "name", s.name)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("MCP server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the MCP server.
func (s *MCPServer) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down MCP server")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("MCP server shutdown error: %w", err)
	}
	return nil
}

// Handler returns the underlying handler, for tests.
func (s *MCPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *MCPServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err, "remote_addr", r.RemoteAddr)
		return
	}
	defer conn.Close()

	s.logger.Info("MCP client connected", "remote_addr", r.RemoteAddr)
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("MCP connection closed unexpectedly", "error", err)
			}
			return
		}

		resp := s.dispatch(r.Context(), payload)
		if resp == nil {
			continue // notification, no reply
		}
		if err := conn.WriteJSON(resp); err != nil {
			s.logger.Warn("MCP write failed", "error", err)
			return
		}
	}
}

// dispatch routes one raw JSON-RPC message. Returns nil for
// notifications, which get no response.
func (s *MCPServer) dispatch(ctx context.Context, payload []byte) *rpcResponse {
	var req rpcRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return errorResponse(nil, codeParseError, "Parse error")
	}
	if req.Method == "" {
		return errorResponse(req.ID, codeInvalidRequest, "Invalid request: missing method")
	}

	switch req.Method {
	case "initialize":
		return resultResponse(req.ID, map[string]any{
			"protocolVersion": mcpProtocolVersion,
			"capabilities":    map[string]any{"tools": map[string]any{}},
			"serverInfo":      map[string]any{"name": s.name, "version": s.version},
		})
	case "notifications/initialized":
		return nil
	case "tools/list", "getTools":
		return resultResponse(req.ID, map[string]any{"tools": s.toolDescriptors()})
	case "tools/call", "invokeTool":
		return s.callTool(ctx, req)
	default:
		return errorResponse(req.ID, codeMethodNotFound, fmt.Sprintf("Method not found: %s", req.Method))
	}
}

func (s *MCPServer) toolDescriptors() []map[string]any {
	out := make([]map[string]any, 0, len(s.registry.Tools()))
	for _, t := range s.registry.Tools() {
		out = append(out, map[string]any{
			"name":        t.Name,
			"description": t.Description,
			"inputSchema": t.InputSchema,
		})
	}
	return out
}

type callToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

func (s *MCPServer) callTool(ctx context.Context, req rpcRequest) *rpcResponse {
	var params callToolParams
	if err := json.Unmarshal(req.Params, &params); err != nil || params.Name == "" {
		return errorResponse(req.ID, codeInvalidParams, "Invalid params: tool name required")
	}

	if !s.registry.Known(params.Name) {
		return resultResponse(req.ID, toolError(map[string]any{
			"error": map[string]any{
				"code":    codeMethodNotFound,
				"message": fmt.Sprintf("Unknown tool: %s", params.Name),
				"data":    map[string]any{"availableTools": s.registry.Names()},
			},
		}))
	}

	result, err := s.registry.Call(ctx, params.Name, params.Arguments)
	if err != nil {
		s.logger.Warn("tool call failed", "tool", params.Name, "error", err)
		return resultResponse(req.ID, toolError(map[string]any{"error": err.Error()}))
	}
	return resultResponse(req.ID, toolSuccess(result))
}

func toolSuccess(result any) callToolResult {
	return callToolResult{Content: []toolContent{{Type: "text", Text: toolText(result)}}, IsError: false}
}

func toolError(payload any) callToolResult {
	return callToolResult{Content: []toolContent{{Type: "text", Text: toolText(payload)}}, IsError: true}
}

func toolText(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf(`{"error":"marshal failure: %v"}`, err)
	}
	return string(b)
}

func resultResponse(id json.RawMessage, result any) *rpcResponse {
	return &rpcResponse{JSONRPC: "2.0", ID: id, Result: result}
}

func errorResponse(id json.RawMessage, code int, message string) *rpcResponse {
	return &rpcResponse{JSONRPC: "2.0", ID: id, Error: &rpcError{Code: code, Message: message}}
}
