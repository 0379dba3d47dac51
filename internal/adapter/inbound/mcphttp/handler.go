// Package mcphttp is the inbound HTTP transport: the JSON-RPC dispatcher on
// POST /, the SSE capability stream on GET /, and the operational endpoints.
package mcphttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/cardapiodigital/cardapio-mcp/internal/usecase"
	"github.com/cardapiodigital/cardapio-mcp/pkg/shared/mcpjsonrpc"
)

// ProtocolVersion is the MCP protocol revision announced in handshakes.
const ProtocolVersion = "2024-11-05"

// knownEndpoints is the endpoint list reported on 404s and in discovery.
var knownEndpoints = []string{
	"GET / (SSE stream)",
	"POST / (JSON-RPC)",
	"GET /health",
	"GET /test",
	"GET /.well-known/mcp",
}

// StorePinger is the slice of the catalog store the transport needs for the
// health check.
type StorePinger interface {
	Ping(ctx context.Context) error
}

// Options carries the static identity and policy of the transport.
type Options struct {
	ServiceName string
	Version     string
	// AuthToken enables the bearer gate when non-empty.
	AuthToken string
	// KeepAliveInterval is the SSE keep-alive period.
	KeepAliveInterval time.Duration
}

// Handler holds dependencies for the HTTP handlers.
type Handler struct {
	toolset *usecase.Toolset
	store   StorePinger
	opts    Options
	logger  *slog.Logger
}

// NewHandler creates a new Handler.
func NewHandler(toolset *usecase.Toolset, store StorePinger, opts Options, logger *slog.Logger) *Handler {
	if opts.KeepAliveInterval <= 0 {
		opts.KeepAliveInterval = 30 * time.Second
	}
	return &Handler{
		toolset: toolset,
		store:   store,
		opts:    opts,
		logger:  logger.With("component", "mcphttp_handler"),
	}
}

// Routes builds the route table and wraps it in the bearer gate.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", h.handleStream)
	mux.HandleFunc("POST /{$}", h.handleRPC)
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /test", h.handleSelfTest)
	mux.HandleFunc("GET /.well-known/mcp", h.handleDiscovery)
	mux.HandleFunc("/", h.handleNotFound)
	return h.requireBearer(mux)
}

// requireBearer enforces the static bearer token on every request except the
// four public endpoints. Equality is exact; failures carry no internals.
func (h *Handler) requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.opts.AuthToken == "" || isPublicPath(r) {
			next.ServeHTTP(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer "+h.opts.AuthToken {
			h.logger.Warn("Rejected unauthenticated request.", slog.String("path", r.URL.Path))
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isPublicPath(r *http.Request) bool {
	if r.URL.Path == "/" && r.Method == http.MethodGet {
		return true
	}
	switch r.URL.Path {
	case "/health", "/test", "/.well-known/mcp":
		return true
	}
	return false
}

// handleRPC implements POST /: decode the envelope, dispatch, answer with
// HTTP 200 regardless of RPC-level success.
func (h *Handler) handleRPC(w http.ResponseWriter, r *http.Request) {
	var req mcpjsonrpc.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusOK, mcpjsonrpc.NewError(nil, mcpjsonrpc.CodeParseError, "parse error: "+err.Error()))
		return
	}
	defer r.Body.Close()

	if req.Version != mcpjsonrpc.Version {
		h.writeJSON(w, http.StatusOK, mcpjsonrpc.NewError(req.ID, mcpjsonrpc.CodeInvalidRequest, "invalid request: jsonrpc must be \"2.0\""))
		return
	}

	h.writeJSON(w, http.StatusOK, h.dispatch(r.Context(), req))
}

// dispatch routes a decoded request to the handshake, the tool enumeration or
// a tool invocation. A panic anywhere below becomes a generic internal error
// response instead of killing the connection.
func (h *Handler) dispatch(ctx context.Context, req mcpjsonrpc.Request) (resp mcpjsonrpc.Response) {
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error("Panic in RPC dispatch.", slog.String("method", req.Method), slog.Any("panic", rec))
			resp = mcpjsonrpc.NewError(req.ID, mcpjsonrpc.CodeInternalError, "internal server error")
		}
	}()

	switch req.Method {
	case "initialize":
		return mcpjsonrpc.NewResult(req.ID, h.handshakeResult())
	case "tools/list":
		return mcpjsonrpc.NewResult(req.ID, map[string]any{"tools": h.toolset.Definitions()})
	case "tools/call":
		return h.callTool(ctx, req)
	default:
		return mcpjsonrpc.NewError(req.ID, mcpjsonrpc.CodeMethodNotFound, "method not found: "+req.Method)
	}
}

func (h *Handler) callTool(ctx context.Context, req mcpjsonrpc.Request) mcpjsonrpc.Response {
	var params mcpjsonrpc.CallToolParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return mcpjsonrpc.NewError(req.ID, mcpjsonrpc.CodeInvalidParams, "invalid params: "+err.Error())
	}

	// A dropped client connection must not abort an in-flight store query;
	// the call runs to completion either way.
	result, err := h.toolset.Call(context.WithoutCancel(ctx), params.Name, params.Arguments)
	switch {
	case errors.Is(err, usecase.ErrToolNotFound):
		return mcpjsonrpc.NewError(req.ID, mcpjsonrpc.CodeServerErrorToolNotFound, err.Error())
	case err != nil:
		return mcpjsonrpc.NewError(req.ID, mcpjsonrpc.CodeServerErrorToolFailed, err.Error())
	}
	return mcpjsonrpc.NewResult(req.ID, result)
}

// handshakeResult is the static protocol/server/capability info shared by
// initialize, the SSE handshake event and discovery.
func (h *Handler) handshakeResult() map[string]any {
	return map[string]any{
		"protocolVersion": ProtocolVersion,
		"capabilities":    map[string]any{"tools": map[string]any{}},
		"serverInfo": map[string]any{
			"name":    h.opts.ServiceName,
			"version": h.opts.Version,
		},
	}
}

// handleStream implements GET /: emit one handshake event, then a keep-alive
// comment on a fixed interval until the client goes away. The ticker lives
// exactly as long as the request context.
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	handshake, err := json.Marshal(h.handshakeResult())
	if err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	fmt.Fprintf(w, "event: handshake\ndata: %s\n\n", handshake)
	flusher.Flush()

	h.logger.Debug("SSE stream opened.")
	ticker := time.NewTicker(h.opts.KeepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			h.logger.Debug("SSE stream closed by client.")
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// handleHealth implements GET /health with one trivial store query.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"service":   h.opts.ServiceName,
		"version":   h.opts.Version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if err := h.store.Ping(r.Context()); err != nil {
		h.logger.Error("Health check failed.", slog.Any("error", err))
		body["status"] = "unhealthy"
		body["database"] = "error"
		body["erro"] = err.Error()
		h.writeJSON(w, http.StatusInternalServerError, body)
		return
	}
	body["status"] = "ok"
	body["database"] = "connected"
	h.writeJSON(w, http.StatusOK, body)
}

// handleSelfTest implements GET /test: run the product search tool with fixed
// sample arguments and report the raw result for diagnostics.
func (h *Handler) handleSelfTest(w http.ResponseWriter, r *http.Request) {
	args := map[string]any{"limite": 3}
	result, err := h.toolset.Call(r.Context(), usecase.ToolSearchProducts, args)
	if err != nil {
		h.writeJSON(w, http.StatusInternalServerError, map[string]any{
			"teste": usecase.ToolSearchProducts,
			"erro":  err.Error(),
		})
		return
	}

	var payload json.RawMessage
	if len(result.Content) > 0 {
		if text, ok := result.Content[0].(mcp.TextContent); ok {
			payload = json.RawMessage(text.Text)
		}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"teste":      usecase.ToolSearchProducts,
		"argumentos": args,
		"resultado":  payload,
	})
}

// handleDiscovery implements GET /.well-known/mcp, the static capability
// descriptor used by clients before connecting.
func (h *Handler) handleDiscovery(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"protocolVersion": ProtocolVersion,
		"serverInfo": map[string]any{
			"name":    h.opts.ServiceName,
			"version": h.opts.Version,
		},
		"capabilities": map[string]any{"tools": map[string]any{}},
		"endpoints":    knownEndpoints,
		"authentication": map[string]any{
			"type":     "bearer",
			"required": h.opts.AuthToken != "",
		},
	})
}

func (h *Handler) handleNotFound(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusNotFound, map[string]any{
		"erro":      fmt.Sprintf("endpoint não encontrado: %s %s", r.Method, r.URL.Path),
		"endpoints": knownEndpoints,
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("Failed to encode JSON response.", slog.Any("error", err))
	}
}
