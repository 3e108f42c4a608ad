// Package transport exposes the tool runtime to the chat backend over
// HTTP: tool execution, turn lifecycle, and a websocket feed of tool
// lifecycle events.
package transport

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/HathorNetwork/hathor-playground-sub001/internal/observability"
	"github.com/HathorNetwork/hathor-playground-sub001/internal/runtime"
	"github.com/HathorNetwork/hathor-playground-sub001/pkg/models"
)

// LogStreamer delivers live dev-server log lines until the context is
// canceled. The sandbox client implements it.
type LogStreamer interface {
	StreamLogs(ctx context.Context, handler func(line string)) error
}

// Handler serves the control-plane HTTP API.
type Handler struct {
	rt     *runtime.Runtime
	hub    *Hub
	logs   LogStreamer
	logger *observability.Logger
	mux    *http.ServeMux
}

// NewHandler builds the API handler. hub and logs may be nil when event
// or log streaming is not wired; the matching routes then report the
// missing capability.
func NewHandler(rt *runtime.Runtime, hub *Hub, logs LogStreamer, logger *observability.Logger) *Handler {
	if logger == nil {
		logger = observability.NewLogger(observability.LogConfig{Level: "error"})
	}
	h := &Handler{rt: rt, hub: hub, logs: logs, logger: logger, mux: http.NewServeMux()}

	h.mux.HandleFunc("POST /tools/run", h.runTool)
	h.mux.HandleFunc("POST /tools/batch", h.runBatch)
	h.mux.HandleFunc("GET /tools", h.listTools)
	h.mux.HandleFunc("POST /turns", h.newTurn)
	h.mux.HandleFunc("POST /turns/observe", h.observe)
	h.mux.HandleFunc("POST /turns/continue", h.autoContinue)
	h.mux.HandleFunc("POST /session/clear", h.clear)
	h.mux.HandleFunc("GET /events", h.events)
	h.mux.HandleFunc("GET /logs/stream", h.streamLogs)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if sessionID := r.Header.Get("X-Session-ID"); sessionID != "" {
		r = r.WithContext(observability.AddSessionID(r.Context(), sessionID))
	}
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) runTool(w http.ResponseWriter, r *http.Request) {
	var call models.ToolCall
	if err := json.NewDecoder(r.Body).Decode(&call); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if call.Name == "" {
		httpError(w, http.StatusBadRequest, "name is required")
		return
	}
	writeJSON(w, h.rt.RunTool(r.Context(), call.Name, call.Args))
}

type batchRequest struct {
	Items []struct {
		Tool  string         `json:"tool"`
		Args  map[string]any `json:"args"`
		Label string         `json:"label"`
	} `json:"items"`
}

func (h *Handler) runBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	items := make([]runtime.BatchItem, len(req.Items))
	for i, item := range req.Items {
		items[i] = runtime.BatchItem{Tool: item.Tool, Args: item.Args, Label: item.Label}
	}

	var progress runtime.ProgressFunc
	if h.hub != nil {
		progress = func(p models.BatchProgress) {
			h.hub.Publish(models.ToolEvent{
				ToolName: "batch",
				Stage:    models.ToolEventStarted,
				Output:   p.Label,
				Attempt:  p.Step,
			})
		}
	}
	writeJSON(w, h.rt.RunBatch(r.Context(), items, progress))
}

func (h *Handler) listTools(w http.ResponseWriter, r *http.Request) {
	type toolInfo struct {
		Name        string          `json:"name"`
		Description string          `json:"description"`
		Schema      json.RawMessage `json:"schema,omitempty"`
	}
	registry := h.rt.Registry()
	var tools []toolInfo
	for _, name := range registry.Names() {
		tool, ok := registry.Get(name)
		if !ok {
			continue
		}
		tools = append(tools, toolInfo{
			Name:        tool.Name(),
			Description: tool.Description(),
			Schema:      tool.Schema(),
		})
	}
	writeJSON(w, map[string]any{"tools": tools})
}

func (h *Handler) newTurn(w http.ResponseWriter, r *http.Request) {
	h.rt.OnNewTurn()
	writeJSON(w, map[string]any{"gate": h.rt.GateState()})
}

type observeRequest struct {
	Text string `json:"text"`
}

func (h *Handler) observe(w http.ResponseWriter, r *http.Request) {
	var req observeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	state := h.rt.ObserveAssistantText(req.Text)
	writeJSON(w, map[string]any{"gate": state})
}

func (h *Handler) autoContinue(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"allowed": h.rt.CanAutoContinue()})
}

func (h *Handler) clear(w http.ResponseWriter, r *http.Request) {
	h.rt.OnClear()
	writeJSON(w, map[string]any{"gate": h.rt.GateState()})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The chat backend is the only caller; it connects server-to-server.
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (h *Handler) events(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		httpError(w, http.StatusNotImplemented, "event streaming is not configured")
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	events, cancel := h.hub.Subscribe()
	defer cancel()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		}
	}
}

// streamLogs proxies the sandbox's dev-server log feed to the caller
// over a websocket, one text message per line.
func (h *Handler) streamLogs(w http.ResponseWriter, r *http.Request) {
	if h.logs == nil {
		httpError(w, http.StatusNotImplemented, "sandbox log streaming is not configured")
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	err = h.logs.StreamLogs(ctx, func(line string) {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
			cancel()
		}
	})
	if err != nil && ctx.Err() == nil {
		h.logger.Warn(ctx, "sandbox log stream ended", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func httpError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
