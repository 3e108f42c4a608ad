package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/HathorNetwork/hathor-playground-sub001/internal/config"
	"github.com/HathorNetwork/hathor-playground-sub001/internal/runtime"
	"github.com/HathorNetwork/hathor-playground-sub001/pkg/models"
)

type echoTool struct{}

func (echoTool) Name() string        { return "echo" }
func (echoTool) Description() string { return "Echo the message argument back." }
func (echoTool) Schema() []byte      { return nil }
func (echoTool) Mutates() bool       { return true }

func (echoTool) Execute(ctx context.Context, args map[string]any) (models.ToolResult, error) {
	msg, _ := args["message"].(string)
	return models.Ok("echo: "+msg, map[string]string{"message": msg}), nil
}

func testServer(t *testing.T) (*httptest.Server, *Hub) {
	t.Helper()
	hub := NewHub()
	rt := runtime.New(runtime.Options{Config: config.Default(), Events: hub.Publish})
	rt.Register(echoTool{})
	server := httptest.NewServer(NewHandler(rt, hub, nil, nil))
	t.Cleanup(server.Close)
	return server, hub
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func openTurn(t *testing.T, server *httptest.Server) {
	t.Helper()
	postJSON(t, server.URL+"/turns", nil).Body.Close()
	postJSON(t, server.URL+"/turns/observe", map[string]string{
		"text": "## The Plan\n1. echo",
	}).Body.Close()
}

func TestRunToolEndpoint(t *testing.T) {
	server, _ := testServer(t)
	openTurn(t, server)

	resp := postJSON(t, server.URL+"/tools/run", map[string]any{
		"name": "echo",
		"args": map[string]any{"message": "hi"},
	})
	defer resp.Body.Close()

	var res models.ToolResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatal(err)
	}
	if !res.Success || res.Message != "echo: hi" {
		t.Errorf("unexpected envelope: %+v", res)
	}
}

func TestRunToolEndpointGated(t *testing.T) {
	server, _ := testServer(t)

	resp := postJSON(t, server.URL+"/tools/run", map[string]any{"name": "echo"})
	defer resp.Body.Close()

	// Policy rejections are valid envelopes, not HTTP errors.
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var res models.ToolResult
	json.NewDecoder(resp.Body).Decode(&res)
	if res.Success {
		t.Error("expected a gate rejection envelope")
	}
}

func TestRunToolEndpointBadRequest(t *testing.T) {
	server, _ := testServer(t)

	resp := postJSON(t, server.URL+"/tools/run", map[string]any{"args": map[string]any{}})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for a missing name, got %d", resp.StatusCode)
	}
}

func TestListToolsEndpoint(t *testing.T) {
	server, _ := testServer(t)

	resp, err := http.Get(server.URL + "/tools")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var payload struct {
		Tools []struct {
			Name        string `json:"name"`
			Description string `json:"description"`
		} `json:"tools"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatal(err)
	}
	if len(payload.Tools) != 1 || payload.Tools[0].Name != "echo" {
		t.Errorf("unexpected tool list: %+v", payload.Tools)
	}
}

func TestTurnLifecycleEndpoints(t *testing.T) {
	server, _ := testServer(t)

	resp := postJSON(t, server.URL+"/turns", nil)
	var state map[string]string
	json.NewDecoder(resp.Body).Decode(&state)
	resp.Body.Close()
	if state["gate"] != "planning" {
		t.Errorf("expected planning after a new turn, got %q", state["gate"])
	}

	resp = postJSON(t, server.URL+"/turns/observe", map[string]string{"text": "## The Plan"})
	json.NewDecoder(resp.Body).Decode(&state)
	resp.Body.Close()
	if state["gate"] != "execution" {
		t.Errorf("expected execution after the plan marker, got %q", state["gate"])
	}

	resp = postJSON(t, server.URL+"/session/clear", nil)
	json.NewDecoder(resp.Body).Decode(&state)
	resp.Body.Close()
	if state["gate"] != "idle" {
		t.Errorf("expected idle after clear, got %q", state["gate"])
	}
}

func TestAutoContinueEndpoint(t *testing.T) {
	server, _ := testServer(t)
	postJSON(t, server.URL+"/turns", nil).Body.Close()

	resp := postJSON(t, server.URL+"/turns/continue", nil)
	defer resp.Body.Close()
	var payload map[string]bool
	json.NewDecoder(resp.Body).Decode(&payload)
	if !payload["allowed"] {
		t.Error("expected the first continuation to be allowed")
	}
}

func TestEventsWebsocket(t *testing.T) {
	server, _ := testServer(t)
	openTurn(t, server)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	postJSON(t, server.URL+"/tools/run", map[string]any{
		"name": "echo",
		"args": map[string]any{"message": "hi"},
	}).Body.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event models.ToolEvent
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatal(err)
	}
	if event.ToolName != "echo" || event.Stage != models.ToolEventRequested {
		t.Errorf("unexpected first event: %+v", event)
	}
}

type stubStreamer struct {
	lines []string
}

func (s stubStreamer) StreamLogs(ctx context.Context, handler func(line string)) error {
	for _, line := range s.lines {
		handler(line)
	}
	return nil
}

func TestLogStreamEndpoint(t *testing.T) {
	hub := NewHub()
	rt := runtime.New(runtime.Options{Config: config.Default()})
	streamer := stubStreamer{lines: []string{"ready on :3000", "compiled successfully"}}
	server := httptest.NewServer(NewHandler(rt, hub, streamer, nil))
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/logs/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for _, want := range streamer.lines {
		_, message, err := conn.ReadMessage()
		if err != nil {
			t.Fatal(err)
		}
		if string(message) != want {
			t.Errorf("expected line %q, got %q", want, message)
		}
	}
}

func TestLogStreamEndpointUnconfigured(t *testing.T) {
	server, _ := testServer(t)

	resp, err := http.Get(server.URL + "/logs/stream")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotImplemented {
		t.Errorf("expected 501 without a streamer, got %d", resp.StatusCode)
	}
}

func TestHubDoesNotBlockOnSlowSubscriber(t *testing.T) {
	hub := NewHub()
	_, cancel := hub.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		// More events than the subscriber buffer holds.
		for i := 0; i < 200; i++ {
			hub.Publish(models.ToolEvent{ToolName: "echo"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on an undrained subscriber")
	}
}
