// Package sandbox talks to the external sandbox service that hosts the
// generated dApp: a REST API for command execution and lifecycle, and a
// websocket feed for live dev-server logs.
package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/HathorNetwork/hathor-playground-sub001/internal/config"
	"github.com/HathorNetwork/hathor-playground-sub001/internal/observability"
	"github.com/HathorNetwork/hathor-playground-sub001/pkg/models"
)

// Client is an HTTP client for the sandbox API.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *observability.Logger
}

// NewClient creates a sandbox client from configuration.
func NewClient(cfg config.SandboxConfig, logger *observability.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if logger == nil {
		logger = observability.NewLogger(observability.LogConfig{Level: "error"})
	}
	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// ExecResult is the outcome of a command run inside the sandbox.
type ExecResult struct {
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
}

// Exec runs a command inside the sandbox working directory.
func (c *Client) Exec(ctx context.Context, command string) (ExecResult, error) {
	var out ExecResult
	err := c.post(ctx, "/exec", map[string]string{"command": command}, &out)
	return out, err
}

// Logs fetches the most recent dev-server log lines.
func (c *Client) Logs(ctx context.Context, tail int) ([]string, error) {
	path := "/logs"
	if tail > 0 {
		path += "?tail=" + strconv.Itoa(tail)
	}
	var out struct {
		Lines []string `json:"lines"`
	}
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out.Lines, nil
}

// Restart restarts the sandbox dev server.
func (c *Client) Restart(ctx context.Context) error {
	return c.post(ctx, "/restart", nil, nil)
}

// Download returns all sandbox files as a path-to-content map. The
// sandbox is the source of truth for files the dev server generated
// itself (lockfiles, build output).
func (c *Client) Download(ctx context.Context) (map[string]string, error) {
	var out struct {
		Files map[string]string `json:"files"`
	}
	if err := c.get(ctx, "/files", &out); err != nil {
		return nil, err
	}
	return out.Files, nil
}

// Bootstrap provisions a fresh sandbox from a template and uploads the
// initial project files.
func (c *Client) Bootstrap(ctx context.Context, template string, seed map[string]string) error {
	return c.post(ctx, "/bootstrap", map[string]any{
		"template": template,
		"files":    seed,
	}, nil)
}

// RunBlueprintTests uploads a blueprint and executes its test suite in
// the sandboxed interpreter. Implements the blueprint tool's TestRunner.
func (c *Client) RunBlueprintTests(ctx context.Context, path, source string) (models.ToolResult, error) {
	var out struct {
		Passed int    `json:"passed"`
		Failed int    `json:"failed"`
		Output string `json:"output"`
	}
	err := c.post(ctx, "/blueprints/test", map[string]string{
		"path":   path,
		"source": source,
	}, &out)
	if err != nil {
		return models.ToolResult{}, err
	}

	summary := fmt.Sprintf("%d passed, %d failed", out.Passed, out.Failed)
	payload := map[string]any{
		"passed": out.Passed,
		"failed": out.Failed,
		"output": out.Output,
	}
	if out.Failed > 0 {
		res := models.Fail("Blueprint tests failed: "+summary, out.Output)
		if data, err := json.Marshal(payload); err == nil {
			res.Data = data
		}
		return res, nil
	}
	return models.Ok("Blueprint tests passed: "+summary, payload), nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	endpoint := strings.TrimSuffix(c.baseURL, "/") + path

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode sandbox request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("sandbox request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("sandbox %s %s: status %d: %s", method, path, resp.StatusCode, bytes.TrimSpace(detail))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode sandbox response: %w", err)
	}
	return nil
}
