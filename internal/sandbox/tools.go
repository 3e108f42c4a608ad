package sandbox

import (
	"context"
	"fmt"
	"strings"

	"github.com/HathorNetwork/hathor-playground-sub001/internal/runtime"
	"github.com/HathorNetwork/hathor-playground-sub001/internal/tools/files"
	"github.com/HathorNetwork/hathor-playground-sub001/internal/validate"
	"github.com/HathorNetwork/hathor-playground-sub001/pkg/models"
)

// API is the subset of Client the tools depend on.
type API interface {
	Exec(ctx context.Context, command string) (ExecResult, error)
	Logs(ctx context.Context, tail int) ([]string, error)
	Restart(ctx context.Context) error
	Download(ctx context.Context) (map[string]string, error)
	Bootstrap(ctx context.Context, template string, seed map[string]string) error
}

// Register adds the sandbox tools to the runtime. The store is used by
// bootstrap (upload) and download (import).
func Register(rt *runtime.Runtime, api API, store *files.Store) {
	rt.Register(&RunCommand{api: api})
	rt.Register(&GetLogs{api: api})
	rt.Register(&RestartDevServer{api: api})
	rt.Register(&DownloadFiles{api: api, store: store})
	rt.Register(&BootstrapTool{api: api, store: store})
}

type runCommandArgs struct {
	Command string `json:"command" jsonschema:"description=Command to run in the sandbox, without shell operators"`
}

// RunCommand executes one command in the sandbox working directory.
type RunCommand struct {
	api API
}

func (t *RunCommand) Name() string { return "run_command" }
func (t *RunCommand) Description() string {
	return "Run a single command in the sandbox. No shell operators; one command per call."
}
func (t *RunCommand) Schema() []byte { return runtime.SchemaFor(runCommandArgs{}) }
func (t *RunCommand) Mutates() bool  { return true }

func (t *RunCommand) ValidateArgs(args map[string]any) validate.Result {
	return validate.Command(stringArg(args, "command"))
}

func (t *RunCommand) Execute(ctx context.Context, args map[string]any) (models.ToolResult, error) {
	command := stringArg(args, "command")
	out, err := t.api.Exec(ctx, command)
	if err != nil {
		return models.ToolResult{}, err
	}

	payload := map[string]any{
		"exit_code": out.ExitCode,
		"stdout":    out.Stdout,
		"stderr":    out.Stderr,
	}
	if out.ExitCode != 0 {
		detail := strings.TrimSpace(out.Stderr)
		if detail == "" {
			detail = strings.TrimSpace(out.Stdout)
		}
		res := models.Fail(
			fmt.Sprintf("command exited with code %d", out.ExitCode), detail)
		return res.WithWarnings("read stderr before retrying; the same command will fail the same way"), nil
	}
	return models.Ok(fmt.Sprintf("command succeeded: %s", command), payload), nil
}

type getLogsArgs struct {
	Tail int `json:"tail,omitempty" jsonschema:"description=Number of trailing log lines to fetch; defaults to 100"`
}

// GetLogs fetches recent dev-server output.
type GetLogs struct {
	api API
}

func (t *GetLogs) Name() string { return "get_sandbox_logs" }
func (t *GetLogs) Description() string {
	return "Fetch recent dev-server log lines from the sandbox."
}
func (t *GetLogs) Schema() []byte { return runtime.SchemaFor(getLogsArgs{}) }

func (t *GetLogs) Execute(ctx context.Context, args map[string]any) (models.ToolResult, error) {
	tail := intArg(args, "tail")
	if tail <= 0 {
		tail = 100
	}
	lines, err := t.api.Logs(ctx, tail)
	if err != nil {
		return models.ToolResult{}, err
	}
	return models.Ok(fmt.Sprintf("%d log lines", len(lines)), map[string]any{
		"lines": lines,
	}), nil
}

type emptyArgs struct{}

// RestartDevServer restarts the sandbox dev server.
type RestartDevServer struct {
	api API
}

func (t *RestartDevServer) Name() string { return "restart_dev_server" }
func (t *RestartDevServer) Description() string {
	return "Restart the sandbox dev server, picking up config changes that hot reload misses."
}
func (t *RestartDevServer) Schema() []byte { return runtime.SchemaFor(emptyArgs{}) }
func (t *RestartDevServer) Mutates() bool  { return true }

func (t *RestartDevServer) Execute(ctx context.Context, args map[string]any) (models.ToolResult, error) {
	if err := t.api.Restart(ctx); err != nil {
		return models.ToolResult{}, err
	}
	return models.Ok("dev server restarted", nil), nil
}

// DownloadFiles imports the sandbox's file tree into the local store.
type DownloadFiles struct {
	api   API
	store *files.Store
}

func (t *DownloadFiles) Name() string { return "download_sandbox_files" }
func (t *DownloadFiles) Description() string {
	return "Download all files from the sandbox into the working copy."
}
func (t *DownloadFiles) Schema() []byte { return runtime.SchemaFor(emptyArgs{}) }
func (t *DownloadFiles) Mutates() bool  { return true }

func (t *DownloadFiles) Execute(ctx context.Context, args map[string]any) (models.ToolResult, error) {
	fetched, err := t.api.Download(ctx)
	if err != nil {
		return models.ToolResult{}, err
	}
	for path, content := range fetched {
		t.store.Write(path, content)
	}
	return models.Ok(fmt.Sprintf("downloaded %d files", len(fetched)), map[string]any{
		"count": len(fetched),
	}), nil
}

type bootstrapArgs struct {
	Template string `json:"template,omitempty" jsonschema:"description=Project template name; defaults to nextjs-dapp"`
}

// BootstrapTool provisions a fresh sandbox and uploads the working copy.
type BootstrapTool struct {
	api   API
	store *files.Store
}

func (t *BootstrapTool) Name() string { return "bootstrap" }
func (t *BootstrapTool) Description() string {
	return "Provision a fresh sandbox from a template and upload the current project files."
}
func (t *BootstrapTool) Schema() []byte { return runtime.SchemaFor(bootstrapArgs{}) }
func (t *BootstrapTool) Mutates() bool  { return true }

func (t *BootstrapTool) Execute(ctx context.Context, args map[string]any) (models.ToolResult, error) {
	template := stringArg(args, "template")
	if template == "" {
		template = "nextjs-dapp"
	}

	seed := make(map[string]string)
	for _, path := range t.store.Paths() {
		if content, ok := t.store.Read(path); ok {
			seed[path] = content
		}
	}
	if err := t.api.Bootstrap(ctx, template, seed); err != nil {
		return models.ToolResult{}, err
	}
	return models.Ok(fmt.Sprintf("sandbox bootstrapped from %s with %d files", template, len(seed)), map[string]any{
		"template": template,
		"uploaded": len(seed),
	}), nil
}

func stringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func intArg(args map[string]any, key string) int {
	switch v := args[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}
