package runtime

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/invopop/jsonschema"

	"github.com/HathorNetwork/hathor-playground-sub001/internal/validate"
	"github.com/HathorNetwork/hathor-playground-sub001/pkg/models"
)

// Tool is a named, externally-implemented operation the runtime governs.
// Executors return an envelope or an error; the middleware folds errors
// (and panics) into failure envelopes, so transports never see either.
type Tool interface {
	Name() string
	Description() string

	// Schema returns the JSON schema for the tool's arguments, or nil
	// to accept anything.
	Schema() []byte

	Execute(ctx context.Context, args map[string]any) (models.ToolResult, error)
}

// Mutator marks tools whose execution changes project state. Mutating
// tools run with zero middleware retries and trigger the read-tool
// cache sweep on success.
type Mutator interface {
	Mutates() bool
}

// ArgValidator lets a tool contribute domain validation beyond its JSON
// schema (path roots, content limits, command checks). It runs in the
// validation phase, before the cache and middleware are touched.
type ArgValidator interface {
	ValidateArgs(args map[string]any) validate.Result
}

// Registry manages available tools with thread-safe registration and
// lookup.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool, replacing any existing tool of the same name.
func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name()] = tool
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SchemaFor derives a JSON schema from a tool's argument struct, so
// tools declare their parameters once as Go types.
func SchemaFor(v any) []byte {
	reflector := &jsonschema.Reflector{
		DoNotReference:            true,
		AllowAdditionalProperties: false,
	}
	schema := reflector.Reflect(v)
	data, err := json.Marshal(schema)
	if err != nil {
		return nil
	}
	return data
}
