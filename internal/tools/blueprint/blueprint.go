// Package blueprint implements the nano-contract blueprint tools. A
// blueprint is a single Python file under /blueprints/ defining one
// class that extends Blueprint, with its callable surface marked by
// @public and @view decorators. The checks here are static: actual
// compilation and test execution happen in the sandbox.
package blueprint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/HathorNetwork/hathor-playground-sub001/internal/runtime"
	"github.com/HathorNetwork/hathor-playground-sub001/internal/tools/files"
	"github.com/HathorNetwork/hathor-playground-sub001/internal/validate"
	"github.com/HathorNetwork/hathor-playground-sub001/pkg/models"
)

// TestRunner executes a blueprint's test suite out of process.
type TestRunner interface {
	RunBlueprintTests(ctx context.Context, path, source string) (models.ToolResult, error)
}

// Register adds the blueprint tools to the runtime. runner may be nil
// when no sandbox is configured; run_blueprint_tests then reports the
// missing capability instead of pretending to pass.
func Register(rt *runtime.Runtime, store *files.Store, runner TestRunner) {
	rt.Register(&Validate{store: store})
	rt.Register(&Compile{store: store})
	rt.Register(&ListMethods{store: store})
	rt.Register(&RunTests{store: store, runner: runner})
}

// Method is one callable blueprint method.
type Method struct {
	Name       string   `json:"name"`
	Decorator  string   `json:"decorator"`
	Parameters []string `json:"parameters"`
}

var (
	classRe  = regexp.MustCompile(`(?m)^class\s+(\w+)\s*\(\s*Blueprint\s*\)\s*:`)
	methodRe = regexp.MustCompile(`(?m)^(\s*)@(public|view)\b[^\n]*\n(?:\s*@[^\n]*\n)*\s*def\s+(\w+)\s*\(([^)]*)\)`)
)

// Analysis is the result of statically inspecting a blueprint source.
type Analysis struct {
	ClassName string
	Methods   []Method
	Errors    []string
	Warnings  []string
}

// Analyze inspects blueprint source without executing it.
func Analyze(source string) Analysis {
	var a Analysis

	classes := classRe.FindAllStringSubmatch(source, -1)
	switch len(classes) {
	case 0:
		a.Errors = append(a.Errors, "no class extending Blueprint found")
	case 1:
		a.ClassName = classes[0][1]
	default:
		names := make([]string, len(classes))
		for i, c := range classes {
			names[i] = c[1]
		}
		a.Errors = append(a.Errors,
			fmt.Sprintf("a blueprint file must define exactly one Blueprint class, found %d: %s",
				len(classes), strings.Join(names, ", ")))
	}

	for _, m := range methodRe.FindAllStringSubmatch(source, -1) {
		decorator, name, params := m[2], m[3], m[4]
		parameters := splitParams(params)
		if len(parameters) == 0 || parameters[0] != "self" {
			a.Errors = append(a.Errors,
				fmt.Sprintf("method %s must take self as its first parameter", name))
		}
		if decorator == "public" && (len(parameters) < 2 || !strings.HasPrefix(parameters[1], "ctx")) {
			a.Warnings = append(a.Warnings,
				fmt.Sprintf("@public method %s should take ctx: Context as its second parameter", name))
		}
		a.Methods = append(a.Methods, Method{
			Name:       name,
			Decorator:  decorator,
			Parameters: parameters,
		})
	}

	if a.ClassName != "" && len(a.Methods) == 0 {
		a.Warnings = append(a.Warnings,
			"blueprint has no @public or @view methods; it cannot be called once deployed")
	}
	return a
}

func splitParams(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		// Drop type annotations and defaults; only names matter here.
		if idx := strings.IndexAny(p, ":="); idx >= 0 {
			p = strings.TrimSpace(p[:idx])
		}
		out = append(out, p)
	}
	return out
}

// load fetches a blueprint source from the store, accepting the
// case-corrected path read_file would resolve.
func load(store *files.Store, path string) (resolved, source string, res *models.ToolResult) {
	path = validate.NormalizePath(path)
	resolved, source, _, found := store.Lookup(path)
	if !found {
		fail := models.Fail("blueprint not found: "+path, "blueprint not found: "+path)
		return "", "", &fail
	}
	if !strings.HasSuffix(resolved, ".py") {
		fail := models.Fail(
			fmt.Sprintf("%s is not a Python file", resolved),
			"blueprints must be .py files under /blueprints/")
		return "", "", &fail
	}
	return resolved, source, nil
}

type pathArgs struct {
	Path string `json:"path" jsonschema:"description=Blueprint file path under /blueprints/"`
}

// Validate statically checks a blueprint source.
type Validate struct {
	store *files.Store
}

func (t *Validate) Name() string { return "validate_blueprint" }
func (t *Validate) Description() string {
	return "Statically validate a blueprint: class structure, decorators, and method signatures."
}
func (t *Validate) Schema() []byte { return runtime.SchemaFor(pathArgs{}) }

func (t *Validate) ValidateArgs(args map[string]any) validate.Result {
	return validate.ReadPath(argPath(args))
}

func (t *Validate) Execute(ctx context.Context, args map[string]any) (models.ToolResult, error) {
	resolved, source, fail := load(t.store, argPath(args))
	if fail != nil {
		return *fail, nil
	}

	analysis := Analyze(source)
	if len(analysis.Errors) > 0 {
		res := models.Fail(
			fmt.Sprintf("%s is not a valid blueprint: %s", resolved, strings.Join(analysis.Errors, "; ")),
			strings.Join(analysis.Errors, "; "))
		return res.WithWarnings(analysis.Warnings...), nil
	}

	res := models.Ok(fmt.Sprintf("%s is a valid blueprint (%s, %d methods)",
		resolved, analysis.ClassName, len(analysis.Methods)), map[string]any{
		"class":   analysis.ClassName,
		"methods": analysis.Methods,
	})
	return res.WithWarnings(analysis.Warnings...), nil
}

// Compile validates a blueprint and derives its content-addressed id.
type Compile struct {
	store *files.Store
}

func (t *Compile) Name() string { return "compile_blueprint" }
func (t *Compile) Description() string {
	return "Validate a blueprint and compute its blueprint id."
}
func (t *Compile) Schema() []byte { return runtime.SchemaFor(pathArgs{}) }

func (t *Compile) ValidateArgs(args map[string]any) validate.Result {
	return validate.ReadPath(argPath(args))
}

func (t *Compile) Execute(ctx context.Context, args map[string]any) (models.ToolResult, error) {
	resolved, source, fail := load(t.store, argPath(args))
	if fail != nil {
		return *fail, nil
	}

	analysis := Analyze(source)
	if len(analysis.Errors) > 0 {
		return models.Fail(
			resolved+" failed to compile: "+strings.Join(analysis.Errors, "; "),
			strings.Join(analysis.Errors, "; ")), nil
	}

	sum := sha256.Sum256([]byte(source))
	id := hex.EncodeToString(sum[:])
	res := models.Ok(fmt.Sprintf("Compiled %s (%s, %s)", resolved, analysis.ClassName, id[:12]), map[string]any{
		"blueprint_id": id,
		"path":         resolved,
		"class":        analysis.ClassName,
		"methods":      analysis.Methods,
	})
	return res.WithWarnings(analysis.Warnings...), nil
}

// ListMethods reports the callable surface of a blueprint. It is on the
// read-tool allow-list, so results are cached until the next write.
type ListMethods struct {
	store *files.Store
}

func (t *ListMethods) Name() string { return "list_blueprint_methods" }
func (t *ListMethods) Description() string {
	return "List the @public and @view methods of a blueprint."
}
func (t *ListMethods) Schema() []byte { return runtime.SchemaFor(pathArgs{}) }

func (t *ListMethods) ValidateArgs(args map[string]any) validate.Result {
	return validate.ReadPath(argPath(args))
}

func (t *ListMethods) Execute(ctx context.Context, args map[string]any) (models.ToolResult, error) {
	resolved, source, fail := load(t.store, argPath(args))
	if fail != nil {
		return *fail, nil
	}

	analysis := Analyze(source)
	return models.Ok(fmt.Sprintf("%s exposes %d methods", resolved, len(analysis.Methods)), map[string]any{
		"class":   analysis.ClassName,
		"methods": analysis.Methods,
	}), nil
}

// RunTests executes a blueprint's tests in the sandbox.
type RunTests struct {
	store  *files.Store
	runner TestRunner
}

func (t *RunTests) Name() string { return "run_blueprint_tests" }
func (t *RunTests) Description() string {
	return "Run a blueprint's test suite in the sandbox."
}
func (t *RunTests) Schema() []byte { return runtime.SchemaFor(pathArgs{}) }
func (t *RunTests) Mutates() bool  { return true }

func (t *RunTests) ValidateArgs(args map[string]any) validate.Result {
	return validate.ReadPath(argPath(args))
}

func (t *RunTests) Execute(ctx context.Context, args map[string]any) (models.ToolResult, error) {
	resolved, source, fail := load(t.store, argPath(args))
	if fail != nil {
		return *fail, nil
	}
	if t.runner == nil {
		return models.Fail(
			"no sandbox is configured; blueprint tests cannot run",
			"sandbox unavailable"), nil
	}

	// Tests for an invalid blueprint produce confusing interpreter
	// errors; validate first and fail with the precise reason instead.
	if analysis := Analyze(source); len(analysis.Errors) > 0 {
		return models.Fail(
			"blueprint is invalid, tests not run: "+strings.Join(analysis.Errors, "; "),
			strings.Join(analysis.Errors, "; ")), nil
	}

	return t.runner.RunBlueprintTests(ctx, resolved, source)
}

func argPath(args map[string]any) string {
	if v, ok := args["path"].(string); ok {
		return v
	}
	return ""
}
