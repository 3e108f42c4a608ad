package files

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/HathorNetwork/hathor-playground-sub001/internal/runtime"
	"github.com/HathorNetwork/hathor-playground-sub001/internal/validate"
	"github.com/HathorNetwork/hathor-playground-sub001/pkg/models"
)

// maxGrepMatches caps grep output so a broad query cannot flood the
// model's context window.
const maxGrepMatches = 100

// Register adds all file tools backed by store to the runtime.
func Register(rt *runtime.Runtime, store *Store) {
	rt.Register(&ReadFile{store: store})
	rt.Register(&WriteFile{store: store})
	rt.Register(&DeleteFile{store: store})
	rt.Register(&ListFiles{store: store})
	rt.Register(&Grep{store: store})
	rt.Register(&ProjectStructure{store: store})
}

type readFileArgs struct {
	Path string `json:"path" jsonschema:"description=Absolute project path of the file to read"`
}

// ReadFile returns the content of one project file.
type ReadFile struct {
	store *Store
}

func (t *ReadFile) Name() string { return "read_file" }
func (t *ReadFile) Description() string {
	return "Read the content of a project file. Paths live under /dapp/ or /blueprints/."
}
func (t *ReadFile) Schema() []byte { return runtime.SchemaFor(readFileArgs{}) }

func (t *ReadFile) ValidateArgs(args map[string]any) validate.Result {
	return validate.ReadPath(stringArg(args, "path"))
}

func (t *ReadFile) Execute(ctx context.Context, args map[string]any) (models.ToolResult, error) {
	path := validate.NormalizePath(stringArg(args, "path"))

	resolved, content, corrected, found := t.store.Lookup(path)
	if !found {
		res := models.Fail(
			fmt.Sprintf("file not found: %s", path),
			"file not found: "+path)
		return res.WithWarnings("use list_files or get_project_structure to see available paths"), nil
	}

	res := models.Ok(fmt.Sprintf("Read %s (%d bytes)", resolved, len(content)), models.FileRead{
		Path:    resolved,
		Content: content,
	})
	if corrected {
		res = res.WithWarnings(fmt.Sprintf("path corrected from %s to %s", path, resolved))
	}
	return res, nil
}

type writeFileArgs struct {
	Path    string `json:"path" jsonschema:"description=Absolute project path to write"`
	Content string `json:"content" jsonschema:"description=Full file content"`
}

// WriteFile creates or replaces one project file.
type WriteFile struct {
	store *Store
}

func (t *WriteFile) Name() string { return "write_file" }
func (t *WriteFile) Description() string {
	return "Create or overwrite a project file with the given content."
}
func (t *WriteFile) Schema() []byte { return runtime.SchemaFor(writeFileArgs{}) }
func (t *WriteFile) Mutates() bool  { return true }

func (t *WriteFile) ValidateArgs(args map[string]any) validate.Result {
	path := stringArg(args, "path")
	return validate.Merge(
		validate.Path(path),
		validate.Content(path, stringArg(args, "content")),
	)
}

func (t *WriteFile) Execute(ctx context.Context, args map[string]any) (models.ToolResult, error) {
	path := validate.NormalizePath(stringArg(args, "path"))
	content := stringArg(args, "content")

	existed := t.store.Write(path, content)
	verb := "Created"
	if existed {
		verb = "Updated"
	}
	return models.Ok(fmt.Sprintf("%s %s (%d bytes)", verb, path, len(content)), models.FileWrite{
		Path:    path,
		Size:    len(content),
		Created: !existed,
	}), nil
}

type deleteFileArgs struct {
	Path string `json:"path" jsonschema:"description=Absolute project path to delete"`
}

// DeleteFile removes one project file.
type DeleteFile struct {
	store *Store
}

func (t *DeleteFile) Name() string        { return "delete_file" }
func (t *DeleteFile) Description() string { return "Delete a project file." }
func (t *DeleteFile) Schema() []byte      { return runtime.SchemaFor(deleteFileArgs{}) }
func (t *DeleteFile) Mutates() bool       { return true }

func (t *DeleteFile) ValidateArgs(args map[string]any) validate.Result {
	return validate.Path(stringArg(args, "path"))
}

func (t *DeleteFile) Execute(ctx context.Context, args map[string]any) (models.ToolResult, error) {
	path := validate.NormalizePath(stringArg(args, "path"))
	if !t.store.Delete(path) {
		return models.Fail("file not found: "+path, "file not found: "+path), nil
	}
	return models.Ok("Deleted "+path, nil), nil
}

type listFilesArgs struct {
	Path    string `json:"path,omitempty" jsonschema:"description=Directory to list; defaults to the whole project"`
	Pattern string `json:"pattern,omitempty" jsonschema:"description=Optional glob pattern such as **/*.tsx"`
}

// ListFiles lists project paths, optionally filtered by directory and
// glob pattern.
type ListFiles struct {
	store *Store
}

func (t *ListFiles) Name() string { return "list_files" }
func (t *ListFiles) Description() string {
	return "List project files, optionally under a directory and matching a glob pattern."
}
func (t *ListFiles) Schema() []byte { return runtime.SchemaFor(listFilesArgs{}) }

func (t *ListFiles) ValidateArgs(args map[string]any) validate.Result {
	return validate.ReadPath(stringArg(args, "path"))
}

func (t *ListFiles) Execute(ctx context.Context, args map[string]any) (models.ToolResult, error) {
	dir := stringArg(args, "path")
	pattern := stringArg(args, "pattern")

	paths := t.store.Match(dir, pattern)
	return models.Ok(fmt.Sprintf("%d files", len(paths)), map[string]any{
		"files": paths,
	}), nil
}

type grepArgs struct {
	Query         string `json:"query" jsonschema:"description=Regular expression to search for; falls back to a literal match if it does not compile"`
	Path          string `json:"path,omitempty" jsonschema:"description=Directory to search; defaults to the whole project"`
	CaseSensitive bool   `json:"case_sensitive,omitempty" jsonschema:"description=Match case exactly"`
}

// GrepMatch is one matching line in grep output.
type GrepMatch struct {
	Path string `json:"path"`
	Line int    `json:"line"`
	Text string `json:"text"`
}

// Grep searches file contents line by line.
type Grep struct {
	store *Store
}

func (t *Grep) Name() string { return "grep" }
func (t *Grep) Description() string {
	return "Search project file contents with a regular expression. Output is capped at 100 matches."
}
func (t *Grep) Schema() []byte { return runtime.SchemaFor(grepArgs{}) }

func (t *Grep) ValidateArgs(args map[string]any) validate.Result {
	if strings.TrimSpace(stringArg(args, "query")) == "" {
		return validate.Result{Errors: []string{"query is required"}}
	}
	return validate.ReadPath(stringArg(args, "path"))
}

func (t *Grep) Execute(ctx context.Context, args map[string]any) (models.ToolResult, error) {
	query := stringArg(args, "query")
	dir := stringArg(args, "path")
	caseSensitive, _ := args["case_sensitive"].(bool)

	matcher, warning := compileMatcher(query, caseSensitive)

	var matches []GrepMatch
	truncated := false
	for _, path := range t.store.Match(dir, "") {
		content, ok := t.store.Read(path)
		if !ok {
			continue
		}
		for i, line := range strings.Split(content, "\n") {
			if !matcher(line) {
				continue
			}
			if len(matches) >= maxGrepMatches {
				truncated = true
				break
			}
			matches = append(matches, GrepMatch{Path: path, Line: i + 1, Text: line})
		}
		if truncated {
			break
		}
	}

	message := fmt.Sprintf("%d matches for %q", len(matches), query)
	if truncated {
		message += " (truncated)"
	}
	res := models.Ok(message, map[string]any{
		"matches":   matches,
		"truncated": truncated,
	})
	if warning != "" {
		res = res.WithWarnings(warning)
	}
	return res, nil
}

// compileMatcher compiles query as a regex, falling back to a literal
// substring match when the regex is invalid. The fallback is reported so
// the agent knows its pattern was not interpreted.
func compileMatcher(query string, caseSensitive bool) (func(string) bool, string) {
	pattern := query
	if !caseSensitive {
		pattern = "(?i)" + pattern
	}
	if re, err := regexp.Compile(pattern); err == nil {
		return re.MatchString, ""
	}

	needle := query
	if !caseSensitive {
		needle = strings.ToLower(needle)
		return func(line string) bool {
			return strings.Contains(strings.ToLower(line), needle)
		}, fmt.Sprintf("%q is not a valid regular expression; matched literally instead", query)
	}
	return func(line string) bool {
		return strings.Contains(line, needle)
	}, fmt.Sprintf("%q is not a valid regular expression; matched literally instead", query)
}

type projectStructureArgs struct{}

// ProjectStructure renders the project tree as indented text.
type ProjectStructure struct {
	store *Store
}

func (t *ProjectStructure) Name() string { return "get_project_structure" }
func (t *ProjectStructure) Description() string {
	return "Show the project file tree."
}
func (t *ProjectStructure) Schema() []byte { return runtime.SchemaFor(projectStructureArgs{}) }

func (t *ProjectStructure) Execute(ctx context.Context, args map[string]any) (models.ToolResult, error) {
	paths := t.store.Paths()
	tree := renderTree(paths)
	return models.Ok(fmt.Sprintf("%d files", len(paths)), map[string]any{
		"tree":  tree,
		"count": len(paths),
	}), nil
}

// renderTree turns sorted absolute paths into an indented listing with
// directories printed once.
func renderTree(paths []string) string {
	var b strings.Builder
	seen := map[string]bool{}
	for _, path := range paths {
		parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
		for depth := 0; depth < len(parts)-1; depth++ {
			dir := strings.Join(parts[:depth+1], "/")
			if seen[dir] {
				continue
			}
			seen[dir] = true
			b.WriteString(strings.Repeat("  ", depth))
			b.WriteString(parts[depth])
			b.WriteString("/\n")
		}
		b.WriteString(strings.Repeat("  ", len(parts)-1))
		b.WriteString(parts[len(parts)-1])
		b.WriteString("\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func stringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}
