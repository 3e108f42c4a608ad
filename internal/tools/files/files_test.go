package files

import (
	"context"
	"strings"
	"testing"

	"github.com/HathorNetwork/hathor-playground-sub001/pkg/models"
)

func seededStore() *Store {
	s := NewStore()
	s.Seed(map[string]string{
		"/dapp/app/page.tsx":     "export default function Page() {}\n",
		"/dapp/app/layout.tsx":   "export default function Layout() {}\n",
		"/dapp/lib/wallet.ts":    "export function connect() {}\nexport function send() {}\n",
		"/blueprints/counter.py": "class Counter(Blueprint):\n    def increment(self, ctx):\n        pass\n",
		"/dapp/package.json":     "{\"name\": \"dapp\"}\n",
	})
	return s
}

func TestReadFile(t *testing.T) {
	store := seededStore()
	tool := &ReadFile{store: store}

	t.Run("exact path", func(t *testing.T) {
		res, err := tool.Execute(context.Background(), map[string]any{"path": "/dapp/app/page.tsx"})
		if err != nil || !res.Success {
			t.Fatalf("expected success, got err=%v res=%q", err, res.Error)
		}
		var payload models.FileRead
		if _, err := res.DecodeData(&payload); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(payload.Content, "Page()") {
			t.Errorf("unexpected content %q", payload.Content)
		}
		if len(res.Warnings) != 0 {
			t.Errorf("exact match must not warn, got %v", res.Warnings)
		}
	})

	t.Run("missing leading slash is normalized", func(t *testing.T) {
		res, _ := tool.Execute(context.Background(), map[string]any{"path": "dapp/app/page.tsx"})
		if !res.Success {
			t.Errorf("expected normalization, got %q", res.Error)
		}
	})

	t.Run("unique basename match corrects the path", func(t *testing.T) {
		res, _ := tool.Execute(context.Background(), map[string]any{"path": "/dapp/Page.tsx"})
		if !res.Success {
			t.Fatalf("expected fallback match, got %q", res.Error)
		}
		var payload models.FileRead
		res.DecodeData(&payload)
		if payload.Path != "/dapp/app/page.tsx" {
			t.Errorf("expected corrected path, got %q", payload.Path)
		}
		if len(res.Warnings) == 0 || !strings.Contains(res.Warnings[0], "corrected") {
			t.Errorf("expected a corrected-path warning, got %v", res.Warnings)
		}
	})

	t.Run("ambiguous basename is not guessed", func(t *testing.T) {
		store.Write("/dapp/other/page.tsx", "x")
		res, _ := tool.Execute(context.Background(), map[string]any{"path": "/nowhere/page.tsx"})
		if res.Success {
			t.Error("two candidates must not resolve")
		}
	})

	t.Run("missing file fails with guidance", func(t *testing.T) {
		res, _ := tool.Execute(context.Background(), map[string]any{"path": "/dapp/nope.tsx"})
		if res.Success {
			t.Fatal("expected failure")
		}
		if res.Error == "" {
			t.Error("failure must carry an error")
		}
		if len(res.Warnings) == 0 {
			t.Error("expected a hint toward list_files")
		}
	})
}

func TestWriteFile(t *testing.T) {
	store := seededStore()
	tool := &WriteFile{store: store}

	t.Run("create then update", func(t *testing.T) {
		res, _ := tool.Execute(context.Background(), map[string]any{
			"path": "/dapp/new.ts", "content": "export {}\n",
		})
		if !res.Success || !strings.HasPrefix(res.Message, "Created") {
			t.Errorf("expected create, got %q", res.Message)
		}
		var payload models.FileWrite
		if _, err := res.DecodeData(&payload); err != nil {
			t.Fatal(err)
		}
		if payload.Path != "/dapp/new.ts" || !payload.Created || payload.Size == 0 {
			t.Errorf("unexpected write payload: %+v", payload)
		}

		res, _ = tool.Execute(context.Background(), map[string]any{
			"path": "/dapp/new.ts", "content": "export const x = 1\n",
		})
		if !strings.HasPrefix(res.Message, "Updated") {
			t.Errorf("expected update, got %q", res.Message)
		}
		res.DecodeData(&payload)
		if payload.Created {
			t.Error("overwrite must not report a create")
		}
		content, _ := store.Read("/dapp/new.ts")
		if !strings.Contains(content, "x = 1") {
			t.Error("second write must replace content")
		}
	})

	t.Run("validation rejects paths outside project roots", func(t *testing.T) {
		verdict := tool.ValidateArgs(map[string]any{"path": "/etc/passwd", "content": "x"})
		if verdict.Valid {
			t.Error("expected rejection")
		}
		if len(verdict.Suggestions) == 0 {
			t.Error("expected corrective suggestions")
		}
	})

	t.Run("validation rejects traversal", func(t *testing.T) {
		verdict := tool.ValidateArgs(map[string]any{"path": "/dapp/../etc/passwd", "content": "x"})
		if verdict.Valid {
			t.Error("expected rejection")
		}
	})

	t.Run("heuristic scan warns without blocking", func(t *testing.T) {
		verdict := tool.ValidateArgs(map[string]any{
			"path":    "/blueprints/bad.py",
			"content": "import subprocess\n",
		})
		if !verdict.Valid {
			t.Fatal("heuristics must not block")
		}
		if len(verdict.Warnings) == 0 {
			t.Error("expected a heuristic warning")
		}
	})
}

func TestDeleteFile(t *testing.T) {
	store := seededStore()
	tool := &DeleteFile{store: store}

	res, _ := tool.Execute(context.Background(), map[string]any{"path": "/dapp/app/page.tsx"})
	if !res.Success {
		t.Fatalf("expected delete, got %q", res.Error)
	}
	if _, ok := store.Read("/dapp/app/page.tsx"); ok {
		t.Error("file still present after delete")
	}

	res, _ = tool.Execute(context.Background(), map[string]any{"path": "/dapp/app/page.tsx"})
	if res.Success {
		t.Error("deleting a missing file must fail")
	}
}

func TestListFiles(t *testing.T) {
	store := seededStore()
	tool := &ListFiles{store: store}

	decode := func(t *testing.T, res models.ToolResult) []string {
		t.Helper()
		var payload struct {
			Files []string `json:"files"`
		}
		if _, err := res.DecodeData(&payload); err != nil {
			t.Fatal(err)
		}
		return payload.Files
	}

	t.Run("whole project", func(t *testing.T) {
		res, _ := tool.Execute(context.Background(), map[string]any{})
		files := decode(t, res)
		if len(files) != store.Len() {
			t.Errorf("expected %d files, got %d", store.Len(), len(files))
		}
	})

	t.Run("directory scope", func(t *testing.T) {
		res, _ := tool.Execute(context.Background(), map[string]any{"path": "/dapp/app"})
		files := decode(t, res)
		if len(files) != 2 {
			t.Errorf("expected 2 files under /dapp/app, got %v", files)
		}
	})

	t.Run("glob pattern", func(t *testing.T) {
		res, _ := tool.Execute(context.Background(), map[string]any{
			"path": "/dapp", "pattern": "**/*.tsx",
		})
		files := decode(t, res)
		if len(files) != 2 {
			t.Errorf("expected the two tsx files, got %v", files)
		}
	})
}

func TestGrep(t *testing.T) {
	store := seededStore()
	tool := &Grep{store: store}

	decode := func(t *testing.T, res models.ToolResult) (matches []GrepMatch, truncated bool) {
		t.Helper()
		var payload struct {
			Matches   []GrepMatch `json:"matches"`
			Truncated bool        `json:"truncated"`
		}
		if _, err := res.DecodeData(&payload); err != nil {
			t.Fatal(err)
		}
		return payload.Matches, payload.Truncated
	}

	t.Run("regex match with line numbers", func(t *testing.T) {
		res, _ := tool.Execute(context.Background(), map[string]any{"query": `export function \w+`})
		matches, _ := decode(t, res)
		if len(matches) != 2 {
			t.Fatalf("expected 2 matches in wallet.ts, got %v", matches)
		}
		if matches[0].Line != 1 || matches[1].Line != 2 {
			t.Errorf("unexpected line numbers: %v", matches)
		}
	})

	t.Run("case-insensitive by default", func(t *testing.T) {
		res, _ := tool.Execute(context.Background(), map[string]any{"query": "COUNTER"})
		matches, _ := decode(t, res)
		if len(matches) == 0 {
			t.Error("expected a case-insensitive hit")
		}
	})

	t.Run("invalid regex falls back to literal", func(t *testing.T) {
		res, _ := tool.Execute(context.Background(), map[string]any{"query": "Page("})
		if !res.Success {
			t.Fatalf("expected literal fallback, got %q", res.Error)
		}
		matches, _ := decode(t, res)
		if len(matches) != 1 {
			t.Errorf("expected 1 literal match, got %v", matches)
		}
		if len(res.Warnings) == 0 {
			t.Error("fallback must be reported as a warning")
		}
	})

	t.Run("output is capped", func(t *testing.T) {
		big := NewStore()
		big.Write("/dapp/big.txt", strings.Repeat("match me\n", 300))
		res, _ := (&Grep{store: big}).Execute(context.Background(), map[string]any{"query": "match me"})
		matches, truncated := decode(t, res)
		if len(matches) != maxGrepMatches {
			t.Errorf("expected %d matches, got %d", maxGrepMatches, len(matches))
		}
		if !truncated {
			t.Error("expected the truncation flag")
		}
	})
}

func TestProjectStructure(t *testing.T) {
	store := seededStore()
	tool := &ProjectStructure{store: store}

	res, _ := tool.Execute(context.Background(), map[string]any{})
	if !res.Success {
		t.Fatal(res.Error)
	}
	var payload struct {
		Tree  string `json:"tree"`
		Count int    `json:"count"`
	}
	if _, err := res.DecodeData(&payload); err != nil {
		t.Fatal(err)
	}
	if payload.Count != store.Len() {
		t.Errorf("expected %d files, got %d", store.Len(), payload.Count)
	}
	for _, want := range []string{"dapp/", "blueprints/", "page.tsx", "counter.py"} {
		if !strings.Contains(payload.Tree, want) {
			t.Errorf("tree missing %q:\n%s", want, payload.Tree)
		}
	}
	// Directories are printed once even with several children. The line
	// anchor keeps the dapp/ entry from matching as a substring.
	if strings.Count("\n"+payload.Tree+"\n", "\n  app/\n") != 1 {
		t.Errorf("expected app/ printed once:\n%s", payload.Tree)
	}
}
