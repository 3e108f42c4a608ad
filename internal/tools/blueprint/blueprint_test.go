package blueprint

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/HathorNetwork/hathor-playground-sub001/internal/tools/files"
	"github.com/HathorNetwork/hathor-playground-sub001/pkg/models"
)

const counterSource = `from hathor.nanocontracts import Blueprint, Context, public, view


class Counter(Blueprint):
    count: int

    @public
    def initialize(self, ctx: Context) -> None:
        self.count = 0

    @public
    def increment(self, ctx: Context, amount: int) -> None:
        self.count += amount

    @view
    def get_count(self) -> int:
        return self.count
`

func blueprintStore() *files.Store {
	s := files.NewStore()
	s.Seed(map[string]string{
		"/blueprints/counter.py": counterSource,
		"/dapp/app/page.tsx":     "export default function Page() {}\n",
	})
	return s
}

func TestAnalyze(t *testing.T) {
	t.Run("valid blueprint", func(t *testing.T) {
		a := Analyze(counterSource)
		if len(a.Errors) != 0 {
			t.Fatalf("unexpected errors: %v", a.Errors)
		}
		if a.ClassName != "Counter" {
			t.Errorf("expected Counter, got %q", a.ClassName)
		}
		if len(a.Methods) != 3 {
			t.Fatalf("expected 3 methods, got %v", a.Methods)
		}
		if a.Methods[0].Name != "initialize" || a.Methods[0].Decorator != "public" {
			t.Errorf("unexpected first method: %+v", a.Methods[0])
		}
		if a.Methods[2].Decorator != "view" {
			t.Errorf("expected get_count to be a view, got %+v", a.Methods[2])
		}
	})

	t.Run("no blueprint class", func(t *testing.T) {
		a := Analyze("class Helper:\n    pass\n")
		if len(a.Errors) == 0 {
			t.Error("expected an error for a missing Blueprint class")
		}
	})

	t.Run("multiple blueprint classes", func(t *testing.T) {
		a := Analyze("class A(Blueprint):\n    pass\n\nclass B(Blueprint):\n    pass\n")
		if len(a.Errors) == 0 || !strings.Contains(a.Errors[0], "exactly one") {
			t.Errorf("expected a multi-class error, got %v", a.Errors)
		}
	})

	t.Run("public method without ctx warns", func(t *testing.T) {
		a := Analyze("class C(Blueprint):\n    @public\n    def bad(self) -> None:\n        pass\n")
		if len(a.Errors) != 0 {
			t.Fatalf("ctx is advisory, got errors %v", a.Errors)
		}
		if len(a.Warnings) == 0 {
			t.Error("expected a ctx warning")
		}
	})

	t.Run("method without self errors", func(t *testing.T) {
		a := Analyze("class C(Blueprint):\n    @view\n    def bad() -> int:\n        return 1\n")
		if len(a.Errors) == 0 {
			t.Error("expected a self error")
		}
	})

	t.Run("no callable methods warns", func(t *testing.T) {
		a := Analyze("class C(Blueprint):\n    pass\n")
		if len(a.Warnings) == 0 {
			t.Error("expected a no-methods warning")
		}
	})
}

func TestValidateBlueprint(t *testing.T) {
	tool := &Validate{store: blueprintStore()}

	t.Run("valid file", func(t *testing.T) {
		res, err := tool.Execute(context.Background(), map[string]any{"path": "/blueprints/counter.py"})
		if err != nil || !res.Success {
			t.Fatalf("expected success, got err=%v res=%q", err, res.Error)
		}
		if !strings.Contains(res.Message, "Counter") {
			t.Errorf("message should name the class, got %q", res.Message)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		res, _ := tool.Execute(context.Background(), map[string]any{"path": "/blueprints/nope.py"})
		if res.Success {
			t.Error("expected failure")
		}
	})

	t.Run("non-python file", func(t *testing.T) {
		res, _ := tool.Execute(context.Background(), map[string]any{"path": "/dapp/app/page.tsx"})
		if res.Success {
			t.Error("expected rejection of a non-.py path")
		}
	})
}

func TestCompileBlueprint(t *testing.T) {
	store := blueprintStore()
	tool := &Compile{store: store}

	res, _ := tool.Execute(context.Background(), map[string]any{"path": "/blueprints/counter.py"})
	if !res.Success {
		t.Fatalf("expected compile, got %q", res.Error)
	}
	var payload struct {
		BlueprintID string   `json:"blueprint_id"`
		Class       string   `json:"class"`
		Methods     []Method `json:"methods"`
	}
	if _, err := res.DecodeData(&payload); err != nil {
		t.Fatal(err)
	}
	if len(payload.BlueprintID) != 64 {
		t.Errorf("expected a sha256 hex id, got %q", payload.BlueprintID)
	}

	// Identical source compiles to the identical id.
	again, _ := tool.Execute(context.Background(), map[string]any{"path": "/blueprints/counter.py"})
	var second struct {
		BlueprintID string `json:"blueprint_id"`
	}
	again.DecodeData(&second)
	if second.BlueprintID != payload.BlueprintID {
		t.Error("blueprint id must be deterministic")
	}

	// Changed source changes the id.
	store.Write("/blueprints/counter.py", counterSource+"\n# changed\n")
	changed, _ := tool.Execute(context.Background(), map[string]any{"path": "/blueprints/counter.py"})
	var third struct {
		BlueprintID string `json:"blueprint_id"`
	}
	changed.DecodeData(&third)
	if third.BlueprintID == payload.BlueprintID {
		t.Error("blueprint id must track content")
	}

	// The message names the path the lookup resolved, not the one the
	// agent sent.
	corrected, _ := tool.Execute(context.Background(), map[string]any{"path": "/blueprints/Counter.py"})
	if !corrected.Success {
		t.Fatalf("expected compile via corrected path, got %q", corrected.Error)
	}
	if !strings.Contains(corrected.Message, "/blueprints/counter.py") {
		t.Errorf("expected resolved path in message, got %q", corrected.Message)
	}
}

func TestListBlueprintMethods(t *testing.T) {
	tool := &ListMethods{store: blueprintStore()}

	res, _ := tool.Execute(context.Background(), map[string]any{"path": "/blueprints/counter.py"})
	if !res.Success {
		t.Fatal(res.Error)
	}
	var payload struct {
		Methods []Method `json:"methods"`
	}
	if _, err := res.DecodeData(&payload); err != nil {
		t.Fatal(err)
	}
	names := make([]string, len(payload.Methods))
	for i, m := range payload.Methods {
		names[i] = m.Name
	}
	joined := strings.Join(names, ",")
	for _, want := range []string{"initialize", "increment", "get_count"} {
		if !strings.Contains(joined, want) {
			t.Errorf("missing method %s in %v", want, names)
		}
	}
}

type stubRunner struct {
	result models.ToolResult
	err    error
	calls  int
}

func (s *stubRunner) RunBlueprintTests(ctx context.Context, path, source string) (models.ToolResult, error) {
	s.calls++
	return s.result, s.err
}

func TestRunBlueprintTests(t *testing.T) {
	store := blueprintStore()

	t.Run("delegates to the runner", func(t *testing.T) {
		runner := &stubRunner{result: models.Ok("3 tests passed", nil)}
		tool := &RunTests{store: store, runner: runner}
		res, _ := tool.Execute(context.Background(), map[string]any{"path": "/blueprints/counter.py"})
		if !res.Success || runner.calls != 1 {
			t.Errorf("expected one delegated run, got success=%v calls=%d", res.Success, runner.calls)
		}
	})

	t.Run("invalid blueprint never reaches the runner", func(t *testing.T) {
		store.Write("/blueprints/broken.py", "def loose():\n    pass\n")
		runner := &stubRunner{err: errors.New("should not be called")}
		tool := &RunTests{store: store, runner: runner}
		res, _ := tool.Execute(context.Background(), map[string]any{"path": "/blueprints/broken.py"})
		if res.Success {
			t.Fatal("expected validation failure")
		}
		if runner.calls != 0 {
			t.Error("runner must not run for an invalid blueprint")
		}
	})

	t.Run("missing runner fails cleanly", func(t *testing.T) {
		tool := &RunTests{store: store}
		res, _ := tool.Execute(context.Background(), map[string]any{"path": "/blueprints/counter.py"})
		if res.Success {
			t.Fatal("expected failure without a sandbox")
		}
		if !strings.Contains(res.Error, "sandbox") {
			t.Errorf("expected a sandbox-unavailable error, got %q", res.Error)
		}
	})
}
