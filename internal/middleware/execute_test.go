package middleware

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/HathorNetwork/hathor-playground-sub001/pkg/models"
)

func TestExecute(t *testing.T) {
	t.Run("passes through a successful envelope", func(t *testing.T) {
		res := Execute(context.Background(), "read_file",
			func(ctx context.Context, args map[string]any) (models.ToolResult, error) {
				return models.Ok("done", nil), nil
			}, nil, Options{})
		if !res.Success {
			t.Fatalf("expected success, got %+v", res)
		}
		if res.Metadata == nil || res.Metadata.RetryCount != 0 {
			t.Errorf("expected retry count 0, got %+v", res.Metadata)
		}
	})

	t.Run("converts a returned error into a failure envelope", func(t *testing.T) {
		res := Execute(context.Background(), "read_file",
			func(ctx context.Context, args map[string]any) (models.ToolResult, error) {
				return models.ToolResult{}, errors.New("file not found: /dapp/x.tsx")
			}, nil, Options{})
		if res.Success {
			t.Fatal("expected failure")
		}
		if !strings.Contains(res.Error, "file not found") {
			t.Errorf("expected error detail, got %q", res.Error)
		}
	})

	t.Run("converts a panic into a failure envelope", func(t *testing.T) {
		res := Execute(context.Background(), "write_file",
			func(ctx context.Context, args map[string]any) (models.ToolResult, error) {
				panic("boom")
			}, nil, Options{})
		if res.Success {
			t.Fatal("expected failure")
		}
		if !strings.Contains(res.Error, "panicked") || !strings.Contains(res.Error, "boom") {
			t.Errorf("expected panic detail, got %q", res.Error)
		}
	})

	t.Run("retries transient failures up to the configured count", func(t *testing.T) {
		calls := 0
		res := Execute(context.Background(), "run_command",
			func(ctx context.Context, args map[string]any) (models.ToolResult, error) {
				calls++
				if calls < 3 {
					return models.ToolResult{}, errors.New("connection refused")
				}
				return models.Ok("ok", nil), nil
			}, nil, Options{Retries: 2})
		if !res.Success {
			t.Fatalf("expected eventual success, got %+v", res)
		}
		if calls != 3 {
			t.Errorf("expected 3 attempts, got %d", calls)
		}
		if res.Metadata.RetryCount != 2 {
			t.Errorf("expected retry count 2, got %d", res.Metadata.RetryCount)
		}
	})

	t.Run("reports each retry through the hook", func(t *testing.T) {
		var attempts []int
		Execute(context.Background(), "read_file",
			func(ctx context.Context, args map[string]any) (models.ToolResult, error) {
				return models.ToolResult{}, errors.New("flaky")
			}, nil, Options{Retries: 2, OnRetry: func(attempt int, lastErr string) {
				if lastErr == "" {
					t.Error("retry hook must carry the previous error")
				}
				attempts = append(attempts, attempt)
			}})
		if len(attempts) != 2 || attempts[0] != 2 || attempts[1] != 3 {
			t.Errorf("expected retry attempts [2 3], got %v", attempts)
		}
	})

	t.Run("zero retries means one attempt", func(t *testing.T) {
		calls := 0
		res := Execute(context.Background(), "write_file",
			func(ctx context.Context, args map[string]any) (models.ToolResult, error) {
				calls++
				return models.ToolResult{}, errors.New("disk full")
			}, nil, Options{})
		if res.Success || calls != 1 {
			t.Errorf("expected single failing attempt, got success=%v calls=%d", res.Success, calls)
		}
	})

	t.Run("times out a hung executor", func(t *testing.T) {
		res := Execute(context.Background(), "run_command",
			func(ctx context.Context, args map[string]any) (models.ToolResult, error) {
				<-ctx.Done()
				time.Sleep(10 * time.Millisecond)
				return models.Ok("late", nil), nil
			}, nil, Options{Timeout: 20 * time.Millisecond})
		if res.Success {
			t.Fatal("expected timeout failure")
		}
		if !strings.Contains(res.Error, "timeout") {
			t.Errorf("expected timeout-specific error, got %q", res.Error)
		}
	})

	t.Run("respects caller cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		res := Execute(ctx, "read_file",
			func(ctx context.Context, args map[string]any) (models.ToolResult, error) {
				t.Error("executor must not run after cancellation")
				return models.Ok("", nil), nil
			}, nil, Options{})
		if res.Success {
			t.Fatal("expected cancellation failure")
		}
	})

	t.Run("repairs a failure envelope missing its error", func(t *testing.T) {
		res := Execute(context.Background(), "read_file",
			func(ctx context.Context, args map[string]any) (models.ToolResult, error) {
				return models.ToolResult{Success: false, Message: "not found"}, nil
			}, nil, Options{})
		if res.Error != "not found" {
			t.Errorf("expected error backfilled from message, got %q", res.Error)
		}
	})

	t.Run("records execution time", func(t *testing.T) {
		res := Execute(context.Background(), "read_file",
			func(ctx context.Context, args map[string]any) (models.ToolResult, error) {
				time.Sleep(5 * time.Millisecond)
				return models.Ok("ok", nil), nil
			}, nil, Options{})
		if res.Metadata.ExecutionTime < 5*time.Millisecond {
			t.Errorf("expected execution time >= 5ms, got %v", res.Metadata.ExecutionTime)
		}
	})
}
