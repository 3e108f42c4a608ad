// Package middleware wraps tool executors with bounded retries, a
// deadline, and panic-to-envelope translation. The contract is that
// Execute cannot fail at the language level: whatever the executor does,
// the caller gets a ToolResult.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/HathorNetwork/hathor-playground-sub001/pkg/models"
)

// ExecutorFunc is the boundary signature every tool supplies: arguments
// in, envelope or error out. Returned errors and panics are both folded
// into failure envelopes by Execute.
type ExecutorFunc func(ctx context.Context, args map[string]any) (models.ToolResult, error)

// Options configures a single wrapped execution.
type Options struct {
	// Retries is the number of middleware-level re-invocations after a
	// failure. Zero means one attempt total. Side-effecting tools should
	// keep this at zero unless the operation is provably idempotent.
	Retries int

	// Timeout bounds each attempt. Zero means no deadline beyond the
	// caller's context.
	Timeout time.Duration

	// RetryBackoff waits between attempts.
	RetryBackoff time.Duration

	// OnRetry, when set, is called before each re-attempt with the
	// attempt number about to run and the error that caused the retry.
	OnRetry func(attempt int, lastErr string)
}

// Execute runs fn with the configured retry and timeout discipline and
// always returns an envelope. The envelope's metadata records execution
// time and how many retries were consumed.
func Execute(ctx context.Context, name string, fn ExecutorFunc, args map[string]any, opts Options) models.ToolResult {
	start := time.Now()
	attempts := opts.Retries + 1
	if attempts < 1 {
		attempts = 1
	}

	var result models.ToolResult
	retriesUsed := 0
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			retriesUsed++
			if opts.OnRetry != nil {
				opts.OnRetry(attempt, result.Error)
			}
			if opts.RetryBackoff > 0 {
				select {
				case <-time.After(opts.RetryBackoff):
				case <-ctx.Done():
				}
			}
		}
		if ctx.Err() != nil {
			result = models.Fail("tool execution canceled", ctx.Err().Error())
			break
		}

		result = runOnce(ctx, name, fn, args, opts.Timeout)
		if result.Success {
			break
		}
	}

	if result.Metadata == nil {
		result.Metadata = &models.ResultMetadata{}
	}
	result.Metadata.ExecutionTime = time.Since(start)
	result.Metadata.RetryCount = retriesUsed
	if result.Metadata.Timestamp.IsZero() {
		result.Metadata.Timestamp = time.Now()
	}
	return result
}

// runOnce performs a single attempt, racing the executor against the
// deadline. A late result from a timed-out executor is discarded rather
// than delivered after the envelope has already been produced.
func runOnce(ctx context.Context, name string, fn ExecutorFunc, args map[string]any, timeout time.Duration) models.ToolResult {
	attemptCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type outcome struct {
		result models.ToolResult
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("tool %s panicked: %v\n%s", name, r, debug.Stack())}
			}
		}()
		res, err := fn(attemptCtx, args)
		done <- outcome{result: res, err: err}
	}()

	select {
	case <-attemptCtx.Done():
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			return models.Fail(
				fmt.Sprintf("tool %s timed out after %v", name, timeout),
				fmt.Sprintf("timeout: execution exceeded %v", timeout),
			)
		}
		return models.Fail("tool execution canceled", attemptCtx.Err().Error())
	case out := <-done:
		if out.err != nil {
			return models.Fail(
				fmt.Sprintf("tool %s failed: %v", name, out.err),
				out.err.Error(),
			)
		}
		if !out.result.Success && out.result.Error == "" {
			// Executors are supposed to uphold the envelope invariant;
			// repair it here rather than leaking a malformed failure.
			out.result.Error = out.result.Message
		}
		return out.result
	}
}
