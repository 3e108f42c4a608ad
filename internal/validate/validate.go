// Package validate holds the pure pre-flight checks run before any tool
// executes. Validators never touch the cache, the middleware, or the
// failure breaker: bad input is the caller's bug, not a retryable
// condition.
package validate

import (
	"strings"

	"github.com/HathorNetwork/hathor-playground-sub001/pkg/models"
)

// Result is the outcome of a validation check. Errors block execution;
// warnings and suggestions travel with the call but never block it.
type Result struct {
	Valid       bool
	Errors      []string
	Warnings    []string
	Suggestions []string
}

func ok() Result {
	return Result{Valid: true}
}

func fail(errs ...string) Result {
	return Result{Valid: false, Errors: errs}
}

// Merge combines several results: valid only when all are valid, with
// errors, warnings, and suggestions concatenated in order.
func Merge(results ...Result) Result {
	out := Result{Valid: true}
	for _, r := range results {
		if !r.Valid {
			out.Valid = false
		}
		out.Errors = append(out.Errors, r.Errors...)
		out.Warnings = append(out.Warnings, r.Warnings...)
		out.Suggestions = append(out.Suggestions, r.Suggestions...)
	}
	return out
}

// ToEnvelope converts a failed validation into the envelope returned to
// the agent: the joined error list becomes the message, and suggestions
// ride along as warnings so the agent can self-correct.
func (r Result) ToEnvelope() models.ToolResult {
	msg := strings.Join(r.Errors, "; ")
	res := models.Fail(msg, "validation failed: "+msg)
	return res.WithWarnings(append(r.Warnings, r.Suggestions...)...)
}
