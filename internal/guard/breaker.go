// Package guard holds the circuit breakers that keep an agent turn from
// running away: the failure-loop breaker refuses a call that keeps
// failing with identical arguments, and the round limiter caps automatic
// agent continuations. Both reset together at every new user turn.
package guard

import (
	"fmt"
	"sync"

	"github.com/HathorNetwork/hathor-playground-sub001/internal/toolcall"
	"github.com/HathorNetwork/hathor-playground-sub001/pkg/models"
)

// DefaultMaxFailures is how many consecutive failures of one exact
// (tool, args) signature are tolerated before the next identical attempt
// is refused. With 2, the third identical attempt is blocked.
const DefaultMaxFailures = 2

// Breaker tracks consecutive failures per exact call signature within
// one user turn. Only operational failures count: validation and policy
// rejections never reach it.
type Breaker struct {
	mu          sync.Mutex
	failures    map[string]int
	maxFailures int
}

// NewBreaker creates a Breaker; maxFailures <= 0 selects the default.
func NewBreaker(maxFailures int) *Breaker {
	if maxFailures <= 0 {
		maxFailures = DefaultMaxFailures
	}
	return &Breaker{
		failures:    make(map[string]int),
		maxFailures: maxFailures,
	}
}

// ShouldBlock reports whether a call must be refused because its exact
// signature already failed maxFailures times in a row.
func (b *Breaker) ShouldBlock(tool string, args map[string]any) bool {
	key := toolcall.Signature(tool, args)
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures[key] >= b.maxFailures
}

// RecordFailure increments the consecutive-failure count for the
// signature and returns the new count.
func (b *Breaker) RecordFailure(tool string, args map[string]any) int {
	key := toolcall.Signature(tool, args)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[key]++
	return b.failures[key]
}

// RecordSuccess clears the signature entirely: a later repeat of the
// same call starts counting from scratch.
func (b *Breaker) RecordSuccess(tool string, args map[string]any) {
	key := toolcall.Signature(tool, args)
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.failures, key)
}

// FailureCount returns the current count for a signature.
func (b *Breaker) FailureCount(tool string, args map[string]any) int {
	key := toolcall.Signature(tool, args)
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures[key]
}

// Reset drops all failure state. Called at the start of every user turn
// and on chat clear, so failures from an unrelated request cannot poison
// a new one.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = make(map[string]int)
}

// BlockEnvelope builds the refusal returned instead of executing a
// blocked call. The message text is part of the contract: the agent
// reads it and is expected to change strategy, so it says explicitly not
// to repeat the call.
func (b *Breaker) BlockEnvelope(tool string) models.ToolResult {
	msg := fmt.Sprintf(
		"%s has failed %d times in a row with these exact arguments. "+
			"Do not repeat this call. Re-read the error from the previous attempt, "+
			"change the arguments or try a different approach.",
		tool, b.maxFailures,
	)
	return models.Fail(msg, "blocked: repeated identical failures for "+tool)
}
