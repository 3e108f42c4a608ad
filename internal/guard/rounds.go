package guard

import "sync"

// DefaultMaxRounds caps automatic agent->tool->agent round-trips within
// one user turn. A hard circuit breaker against runaway loops, applied
// regardless of whether the individual calls are succeeding.
const DefaultMaxRounds = 50

// RoundLimiter counts automatic continuations of the conversation after
// completed tool batches.
type RoundLimiter struct {
	mu        sync.Mutex
	rounds    int
	maxRounds int
}

// NewRoundLimiter creates a RoundLimiter; maxRounds <= 0 selects the default.
func NewRoundLimiter(maxRounds int) *RoundLimiter {
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRounds
	}
	return &RoundLimiter{maxRounds: maxRounds}
}

// CanAutoContinue reports whether the transport may continue the
// conversation without user input, consuming one round when it returns
// true. Once the cap is reached it keeps returning false until Reset.
func (l *RoundLimiter) CanAutoContinue() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.rounds >= l.maxRounds {
		return false
	}
	l.rounds++
	return true
}

// Rounds returns how many automatic continuations have been consumed.
func (l *RoundLimiter) Rounds() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rounds
}

// Remaining returns how many automatic continuations are left.
func (l *RoundLimiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.maxRounds - l.rounds
}

// Reset zeroes the counter at the start of a new user turn.
func (l *RoundLimiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rounds = 0
}
