// Package plangate blocks tool execution until the agent has produced an
// explicit plan. The gate is a four-state machine driven by markers in
// the agent's streamed text; the marker scan is a documented protocol
// between the agent's output format and the runtime.
package plangate

import (
	"strings"
	"sync"

	"github.com/HathorNetwork/hathor-playground-sub001/pkg/models"
)

// State is the gate's position within one user turn.
type State string

const (
	StateIdle       State = "idle"
	StatePlanning   State = "planning"
	StateExecution  State = "execution"
	StateReflection State = "reflection"
)

// Markers the agent emits as literal headings in its output.
const (
	PlanMarker       = "## The Plan"
	ReflectionMarker = "## Reflection"
)

var allowedTransitions = map[State]map[State]bool{
	StateIdle:       {StatePlanning: true},
	StatePlanning:   {StateExecution: true, StateIdle: true},
	StateExecution:  {StateReflection: true, StateIdle: true},
	StateReflection: {StateIdle: true},
}

// Gate tracks plan-gate state for one chat session.
type Gate struct {
	mu    sync.Mutex
	state State
}

// New creates a Gate in the idle state.
func New() *Gate {
	return &Gate{state: StateIdle}
}

// State returns the current state.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// BeginTurn moves the gate to planning for a new user submission,
// whatever state the previous turn left behind.
func (g *Gate) BeginTurn() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = StatePlanning
}

// Reset returns the gate to idle (chat clear or turn cancellation).
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = StateIdle
}

// ObserveAssistantText scans a completed assistant message for markers
// and advances the state machine. Run once per new assistant message.
// Reflection is transient: detecting the reflection marker completes the
// turn and lands back on idle.
func (g *Gate) ObserveAssistantText(text string) State {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch g.state {
	case StatePlanning:
		if HasPlanMarker(text) {
			g.state = StateExecution
		}
	case StateExecution:
		if HasReflectionMarker(text) {
			// execution -> reflection -> idle happens within one
			// observation; reflection is never left pending.
			g.state = StateIdle
		}
	}
	return g.state
}

// Admits reports whether tool calls may run in the current state.
func (g *Gate) Admits() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state == StateExecution
}

// RejectEnvelope is the synthetic envelope returned for a tool call that
// arrives before the plan marker. It instructs the agent in-band; it is
// a policy rejection, not an operational failure, and must not count
// toward the failure breaker.
func (g *Gate) RejectEnvelope(tool string) models.ToolResult {
	return models.Fail(
		"Tool calls are not allowed yet. Write your plan first under a \""+
			PlanMarker+"\" heading, then call "+tool+" again.",
		"blocked: plan required before tool execution",
	)
}

// CanTransition reports whether moving from one state to another is
// legal. Exposed for the runtime's lifecycle assertions.
func CanTransition(from, to State) bool {
	return allowedTransitions[from][to]
}

// HasPlanMarker reports whether the assistant text contains the plan
// heading. Kept as a standalone function so the protocol can be tested
// against literal strings independent of the state machine.
func HasPlanMarker(text string) bool {
	return strings.Contains(text, PlanMarker)
}

// HasReflectionMarker reports whether the assistant text contains the
// reflection heading.
func HasReflectionMarker(text string) bool {
	return strings.Contains(text, ReflectionMarker)
}
