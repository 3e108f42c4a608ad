package models

import "time"

// ToolEventStage describes the lifecycle stage of a tool invocation for observability.
type ToolEventStage string

const (
	ToolEventRequested ToolEventStage = "requested"
	ToolEventStarted   ToolEventStage = "started"
	ToolEventSucceeded ToolEventStage = "succeeded"
	ToolEventFailed    ToolEventStage = "failed"
	ToolEventRetrying  ToolEventStage = "retrying"
	ToolEventCached    ToolEventStage = "cached"
	ToolEventBlocked   ToolEventStage = "blocked"
)

// BlockReason explains why the control plane refused a call without
// touching the executor.
type BlockReason string

const (
	BlockPlanGate    BlockReason = "plan_gate"
	BlockFailureLoop BlockReason = "failure_loop"
	BlockValidation  BlockReason = "validation"
)

// ToolEvent represents a lifecycle event for a tool call including timing and outcome.
type ToolEvent struct {
	ToolCallID  string         `json:"tool_call_id"`
	ToolName    string         `json:"tool_name"`
	Stage       ToolEventStage `json:"stage"`
	Attempt     int            `json:"attempt,omitempty"`
	Output      string         `json:"output,omitempty"`
	Error       string         `json:"error,omitempty"`
	BlockReason BlockReason    `json:"block_reason,omitempty"`
	StartedAt   time.Time      `json:"started_at,omitempty"`
	FinishedAt  time.Time      `json:"finished_at,omitempty"`
}
