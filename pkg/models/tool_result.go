package models

import (
	"encoding/json"
	"time"
)

// ToolResult is the envelope every tool call returns. It is the single
// contract between the runtime and tool executors: executors produce one,
// the control plane may synthesize one (policy blocks, validation failures),
// and callers never see a language-level error cross this boundary.
//
// Invariants:
//   - Success == false implies Error is non-empty.
//   - Success == true implies Error is empty; Data may still be absent.
//
// A returned envelope is immutable. Cache hits are shallow copies, never the
// stored original.
type ToolResult struct {
	Success  bool            `json:"success"`
	Message  string          `json:"message"`
	Data     json.RawMessage `json:"data,omitempty"`
	Error    string          `json:"error,omitempty"`
	Warnings []string        `json:"warnings,omitempty"`
	Metadata *ResultMetadata `json:"metadata,omitempty"`
}

// ResultMetadata carries execution bookkeeping attached to an envelope.
type ResultMetadata struct {
	ExecutionTime time.Duration `json:"execution_time,omitempty"`
	ToolVersion   string        `json:"tool_version,omitempty"`
	RetryCount    int           `json:"retry_count,omitempty"`
	Cached        bool          `json:"cached,omitempty"`
	Timestamp     time.Time     `json:"timestamp,omitempty"`
}

// Ok builds a successful envelope with an optional payload.
// The payload is marshaled immediately so later mutation of v cannot leak
// into a cached result.
func Ok(message string, v any) ToolResult {
	res := ToolResult{
		Success: true,
		Message: message,
		Metadata: &ResultMetadata{
			Timestamp: time.Now(),
		},
	}
	if v != nil {
		if data, err := json.Marshal(v); err == nil {
			res.Data = data
		}
	}
	return res
}

// Fail builds a failure envelope. The message is for humans, errDetail for
// the calling agent.
func Fail(message, errDetail string) ToolResult {
	if errDetail == "" {
		errDetail = message
	}
	return ToolResult{
		Success: false,
		Message: message,
		Error:   errDetail,
		Metadata: &ResultMetadata{
			Timestamp: time.Now(),
		},
	}
}

// WithWarnings returns a copy of the envelope with warnings attached.
func (r ToolResult) WithWarnings(warnings ...string) ToolResult {
	if len(warnings) == 0 {
		return r
	}
	r.Warnings = append(append([]string(nil), r.Warnings...), warnings...)
	return r
}

// Clone returns a copy that shares no mutable state with the receiver.
func (r ToolResult) Clone() ToolResult {
	out := r
	if r.Data != nil {
		out.Data = append(json.RawMessage(nil), r.Data...)
	}
	if r.Warnings != nil {
		out.Warnings = append([]string(nil), r.Warnings...)
	}
	if r.Metadata != nil {
		meta := *r.Metadata
		out.Metadata = &meta
	}
	return out
}

// DecodeData unmarshals the payload into v. Returns false when no payload
// is present.
func (r ToolResult) DecodeData(v any) (bool, error) {
	if len(r.Data) == 0 {
		return false, nil
	}
	return true, json.Unmarshal(r.Data, v)
}
