package models

// ToolCall is a single tool invocation requested by the agent.
type ToolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// BatchProgress is emitted after each item of a batch completes, so the
// transport can render incremental progress to the user.
type BatchProgress struct {
	Step  int    `json:"step"`
	Total int    `json:"total"`
	Label string `json:"label"`
}

// BatchReport is the payload of a batch envelope. It always carries full
// per-item detail so callers can distinguish fully, partially, and not at
// all successful batches.
type BatchReport struct {
	Total     int          `json:"total"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Results   []BatchEntry `json:"results"`
}

// BatchEntry records one item's outcome inside a BatchReport.
type BatchEntry struct {
	Label   string `json:"label"`
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// FileWrite is the payload of a successful write_file call.
type FileWrite struct {
	Path    string `json:"path"`
	Size    int    `json:"size"`
	Created bool   `json:"created"`
}

// FileRead is the payload of a successful read_file call.
type FileRead struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}
