package mcp

import (
	"encoding/json"
	"fmt"
)

// Result is the tagged outcome of a remote tool call. Remote failures are
// carried as data, never as Go errors, so callers can forward them to the
// end user unchanged.
type Result struct {
	OK      bool
	Payload map[string]any
	Err     string
}

func Success(payload map[string]any) Result {
	return Result{OK: true, Payload: payload}
}

func Errorf(format string, args ...any) Result {
	return Result{Err: fmt.Sprintf(format, args...)}
}

// MarshalJSON emits the remote payload as-is on success and a
// {"status":"error","error":...} object on failure, matching the shape the
// tool servers themselves produce.
func (r Result) MarshalJSON() ([]byte, error) {
	if r.OK {
		return json.Marshal(r.Payload)
	}
	return json.Marshal(map[string]string{"status": "error", "error": r.Err})
}

// Health is the outcome of a per-server health probe.
type Health struct {
	Status         string   `json:"status"`
	Server         string   `json:"server_name"`
	AvailableTools []string `json:"available_tools,omitempty"`
	Error          string   `json:"error,omitempty"`
}
