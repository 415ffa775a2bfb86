package api

import (
	"bytes"
	"encoding/json"
)

// UniversalTool is the framework-neutral tool descriptor used when a task
// supplies inline tool definitions.
type UniversalTool struct {
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Parameters  map[string]any    `json:"parameters,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// ToolSelector is one entry of available_tools: either a bare tool name or
// a full inline descriptor.
type ToolSelector struct {
	Name string
	Tool *UniversalTool
}

func (s ToolSelector) MarshalJSON() ([]byte, error) {
	if s.Tool != nil {
		return json.Marshal(s.Tool)
	}
	return json.Marshal(s.Name)
}

func (s *ToolSelector) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		s.Tool = &UniversalTool{}
		if err := json.Unmarshal(trimmed, s.Tool); err != nil {
			return err
		}
		s.Name = s.Tool.Name
		return nil
	}
	return json.Unmarshal(trimmed, &s.Name)
}

// ToolRequest asks the invocation service to run one tool.
type ToolRequest struct {
	RequestID string          `json:"request_id,omitempty"`
	ToolName  string          `json:"tool_name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	Metadata  map[string]any  `json:"metadata,omitempty"`
	TimeoutMS int64           `json:"timeout_ms,omitempty"`
}

// ToolHeaders returns the per-call headers from metadata, if any.
func (r *ToolRequest) ToolHeaders() map[string]string {
	return headersFromMetadata(r.Metadata)
}

type ToolResult struct {
	RequestID  string `json:"request_id,omitempty"`
	ToolName   string `json:"tool_name"`
	Status     Status `json:"status"`
	Output     string `json:"output,omitempty"`
	Error      *Error `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

type ToolChunkType string

const (
	ToolChunkTypeProgress ToolChunkType = "progress"
	ToolChunkTypeResult   ToolChunkType = "result"
)

// ToolChunk is one element of a streamed tool execution: zero or more
// progress chunks followed by exactly one result chunk.
type ToolChunk struct {
	RequestID string        `json:"request_id,omitempty"`
	Type      ToolChunkType `json:"type"`
	Content   string        `json:"content,omitempty"`
	Result    *ToolResult   `json:"result,omitempty"`
}
