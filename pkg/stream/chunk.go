// Package stream translates runtime events into the typed chunk protocol
// delivered to live clients, and wraps one live task as a controllable
// session.
package stream

import "github.com/agentcore/agentcore/pkg/api"

type ChunkType string

const (
	TypePlanDelta     ChunkType = "PLAN_DELTA"
	TypePlanSummary   ChunkType = "PLAN_SUMMARY"
	TypeToolProposal  ChunkType = "TOOL_PROPOSAL"
	TypeToolResult    ChunkType = "TOOL_RESULT"
	TypeAssistantText ChunkType = "ASSISTANT_TEXT"
	TypeProgress      ChunkType = "PROGRESS"
	TypeHITLPrompt    ChunkType = "HITL_PROMPT"
	TypeComplete      ChunkType = "COMPLETE"
	TypeCancelled     ChunkType = "CANCELLED"
	TypeError         ChunkType = "ERROR"
)

// Stage names the pipeline phase a chunk belongs to.
type Stage string

const (
	StagePlan      Stage = "plan"
	StageAssistant Stage = "assistant"
	StageTool      Stage = "tool"
	StageControl   Stage = "control"
	StageError     Stage = "error"
)

// KindToolError marks a tool failure that does not terminate the stream.
const KindToolError = "tool.error"

type Metadata struct {
	Stage                Stage    `json:"stage,omitempty"`
	InteractionID        string   `json:"interaction_id,omitempty"`
	ToolFullName         string   `json:"tool_full_name,omitempty"`
	ToolShortName        string   `json:"tool_short_name,omitempty"`
	ToolNamespace        string   `json:"tool_namespace,omitempty"`
	RequiresConfirmation bool     `json:"requires_confirmation,omitempty"`
	DurationMS           int64    `json:"duration_ms,omitempty"`
	InputTokens          int64    `json:"input_tokens,omitempty"`
	OutputTokens         int64    `json:"output_tokens,omitempty"`
	AutoTimeout          bool     `json:"auto_timeout,omitempty"`
	IsFinal              bool     `json:"is_final,omitempty"`
	Code                 api.Code `json:"code,omitempty"`
	AgentID              string   `json:"agent_id,omitempty"`
	ChatSessionID        string   `json:"chat_session_id,omitempty"`
}

// Chunk is one element of a live task's output stream. SequenceID is
// strictly increasing per task, starting at 1.
type Chunk struct {
	TaskID     string    `json:"task_id"`
	Type       ChunkType `json:"chunk_type"`
	Kind       string    `json:"chunk_kind,omitempty"`
	SequenceID uint64    `json:"sequence_id"`
	Content    string    `json:"content,omitempty"`
	Metadata   Metadata  `json:"metadata"`
}

// Terminal reports whether the chunk closes the stream. Tool-scoped
// errors are not terminal; the conversation continues past them.
func (c *Chunk) Terminal() bool {
	switch c.Type {
	case TypeComplete, TypeCancelled:
		return true
	case TypeError:
		return c.Kind != KindToolError
	default:
		return false
	}
}
