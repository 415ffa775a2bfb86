package runtime

import (
	"github.com/agentcore/agentcore/pkg/api"
	"github.com/agentcore/agentcore/pkg/chat"
	"github.com/agentcore/agentcore/pkg/tools"
)

// Event is one element of a live execution's event stream.
type Event interface {
	isEvent()
}

// StreamStartedEvent opens a live execution.
type StreamStartedEvent struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	AgentID   string `json:"agent_id,omitempty"`
}

func StreamStarted(sessionID, agentID string) Event {
	return &StreamStartedEvent{
		Type:      "stream_started",
		SessionID: sessionID,
		AgentID:   agentID,
	}
}

func (e *StreamStartedEvent) isEvent() {}

// ReasoningDeltaEvent carries one increment of model reasoning output.
type ReasoningDeltaEvent struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

func ReasoningDelta(content string) Event {
	return &ReasoningDeltaEvent{
		Type:    "reasoning_delta",
		Content: content,
	}
}

func (e *ReasoningDeltaEvent) isEvent() {}

// ContentDeltaEvent carries one increment of assistant text.
type ContentDeltaEvent struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

func ContentDelta(content string) Event {
	return &ContentDeltaEvent{
		Type:    "content_delta",
		Content: content,
	}
}

func (e *ContentDeltaEvent) isEvent() {}

// PartialToolCallEvent is sent while a tool call is still being streamed.
type PartialToolCallEvent struct {
	Type     string         `json:"type"`
	ToolCall tools.ToolCall `json:"tool_call"`
}

func PartialToolCall(toolCall tools.ToolCall) Event {
	return &PartialToolCallEvent{
		Type:     "partial_tool_call",
		ToolCall: toolCall,
	}
}

func (e *PartialToolCallEvent) isEvent() {}

// ToolCallEvent is sent when the model has finished proposing a tool call.
// When RequiresConfirmation is set the execution blocks until resumed.
type ToolCallEvent struct {
	Type                 string         `json:"type"`
	ToolCall             tools.ToolCall `json:"tool_call"`
	FullName             string         `json:"full_name"`
	RequiresConfirmation bool           `json:"requires_confirmation"`
	// ReadOnly carries the tool's read-only hint so approval deadline
	// policies can judge the call without resolving the tool again.
	ReadOnly bool `json:"read_only,omitempty"`
}

func ToolCall(toolCall tools.ToolCall, fullName string, requiresConfirmation, readOnly bool) Event {
	return &ToolCallEvent{
		Type:                 "tool_call",
		ToolCall:             toolCall,
		FullName:             fullName,
		RequiresConfirmation: requiresConfirmation,
		ReadOnly:             readOnly,
	}
}

func (e *ToolCallEvent) isEvent() {}

// ToolCallProgressEvent forwards intermediate output from a running tool.
type ToolCallProgressEvent struct {
	Type       string `json:"type"`
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
}

func ToolCallProgress(toolCallID, content string) Event {
	return &ToolCallProgressEvent{
		Type:       "tool_call_progress",
		ToolCallID: toolCallID,
		Content:    content,
	}
}

func (e *ToolCallProgressEvent) isEvent() {}

// ToolCallResponseEvent closes one tool call with its result.
type ToolCallResponseEvent struct {
	Type        string          `json:"type"`
	ToolCall    tools.ToolCall  `json:"tool_call"`
	FullName    string          `json:"full_name"`
	Result      *api.ToolResult `json:"result"`
	AutoTimeout bool            `json:"auto_timeout,omitempty"`
}

func ToolCallResponse(toolCall tools.ToolCall, fullName string, result *api.ToolResult, autoTimeout bool) Event {
	return &ToolCallResponseEvent{
		Type:        "tool_call_response",
		ToolCall:    toolCall,
		FullName:    fullName,
		Result:      result,
		AutoTimeout: autoTimeout,
	}
}

func (e *ToolCallResponseEvent) isEvent() {}

// ElicitationEvent surfaces an input request raised by a tool's backing
// server mid-call. The execution blocks until resumed with a decision.
type ElicitationEvent struct {
	Type    string `json:"type"`
	ID      string `json:"id"`
	Message string `json:"message"`
	Schema  any    `json:"schema,omitempty"`
}

func Elicitation(id, message string, schema any) Event {
	return &ElicitationEvent{
		Type:    "elicitation",
		ID:      id,
		Message: message,
		Schema:  schema,
	}
}

func (e *ElicitationEvent) isEvent() {}

// TokenUsageEvent reports tokens consumed by one model turn.
type TokenUsageEvent struct {
	Type  string     `json:"type"`
	Usage chat.Usage `json:"usage"`
}

func TokenUsage(usage chat.Usage) Event {
	return &TokenUsageEvent{
		Type:  "token_usage",
		Usage: usage,
	}
}

func (e *TokenUsageEvent) isEvent() {}

// ErrorEvent reports an execution failure. It terminates the stream.
type ErrorEvent struct {
	Type  string     `json:"type"`
	Error *api.Error `json:"error"`
}

func Error(err *api.Error) Event {
	return &ErrorEvent{
		Type:  "error",
		Error: err,
	}
}

func (e *ErrorEvent) isEvent() {}

// StreamStoppedEvent closes a live execution normally.
type StreamStoppedEvent struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
}

func StreamStopped(sessionID string) Event {
	return &StreamStoppedEvent{
		Type:      "stream_stopped",
		SessionID: sessionID,
	}
}

func (e *StreamStoppedEvent) isEvent() {}

// StreamCancelledEvent closes a live execution after an interruption.
type StreamCancelledEvent struct {
	Type   string `json:"type"`
	Reason string `json:"reason,omitempty"`
}

func StreamCancelled(reason string) Event {
	return &StreamCancelledEvent{
		Type:   "stream_cancelled",
		Reason: reason,
	}
}

func (e *StreamCancelledEvent) isEvent() {}
