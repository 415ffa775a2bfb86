package api

import (
	"github.com/google/uuid"
)

type Status string

const (
	StatusSuccess   Status = "success"
	StatusError     Status = "error"
	StatusPartial   Status = "partial"
	StatusTimeout   Status = "timeout"
	StatusCancelled Status = "cancelled"
)

type ExecutionMode string

const (
	ExecutionModeSync ExecutionMode = "sync"
	ExecutionModeLive ExecutionMode = "live"
)

// UserContext identifies the requesting user and the tools they may use.
type UserContext struct {
	UserID       string         `json:"user_id,omitempty"`
	UserName     string         `json:"user_name,omitempty"`
	SessionToken string         `json:"session_token,omitempty"`
	Permissions  *Permissions   `json:"permissions,omitempty"`
	Preferences  map[string]any `json:"preferences,omitempty"`
}

// Permissions restricts tool resolution. An empty AllowedTools list allows
// every registered tool except those explicitly denied.
type Permissions struct {
	AllowedTools []string `json:"allowed_tools,omitempty"`
	DeniedTools  []string `json:"denied_tools,omitempty"`
}

// Allows reports whether the named tool may be resolved for this user.
// It accepts both full and short names on either list.
func (p *Permissions) Allows(fullName, shortName string) bool {
	if p == nil {
		return true
	}
	for _, denied := range p.DeniedTools {
		if denied == fullName || denied == shortName {
			return false
		}
	}
	if len(p.AllowedTools) == 0 {
		return true
	}
	for _, allowed := range p.AllowedTools {
		if allowed == fullName || allowed == shortName {
			return true
		}
	}
	return false
}

type SessionContext struct {
	ChatSessionID       string             `json:"chat_session_id,omitempty"`
	FrameworkSessionID  string             `json:"framework_session_id,omitempty"`
	ConversationHistory []UniversalMessage `json:"conversation_history,omitempty"`
}

type ExecutionContext struct {
	ExecutionMode ExecutionMode `json:"execution_mode,omitempty"`
	TimeoutMS     int64         `json:"timeout_ms,omitempty"`
}

// TaskRequest is the single entry shape accepted by the execution engine.
type TaskRequest struct {
	TaskID           string             `json:"task_id,omitempty"`
	TaskType         string             `json:"task_type,omitempty"`
	Description      string             `json:"description,omitempty"`
	UserContext      UserContext        `json:"user_context,omitempty"`
	SessionContext   *SessionContext    `json:"session_context,omitempty"`
	Messages         []UniversalMessage `json:"messages,omitempty"`
	AgentID          string             `json:"agent_id,omitempty"`
	SessionID        string             `json:"session_id,omitempty"`
	AgentConfig      *AgentConfig       `json:"agent_config,omitempty"`
	AvailableTools   []ToolSelector     `json:"available_tools,omitempty"`
	ExecutionContext *ExecutionContext  `json:"execution_context,omitempty"`
	Metadata         map[string]any     `json:"metadata,omitempty"`
}

// Validate normalizes the request in place and reports contract violations.
// A missing task id is filled in, a missing task type defaults to "chat".
func (r *TaskRequest) Validate() error {
	if r.TaskID == "" {
		r.TaskID = uuid.New().String()
	}
	if r.TaskType == "" {
		r.TaskType = "chat"
	}
	if r.TaskType == "chat" && len(r.Messages) == 0 {
		return NewError(CodeRequestValidation, "chat tasks require at least one message")
	}
	if r.ExecutionContext != nil {
		switch r.ExecutionContext.ExecutionMode {
		case "", ExecutionModeSync, ExecutionModeLive:
		default:
			return Errorf(CodeRequestValidation, "unknown execution mode %q", r.ExecutionContext.ExecutionMode)
		}
	}
	return nil
}

// ChatSessionID returns the business session id, favoring the top-level
// field over the session context.
func (r *TaskRequest) ChatSessionID() string {
	if r.SessionID != "" {
		return r.SessionID
	}
	if r.SessionContext != nil {
		return r.SessionContext.ChatSessionID
	}
	return ""
}

// Live reports whether the request asks for streamed execution, either via
// the execution context or the stream_mode metadata flag.
func (r *TaskRequest) Live() bool {
	if r.ExecutionContext != nil && r.ExecutionContext.ExecutionMode == ExecutionModeLive {
		return true
	}
	if streamMode, ok := r.Metadata["stream_mode"].(bool); ok {
		return streamMode
	}
	return false
}

// Timeout returns the task-level deadline in milliseconds, zero when unset.
func (r *TaskRequest) Timeout() int64 {
	if r.ExecutionContext == nil {
		return 0
	}
	return r.ExecutionContext.TimeoutMS
}

// ToolHeaders returns the per-task tool headers from metadata, if any.
func (r *TaskRequest) ToolHeaders() map[string]string {
	return headersFromMetadata(r.Metadata)
}

// ToolNames returns the names carried by available_tools, inline
// descriptors included.
func (r *TaskRequest) ToolNames() []string {
	if len(r.AvailableTools) == 0 {
		return nil
	}
	names := make([]string, 0, len(r.AvailableTools))
	for _, selector := range r.AvailableTools {
		if selector.Name != "" {
			names = append(names, selector.Name)
		}
	}
	return names
}

func headersFromMetadata(metadata map[string]any) map[string]string {
	raw, ok := metadata["tool_headers"]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case map[string]string:
		return v
	case map[string]any:
		headers := make(map[string]string, len(v))
		for key, value := range v {
			if s, ok := value.(string); ok {
				headers[key] = s
			}
		}
		return headers
	}
	return nil
}

type TokenUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
}

type ExecutionMetadata struct {
	DurationMS      int64      `json:"duration_ms"`
	TokenUsage      TokenUsage `json:"token_usage"`
	Framework       string     `json:"framework,omitempty"`
	SwitchOccurred  bool       `json:"switch_occurred,omitempty"`
	Recovered       bool       `json:"recovered,omitempty"`
	PreviousAgentID string     `json:"previous_agent_id,omitempty"`
}

// TaskResult is the synchronous execution outcome. AgentID and SessionID
// are always echoed so the client can continue the conversation.
type TaskResult struct {
	TaskID            string             `json:"task_id"`
	Status            Status             `json:"status"`
	Messages          []UniversalMessage `json:"messages,omitempty"`
	AgentID           string             `json:"agent_id,omitempty"`
	SessionID         string             `json:"session_id,omitempty"`
	ToolResults       []ToolResult       `json:"tool_results,omitempty"`
	Error             *Error             `json:"error,omitempty"`
	ExecutionMetadata ExecutionMetadata  `json:"execution_metadata"`
}
