// Package chat holds the provider-neutral conversation types exchanged
// between the runtime and model connections.
package chat

import (
	"slices"

	"github.com/agentcore/agentcore/pkg/tools"
)

type MessageRole string

const (
	MessageRoleSystem    MessageRole = "system"
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleTool      MessageRole = "tool"
)

// Message is one transcript entry. Content and MultiContent are mutually
// exclusive; MultiContent carries mixed text/image parts for providers that
// accept them.
type Message struct {
	Role              MessageRole      `json:"role"`
	Content           string           `json:"content,omitempty"`
	MultiContent      []MessagePart    `json:"multi_content,omitempty"`
	ReasoningContent  string           `json:"reasoning_content,omitempty"`
	ThinkingSignature string           `json:"thinking_signature,omitempty"`
	ToolCalls         []tools.ToolCall `json:"tool_calls,omitempty"`
	// ToolCallID links a tool-role message back to the call it answers.
	ToolCallID string `json:"tool_call_id,omitempty"`
	IsError    bool   `json:"is_error,omitempty"`
	CreatedAt  string `json:"created_at,omitempty"`
}

// Clone returns a deep copy safe to hand across goroutines.
func (m Message) Clone() Message {
	out := m
	out.MultiContent = slices.Clone(m.MultiContent)
	out.ToolCalls = slices.Clone(m.ToolCalls)
	return out
}

// Text returns the textual content of the message, flattening multi-part
// content when present.
func (m Message) Text() string {
	if m.Content != "" || len(m.MultiContent) == 0 {
		return m.Content
	}
	var text string
	for _, part := range m.MultiContent {
		if part.Type == MessagePartTypeText {
			if text != "" {
				text += "\n"
			}
			text += part.Text
		}
	}
	return text
}

type MessagePartType string

const (
	MessagePartTypeText     MessagePartType = "text"
	MessagePartTypeImageURL MessagePartType = "image_url"
)

type MessagePart struct {
	Type     MessagePartType  `json:"type"`
	Text     string           `json:"text,omitempty"`
	ImageURL *MessageImageURL `json:"image_url,omitempty"`
}

// MessageImageURL addresses an image by URL, including data URLs for inline
// bytes.
type MessageImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

// Usage counts tokens consumed by one model call.
type Usage struct {
	InputTokens       int64 `json:"input_tokens"`
	OutputTokens      int64 `json:"output_tokens"`
	CachedInputTokens int64 `json:"cached_input_tokens,omitempty"`
	CacheWriteTokens  int64 `json:"cache_write_tokens,omitempty"`
}

// IsZero reports whether no tokens were recorded.
func (u Usage) IsZero() bool {
	return u == Usage{}
}

func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.CachedInputTokens += other.CachedInputTokens
	u.CacheWriteTokens += other.CacheWriteTokens
}

type FinishReason string

const (
	FinishReasonStop      FinishReason = "stop"
	FinishReasonToolCalls FinishReason = "tool_calls"
)
