package api

import (
	"bytes"
	"encoding/json"
	"strings"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

type ContentPartType string

const (
	ContentPartTypeText     ContentPartType = "text"
	ContentPartTypeImage    ContentPartType = "image"
	ContentPartTypeFile     ContentPartType = "file"
	ContentPartTypeToolCall ContentPartType = "tool_call"
)

// ContentPart is one element of a multi-part message: plain text, an inline
// image (base64 data URL or raw bytes plus MIME type), a file reference, or
// a structured tool call.
type ContentPart struct {
	Type      ContentPartType `json:"type"`
	Text      string          `json:"text,omitempty"`
	ImageURL  string          `json:"image_url,omitempty"`
	ImageData []byte          `json:"image_data,omitempty"`
	MIMEType  string          `json:"mime_type,omitempty"`
	FileID    string          `json:"file_id,omitempty"`
	FileName  string          `json:"file_name,omitempty"`
	ToolCall  *ToolCallPart   `json:"tool_call,omitempty"`
}

// ToolCallPart carries a tool invocation embedded in message content.
type ToolCallPart struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments,omitempty"`
}

// UniversalMessage is the framework-neutral message shape. Content on the
// wire is either a plain string or an array of ContentParts; in memory the
// two variants live in Content and Parts respectively.
type UniversalMessage struct {
	Role    Role          `json:"role"`
	Content string        `json:"-"`
	Parts   []ContentPart `json:"-"`
}

func SystemMessage(text string) UniversalMessage {
	return UniversalMessage{Role: RoleSystem, Content: text}
}

func UserMessage(text string) UniversalMessage {
	return UniversalMessage{Role: RoleUser, Content: text}
}

func AssistantMessage(text string) UniversalMessage {
	return UniversalMessage{Role: RoleAssistant, Content: text}
}

// Text returns the plain-text view of the message: the string content, or
// the concatenation of all text parts.
func (m UniversalMessage) Text() string {
	if m.Content != "" || len(m.Parts) == 0 {
		return m.Content
	}
	var sb strings.Builder
	for _, part := range m.Parts {
		if part.Type == ContentPartTypeText {
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}

type wireMessage struct {
	Role    Role            `json:"role"`
	Content json.RawMessage `json:"content"`
}

func (m UniversalMessage) MarshalJSON() ([]byte, error) {
	var content any
	if len(m.Parts) > 0 {
		content = m.Parts
	} else {
		content = m.Content
	}
	raw, err := json.Marshal(content)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireMessage{Role: m.Role, Content: raw})
}

func (m *UniversalMessage) UnmarshalJSON(data []byte) error {
	var wire wireMessage
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	m.Role = wire.Role
	m.Content = ""
	m.Parts = nil
	content := bytes.TrimSpace(wire.Content)
	if len(content) == 0 || bytes.Equal(content, []byte("null")) {
		return nil
	}
	if content[0] == '[' {
		return json.Unmarshal(content, &m.Parts)
	}
	return json.Unmarshal(content, &m.Content)
}
