package tools

import (
	"cmp"
	"context"
)

// Tool is one callable tool exposed to the model. Parameters and
// OutputSchema hold JSON schemas (typically built with MustSchemaFor).
type Tool struct {
	Name         string          `json:"name"`
	Category     string          `json:"category,omitempty"`
	Description  string          `json:"description,omitempty"`
	Parameters   any             `json:"parameters,omitempty"`
	OutputSchema any             `json:"output_schema,omitempty"`
	Handler      ToolHandler     `json:"-"`
	Annotations  ToolAnnotations `json:"annotations,omitempty"`
	// Metadata carries transport hints. Keys with the "header:" prefix
	// become per-tool HTTP headers.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ToolAnnotations mirror MCP tool annotations so MCP-provided tools
// convert without loss. RequiresConfirmation is an extension: when set it
// overrides the read-only heuristic for the approval gate.
type ToolAnnotations struct {
	DestructiveHint      *bool  `json:"destructiveHint,omitempty"`
	IdempotentHint       bool   `json:"idempotentHint,omitempty"`
	OpenWorldHint        *bool  `json:"openWorldHint,omitempty"`
	ReadOnlyHint         bool   `json:"readOnlyHint,omitempty"`
	RequiresConfirmation *bool  `json:"requiresConfirmation,omitempty"`
	Title                string `json:"title,omitempty"`
}

func (t *Tool) DisplayName() string {
	return cmp.Or(t.Annotations.Title, t.Name)
}

// ParametersMap renders the parameter schema as a plain map for transports
// that require one.
func (t *Tool) ParametersMap() (map[string]any, error) {
	if t.Parameters == nil {
		return nil, nil
	}
	if m, ok := t.Parameters.(map[string]any); ok {
		return m, nil
	}
	var m map[string]any
	if err := ConvertSchema(t.Parameters, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// RequiresConfirmation reports whether executing this tool must pass the
// human approval gate. An explicit annotation wins; otherwise read-only
// tools bypass the gate.
func (t *Tool) RequiresConfirmation() bool {
	if t.Annotations.RequiresConfirmation != nil {
		return *t.Annotations.RequiresConfirmation
	}
	return !t.Annotations.ReadOnlyHint
}

// ToolHandler executes a single tool call.
type ToolHandler func(ctx context.Context, toolCall ToolCall) (*ToolCallResult, error)

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID       string       `json:"id,omitempty"`
	Type     string       `json:"type,omitempty"`
	Function FunctionCall `json:"function"`
}

type FunctionCall struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

type ToolCallResult struct {
	Output  string `json:"output"`
	IsError bool   `json:"is_error,omitempty"`
}

func ResultSuccess(output string) *ToolCallResult {
	return &ToolCallResult{Output: output}
}

func ResultError(output string) *ToolCallResult {
	return &ToolCallResult{Output: output, IsError: true}
}
