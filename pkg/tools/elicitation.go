package tools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type ElicitationAction string

const (
	ElicitationActionAccept  ElicitationAction = "accept"
	ElicitationActionDecline ElicitationAction = "decline"
	ElicitationActionCancel  ElicitationAction = "cancel"
)

// ElicitationHandler answers an elicitation request raised by an MCP server
// during a tool call, usually by relaying it to the human on the other side
// of the stream.
type ElicitationHandler func(ctx context.Context, req *mcp.ElicitParams) (ElicitationResult, error)

type ElicitationResult struct {
	Action  ElicitationAction `json:"action"`
	Content map[string]any    `json:"content,omitempty"`
}

type elicitationContextKey string

const elicitationHandlerKey elicitationContextKey = "tool_elicitation_handler"

// WithElicitationHandler returns a context that routes elicitation requests
// raised during tool calls to the given handler. The handler is scoped to
// one execution so concurrent runs of a shared toolset cannot cross wires.
func WithElicitationHandler(ctx context.Context, handler ElicitationHandler) context.Context {
	if handler == nil {
		return ctx
	}
	return context.WithValue(ctx, elicitationHandlerKey, handler)
}

// ElicitationHandlerFromContext retrieves the call-scoped elicitation
// handler, or nil when none is installed.
func ElicitationHandlerFromContext(ctx context.Context) ElicitationHandler {
	if handler, ok := ctx.Value(elicitationHandlerKey).(ElicitationHandler); ok {
		return handler
	}
	return nil
}
