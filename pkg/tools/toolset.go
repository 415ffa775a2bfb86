package tools

import (
	"context"
)

// ToolSet is a named group of tools sharing a lifecycle.
type ToolSet interface {
	Tools(ctx context.Context) ([]Tool, error)
}

// Startable is implemented by toolsets that hold external resources.
type Startable interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Instructable is implemented by toolsets that provide custom instructions
// for the system prompt.
type Instructable interface {
	Instructions() string
}

// GetInstructions returns instructions if the toolset implements
// Instructable, the empty string otherwise.
func GetInstructions(ts ToolSet) string {
	if i, ok := As[Instructable](ts); ok {
		return i.Instructions()
	}
	return ""
}
