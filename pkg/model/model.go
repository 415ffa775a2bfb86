// Package model defines the streaming connection contract between the
// runtime and concrete LLM providers.
package model

import (
	"context"

	"github.com/agentcore/agentcore/pkg/chat"
	"github.com/agentcore/agentcore/pkg/tools"
)

// Connection is a live link to one model. Implementations must be safe for
// concurrent use; every runner session issues its own calls.
type Connection interface {
	// CreateChatCompletionStream starts a streaming completion. The returned
	// stream yields deltas until io.EOF.
	CreateChatCompletionStream(ctx context.Context, messages []chat.Message, requestTools []tools.Tool) (MessageStream, error)

	// CreateChatCompletion runs a non-streaming completion and returns the
	// assistant text.
	CreateChatCompletion(ctx context.Context, messages []chat.Message) (string, error)
}

// MessageStream is a single-consumer stream of completion deltas.
type MessageStream interface {
	// Recv returns the next delta. It returns io.EOF when the stream is
	// exhausted.
	Recv() (StreamDelta, error)
	Close() error
}

// StreamDelta is one increment of a streamed completion. Tool calls arrive
// fragmented across deltas and are reassembled by index.
type StreamDelta struct {
	Content           string
	ReasoningContent  string
	ThinkingSignature string
	ToolCalls         []ToolCallDelta
	FinishReason      chat.FinishReason
	Usage             *chat.Usage
}

// ToolCallDelta is a fragment of a tool call. The first fragment for an
// index carries the ID and name; later fragments append argument text.
type ToolCallDelta struct {
	Index     int
	ID        string
	Name      string
	Arguments string
}

// AccumulateToolCalls folds a delta's tool-call fragments into the
// aggregate list, growing it as new indexes appear.
func AccumulateToolCalls(calls []tools.ToolCall, deltas []ToolCallDelta) []tools.ToolCall {
	for _, delta := range deltas {
		for delta.Index >= len(calls) {
			calls = append(calls, tools.ToolCall{Type: "function"})
		}
		call := &calls[delta.Index]
		if delta.ID != "" {
			call.ID = delta.ID
		}
		if delta.Name != "" {
			call.Function.Name = delta.Name
		}
		call.Function.Arguments += delta.Arguments
	}
	return calls
}
