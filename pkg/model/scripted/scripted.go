// Package scripted provides a deterministic model connection for tests.
// Each call to CreateChatCompletionStream replays the next scripted turn.
package scripted

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/agentcore/agentcore/pkg/chat"
	"github.com/agentcore/agentcore/pkg/model"
	"github.com/agentcore/agentcore/pkg/tools"
)

// Turn is one scripted model response, emitted delta by delta.
type Turn struct {
	Deltas []model.StreamDelta

	hang bool
}

// Text returns a turn that streams the given text one delta per string and
// finishes with a stop reason.
func Text(parts ...string) Turn {
	var turn Turn
	for _, part := range parts {
		turn.Deltas = append(turn.Deltas, model.StreamDelta{Content: part})
	}
	turn.Deltas = append(turn.Deltas, model.StreamDelta{FinishReason: chat.FinishReasonStop})
	return turn
}

// Hang returns a turn that streams the given parts and then blocks until
// the stream context ends, never finishing on its own. It stands in for a
// model that keeps the connection open while a client cancels.
func Hang(parts ...string) Turn {
	var turn Turn
	for _, part := range parts {
		turn.Deltas = append(turn.Deltas, model.StreamDelta{Content: part})
	}
	turn.hang = true
	return turn
}

// Reasoning prefixes a turn with reasoning deltas.
func (t Turn) Reasoning(parts ...string) Turn {
	var deltas []model.StreamDelta
	for _, part := range parts {
		deltas = append(deltas, model.StreamDelta{ReasoningContent: part})
	}
	t.Deltas = append(deltas, t.Deltas...)
	return t
}

// WithUsage attaches token usage to the final delta of the turn.
func (t Turn) WithUsage(inputTokens, outputTokens int64) Turn {
	if len(t.Deltas) == 0 {
		return t
	}
	t.Deltas[len(t.Deltas)-1].Usage = &chat.Usage{
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
	}
	return t
}

// ToolCall returns a turn that requests one tool call and finishes with a
// tool-calls reason.
func ToolCall(id, name, arguments string) Turn {
	return Turn{Deltas: []model.StreamDelta{
		{ToolCalls: []model.ToolCallDelta{{ID: id, Name: name}}},
		{ToolCalls: []model.ToolCallDelta{{Arguments: arguments}}},
		{FinishReason: chat.FinishReasonToolCalls},
	}}
}

// Connection replays scripted turns in order. When the script runs out it
// falls back to a fixed closing turn so conversations always terminate.
type Connection struct {
	mu    sync.Mutex
	turns []Turn
	calls [][]chat.Message
}

var _ model.Connection = (*Connection)(nil)

func New(turns ...Turn) *Connection {
	return &Connection{turns: turns}
}

// Append schedules more turns after those already queued.
func (c *Connection) Append(turns ...Turn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = append(c.turns, turns...)
}

// Calls returns the message history observed by each stream call, in order.
func (c *Connection) Calls() [][]chat.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	calls := make([][]chat.Message, len(c.calls))
	copy(calls, c.calls)
	return calls
}

func (c *Connection) CreateChatCompletionStream(ctx context.Context, messages []chat.Message, _ []tools.Tool) (model.MessageStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	recorded := make([]chat.Message, len(messages))
	for i, msg := range messages {
		recorded[i] = msg.Clone()
	}
	c.calls = append(c.calls, recorded)

	turn := Text("(script exhausted)")
	if len(c.turns) > 0 {
		turn = c.turns[0]
		c.turns = c.turns[1:]
	}
	return &stream{ctx: ctx, deltas: turn.Deltas, hang: turn.hang}, nil
}

func (c *Connection) CreateChatCompletion(ctx context.Context, messages []chat.Message) (string, error) {
	s, err := c.CreateChatCompletionStream(ctx, messages, nil)
	if err != nil {
		return "", err
	}
	defer s.Close()

	var text string
	for {
		delta, err := s.Recv()
		if err == io.EOF {
			return text, nil
		}
		if err != nil {
			return "", fmt.Errorf("scripted completion: %w", err)
		}
		text += delta.Content
	}
}

type stream struct {
	ctx    context.Context
	deltas []model.StreamDelta
	pos    int
	hang   bool
}

func (s *stream) Recv() (model.StreamDelta, error) {
	if err := s.ctx.Err(); err != nil {
		return model.StreamDelta{}, err
	}
	if s.pos >= len(s.deltas) {
		if s.hang {
			<-s.ctx.Done()
			return model.StreamDelta{}, s.ctx.Err()
		}
		return model.StreamDelta{}, io.EOF
	}
	delta := s.deltas[s.pos]
	s.pos++
	return delta, nil
}

func (s *stream) Close() error {
	s.pos = len(s.deltas)
	return nil
}
