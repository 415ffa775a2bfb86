package stream

import (
	"context"
	"sync"

	"github.com/agentcore/agentcore/pkg/approval"
	"github.com/agentcore/agentcore/pkg/runtime"
)

// chunkBufferSize is the capacity of a live session's chunk channel.
const chunkBufferSize = 64

// Session is one live task as seen by a client: a chunk stream plus the
// control plane for approvals, mid-run input, and cancellation.
type Session struct {
	taskID        string
	chatSessionID string

	execution *runtime.Execution
	broker    *approval.Broker
	converter *Converter

	chunks  chan *Chunk
	closed  chan struct{}
	once    sync.Once
	onClose func()
}

// NewSession wires an execution, its broker, and a converter into a live
// session and starts the pump goroutine. onClose runs exactly once after
// the pump has drained, even when the consumer abandons the stream.
func NewSession(taskID, chatSessionID string, execution *runtime.Execution, broker *approval.Broker, converter *Converter, onClose func()) *Session {
	s := &Session{
		taskID:        taskID,
		chatSessionID: chatSessionID,
		execution:     execution,
		broker:        broker,
		converter:     converter,
		chunks:        make(chan *Chunk, chunkBufferSize),
		closed:        make(chan struct{}),
		onClose:       onClose,
	}
	go s.pump()
	return s
}

func (s *Session) TaskID() string {
	return s.taskID
}

func (s *Session) ChatSessionID() string {
	return s.chatSessionID
}

// Events is the chunk stream. It closes after exactly one terminal chunk.
func (s *Session) Events() <-chan *Chunk {
	return s.chunks
}

// ApproveTool resolves a pending interaction. Approved with edited
// arguments becomes an edit; approved with response data answers a
// prompt without executing the tool.
func (s *Session) ApproveTool(ctx context.Context, interactionID string, approved bool, userMessage, responseData, editedArguments string) error {
	_ = ctx
	return s.broker.Resolve(interactionID, approval.Resolution{
		Approved:        approved,
		UserMessage:     userMessage,
		ResponseData:    responseData,
		EditedArguments: editedArguments,
	})
}

// SendUserMessage injects a user message into the running conversation.
func (s *Session) SendUserMessage(text string) {
	s.execution.EnqueueUserMessage(text)
}

// Cancel stops the run. When the execution is blocked on an approval the
// reason travels through the decision channel so the cancelled chunk
// carries it; otherwise the run context is cancelled.
func (s *Session) Cancel(reason string) {
	err := s.execution.Resume(runtime.ResumeRequest{
		Type:   runtime.ResumeTypeCancel,
		Reason: reason,
	})
	if err != nil {
		s.execution.Cancel()
	}
}

// ListPendingInteractions returns the approvals still awaiting a decision.
func (s *Session) ListPendingInteractions() []approval.Interaction {
	return s.broker.Pending()
}

// Close cancels the run and detaches the consumer. The pump still drains
// the execution and runs its teardown; Close never blocks on it.
func (s *Session) Close() error {
	s.once.Do(func() {
		close(s.closed)
		s.execution.Cancel()
	})
	return nil
}

func (s *Session) pump() {
	defer func() {
		if s.onClose != nil {
			s.onClose()
		}
	}()
	defer s.broker.Close()
	defer s.broker.Finalize()
	defer close(s.chunks)

	for event := range s.execution.Events() {
		s.register(event)
		for _, chunk := range s.converter.Convert(event) {
			s.deliver(chunk)
		}
	}
	if chunk := s.converter.Finish(); chunk != nil {
		s.deliver(chunk)
	}
}

// register opens an interaction for every event that will block the
// execution on a decision, so the broker's deadline policy covers it.
func (s *Session) register(event runtime.Event) {
	switch ev := event.(type) {
	case *runtime.ToolCallEvent:
		if !ev.RequiresConfirmation {
			return
		}
		s.broker.Register(approval.Interaction{
			ID:                   ev.ToolCall.ID,
			ChatSessionID:        s.chatSessionID,
			ToolFullName:         ev.FullName,
			Arguments:            ev.ToolCall.Function.Arguments,
			RequiresConfirmation: true,
			ReadOnly:             ev.ReadOnly,
		})
	case *runtime.ElicitationEvent:
		s.broker.Register(approval.Interaction{
			ID:                   ev.ID,
			ChatSessionID:        s.chatSessionID,
			ToolFullName:         "elicitation",
			Arguments:            ev.Message,
			RequiresConfirmation: true,
		})
	}
}

// deliver hands a chunk to the consumer, or drops it once the consumer
// has closed the session.
func (s *Session) deliver(chunk *Chunk) {
	select {
	case s.chunks <- chunk:
	case <-s.closed:
	}
}
