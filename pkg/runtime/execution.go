package runtime

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/agentcore/agentcore/pkg/api"
	"github.com/agentcore/agentcore/pkg/chat"
	"github.com/agentcore/agentcore/pkg/model"
	"github.com/agentcore/agentcore/pkg/tools"
)

// eventBufferSize is the capacity of an execution's event channel.
const eventBufferSize = 128

var ErrNotAwaitingDecision = errors.New("runtime: execution is not awaiting a decision")

// Execution is one in-flight live run. Events arrive on Events until the
// channel closes after exactly one terminal event (stopped, cancelled, or
// error).
type Execution struct {
	runner   *Runner
	session  *FrameworkSession
	events   chan Event
	resume   chan ResumeRequest
	awaiting atomic.Bool
	cancel   context.CancelFunc
	done     chan struct{}

	queueMu sync.Mutex
	queued  []chat.Message
}

// RunLive starts a streamed conversation turn. The returned execution owns a
// goroutine that pumps events until a terminal event closes the channel.
func (r *Runner) RunLive(ctx context.Context, sessionID string, messages []chat.Message) (*Execution, error) {
	session, ok := r.Session(sessionID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	r.touch()

	ctx, cancel := context.WithCancel(ctx)
	execution := &Execution{
		runner:  r,
		session: session,
		events:  make(chan Event, eventBufferSize),
		resume:  make(chan ResumeRequest),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go execution.run(ctx, messages)
	return execution, nil
}

// Events is the stream of execution events. It closes after the terminal
// event.
func (e *Execution) Events() <-chan Event {
	return e.events
}

// Done closes when the execution goroutine has fully exited.
func (e *Execution) Done() <-chan struct{} {
	return e.done
}

// Resume delivers a decision for the tool call the execution is blocked on.
// It fails when nothing is awaiting a decision, so a cancel that arrives
// mid-turn is never parked waiting for a gate that may never open.
func (e *Execution) Resume(req ResumeRequest) error {
	if !e.awaiting.Load() {
		return ErrNotAwaitingDecision
	}
	select {
	case e.resume <- req:
		return nil
	case <-e.done:
		return ErrNotAwaitingDecision
	}
}

// EnqueueUserMessage injects a user message into the running conversation.
// It is picked up before the next model turn.
func (e *Execution) EnqueueUserMessage(content string) {
	e.queueMu.Lock()
	e.queued = append(e.queued, chat.Message{
		Role:      chat.MessageRoleUser,
		Content:   content,
		CreatedAt: time.Now().Format(time.RFC3339),
	})
	e.queueMu.Unlock()
}

// Cancel aborts the execution. The terminal cancelled event still flows
// through the event channel.
func (e *Execution) Cancel() {
	e.cancel()
}

// awaitDecision opens the resume gate, announces the event asking for a
// decision, and parks until the decision arrives or ctx ends. The gate is
// armed before the event is emitted so a consumer reacting to the event
// can always reach the park.
func (e *Execution) awaitDecision(ctx context.Context, announce Event) (ResumeRequest, bool) {
	e.awaiting.Store(true)
	defer e.awaiting.Store(false)

	e.emit(ctx, announce)
	select {
	case decision := <-e.resume:
		return decision, true
	case <-ctx.Done():
		return ResumeRequest{}, false
	}
}

func (e *Execution) drainQueued() []chat.Message {
	e.queueMu.Lock()
	defer e.queueMu.Unlock()
	queued := e.queued
	e.queued = nil
	return queued
}

// emit delivers an event, dropping it only when the consumer is gone and the
// context has ended.
func (e *Execution) emit(ctx context.Context, event Event) {
	select {
	case e.events <- event:
	case <-ctx.Done():
		// Terminal events must still reach a draining consumer.
		select {
		case e.events <- event:
		default:
		}
	}
}

func (e *Execution) run(ctx context.Context, messages []chat.Message) {
	defer close(e.done)
	defer close(e.events)
	defer e.cancel()

	e.emit(ctx, StreamStarted(e.session.ID, e.runner.agentID))
	e.session.Append(messages...)

	modelTools, byName := e.runner.modelTools()

	for iteration := 0; iteration < e.runner.maxIterations; iteration++ {
		if queued := e.drainQueued(); len(queued) > 0 {
			e.session.Append(queued...)
		}
		request := e.runner.composeMessages(e.session.History())

		turn, err := e.runner.streamTurn(ctx, request, modelTools, func(delta model.StreamDelta, turn *turnResult) {
			if delta.ReasoningContent != "" {
				e.emit(ctx, ReasoningDelta(delta.ReasoningContent))
			}
			if delta.Content != "" {
				e.emit(ctx, ContentDelta(delta.Content))
			}
			for _, partial := range delta.ToolCalls {
				if partial.Index >= 0 && partial.Index < len(turn.toolCalls) {
					e.emit(ctx, PartialToolCall(turn.toolCalls[partial.Index]))
				}
			}
		})
		if err != nil {
			if ctx.Err() != nil {
				e.emit(ctx, StreamCancelled("The run was cancelled."))
				return
			}
			slog.Error("Live model stream failed", "runner_id", e.runner.id, "session_id", e.session.ID, "error", err)
			e.emit(ctx, Error(api.WrapError(api.CodeFrameworkExecution, err)))
			return
		}

		if !turn.usage.IsZero() {
			e.emit(ctx, TokenUsage(turn.usage))
		}

		if len(turn.toolCalls) == 0 {
			e.session.Append(turn.assistantMessage())
			if queued := e.drainQueued(); len(queued) > 0 {
				e.session.Append(queued...)
				continue
			}
			e.emit(ctx, StreamStopped(e.session.ID))
			return
		}

		toolMessages, cancelReason := e.processToolCalls(ctx, turn, byName)

		// The assistant message carries the tool calls as finally executed,
		// edits included, so the transcript matches the tool responses.
		e.session.Append(turn.assistantMessage())
		e.session.Append(toolMessages...)

		if cancelReason != "" {
			e.emit(ctx, StreamCancelled(cancelReason))
			return
		}
	}

	e.emit(ctx, Error(api.Errorf(api.CodeFrameworkExecution,
		"conversation exceeded %d tool rounds", e.runner.maxIterations)))
}

// processToolCalls walks the proposed calls in order, gating confirmable
// ones on the resume channel. It returns the tool response messages and a
// non-empty cancel reason when the run must stop.
func (e *Execution) processToolCalls(ctx context.Context, turn *turnResult, byName map[string]tools.Descriptor) ([]chat.Message, string) {
	var toolMessages []chat.Message
	cancelReason := ""

	for i := range turn.toolCalls {
		toolCall := turn.toolCalls[i]
		descriptor, known := byName[toolCall.Function.Name]
		fullName := toolCall.Function.Name
		if known {
			fullName = descriptor.FullName
		}

		if cancelReason != "" {
			result := cancelledResult(toolCall.ID, fullName, cancelReason)
			e.emit(ctx, ToolCallResponse(toolCall, fullName, &result, false))
			toolMessages = append(toolMessages, toolResponseMessage(toolCall.ID, &result))
			continue
		}

		requiresConfirmation := known && descriptor.Tool.RequiresConfirmation()
		readOnly := known && descriptor.Tool.Annotations.ReadOnlyHint

		decision := ResumeRequest{Type: ResumeTypeApprove}
		if requiresConfirmation {
			var ok bool
			decision, ok = e.awaitDecision(ctx, ToolCall(toolCall, fullName, true, readOnly))
			if !ok {
				cancelReason = "The run was cancelled."
				result := cancelledResult(toolCall.ID, fullName, cancelReason)
				e.emit(ctx, ToolCallResponse(toolCall, fullName, &result, false))
				toolMessages = append(toolMessages, toolResponseMessage(toolCall.ID, &result))
				continue
			}
		} else {
			e.emit(ctx, ToolCall(toolCall, fullName, false, readOnly))
		}

		var result api.ToolResult
		switch decision.Type {
		case ResumeTypeEdit:
			turn.toolCalls[i].Function.Arguments = decision.EditedArguments
			toolCall = turn.toolCalls[i]
			fallthrough
		case ResumeTypeApprove:
			if decision.ResponseData != "" {
				result = api.ToolResult{
					RequestID: toolCall.ID,
					ToolName:  fullName,
					Status:    api.StatusSuccess,
					Output:    decision.ResponseData,
				}
				break
			}
			progress := func(content string) {
				e.emit(ctx, ToolCallProgress(toolCall.ID, content))
			}
			callCtx := tools.WithElicitationHandler(ctx, e.handleElicitation)
			result = e.runner.executeToolCall(callCtx, e.session, toolCall, descriptor, known, progress)
		case ResumeTypeReject:
			result = rejectedResult(toolCall.ID, fullName, decision)
		case ResumeTypeCancel:
			cancelReason = reasonOr(decision.Reason, "The run was cancelled.")
			result = cancelledResult(toolCall.ID, fullName, cancelReason)
		default:
			result = rejectedResult(toolCall.ID, fullName, decision)
		}

		e.emit(ctx, ToolCallResponse(toolCall, fullName, &result, decision.AutoTimeout))
		toolMessages = append(toolMessages, toolResponseMessage(toolCall.ID, &result))

		if decision.CancelRun && cancelReason == "" {
			cancelReason = reasonOr(decision.Reason, "The run was cancelled.")
		}
	}

	return toolMessages, cancelReason
}

// handleElicitation relays a server-initiated input request through the
// event stream and blocks on the resume channel for the answer. Approvals
// carry the response payload as JSON in ResponseData.
func (e *Execution) handleElicitation(ctx context.Context, req *mcp.ElicitParams) (tools.ElicitationResult, error) {
	id := uuid.New().String()
	decision, ok := e.awaitDecision(ctx, Elicitation(id, req.Message, req.RequestedSchema))
	if !ok {
		return tools.ElicitationResult{Action: tools.ElicitationActionCancel}, ctx.Err()
	}

	switch decision.Type {
	case ResumeTypeApprove, ResumeTypeEdit:
		content := map[string]any{}
		if raw := cmp.Or(decision.ResponseData, decision.EditedArguments); raw != "" {
			if err := json.Unmarshal([]byte(raw), &content); err != nil {
				return tools.ElicitationResult{}, fmt.Errorf("malformed elicitation response: %w", err)
			}
		}
		return tools.ElicitationResult{Action: tools.ElicitationActionAccept, Content: content}, nil
	case ResumeTypeCancel:
		return tools.ElicitationResult{Action: tools.ElicitationActionCancel}, nil
	default:
		return tools.ElicitationResult{Action: tools.ElicitationActionDecline}, nil
	}
}

func rejectedResult(toolCallID, fullName string, decision ResumeRequest) api.ToolResult {
	message := "The user rejected the tool call."
	if decision.AutoTimeout {
		message = "The tool call was not approved before the deadline."
	}
	if decision.Reason != "" {
		message += " Reason: " + decision.Reason
	}
	code := api.CodeToolExecution
	if decision.AutoTimeout {
		code = api.CodeInteractionAutoTimeout
	}
	return api.ToolResult{
		RequestID: toolCallID,
		ToolName:  fullName,
		Status:    api.StatusError,
		Error:     api.NewError(code, message),
	}
}

func cancelledResult(toolCallID, fullName, reason string) api.ToolResult {
	return api.ToolResult{
		RequestID: toolCallID,
		ToolName:  fullName,
		Status:    api.StatusCancelled,
		Error:     api.NewError(api.CodeToolExecution, reason),
	}
}

func reasonOr(reason, fallback string) string {
	if reason != "" {
		return reason
	}
	return fallback
}
