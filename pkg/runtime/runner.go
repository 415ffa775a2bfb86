// Package runtime hosts the in-process model runtime: runners bound to one
// agent configuration, their framework sessions, and the conversation loop
// in buffered and streaming forms.
package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/agentcore/agentcore/pkg/api"
	"github.com/agentcore/agentcore/pkg/chat"
	"github.com/agentcore/agentcore/pkg/model"
	"github.com/agentcore/agentcore/pkg/tools"
)

// DefaultMaxIterations bounds the number of tool rounds in one task.
const DefaultMaxIterations = 20

var ErrSessionNotFound = errors.New("runtime: framework session not found")

// Runner executes conversations against one frozen agent configuration.
// Its identity, connection, and resolved tool set never change after
// construction.
type Runner struct {
	id          string
	agentID     string
	config      *api.AgentConfig
	connection  model.Connection
	descriptors []tools.Descriptor
	invoker     *tools.Invoker
	// instructions are appended to the system prompt, collected from the
	// instructable toolsets backing the resolved tools.
	instructions  []string
	tracer        trace.Tracer
	maxIterations int
	createdAt     time.Time

	mu           sync.Mutex
	sessions     map[string]*FrameworkSession
	lastActivity time.Time
}

type Option func(*Runner)

func WithTracer(tracer trace.Tracer) Option {
	return func(r *Runner) {
		r.tracer = tracer
	}
}

func WithMaxIterations(maxIterations int) Option {
	return func(r *Runner) {
		r.maxIterations = maxIterations
	}
}

func WithInstructions(instructions []string) Option {
	return func(r *Runner) {
		r.instructions = instructions
	}
}

func NewRunner(agentID string, config *api.AgentConfig, connection model.Connection, descriptors []tools.Descriptor, invoker *tools.Invoker, opts ...Option) *Runner {
	now := time.Now()
	runner := &Runner{
		id:            uuid.New().String(),
		agentID:       agentID,
		config:        config.Clone(),
		connection:    connection,
		descriptors:   descriptors,
		invoker:       invoker,
		maxIterations: DefaultMaxIterations,
		createdAt:     now,
		sessions:      make(map[string]*FrameworkSession),
		lastActivity:  now,
	}
	for _, opt := range opts {
		opt(runner)
	}
	return runner
}

func (r *Runner) ID() string              { return r.id }
func (r *Runner) AgentID() string         { return r.agentID }
func (r *Runner) Config() *api.AgentConfig { return r.config.Clone() }
func (r *Runner) CreatedAt() time.Time    { return r.createdAt }

func (r *Runner) LastActivity() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastActivity
}

func (r *Runner) touch() {
	r.mu.Lock()
	r.lastActivity = time.Now()
	r.mu.Unlock()
}

// CreateSession provisions a fresh framework session for the given user.
func (r *Runner) CreateSession(userID string) *FrameworkSession {
	session := newFrameworkSession(userID)
	r.mu.Lock()
	r.sessions[session.ID] = session
	r.lastActivity = time.Now()
	r.mu.Unlock()
	slog.Debug("Framework session created", "runner_id", r.id, "session_id", session.ID, "user_id", userID)
	return session
}

func (r *Runner) Session(sessionID string) (*FrameworkSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[sessionID]
	return session, ok
}

func (r *Runner) RemoveSession(sessionID string) {
	r.mu.Lock()
	delete(r.sessions, sessionID)
	r.lastActivity = time.Now()
	r.mu.Unlock()
	slog.Debug("Framework session removed", "runner_id", r.id, "session_id", sessionID)
}

func (r *Runner) SessionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// ExtractHistory returns a copy of the session transcript.
func (r *Runner) ExtractHistory(sessionID string) ([]chat.Message, error) {
	session, ok := r.Session(sessionID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return session.History(), nil
}

// InjectHistory appends transcript messages to the session. It is the
// event-append path used for history migration and recovery.
func (r *Runner) InjectHistory(sessionID string, messages []chat.Message) error {
	session, ok := r.Session(sessionID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	session.Append(messages...)
	slog.Debug("History injected", "runner_id", r.id, "session_id", sessionID, "message_count", len(messages))
	return nil
}

// RunResult is the outcome of a buffered conversation turn.
type RunResult struct {
	Messages    []chat.Message
	ToolResults []api.ToolResult
	Usage       chat.Usage
}

// Run executes one conversation turn to completion. Confirmable tools are
// executed without gating; the approval gate exists only on the live path.
func (r *Runner) Run(ctx context.Context, sessionID string, messages []chat.Message) (*RunResult, error) {
	session, ok := r.Session(sessionID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	r.touch()

	ctx, span := r.startSpan(ctx, "runtime.run", trace.WithAttributes(
		attribute.String("agent_id", r.agentID),
		attribute.String("session.id", sessionID),
	))
	defer span.End()

	session.Append(messages...)

	result := &RunResult{}
	modelTools, byName := r.modelTools()

	for iteration := 0; iteration < r.maxIterations; iteration++ {
		request := r.composeMessages(session.History())

		turn, err := r.streamTurn(ctx, request, modelTools, nil)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "model stream failed")
			return nil, api.WrapError(api.CodeFrameworkExecution, err)
		}

		assistant := turn.assistantMessage()
		session.Append(assistant)
		result.Messages = append(result.Messages, assistant)
		result.Usage.Add(turn.usage)

		if len(turn.toolCalls) == 0 {
			span.SetStatus(codes.Ok, "turn completed")
			return result, nil
		}

		for _, toolCall := range turn.toolCalls {
			descriptor, known := byName[toolCall.Function.Name]
			toolResult := r.executeToolCall(ctx, session, toolCall, descriptor, known, nil)
			result.ToolResults = append(result.ToolResults, toolResult)

			toolMessage := toolResponseMessage(toolCall.ID, &toolResult)
			session.Append(toolMessage)
			result.Messages = append(result.Messages, toolMessage)
		}
	}

	span.SetStatus(codes.Error, "max iterations reached")
	return nil, api.Errorf(api.CodeFrameworkExecution, "conversation exceeded %d tool rounds", r.maxIterations)
}

// executeToolCall runs one tool call through the invoker. When a progress
// reporter is supplied the streamed execution path is used.
func (r *Runner) executeToolCall(ctx context.Context, session *FrameworkSession, toolCall tools.ToolCall, descriptor tools.Descriptor, known bool, progress tools.ProgressReporter) api.ToolResult {
	if !known {
		return api.ToolResult{
			RequestID: toolCall.ID,
			ToolName:  toolCall.Function.Name,
			Status:    api.StatusError,
			Error:     api.Errorf(api.CodeToolNotDeclared, "tool %q is not available to this agent", toolCall.Function.Name),
		}
	}

	request := api.ToolRequest{
		RequestID: toolCall.ID,
		ToolName:  descriptor.FullName,
		Arguments: json.RawMessage(toolCall.Function.Arguments),
		Metadata: map[string]any{
			"session_id": session.ID,
			"agent":      r.agentID,
		},
	}

	headerCtx := tools.WithHeaders(ctx, tools.HeaderSources{
		Derived: tools.DerivedHeaders(session.UserID, session.ID, toolCall.ID),
		Task:    tools.HeadersFromContext(ctx),
	}.Merge())

	if progress == nil {
		return r.invoker.Execute(headerCtx, request)
	}

	var final *api.ToolResult
	for chunk := range r.invoker.ExecuteStream(headerCtx, request) {
		switch chunk.Type {
		case api.ToolChunkTypeProgress:
			progress(chunk.Content)
		case api.ToolChunkTypeResult:
			final = chunk.Result
		}
	}
	if final == nil {
		// The stream closed without a result chunk, which only happens
		// when the context was cancelled mid-call.
		return api.ToolResult{
			RequestID: toolCall.ID,
			ToolName:  descriptor.FullName,
			Status:    api.StatusCancelled,
			Error:     api.NewError(api.CodeToolExecution, "The tool call was canceled by the user."),
		}
	}
	return *final
}

// modelTools returns the bare-named tool list advertised to the model and
// the lookup table back to full descriptors. Model providers reject dotted
// names, so bare names are used and namespaced variants disambiguate
// collisions.
func (r *Runner) modelTools() ([]tools.Tool, map[string]tools.Descriptor) {
	modelTools := make([]tools.Tool, 0, len(r.descriptors))
	byName := make(map[string]tools.Descriptor, len(r.descriptors))
	for _, descriptor := range r.descriptors {
		name := descriptor.Tool.Name
		if _, taken := byName[name]; taken {
			name = descriptor.Namespace + "_" + descriptor.Tool.Name
		}
		tool := descriptor.Tool
		tool.Name = name
		modelTools = append(modelTools, tool)
		byName[name] = descriptor
	}
	return modelTools, byName
}

func (r *Runner) composeMessages(history []chat.Message) []chat.Message {
	prompt := r.config.SystemPrompt
	if len(r.instructions) > 0 {
		if prompt != "" {
			prompt += "\n\n"
		}
		prompt += strings.Join(r.instructions, "\n\n")
	}

	if prompt == "" {
		return history
	}
	return append([]chat.Message{{Role: chat.MessageRoleSystem, Content: prompt}}, history...)
}

// turnResult accumulates one model turn from stream deltas.
type turnResult struct {
	content   strings.Builder
	reasoning strings.Builder
	signature string
	toolCalls []tools.ToolCall
	usage     chat.Usage
}

func (t *turnResult) assistantMessage() chat.Message {
	return chat.Message{
		Role:              chat.MessageRoleAssistant,
		Content:           t.content.String(),
		ReasoningContent:  t.reasoning.String(),
		ThinkingSignature: t.signature,
		ToolCalls:         t.toolCalls,
		CreatedAt:         time.Now().Format(time.RFC3339),
	}
}

// streamTurn drives one completion stream to EOF. The observer, when set,
// sees every delta as it arrives; the live path uses it to emit events.
func (r *Runner) streamTurn(ctx context.Context, messages []chat.Message, modelTools []tools.Tool, observe func(model.StreamDelta, *turnResult)) (*turnResult, error) {
	stream, err := r.connection.CreateChatCompletionStream(ctx, messages, modelTools)
	if err != nil {
		return nil, fmt.Errorf("creating chat completion stream: %w", err)
	}
	defer stream.Close()

	turn := &turnResult{}
	for {
		delta, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return turn, nil
		}
		if err != nil {
			return nil, fmt.Errorf("receiving from stream: %w", err)
		}

		turn.content.WriteString(delta.Content)
		turn.reasoning.WriteString(delta.ReasoningContent)
		if delta.ThinkingSignature != "" {
			turn.signature = delta.ThinkingSignature
		}
		turn.toolCalls = model.AccumulateToolCalls(turn.toolCalls, delta.ToolCalls)
		if delta.Usage != nil {
			turn.usage.Add(*delta.Usage)
		}

		if observe != nil {
			observe(delta, turn)
		}
	}
}

func toolResponseMessage(toolCallID string, result *api.ToolResult) chat.Message {
	content := result.Output
	if content == "" && result.Error != nil {
		content = result.Error.Message
	}
	if strings.TrimSpace(content) == "" {
		content = "(no output)"
	}
	return chat.Message{
		Role:       chat.MessageRoleTool,
		Content:    content,
		ToolCallID: toolCallID,
		IsError:    result.Status != api.StatusSuccess,
		CreatedAt:  time.Now().Format(time.RFC3339),
	}
}

func (r *Runner) startSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if r.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return r.tracer.Start(ctx, name, opts...)
}
