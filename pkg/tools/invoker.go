package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/agentcore/agentcore/pkg/api"
	"github.com/agentcore/agentcore/pkg/telemetry"
)

// DefaultCallTimeout bounds tool executions that carry no explicit timeout.
const DefaultCallTimeout = 60 * time.Second

// Invoker executes registered tools with timeout enforcement, panic
// recovery, and header merging. Failures never surface as Go errors; they
// are encoded into the returned ToolResult so a broken tool cannot take the
// conversation down with it.
type Invoker struct {
	registry       *Registry
	tracer         trace.Tracer
	defaultTimeout time.Duration
}

type InvokerOption func(*Invoker)

func WithTracer(tracer trace.Tracer) InvokerOption {
	return func(i *Invoker) {
		i.tracer = tracer
	}
}

func WithCallTimeout(timeout time.Duration) InvokerOption {
	return func(i *Invoker) {
		i.defaultTimeout = timeout
	}
}

func NewInvoker(registry *Registry, opts ...InvokerOption) *Invoker {
	inv := &Invoker{
		registry:       registry,
		defaultTimeout: DefaultCallTimeout,
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

func (i *Invoker) startSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if i.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return i.tracer.Start(ctx, name, opts...)
}

// Execute runs one tool call to completion and returns the buffered result.
func (i *Invoker) Execute(ctx context.Context, req api.ToolRequest) api.ToolResult {
	ctx, span := i.startSpan(ctx, "tool.execute",
		trace.WithAttributes(attribute.String("tool.name", req.ToolName)))
	defer span.End()

	started := time.Now()
	result := i.run(ctx, req)
	result.DurationMS = time.Since(started).Milliseconds()

	var callErr error
	if result.Error != nil {
		callErr = result.Error
		span.RecordError(result.Error)
		span.SetStatus(codes.Error, result.Error.Message)
	}
	telemetry.RecordToolCall(ctx, req.ToolName,
		metadataString(req.Metadata, "session_id"),
		metadataString(req.Metadata, "agent"),
		time.Since(started), callErr)
	return result
}

// ExecuteStream runs one tool call and streams progress. The channel yields
// zero or more progress chunks followed by exactly one result chunk, then
// closes.
func (i *Invoker) ExecuteStream(ctx context.Context, req api.ToolRequest) <-chan api.ToolChunk {
	out := make(chan api.ToolChunk, 16)
	go func() {
		defer close(out)
		ctx, span := i.startSpan(ctx, "tool.execute_stream",
			trace.WithAttributes(attribute.String("tool.name", req.ToolName)))
		defer span.End()

		started := time.Now()
		reporter := func(content string) {
			select {
			case out <- api.ToolChunk{
				RequestID: req.RequestID,
				Type:      api.ToolChunkTypeProgress,
				Content:   content,
			}:
			case <-ctx.Done():
			}
		}

		result := i.run(WithProgress(ctx, reporter), req)
		result.DurationMS = time.Since(started).Milliseconds()

		var callErr error
		if result.Error != nil {
			callErr = result.Error
			span.RecordError(result.Error)
			span.SetStatus(codes.Error, result.Error.Message)
		}
		telemetry.RecordToolCall(ctx, req.ToolName,
			metadataString(req.Metadata, "session_id"),
			metadataString(req.Metadata, "agent"),
			time.Since(started), callErr)

		select {
		case out <- api.ToolChunk{
			RequestID: req.RequestID,
			Type:      api.ToolChunkTypeResult,
			Result:    &result,
		}:
		case <-ctx.Done():
		}
	}()
	return out
}

func (i *Invoker) run(ctx context.Context, req api.ToolRequest) api.ToolResult {
	descriptor, err := i.registry.Lookup(ctx, req.ToolName)
	if err != nil {
		return i.failure(req, api.StatusError, err)
	}
	if descriptor.Tool.Handler == nil {
		return i.failure(req, api.StatusError,
			api.Errorf(api.CodeToolExecution, "tool %q has no handler", descriptor.FullName))
	}
	if len(req.Arguments) > 0 && !json.Valid(req.Arguments) {
		return i.failure(req, api.StatusError,
			api.Errorf(api.CodeToolInvalidParameters, "arguments for tool %q are not valid JSON", req.ToolName))
	}

	timeout := i.defaultTimeout
	if req.TimeoutMS > 0 {
		timeout = time.Duration(req.TimeoutMS) * time.Millisecond
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	ctx = WithHeaders(ctx, i.mergeHeaders(ctx, descriptor, req))

	output, err := i.invoke(ctx, descriptor, string(req.Arguments))
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return i.failure(req, api.StatusTimeout,
			api.Errorf(api.CodeToolTimeout, "tool %q timed out after %s", req.ToolName, timeout).WithRetriable(true))
	case errors.Is(err, context.Canceled):
		return i.failure(req, api.StatusCancelled,
			api.NewError(api.CodeToolExecution, "The tool call was canceled by the user."))
	case err != nil:
		return i.failure(req, api.StatusError, api.WrapError(api.CodeToolExecution, err))
	}

	if output.IsError {
		return api.ToolResult{
			RequestID: req.RequestID,
			ToolName:  req.ToolName,
			Status:    api.StatusError,
			Output:    output.Output,
			Error:     api.NewError(api.CodeToolExecution, firstLine(output.Output)),
		}
	}

	content := output.Output
	if content == "" {
		content = "(no output)"
	}
	return api.ToolResult{
		RequestID: req.RequestID,
		ToolName:  req.ToolName,
		Status:    api.StatusSuccess,
		Output:    content,
	}
}

// invoke runs the handler in its own goroutine so deadlines bind even when
// the handler ignores the context. A panic becomes an error result.
func (i *Invoker) invoke(ctx context.Context, descriptor Descriptor, arguments string) (*ToolCallResult, error) {
	type outcome struct {
		result *ToolCallResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("tool %q panicked: %v", descriptor.FullName, r)}
			}
		}()
		call := ToolCall{
			Type: "function",
			Function: FunctionCall{
				Name:      descriptor.Tool.Name,
				Arguments: arguments,
			},
		}
		result, err := descriptor.Tool.Handler(ctx, call)
		done <- outcome{result: result, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			return nil, o.err
		}
		if o.result == nil {
			return &ToolCallResult{}, nil
		}
		return o.result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (i *Invoker) mergeHeaders(ctx context.Context, descriptor Descriptor, req api.ToolRequest) map[string]string {
	return HeaderSources{
		Static: descriptor.Headers,
		Task:   HeadersFromContext(ctx),
		Tool:   headerMetadata(descriptor.Tool.Metadata),
		Call:   req.ToolHeaders(),
	}.Merge()
}

func (i *Invoker) failure(req api.ToolRequest, status api.Status, err error) api.ToolResult {
	return api.ToolResult{
		RequestID: req.RequestID,
		ToolName:  req.ToolName,
		Status:    status,
		Error:     api.AsError(err, api.CodeToolExecution),
	}
}

// headerMetadata extracts per-tool headers from metadata keys carrying the
// "header:" prefix.
func headerMetadata(metadata map[string]string) map[string]string {
	if len(metadata) == 0 {
		return nil
	}
	var headers map[string]string
	for key, value := range metadata {
		name, ok := strings.CutPrefix(key, "header:")
		if !ok {
			continue
		}
		if headers == nil {
			headers = make(map[string]string)
		}
		headers[name] = value
	}
	return headers
}

func metadataString(metadata map[string]any, key string) string {
	if value, ok := metadata[key].(string); ok {
		return value
	}
	return ""
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}
