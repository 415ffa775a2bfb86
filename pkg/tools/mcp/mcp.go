// Package mcp exposes the tools of an MCP server as a toolset. Servers
// can be spawned as a local subprocess speaking stdio or reached over
// SSE/streamable HTTP.
package mcp

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/agentcore/agentcore/pkg/tools"
)

type mcpClient interface {
	Initialize(ctx context.Context) (*mcp.InitializeResult, error)
	ListTools(ctx context.Context, params *mcp.ListToolsParams) iter.Seq2[*mcp.Tool, error]
	CallTool(ctx context.Context, params *mcp.CallToolParams) (*mcp.CallToolResult, error)
	Close(ctx context.Context) error
}

// elicitationFunc answers a server-initiated elicitation request.
type elicitationFunc func(ctx context.Context, req *mcp.ElicitRequest) (*mcp.ElicitResult, error)

// Toolset exposes one MCP server's tools.
type Toolset struct {
	name      string
	mcpClient mcpClient
	logID     string

	// Refreshed on every call so elicitations raised by the server reach
	// the execution that triggered them.
	elicitation atomic.Pointer[tools.ElicitationHandler]

	mu           sync.Mutex
	started      bool
	instructions string
}

var _ tools.ToolSet = (*Toolset)(nil)

// Verify that Toolset implements optional capability interfaces
var (
	_ tools.Instructable = (*Toolset)(nil)
	_ tools.Startable    = (*Toolset)(nil)
)

// NewToolsetCommand creates an MCP toolset that spawns a local server
// process and talks to it over stdio.
func NewToolsetCommand(name, command string, args, env []string, cwd string) *Toolset {
	slog.Debug("Creating stdio MCP toolset", "command", command, "args", args)

	ts := &Toolset{
		name:  name,
		logID: command,
	}
	ts.mcpClient = newCommandClient(command, args, env, cwd, ts.handleElicitation)
	return ts
}

// NewRemoteToolset creates an MCP toolset backed by a remote server.
// Transport is "sse" or "streamable". Static headers are sent on every
// request; call-scoped headers from the context are layered on top.
func NewRemoteToolset(name, url, transport string, headers map[string]string) *Toolset {
	slog.Debug("Creating remote MCP toolset", "url", url, "transport", transport)

	ts := &Toolset{
		name:  name,
		logID: url,
	}
	ts.mcpClient = newRemoteClient(url, transport, headers, ts.handleElicitation)
	return ts
}

func (ts *Toolset) Start(ctx context.Context) error {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.started {
		return nil
	}

	err := ts.doStart(ctx)
	if err == nil {
		ts.started = true
	}
	return err
}

func (ts *Toolset) doStart(ctx context.Context) error {
	// The connection outlives the request that triggered its creation;
	// later calls in the same session reuse it.
	ctx = context.WithoutCancel(ctx)

	slog.Debug("Starting MCP toolset", "server", ts.logID)

	result, err := ts.mcpClient.Initialize(ctx)
	if err != nil {
		// EOF means the MCP server is unavailable or closed the connection.
		// The agent still runs, just without this toolset.
		if errors.Is(err, io.EOF) {
			slog.Debug("MCP server unavailable (EOF), skipping MCP toolset", "server", ts.logID)
			return nil
		}

		slog.Error("Failed to initialize MCP client", "server", ts.logID, "error", err)
		return fmt.Errorf("failed to initialize MCP client: %w", err)
	}

	slog.Debug("Started MCP toolset successfully", "server", ts.logID)
	ts.instructions = result.Instructions
	return nil
}

func (ts *Toolset) isStarted() bool {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.started
}

func (ts *Toolset) Instructions() string {
	if !ts.isStarted() {
		return ""
	}
	return ts.instructions
}

func (ts *Toolset) Tools(ctx context.Context) ([]tools.Tool, error) {
	if !ts.isStarted() {
		return nil, errors.New("toolset not started")
	}

	var toolsList []tools.Tool
	for t, err := range ts.mcpClient.ListTools(ctx, &mcp.ListToolsParams{}) {
		if err != nil {
			return nil, err
		}

		tool := tools.Tool{
			Name:         t.Name,
			Description:  t.Description,
			Parameters:   t.InputSchema,
			OutputSchema: t.OutputSchema,
			Handler:      ts.callTool,
		}
		if t.Annotations != nil {
			tool.Annotations = tools.ToolAnnotations{
				DestructiveHint: t.Annotations.DestructiveHint,
				IdempotentHint:  t.Annotations.IdempotentHint,
				OpenWorldHint:   t.Annotations.OpenWorldHint,
				ReadOnlyHint:    t.Annotations.ReadOnlyHint,
				Title:           t.Annotations.Title,
			}
		}
		toolsList = append(toolsList, tool)
	}

	slog.Debug("Listed MCP tools", "server", ts.logID, "count", len(toolsList))
	return toolsList, nil
}

func (ts *Toolset) callTool(ctx context.Context, toolCall tools.ToolCall) (*tools.ToolCallResult, error) {
	slog.Debug("Calling MCP tool", "tool", toolCall.Function.Name)

	if handler := tools.ElicitationHandlerFromContext(ctx); handler != nil {
		ts.elicitation.Store(&handler)
	}

	toolCall.Function.Arguments = cmp.Or(toolCall.Function.Arguments, "{}")
	var args map[string]any
	if err := json.Unmarshal([]byte(toolCall.Function.Arguments), &args); err != nil {
		return nil, fmt.Errorf("failed to parse tool arguments: %w", err)
	}

	// Models sometimes send explicit nulls for optional parameters, which
	// servers with strict schemas reject.
	for key, value := range args {
		if value == nil {
			delete(args, key)
		}
	}

	resp, err := ts.mcpClient.CallTool(ctx, &mcp.CallToolParams{
		Name:      toolCall.Function.Name,
		Arguments: args,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
			slog.Debug("CallTool canceled by context", "tool", toolCall.Function.Name)
			return nil, err
		}
		slog.Error("Failed to call MCP tool", "tool", toolCall.Function.Name, "error", err)
		return nil, fmt.Errorf("failed to call tool: %w", err)
	}

	result := processMCPContent(resp)
	slog.Debug("MCP tool call completed", "tool", toolCall.Function.Name, "output_length", len(result.Output))
	return result, nil
}

// handleElicitation forwards an elicitation raised by the server to the
// handler of the execution that is currently calling into it.
func (ts *Toolset) handleElicitation(ctx context.Context, req *mcp.ElicitRequest) (*mcp.ElicitResult, error) {
	handler := ts.elicitation.Load()
	if handler == nil {
		return nil, errors.New("no elicitation handler configured")
	}

	result, err := (*handler)(ctx, req.Params)
	if err != nil {
		return nil, fmt.Errorf("elicitation failed: %w", err)
	}

	return &mcp.ElicitResult{
		Action:  string(result.Action),
		Content: result.Content,
	}, nil
}

func (ts *Toolset) Stop(ctx context.Context) error {
	slog.Debug("Stopping MCP toolset", "server", ts.logID)

	if err := ts.mcpClient.Close(context.WithoutCancel(ctx)); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		slog.Error("Failed to stop MCP toolset", "server", ts.logID, "error", err)
		return err
	}

	return nil
}

func processMCPContent(toolResult *mcp.CallToolResult) *tools.ToolCallResult {
	finalContent := ""
	for _, resultContent := range toolResult.Content {
		if textContent, ok := resultContent.(*mcp.TextContent); ok {
			finalContent += textContent.Text
		}
	}

	// Some tools legitimately return nothing.
	finalContent = cmp.Or(finalContent, "no output")

	if toolResult.IsError {
		return tools.ResultError(finalContent)
	}
	return tools.ResultSuccess(finalContent)
}
