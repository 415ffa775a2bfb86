package mcp

import (
	"context"
	"iter"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcore/agentcore/pkg/tools"
)

// mockMCPClient is a test double for the mcpClient interface.
type mockMCPClient struct {
	tools      []*mcp.Tool
	callToolFn func(ctx context.Context, request *mcp.CallToolParams) (*mcp.CallToolResult, error)
}

func (m *mockMCPClient) Initialize(context.Context) (*mcp.InitializeResult, error) {
	return &mcp.InitializeResult{Instructions: "Use these tools carefully."}, nil
}

func (m *mockMCPClient) ListTools(context.Context, *mcp.ListToolsParams) iter.Seq2[*mcp.Tool, error] {
	return func(yield func(*mcp.Tool, error) bool) {
		for _, t := range m.tools {
			if !yield(t, nil) {
				return
			}
		}
	}
}

func (m *mockMCPClient) CallTool(ctx context.Context, request *mcp.CallToolParams) (*mcp.CallToolResult, error) {
	return m.callToolFn(ctx, request)
}

func (m *mockMCPClient) Close(context.Context) error { return nil }

func startedToolset(t *testing.T, client mcpClient) *Toolset {
	t.Helper()

	ts := &Toolset{logID: "test", mcpClient: client}
	require.NoError(t, ts.Start(t.Context()))
	return ts
}

func TestToolsetNotStarted(t *testing.T) {
	ts := &Toolset{logID: "test", mcpClient: &mockMCPClient{}}

	_, err := ts.Tools(t.Context())
	require.ErrorContains(t, err, "toolset not started")
	assert.Empty(t, ts.Instructions())
}

func TestToolsetInstructions(t *testing.T) {
	ts := startedToolset(t, &mockMCPClient{})

	assert.Equal(t, "Use these tools carefully.", ts.Instructions())
}

func TestToolsetListsAndConvertsTools(t *testing.T) {
	ts := startedToolset(t, &mockMCPClient{
		tools: []*mcp.Tool{
			{
				Name:        "search_issues",
				Description: "Search issues in a tracker",
				Annotations: &mcp.ToolAnnotations{
					Title:        "Search issues",
					ReadOnlyHint: true,
				},
			},
			{
				Name:        "close_issue",
				Description: "Close an issue",
			},
		},
	})

	tls, err := ts.Tools(t.Context())
	require.NoError(t, err)
	require.Len(t, tls, 2)

	assert.Equal(t, "search_issues", tls[0].Name)
	assert.Equal(t, "Search issues", tls[0].Annotations.Title)
	assert.True(t, tls[0].Annotations.ReadOnlyHint)
	assert.NotNil(t, tls[0].Handler)

	assert.Equal(t, "close_issue", tls[1].Name)
	assert.False(t, tls[1].Annotations.ReadOnlyHint)
}

func TestCallToolStripsNullArguments(t *testing.T) {
	tests := []struct {
		name         string
		arguments    string
		expectedArgs map[string]any
	}{
		{
			name:         "all null values are stripped",
			arguments:    `{"dir": null, "pattern": null}`,
			expectedArgs: map[string]any{},
		},
		{
			name:         "only null values are stripped",
			arguments:    `{"dir": ".", "pattern": null, "extra": "value"}`,
			expectedArgs: map[string]any{"dir": ".", "extra": "value"},
		},
		{
			name:         "empty arguments stay empty",
			arguments:    `{}`,
			expectedArgs: map[string]any{},
		},
		{
			name:         "missing arguments become empty object",
			arguments:    "",
			expectedArgs: map[string]any{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var capturedArgs map[string]any

			ts := startedToolset(t, &mockMCPClient{
				callToolFn: func(_ context.Context, request *mcp.CallToolParams) (*mcp.CallToolResult, error) {
					if m, ok := request.Arguments.(map[string]any); ok {
						capturedArgs = m
					}
					return &mcp.CallToolResult{
						Content: []mcp.Content{&mcp.TextContent{Text: "ok"}},
					}, nil
				},
			})

			result, err := ts.callTool(t.Context(), tools.ToolCall{
				Function: tools.FunctionCall{
					Name:      "test_tool",
					Arguments: tt.arguments,
				},
			})

			require.NoError(t, err)
			assert.Equal(t, "ok", result.Output)
			assert.Equal(t, tt.expectedArgs, capturedArgs)
		})
	}
}

func TestCallToolResults(t *testing.T) {
	t.Run("error result", func(t *testing.T) {
		ts := startedToolset(t, &mockMCPClient{
			callToolFn: func(context.Context, *mcp.CallToolParams) (*mcp.CallToolResult, error) {
				return &mcp.CallToolResult{
					IsError: true,
					Content: []mcp.Content{&mcp.TextContent{Text: "missing argument"}},
				}, nil
			},
		})

		result, err := ts.callTool(t.Context(), tools.ToolCall{
			Function: tools.FunctionCall{Name: "test_tool", Arguments: "{}"},
		})
		require.NoError(t, err)
		assert.True(t, result.IsError)
		assert.Equal(t, "missing argument", result.Output)
	})

	t.Run("empty content", func(t *testing.T) {
		ts := startedToolset(t, &mockMCPClient{
			callToolFn: func(context.Context, *mcp.CallToolParams) (*mcp.CallToolResult, error) {
				return &mcp.CallToolResult{}, nil
			},
		})

		result, err := ts.callTool(t.Context(), tools.ToolCall{
			Function: tools.FunctionCall{Name: "test_tool", Arguments: "{}"},
		})
		require.NoError(t, err)
		assert.Equal(t, "no output", result.Output)
	})
}

func TestCallToolRoutesElicitationToCallScopedHandler(t *testing.T) {
	ts := startedToolset(t, &mockMCPClient{
		callToolFn: func(context.Context, *mcp.CallToolParams) (*mcp.CallToolResult, error) {
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: "ok"}},
			}, nil
		},
	})

	var prompted string
	handler := func(_ context.Context, req *mcp.ElicitParams) (tools.ElicitationResult, error) {
		prompted = req.Message
		return tools.ElicitationResult{Action: tools.ElicitationActionAccept}, nil
	}

	ctx := tools.WithElicitationHandler(t.Context(), handler)
	_, err := ts.callTool(ctx, tools.ToolCall{
		Function: tools.FunctionCall{Name: "test_tool", Arguments: "{}"},
	})
	require.NoError(t, err)

	result, err := ts.handleElicitation(t.Context(), &mcp.ElicitRequest{
		Params: &mcp.ElicitParams{Message: "Need your approval"},
	})
	require.NoError(t, err)
	assert.Equal(t, "accept", result.Action)
	assert.Equal(t, "Need your approval", prompted)
}

func TestHandleElicitationWithoutHandler(t *testing.T) {
	ts := &Toolset{logID: "test", mcpClient: &mockMCPClient{}}

	_, err := ts.handleElicitation(t.Context(), &mcp.ElicitRequest{
		Params: &mcp.ElicitParams{Message: "anyone there?"},
	})
	require.ErrorContains(t, err, "no elicitation handler")
}
