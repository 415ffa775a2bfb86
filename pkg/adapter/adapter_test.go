package adapter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcore/agentcore/pkg/agent"
	"github.com/agentcore/agentcore/pkg/api"
	"github.com/agentcore/agentcore/pkg/chat"
	"github.com/agentcore/agentcore/pkg/chatsession"
	"github.com/agentcore/agentcore/pkg/model"
	"github.com/agentcore/agentcore/pkg/model/scripted"
	"github.com/agentcore/agentcore/pkg/recovery"
	"github.com/agentcore/agentcore/pkg/runner"
	"github.com/agentcore/agentcore/pkg/stream"
	"github.com/agentcore/agentcore/pkg/tools"
)

type fixedToolset struct {
	tools []tools.Tool
}

func (f *fixedToolset) Tools(context.Context) ([]tools.Tool, error) {
	return f.tools, nil
}

func testTools() []tools.Tool {
	return []tools.Tool{
		{
			Name:        "echo",
			Description: "Echoes its arguments back.",
			Annotations: tools.ToolAnnotations{ReadOnlyHint: true},
			Handler: func(_ context.Context, call tools.ToolCall) (*tools.ToolCallResult, error) {
				return tools.ResultSuccess("echo: " + call.Function.Arguments), nil
			},
		},
		{
			Name:        "write_file",
			Description: "Writes a file. Not read-only, so it needs approval.",
			Handler: func(_ context.Context, call tools.ToolCall) (*tools.ToolCallResult, error) {
				return tools.ResultSuccess("wrote: " + call.Function.Arguments), nil
			},
		},
	}
}

// stallingConnection blocks every stream read until the context ends.
type stallingConnection struct{}

func (stallingConnection) CreateChatCompletionStream(ctx context.Context, _ []chat.Message, _ []tools.Tool) (model.MessageStream, error) {
	return stallingStream{ctx: ctx}, nil
}

func (stallingConnection) CreateChatCompletion(ctx context.Context, _ []chat.Message) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

type stallingStream struct {
	ctx context.Context
}

func (s stallingStream) Recv() (model.StreamDelta, error) {
	<-s.ctx.Done()
	return model.StreamDelta{}, s.ctx.Err()
}

func (s stallingStream) Close() error { return nil }

type fixture struct {
	adapter    *Adapter
	agents     *agent.Manager
	runners    *runner.Manager
	sessions   *chatsession.Manager
	connection *scripted.Connection
	agentID    string
}

func newFixture(t *testing.T, factory runner.ConnectionFactory, opts ...Option) *fixture {
	t.Helper()

	registry := tools.NewRegistry()
	require.NoError(t, registry.Register("fs", &fixedToolset{tools: testTools()}))

	f := &fixture{connection: scripted.New()}
	if factory == nil {
		factory = func(api.ModelDescriptor) (model.Connection, error) {
			return f.connection, nil
		}
	}

	f.runners = runner.NewManager(registry, tools.NewInvoker(registry),
		runner.WithConnectionFactory(factory))
	f.agents = agent.NewManager(agent.WithCleanupNotifier(func(ctx context.Context, agentID string) {
		f.runners.DropAgent(ctx, agentID)
	}))
	store := recovery.NewMemoryStore()
	f.sessions = chatsession.NewManager(f.agents, f.runners, store)
	f.adapter = New(f.agents, f.runners, f.sessions, registry, store, opts...)

	created, err := f.agents.CreateAgent(t.Context(), agentConfig(), agent.CreateOptions{UserID: "user-1"})
	require.NoError(t, err)
	f.agentID = created.ID
	return f
}

func agentConfig() *api.AgentConfig {
	return &api.AgentConfig{
		AgentType:    "assistant",
		SystemPrompt: "You are a test assistant.",
		Model:        api.ModelDescriptor{Provider: "openai", Name: "gpt-4o"},
		Tools:        []string{"echo", "write_file"},
	}
}

func chatRequest(agentID, chatSessionID, text string) *api.TaskRequest {
	req := &api.TaskRequest{
		TaskType:    "chat",
		AgentID:     agentID,
		SessionID:   chatSessionID,
		UserContext: api.UserContext{UserID: "user-1"},
		Messages:    []api.UniversalMessage{api.UserMessage(text)},
	}
	if err := req.Validate(); err != nil {
		panic(err)
	}
	return req
}

func TestExecuteTaskEchoesRoutingIDs(t *testing.T) {
	f := newFixture(t, nil)
	f.connection.Append(scripted.Text("Hello!").WithUsage(9, 2))

	result := f.adapter.ExecuteTask(t.Context(), chatRequest(f.agentID, "chat-1", "hi"))

	assert.Equal(t, api.StatusSuccess, result.Status)
	assert.Equal(t, f.agentID, result.AgentID)
	assert.Equal(t, "chat-1", result.SessionID)
	require.NotEmpty(t, result.Messages)
	assert.Equal(t, "Hello!", result.Messages[len(result.Messages)-1].Text())
	assert.Equal(t, int64(9), result.ExecutionMetadata.TokenUsage.InputTokens)
	assert.Equal(t, frameworkName, result.ExecutionMetadata.Framework)
	assert.Positive(t, result.ExecutionMetadata.DurationMS+1)
}

func TestExecuteTaskContinuesConversation(t *testing.T) {
	f := newFixture(t, nil)
	f.connection.Append(scripted.Text("first"), scripted.Text("second"))

	first := f.adapter.ExecuteTask(t.Context(), chatRequest(f.agentID, "chat-1", "one"))
	require.Equal(t, api.StatusSuccess, first.Status)

	second := f.adapter.ExecuteTask(t.Context(), chatRequest(first.AgentID, first.SessionID, "two"))
	require.Equal(t, api.StatusSuccess, second.Status)

	calls := f.connection.Calls()
	require.Len(t, calls, 2)
	// The second model call sees the whole transcript.
	var sawFirstAnswer bool
	for _, msg := range calls[1] {
		if msg.Role == chat.MessageRoleAssistant && msg.Content == "first" {
			sawFirstAnswer = true
		}
	}
	assert.True(t, sawFirstAnswer)
}

func TestExecuteTaskGeneratesChatSessionID(t *testing.T) {
	f := newFixture(t, nil)
	f.connection.Append(scripted.Text("hi"))

	result := f.adapter.ExecuteTask(t.Context(), chatRequest(f.agentID, "", "hello"))
	assert.Equal(t, api.StatusSuccess, result.Status)
	assert.NotEmpty(t, result.SessionID)
}

func TestExecuteTaskUnknownAgent(t *testing.T) {
	f := newFixture(t, nil)

	result := f.adapter.ExecuteTask(t.Context(), chatRequest("agent-missing", "chat-1", "hi"))
	assert.Equal(t, api.StatusError, result.Status)
	require.NotNil(t, result.Error)
	assert.Equal(t, api.CodeAgentNotFound, result.Error.Code)
	assert.Equal(t, "chat-1", result.SessionID)
}

func TestExecuteTaskTimeout(t *testing.T) {
	f := newFixture(t, func(api.ModelDescriptor) (model.Connection, error) {
		return stallingConnection{}, nil
	})

	req := chatRequest(f.agentID, "chat-1", "hi")
	req.ExecutionContext = &api.ExecutionContext{TimeoutMS: 50}

	result := f.adapter.ExecuteTask(t.Context(), req)
	assert.Equal(t, api.StatusTimeout, result.Status)
	require.NotNil(t, result.Error)
	assert.Equal(t, api.CodeFrameworkExecutionTimeout, result.Error.Code)
}

func TestExecuteTaskRecoversClearedSession(t *testing.T) {
	f := newFixture(t, nil)
	f.connection.Append(scripted.Text("remembered"), scripted.Text("again"))

	first := f.adapter.ExecuteTask(t.Context(), chatRequest(f.agentID, "chat-1", "note this"))
	require.Equal(t, api.StatusSuccess, first.Status)

	require.NoError(t, f.sessions.Cleanup(t.Context(), "chat-1", "idle"))

	second := f.adapter.ExecuteTask(t.Context(), chatRequest(f.agentID, "chat-1", "still there?"))
	require.Equal(t, api.StatusSuccess, second.Status)
	assert.True(t, second.ExecutionMetadata.Recovered)

	// The archived transcript is back in front of the model.
	calls := f.connection.Calls()
	require.Len(t, calls, 2)
	var sawArchived bool
	for _, msg := range calls[1] {
		if msg.Role == chat.MessageRoleUser && msg.Content == "note this" {
			sawArchived = true
		}
	}
	assert.True(t, sawArchived)
}

func TestAvailableToolsScopeInlineConfig(t *testing.T) {
	f := newFixture(t, nil)
	f.connection.Append(
		scripted.ToolCall("call-1", "echo", `{"msg":"hi"}`),
		scripted.Text("done"),
	)

	req := chatRequest("inline-agent", "chat-1", "use a tool")
	config := agentConfig()
	config.Tools = nil
	req.AgentConfig = config
	req.AvailableTools = []api.ToolSelector{{Name: "echo"}}

	result := f.adapter.ExecuteTask(t.Context(), req)
	require.Equal(t, api.StatusSuccess, result.Status)
	require.NotEmpty(t, result.ToolResults)
	assert.Equal(t, `echo: {"msg":"hi"}`, result.ToolResults[0].Output)

	// The agent created from the inline config carries only the selectors.
	created, err := f.agents.GetAgent("inline-agent")
	require.NoError(t, err)
	assert.Equal(t, []string{"echo"}, created.Config.Tools)
}

func TestEffectiveConfigIntersectsDeclaredTools(t *testing.T) {
	req := &api.TaskRequest{
		AgentConfig: agentConfig(),
		AvailableTools: []api.ToolSelector{
			{Name: "echo"},
			{Name: "search", Tool: &api.UniversalTool{Name: "search"}},
		},
	}

	narrowed := effectiveConfig(req)
	assert.Equal(t, []string{"echo"}, narrowed.Tools)
	// The request's own config stays untouched.
	assert.Equal(t, []string{"echo", "write_file"}, req.AgentConfig.Tools)
}

func nextChunkOfType(t *testing.T, session *stream.Session, chunkType stream.ChunkType) *stream.Chunk {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case chunk, ok := <-session.Events():
			require.True(t, ok, "stream closed before %s", chunkType)
			if chunk.Type == chunkType {
				return chunk
			}
			require.False(t, chunk.Terminal(), "stream terminated before %s: %#v", chunkType, chunk)
		case <-deadline:
			t.Fatalf("timed out waiting for %s", chunkType)
		}
	}
}

func TestExecuteTaskLiveApproveFlow(t *testing.T) {
	f := newFixture(t, nil)
	f.connection.Append(
		scripted.ToolCall("call-1", "write_file", `{"path":"a"}`),
		scripted.Text("written"),
	)

	session, err := f.adapter.ExecuteTaskLive(t.Context(), chatRequest(f.agentID, "chat-1", "write it"))
	require.NoError(t, err)
	defer session.Close()
	assert.Equal(t, 1, f.adapter.LiveSessionCount())

	proposal := nextChunkOfType(t, session, stream.TypeToolProposal)
	assert.True(t, proposal.Metadata.RequiresConfirmation)

	require.NoError(t, session.ApproveTool(t.Context(), proposal.Metadata.InteractionID, true, "", "", ""))

	result := nextChunkOfType(t, session, stream.TypeToolResult)
	assert.Equal(t, `wrote: {"path":"a"}`, result.Content)
	nextChunkOfType(t, session, stream.TypeComplete)

	assert.Eventually(t, func() bool {
		return f.adapter.LiveSessionCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestExecuteTaskLiveUnknownAgent(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.adapter.ExecuteTaskLive(t.Context(), chatRequest("agent-missing", "chat-1", "hi"))
	assert.Equal(t, api.CodeAgentNotFound, api.CodeOf(err))
}

func TestShutdownCascades(t *testing.T) {
	f := newFixture(t, nil)
	f.connection.Append(scripted.ToolCall("call-1", "write_file", `{"path":"a"}`))

	session, err := f.adapter.ExecuteTaskLive(t.Context(), chatRequest(f.agentID, "chat-1", "write it"))
	require.NoError(t, err)
	nextChunkOfType(t, session, stream.TypeToolProposal)

	require.NoError(t, f.adapter.Shutdown(t.Context()))

	assert.Equal(t, 0, f.adapter.LiveSessionCount())
	assert.Equal(t, 0, f.runners.RunnerCount())
	assert.Equal(t, 0, f.agents.Count())
}
