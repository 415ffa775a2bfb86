package stream

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcore/agentcore/pkg/api"
	"github.com/agentcore/agentcore/pkg/approval"
	"github.com/agentcore/agentcore/pkg/chat"
	"github.com/agentcore/agentcore/pkg/model"
	"github.com/agentcore/agentcore/pkg/model/scripted"
	"github.com/agentcore/agentcore/pkg/runtime"
	"github.com/agentcore/agentcore/pkg/tools"
)

type fixedToolset struct {
	tools []tools.Tool
}

func (f *fixedToolset) Tools(context.Context) ([]tools.Tool, error) {
	return f.tools, nil
}

func testTools() []tools.Tool {
	confirm := true
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
		{
			Name:        "read_secret",
			Description: "Reads sensitive data. Read-only but explicitly gated.",
			Annotations: tools.ToolAnnotations{ReadOnlyHint: true, RequiresConfirmation: &confirm},
			Handler: func(_ context.Context, call tools.ToolCall) (*tools.ToolCallResult, error) {
				return tools.ResultSuccess("secret: " + call.Function.Arguments), nil
			},
		},
	}
}

type liveFixture struct {
	session *Session
	closed  atomic.Bool
}

func newLiveFixture(t *testing.T, connection model.Connection, brokerOpts ...approval.Option) *liveFixture {
	t.Helper()

	registry := tools.NewRegistry()
	require.NoError(t, registry.Register("fs", &fixedToolset{tools: testTools()}))
	descriptors, err := registry.Resolve(t.Context(), []string{"echo", "write_file", "read_secret"}, nil)
	require.NoError(t, err)

	config := &api.AgentConfig{
		AgentType:    "assistant",
		SystemPrompt: "You are a test assistant.",
		Model:        api.ModelDescriptor{Provider: "openai", Name: "gpt-4o"},
		Tools:        []string{"echo", "write_file", "read_secret"},
	}
	runner := runtime.NewRunner("agent-1", config, connection, descriptors, tools.NewInvoker(registry))
	fwSession := runner.CreateSession("user-1")

	execution, err := runner.RunLive(t.Context(), fwSession.ID, []chat.Message{
		{Role: chat.MessageRoleUser, Content: "hello"},
	})
	require.NoError(t, err)

	f := &liveFixture{}
	broker := approval.NewBroker(func(req runtime.ResumeRequest) {
		_ = execution.Resume(req)
	}, brokerOpts...)
	converter := NewConverter("task-1", "agent-1", "chat-1")
	f.session = NewSession("task-1", "chat-1", execution, broker, converter, func() {
		f.closed.Store(true)
	})
	t.Cleanup(func() { _ = f.session.Close() })
	return f
}

func nextChunk(t *testing.T, session *Session) *Chunk {
	t.Helper()
	select {
	case chunk, ok := <-session.Events():
		require.True(t, ok, "chunk stream closed early")
		return chunk
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for chunk")
		return nil
	}
}

func chunkOfType(t *testing.T, session *Session, chunkType ChunkType) *Chunk {
	t.Helper()
	for {
		chunk := nextChunk(t, session)
		if chunk.Type == chunkType {
			return chunk
		}
		require.False(t, chunk.Terminal(), "stream terminated before %s: %#v", chunkType, chunk)
	}
}

func drainRemaining(t *testing.T, session *Session) []*Chunk {
	t.Helper()
	var chunks []*Chunk
	deadline := time.After(2 * time.Second)
	for {
		select {
		case chunk, ok := <-session.Events():
			if !ok {
				return chunks
			}
			chunks = append(chunks, chunk)
		case <-deadline:
			t.Fatal("timed out draining chunk stream")
		}
	}
}

func TestLiveTextTurn(t *testing.T) {
	connection := scripted.New(scripted.Text("Hello!").Reasoning("let me think").WithUsage(10, 4))
	f := newLiveFixture(t, connection)

	chunks := drainRemaining(t, f.session)
	require.NotEmpty(t, chunks)

	var last uint64
	for _, chunk := range chunks {
		assert.Greater(t, chunk.SequenceID, last)
		last = chunk.SequenceID
	}

	terminal := chunks[len(chunks)-1]
	assert.Equal(t, TypeComplete, terminal.Type)
	assert.True(t, terminal.Metadata.IsFinal)
	assert.Equal(t, int64(10), terminal.Metadata.InputTokens)

	assert.Eventually(t, f.closed.Load, 2*time.Second, 10*time.Millisecond)
}

func TestReadOnlyToolRunsWithoutInteraction(t *testing.T) {
	connection := scripted.New(
		scripted.ToolCall("call-1", "echo", `{"msg":"hi"}`),
		scripted.Text("done"),
	)
	f := newLiveFixture(t, connection)

	proposal := chunkOfType(t, f.session, TypeToolProposal)
	assert.False(t, proposal.Metadata.RequiresConfirmation)
	assert.Empty(t, f.session.ListPendingInteractions())

	result := chunkOfType(t, f.session, TypeToolResult)
	assert.Equal(t, `echo: {"msg":"hi"}`, result.Content)
	assert.Equal(t, "call-1", result.Metadata.InteractionID)

	terminal := chunkOfType(t, f.session, TypeComplete)
	assert.True(t, terminal.Terminal())
}

func TestApproveFlow(t *testing.T) {
	connection := scripted.New(
		scripted.ToolCall("call-1", "write_file", `{"path":"a"}`),
		scripted.Text("written"),
	)
	f := newLiveFixture(t, connection)

	proposal := chunkOfType(t, f.session, TypeToolProposal)
	assert.True(t, proposal.Metadata.RequiresConfirmation)
	assert.Equal(t, "call-1", proposal.Metadata.InteractionID)
	assert.Equal(t, "fs.write_file", proposal.Metadata.ToolFullName)

	pending := f.session.ListPendingInteractions()
	require.Len(t, pending, 1)
	assert.Equal(t, "call-1", pending[0].ID)

	require.NoError(t, f.session.ApproveTool(t.Context(), "call-1", true, "", "", ""))

	result := chunkOfType(t, f.session, TypeToolResult)
	assert.Equal(t, `wrote: {"path":"a"}`, result.Content)

	text := chunkOfType(t, f.session, TypeAssistantText)
	assert.Equal(t, "written", text.Content)

	chunkOfType(t, f.session, TypeComplete)
	assert.Empty(t, f.session.ListPendingInteractions())
}

func TestApproveTwiceFails(t *testing.T) {
	connection := scripted.New(
		scripted.ToolCall("call-1", "write_file", `{"path":"a"}`),
		scripted.Text("written"),
	)
	f := newLiveFixture(t, connection)

	chunkOfType(t, f.session, TypeToolProposal)
	require.NoError(t, f.session.ApproveTool(t.Context(), "call-1", true, "", "", ""))

	err := f.session.ApproveTool(t.Context(), "call-1", false, "", "", "")
	assert.Equal(t, api.CodeInteractionAlreadyResolved, api.CodeOf(err))
}

func TestTimeoutAutoCancel(t *testing.T) {
	connection := scripted.New(scripted.ToolCall("call-1", "write_file", `{"path":"a"}`))
	f := newLiveFixture(t, connection, approval.WithTimeout(30*time.Millisecond))

	chunkOfType(t, f.session, TypeToolProposal)

	failure := chunkOfType(t, f.session, TypeError)
	assert.Equal(t, KindToolError, failure.Kind)
	assert.True(t, failure.Metadata.AutoTimeout)
	assert.Equal(t, api.CodeInteractionAutoTimeout, failure.Metadata.Code)

	chunks := drainRemaining(t, f.session)
	require.NotEmpty(t, chunks)
	assert.Equal(t, TypeCancelled, chunks[len(chunks)-1].Type)
}

func TestSafeDefaultApprovesReadOnlyOnTimeout(t *testing.T) {
	connection := scripted.New(
		scripted.ToolCall("call-1", "read_secret", `{"name":"token"}`),
		scripted.Text("done"),
	)
	f := newLiveFixture(t, connection,
		approval.WithPolicy(approval.PolicySafeDefault),
		approval.WithTimeout(30*time.Millisecond),
	)

	proposal := chunkOfType(t, f.session, TypeToolProposal)
	assert.True(t, proposal.Metadata.RequiresConfirmation)

	// Nobody answers; the deadline policy lets the read-only call run.
	result := chunkOfType(t, f.session, TypeToolResult)
	assert.Equal(t, `secret: {"name":"token"}`, result.Content)
	assert.True(t, result.Metadata.AutoTimeout)

	chunkOfType(t, f.session, TypeComplete)
}

func TestCancelWhileAwaitingApproval(t *testing.T) {
	connection := scripted.New(scripted.ToolCall("call-1", "write_file", `{"path":"a"}`))
	f := newLiveFixture(t, connection)

	chunkOfType(t, f.session, TypeToolProposal)
	f.session.Cancel("changed my mind")

	chunks := drainRemaining(t, f.session)
	require.NotEmpty(t, chunks)
	terminal := chunks[len(chunks)-1]
	assert.Equal(t, TypeCancelled, terminal.Type)
	assert.Equal(t, "changed my mind", terminal.Content)
}

func TestCancelMidTurnInterruptsRun(t *testing.T) {
	connection := scripted.New(scripted.Hang("thinking out loud"))
	f := newLiveFixture(t, connection)

	text := chunkOfType(t, f.session, TypeAssistantText)
	assert.Equal(t, "thinking out loud", text.Content)

	// The model never finishes its turn; Cancel must interrupt it anyway.
	f.session.Cancel("user asked to stop")

	chunks := drainRemaining(t, f.session)
	require.NotEmpty(t, chunks)
	assert.Equal(t, TypeCancelled, chunks[len(chunks)-1].Type)
}

func TestAbandonedConsumerStillFinalizes(t *testing.T) {
	connection := scripted.New(scripted.ToolCall("call-1", "write_file", `{"path":"a"}`))
	f := newLiveFixture(t, connection)

	chunkOfType(t, f.session, TypeToolProposal)
	require.Len(t, f.session.ListPendingInteractions(), 1)

	// The consumer walks away without draining the stream.
	require.NoError(t, f.session.Close())

	assert.Eventually(t, f.closed.Load, 2*time.Second, 10*time.Millisecond)
	assert.Empty(t, f.session.ListPendingInteractions())
}

func TestSendUserMessageReachesModel(t *testing.T) {
	connection := scripted.New(
		scripted.Text("first"),
		scripted.Text("second"),
	)
	f := newLiveFixture(t, connection)

	f.session.SendUserMessage("follow-up")

	drainRemaining(t, f.session)
	calls := connection.Calls()
	require.NotEmpty(t, calls)
}
