package runner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcore/agentcore/pkg/api"
	"github.com/agentcore/agentcore/pkg/chat"
	"github.com/agentcore/agentcore/pkg/model"
	"github.com/agentcore/agentcore/pkg/model/scripted"
	"github.com/agentcore/agentcore/pkg/tools"
)

type fixedToolset struct {
	tools []tools.Tool
}

func (f *fixedToolset) Tools(context.Context) ([]tools.Tool, error) {
	return f.tools, nil
}

func scriptedFactory(api.ModelDescriptor) (model.Connection, error) {
	return scripted.New(), nil
}

func newTestManager(t *testing.T, opts ...ManagerOption) *Manager {
	t.Helper()
	registry := tools.NewRegistry()
	require.NoError(t, registry.Register("fs", &fixedToolset{tools: []tools.Tool{{
		Name:        "echo",
		Annotations: tools.ToolAnnotations{ReadOnlyHint: true},
		Handler: func(_ context.Context, call tools.ToolCall) (*tools.ToolCallResult, error) {
			return tools.ResultSuccess("ok"), nil
		},
	}}}))
	opts = append([]ManagerOption{WithConnectionFactory(scriptedFactory)}, opts...)
	return NewManager(registry, tools.NewInvoker(registry), opts...)
}

func testConfig(prompt string) *api.AgentConfig {
	return &api.AgentConfig{
		AgentType:    "assistant",
		SystemPrompt: prompt,
		Model:        api.ModelDescriptor{Provider: "openai", Name: "gpt-4o"},
		Tools:        []string{"echo"},
	}
}

func TestGetOrCreateRunnerDedup(t *testing.T) {
	manager := newTestManager(t)

	first, err := manager.GetOrCreateRunner(t.Context(), "agent-1", testConfig("same"))
	require.NoError(t, err)
	second, err := manager.GetOrCreateRunner(t.Context(), "agent-2", testConfig("same"))
	require.NoError(t, err)
	assert.Equal(t, first.ID(), second.ID(), "equal fingerprints share one runner")
	assert.Equal(t, 1, manager.RunnerCount())

	other, err := manager.GetOrCreateRunner(t.Context(), "agent-3", testConfig("different"))
	require.NoError(t, err)
	assert.NotEqual(t, first.ID(), other.ID())
	assert.Equal(t, 2, manager.RunnerCount())

	t.Run("both agents bind to the shared runner", func(t *testing.T) {
		for _, agentID := range []string{"agent-1", "agent-2"} {
			bound, err := manager.RunnerForAgent(agentID)
			require.NoError(t, err)
			assert.Equal(t, first.ID(), bound.ID())
		}
	})
}

func TestGetOrCreateRunnerUnknownTool(t *testing.T) {
	manager := newTestManager(t)
	config := testConfig("x")
	config.Tools = []string{"vanish"}

	_, err := manager.GetOrCreateRunner(t.Context(), "agent-1", config)
	require.Error(t, err)
	assert.Equal(t, api.CodeToolNotDeclared, api.CodeOf(err))
}

func TestSessionsCarryTheirOwnUser(t *testing.T) {
	manager := newTestManager(t)
	runner, err := manager.GetOrCreateRunner(t.Context(), "agent-1", testConfig("x"))
	require.NoError(t, err)

	firstID, err := manager.CreateSession(t.Context(), runner.ID(), "alice")
	require.NoError(t, err)
	secondID, err := manager.CreateSession(t.Context(), runner.ID(), "bob")
	require.NoError(t, err)

	_, first, err := manager.GetSession(firstID)
	require.NoError(t, err)
	_, second, err := manager.GetSession(secondID)
	require.NoError(t, err)
	assert.Equal(t, "alice", first.UserID)
	assert.Equal(t, "bob", second.UserID)

	t.Run("unknown runner", func(t *testing.T) {
		_, err := manager.CreateSession(t.Context(), "missing", "alice")
		assert.Equal(t, api.CodeFrameworkRunnerMissing, api.CodeOf(err))
	})

	t.Run("remove session", func(t *testing.T) {
		manager.RemoveSession(firstID)
		_, _, err := manager.GetSession(firstID)
		assert.Equal(t, api.CodeFrameworkRunnerMissing, api.CodeOf(err))
		assert.Equal(t, 1, runner.SessionCount())
	})
}

func TestHistoryPassThrough(t *testing.T) {
	manager := newTestManager(t)
	runner, err := manager.GetOrCreateRunner(t.Context(), "agent-1", testConfig("x"))
	require.NoError(t, err)
	sessionID, err := manager.CreateSession(t.Context(), runner.ID(), "alice")
	require.NoError(t, err)

	messages := []chat.Message{{Role: chat.MessageRoleUser, Content: "hello"}}
	require.NoError(t, manager.InjectHistory(sessionID, messages))

	history, err := manager.ExtractHistory(sessionID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "hello", history[0].Content)
}

func TestCleanupRunner(t *testing.T) {
	var gotRunnerID string
	var gotAgents []string
	manager := newTestManager(t, WithCleanupNotifier(func(_ context.Context, runnerID string, agentIDs []string) {
		gotRunnerID = runnerID
		gotAgents = agentIDs
	}))

	runner, err := manager.GetOrCreateRunner(t.Context(), "agent-1", testConfig("x"))
	require.NoError(t, err)
	sessionID, err := manager.CreateSession(t.Context(), runner.ID(), "alice")
	require.NoError(t, err)

	manager.CleanupRunner(t.Context(), runner.ID())

	assert.Equal(t, runner.ID(), gotRunnerID)
	assert.Equal(t, []string{"agent-1"}, gotAgents)
	assert.Equal(t, 0, manager.RunnerCount())

	_, err = manager.RunnerForAgent("agent-1")
	assert.Equal(t, api.CodeFrameworkRunnerMissing, api.CodeOf(err))
	_, _, err = manager.GetSession(sessionID)
	assert.Equal(t, api.CodeFrameworkRunnerMissing, api.CodeOf(err))

	t.Run("a fresh runner is rebuilt afterwards", func(t *testing.T) {
		rebuilt, err := manager.GetOrCreateRunner(t.Context(), "agent-1", testConfig("x"))
		require.NoError(t, err)
		assert.NotEqual(t, runner.ID(), rebuilt.ID())
	})
}

func TestDropAgent(t *testing.T) {
	manager := newTestManager(t)

	_, err := manager.GetOrCreateRunner(t.Context(), "agent-1", testConfig("x"))
	require.NoError(t, err)
	_, err = manager.GetOrCreateRunner(t.Context(), "agent-2", testConfig("x"))
	require.NoError(t, err)

	// Dropping one of two bound agents keeps the runner.
	manager.DropAgent(t.Context(), "agent-1")
	assert.Equal(t, 1, manager.RunnerCount())
	_, err = manager.RunnerForAgent("agent-2")
	require.NoError(t, err)

	// Dropping the last agent with no sessions destroys it.
	manager.DropAgent(t.Context(), "agent-2")
	assert.Equal(t, 0, manager.RunnerCount())
}

func TestReleaseRunnerIfEmpty(t *testing.T) {
	current := time.Now()
	manager := newTestManager(t,
		WithIdleThreshold(10*time.Minute),
		WithNow(func() time.Time { return current }),
	)
	runner, err := manager.GetOrCreateRunner(t.Context(), "agent-1", testConfig("x"))
	require.NoError(t, err)
	sessionID, err := manager.CreateSession(t.Context(), runner.ID(), "alice")
	require.NoError(t, err)

	assert.False(t, manager.ReleaseRunnerIfEmpty(runner.ID()))
	assert.Equal(t, 1, manager.RunnerCount())

	// Releasing an empty runner defers to the idle scan; within the grace
	// window the same fingerprint reuses it instead of rebuilding.
	manager.RemoveSession(sessionID)
	assert.True(t, manager.ReleaseRunnerIfEmpty(runner.ID()))
	assert.Equal(t, 1, manager.RunnerCount())

	reused, err := manager.GetOrCreateRunner(t.Context(), "agent-1", testConfig("x"))
	require.NoError(t, err)
	assert.Equal(t, runner.ID(), reused.ID())

	// Past the threshold the scan reaps it.
	current = current.Add(time.Hour)
	destroyed := manager.IdleScan(t.Context())
	assert.Equal(t, []string{runner.ID()}, destroyed)
	assert.Equal(t, 0, manager.RunnerCount())
}

func TestIdleScan(t *testing.T) {
	current := time.Now()
	manager := newTestManager(t,
		WithIdleThreshold(10*time.Minute),
		WithNow(func() time.Time { return current }),
	)

	idle, err := manager.GetOrCreateRunner(t.Context(), "agent-idle", testConfig("idle"))
	require.NoError(t, err)
	busy, err := manager.GetOrCreateRunner(t.Context(), "agent-busy", testConfig("busy"))
	require.NoError(t, err)
	_, err = manager.CreateSession(t.Context(), busy.ID(), "alice")
	require.NoError(t, err)

	current = current.Add(time.Hour)
	destroyed := manager.IdleScan(t.Context())
	assert.Equal(t, []string{idle.ID()}, destroyed)

	// A runner with sessions survives regardless of idleness.
	assert.Equal(t, 1, manager.RunnerCount())
}

func TestShutdown(t *testing.T) {
	manager := newTestManager(t)
	for _, prompt := range []string{"a", "b", "c"} {
		_, err := manager.GetOrCreateRunner(t.Context(), "agent-"+prompt, testConfig(prompt))
		require.NoError(t, err)
	}
	require.Equal(t, 3, manager.RunnerCount())

	manager.Shutdown(t.Context())
	assert.Equal(t, 0, manager.RunnerCount())
}
