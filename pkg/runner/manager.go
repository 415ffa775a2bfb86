// Package runner pools runtime runners by configuration fingerprint and
// tracks which agents and framework sessions are bound to each one.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/agentcore/agentcore/pkg/api"
	"github.com/agentcore/agentcore/pkg/chat"
	"github.com/agentcore/agentcore/pkg/model"
	"github.com/agentcore/agentcore/pkg/model/provider"
	"github.com/agentcore/agentcore/pkg/runtime"
	"github.com/agentcore/agentcore/pkg/tools"
)

const (
	// DefaultIdleThreshold is how long a runner with zero sessions may
	// linger before the idle scan destroys it.
	DefaultIdleThreshold = 15 * time.Minute
	// DefaultScanInterval paces the idle scan ticker.
	DefaultScanInterval = time.Minute
)

// ConnectionFactory opens a model connection for a descriptor.
type ConnectionFactory func(desc api.ModelDescriptor) (model.Connection, error)

// CleanupNotifier is called after a runner is destroyed, with the agents
// that were bound to it, so back-references elsewhere can be cleared.
type CleanupNotifier func(ctx context.Context, runnerID string, agentIDs []string)

// Manager owns the runner pool. One RWMutex guards every map; runner
// construction and teardown happen outside it, deduplicated per
// fingerprint with singleflight.
type Manager struct {
	registry      *tools.Registry
	invoker       *tools.Invoker
	connect       ConnectionFactory
	notify        CleanupNotifier
	idleThreshold time.Duration
	scanInterval  time.Duration
	maxIterations int
	now           func() time.Time

	group singleflight.Group

	mu            sync.RWMutex
	runners       map[string]*runtime.Runner
	byFingerprint map[string]string
	agentRunner   map[string]string
	runnerAgents  map[string]map[string]struct{}
	sessionRunner map[string]string
}

type ManagerOption func(*Manager)

func WithConnectionFactory(connect ConnectionFactory) ManagerOption {
	return func(m *Manager) {
		m.connect = connect
	}
}

func WithCleanupNotifier(notify CleanupNotifier) ManagerOption {
	return func(m *Manager) {
		m.notify = notify
	}
}

func WithIdleThreshold(threshold time.Duration) ManagerOption {
	return func(m *Manager) {
		m.idleThreshold = threshold
	}
}

func WithScanInterval(interval time.Duration) ManagerOption {
	return func(m *Manager) {
		m.scanInterval = interval
	}
}

func WithMaxIterations(maxIterations int) ManagerOption {
	return func(m *Manager) {
		m.maxIterations = maxIterations
	}
}

func WithNow(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

func NewManager(registry *tools.Registry, invoker *tools.Invoker, opts ...ManagerOption) *Manager {
	m := &Manager{
		registry:      registry,
		invoker:       invoker,
		connect:       provider.New,
		idleThreshold: DefaultIdleThreshold,
		scanInterval:  DefaultScanInterval,
		now:           time.Now,
		runners:       make(map[string]*runtime.Runner),
		byFingerprint: make(map[string]string),
		agentRunner:   make(map[string]string),
		runnerAgents:  make(map[string]map[string]struct{}),
		sessionRunner: make(map[string]string),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GetOrCreateRunner returns the runner serving the configuration,
// constructing it on first use. Runners are shared between agents whose
// configurations share a fingerprint; the agent binding is recorded either
// way.
func (m *Manager) GetOrCreateRunner(ctx context.Context, agentID string, config *api.AgentConfig) (*runtime.Runner, error) {
	fingerprint := config.Fingerprint()

	m.mu.RLock()
	id, ok := m.byFingerprint[fingerprint]
	existing := m.runners[id]
	m.mu.RUnlock()
	if ok && existing != nil {
		m.bindAgent(agentID, existing.ID())
		return existing, nil
	}

	created, err, _ := m.group.Do(fingerprint, func() (any, error) {
		m.mu.RLock()
		id, ok := m.byFingerprint[fingerprint]
		runner := m.runners[id]
		m.mu.RUnlock()
		if ok && runner != nil {
			return runner, nil
		}
		return m.buildRunner(ctx, agentID, config, fingerprint)
	})
	if err != nil {
		return nil, err
	}

	runner := created.(*runtime.Runner)
	m.bindAgent(agentID, runner.ID())
	return runner, nil
}

// buildRunner resolves tools, opens the model connection, and registers the
// result. It runs outside the manager lock.
func (m *Manager) buildRunner(ctx context.Context, agentID string, config *api.AgentConfig, fingerprint string) (*runtime.Runner, error) {
	descriptors, err := m.registry.Resolve(ctx, config.Tools, nil)
	if err != nil {
		return nil, fmt.Errorf("resolving tools for agent %q: %w", agentID, err)
	}

	connection, err := m.connect(config.Model)
	if err != nil {
		return nil, api.WrapError(api.CodeFrameworkUnavailable, err)
	}

	runnerOpts := []runtime.Option{
		runtime.WithInstructions(m.registry.Instructions()),
	}
	if m.maxIterations > 0 {
		runnerOpts = append(runnerOpts, runtime.WithMaxIterations(m.maxIterations))
	}
	runner := runtime.NewRunner(agentID, config, connection, descriptors, m.invoker, runnerOpts...)

	m.mu.Lock()
	m.runners[runner.ID()] = runner
	m.byFingerprint[fingerprint] = runner.ID()
	m.mu.Unlock()

	slog.Debug("Runner created", "runner_id", runner.ID(), "agent_id", agentID, "fingerprint", fingerprint[:12])
	return runner, nil
}

func (m *Manager) bindAgent(agentID, runnerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.agentRunner[agentID] = runnerID
	agents, ok := m.runnerAgents[runnerID]
	if !ok {
		agents = make(map[string]struct{})
		m.runnerAgents[runnerID] = agents
	}
	agents[agentID] = struct{}{}
}

// RunnerForAgent returns the runner bound to the agent, or
// framework.runner_missing.
func (m *Manager) RunnerForAgent(agentID string) (*runtime.Runner, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.agentRunner[agentID]
	if !ok {
		return nil, api.Errorf(api.CodeFrameworkRunnerMissing, "no runner for agent %q", agentID).
			WithDetail("agent_id", agentID)
	}
	runner, ok := m.runners[id]
	if !ok {
		return nil, api.Errorf(api.CodeFrameworkRunnerMissing, "runner %q for agent %q is gone", id, agentID).
			WithDetail("agent_id", agentID)
	}
	return runner, nil
}

// CreateSession provisions a fresh framework session on the runner and
// records the session→runner mapping.
func (m *Manager) CreateSession(_ context.Context, runnerID, userID string) (string, error) {
	m.mu.RLock()
	runner, ok := m.runners[runnerID]
	m.mu.RUnlock()
	if !ok {
		return "", api.Errorf(api.CodeFrameworkRunnerMissing, "runner %q not found", runnerID)
	}

	session := runner.CreateSession(userID)
	m.mu.Lock()
	m.sessionRunner[session.ID] = runnerID
	m.mu.Unlock()
	return session.ID, nil
}

// GetSession resolves a framework session to its runner and handle.
func (m *Manager) GetSession(sessionID string) (string, *runtime.FrameworkSession, error) {
	m.mu.RLock()
	runnerID, ok := m.sessionRunner[sessionID]
	runner := m.runners[runnerID]
	m.mu.RUnlock()
	if !ok || runner == nil {
		return "", nil, api.Errorf(api.CodeFrameworkRunnerMissing, "no runner holds session %q", sessionID).
			WithDetail("session_id", sessionID)
	}
	session, ok := runner.Session(sessionID)
	if !ok {
		return "", nil, api.Errorf(api.CodeFrameworkRunnerMissing, "session %q is gone from runner %q", sessionID, runnerID)
	}
	return runnerID, session, nil
}

// RemoveSession drops the framework session and its mapping. Unknown
// sessions are a no-op.
func (m *Manager) RemoveSession(sessionID string) {
	m.mu.Lock()
	runnerID, ok := m.sessionRunner[sessionID]
	runner := m.runners[runnerID]
	delete(m.sessionRunner, sessionID)
	m.mu.Unlock()

	if ok && runner != nil {
		runner.RemoveSession(sessionID)
	}
}

// ExtractHistory returns a copy of the session transcript.
func (m *Manager) ExtractHistory(sessionID string) ([]chat.Message, error) {
	_, session, err := m.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	return session.History(), nil
}

// InjectHistory appends transcript messages to the session.
func (m *Manager) InjectHistory(sessionID string, messages []chat.Message) error {
	_, session, err := m.GetSession(sessionID)
	if err != nil {
		return err
	}
	session.Append(messages...)
	return nil
}

// DropAgent removes the agent's runner binding. A runner left with no
// agents and no sessions is destroyed.
func (m *Manager) DropAgent(ctx context.Context, agentID string) {
	m.mu.Lock()
	runnerID, ok := m.agentRunner[agentID]
	delete(m.agentRunner, agentID)
	var orphaned bool
	if ok {
		if agents := m.runnerAgents[runnerID]; agents != nil {
			delete(agents, agentID)
			if len(agents) == 0 {
				orphaned = true
			}
		}
	}
	runner := m.runners[runnerID]
	m.mu.Unlock()

	if orphaned && runner != nil && runner.SessionCount() == 0 {
		m.CleanupRunner(ctx, runnerID)
	}
}

// ReleaseRunnerIfEmpty reports whether the runner holds no sessions and is
// now a candidate for the idle scan. The runner itself survives the idle
// threshold, so a session switching straight back reuses it instead of
// rebuilding.
func (m *Manager) ReleaseRunnerIfEmpty(runnerID string) bool {
	m.mu.RLock()
	runner, ok := m.runners[runnerID]
	m.mu.RUnlock()
	if !ok || runner.SessionCount() > 0 {
		return false
	}
	slog.Debug("Runner released, eviction deferred to idle scan", "runner_id", runnerID)
	return true
}

// CleanupRunner removes the runner and every mapping that references it,
// then notifies the cleanup callback with the agents that were bound.
func (m *Manager) CleanupRunner(ctx context.Context, runnerID string) {
	m.mu.Lock()
	runner, existed := m.runners[runnerID]
	delete(m.runners, runnerID)
	for fingerprint, id := range m.byFingerprint {
		if id == runnerID {
			delete(m.byFingerprint, fingerprint)
		}
	}
	var agentIDs []string
	for agentID := range m.runnerAgents[runnerID] {
		agentIDs = append(agentIDs, agentID)
		delete(m.agentRunner, agentID)
	}
	delete(m.runnerAgents, runnerID)
	for sessionID, id := range m.sessionRunner {
		if id == runnerID {
			delete(m.sessionRunner, sessionID)
		}
	}
	m.mu.Unlock()

	if !existed {
		return
	}
	slog.Debug("Runner cleaned up", "runner_id", runnerID, "sessions", runner.SessionCount())
	if m.notify != nil {
		m.notify(ctx, runnerID, agentIDs)
	}
}

// IdleScan destroys runners that hold no sessions and have been idle past
// the threshold. It returns the ids destroyed.
func (m *Manager) IdleScan(ctx context.Context) []string {
	cutoff := m.now().Add(-m.idleThreshold)

	m.mu.RLock()
	var idle []string
	for id, runner := range m.runners {
		if runner.SessionCount() == 0 && runner.LastActivity().Before(cutoff) {
			idle = append(idle, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range idle {
		m.CleanupRunner(ctx, id)
	}
	if len(idle) > 0 {
		slog.Info("Idle runners destroyed", "count", len(idle))
	}
	return idle
}

// Start runs the idle scan ticker until the context ends.
func (m *Manager) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(m.scanInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.IdleScan(ctx)
			}
		}
	}()
}

// RunnerCount returns the number of pooled runners.
func (m *Manager) RunnerCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.runners)
}

// Shutdown destroys every runner.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.RLock()
	ids := make([]string, 0, len(m.runners))
	for id := range m.runners {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	for _, id := range ids {
		m.CleanupRunner(ctx, id)
	}
}
