package chatsession

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/agentcore/agentcore/pkg/agent"
	"github.com/agentcore/agentcore/pkg/api"
	"github.com/agentcore/agentcore/pkg/chat"
	"github.com/agentcore/agentcore/pkg/recovery"
	"github.com/agentcore/agentcore/pkg/runner"
)

const (
	// DefaultIdleThreshold is how long a chat session may sit inactive
	// before the idle scan clears it.
	DefaultIdleThreshold = 30 * time.Minute
	// DefaultScanInterval paces the idle scan ticker.
	DefaultScanInterval = time.Minute
)

// Manager owns every ChatSession and the recovery store handle. Work on
// one chat session is serialized through a bounded per-session queue;
// different chat sessions proceed fully in parallel.
type Manager struct {
	agents  *agent.Manager
	runners *runner.Manager
	store   recovery.Store

	idleThreshold time.Duration
	scanInterval  time.Duration
	queueBound    int
	now           func() time.Time

	mu       sync.Mutex
	sessions map[string]*ChatSession
	queues   map[string]*sessionQueue
	// pending holds loaded recovery records awaiting injection. Entries
	// are drained only after the injection is observed to succeed.
	pending map[string]*recovery.Record
}

type ManagerOption func(*Manager)

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

func WithQueueBound(bound int) ManagerOption {
	return func(m *Manager) {
		m.queueBound = bound
	}
}

func WithNow(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

func NewManager(agents *agent.Manager, runners *runner.Manager, store recovery.Store, opts ...ManagerOption) *Manager {
	m := &Manager{
		agents:        agents,
		runners:       runners,
		store:         store,
		idleThreshold: DefaultIdleThreshold,
		scanInterval:  DefaultScanInterval,
		queueBound:    DefaultQueueBound,
		now:           time.Now,
		sessions:      make(map[string]*ChatSession),
		queues:        make(map[string]*sessionQueue),
		pending:       make(map[string]*recovery.Record),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) queue(chatSessionID string) *sessionQueue {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.queues[chatSessionID]
	if !ok {
		q = newSessionQueue()
		m.queues[chatSessionID] = q
	}
	return q
}

func (m *Manager) getOrCreate(chatSessionID, userID string) *ChatSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[chatSessionID]
	if !ok {
		now := m.now()
		session = &ChatSession{
			ID:           chatSessionID,
			UserID:       userID,
			CreatedAt:    now,
			LastActivity: now,
			State:        StateActive,
		}
		m.sessions[chatSessionID] = session
		slog.Debug("Chat session created", "chat_session_id", chatSessionID, "user_id", userID)
	}
	return session
}

// Session returns a copy of the chat session, if it exists.
func (m *Manager) Session(chatSessionID string) (ChatSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[chatSessionID]
	if !ok {
		return ChatSession{}, false
	}
	return *session, true
}

// Coordinate binds the chat session to the target agent and returns the
// framework handles to run on. Same-agent requests reuse the cached
// framework session when it is still alive; anything else goes through the
// switch sequence. Cleared sessions fail with ErrSessionCleared so the
// caller can recover and retry.
func (m *Manager) Coordinate(ctx context.Context, chatSessionID, targetAgentID, userID string, config *api.AgentConfig) (CoordinationResult, error) {
	if chatSessionID == "" {
		return CoordinationResult{}, api.NewError(api.CodeRequestValidation, "chat session id is required")
	}
	if targetAgentID == "" {
		return CoordinationResult{}, api.NewError(api.CodeRequestValidation, "target agent id is required")
	}

	release, err := m.queue(chatSessionID).acquire(ctx, chatSessionID, m.queueBound)
	if err != nil {
		return CoordinationResult{}, err
	}
	defer release()

	session := m.getOrCreate(chatSessionID, userID)

	if session.State == StateCleared {
		return CoordinationResult{}, fmt.Errorf("%w: %s", ErrSessionCleared, chatSessionID)
	}

	if session.State == StateActive && session.ActiveAgentID == targetAgentID && session.ActiveFrameworkSessionID != "" {
		// Liveness check: the cached handle may have been evicted.
		if _, _, err := m.runners.GetSession(session.ActiveFrameworkSessionID); err == nil {
			m.touch(session)
			return CoordinationResult{
				AgentID:            targetAgentID,
				FrameworkSessionID: session.ActiveFrameworkSessionID,
				RunnerID:           session.ActiveRunnerID,
			}, nil
		}
		slog.Debug("Cached framework session is gone, rebuilding",
			"chat_session_id", chatSessionID, "framework_session_id", session.ActiveFrameworkSessionID)
	}

	return m.rebind(ctx, session, targetAgentID, userID, config)
}

// rebind performs the agent-switch sequence: extract history, tear down the
// old framework session, provision the target runner, create a fresh
// framework session, migrate history, and apply any pending recovery. The
// caller holds the session's queue slot.
func (m *Manager) rebind(ctx context.Context, session *ChatSession, targetAgentID, userID string, config *api.AgentConfig) (CoordinationResult, error) {
	previousAgentID := session.ActiveAgentID

	var history []chat.Message
	if session.ActiveFrameworkSessionID != "" {
		extracted, err := m.runners.ExtractHistory(session.ActiveFrameworkSessionID)
		if err != nil {
			slog.Warn("Transcript extraction failed during switch",
				"chat_session_id", session.ID, "error", err)
		} else {
			history = extracted
		}
		m.runners.RemoveSession(session.ActiveFrameworkSessionID)
		if session.ActiveRunnerID != "" {
			m.runners.ReleaseRunnerIfEmpty(session.ActiveRunnerID)
		}
		session.ActiveFrameworkSessionID = ""
		session.ActiveRunnerID = ""
	}

	agentConfig, err := m.resolveAgentConfig(ctx, targetAgentID, config)
	if err != nil {
		return CoordinationResult{}, err
	}

	targetRunner, err := m.runners.GetOrCreateRunner(ctx, targetAgentID, agentConfig)
	if err != nil {
		return CoordinationResult{}, err
	}
	frameworkSessionID, err := m.runners.CreateSession(ctx, targetRunner.ID(), userID)
	if err != nil {
		return CoordinationResult{}, err
	}

	if len(history) > 0 {
		if err := m.runners.InjectHistory(frameworkSessionID, history); err != nil {
			m.runners.RemoveSession(frameworkSessionID)
			return CoordinationResult{}, api.WrapError(api.CodeFrameworkExecution, err)
		}
	}

	recovered, err := m.applyPendingRecovery(ctx, session.ID, frameworkSessionID)
	if err != nil {
		m.runners.RemoveSession(frameworkSessionID)
		return CoordinationResult{}, err
	}

	switchOccurred := previousAgentID != "" && previousAgentID != targetAgentID
	session.ActiveAgentID = targetAgentID
	session.ActiveFrameworkSessionID = frameworkSessionID
	session.ActiveRunnerID = targetRunner.ID()
	session.State = StateActive
	if switchOccurred {
		session.LastSwitchAt = m.now()
		slog.Info("Agent switch",
			"chat_session_id", session.ID,
			"previous_agent_id", previousAgentID,
			"agent_id", targetAgentID,
			"migrated_messages", len(history))
	}
	m.touch(session)
	m.agents.Touch(targetAgentID)

	return CoordinationResult{
		AgentID:            targetAgentID,
		FrameworkSessionID: frameworkSessionID,
		RunnerID:           targetRunner.ID(),
		SwitchOccurred:     switchOccurred,
		PreviousAgentID:    previousAgentID,
		Recovered:          recovered,
	}, nil
}

// resolveAgentConfig prefers the registered agent's frozen config; a config
// supplied by the caller restores an agent the sweep already removed.
func (m *Manager) resolveAgentConfig(ctx context.Context, agentID string, config *api.AgentConfig) (*api.AgentConfig, error) {
	registered, err := m.agents.GetAgent(agentID)
	if err == nil {
		return registered.Config, nil
	}
	if config == nil {
		return nil, err
	}
	restored, err := m.agents.EnsureAgent(ctx, agentID, config)
	if err != nil {
		return nil, err
	}
	return restored.Config, nil
}

// applyPendingRecovery injects the queued recovery transcript into the new
// framework session. The record is purged only after injection succeeded;
// a failure leaves it queued and surfaces session.recovery_retry.
func (m *Manager) applyPendingRecovery(ctx context.Context, chatSessionID, frameworkSessionID string) (bool, error) {
	m.mu.Lock()
	record, ok := m.pending[chatSessionID]
	m.mu.Unlock()
	if !ok {
		return false, nil
	}

	if len(record.History) > 0 {
		if err := m.runners.InjectHistory(frameworkSessionID, record.History); err != nil {
			slog.Warn("Recovery injection failed, record requeued",
				"chat_session_id", chatSessionID, "code", api.CodeSessionRecoveryRetry, "error", err)
			return false, api.WrapError(api.CodeSessionRecoveryRetry, err)
		}
	}

	m.mu.Lock()
	delete(m.pending, chatSessionID)
	m.mu.Unlock()

	if err := m.store.Purge(ctx, chatSessionID); err != nil {
		slog.Warn("Recovery record purge failed",
			"chat_session_id", chatSessionID, "code", api.CodeRecoveryStoreUnavailable, "error", err)
	}
	slog.Info("Chat session recovered",
		"chat_session_id", chatSessionID, "messages", len(record.History))
	return true, nil
}

// Cleanup archives the chat session and tears down its framework
// resources. A recovery-store failure is logged and never blocks teardown.
func (m *Manager) Cleanup(ctx context.Context, chatSessionID, reason string) error {
	release, err := m.queue(chatSessionID).acquire(ctx, chatSessionID, m.queueBound)
	if err != nil {
		return err
	}
	defer release()

	m.mu.Lock()
	session := m.sessions[chatSessionID]
	m.mu.Unlock()
	if session == nil || session.State != StateActive {
		return nil
	}

	var history []chat.Message
	if session.ActiveFrameworkSessionID != "" {
		if extracted, err := m.runners.ExtractHistory(session.ActiveFrameworkSessionID); err == nil {
			history = extracted
		}
	}

	record := &recovery.Record{
		ChatSessionID: session.ID,
		UserID:        session.UserID,
		AgentID:       session.ActiveAgentID,
		History:       history,
		ArchivedAt:    m.now(),
		Reason:        reason,
	}
	if registered, err := m.agents.GetAgent(session.ActiveAgentID); err == nil {
		record.AgentConfig = registered.Config
	}
	if err := m.store.Save(ctx, record); err != nil {
		slog.Error("Recovery snapshot failed, continuing teardown",
			"chat_session_id", session.ID, "code", api.CodeRecoveryStoreUnavailable, "error", err)
	}

	if session.ActiveFrameworkSessionID != "" {
		m.runners.RemoveSession(session.ActiveFrameworkSessionID)
	}
	if session.ActiveRunnerID != "" {
		m.runners.ReleaseRunnerIfEmpty(session.ActiveRunnerID)
	}

	session.State = StateCleared
	session.ActiveFrameworkSessionID = ""
	session.ActiveRunnerID = ""
	m.touch(session)

	slog.Info("Chat session cleared",
		"chat_session_id", session.ID,
		"agent_id", session.ActiveAgentID,
		"reason", reason,
		"archived_messages", len(history))
	return nil
}

// Recover loads the archived record, restores the agent, and queues the
// transcript for injection into the next framework session. It returns the
// recovered agent id so routing can continue as a session continuation.
func (m *Manager) Recover(ctx context.Context, chatSessionID string) (string, error) {
	release, err := m.queue(chatSessionID).acquire(ctx, chatSessionID, m.queueBound)
	if err != nil {
		return "", err
	}
	defer release()

	record, err := m.store.Load(ctx, chatSessionID)
	if errors.Is(err, recovery.ErrNotFound) {
		return "", api.Errorf(api.CodeSessionRecoveryMissing, "no recovery record for chat session %q", chatSessionID).
			WithDetail("chat_session_id", chatSessionID)
	}
	if err != nil {
		return "", api.WrapError(api.CodeRecoveryStoreUnavailable, err)
	}
	if record.AgentConfig == nil {
		return "", api.Errorf(api.CodeSessionRecoveryFailed, "recovery record for %q carries no agent config", chatSessionID)
	}

	if _, err := m.agents.EnsureAgent(ctx, record.AgentID, record.AgentConfig); err != nil {
		return "", api.WrapError(api.CodeSessionRecoveryFailed, err)
	}

	session := m.getOrCreate(chatSessionID, record.UserID)
	session.State = StatePendingRecovery
	if session.UserID == "" {
		session.UserID = record.UserID
	}

	m.mu.Lock()
	m.pending[chatSessionID] = record
	m.mu.Unlock()

	slog.Debug("Chat session pending recovery",
		"chat_session_id", chatSessionID, "agent_id", record.AgentID)
	return record.AgentID, nil
}

// Touch refreshes the session's activity timestamp.
func (m *Manager) Touch(chatSessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if session, ok := m.sessions[chatSessionID]; ok {
		session.LastActivity = m.now()
	}
}

func (m *Manager) touch(session *ChatSession) {
	m.mu.Lock()
	session.LastActivity = m.now()
	m.mu.Unlock()
}

// WasCleared reports whether the chat session id refers to a previously
// cleared session, either in memory or in the recovery store.
func (m *Manager) WasCleared(ctx context.Context, chatSessionID string) bool {
	if chatSessionID == "" {
		return false
	}
	m.mu.Lock()
	session, ok := m.sessions[chatSessionID]
	m.mu.Unlock()
	if ok {
		return session.State == StateCleared
	}
	_, err := m.store.Load(ctx, chatSessionID)
	return err == nil
}

// IdleScan clears active sessions idle past the threshold and returns the
// ids cleared.
func (m *Manager) IdleScan(ctx context.Context) []string {
	cutoff := m.now().Add(-m.idleThreshold)

	m.mu.Lock()
	var idle []string
	for id, session := range m.sessions {
		if session.State == StateActive && session.LastActivity.Before(cutoff) {
			idle = append(idle, id)
		}
	}
	m.mu.Unlock()

	for _, id := range idle {
		if err := m.Cleanup(ctx, id, "idle"); err != nil {
			slog.Warn("Idle cleanup failed", "chat_session_id", id, "error", err)
		}
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

// Shutdown archives every active session.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for id, session := range m.sessions {
		if session.State == StateActive {
			ids = append(ids, id)
		}
	}
	m.mu.Unlock()

	for _, id := range ids {
		if err := m.Cleanup(ctx, id, "system_shutdown"); err != nil {
			slog.Warn("Shutdown cleanup failed", "chat_session_id", id, "error", err)
		}
	}
}
