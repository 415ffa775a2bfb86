// Package agent tracks live agents: frozen configurations with an identity
// and activity timestamps. Runners and sessions hang off agents managed
// here.
package agent

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agentcore/agentcore/pkg/api"
)

// Agent is one live agent. The configuration is frozen at creation; only
// the activity timestamp moves.
type Agent struct {
	ID           string
	Config       *api.AgentConfig
	CreatedAt    time.Time
	LastActivity time.Time
}

func (a *Agent) clone() *Agent {
	out := *a
	out.Config = a.Config.Clone()
	return &out
}

// CleanupNotifier is called after an agent is removed so dependent
// resources (runners, mappings) can be released.
type CleanupNotifier func(ctx context.Context, agentID string)

// Manager owns the agent table. All methods are safe for concurrent use.
type Manager struct {
	mu     sync.RWMutex
	agents map[string]*Agent
	// reuse maps "(agent_type, user_id, fingerprint)" to an existing agent
	// id for idempotent creation.
	reuse  map[string]string
	notify CleanupNotifier
	now    func() time.Time
}

type ManagerOption func(*Manager)

// WithCleanupNotifier installs the callback invoked after agent removal.
func WithCleanupNotifier(notify CleanupNotifier) ManagerOption {
	return func(m *Manager) {
		m.notify = notify
	}
}

// WithNow overrides the clock, for tests.
func WithNow(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		agents: make(map[string]*Agent),
		reuse:  make(map[string]string),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateOptions shape one CreateAgent call.
type CreateOptions struct {
	// UserID scopes idempotent reuse to one user.
	UserID string
	// Reuse makes creation idempotent by (agent_type, user_id, fingerprint).
	Reuse bool
}

// CreateAgent registers a new agent for the given configuration. With
// opts.Reuse set, an existing agent with the same type, user, and config
// fingerprint is returned instead of minting a duplicate.
func (m *Manager) CreateAgent(_ context.Context, config *api.AgentConfig, opts CreateOptions) (*Agent, error) {
	if config == nil {
		return nil, api.NewError(api.CodeRequestValidation, "agent config is required")
	}

	reuseKey := ""
	if opts.Reuse {
		reuseKey = strings.Join([]string{config.AgentType, opts.UserID, config.Fingerprint()}, "|")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if reuseKey != "" {
		if id, ok := m.reuse[reuseKey]; ok {
			if existing, ok := m.agents[id]; ok {
				existing.LastActivity = m.now()
				slog.Debug("Reusing agent", "agent_id", id, "agent_type", config.AgentType)
				return existing.clone(), nil
			}
			delete(m.reuse, reuseKey)
		}
	}

	now := m.now()
	agent := &Agent{
		ID:           uuid.New().String(),
		Config:       config.Clone(),
		CreatedAt:    now,
		LastActivity: now,
	}
	m.agents[agent.ID] = agent
	if reuseKey != "" {
		m.reuse[reuseKey] = agent.ID
	}
	slog.Debug("Agent created", "agent_id", agent.ID, "agent_type", config.AgentType)
	return agent.clone(), nil
}

// GetAgent returns the agent or agent.not_found.
func (m *Manager) GetAgent(agentID string) (*Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	agent, ok := m.agents[agentID]
	if !ok {
		return nil, api.Errorf(api.CodeAgentNotFound, "agent %q not found", agentID).
			WithDetail("agent_id", agentID)
	}
	return agent.clone(), nil
}

// EnsureAgent re-registers an agent under a known id, used when recovering
// a session whose agent has been swept. Existing agents are returned as-is.
func (m *Manager) EnsureAgent(_ context.Context, agentID string, config *api.AgentConfig) (*Agent, error) {
	if agentID == "" {
		return nil, api.NewError(api.CodeRequestValidation, "agent id is required")
	}
	if config == nil {
		return nil, api.NewError(api.CodeRequestValidation, "agent config is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.agents[agentID]; ok {
		existing.LastActivity = m.now()
		return existing.clone(), nil
	}

	now := m.now()
	agent := &Agent{
		ID:           agentID,
		Config:       config.Clone(),
		CreatedAt:    now,
		LastActivity: now,
	}
	m.agents[agentID] = agent
	slog.Debug("Agent restored", "agent_id", agentID, "agent_type", config.AgentType)
	return agent.clone(), nil
}

// Touch refreshes the agent's activity timestamp.
func (m *Manager) Touch(agentID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if agent, ok := m.agents[agentID]; ok {
		agent.LastActivity = m.now()
	}
}

// CleanupAgent removes the agent and notifies dependents. Removing an
// unknown agent is a no-op.
func (m *Manager) CleanupAgent(ctx context.Context, agentID string) {
	m.mu.Lock()
	_, existed := m.agents[agentID]
	delete(m.agents, agentID)
	for key, id := range m.reuse {
		if id == agentID {
			delete(m.reuse, key)
		}
	}
	m.mu.Unlock()

	if !existed {
		return
	}
	slog.Debug("Agent cleaned up", "agent_id", agentID)
	if m.notify != nil {
		m.notify(ctx, agentID)
	}
}

// CleanupExpiredAgents removes agents idle longer than the threshold and
// returns the ids removed.
func (m *Manager) CleanupExpiredAgents(ctx context.Context, threshold time.Duration) []string {
	cutoff := m.now().Add(-threshold)

	m.mu.RLock()
	var expired []string
	for id, agent := range m.agents {
		if agent.LastActivity.Before(cutoff) {
			expired = append(expired, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range expired {
		m.CleanupAgent(ctx, id)
	}
	if len(expired) > 0 {
		slog.Info("Expired agents cleaned up", "count", len(expired))
	}
	return expired
}

// Count returns the number of live agents.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.agents)
}
