// Package chatsession coordinates business-level chat sessions with the
// framework resources serving them: which agent is active, which framework
// session holds the transcript, and how cleared sessions come back.
package chatsession

import (
	"errors"
	"time"
)

// ErrSessionCleared marks a chat session whose state was archived; the
// caller may recover it and retry.
var ErrSessionCleared = errors.New("chat session has been cleared")

type State string

const (
	StateActive          State = "ACTIVE"
	StateCleared         State = "CLEARED"
	StatePendingRecovery State = "PENDING_RECOVERY"
)

// ChatSession is the business-level session. At most one active framework
// session exists per chat session at any moment. Fields are mutated only
// while holding the per-session queue slot.
type ChatSession struct {
	ID                       string
	UserID                   string
	ActiveAgentID            string
	ActiveFrameworkSessionID string
	ActiveRunnerID           string
	CreatedAt                time.Time
	LastActivity             time.Time
	LastSwitchAt             time.Time
	State                    State
}

// CoordinationResult tells the caller which framework handles serve the
// task after coordination.
type CoordinationResult struct {
	AgentID            string
	FrameworkSessionID string
	RunnerID           string
	SwitchOccurred     bool
	PreviousAgentID    string
	Recovered          bool
}
