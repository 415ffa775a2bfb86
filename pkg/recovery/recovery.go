// Package recovery persists cleared chat sessions so a later request can
// rehydrate them. Three stores back the same interface: in-memory, SQLite,
// and Redis.
package recovery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/agentcore/agentcore/pkg/api"
	"github.com/agentcore/agentcore/pkg/chat"
)

var (
	ErrEmptyID  = errors.New("chat session ID cannot be empty")
	ErrNotFound = errors.New("recovery record not found")
)

// Record is the snapshot taken when a chat session is cleared.
type Record struct {
	ChatSessionID string           `json:"chat_session_id"`
	UserID        string           `json:"user_id,omitempty"`
	AgentID       string           `json:"agent_id"`
	AgentConfig   *api.AgentConfig `json:"agent_config"`
	History       []chat.Message   `json:"history,omitempty"`
	ArchivedAt    time.Time        `json:"archived_at"`
	Reason        string           `json:"reason,omitempty"`
}

// Store persists recovery records keyed by chat session id. Load returns
// ErrNotFound for unknown ids.
type Store interface {
	Save(ctx context.Context, record *Record) error
	Load(ctx context.Context, chatSessionID string) (*Record, error)
	Purge(ctx context.Context, chatSessionID string) error
	Close() error
}

// Config selects and parameterizes a store.
type Config struct {
	// Kind is one of "memory", "sqlite", "redis". Empty defaults to memory.
	Kind string
	// Path is the database file for the sqlite store.
	Path string
	// Addr and Password configure the redis store.
	Addr     string
	Password string
	DB       int
	// TTL expires redis records; zero keeps them forever.
	TTL time.Duration
}

// New builds the store named by the config.
func New(cfg Config) (Store, error) {
	switch cfg.Kind {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return NewSQLiteStore(cfg.Path)
	case "redis":
		return NewRedisStore(cfg), nil
	default:
		return nil, fmt.Errorf("unknown recovery store kind %q", cfg.Kind)
	}
}
