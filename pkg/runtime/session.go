package runtime

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agentcore/agentcore/pkg/chat"
)

// FrameworkSession holds one conversation transcript owned by a runner.
// The user id lives here, never on the runner, so concurrent conversations
// on a shared runner keep their identities apart.
type FrameworkSession struct {
	ID        string
	UserID    string
	CreatedAt time.Time

	mu       sync.Mutex
	messages []chat.Message
}

func newFrameworkSession(userID string) *FrameworkSession {
	return &FrameworkSession{
		ID:        uuid.New().String(),
		UserID:    userID,
		CreatedAt: time.Now(),
	}
}

// History returns a deep copy of the transcript.
func (s *FrameworkSession) History() []chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	history := make([]chat.Message, len(s.messages))
	for i, msg := range s.messages {
		history[i] = msg.Clone()
	}
	return history
}

// Append adds messages to the transcript.
func (s *FrameworkSession) Append(messages ...chat.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, messages...)
}

// MessageCount returns the number of transcript entries.
func (s *FrameworkSession) MessageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}
