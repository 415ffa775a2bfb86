package recovery

import (
	"context"

	"github.com/agentcore/agentcore/pkg/concurrent"
)

// MemoryStore keeps records in process memory. Suitable for tests and
// single-process deployments that accept losing recovery state on restart.
type MemoryStore struct {
	records *concurrent.Map[string, *Record]
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: concurrent.NewMap[string, *Record]()}
}

func (s *MemoryStore) Save(_ context.Context, record *Record) error {
	if record.ChatSessionID == "" {
		return ErrEmptyID
	}
	s.records.Store(record.ChatSessionID, record)
	return nil
}

func (s *MemoryStore) Load(_ context.Context, chatSessionID string) (*Record, error) {
	if chatSessionID == "" {
		return nil, ErrEmptyID
	}
	record, ok := s.records.Load(chatSessionID)
	if !ok {
		return nil, ErrNotFound
	}
	return record, nil
}

func (s *MemoryStore) Purge(_ context.Context, chatSessionID string) error {
	if chatSessionID == "" {
		return ErrEmptyID
	}
	s.records.Delete(chatSessionID)
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
