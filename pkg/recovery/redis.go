package recovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore persists records as JSON values under "recovery:{id}" keys,
// for deployments where recovery must survive process restarts and be
// shared between replicas.
type RedisStore struct {
	client *redis.Client
	cfg    Config
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(cfg Config) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &RedisStore{client: client, cfg: cfg}
}

func recordKey(chatSessionID string) string {
	return "recovery:" + chatSessionID
}

func (s *RedisStore) Save(ctx context.Context, record *Record) error {
	if record.ChatSessionID == "" {
		return ErrEmptyID
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshaling recovery record: %w", err)
	}
	if err := s.client.Set(ctx, recordKey(record.ChatSessionID), payload, s.cfg.TTL).Err(); err != nil {
		return fmt.Errorf("saving recovery record: %w", err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, chatSessionID string) (*Record, error) {
	if chatSessionID == "" {
		return nil, ErrEmptyID
	}

	payload, err := s.client.Get(ctx, recordKey(chatSessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading recovery record: %w", err)
	}

	var record Record
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, fmt.Errorf("unmarshaling recovery record: %w", err)
	}
	return &record, nil
}

func (s *RedisStore) Purge(ctx context.Context, chatSessionID string) error {
	if chatSessionID == "" {
		return ErrEmptyID
	}
	if err := s.client.Del(ctx, recordKey(chatSessionID)).Err(); err != nil {
		return fmt.Errorf("purging recovery record: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
