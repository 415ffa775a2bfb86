package recovery

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/agentcore/agentcore/pkg/sqliteutil"
)

// SQLiteStore persists records in a single-file database. One row per chat
// session; saves upsert.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sqliteutil.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening recovery store: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS recovery_records (
			chat_session_id TEXT PRIMARY KEY,
			user_id         TEXT NOT NULL DEFAULT '',
			agent_id        TEXT NOT NULL,
			payload         TEXT NOT NULL,
			archived_at     TIMESTAMP NOT NULL,
			reason          TEXT NOT NULL DEFAULT ''
		)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating recovery schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Save(ctx context.Context, record *Record) error {
	if record.ChatSessionID == "" {
		return ErrEmptyID
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshaling recovery record: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO recovery_records (chat_session_id, user_id, agent_id, payload, archived_at, reason)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(chat_session_id) DO UPDATE SET
			user_id = excluded.user_id,
			agent_id = excluded.agent_id,
			payload = excluded.payload,
			archived_at = excluded.archived_at,
			reason = excluded.reason`,
		record.ChatSessionID, record.UserID, record.AgentID,
		string(payload), record.ArchivedAt.UTC().Format(time.RFC3339Nano), record.Reason)
	if err != nil {
		return fmt.Errorf("saving recovery record: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) Load(ctx context.Context, chatSessionID string) (*Record, error) {
	if chatSessionID == "" {
		return nil, ErrEmptyID
	}

	var payload string
	err := s.db.QueryRowContext(ctx,
		"SELECT payload FROM recovery_records WHERE chat_session_id = ?", chatSessionID).
		Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading recovery record: %w", err)
	}

	var record Record
	if err := json.Unmarshal([]byte(payload), &record); err != nil {
		return nil, fmt.Errorf("unmarshaling recovery record: %w", err)
	}
	return &record, nil
}

func (s *SQLiteStore) Purge(ctx context.Context, chatSessionID string) error {
	if chatSessionID == "" {
		return ErrEmptyID
	}
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM recovery_records WHERE chat_session_id = ?", chatSessionID)
	if err != nil {
		return fmt.Errorf("purging recovery record: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
