package recovery

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcore/agentcore/pkg/api"
	"github.com/agentcore/agentcore/pkg/chat"
)

func testRecord(chatSessionID string) *Record {
	return &Record{
		ChatSessionID: chatSessionID,
		UserID:        "user-1",
		AgentID:       "agent-1",
		AgentConfig: &api.AgentConfig{
			AgentType:    "assistant",
			SystemPrompt: "You are helpful.",
			Model:        api.ModelDescriptor{Provider: "openai", Name: "gpt-4o"},
			Tools:        []string{"echo"},
		},
		History: []chat.Message{
			{Role: chat.MessageRoleUser, Content: "hello"},
			{Role: chat.MessageRoleAssistant, Content: "hi"},
		},
		ArchivedAt: time.Now().UTC().Truncate(time.Second),
		Reason:     "idle",
	}
}

// storeContract exercises the behavior every store must share.
func storeContract(t *testing.T, store Store) {
	t.Helper()
	ctx := t.Context()

	t.Run("load missing", func(t *testing.T) {
		_, err := store.Load(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("save and load", func(t *testing.T) {
		record := testRecord("chat-1")
		require.NoError(t, store.Save(ctx, record))

		loaded, err := store.Load(ctx, "chat-1")
		require.NoError(t, err)
		assert.Equal(t, record.AgentID, loaded.AgentID)
		assert.Equal(t, record.UserID, loaded.UserID)
		assert.Equal(t, "idle", loaded.Reason)
		require.NotNil(t, loaded.AgentConfig)
		assert.Equal(t, "assistant", loaded.AgentConfig.AgentType)
		require.Len(t, loaded.History, 2)
		assert.Equal(t, "hello", loaded.History[0].Content)
	})

	t.Run("save overwrites", func(t *testing.T) {
		updated := testRecord("chat-1")
		updated.Reason = "explicit"
		require.NoError(t, store.Save(ctx, updated))

		loaded, err := store.Load(ctx, "chat-1")
		require.NoError(t, err)
		assert.Equal(t, "explicit", loaded.Reason)
	})

	t.Run("purge", func(t *testing.T) {
		require.NoError(t, store.Purge(ctx, "chat-1"))
		_, err := store.Load(ctx, "chat-1")
		assert.ErrorIs(t, err, ErrNotFound)

		// Purging an absent record is not an error.
		assert.NoError(t, store.Purge(ctx, "chat-1"))
	})

	t.Run("empty id", func(t *testing.T) {
		assert.ErrorIs(t, store.Save(ctx, &Record{}), ErrEmptyID)
		_, err := store.Load(ctx, "")
		assert.ErrorIs(t, err, ErrEmptyID)
		assert.ErrorIs(t, store.Purge(ctx, ""), ErrEmptyID)
	})
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })
	storeContract(t, store)
}

func TestSQLiteStore(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "recovery.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	storeContract(t, store)

	t.Run("records survive reopen", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "persist.db")
		first, err := NewSQLiteStore(path)
		require.NoError(t, err)
		require.NoError(t, first.Save(t.Context(), testRecord("chat-2")))
		require.NoError(t, first.Close())

		second, err := NewSQLiteStore(path)
		require.NoError(t, err)
		defer second.Close()
		loaded, err := second.Load(t.Context(), "chat-2")
		require.NoError(t, err)
		assert.Equal(t, "agent-1", loaded.AgentID)
	})
}

func TestRedisStoreKeys(t *testing.T) {
	assert.Equal(t, "recovery:chat-9", recordKey("chat-9"))
}

func TestNewFactory(t *testing.T) {
	t.Run("memory default", func(t *testing.T) {
		store, err := New(Config{})
		require.NoError(t, err)
		assert.IsType(t, &MemoryStore{}, store)
	})

	t.Run("sqlite", func(t *testing.T) {
		store, err := New(Config{Kind: "sqlite", Path: filepath.Join(t.TempDir(), "r.db")})
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &SQLiteStore{}, store)
	})

	t.Run("redis", func(t *testing.T) {
		store, err := New(Config{Kind: "redis", Addr: "localhost:6379"})
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &RedisStore{}, store)
	})

	t.Run("unknown kind", func(t *testing.T) {
		_, err := New(Config{Kind: "etcd"})
		assert.Error(t, err)
	})
}
