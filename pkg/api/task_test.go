package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskRequestValidate(t *testing.T) {
	t.Run("fills task id and type", func(t *testing.T) {
		req := &TaskRequest{Messages: []UniversalMessage{UserMessage("hi")}}

		require.NoError(t, req.Validate())
		assert.NotEmpty(t, req.TaskID)
		assert.Equal(t, "chat", req.TaskType)
	})

	t.Run("chat without messages fails", func(t *testing.T) {
		req := &TaskRequest{}

		err := req.Validate()
		require.Error(t, err)
		assert.Equal(t, CodeRequestValidation, CodeOf(err))
	})

	t.Run("unknown execution mode fails", func(t *testing.T) {
		req := &TaskRequest{
			Messages:         []UniversalMessage{UserMessage("hi")},
			ExecutionContext: &ExecutionContext{ExecutionMode: "batch"},
		}

		err := req.Validate()
		require.Error(t, err)
		assert.Equal(t, CodeRequestValidation, CodeOf(err))
	})
}

func TestTaskRequestChatSessionID(t *testing.T) {
	req := &TaskRequest{SessionID: "top"}
	assert.Equal(t, "top", req.ChatSessionID())

	req = &TaskRequest{SessionContext: &SessionContext{ChatSessionID: "nested"}}
	assert.Equal(t, "nested", req.ChatSessionID())

	req = &TaskRequest{SessionID: "top", SessionContext: &SessionContext{ChatSessionID: "nested"}}
	assert.Equal(t, "top", req.ChatSessionID())
}

func TestTaskRequestLive(t *testing.T) {
	assert.False(t, (&TaskRequest{}).Live())
	assert.True(t, (&TaskRequest{ExecutionContext: &ExecutionContext{ExecutionMode: ExecutionModeLive}}).Live())
	assert.True(t, (&TaskRequest{Metadata: map[string]any{"stream_mode": true}}).Live())
	assert.False(t, (&TaskRequest{Metadata: map[string]any{"stream_mode": false}}).Live())
}

func TestTaskRequestToolHeaders(t *testing.T) {
	req := &TaskRequest{Metadata: map[string]any{
		"tool_headers": map[string]any{"Authorization": "Bearer x", "count": 3},
	}}

	headers := req.ToolHeaders()
	assert.Equal(t, "Bearer x", headers["Authorization"])
	assert.NotContains(t, headers, "count")

	assert.Nil(t, (&TaskRequest{}).ToolHeaders())
}

func TestPermissionsAllows(t *testing.T) {
	var nilPerms *Permissions
	assert.True(t, nilPerms.Allows("builtin.think", "think"))

	perms := &Permissions{DeniedTools: []string{"shell"}}
	assert.False(t, perms.Allows("builtin.shell", "shell"))
	assert.True(t, perms.Allows("builtin.think", "think"))

	perms = &Permissions{AllowedTools: []string{"builtin.think"}}
	assert.True(t, perms.Allows("builtin.think", "think"))
	assert.False(t, perms.Allows("research.search", "search"))

	// Deny wins over allow.
	perms = &Permissions{AllowedTools: []string{"shell"}, DeniedTools: []string{"shell"}}
	assert.False(t, perms.Allows("builtin.shell", "shell"))
}

func TestTokenUsageAdd(t *testing.T) {
	usage := TokenUsage{InputTokens: 10, OutputTokens: 5}
	usage.Add(TokenUsage{InputTokens: 3, OutputTokens: 7})

	assert.Equal(t, int64(13), usage.InputTokens)
	assert.Equal(t, int64(12), usage.OutputTokens)
}
