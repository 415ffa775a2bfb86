package api

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUniversalMessageStringContent(t *testing.T) {
	raw := `{"role":"user","content":"hello"}`

	var msg UniversalMessage
	require.NoError(t, json.Unmarshal([]byte(raw), &msg))

	assert.Equal(t, RoleUser, msg.Role)
	assert.Equal(t, "hello", msg.Content)
	assert.Empty(t, msg.Parts)

	out, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.JSONEq(t, raw, string(out))
}

func TestUniversalMessagePartsContent(t *testing.T) {
	raw := `{"role":"user","content":[{"type":"text","text":"look at "},{"type":"image","image_url":"https://example.com/a.png","mime_type":"image/png"}]}`

	var msg UniversalMessage
	require.NoError(t, json.Unmarshal([]byte(raw), &msg))

	require.Len(t, msg.Parts, 2)
	assert.Equal(t, ContentPartTypeText, msg.Parts[0].Type)
	assert.Equal(t, ContentPartTypeImage, msg.Parts[1].Type)
	assert.Equal(t, "https://example.com/a.png", msg.Parts[1].ImageURL)
	assert.Equal(t, "look at ", msg.Text())
}

func TestUniversalMessageNullContent(t *testing.T) {
	var msg UniversalMessage
	require.NoError(t, json.Unmarshal([]byte(`{"role":"assistant","content":null}`), &msg))

	assert.Equal(t, RoleAssistant, msg.Role)
	assert.Empty(t, msg.Content)
}

func TestToolSelectorUnion(t *testing.T) {
	t.Run("bare name", func(t *testing.T) {
		var sel ToolSelector
		require.NoError(t, json.Unmarshal([]byte(`"search"`), &sel))
		assert.Equal(t, "search", sel.Name)
		assert.Nil(t, sel.Tool)
	})

	t.Run("inline descriptor", func(t *testing.T) {
		var sel ToolSelector
		require.NoError(t, json.Unmarshal([]byte(`{"name":"search","description":"web search"}`), &sel))
		assert.Equal(t, "search", sel.Name)
		require.NotNil(t, sel.Tool)
		assert.Equal(t, "web search", sel.Tool.Description)
	})
}

func TestModelDescriptorUnion(t *testing.T) {
	var cfg AgentConfig
	require.NoError(t, json.Unmarshal([]byte(`{"agent_type":"general","model":"m1"}`), &cfg))
	assert.Equal(t, "m1", cfg.Model.Name)

	require.NoError(t, json.Unmarshal([]byte(`{"agent_type":"general","model":{"provider":"openai","name":"gpt-4o"}}`), &cfg))
	assert.Equal(t, "openai", cfg.Model.Provider)
	assert.Equal(t, "gpt-4o", cfg.Model.Name)
}
