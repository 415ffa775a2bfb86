package builtin

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcore/agentcore/pkg/tools"
)

func TestClockTool(t *testing.T) {
	tool := NewClockTool()
	tool.now = func() time.Time {
		return time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	}

	tls, err := tool.Tools(t.Context())
	require.NoError(t, err)
	require.Len(t, tls, 1)

	clock := tls[0]
	assert.Equal(t, "clock", clock.Name)
	assert.True(t, clock.Annotations.ReadOnlyHint)

	call := func(t *testing.T, args map[string]any) *tools.ToolCallResult {
		t.Helper()
		result, err := clock.Handler(t.Context(), toolCall(t, args))
		require.NoError(t, err)
		return result
	}

	t.Run("defaults to UTC rfc3339", func(t *testing.T) {
		result := call(t, map[string]any{})
		assert.Equal(t, "2025-06-15T10:30:00Z", result.Output)
	})

	t.Run("unix format", func(t *testing.T) {
		result := call(t, map[string]any{"format": "unix"})
		assert.Equal(t, "1749983400", result.Output)
	})

	t.Run("date format", func(t *testing.T) {
		result := call(t, map[string]any{"format": "date"})
		assert.Equal(t, "2025-06-15", result.Output)
	})

	t.Run("timezone", func(t *testing.T) {
		result := call(t, map[string]any{"timezone": "America/New_York"})
		assert.Equal(t, "2025-06-15T06:30:00-04:00", result.Output)
	})

	t.Run("unknown timezone", func(t *testing.T) {
		result := call(t, map[string]any{"timezone": "Mars/Olympus"})
		assert.True(t, result.IsError)
		assert.Contains(t, result.Output, "unknown timezone")
	})

	t.Run("unknown format", func(t *testing.T) {
		result := call(t, map[string]any{"format": "stardate"})
		assert.True(t, result.IsError)
		assert.Contains(t, result.Output, "unknown format")
	})
}
