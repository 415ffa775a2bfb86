package builtin

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcore/agentcore/pkg/tools"
)

func toolCall(t *testing.T, args map[string]any) tools.ToolCall {
	t.Helper()

	argsJSON, err := json.Marshal(args)
	require.NoError(t, err)

	return rawToolCall(string(argsJSON))
}

func rawToolCall(args string) tools.ToolCall {
	return tools.ToolCall{
		Function: tools.FunctionCall{
			Arguments: args,
		},
	}
}

func TestLimitOutput(t *testing.T) {
	assert.Equal(t, "short", limitOutput("short"))

	long := strings.Repeat("x", maxOutputSize+1)
	limited := limitOutput(long)
	assert.Contains(t, limited, "[Output truncated")
	assert.Less(t, len(limited), len(long)+100)
}
