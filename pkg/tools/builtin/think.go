package builtin

import (
	"context"
	"strings"

	"github.com/agentcore/agentcore/pkg/concurrent"
	"github.com/agentcore/agentcore/pkg/tools"
)

const ToolNameThink = "think"

// ThinkTool is an append-only scratchpad. Each instance keeps its own
// log, so give every agent its own tool rather than sharing one.
type ThinkTool struct {
	thoughts *concurrent.Slice[string]
}

// Verify interface compliance
var (
	_ tools.ToolSet      = (*ThinkTool)(nil)
	_ tools.Instructable = (*ThinkTool)(nil)
)

type ThinkArgs struct {
	Thought string `json:"thought" jsonschema:"The thought to think about"`
}

func NewThinkTool() *ThinkTool {
	return &ThinkTool{thoughts: concurrent.NewSlice[string]()}
}

func (t *ThinkTool) callTool(_ context.Context, args ThinkArgs) (*tools.ToolCallResult, error) {
	t.thoughts.Append(args.Thought)
	return tools.ResultSuccess(limitOutput("Thoughts:\n" + strings.Join(t.thoughts.All(), "\n"))), nil
}

func (t *ThinkTool) Instructions() string {
	return `## Using the think tool

Before taking any action or responding to the user after receiving tool results, use the think tool as a scratchpad to:
- List the specific rules that apply to the current request
- Check if all required information is collected
- Verify that the planned action complies with all policies
- Iterate over tool results for correctness

## Rules
- Use the think tool generously to jot down thoughts and ideas.`
}

func (t *ThinkTool) Tools(context.Context) ([]tools.Tool, error) {
	return []tools.Tool{
		{
			Name:         ToolNameThink,
			Category:     "think",
			Description:  "Use the tool to think about something. It will not obtain new information or change the database, but just append the thought to the log. Use it when complex reasoning or some cache memory is needed.",
			Parameters:   tools.MustSchemaFor[ThinkArgs](),
			OutputSchema: tools.MustSchemaFor[string](),
			Handler:      tools.NewHandler(t.callTool),
			Annotations: tools.ToolAnnotations{
				ReadOnlyHint: true,
				Title:        "Think",
			},
		},
	}, nil
}
