// Package builtin holds the toolsets that ship with the server itself:
// a think scratchpad, a todo list, an HTTP fetch tool and a clock. They
// are registered under the "builtin" namespace and need no external
// process or transport.
package builtin

import (
	"context"
	"strings"

	"github.com/agentcore/agentcore/pkg/tools"
)

// Toolset bundles every builtin tool behind one namespace registration.
type Toolset struct {
	sets []tools.ToolSet
}

var _ tools.ToolSet = (*Toolset)(nil)

func NewToolset() *Toolset {
	return &Toolset{sets: []tools.ToolSet{
		NewThinkTool(),
		NewTodoTool(),
		NewFetchTool(),
		NewClockTool(),
	}}
}

func (t *Toolset) Tools(ctx context.Context) ([]tools.Tool, error) {
	var all []tools.Tool
	for _, set := range t.sets {
		setTools, err := set.Tools(ctx)
		if err != nil {
			return nil, err
		}
		all = append(all, setTools...)
	}
	return all, nil
}

func (t *Toolset) Instructions() string {
	var parts []string
	for _, set := range t.sets {
		if instructions := tools.GetInstructions(set); instructions != "" {
			parts = append(parts, instructions)
		}
	}
	return strings.Join(parts, "\n\n")
}

const maxOutputSize = 30000

func limitOutput(output string) string {
	if len(output) > maxOutputSize {
		return output[:maxOutputSize] + "\n\n[Output truncated: exceeded 30,000 character limit]"
	}
	return output
}
