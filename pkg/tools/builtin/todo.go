package builtin

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/agentcore/agentcore/pkg/concurrent"
	"github.com/agentcore/agentcore/pkg/tools"
)

// TodoTool tracks the agent's own task list across one run.
type TodoTool struct {
	todos *concurrent.Map[string, Todo]
	seq   atomic.Int64
}

// Verify interface compliance
var (
	_ tools.ToolSet      = (*TodoTool)(nil)
	_ tools.Instructable = (*TodoTool)(nil)
)

type Todo struct {
	ID          string `json:"id" jsonschema:"ID of the todo item"`
	Description string `json:"description" jsonschema:"Description of the todo item"`
	Status      string `json:"status" jsonschema:"Status (pending, in-progress, completed)"`

	seq int64
}

type CreateTodoArgs struct {
	Description string `json:"description" jsonschema:"Description of the todo item"`
}

type CreateTodosArgs struct {
	Descriptions []string `json:"descriptions" jsonschema:"Descriptions of the todo items"`
}

type UpdateTodoArgs struct {
	ID     string `json:"id" jsonschema:"ID of the todo item"`
	Status string `json:"status" jsonschema:"New status (pending, in-progress, completed)"`
}

var todoStatuses = []string{"pending", "in-progress", "completed"}

func NewTodoTool() *TodoTool {
	return &TodoTool{
		todos: concurrent.NewMap[string, Todo](),
	}
}

func (t *TodoTool) Instructions() string {
	return `## Using the Todo Tools

IMPORTANT: You MUST use these tools to track the progress of your tasks:

1. Before starting any complex task:
	- Create a todo for each major step using create_todo
	- Break down complex steps into smaller todos

2. While working:
	- Use list_todos frequently to keep track of remaining work
	- Mark todos as "completed" when finished

3. Task Management Rules:
	- Never start a new task without creating a todo for it
	- Always check list_todos before responding to ensure no steps are missed
	- Update todo status to reflect current progress

This toolset is REQUIRED for maintaining task state and ensuring all steps are completed.`
}

func (t *TodoTool) add(description string) Todo {
	seq := t.seq.Add(1)
	todo := Todo{
		ID:          fmt.Sprintf("todo_%d", seq),
		Description: description,
		Status:      "pending",
		seq:         seq,
	}
	t.todos.Store(todo.ID, todo)
	return todo
}

func (t *TodoTool) createTodo(_ context.Context, args CreateTodoArgs) (*tools.ToolCallResult, error) {
	todo := t.add(args.Description)
	return tools.ResultSuccess(fmt.Sprintf("Created todo [%s]: %s", todo.ID, todo.Description)), nil
}

func (t *TodoTool) createTodos(_ context.Context, args CreateTodosArgs) (*tools.ToolCallResult, error) {
	ids := make([]string, len(args.Descriptions))
	for i, desc := range args.Descriptions {
		ids[i] = t.add(desc).ID
	}

	var output strings.Builder
	fmt.Fprintf(&output, "Created %d todos: ", len(ids))
	for i, id := range ids {
		if i > 0 {
			output.WriteString(", ")
		}
		fmt.Fprintf(&output, "[%s]", id)
	}

	return tools.ResultSuccess(output.String()), nil
}

func (t *TodoTool) updateTodo(_ context.Context, args UpdateTodoArgs) (*tools.ToolCallResult, error) {
	if !slices.Contains(todoStatuses, args.Status) {
		return tools.ResultError(fmt.Sprintf("invalid status %q, must be one of: %s", args.Status, strings.Join(todoStatuses, ", "))), nil
	}

	todo, exists := t.todos.Load(args.ID)
	if !exists {
		return tools.ResultError(fmt.Sprintf("todo [%s] not found", args.ID)), nil
	}

	todo.Status = args.Status
	t.todos.Store(args.ID, todo)

	return tools.ResultSuccess(fmt.Sprintf("Updated todo [%s] to status: [%s]", args.ID, args.Status)), nil
}

func (t *TodoTool) listTodos(_ context.Context, _ tools.ToolCall) (*tools.ToolCallResult, error) {
	var all []Todo
	t.todos.Range(func(_ string, todo Todo) bool {
		all = append(all, todo)
		return true
	})
	// Creation order, the map iterates randomly.
	slices.SortFunc(all, func(a, b Todo) int {
		return cmp.Compare(a.seq, b.seq)
	})

	var output strings.Builder
	output.WriteString("Current todos:\n")
	for _, todo := range all {
		fmt.Fprintf(&output, "- [%s] %s (Status: %s)\n", todo.ID, todo.Description, todo.Status)
	}

	return tools.ResultSuccess(limitOutput(output.String())), nil
}

func (t *TodoTool) Tools(context.Context) ([]tools.Tool, error) {
	return []tools.Tool{
		{
			Name:         "create_todo",
			Category:     "todo",
			Description:  "Create a new todo item with a description",
			Parameters:   tools.MustSchemaFor[CreateTodoArgs](),
			OutputSchema: tools.MustSchemaFor[string](),
			Handler:      tools.NewHandler(t.createTodo),
			Annotations: tools.ToolAnnotations{
				Title:        "Create TODO",
				ReadOnlyHint: true, // Technically not read-only but has practically no destructive side effects.
			},
		},
		{
			Name:         "create_todos",
			Category:     "todo",
			Description:  "Create a list of new todo items with descriptions",
			Parameters:   tools.MustSchemaFor[CreateTodosArgs](),
			OutputSchema: tools.MustSchemaFor[string](),
			Handler:      tools.NewHandler(t.createTodos),
			Annotations: tools.ToolAnnotations{
				Title:        "Create TODOs",
				ReadOnlyHint: true, // Technically not read-only but has practically no destructive side effects.
			},
		},
		{
			Name:         "update_todo",
			Category:     "todo",
			Description:  "Update the status of a todo item",
			Parameters:   tools.MustSchemaFor[UpdateTodoArgs](),
			OutputSchema: tools.MustSchemaFor[string](),
			Handler:      tools.NewHandler(t.updateTodo),
			Annotations: tools.ToolAnnotations{
				Title:        "Update TODO",
				ReadOnlyHint: true, // Technically not read-only but has practically no destructive side effects.
			},
		},
		{
			Name:         "list_todos",
			Category:     "todo",
			Description:  "List all current todos with their status",
			OutputSchema: tools.MustSchemaFor[string](),
			Handler:      t.listTodos,
			Annotations: tools.ToolAnnotations{
				Title:        "List TODOs",
				ReadOnlyHint: true,
			},
		},
	}, nil
}
