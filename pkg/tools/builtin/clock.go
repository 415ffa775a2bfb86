package builtin

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/agentcore/agentcore/pkg/tools"
)

const ToolNameClock = "clock"

// ClockTool tells the model what time it is. Models have no reliable
// sense of "now", so anything date-sensitive should go through this.
type ClockTool struct {
	now func() time.Time
}

// Verify interface compliance
var (
	_ tools.ToolSet      = (*ClockTool)(nil)
	_ tools.Instructable = (*ClockTool)(nil)
)

type ClockArgs struct {
	Timezone string `json:"timezone,omitempty" jsonschema:"IANA timezone name, e.g. Europe/Paris. Defaults to UTC."`
	Format   string `json:"format,omitempty" jsonschema:"One of rfc3339, unix, kitchen, date. Defaults to rfc3339."`
}

func NewClockTool() *ClockTool {
	return &ClockTool{now: time.Now}
}

func (c *ClockTool) callTool(_ context.Context, args ClockArgs) (*tools.ToolCallResult, error) {
	loc := time.UTC
	if args.Timezone != "" {
		l, err := time.LoadLocation(args.Timezone)
		if err != nil {
			return tools.ResultError(fmt.Sprintf("unknown timezone %q", args.Timezone)), nil
		}
		loc = l
	}

	now := c.now().In(loc)

	switch args.Format {
	case "", "rfc3339":
		return tools.ResultSuccess(now.Format(time.RFC3339)), nil
	case "unix":
		return tools.ResultSuccess(strconv.FormatInt(now.Unix(), 10)), nil
	case "kitchen":
		return tools.ResultSuccess(now.Format(time.Kitchen)), nil
	case "date":
		return tools.ResultSuccess(now.Format(time.DateOnly)), nil
	default:
		return tools.ResultError(fmt.Sprintf("unknown format %q, must be one of: rfc3339, unix, kitchen, date", args.Format)), nil
	}
}

func (c *ClockTool) Instructions() string {
	return `## Using the clock tool

Use the clock tool whenever the current date or time matters: deadlines,
"today"/"tomorrow" questions, relative dates, or timestamping output. Do
not guess the current date.`
}

func (c *ClockTool) Tools(context.Context) ([]tools.Tool, error) {
	return []tools.Tool{
		{
			Name:         ToolNameClock,
			Category:     "clock",
			Description:  "Get the current date and time, optionally in a specific timezone and format.",
			Parameters:   tools.MustSchemaFor[ClockArgs](),
			OutputSchema: tools.MustSchemaFor[string](),
			Handler:      tools.NewHandler(c.callTool),
			Annotations: tools.ToolAnnotations{
				ReadOnlyHint: true,
				Title:        "Clock",
			},
		},
	}, nil
}
