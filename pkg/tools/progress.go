package tools

import "context"

// ProgressReporter receives intermediate output from a running tool.
type ProgressReporter func(content string)

type progressContextKey string

const progressReporterKey progressContextKey = "tool_progress_reporter"

// WithProgress returns a context carrying a progress reporter for the
// duration of one tool call.
func WithProgress(ctx context.Context, reporter ProgressReporter) context.Context {
	if reporter == nil {
		return ctx
	}
	return context.WithValue(ctx, progressReporterKey, reporter)
}

// ReportProgress forwards intermediate tool output to the caller. It is a
// no-op when the call was not started with a reporter.
func ReportProgress(ctx context.Context, content string) {
	if reporter, ok := ctx.Value(progressReporterKey).(ProgressReporter); ok {
		reporter(content)
	}
}
