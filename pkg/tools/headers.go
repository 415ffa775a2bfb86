package tools

import (
	"context"
	"maps"
)

// headerContextKey is a type for context keys to avoid collisions
type headerContextKey string

const callHeadersKey headerContextKey = "tool_call_headers"

// WithHeaders returns a context carrying HTTP headers that remote toolsets
// attach to outbound requests for the duration of a call.
func WithHeaders(ctx context.Context, headers map[string]string) context.Context {
	if len(headers) == 0 {
		return ctx
	}
	return context.WithValue(ctx, callHeadersKey, headers)
}

// HeadersFromContext retrieves call-scoped headers from the context, or nil.
func HeadersFromContext(ctx context.Context) map[string]string {
	if headers, ok := ctx.Value(callHeadersKey).(map[string]string); ok {
		return headers
	}
	return nil
}

// HeaderSources collects headers from every layer that can contribute them.
// Merge order is fixed: static toolset headers first, then headers derived
// from the execution identity, then task-level metadata, then tool-level
// metadata, and finally per-call headers. Later layers win on conflict.
type HeaderSources struct {
	Static  map[string]string
	Derived map[string]string
	Task    map[string]string
	Tool    map[string]string
	Call    map[string]string
}

// Merge flattens the sources into a single header map.
func (s HeaderSources) Merge() map[string]string {
	merged := make(map[string]string)
	for _, layer := range []map[string]string{s.Static, s.Derived, s.Task, s.Tool, s.Call} {
		maps.Copy(merged, layer)
	}
	return merged
}

// DerivedHeaders builds the identity headers forwarded to remote tool
// backends. Empty values are omitted.
func DerivedHeaders(userID, sessionID, executionID string) map[string]string {
	headers := make(map[string]string, 3)
	if userID != "" {
		headers["X-User-ID"] = userID
	}
	if sessionID != "" {
		headers["X-Session-ID"] = sessionID
	}
	if executionID != "" {
		headers["X-Execution-ID"] = executionID
	}
	return headers
}
