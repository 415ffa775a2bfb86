package telemetry

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Track records a structured event. Sending happens on a background
// goroutine so callers on the execution hot path never wait for the
// network.
func (tc *Client) Track(ctx context.Context, event StructuredEvent) {
	if tc == nil || !tc.enabled {
		return
	}

	properties, err := structToMap(event.ToStructuredProperties())
	if err != nil {
		tc.logger.Error("Failed to encode telemetry event", "error", err)
		return
	}

	payload := tc.createEvent(string(event.GetEventType()), properties)
	if tc.debugMode {
		tc.printEvent(&payload)
	}
	go tc.sendEvent(&payload)
}

// RecordSessionStart begins session tracking and returns the session id,
// generating one when the caller has none yet.
func (tc *Client) RecordSessionStart(ctx context.Context, sessionID, agentName string) string {
	if tc == nil || !tc.enabled {
		return sessionID
	}
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	tc.mu.Lock()
	tc.session = SessionState{
		ID:        sessionID,
		AgentName: agentName,
		StartTime: time.Now(),
	}
	tc.mu.Unlock()

	tc.Track(ctx, &SessionStartEvent{
		Action:    "start",
		SessionID: sessionID,
		AgentName: agentName,
	})
	return sessionID
}

// RecordSessionEnd emits the session summary. Repeated calls after the
// first are ignored.
func (tc *Client) RecordSessionEnd(ctx context.Context) {
	if tc == nil || !tc.enabled {
		return
	}

	tc.mu.Lock()
	if tc.session.ID == "" || tc.session.SessionEnded {
		tc.mu.Unlock()
		return
	}
	tc.session.SessionEnded = true
	session := tc.session
	tc.mu.Unlock()

	tc.Track(ctx, &SessionEndEvent{
		Action:       "end",
		SessionID:    session.ID,
		AgentName:    session.AgentName,
		Duration:     time.Since(session.StartTime).Milliseconds(),
		ToolCalls:    session.ToolCalls,
		InputTokens:  session.TokenUsage.InputTokens,
		OutputTokens: session.TokenUsage.OutputTokens,
		TotalTokens:  session.TokenUsage.InputTokens + session.TokenUsage.OutputTokens,
		Cost:         session.TokenUsage.Cost,
		ErrorCount:   session.ErrorCount,
		IsSuccess:    session.ErrorCount == 0,
		Error:        session.Error,
	})
}

// RecordToolCall tracks one tool invocation.
func (tc *Client) RecordToolCall(ctx context.Context, toolName, sessionID, agentName string, duration time.Duration, err error) {
	if tc == nil || !tc.enabled {
		return
	}

	tc.mu.Lock()
	tc.session.ToolCalls++
	tc.mu.Unlock()

	event := &ToolEvent{
		Action:    "call",
		ToolName:  toolName,
		SessionID: sessionID,
		AgentName: agentName,
		Duration:  duration.Milliseconds(),
		Success:   err == nil,
	}
	if err != nil {
		event.Error = err.Error()
	}
	tc.Track(ctx, event)
}

// RecordTokenUsage tracks token consumption for one model call.
func (tc *Client) RecordTokenUsage(ctx context.Context, model string, inputTokens, outputTokens int64, cost float64) {
	if tc == nil || !tc.enabled {
		return
	}

	tc.mu.Lock()
	tc.session.TokenUsage.InputTokens += inputTokens
	tc.session.TokenUsage.OutputTokens += outputTokens
	tc.session.TokenUsage.Cost += cost
	sessionID := tc.session.ID
	agentName := tc.session.AgentName
	tc.mu.Unlock()

	tc.Track(ctx, &TokenEvent{
		Action:       "usage",
		ModelName:    model,
		SessionID:    sessionID,
		AgentName:    agentName,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		TotalTokens:  inputTokens + outputTokens,
		Cost:         cost,
	})
}

// maxSessionErrors caps how many error strings one session accumulates.
const maxSessionErrors = 10

// RecordError counts an error against the running session.
func (tc *Client) RecordError(ctx context.Context, errMsg string) {
	if tc == nil || !tc.enabled {
		return
	}

	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.session.ErrorCount++
	if len(tc.session.Error) < maxSessionErrors {
		tc.session.Error = append(tc.session.Error, errMsg)
	}
}
