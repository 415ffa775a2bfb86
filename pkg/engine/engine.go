// Package engine is the outermost execution surface: it validates and
// routes task requests, delegates to the adapter, and keys the live
// control plane by chat session id.
package engine

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/agentcore/agentcore/pkg/adapter"
	"github.com/agentcore/agentcore/pkg/agent"
	"github.com/agentcore/agentcore/pkg/api"
	"github.com/agentcore/agentcore/pkg/approval"
	"github.com/agentcore/agentcore/pkg/chatsession"
	"github.com/agentcore/agentcore/pkg/stream"
)

// RouteMode classifies how a request selects its agent and session.
type RouteMode string

const (
	// RouteContinue resumes an existing framework session.
	RouteContinue RouteMode = "continue_session"
	// RouteNewSession opens a fresh session on an existing agent.
	RouteNewSession RouteMode = "new_session_on_existing_agent"
	// RouteCreate provisions an agent from the embedded config first.
	RouteCreate RouteMode = "create_agent_and_session"
	// RouteRecover rehydrates a previously cleared chat session.
	RouteRecover RouteMode = "recover"
	// RouteInvalid means the request names no executable target.
	RouteInvalid RouteMode = "invalid"
)

// Engine routes requests and tracks live sessions.
type Engine struct {
	adapter  *adapter.Adapter
	agents   *agent.Manager
	sessions *chatsession.Manager

	mu   sync.Mutex
	live map[string]*stream.Session
}

func New(taskAdapter *adapter.Adapter, agents *agent.Manager, sessions *chatsession.Manager) *Engine {
	return &Engine{
		adapter:  taskAdapter,
		agents:   agents,
		sessions: sessions,
		live:     make(map[string]*stream.Session),
	}
}

// Classify resolves the routing mode by field presence, in priority order.
func (e *Engine) Classify(ctx context.Context, req *api.TaskRequest) RouteMode {
	chatSessionID := req.ChatSessionID()
	switch {
	case req.AgentID != "" && chatSessionID != "":
		return RouteContinue
	case req.AgentID != "":
		return RouteNewSession
	case req.AgentConfig != nil:
		return RouteCreate
	case chatSessionID != "" && e.sessions.WasCleared(ctx, chatSessionID):
		return RouteRecover
	default:
		return RouteInvalid
	}
}

// route fills in req.AgentID according to the routing mode, creating or
// recovering the agent when the mode calls for it.
func (e *Engine) route(ctx context.Context, req *api.TaskRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	switch mode := e.Classify(ctx, req); mode {
	case RouteContinue, RouteNewSession:
		return nil

	case RouteCreate:
		created, err := e.agents.CreateAgent(ctx, req.AgentConfig, agent.CreateOptions{
			UserID: req.UserContext.UserID,
			Reuse:  reuseRequested(req),
		})
		if err != nil {
			return err
		}
		req.AgentID = created.ID
		return nil

	case RouteRecover:
		agentID, err := e.sessions.Recover(ctx, req.ChatSessionID())
		if err != nil {
			return err
		}
		req.AgentID = agentID
		slog.Info("Chat session routed through recovery",
			"chat_session_id", req.ChatSessionID(), "agent_id", agentID)
		return nil

	default:
		return api.NewError(api.CodeRequestValidation,
			"request names no agent: provide agent_id, agent_config, or a recoverable session_id")
	}
}

// ExecuteTask routes and runs one synchronous task. Failures are embedded
// in the result.
func (e *Engine) ExecuteTask(ctx context.Context, req *api.TaskRequest) *api.TaskResult {
	if err := e.route(ctx, req); err != nil {
		return &api.TaskResult{
			TaskID:    req.TaskID,
			Status:    api.StatusError,
			AgentID:   req.AgentID,
			SessionID: req.ChatSessionID(),
			Error:     api.AsError(err, api.CodeRequestValidation),
		}
	}
	return e.adapter.ExecuteTask(ctx, req)
}

// ExecuteTaskLive routes and starts one streamed task, registering its
// live session for the control plane.
func (e *Engine) ExecuteTaskLive(ctx context.Context, req *api.TaskRequest) (*stream.Session, error) {
	if err := e.route(ctx, req); err != nil {
		return nil, api.AsError(err, api.CodeRequestValidation)
	}

	session, err := e.adapter.ExecuteTaskLive(ctx, req)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.live[session.ChatSessionID()] = session
	e.mu.Unlock()
	return session, nil
}

// StartLiveSession forces live mode regardless of the requested execution
// context.
func (e *Engine) StartLiveSession(ctx context.Context, req *api.TaskRequest) (*stream.Session, error) {
	if req.ExecutionContext == nil {
		req.ExecutionContext = &api.ExecutionContext{}
	}
	req.ExecutionContext.ExecutionMode = api.ExecutionModeLive
	return e.ExecuteTaskLive(ctx, req)
}

// Session returns the live session bound to a chat session, if any.
func (e *Engine) Session(chatSessionID string) (*stream.Session, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	session, ok := e.live[chatSessionID]
	return session, ok
}

func (e *Engine) liveSession(chatSessionID string) (*stream.Session, error) {
	session, ok := e.Session(chatSessionID)
	if !ok {
		return nil, api.Errorf(api.CodeRequestValidation,
			"no live session for chat session %q", chatSessionID)
	}
	return session, nil
}

// ApproveTool resolves a pending interaction on the chat session's live
// task.
func (e *Engine) ApproveTool(ctx context.Context, chatSessionID, interactionID string, approved bool, userMessage, responseData, editedArguments string) error {
	session, err := e.liveSession(chatSessionID)
	if err != nil {
		return err
	}
	return session.ApproveTool(ctx, interactionID, approved, userMessage, responseData, editedArguments)
}

// SendUserMessage injects a user message into the chat session's live run.
func (e *Engine) SendUserMessage(chatSessionID, text string) error {
	session, err := e.liveSession(chatSessionID)
	if err != nil {
		return err
	}
	session.SendUserMessage(text)
	return nil
}

// Cancel stops the chat session's live run.
func (e *Engine) Cancel(chatSessionID, reason string) error {
	session, err := e.liveSession(chatSessionID)
	if err != nil {
		return err
	}
	session.Cancel(reason)
	return nil
}

// ListPendingInteractions returns the approvals the chat session's live
// run is waiting on. A chat session with no live run has none.
func (e *Engine) ListPendingInteractions(chatSessionID string) []approval.Interaction {
	session, ok := e.Session(chatSessionID)
	if !ok {
		return nil
	}
	return session.ListPendingInteractions()
}

// CloseSession detaches and closes the chat session's live run.
func (e *Engine) CloseSession(chatSessionID string) error {
	e.mu.Lock()
	session, ok := e.live[chatSessionID]
	delete(e.live, chatSessionID)
	e.mu.Unlock()
	if !ok {
		return nil
	}
	return session.Close()
}

// Shutdown closes every live session in parallel, then cascades teardown
// through the adapter's manager stack.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	live := make([]*stream.Session, 0, len(e.live))
	for _, session := range e.live {
		live = append(live, session)
	}
	e.live = make(map[string]*stream.Session)
	e.mu.Unlock()

	g, ctx := errgroup.WithContext(ctx)
	for _, session := range live {
		g.Go(session.Close)
	}
	if err := g.Wait(); err != nil {
		slog.Error("Live session close failed during shutdown", "error", err)
	}

	return e.adapter.Shutdown(ctx)
}

// reuseRequested reads the reuse_agent metadata flag; creation is
// idempotent by (agent_type, user_id, fingerprint) unless the caller
// opts out.
func reuseRequested(req *api.TaskRequest) bool {
	if v, ok := req.Metadata["reuse_agent"].(bool); ok {
		return v
	}
	return true
}
