// Package adapter bridges task requests onto the runtime: it coordinates
// the chat session, runs the conversation turn (sync or live), and owns
// teardown across the manager stack.
package adapter

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agentcore/agentcore/pkg/agent"
	"github.com/agentcore/agentcore/pkg/api"
	"github.com/agentcore/agentcore/pkg/approval"
	"github.com/agentcore/agentcore/pkg/chatsession"
	"github.com/agentcore/agentcore/pkg/recovery"
	"github.com/agentcore/agentcore/pkg/runner"
	"github.com/agentcore/agentcore/pkg/runtime"
	"github.com/agentcore/agentcore/pkg/stream"
	"github.com/agentcore/agentcore/pkg/telemetry"
	"github.com/agentcore/agentcore/pkg/tools"
)

// frameworkName tags results with the runtime that produced them.
const frameworkName = "agentcore"

// Adapter is the single entry point between the engine and the manager
// stack.
type Adapter struct {
	agents   *agent.Manager
	runners  *runner.Manager
	sessions *chatsession.Manager
	registry *tools.Registry
	store    recovery.Store

	approvalPolicy  approval.Policy
	approvalTimeout time.Duration
	defaultTimeout  time.Duration

	mu   sync.Mutex
	live map[string]*stream.Session
}

type Option func(*Adapter)

func WithApprovalPolicy(policy approval.Policy) Option {
	return func(a *Adapter) {
		a.approvalPolicy = policy
	}
}

func WithApprovalTimeout(timeout time.Duration) Option {
	return func(a *Adapter) {
		a.approvalTimeout = timeout
	}
}

// WithDefaultTaskTimeout bounds sync executions that carry no timeout of
// their own. Zero means unbounded.
func WithDefaultTaskTimeout(timeout time.Duration) Option {
	return func(a *Adapter) {
		a.defaultTimeout = timeout
	}
}

func New(agents *agent.Manager, runners *runner.Manager, sessions *chatsession.Manager, registry *tools.Registry, store recovery.Store, opts ...Option) *Adapter {
	a := &Adapter{
		agents:          agents,
		runners:         runners,
		sessions:        sessions,
		registry:        registry,
		store:           store,
		approvalPolicy:  approval.PolicyAutoCancel,
		approvalTimeout: approval.DefaultTimeout,
		live:            make(map[string]*stream.Session),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ExecuteTask runs one synchronous conversation turn. Failures land in the
// result's error field, never in the returned error, so the caller always
// gets the echoed routing identifiers it has.
func (a *Adapter) ExecuteTask(ctx context.Context, req *api.TaskRequest) *api.TaskResult {
	started := time.Now()

	chatSessionID, coordination, err := a.coordinate(ctx, req)
	if err != nil {
		return a.failedResult(req, chatSessionID, started, err)
	}

	liveRunner, err := a.runners.RunnerForAgent(coordination.AgentID)
	if err != nil {
		return a.failedResult(req, chatSessionID, started, err)
	}

	runCtx := tools.WithHeaders(ctx, req.ToolHeaders())
	timeout := a.taskTimeout(req)
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, timeout)
		defer cancel()
	}

	runResult, err := liveRunner.Run(runCtx, coordination.FrameworkSessionID, toChatMessages(req.Messages))
	a.sessions.Touch(chatSessionID)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			timeoutErr := api.Errorf(api.CodeFrameworkExecutionTimeout,
				"task did not finish within %s", timeout)
			result := a.failedResult(req, chatSessionID, started, timeoutErr)
			result.Status = api.StatusTimeout
			result.AgentID = coordination.AgentID
			return result
		}
		result := a.failedResult(req, chatSessionID, started, err)
		result.AgentID = coordination.AgentID
		return result
	}

	a.recordUsage(ctx, coordination.AgentID, runResult.Usage.InputTokens, runResult.Usage.OutputTokens)

	return &api.TaskResult{
		TaskID:      req.TaskID,
		Status:      api.StatusSuccess,
		Messages:    toUniversalMessages(runResult.Messages),
		AgentID:     coordination.AgentID,
		SessionID:   chatSessionID,
		ToolResults: runResult.ToolResults,
		ExecutionMetadata: api.ExecutionMetadata{
			DurationMS: time.Since(started).Milliseconds(),
			TokenUsage: api.TokenUsage{
				InputTokens:  runResult.Usage.InputTokens,
				OutputTokens: runResult.Usage.OutputTokens,
			},
			Framework:       frameworkName,
			SwitchOccurred:  coordination.SwitchOccurred,
			Recovered:       coordination.Recovered,
			PreviousAgentID: coordination.PreviousAgentID,
		},
	}
}

// ExecuteTaskLive starts a streamed conversation turn and returns its live
// session. Cancelling ctx is how a client disconnect reaches the run.
func (a *Adapter) ExecuteTaskLive(ctx context.Context, req *api.TaskRequest) (*stream.Session, error) {
	chatSessionID, coordination, err := a.coordinate(ctx, req)
	if err != nil {
		return nil, err
	}

	liveRunner, err := a.runners.RunnerForAgent(coordination.AgentID)
	if err != nil {
		return nil, err
	}

	runCtx := tools.WithHeaders(ctx, req.ToolHeaders())
	execution, err := liveRunner.RunLive(runCtx, coordination.FrameworkSessionID, toChatMessages(req.Messages))
	if err != nil {
		return nil, api.AsError(err, api.CodeFrameworkExecution)
	}

	broker := approval.NewBroker(func(resumeReq runtime.ResumeRequest) {
		if resumeErr := execution.Resume(resumeReq); resumeErr != nil {
			slog.Debug("Decision arrived with nothing awaiting it",
				"task_id", req.TaskID, "tool_call_id", resumeReq.ToolCallID)
		}
	}, approval.WithPolicy(a.approvalPolicy), approval.WithTimeout(a.approvalTimeout))

	converter := stream.NewConverter(req.TaskID, coordination.AgentID, chatSessionID)
	session := stream.NewSession(req.TaskID, chatSessionID, execution, broker, converter, func() {
		a.mu.Lock()
		delete(a.live, req.TaskID)
		a.mu.Unlock()
		a.sessions.Touch(chatSessionID)
		telemetry.RecordSessionEnd(ctx)
	})

	a.mu.Lock()
	a.live[req.TaskID] = session
	a.mu.Unlock()

	telemetry.RecordSessionStart(ctx, chatSessionID, coordination.AgentID)
	return session, nil
}

// coordinate binds the request to its chat session, recovering a cleared
// session exactly once before giving up.
func (a *Adapter) coordinate(ctx context.Context, req *api.TaskRequest) (string, chatsession.CoordinationResult, error) {
	chatSessionID := req.ChatSessionID()
	if chatSessionID == "" {
		chatSessionID = uuid.New().String()
	}
	userID := req.UserContext.UserID
	config := effectiveConfig(req)

	coordination, err := a.sessions.Coordinate(ctx, chatSessionID, req.AgentID, userID, config)
	if err == nil {
		return chatSessionID, coordination, nil
	}
	if !errors.Is(err, chatsession.ErrSessionCleared) {
		return chatSessionID, chatsession.CoordinationResult{}, err
	}

	recoveredAgentID, err := a.sessions.Recover(ctx, chatSessionID)
	if err != nil {
		return chatSessionID, chatsession.CoordinationResult{}, err
	}
	targetAgentID := req.AgentID
	if targetAgentID == "" {
		targetAgentID = recoveredAgentID
	}

	coordination, err = a.sessions.Coordinate(ctx, chatSessionID, targetAgentID, userID, config)
	if err != nil {
		return chatSessionID, chatsession.CoordinationResult{}, api.AsError(err, api.CodeSessionRecoveryFailed)
	}
	return chatSessionID, coordination, nil
}

// effectiveConfig narrows the inline agent config by available_tools: an
// empty tool list takes the selector names wholesale, a declared list keeps
// its intersection with them. Without an inline config the selectors have
// no runner configuration to scope and are ignored.
func effectiveConfig(req *api.TaskRequest) *api.AgentConfig {
	names := req.ToolNames()
	if len(names) == 0 || req.AgentConfig == nil {
		return req.AgentConfig
	}
	narrowed := req.AgentConfig.Clone()
	if len(narrowed.Tools) == 0 {
		narrowed.Tools = names
		return narrowed
	}
	allowed := make(map[string]struct{}, len(names))
	for _, name := range names {
		allowed[name] = struct{}{}
	}
	kept := narrowed.Tools[:0]
	for _, tool := range narrowed.Tools {
		if _, ok := allowed[tool]; ok {
			kept = append(kept, tool)
		}
	}
	narrowed.Tools = kept
	return narrowed
}

// LiveSessionCount reports the number of in-flight live tasks.
func (a *Adapter) LiveSessionCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.live)
}

// Shutdown tears the stack down in dependency order: live tasks first,
// then chat sessions (archiving them), runners, agents, tools, and the
// recovery store last. Infrastructure failures are logged and joined, and
// never stop the cascade.
func (a *Adapter) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	live := make([]*stream.Session, 0, len(a.live))
	for _, session := range a.live {
		live = append(live, session)
	}
	a.live = make(map[string]*stream.Session)
	a.mu.Unlock()

	for _, session := range live {
		_ = session.Close()
	}

	a.sessions.Shutdown(ctx)
	a.runners.Shutdown(ctx)
	a.agents.CleanupExpiredAgents(ctx, 0)

	var errs []error
	if err := a.registry.Stop(ctx); err != nil {
		slog.Error("Tool registry shutdown failed", "error", err)
		errs = append(errs, err)
	}
	if err := a.store.Close(); err != nil {
		slog.Error("Recovery store close failed", "error", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *Adapter) taskTimeout(req *api.TaskRequest) time.Duration {
	if ms := req.Timeout(); ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return a.defaultTimeout
}

func (a *Adapter) failedResult(req *api.TaskRequest, chatSessionID string, started time.Time, err error) *api.TaskResult {
	apiErr := api.AsError(err, api.CodeFrameworkExecution)
	status := api.StatusError
	if apiErr.Code == api.CodeFrameworkExecutionTimeout {
		status = api.StatusTimeout
	}
	return &api.TaskResult{
		TaskID:    req.TaskID,
		Status:    status,
		AgentID:   req.AgentID,
		SessionID: chatSessionID,
		Error:     apiErr,
		ExecutionMetadata: api.ExecutionMetadata{
			DurationMS: time.Since(started).Milliseconds(),
			Framework:  frameworkName,
		},
	}
}

func (a *Adapter) recordUsage(ctx context.Context, agentID string, inputTokens, outputTokens int64) {
	if inputTokens == 0 && outputTokens == 0 {
		return
	}
	modelName := ""
	if configured, err := a.agents.GetAgent(agentID); err == nil {
		modelName = configured.Config.Model.Name
	}
	telemetry.RecordTokenUsage(ctx, modelName, inputTokens, outputTokens, 0)
}
