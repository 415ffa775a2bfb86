// Package approval tracks human-in-the-loop interactions for one live
// task: pending tool confirmations, their deadlines, and the fallback
// policy applied when nobody answers in time.
package approval

import (
	"log/slog"
	"sync"
	"time"

	"github.com/agentcore/agentcore/pkg/api"
	"github.com/agentcore/agentcore/pkg/runtime"
)

// DefaultTimeout is the approval deadline when none is configured.
const DefaultTimeout = 90 * time.Second

type State string

const (
	StatePending   State = "PENDING"
	StateApproved  State = "APPROVED"
	StateRejected  State = "REJECTED"
	StateEdited    State = "EDITED"
	StateTimedOut  State = "TIMED_OUT"
	StateCancelled State = "CANCELLED"
)

// Policy decides what happens when an interaction's deadline passes.
type Policy string

const (
	// PolicyAutoCancel rejects the tool and cancels the whole run.
	PolicyAutoCancel Policy = "auto_cancel"
	// PolicyAutoApprove lets the tool run.
	PolicyAutoApprove Policy = "auto_approve"
	// PolicySafeDefault approves read-only tools and rejects the rest.
	PolicySafeDefault Policy = "safe_default"
)

// Resolution is the client's answer to an interaction.
type Resolution struct {
	Approved        bool
	UserMessage     string
	ResponseData    string
	EditedArguments string
}

// Interaction is one approval request. Exactly one terminal state is ever
// reached per interaction.
type Interaction struct {
	ID                   string
	ChatSessionID        string
	ToolFullName         string
	Arguments            string
	RequiresConfirmation bool
	// ReadOnly feeds the safe_default timeout policy.
	ReadOnly   bool
	CreatedAt  time.Time
	Deadline   time.Time
	State      State
	Resolution *Resolution
}

// Resumer relays a decision to the blocked execution.
type Resumer func(req runtime.ResumeRequest)

// Broker owns the interaction table for a single live task.
type Broker struct {
	resumer Resumer
	policy  Policy
	timeout time.Duration
	now     func() time.Time

	mu           sync.Mutex
	interactions map[string]*Interaction
	timers       map[string]*time.Timer
	closed       bool
}

type Option func(*Broker)

func WithPolicy(policy Policy) Option {
	return func(b *Broker) {
		b.policy = policy
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(b *Broker) {
		b.timeout = timeout
	}
}

func WithNow(now func() time.Time) Option {
	return func(b *Broker) {
		b.now = now
	}
}

func NewBroker(resumer Resumer, opts ...Option) *Broker {
	b := &Broker{
		resumer:      resumer,
		policy:       PolicyAutoCancel,
		timeout:      DefaultTimeout,
		now:          time.Now,
		interactions: make(map[string]*Interaction),
		timers:       make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Register inserts a pending interaction and arms its deadline.
func (b *Broker) Register(interaction Interaction) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}

	now := b.now()
	interaction.State = StatePending
	if interaction.CreatedAt.IsZero() {
		interaction.CreatedAt = now
	}
	if interaction.Deadline.IsZero() {
		interaction.Deadline = now.Add(b.timeout)
	}
	b.interactions[interaction.ID] = &interaction
	b.timers[interaction.ID] = time.AfterFunc(interaction.Deadline.Sub(now), func() {
		b.expire(interaction.ID)
	})
}

// Resolve applies the client's decision. Decisions are single-flight:
// anything after the first terminal state fails with
// interaction.already_resolved.
func (b *Broker) Resolve(interactionID string, resolution Resolution) error {
	b.mu.Lock()
	interaction, ok := b.interactions[interactionID]
	if !ok {
		b.mu.Unlock()
		return api.Errorf(api.CodeToolNotFound, "interaction %q not found", interactionID).
			WithDetail("interaction_id", interactionID)
	}
	if interaction.State != StatePending {
		state := interaction.State
		b.mu.Unlock()
		return api.Errorf(api.CodeInteractionAlreadyResolved, "interaction %q is already %s", interactionID, state).
			WithDetail("interaction_id", interactionID)
	}

	switch {
	case resolution.Approved && resolution.EditedArguments != "":
		interaction.State = StateEdited
	case resolution.Approved:
		interaction.State = StateApproved
	default:
		interaction.State = StateRejected
	}
	interaction.Resolution = &resolution
	b.stopTimer(interactionID)
	b.mu.Unlock()

	b.relay(interactionID, resolution)
	return nil
}

func (b *Broker) relay(interactionID string, resolution Resolution) {
	req := runtime.ResumeRequest{ToolCallID: interactionID}
	switch {
	case resolution.Approved && resolution.EditedArguments != "":
		req.Type = runtime.ResumeTypeEdit
		req.EditedArguments = resolution.EditedArguments
	case resolution.Approved:
		req.Type = runtime.ResumeTypeApprove
		req.ResponseData = resolution.ResponseData
	default:
		req.Type = runtime.ResumeTypeReject
		req.Reason = resolution.UserMessage
	}
	b.resumer(req)
}

// expire applies the fallback policy to an interaction whose deadline
// passed. The resulting resume request carries the auto-timeout marker so
// downstream consumers can tell it from a real decision.
func (b *Broker) expire(interactionID string) {
	b.mu.Lock()
	interaction, ok := b.interactions[interactionID]
	if !ok || interaction.State != StatePending {
		b.mu.Unlock()
		return
	}
	interaction.State = StateTimedOut
	readOnly := interaction.ReadOnly
	toolName := interaction.ToolFullName
	b.stopTimer(interactionID)
	b.mu.Unlock()

	req := runtime.ResumeRequest{
		ToolCallID:  interactionID,
		AutoTimeout: true,
	}
	switch b.policy {
	case PolicyAutoApprove:
		req.Type = runtime.ResumeTypeApprove
	case PolicySafeDefault:
		if readOnly {
			req.Type = runtime.ResumeTypeApprove
		} else {
			req.Type = runtime.ResumeTypeReject
			req.Reason = "approval deadline passed"
		}
	default: // PolicyAutoCancel
		req.Type = runtime.ResumeTypeReject
		req.Reason = "approval deadline passed"
		req.CancelRun = true
	}

	slog.Debug("Interaction timed out",
		"interaction_id", interactionID, "tool", toolName, "policy", b.policy)
	b.resumer(req)
}

// Pending returns copies of the interactions still awaiting a decision.
func (b *Broker) Pending() []Interaction {
	b.mu.Lock()
	defer b.mu.Unlock()
	var pending []Interaction
	for _, interaction := range b.interactions {
		if interaction.State == StatePending {
			pending = append(pending, *interaction)
		}
	}
	return pending
}

// Get returns a copy of one interaction.
func (b *Broker) Get(interactionID string) (Interaction, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	interaction, ok := b.interactions[interactionID]
	if !ok {
		return Interaction{}, false
	}
	return *interaction, true
}

// Finalize cancels every pending interaction without relaying anything to
// the runtime; it runs when the task is over and nothing is blocked
// anymore.
func (b *Broker) Finalize() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, interaction := range b.interactions {
		if interaction.State == StatePending {
			interaction.State = StateCancelled
			b.stopTimer(id)
		}
	}
}

// Close stops all timers and clears the table. The broker accepts no
// registrations afterwards.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id := range b.timers {
		b.stopTimer(id)
	}
	b.interactions = make(map[string]*Interaction)
	b.closed = true
}

// stopTimer must be called with the lock held.
func (b *Broker) stopTimer(interactionID string) {
	if timer, ok := b.timers[interactionID]; ok {
		timer.Stop()
		delete(b.timers, interactionID)
	}
}
