package chatsession

import (
	"context"
	"sync/atomic"

	"github.com/agentcore/agentcore/pkg/api"
)

// DefaultQueueBound caps how many requests may wait on one chat session
// before new arrivals are rejected with session.busy.
const DefaultQueueBound = 8

// sessionQueue serializes work on one chat session. The slot channel holds
// the single permit; waiters counts permit holders plus blocked acquirers.
type sessionQueue struct {
	slot    chan struct{}
	waiters atomic.Int32
}

func newSessionQueue() *sessionQueue {
	return &sessionQueue{slot: make(chan struct{}, 1)}
}

// acquire blocks until the permit is available. Over the bound it fails
// fast with session.busy instead of queuing unboundedly.
func (q *sessionQueue) acquire(ctx context.Context, chatSessionID string, bound int) (release func(), err error) {
	if int(q.waiters.Add(1)) > bound {
		q.waiters.Add(-1)
		return nil, api.Errorf(api.CodeSessionBusy, "chat session %q has too many queued requests", chatSessionID).
			WithDetail("chat_session_id", chatSessionID).
			WithRetriable(true)
	}

	select {
	case q.slot <- struct{}{}:
		return func() {
			<-q.slot
			q.waiters.Add(-1)
		}, nil
	case <-ctx.Done():
		q.waiters.Add(-1)
		return nil, ctx.Err()
	}
}
