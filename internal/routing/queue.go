package routing

import (
	"sync"
)

// callQueue is one business's wait list. Every mutation renumbers positions
// before the lock is released.
type callQueue struct {
	mu    sync.Mutex
	calls []QueuedCall
}

// insert places qc before the first call whose priority is lower.
// Equal priorities keep arrival order.
func (q *callQueue) insert(qc QueuedCall) QueuedCall {
	q.mu.Lock()
	defer q.mu.Unlock()

	idx := len(q.calls)
	for i, c := range q.calls {
		if c.Priority < qc.Priority {
			idx = i
			break
		}
	}
	q.calls = append(q.calls, QueuedCall{})
	copy(q.calls[idx+1:], q.calls[idx:])
	q.calls[idx] = qc
	q.renumber()
	return q.calls[idx]
}

func (q *callQueue) remove(callID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, c := range q.calls {
		if c.ID == callID {
			q.calls = append(q.calls[:i], q.calls[i+1:]...)
			q.renumber()
			return true
		}
	}
	return false
}

func (q *callQueue) renumber() {
	for i := range q.calls {
		q.calls[i].Position = i + 1
	}
}

func (q *callQueue) snapshot() []QueuedCall {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]QueuedCall, len(q.calls))
	copy(out, q.calls)
	return out
}

func (q *callQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.calls)
}

// queues holds one callQueue per business. The outer lock only guards the map.
type queues struct {
	mu sync.Mutex
	m  map[string]*callQueue
}

func newQueues() *queues { return &queues{m: map[string]*callQueue{}} }

func (qs *queues) get(businessID string) *callQueue {
	qs.mu.Lock()
	defer qs.mu.Unlock()
	q, ok := qs.m[businessID]
	if !ok {
		q = &callQueue{}
		qs.m[businessID] = q
	}
	return q
}
