package audit

import (
	"context"
	"sync"
)

// MemoryRepo keeps events in process. Tests and single-node local runs use it.
type MemoryRepo struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) Append(_ context.Context, e Event) error {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	return nil
}

// Events returns every event of businessID in append order. An empty id returns all.
func (r *MemoryRepo) Events(businessID string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if businessID == "" || e.BusinessID == businessID {
			out = append(out, e)
		}
	}
	return out
}
