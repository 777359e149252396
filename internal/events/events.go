package events

import (
	"context"
	"sync"
	"time"
)

// Type names a realtime event delivered to a business room.
type Type string

const (
	CallIncoming      Type = "call:incoming"
	CallStarted       Type = "call:started"
	CallAnswered      Type = "call:answered"
	CallEnded         Type = "call:ended"
	CallFailed        Type = "call:failed"
	CallTransferred   Type = "call:transferred"
	TranscriptUpdate  Type = "transcript:update"
	QueueUpdate       Type = "queue:update"
	CampaignUpdate    Type = "campaign:update"
	CampaignCompleted Type = "campaign:completed"
)

// Event is the envelope written to subscribers.
type Event struct {
	Topic     string    `json:"topic"`
	Type      Type      `json:"type"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher delivers an event to every subscriber of topic (a business id).
// Delivery is best-effort: implementations log failures and never block the
// caller on slow subscribers.
type Publisher interface {
	Publish(ctx context.Context, topic string, eventType Type, payload any)
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, string, Type, any) {}

// Fanout publishes to several sinks in order.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, topic string, eventType Type, payload any) {
	for _, p := range f {
		if p != nil {
			p.Publish(ctx, topic, eventType, payload)
		}
	}
}

// Metrics is the counter the publishers bump per event.
type Metrics interface {
	EventPublished(eventType string)
}

// Recorder keeps every published event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, topic string, eventType Type, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Topic: topic, Type: eventType, Payload: payload, Timestamp: time.Now().UTC()})
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfType returns the recorded events of one type, oldest first.
func (r *Recorder) OfType(t Type) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
