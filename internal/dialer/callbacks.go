package dialer

import (
	"context"
	"errors"
	"fmt"

	"voice-platform/internal/store"

	"github.com/google/uuid"
)

func callbackKey(id string) string { return "callback:" + id }

// ScheduleCallback records a callback. A future PreferredTime defers it to
// exactly that time; otherwise it is dialed right away through InitiateCall.
func (d *Dialer) ScheduleCallback(ctx context.Context, businessID string, req CallbackRequest) (Callback, error) {
	if businessID == "" || req.PhoneNumber == "" {
		return Callback{}, fmt.Errorf("%w: business and phone number are required", ErrInvalidRequest)
	}
	now := d.clock()
	cb := Callback{
		ID:              uuid.NewString(),
		BusinessID:      businessID,
		CallbackRequest: req,
		Status:          CallbackPending,
		RequestedAt:     now,
	}
	d.mu.Lock()
	err := d.callbacks.Put(ctx, scoped(businessID, cb.ID), cb)
	d.mu.Unlock()
	if err != nil {
		return Callback{}, err
	}

	if req.PreferredTime != nil && req.PreferredTime.After(now) {
		id := cb.ID
		d.sched.Schedule(callbackKey(id), req.PreferredTime.Sub(now), func() {
			d.processCallback(context.Background(), businessID, id)
		})
		return cb, nil
	}
	return d.processCallback(ctx, businessID, cb.ID), nil
}

// HandleCallbacks schedules every request in order.
func (d *Dialer) HandleCallbacks(ctx context.Context, businessID string, reqs []CallbackRequest) ([]Callback, error) {
	out := make([]Callback, 0, len(reqs))
	for _, r := range reqs {
		cb, err := d.ScheduleCallback(ctx, businessID, r)
		if err != nil {
			return out, err
		}
		out = append(out, cb)
	}
	return out, nil
}

func (d *Dialer) updateCallback(ctx context.Context, businessID, id string, fn func(*Callback)) (Callback, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cb, err := d.callbacks.Get(ctx, scoped(businessID, id))
	if errors.Is(err, store.ErrNotFound) {
		return Callback{}, ErrCallbackNotFound
	}
	if err != nil {
		return Callback{}, err
	}
	fn(&cb)
	return cb, d.callbacks.Put(ctx, scoped(businessID, id), cb)
}

// processCallback dials one callback: pending -> in_progress -> completed|failed.
func (d *Dialer) processCallback(ctx context.Context, businessID, id string) Callback {
	cb, err := d.updateCallback(ctx, businessID, id, func(cb *Callback) { cb.Status = CallbackInProgress })
	if err != nil {
		d.log.Warn("callback lookup failed", "callback_id", id, "err", err)
		return cb
	}

	cfg := d.outboundConfig(ctx, businessID)
	sess, callErr := d.InitiateCall(ctx, businessID, Recipient{PhoneNumber: cb.PhoneNumber, Name: cb.Name},
		cfg.Scripting.DefaultScript, cfg.Scripting.DefaultVoiceID, "")

	cb, err = d.updateCallback(ctx, businessID, id, func(cb *Callback) {
		cb.SessionID = sess.ID
		if callErr != nil {
			cb.Status = CallbackFailed
			cb.Error = callErr.Error()
			return
		}
		now := d.clock()
		cb.Status = CallbackCompleted
		cb.ProcessedAt = &now
	})
	if err != nil {
		d.log.Warn("callback update failed", "callback_id", id, "err", err)
	}
	return cb
}

func (d *Dialer) GetCallback(ctx context.Context, businessID, id string) (Callback, error) {
	cb, err := d.callbacks.Get(ctx, scoped(businessID, id))
	if errors.Is(err, store.ErrNotFound) {
		return Callback{}, ErrCallbackNotFound
	}
	return cb, err
}

func (d *Dialer) Callbacks(ctx context.Context, businessID string) ([]Callback, error) {
	return d.callbacks.List(ctx, businessID+":")
}
