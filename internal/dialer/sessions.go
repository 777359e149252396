package dialer

import (
	"context"
	"errors"
	"strconv"
	"time"

	"voice-platform/internal/calls"
	"voice-platform/internal/events"
	"voice-platform/internal/store"
	"voice-platform/internal/telephony"
)

func (d *Dialer) registerWaiter(sess CallSession) {
	d.waitMu.Lock()
	defer d.waitMu.Unlock()
	d.waiters[sess.ID] = &sessionWaiter{businessID: sess.BusinessID, done: make(chan struct{}), holding: true}
}

func (d *Dialer) indexExternal(externalID string, sess CallSession) {
	if externalID == "" {
		return
	}
	d.waitMu.Lock()
	defer d.waitMu.Unlock()
	d.external[externalID] = sess.ID
}

func (d *Dialer) saveSession(ctx context.Context, sess CallSession) {
	if err := d.sessions.Put(ctx, scoped(sess.BusinessID, sess.ID), sess); err != nil {
		d.log.Warn("session persist failed", "session_id", sess.ID, "err", err)
	}
}

// finish wakes any waiter, gives back the concurrency slot once and schedules
// eviction of the terminal session.
func (d *Dialer) finish(ctx context.Context, sess CallSession) {
	d.waitMu.Lock()
	w, ok := d.waiters[sess.ID]
	release := false
	if ok {
		if !w.closed {
			close(w.done)
			w.closed = true
		}
		release = w.holding
		w.holding = false
	}
	d.waitMu.Unlock()

	if release {
		if err := d.concurrency.Release(ctx, sess.BusinessID); err != nil {
			d.log.Warn("concurrency release failed", "business_id", sess.BusinessID, "err", err)
		}
	}

	businessID, id, ext := sess.BusinessID, sess.ID, sess.ExternalCallID
	d.sched.Schedule("session:"+id, sessionRetention, func() { d.evict(businessID, id, ext) })
}

func (d *Dialer) evict(businessID, sessionID, externalID string) {
	d.waitMu.Lock()
	delete(d.waiters, sessionID)
	if externalID != "" && d.external[externalID] == sessionID {
		delete(d.external, externalID)
	}
	d.waitMu.Unlock()
	if err := d.sessions.Delete(context.Background(), scoped(businessID, sessionID)); err != nil {
		d.log.Warn("session evict failed", "session_id", sessionID, "err", err)
	}
}

// GetSession returns a session until it is evicted, 60s after turning terminal.
func (d *Dialer) GetSession(ctx context.Context, businessID, sessionID string) (CallSession, error) {
	sess, err := d.sessions.Get(ctx, scoped(businessID, sessionID))
	if errors.Is(err, store.ErrNotFound) {
		return CallSession{}, ErrSessionNotFound
	}
	return sess, err
}

// UpdateSessionStatus moves a session forward. Terminal sessions are not
// reopened; a second terminal update is ignored.
func (d *Dialer) UpdateSessionStatus(ctx context.Context, businessID, sessionID string, status SessionStatus, result string, duration int) (CallSession, error) {
	sess, err := d.GetSession(ctx, businessID, sessionID)
	if err != nil {
		return CallSession{}, err
	}
	if sess.Status.Terminal() {
		return sess, nil
	}
	sess.Status = status
	if result != "" {
		sess.Result = result
	}
	if duration > 0 {
		sess.Duration = duration
	}
	if status.Terminal() {
		end := d.clock()
		sess.EndTime = &end
		if sess.Duration == 0 {
			sess.Duration = int(end.Sub(sess.StartTime).Seconds())
		}
	}
	d.saveSession(ctx, sess)
	if status.Terminal() {
		d.finish(ctx, sess)
	}
	return sess, nil
}

func (d *Dialer) sessionByExternal(ctx context.Context, externalID string) (CallSession, bool) {
	if externalID == "" {
		return CallSession{}, false
	}
	d.waitMu.Lock()
	id, ok := d.external[externalID]
	var businessID string
	if w := d.waiters[id]; ok && w != nil {
		businessID = w.businessID
	}
	d.waitMu.Unlock()
	if !ok {
		return CallSession{}, false
	}
	sess, err := d.GetSession(ctx, businessID, id)
	if err != nil {
		return CallSession{}, false
	}
	return sess, true
}

// HandleCallEvent implements telephony.CallEventHandler for calls this dialer
// placed.
func (d *Dialer) HandleCallEvent(ctx context.Context, ev telephony.WebhookEvent) bool {
	sess, ok := d.sessionByExternal(ctx, ev.CallID)
	if !ok {
		return false
	}
	if sess.Status.Terminal() {
		return true
	}

	switch {
	case ev.Type == telephony.EventCallRinging:
		_, _ = d.UpdateSessionStatus(ctx, sess.BusinessID, sess.ID, SessionRinging, "", 0)
	case ev.Type == telephony.EventCallAnswered:
		result := ResultAnswered
		if ev.Voicemail() {
			result = ResultVoicemail
		}
		_, _ = d.UpdateSessionStatus(ctx, sess.BusinessID, sess.ID, SessionInProgress, result, 0)
		d.events.Publish(ctx, sess.BusinessID, events.CallAnswered, map[string]any{
			"session_id":  sess.ID,
			"campaign_id": sess.CampaignID,
			"result":      result,
		})
	case ev.Type == telephony.EventCallCompleted || ev.Type == telephony.EventCallFailed || ev.Status.Terminal():
		status, result := terminalOutcome(sess, ev)
		final, _ := d.UpdateSessionStatus(ctx, sess.BusinessID, sess.ID, status, result, durationOf(ev))
		d.metrics.DialOutcome(result)
		d.events.Publish(ctx, sess.BusinessID, events.CallEnded, map[string]any{
			"session_id":  sess.ID,
			"campaign_id": sess.CampaignID,
			"result":      final.Result,
			"duration":    final.Duration,
		})
	}
	return true
}

// terminalOutcome classifies the end of a call. A call that was answered
// keeps its answered/voicemail result.
func terminalOutcome(sess CallSession, ev telephony.WebhookEvent) (SessionStatus, string) {
	switch ev.Status {
	case calls.StatusBusy:
		return SessionFailed, ResultBusy
	case calls.StatusNoAnswer:
		return SessionFailed, ResultNoAnswer
	case calls.StatusFailed, calls.StatusCanceled:
		return SessionFailed, ResultFailed
	}
	if ev.Type == telephony.EventCallFailed {
		return SessionFailed, ResultFailed
	}
	switch {
	case sess.Result == ResultAnswered || sess.Result == ResultVoicemail:
		return SessionCompleted, sess.Result
	case ev.Voicemail():
		return SessionCompleted, ResultVoicemail
	default:
		return SessionCompleted, ResultAnswered
	}
}

func durationOf(ev telephony.WebhookEvent) int {
	switch v := ev.RawPayload["CallDuration"].(type) {
	case string:
		n, _ := strconv.Atoi(v)
		return n
	case float64:
		return int(v)
	}
	return 0
}

// AnswerOutbound implements telephony.OutboundAnswerer: the voice webhook of
// a call we placed speaks the personalized script. Machines get the script
// as a message and the call ends.
func (d *Dialer) AnswerOutbound(ctx context.Context, ev telephony.WebhookEvent) (telephony.VoiceResponse, bool) {
	sess, ok := d.sessionByExternal(ctx, ev.CallID)
	if !ok {
		return telephony.VoiceResponse{}, false
	}
	return telephony.VoiceResponse{Say: sess.Script, Hangup: ev.Voicemail()}, true
}

// waitForCompletion blocks until the session is terminal or timeout passes.
// A session still open at the timeout is closed as failed.
func (d *Dialer) waitForCompletion(ctx context.Context, sess CallSession, timeout time.Duration) CallSession {
	d.waitMu.Lock()
	w, ok := d.waiters[sess.ID]
	d.waitMu.Unlock()

	if ok {
		t := time.NewTimer(timeout)
		defer t.Stop()
		select {
		case <-w.done:
		case <-t.C:
		case <-ctx.Done():
		}
	}

	final, err := d.GetSession(ctx, sess.BusinessID, sess.ID)
	if err != nil {
		return sess
	}
	if !final.Status.Terminal() {
		final, _ = d.UpdateSessionStatus(ctx, sess.BusinessID, sess.ID, SessionFailed, ResultTimeout, 0)
	}
	return final
}
