package audit

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
// No Update/Delete methods are provided by design.

type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service logs internal audit information.
//
// IMPORTANT:
// - Audit is internal-only. Do not expose these records to business users by default.
// - Callers should treat audit logging as best-effort.

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.BusinessID == "" {
		return ErrInvalidEvent
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	now := s.clock().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	return s.repo.Append(ctx, e)
}

// LogAdminAction records an operator action on the control plane
// (primary carrier change, failover toggle, number purchase).
func (s *Service) LogAdminAction(ctx context.Context, businessID, actorUserID, actorRole, ip, message, metadata string) error {
	return s.Append(ctx, Event{
		BusinessID:  businessID,
		Type:        EventTypeAdminAction,
		ActorUserID: actorUserID,
		ActorRole:   actorRole,
		IPAddress:   ip,
		Message:     message,
		Metadata:    metadata,
	})
}

// LogCallAttempt records the routing outcome of a call.
func (s *Service) LogCallAttempt(ctx context.Context, a CallAttempt) error {
	meta, err := json.Marshal(a)
	if err != nil {
		return err
	}
	msg := a.Direction + " " + a.Action
	if !a.Success {
		msg += " failed"
	}
	return s.Append(ctx, Event{
		BusinessID: a.BusinessID,
		Type:       EventTypeCallAttempt,
		IPAddress:  a.IP,
		CampaignID: a.CampaignID,
		CallID:     a.CallID,
		Message:    msg,
		Metadata:   string(meta),
	})
}

// LogCampaignAction records a campaign state change requested by a user.
func (s *Service) LogCampaignAction(ctx context.Context, businessID, actorUserID, actorRole, ip, campaignID, action string) error {
	return s.Append(ctx, Event{
		BusinessID:  businessID,
		Type:        EventTypeCampaignAction,
		ActorUserID: actorUserID,
		ActorRole:   actorRole,
		IPAddress:   ip,
		CampaignID:  campaignID,
		Message:     "campaign " + action,
	})
}
