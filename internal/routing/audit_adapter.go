package routing

import (
	"context"

	"voice-platform/internal/audit"
)

// AuditAdapter records routing outcomes in the shared audit log, filling the
// webhook origin from ctx when the record leaves it empty.
type AuditAdapter struct {
	Audit *audit.Service
}

func (a AuditAdapter) LogCallAttempt(ctx context.Context, rec audit.CallAttempt) error {
	if a.Audit == nil {
		return nil
	}
	o := OriginFrom(ctx)
	if rec.IP == "" {
		rec.IP = o.IP
	}
	if rec.Provider == "" {
		rec.Provider = o.Provider
	}
	return a.Audit.LogCallAttempt(ctx, rec)
}
