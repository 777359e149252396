package audit

import (
	"context"
	"database/sql"
)

// Schema creates the audit_events table. INSERT-only by convention.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS audit_events (
	  id uuid PRIMARY KEY,
	  business_id text NOT NULL,
	  type text NOT NULL,
	  actor_user_id text, actor_role text, ip_address text,
	  campaign_id text, call_id text,
	  message text, metadata jsonb,
	  created_at timestamptz NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS audit_events_business_idx ON audit_events (business_id, created_at)`,
}

// PostgresRepo appends events to audit_events.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_events
		  (id, business_id, type, actor_user_id, actor_role, ip_address, campaign_id, call_id, message, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, '')::jsonb, $11)`,
		e.ID, e.BusinessID, string(e.Type), e.ActorUserID, e.ActorRole, e.IPAddress,
		e.CampaignID, e.CallID, e.Message, e.Metadata, e.CreatedAt,
	)
	return err
}
