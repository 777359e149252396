package business

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"voice-platform/internal/dialer"
	"voice-platform/internal/routing"
	"voice-platform/pkg/utils"
)

// Schema creates the tables PostgresSource reads.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS business_configs (
	  business_id text PRIMARY KEY,
	  config jsonb NOT NULL,
	  outbound jsonb,
	  updated_at timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS routing_rules (
	  id text PRIMARY KEY,
	  business_id text NOT NULL,
	  name text NOT NULL DEFAULT '',
	  priority int NOT NULL,
	  active boolean NOT NULL,
	  condition jsonb NOT NULL,
	  action text NOT NULL,
	  action_config jsonb NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS routing_rules_business_idx ON routing_rules (business_id)`,
	`CREATE TABLE IF NOT EXISTS business_numbers (number text PRIMARY KEY, business_id text NOT NULL)`,
	`CREATE TABLE IF NOT EXISTS dnc_numbers (number text PRIMARY KEY)`,
}

// PostgresSource reads business configuration from Postgres.
type PostgresSource struct {
	db *sql.DB
}

func NewPostgresSource(db *sql.DB) *PostgresSource { return &PostgresSource{db: db} }

func (s *PostgresSource) BusinessConfig(ctx context.Context, businessID string) (routing.BusinessConfig, error) {
	if strings.TrimSpace(businessID) == "" {
		return routing.BusinessConfig{}, ErrInvalidBusiness
	}
	var raw []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT config FROM business_configs WHERE business_id = $1`, businessID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return DefaultConfig(businessID), nil
	}
	if err != nil {
		return routing.BusinessConfig{}, err
	}
	var cfg routing.BusinessConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return routing.BusinessConfig{}, fmt.Errorf("business: decode config %s: %w", businessID, err)
	}
	cfg.BusinessID = businessID
	return cfg, nil
}

func (s *PostgresSource) RoutingRules(ctx context.Context, businessID string) ([]routing.RoutingRule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, priority, active, condition, action, action_config
		FROM routing_rules
		WHERE business_id = $1
		ORDER BY priority DESC, id`, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []routing.RoutingRule
	for rows.Next() {
		var (
			r            routing.RoutingRule
			cond, action []byte
		)
		if err := rows.Scan(&r.ID, &r.Name, &r.Priority, &r.Active, &cond, &r.Action, &action); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(cond, &r.Condition); err != nil {
			return nil, fmt.Errorf("business: decode rule %s: %w", r.ID, err)
		}
		if err := json.Unmarshal(action, &r.ActionConfig); err != nil {
			return nil, fmt.Errorf("business: decode rule %s: %w", r.ID, err)
		}
		r.BusinessID = businessID
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresSource) OutboundConfig(ctx context.Context, businessID string) (dialer.OutboundConfig, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT outbound FROM business_configs WHERE business_id = $1`, businessID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && len(raw) == 0) {
		return dialer.DefaultOutboundConfig(), nil
	}
	if err != nil {
		return dialer.OutboundConfig{}, err
	}
	cfg := dialer.DefaultOutboundConfig()
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return dialer.OutboundConfig{}, fmt.Errorf("business: decode outbound %s: %w", businessID, err)
	}
	return cfg, nil
}

func (s *PostgresSource) PutConfig(ctx context.Context, cfg routing.BusinessConfig) error {
	if strings.TrimSpace(cfg.BusinessID) == "" {
		return ErrInvalidBusiness
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO business_configs (business_id, config, updated_at)
		VALUES ($1, $2::jsonb, now())
		ON CONFLICT (business_id) DO UPDATE SET config = EXCLUDED.config, updated_at = now()`,
		cfg.BusinessID, string(raw))
	return err
}

// PutRules replaces the whole rule set of a business in one transaction.
func (s *PostgresSource) PutRules(ctx context.Context, businessID string, rules []routing.RoutingRule) error {
	if strings.TrimSpace(businessID) == "" {
		return ErrInvalidBusiness
	}
	return utils.WithTx(ctx, s.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM routing_rules WHERE business_id = $1`, businessID); err != nil {
			return err
		}
		for _, r := range rules {
			cond, err := json.Marshal(r.Condition)
			if err != nil {
				return err
			}
			action, err := json.Marshal(r.ActionConfig)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO routing_rules (id, business_id, name, priority, active, condition, action, action_config)
				VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7, $8::jsonb)`,
				r.ID, businessID, r.Name, r.Priority, r.Active, string(cond), string(r.Action), string(action),
			); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *PostgresSource) PutOutbound(ctx context.Context, businessID string, cfg dialer.OutboundConfig) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO business_configs (business_id, config, outbound, updated_at)
		VALUES ($1, '{}'::jsonb, $2::jsonb, now())
		ON CONFLICT (business_id) DO UPDATE SET outbound = EXCLUDED.outbound, updated_at = now()`,
		businessID, string(raw))
	return err
}

func (s *PostgresSource) ResolveNumber(ctx context.Context, number string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT business_id FROM business_numbers WHERE number = $1`, NormalizeNumber(number)).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrUnknownNumber
	}
	return id, err
}

func (s *PostgresSource) IsOnDNCList(ctx context.Context, phoneNumber string) (bool, error) {
	var found bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM dnc_numbers WHERE number = $1)`, NormalizeNumber(phoneNumber)).Scan(&found)
	return found, err
}
