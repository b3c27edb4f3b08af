package flow

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
)

// NOTE: This repository assumes the following table exists:
// - flow_configurations (one row per org, steps stored as jsonb)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) GetConfiguration(ctx context.Context, orgID string) (Configuration, error) {
	const q = `
SELECT org_id, min_call_duration, recording_enabled, transcription_enabled,
       auto_create_leads, auto_create_follow_ups, steps, updated_at
FROM flow_configurations
WHERE org_id = $1
`
	var cfg Configuration
	var steps []byte
	if err := r.db.QueryRowContext(ctx, q, orgID).Scan(
		&cfg.OrgID,
		&cfg.MinCallDuration,
		&cfg.RecordingEnabled,
		&cfg.TranscriptionEnabled,
		&cfg.AutoCreateLeads,
		&cfg.AutoCreateFollowUps,
		&steps,
		&cfg.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Configuration{}, ErrNotFound
		}
		return Configuration{}, err
	}
	if len(steps) > 0 {
		if err := json.Unmarshal(steps, &cfg.Steps); err != nil {
			return Configuration{}, err
		}
	}
	return cfg, nil
}

func (r *PostgresRepo) SaveConfiguration(ctx context.Context, cfg Configuration) error {
	steps, err := json.Marshal(cfg.Steps)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO flow_configurations (
  org_id, min_call_duration, recording_enabled, transcription_enabled,
  auto_create_leads, auto_create_follow_ups, steps, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8
)
ON CONFLICT (org_id)
DO UPDATE SET min_call_duration = EXCLUDED.min_call_duration,
              recording_enabled = EXCLUDED.recording_enabled,
              transcription_enabled = EXCLUDED.transcription_enabled,
              auto_create_leads = EXCLUDED.auto_create_leads,
              auto_create_follow_ups = EXCLUDED.auto_create_follow_ups,
              steps = EXCLUDED.steps,
              updated_at = EXCLUDED.updated_at
`
	_, err = r.db.ExecContext(ctx, q,
		cfg.OrgID,
		cfg.MinCallDuration,
		cfg.RecordingEnabled,
		cfg.TranscriptionEnabled,
		cfg.AutoCreateLeads,
		cfg.AutoCreateFollowUps,
		steps,
		cfg.UpdatedAt,
	)
	return err
}
