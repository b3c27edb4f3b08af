package orgs

import (
	"context"
	"database/sql"
	"errors"
)

// NOTE: This repository assumes the following tables exist:
// - organizations
// - phone_configurations (one row per org, upserted)
// - training_numbers with UNIQUE (org_id, number)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) GetOrganization(ctx context.Context, orgID string) (Organization, error) {
	const q = `
SELECT id, name, tier, created_at, updated_at
FROM organizations
WHERE id = $1
`
	var o Organization
	if err := r.db.QueryRowContext(ctx, q, orgID).Scan(
		&o.ID,
		&o.Name,
		&o.Tier,
		&o.CreatedAt,
		&o.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Organization{}, ErrNotFound
		}
		return Organization{}, err
	}
	return o, nil
}

func (r *PostgresRepo) GetPhoneConfiguration(ctx context.Context, orgID string) (PhoneConfiguration, error) {
	const q = `
SELECT org_id, inbound_flow, forward_to_number, voicemail_message,
       record_inbound_calls, record_outbound_calls, min_outbound_duration,
       auto_create_leads, auto_create_follow_ups, updated_at
FROM phone_configurations
WHERE org_id = $1
`
	var cfg PhoneConfiguration
	if err := r.db.QueryRowContext(ctx, q, orgID).Scan(
		&cfg.OrgID,
		&cfg.InboundFlow,
		&cfg.ForwardToNumber,
		&cfg.VoicemailMessage,
		&cfg.RecordInboundCalls,
		&cfg.RecordOutboundCalls,
		&cfg.MinOutboundDuration,
		&cfg.AutoCreateLeads,
		&cfg.AutoCreateFollowUps,
		&cfg.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return PhoneConfiguration{}, ErrNotFound
		}
		return PhoneConfiguration{}, err
	}
	return cfg, nil
}

func (r *PostgresRepo) SavePhoneConfiguration(ctx context.Context, cfg PhoneConfiguration) error {
	const q = `
INSERT INTO phone_configurations (
  org_id, inbound_flow, forward_to_number, voicemail_message,
  record_inbound_calls, record_outbound_calls, min_outbound_duration,
  auto_create_leads, auto_create_follow_ups, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10
)
ON CONFLICT (org_id)
DO UPDATE SET inbound_flow = EXCLUDED.inbound_flow,
              forward_to_number = EXCLUDED.forward_to_number,
              voicemail_message = EXCLUDED.voicemail_message,
              record_inbound_calls = EXCLUDED.record_inbound_calls,
              record_outbound_calls = EXCLUDED.record_outbound_calls,
              min_outbound_duration = EXCLUDED.min_outbound_duration,
              auto_create_leads = EXCLUDED.auto_create_leads,
              auto_create_follow_ups = EXCLUDED.auto_create_follow_ups,
              updated_at = EXCLUDED.updated_at
`
	_, err := r.db.ExecContext(ctx, q,
		cfg.OrgID,
		cfg.InboundFlow,
		cfg.ForwardToNumber,
		cfg.VoicemailMessage,
		cfg.RecordInboundCalls,
		cfg.RecordOutboundCalls,
		cfg.MinOutboundDuration,
		cfg.AutoCreateLeads,
		cfg.AutoCreateFollowUps,
		cfg.UpdatedAt,
	)
	return err
}

func (r *PostgresRepo) FindTrainingNumber(ctx context.Context, orgID, number string) (TrainingNumber, error) {
	const q = `
SELECT org_id, number, client_name, created_at
FROM training_numbers
WHERE org_id = $1 AND LOWER(number) = LOWER($2)
`
	var tn TrainingNumber
	if err := r.db.QueryRowContext(ctx, q, orgID, number).Scan(
		&tn.OrgID,
		&tn.Number,
		&tn.ClientName,
		&tn.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return TrainingNumber{}, ErrNotFound
		}
		return TrainingNumber{}, err
	}
	return tn, nil
}

func (r *PostgresRepo) ListTrainingNumbers(ctx context.Context, orgID string) ([]TrainingNumber, error) {
	const q = `
SELECT org_id, number, client_name, created_at
FROM training_numbers
WHERE org_id = $1
ORDER BY number
`
	rows, err := r.db.QueryContext(ctx, q, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TrainingNumber
	for rows.Next() {
		var tn TrainingNumber
		if err := rows.Scan(&tn.OrgID, &tn.Number, &tn.ClientName, &tn.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, tn)
	}
	return out, rows.Err()
}
