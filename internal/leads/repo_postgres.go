package leads

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"callflow-platform/pkg/utils"
)

// NOTE: This repository assumes the following tables exist:
// - leads
// - follow_ups with UNIQUE (org_id, call_sid)
// - prospects with UNIQUE (org_id, call_sid)
// - notifications
// - lead_activities

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const leadColumns = `
id, org_id, name, phone, email, assigned_user_id, assigned_user_email,
last_contacted_at, created_at, updated_at`

func scanLead(row interface{ Scan(...any) error }) (Lead, error) {
	var l Lead
	var lastContacted sql.NullTime
	err := row.Scan(
		&l.ID,
		&l.OrgID,
		&l.Name,
		&l.Phone,
		&l.Email,
		&l.AssignedUserID,
		&l.AssignedUserEmail,
		&lastContacted,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	if err != nil {
		return Lead{}, err
	}
	if lastContacted.Valid {
		l.LastContactedAt = lastContacted.Time
	}
	return l, nil
}

func (r *PostgresRepo) FindLeadByPhone(ctx context.Context, orgID, phone string) (Lead, error) {
	const q = `
SELECT ` + leadColumns + `
FROM leads
WHERE org_id = $1 AND phone = $2
LIMIT 1
`
	l, err := scanLead(r.db.QueryRowContext(ctx, q, orgID, phone))
	if errors.Is(err, sql.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	return l, err
}

func (r *PostgresRepo) GetLead(ctx context.Context, orgID, leadID string) (Lead, error) {
	const q = `
SELECT ` + leadColumns + `
FROM leads
WHERE org_id = $1 AND id = $2
`
	l, err := scanLead(r.db.QueryRowContext(ctx, q, orgID, leadID))
	if errors.Is(err, sql.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	return l, err
}

func (r *PostgresRepo) TouchLastContacted(ctx context.Context, orgID, leadID string, at time.Time) error {
	const q = `
UPDATE leads
SET last_contacted_at = $3, updated_at = $3
WHERE org_id = $1 AND id = $2
`
	res, err := r.db.ExecContext(ctx, q, orgID, leadID, at)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepo) GetFollowUpByCallSid(ctx context.Context, orgID, callSid string) (FollowUp, error) {
	const q = `
SELECT id, org_id, lead_id, call_sid, reason, due_date,
       recording_url, transcription, created_at, updated_at
FROM follow_ups
WHERE org_id = $1 AND call_sid = $2
`
	var fu FollowUp
	if err := r.db.QueryRowContext(ctx, q, orgID, callSid).Scan(
		&fu.ID,
		&fu.OrgID,
		&fu.LeadID,
		&fu.CallSid,
		&fu.Reason,
		&fu.DueDate,
		&fu.RecordingURL,
		&fu.Transcription,
		&fu.CreatedAt,
		&fu.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return FollowUp{}, ErrNotFound
		}
		return FollowUp{}, err
	}
	return fu, nil
}

func (r *PostgresRepo) CreateFollowUpWithNotification(ctx context.Context, fu FollowUp, n Notification) error {
	return utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		const insertFollowUp = `
INSERT INTO follow_ups (
  id, org_id, lead_id, call_sid, reason, due_date,
  recording_url, transcription, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10
)
ON CONFLICT (org_id, call_sid) DO NOTHING
`
		if _, err := tx.ExecContext(ctx, insertFollowUp,
			fu.ID, fu.OrgID, fu.LeadID, fu.CallSid, fu.Reason, fu.DueDate,
			fu.RecordingURL, fu.Transcription, fu.CreatedAt, fu.UpdatedAt,
		); err != nil {
			return err
		}

		const insertNotification = `
INSERT INTO notifications (
  id, org_id, user_id, lead_id, type, message, read, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8
)
`
		_, err := tx.ExecContext(ctx, insertNotification,
			n.ID, n.OrgID, n.UserID, n.LeadID, n.Type, n.Message, n.Read, n.CreatedAt,
		)
		return err
	})
}

func (r *PostgresRepo) UpdateFollowUpRecording(ctx context.Context, orgID, callSid, recordingURL, transcription string, at time.Time) error {
	const q = `
UPDATE follow_ups
SET recording_url = $3,
    transcription = CASE WHEN $4 <> '' THEN $4 ELSE transcription END,
    updated_at = $5
WHERE org_id = $1 AND call_sid = $2
`
	res, err := r.db.ExecContext(ctx, q, orgID, callSid, recordingURL, transcription, at)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepo) GetProspectByCallSid(ctx context.Context, orgID, callSid string) (Prospect, error) {
	const q = `
SELECT id, org_id, phone, call_sid, source, status,
       recording_url, transcription, created_at, updated_at
FROM prospects
WHERE org_id = $1 AND call_sid = $2
`
	var p Prospect
	if err := r.db.QueryRowContext(ctx, q, orgID, callSid).Scan(
		&p.ID,
		&p.OrgID,
		&p.Phone,
		&p.CallSid,
		&p.Source,
		&p.Status,
		&p.RecordingURL,
		&p.Transcription,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Prospect{}, ErrNotFound
		}
		return Prospect{}, err
	}
	return p, nil
}

func (r *PostgresRepo) CreateProspect(ctx context.Context, p Prospect) error {
	const q = `
INSERT INTO prospects (
  id, org_id, phone, call_sid, source, status,
  recording_url, transcription, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10
)
ON CONFLICT (org_id, call_sid) DO NOTHING
`
	_, err := r.db.ExecContext(ctx, q,
		p.ID, p.OrgID, p.Phone, p.CallSid, p.Source, p.Status,
		p.RecordingURL, p.Transcription, p.CreatedAt, p.UpdatedAt,
	)
	return err
}

func (r *PostgresRepo) UpdateProspectRecording(ctx context.Context, orgID, callSid, recordingURL, transcription string, at time.Time) error {
	const q = `
UPDATE prospects
SET recording_url = $3,
    transcription = CASE WHEN $4 <> '' THEN $4 ELSE transcription END,
    updated_at = $5
WHERE org_id = $1 AND call_sid = $2
`
	res, err := r.db.ExecContext(ctx, q, orgID, callSid, recordingURL, transcription, at)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepo) CreateLeadActivity(ctx context.Context, a LeadActivity) error {
	const q = `
INSERT INTO lead_activities (
  id, org_id, lead_id, type, call_sid, duration_secs, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7
)
`
	_, err := r.db.ExecContext(ctx, q,
		a.ID, a.OrgID, a.LeadID, a.Type, a.CallSid, a.DurationSecs, a.CreatedAt,
	)
	return err
}
