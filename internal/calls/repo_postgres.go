package calls

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// NOTE: This repository assumes the following tables exist:
// - calls with UNIQUE (org_id, call_sid)
// - call_sid_owners with PRIMARY KEY (org_id, call_sid)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const callColumns = `
id, org_id, call_sid, lead_id, call_session_id, created_user_id,
direction, from_number, to_number, status,
started_at, ended_at, duration_secs, recording_url, transcription,
created_at, updated_at`

func scanCall(row interface{ Scan(...any) error }) (Call, error) {
	var c Call
	var startedAt, endedAt sql.NullTime
	err := row.Scan(
		&c.ID,
		&c.OrgID,
		&c.CallSid,
		&c.LeadID,
		&c.CallSessionID,
		&c.CreatedUserID,
		&c.Direction,
		&c.FromNumber,
		&c.ToNumber,
		&c.Status,
		&startedAt,
		&endedAt,
		&c.DurationSecs,
		&c.RecordingURL,
		&c.Transcription,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return Call{}, err
	}
	if startedAt.Valid {
		c.StartedAt = startedAt.Time
	}
	if endedAt.Valid {
		c.EndedAt = endedAt.Time
	}
	return c, nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func (r *PostgresRepo) GetBySid(ctx context.Context, orgID, callSid string) (Call, error) {
	const q = `
SELECT ` + callColumns + `
FROM calls
WHERE org_id = $1 AND call_sid = $2
`
	c, err := scanCall(r.db.QueryRowContext(ctx, q, orgID, callSid))
	if errors.Is(err, sql.ErrNoRows) {
		return Call{}, ErrNotFound
	}
	return c, err
}

func (r *PostgresRepo) Create(ctx context.Context, c Call) error {
	const q = `
INSERT INTO calls (
  id, org_id, call_sid, lead_id, call_session_id, created_user_id,
  direction, from_number, to_number, status,
  started_at, ended_at, duration_secs, recording_url, transcription,
  created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17
)
ON CONFLICT (org_id, call_sid) DO NOTHING
`
	_, err := r.db.ExecContext(ctx, q,
		c.ID, c.OrgID, c.CallSid, c.LeadID, c.CallSessionID, c.CreatedUserID,
		c.Direction, c.FromNumber, c.ToNumber, c.Status,
		nullTime(c.StartedAt), nullTime(c.EndedAt), c.DurationSecs, c.RecordingURL, c.Transcription,
		c.CreatedAt, c.UpdatedAt,
	)
	return err
}

func (r *PostgresRepo) Update(ctx context.Context, c Call) error {
	const q = `
UPDATE calls
SET lead_id = $3, call_session_id = $4, created_user_id = $5,
    direction = $6, from_number = $7, to_number = $8, status = $9,
    started_at = $10, ended_at = $11, duration_secs = $12,
    recording_url = $13, transcription = $14, updated_at = $15
WHERE org_id = $1 AND call_sid = $2
`
	res, err := r.db.ExecContext(ctx, q,
		c.OrgID, c.CallSid, c.LeadID, c.CallSessionID, c.CreatedUserID,
		c.Direction, c.FromNumber, c.ToNumber, c.Status,
		nullTime(c.StartedAt), nullTime(c.EndedAt), c.DurationSecs,
		c.RecordingURL, c.Transcription, c.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepo) ListByOrg(ctx context.Context, orgID string, since time.Time) ([]Call, error) {
	const q = `
SELECT ` + callColumns + `
FROM calls
WHERE org_id = $1 AND created_at >= $2
ORDER BY created_at DESC
`
	rows, err := r.db.QueryContext(ctx, q, orgID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Call
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) RegisterOwner(ctx context.Context, o Owner) error {
	// First write wins; an identical re-registration is a no-op.
	const q = `
INSERT INTO call_sid_owners (org_id, call_sid, kind, owner_id, created_at)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (org_id, call_sid) DO NOTHING
`
	res, err := r.db.ExecContext(ctx, q, o.OrgID, o.CallSid, o.Kind, o.OwnerID, o.CreatedAt)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		cur, err := r.ResolveOwner(ctx, o.OrgID, o.CallSid)
		if err != nil {
			return err
		}
		if cur.Kind != o.Kind || cur.OwnerID != o.OwnerID {
			return ErrOwnerConflict
		}
	}
	return nil
}

func (r *PostgresRepo) ResolveOwner(ctx context.Context, orgID, callSid string) (Owner, error) {
	const q = `
SELECT org_id, call_sid, kind, owner_id, created_at
FROM call_sid_owners
WHERE org_id = $1 AND call_sid = $2
`
	var o Owner
	if err := r.db.QueryRowContext(ctx, q, orgID, callSid).Scan(
		&o.OrgID,
		&o.CallSid,
		&o.Kind,
		&o.OwnerID,
		&o.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Owner{}, ErrNotFound
		}
		return Owner{}, err
	}
	return o, nil
}
