package reporting

import (
	"context"
	"database/sql"
	"time"

	"callflow-platform/internal/calls"
)

// PostgresRepo reads aggregation inputs straight from the calls table. Call
// rows are effectively immutable once their leg is terminal, so reports stay
// reproducible without a separate warehouse.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) ListCalls(ctx context.Context, orgID string, from, to time.Time, userID string) ([]calls.Call, error) {
	const q = `
SELECT id, org_id, call_sid, lead_id, call_session_id, created_user_id,
       direction, from_number, to_number, status,
       started_at, ended_at, duration_secs, recording_url, transcription,
       created_at, updated_at
FROM calls
WHERE org_id = $1
  AND created_at >= $2 AND created_at < $3
  AND ($4 = '' OR created_user_id = $4)
ORDER BY created_at
`
	rows, err := r.db.QueryContext(ctx, q, orgID, from, to, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []calls.Call
	for rows.Next() {
		var c calls.Call
		var startedAt, endedAt sql.NullTime
		if err := rows.Scan(
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
		); err != nil {
			return nil, err
		}
		if startedAt.Valid {
			c.StartedAt = startedAt.Time
		}
		if endedAt.Valid {
			c.EndedAt = endedAt.Time
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
