package audit

import (
	"context"
	"database/sql"
	"encoding/json"
)

// NOTE: This repository assumes the following table exists:
// - flow_executions (INSERT-only, steps stored as jsonb)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, rec ExecutionRecord) error {
	steps, err := json.Marshal(rec.Steps)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO flow_executions (
  id, org_id, call_sid, success, steps, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6
)
`
	_, err = r.db.ExecContext(ctx, q,
		rec.ID, rec.OrgID, rec.CallSid, rec.Success, steps, rec.CreatedAt,
	)
	return err
}

func (r *PostgresRepo) ListByCallSid(ctx context.Context, orgID, callSid string) ([]ExecutionRecord, error) {
	const q = `
SELECT id, org_id, call_sid, success, steps, created_at
FROM flow_executions
WHERE org_id = $1 AND call_sid = $2
ORDER BY created_at
`
	rows, err := r.db.QueryContext(ctx, q, orgID, callSid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ExecutionRecord
	for rows.Next() {
		var rec ExecutionRecord
		var steps []byte
		if err := rows.Scan(&rec.ID, &rec.OrgID, &rec.CallSid, &rec.Success, &steps, &rec.CreatedAt); err != nil {
			return nil, err
		}
		if len(steps) > 0 {
			if err := json.Unmarshal(steps, &rec.Steps); err != nil {
				return nil, err
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
