package audit

import (
	"time"

	"callflow-platform/internal/flow"
)

// ExecutionRecord is an immutable, append-only record of one flow run.
//
// Invariants:
// - Records are never updated or deleted.
// - org_id is required for tenancy isolation.
// - Writing is best-effort; do not block webhook processing on audit failures.
//
// Storage recommendation (Postgres):
// - Table flow_executions with an INSERT-only policy.
// - Optional: partition by time for retention.

type ExecutionRecord struct {
	ID      string `json:"id" db:"id"`
	OrgID   string `json:"org_id" db:"org_id"`
	CallSid string `json:"call_sid" db:"call_sid"`

	Success bool `json:"success" db:"success"`

	// Steps is the execution log returned by the engine, verbatim.
	Steps []flow.StepResult `json:"steps" db:"steps"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
