package calls

import (
	"time"

	"callflow-platform/internal/telephony"
)

// Call is one provider call leg tracked end to end.
//
// Invariants:
// - CallSid is the sole idempotency key; at most one Call exists per sid.
// - A terminal status is never regressed by a late or replayed callback.
// - A Call row is only created when both lead and session correlation ids
//   are present on the event.
type Call struct {
	ID      string `json:"id" db:"id"`
	OrgID   string `json:"org_id" db:"org_id"`
	CallSid string `json:"call_sid" db:"call_sid"`

	LeadID        string `json:"lead_id" db:"lead_id"`
	CallSessionID string `json:"call_session_id" db:"call_session_id"`
	// CreatedUserID is the agent who placed the call, when known.
	CreatedUserID string `json:"created_user_id,omitempty" db:"created_user_id"`

	Direction  telephony.Direction  `json:"direction" db:"direction"`
	FromNumber string               `json:"from_number" db:"from_number"`
	ToNumber   string               `json:"to_number" db:"to_number"`
	Status     telephony.CallStatus `json:"status" db:"status"`

	// StartedAt and EndedAt are zero until the corresponding callback arrives.
	StartedAt time.Time `json:"started_at,omitempty" db:"started_at"`
	EndedAt   time.Time `json:"ended_at,omitempty" db:"ended_at"`
	// DurationSecs is derived from the provider's reported duration.
	DurationSecs int `json:"duration_secs" db:"duration_secs"`

	RecordingURL  string `json:"recording_url,omitempty" db:"recording_url"`
	Transcription string `json:"transcription,omitempty" db:"transcription"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// OwnerKind discriminates what entity a call sid belongs to for recording
// attachment.
type OwnerKind string

const (
	OwnerFollowUp OwnerKind = "follow_up"
	OwnerProspect OwnerKind = "prospect"
	OwnerCall     OwnerKind = "call"
)

// Owner maps a call sid to the single entity that claims its recording.
// Registration happens exactly where the entity is created, so the recording
// path never probes entity tables in sequence.
type Owner struct {
	OrgID   string    `json:"org_id" db:"org_id"`
	CallSid string    `json:"call_sid" db:"call_sid"`
	Kind    OwnerKind `json:"kind" db:"kind"`
	// OwnerID is the id of the follow-up, prospect or call row.
	OwnerID string `json:"owner_id" db:"owner_id"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
