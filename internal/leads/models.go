package leads

import "time"

// Lead is a known contact belonging to an organization.
type Lead struct {
	ID    string `json:"id" db:"id"`
	OrgID string `json:"org_id" db:"org_id"`
	Name  string `json:"name" db:"name"`
	// Phone is the E.164 number used for inbound matching.
	Phone string `json:"phone" db:"phone"`
	Email string `json:"email,omitempty" db:"email"`

	AssignedUserID    string `json:"assigned_user_id,omitempty" db:"assigned_user_id"`
	AssignedUserEmail string `json:"assigned_user_email,omitempty" db:"assigned_user_email"`

	// LastContactedAt is zero until the first tracked call completes.
	LastContactedAt time.Time `json:"last_contacted_at,omitempty" db:"last_contacted_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type FollowUpReason string

const (
	ReasonVoicemail  FollowUpReason = "voicemail"
	ReasonMissedCall FollowUpReason = "missed_call"
)

// FollowUp is a task created when a known lead calls in and is not answered.
// Keyed by CallSid for recording attachment; at most one per sid.
type FollowUp struct {
	ID      string `json:"id" db:"id"`
	OrgID   string `json:"org_id" db:"org_id"`
	LeadID  string `json:"lead_id" db:"lead_id"`
	CallSid string `json:"call_sid" db:"call_sid"`

	Reason FollowUpReason `json:"reason" db:"reason"`
	// DueDate is 24 hours after creation.
	DueDate time.Time `json:"due_date" db:"due_date"`

	RecordingURL  string `json:"recording_url,omitempty" db:"recording_url"`
	Transcription string `json:"transcription,omitempty" db:"transcription"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

const ProspectStatusNew = "New"

// Prospect is an inbound caller whose number matched no known lead.
type Prospect struct {
	ID      string `json:"id" db:"id"`
	OrgID   string `json:"org_id" db:"org_id"`
	Phone   string `json:"phone" db:"phone"`
	CallSid string `json:"call_sid" db:"call_sid"`

	// Source names the flow that produced the prospect, e.g. "inbound_voicemail".
	Source string `json:"source" db:"source"`
	Status string `json:"status" db:"status"`

	RecordingURL  string `json:"recording_url,omitempty" db:"recording_url"`
	Transcription string `json:"transcription,omitempty" db:"transcription"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

const NotificationTypeMissedCall = "Missed Call"

// Notification is an in-app alert for the lead's assigned user. Created in
// the same transaction as its FollowUp so the two never drift apart.
type Notification struct {
	ID     string `json:"id" db:"id"`
	OrgID  string `json:"org_id" db:"org_id"`
	UserID string `json:"user_id" db:"user_id"`
	LeadID string `json:"lead_id" db:"lead_id"`

	Type    string `json:"type" db:"type"`
	Message string `json:"message" db:"message"`
	Read    bool   `json:"read" db:"read"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

const ActivityTypeCall = "CALL"

// LeadActivity is one timeline entry on a lead.
type LeadActivity struct {
	ID     string `json:"id" db:"id"`
	OrgID  string `json:"org_id" db:"org_id"`
	LeadID string `json:"lead_id" db:"lead_id"`

	Type         string `json:"type" db:"type"`
	CallSid      string `json:"call_sid,omitempty" db:"call_sid"`
	DurationSecs int    `json:"duration_secs" db:"duration_secs"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
