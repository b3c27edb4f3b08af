package orgs

import (
	"time"

	"callflow-platform/internal/tier"
)

// Organization is the tenant root. Every call, lead and configuration row is
// scoped to exactly one organization.
type Organization struct {
	ID   string    `json:"id" db:"id"`
	Name string    `json:"name" db:"name"`
	Tier tier.Tier `json:"tier" db:"tier"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// InboundFlow selects how an inbound call to a business number is handled.
type InboundFlow string

const (
	InboundFlowVoicemail InboundFlow = "voicemail"
	InboundFlowForward   InboundFlow = "forward"
	InboundFlowIVR       InboundFlow = "ivr"
)

func (f InboundFlow) Valid() bool {
	switch f {
	case InboundFlowVoicemail, InboundFlowForward, InboundFlowIVR:
		return true
	}
	return false
}

// PhoneConfiguration is the per-org telephony behavior knobs.
//
// Invariants:
// - Absent configuration means defaults; callers never see a not-found error
//   from the read path.
// - ForwardToNumber may legitimately be empty even when InboundFlow is
//   forward; the router degrades that combination to voicemail at call time.
type PhoneConfiguration struct {
	OrgID string `json:"org_id" db:"org_id"`

	InboundFlow      InboundFlow `json:"inbound_flow" db:"inbound_flow"`
	ForwardToNumber  string      `json:"forward_to_number,omitempty" db:"forward_to_number"`
	VoicemailMessage string      `json:"voicemail_message,omitempty" db:"voicemail_message"`

	RecordInboundCalls  bool `json:"record_inbound_calls" db:"record_inbound_calls"`
	RecordOutboundCalls bool `json:"record_outbound_calls" db:"record_outbound_calls"`

	// MinOutboundDuration is the minimum recording duration, in seconds, for
	// an outbound recording to be attached. Comparison is inclusive.
	MinOutboundDuration int `json:"min_outbound_duration" db:"min_outbound_duration"`

	AutoCreateLeads     bool `json:"auto_create_leads" db:"auto_create_leads"`
	AutoCreateFollowUps bool `json:"auto_create_follow_ups" db:"auto_create_follow_ups"`

	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

const (
	defaultVoicemailMessage    = "We are unable to take your call right now. Please leave a message after the tone."
	defaultMinOutboundDuration = 15
)

// DefaultPhoneConfiguration is what an org gets before anyone touches
// settings. It is computed, never persisted.
func DefaultPhoneConfiguration(orgID string) PhoneConfiguration {
	return PhoneConfiguration{
		OrgID:               orgID,
		InboundFlow:         InboundFlowVoicemail,
		VoicemailMessage:    defaultVoicemailMessage,
		RecordInboundCalls:  false,
		RecordOutboundCalls: true,
		MinOutboundDuration: defaultMinOutboundDuration,
		AutoCreateLeads:     true,
		AutoCreateFollowUps: true,
	}
}

// TrainingNumber is a pool number reserved for agent practice. Inbound calls
// to a training number bridge to the agent's browser client instead of the
// business inbound flow.
type TrainingNumber struct {
	OrgID string `json:"org_id" db:"org_id"`
	// Number is the E.164 dialed number.
	Number string `json:"number" db:"number"`
	// ClientName is the browser client identity to bridge to.
	ClientName string `json:"client_name" db:"client_name"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
