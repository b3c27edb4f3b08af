package flow

import "time"

// StepID names one stage of the per-call flow.
type StepID string

const (
	StepCallStart      StepID = "call-start"
	StepCallActive     StepID = "call-active"
	StepCallComplete   StepID = "call-complete"
	StepRecordingCheck StepID = "recording-check"
	StepLeadUpdate     StepID = "lead-update"
)

// orderedSteps is the fixed execution order. Configuration can disable steps
// but never reorder them.
var orderedSteps = []StepID{
	StepCallStart,
	StepCallActive,
	StepCallComplete,
	StepRecordingCheck,
	StepLeadUpdate,
}

func knownStep(id StepID) bool {
	for _, s := range orderedSteps {
		if s == id {
			return true
		}
	}
	return false
}

// StepSetting toggles one step.
type StepSetting struct {
	ID      StepID `json:"id"`
	Enabled bool   `json:"enabled"`
}

// Configuration is the per-org flow behavior.
//
// Invariants:
// - Unknown step ids in Steps are ignored.
// - A known step with no entry defaults to enabled.
// - The default configuration is computed on read and never persisted.
type Configuration struct {
	OrgID string `json:"org_id" db:"org_id"`

	// MinCallDuration is the strict lower bound, in seconds, for the
	// recording-check step to run. A call lasting exactly this long does
	// not qualify.
	MinCallDuration int `json:"min_call_duration" db:"min_call_duration"`

	RecordingEnabled     bool `json:"recording_enabled" db:"recording_enabled"`
	TranscriptionEnabled bool `json:"transcription_enabled" db:"transcription_enabled"`
	AutoCreateLeads      bool `json:"auto_create_leads" db:"auto_create_leads"`
	AutoCreateFollowUps  bool `json:"auto_create_follow_ups" db:"auto_create_follow_ups"`

	Steps []StepSetting `json:"steps" db:"steps"`

	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

const defaultMinCallDuration = 30

// DefaultConfiguration is what every org runs until it customizes the flow.
func DefaultConfiguration(orgID string) Configuration {
	return Configuration{
		OrgID:                orgID,
		MinCallDuration:      defaultMinCallDuration,
		RecordingEnabled:     true,
		TranscriptionEnabled: true,
		AutoCreateLeads:      true,
		AutoCreateFollowUps:  true,
	}
}

// StepEnabled resolves one step's toggle. Missing entries default to
// enabled; entries for unknown steps are ignored entirely.
func (c Configuration) StepEnabled(id StepID) bool {
	if !knownStep(id) {
		return false
	}
	for _, s := range c.Steps {
		if s.ID == id {
			return s.Enabled
		}
	}
	return true
}
