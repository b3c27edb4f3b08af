package reporting

import "time"

// Common filtering inputs.

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// CallsSummaryRequest requests aggregated call metrics.
// Org isolation: OrgID is required.

type CallsSummaryRequest struct {
	OrgID  string    `json:"org_id"`
	Range  TimeRange `json:"range"`
	UserID string    `json:"user_id,omitempty"`
}

type CallsSummary struct {
	OrgID  string `json:"org_id"`
	UserID string `json:"user_id,omitempty"`

	TotalCalls      int `json:"total_calls"`
	CompletedCalls  int `json:"completed_calls"`
	FailedCalls     int `json:"failed_calls"`
	NoAnswerCalls   int `json:"no_answer_calls"`
	BusyCalls       int `json:"busy_calls"`
	CanceledCalls   int `json:"canceled_calls"`
	InProgressCalls int `json:"in_progress_calls"`

	InboundCalls  int `json:"inbound_calls"`
	OutboundCalls int `json:"outbound_calls"`

	TotalDurationSeconds   int `json:"total_duration_seconds"`
	AverageDurationSeconds int `json:"average_duration_seconds"`

	RecordedCalls    int `json:"recorded_calls"`
	TranscribedCalls int `json:"transcribed_calls"`
}
