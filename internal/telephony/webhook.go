package telephony

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
)

// WebhookEvent is the normalized form of one provider voice callback.
// The provider posts application/x-www-form-urlencoded status fields; the
// dialer-originated correlation ids (lead_id, call_session_id, user_id) ride
// on the callback URL query string because the provider echoes it verbatim.
//
// Delivery contract: the same CallSid may arrive any number of times, with
// the same or an advancing CallStatus, in any order. CallSid is the only
// reliable idempotency key.
type WebhookEvent struct {
	CallSid    string
	From       string
	To         string
	Direction  Direction
	CallStatus CallStatus

	// CallDuration is the provider-reported leg duration in seconds; only
	// present on completed status callbacks.
	CallDuration int

	// Recording callback fields; empty unless this is a recording callback.
	RecordingURL      string
	RecordingStatus   RecordingStatus
	RecordingDuration int

	TranscriptionText string

	// IVR digit gathered by the provider, if any.
	Digits string

	// Correlation ids attached by the dialer when it originated the call.
	LeadID        string
	CallSessionID string
	UserID        string
}

type Direction string

const (
	DirectionInbound      Direction = "inbound"
	DirectionOutboundAPI  Direction = "outbound-api"
	DirectionOutboundDial Direction = "outbound-dial"
)

// IsInbound reports whether the leg originated at the provider edge.
func (d Direction) IsInbound() bool { return d == DirectionInbound }

type CallStatus string

const (
	CallStatusInitiated  CallStatus = "initiated"
	CallStatusRinging    CallStatus = "ringing"
	CallStatusInProgress CallStatus = "in-progress"
	CallStatusCompleted  CallStatus = "completed"
	CallStatusBusy       CallStatus = "busy"
	CallStatusFailed     CallStatus = "failed"
	CallStatusNoAnswer   CallStatus = "no-answer"
	CallStatusCanceled   CallStatus = "canceled"
)

// IsTerminal reports whether the status ends the leg. A terminal status must
// never be regressed by a late-arriving non-terminal update.
func (s CallStatus) IsTerminal() bool {
	switch s {
	case CallStatusCompleted, CallStatusBusy, CallStatusFailed, CallStatusNoAnswer, CallStatusCanceled:
		return true
	default:
		return false
	}
}

type RecordingStatus string

const (
	RecordingStatusPending   RecordingStatus = "in-progress"
	RecordingStatusCompleted RecordingStatus = "completed"
	RecordingStatusAbsent    RecordingStatus = "absent"
	RecordingStatusFailed    RecordingStatus = "failed"
)

// ErrMissingCallSid marks the only payload defect worth a non-2xx response:
// without a CallSid no idempotent processing is possible.
var ErrMissingCallSid = errors.New("telephony: webhook payload missing CallSid")

// ParseWebhookEvent normalizes a provider voice callback request.
// It never rejects unknown statuses; classification happens downstream.
func ParseWebhookEvent(r *http.Request) (WebhookEvent, error) {
	if err := r.ParseForm(); err != nil {
		return WebhookEvent{}, err
	}

	ev := WebhookEvent{
		CallSid:           strings.TrimSpace(r.PostFormValue("CallSid")),
		From:              normalizePhone(r.PostFormValue("From")),
		To:                normalizePhone(r.PostFormValue("To")),
		Direction:         Direction(strings.TrimSpace(r.PostFormValue("Direction"))),
		CallStatus:        CallStatus(strings.TrimSpace(r.PostFormValue("CallStatus"))),
		RecordingURL:      strings.TrimSpace(r.PostFormValue("RecordingUrl")),
		RecordingStatus:   RecordingStatus(strings.TrimSpace(r.PostFormValue("RecordingStatus"))),
		TranscriptionText: r.PostFormValue("TranscriptionText"),
		Digits:            strings.TrimSpace(r.PostFormValue("Digits")),
	}

	if v := strings.TrimSpace(r.PostFormValue("CallDuration")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			ev.CallDuration = n
		}
	}
	if v := strings.TrimSpace(r.PostFormValue("RecordingDuration")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			ev.RecordingDuration = n
		}
	}

	// Correlation ids: prefer the echoed query string, fall back to form
	// fields for providers that merge them.
	q := r.URL.Query()
	ev.LeadID = firstNonEmpty(q.Get("lead_id"), r.PostFormValue("lead_id"))
	ev.CallSessionID = firstNonEmpty(q.Get("call_session_id"), r.PostFormValue("call_session_id"))
	ev.UserID = firstNonEmpty(q.Get("user_id"), r.PostFormValue("user_id"))

	if ev.CallSid == "" {
		return WebhookEvent{}, ErrMissingCallSid
	}
	return ev, nil
}

// IsRecordingCallback reports whether the event carries recording fields
// rather than a leg status transition.
func (ev WebhookEvent) IsRecordingCallback() bool {
	return ev.RecordingStatus != "" || ev.RecordingURL != ""
}

// IsInitialSetup reports whether the provider expects a call-control document
// in the response: the first callback of an inbound leg.
func (ev WebhookEvent) IsInitialSetup() bool {
	if !ev.Direction.IsInbound() || ev.IsRecordingCallback() {
		return false
	}
	switch ev.CallStatus {
	case "", CallStatusInitiated, CallStatusRinging:
		return true
	default:
		return false
	}
}

func normalizePhone(s string) string {
	s = strings.TrimSpace(s)
	// The provider sometimes sends "anonymous" or empty; keep as-is.
	return s
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
