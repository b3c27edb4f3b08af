package reporting

import (
	"context"
	"errors"
	"time"

	"callflow-platform/internal/calls"
	"callflow-platform/internal/telephony"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// Repository abstracts data access for reporting.
//
// IMPORTANT:
// - Methods must enforce org filtering.
// - Implementations should query immutable sources when possible (call
//   records, flow execution logs).

type Repository interface {
	ListCalls(ctx context.Context, orgID string, from, to time.Time, userID string) ([]calls.Call, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

func (s *Service) CallsSummary(ctx context.Context, req CallsSummaryRequest) (CallsSummary, error) {
	if req.OrgID == "" {
		return CallsSummary{}, ErrInvalidRequest
	}
	if req.Range.From.IsZero() || req.Range.To.IsZero() || !req.Range.To.After(req.Range.From) {
		return CallsSummary{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return CallsSummary{}, errors.New("reporting: repository not configured")
	}

	rows, err := s.repo.ListCalls(ctx, req.OrgID, req.Range.From, req.Range.To, req.UserID)
	if err != nil {
		return CallsSummary{}, err
	}

	out := CallsSummary{OrgID: req.OrgID, UserID: req.UserID}
	for _, c := range rows {
		out.TotalCalls++
		out.TotalDurationSeconds += c.DurationSecs
		if c.RecordingURL != "" {
			out.RecordedCalls++
		}
		if c.Transcription != "" {
			out.TranscribedCalls++
		}
		if c.Direction.IsInbound() {
			out.InboundCalls++
		} else {
			out.OutboundCalls++
		}
		switch c.Status {
		case telephony.CallStatusCompleted:
			out.CompletedCalls++
		case telephony.CallStatusFailed:
			out.FailedCalls++
		case telephony.CallStatusNoAnswer:
			out.NoAnswerCalls++
		case telephony.CallStatusBusy:
			out.BusyCalls++
		case telephony.CallStatusCanceled:
			out.CanceledCalls++
		case telephony.CallStatusInProgress:
			out.InProgressCalls++
		case telephony.CallStatusInitiated, telephony.CallStatusRinging:
			// not counted separately
		}
	}
	if out.TotalCalls > 0 {
		out.AverageDurationSeconds = out.TotalDurationSeconds / out.TotalCalls
	}
	return out, nil
}
