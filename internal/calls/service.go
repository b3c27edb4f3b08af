package calls

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"callflow-platform/internal/telephony"
)

// Repository is the persistence contract for calls and the sid owner index.
type Repository interface {
	GetBySid(ctx context.Context, orgID, callSid string) (Call, error)
	Create(ctx context.Context, c Call) error
	Update(ctx context.Context, c Call) error
	ListByOrg(ctx context.Context, orgID string, since time.Time) ([]Call, error)

	// RegisterOwner is first-write-wins. Re-registering the identical owner
	// is a no-op; a different owner for the same sid returns ErrOwnerConflict.
	RegisterOwner(ctx context.Context, o Owner) error
	ResolveOwner(ctx context.Context, orgID, callSid string) (Owner, error)
}

var (
	ErrNotFound      = errors.New("calls: not found")
	ErrOwnerConflict = errors.New("calls: call sid already owned by another entity")
)

// Service maintains call records from webhook events.
type Service struct {
	repo  Repository
	log   *slog.Logger
	clock func() time.Time
}

func NewService(repo Repository, log *slog.Logger) *Service {
	return &Service{repo: repo, log: log, clock: time.Now}
}

// UpsertCall creates or merges the call record for a status event.
//
// Events without both lead and session correlation ids describe legs this
// service does not track (inbound legs, third-party calls); those return
// (nil, nil) rather than an error so the webhook path stays quiet.
func (s *Service) UpsertCall(ctx context.Context, orgID string, ev telephony.WebhookEvent) (*Call, error) {
	if orgID == "" || ev.CallSid == "" {
		return nil, errors.New("calls: org id and call sid are required")
	}
	if ev.LeadID == "" || ev.CallSessionID == "" {
		return nil, nil
	}

	now := s.clock().UTC()

	existing, err := s.repo.GetBySid(ctx, orgID, ev.CallSid)
	if errors.Is(err, ErrNotFound) {
		c := Call{
			ID:            uuid.NewString(),
			OrgID:         orgID,
			CallSid:       ev.CallSid,
			LeadID:        ev.LeadID,
			CallSessionID: ev.CallSessionID,
			CreatedUserID: ev.UserID,
			Direction:     ev.Direction,
			FromNumber:    ev.From,
			ToNumber:      ev.To,
			Status:        ev.CallStatus,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		applyStatusTimes(&c, ev, now)
		if err := s.repo.Create(ctx, c); err != nil {
			return nil, fmt.Errorf("calls: create %s: %w", ev.CallSid, err)
		}
		// The call row claims its own sid for recording attachment. An inbound
		// entity may have claimed it first; that is not fatal here.
		if err := s.RegisterOwner(ctx, orgID, c.CallSid, OwnerCall, c.ID); err != nil && !errors.Is(err, ErrOwnerConflict) {
			return nil, err
		}
		return &c, nil
	}
	if err != nil {
		return nil, err
	}

	merged := mergeEvent(existing, ev, now)
	if err := s.repo.Update(ctx, merged); err != nil {
		return nil, fmt.Errorf("calls: update %s: %w", ev.CallSid, err)
	}
	return &merged, nil
}

// mergeEvent folds a possibly late or duplicate event into the stored call.
// Once a terminal status is recorded it is frozen; late non-terminal events
// may still fill missing fields but never move the status back.
func mergeEvent(c Call, ev telephony.WebhookEvent, now time.Time) Call {
	if !c.Status.IsTerminal() && ev.CallStatus != "" {
		c.Status = ev.CallStatus
	}
	if c.FromNumber == "" {
		c.FromNumber = ev.From
	}
	if c.ToNumber == "" {
		c.ToNumber = ev.To
	}
	if c.CreatedUserID == "" {
		c.CreatedUserID = ev.UserID
	}
	if c.Direction == "" {
		c.Direction = ev.Direction
	}
	applyStatusTimes(&c, ev, now)
	c.UpdatedAt = now
	return c
}

func applyStatusTimes(c *Call, ev telephony.WebhookEvent, now time.Time) {
	switch ev.CallStatus {
	case telephony.CallStatusInProgress:
		if c.StartedAt.IsZero() {
			c.StartedAt = now
		}
	case telephony.CallStatusCompleted, telephony.CallStatusBusy,
		telephony.CallStatusFailed, telephony.CallStatusNoAnswer,
		telephony.CallStatusCanceled:
		if c.EndedAt.IsZero() {
			c.EndedAt = now
		}
		if c.DurationSecs == 0 && !c.StartedAt.IsZero() {
			c.DurationSecs = int(c.EndedAt.Sub(c.StartedAt) / time.Second)
		}
	}
	if ev.CallDuration > 0 {
		c.DurationSecs = ev.CallDuration
	}
}

// AttachRecording stores the recording URL (and transcription when present)
// on the call record. A finished recording proves the leg ended, so the
// record is also closed here; the terminal freeze in mergeEvent keeps this
// safe whether the status callback lands before or after.
func (s *Service) AttachRecording(ctx context.Context, orgID, callSid, recordingURL, transcription string, durationSecs int) (*Call, error) {
	c, err := s.repo.GetBySid(ctx, orgID, callSid)
	if err != nil {
		return nil, err
	}
	now := s.clock().UTC()
	c.RecordingURL = recordingURL
	if transcription != "" {
		c.Transcription = transcription
	}
	stampCompleted(&c, durationSecs, now)
	c.UpdatedAt = now
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, err
	}
	return &c, nil
}

// MarkCompleted closes a tracked call without recording fields, for legs
// whose recording was discarded but whose end is known.
func (s *Service) MarkCompleted(ctx context.Context, orgID, callSid string, durationSecs int) (*Call, error) {
	c, err := s.repo.GetBySid(ctx, orgID, callSid)
	if err != nil {
		return nil, err
	}
	now := s.clock().UTC()
	stampCompleted(&c, durationSecs, now)
	c.UpdatedAt = now
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, err
	}
	return &c, nil
}

// stampCompleted is idempotent: an existing terminal status is kept, end
// time and duration are filled only when missing.
func stampCompleted(c *Call, durationSecs int, now time.Time) {
	if !c.Status.IsTerminal() {
		c.Status = telephony.CallStatusCompleted
	}
	if c.EndedAt.IsZero() {
		c.EndedAt = now
	}
	if c.DurationSecs == 0 && durationSecs > 0 {
		c.DurationSecs = durationSecs
	}
}

// RegisterOwner claims a call sid for an entity. Conflicts are logged and
// surfaced; callers on the webhook path treat them as non-fatal.
func (s *Service) RegisterOwner(ctx context.Context, orgID, callSid string, kind OwnerKind, ownerID string) error {
	if callSid == "" || ownerID == "" {
		return errors.New("calls: call sid and owner id are required")
	}
	err := s.repo.RegisterOwner(ctx, Owner{
		OrgID:     orgID,
		CallSid:   callSid,
		Kind:      kind,
		OwnerID:   ownerID,
		CreatedAt: s.clock().UTC(),
	})
	if errors.Is(err, ErrOwnerConflict) {
		s.log.Warn("call sid owner conflict",
			"org_id", orgID, "call_sid", callSid, "kind", string(kind), "owner_id", ownerID)
	}
	return err
}

// ResolveOwner returns the registered owner for a sid, or ErrNotFound.
func (s *Service) ResolveOwner(ctx context.Context, orgID, callSid string) (Owner, error) {
	return s.repo.ResolveOwner(ctx, orgID, callSid)
}

// ListByOrg returns the org's calls since a point in time, newest first.
func (s *Service) ListByOrg(ctx context.Context, orgID string, since time.Time) ([]Call, error) {
	return s.repo.ListByOrg(ctx, orgID, since)
}
