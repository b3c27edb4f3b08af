package leads

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"callflow-platform/internal/calls"
	"callflow-platform/internal/email"
)

// Repository is the persistence contract for leads and the records the
// inbound lifecycle produces.
type Repository interface {
	FindLeadByPhone(ctx context.Context, orgID, phone string) (Lead, error)
	GetLead(ctx context.Context, orgID, leadID string) (Lead, error)
	TouchLastContacted(ctx context.Context, orgID, leadID string, at time.Time) error

	GetFollowUpByCallSid(ctx context.Context, orgID, callSid string) (FollowUp, error)
	// CreateFollowUpWithNotification persists both rows atomically.
	CreateFollowUpWithNotification(ctx context.Context, fu FollowUp, n Notification) error
	UpdateFollowUpRecording(ctx context.Context, orgID, callSid, recordingURL, transcription string, at time.Time) error

	GetProspectByCallSid(ctx context.Context, orgID, callSid string) (Prospect, error)
	CreateProspect(ctx context.Context, p Prospect) error
	UpdateProspectRecording(ctx context.Context, orgID, callSid, recordingURL, transcription string, at time.Time) error

	CreateLeadActivity(ctx context.Context, a LeadActivity) error
}

// OwnerRegistry claims call sids for recording attachment.
type OwnerRegistry interface {
	RegisterOwner(ctx context.Context, orgID, callSid string, kind calls.OwnerKind, ownerID string) error
}

// Notifier delivers follow-up emails. Delivery is best-effort.
type Notifier interface {
	SendFollowUpNotification(ctx context.Context, n email.FollowUpNotification) error
}

var ErrNotFound = errors.New("leads: not found")

const followUpDueAfter = 24 * time.Hour

// Service manages the lead lifecycle driven by inbound calls: follow-ups for
// known leads, prospects for unknown callers, and call activity on leads.
type Service struct {
	repo     Repository
	owners   OwnerRegistry
	notifier Notifier
	log      *slog.Logger

	emailTimeout time.Duration
	clock        func() time.Time
}

func NewService(repo Repository, owners OwnerRegistry, notifier Notifier, log *slog.Logger) *Service {
	return &Service{
		repo:         repo,
		owners:       owners,
		notifier:     notifier,
		log:          log,
		emailTimeout: 10 * time.Second,
		clock:        time.Now,
	}
}

// CheckIfLead resolves an inbound caller number to a known lead.
// Absence is not an error; unknown callers become prospects instead.
func (s *Service) CheckIfLead(ctx context.Context, orgID, phone string) (*Lead, error) {
	if phone == "" {
		return nil, nil
	}
	l, err := s.repo.FindLeadByPhone(ctx, orgID, phone)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// CreateFollowUp records a missed call or voicemail from a known lead.
//
// The FollowUp and its Notification are written in one transaction; the
// agent email afterwards is best-effort with its own timeout and never
// fails the call flow. Replays for the same CallSid return the existing
// follow-up.
func (s *Service) CreateFollowUp(ctx context.Context, lead Lead, callSid string, reason FollowUpReason) (*FollowUp, error) {
	if callSid == "" {
		return nil, errors.New("leads: call sid is required")
	}

	if existing, err := s.repo.GetFollowUpByCallSid(ctx, lead.OrgID, callSid); err == nil {
		return &existing, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := s.clock().UTC()
	fu := FollowUp{
		ID:        uuid.NewString(),
		OrgID:     lead.OrgID,
		LeadID:    lead.ID,
		CallSid:   callSid,
		Reason:    reason,
		DueDate:   now.Add(followUpDueAfter),
		CreatedAt: now,
		UpdatedAt: now,
	}
	n := Notification{
		ID:        uuid.NewString(),
		OrgID:     lead.OrgID,
		UserID:    lead.AssignedUserID,
		LeadID:    lead.ID,
		Type:      NotificationTypeMissedCall,
		Message:   fmt.Sprintf("Missed call from %s", displayName(lead)),
		CreatedAt: now,
	}

	if err := s.repo.CreateFollowUpWithNotification(ctx, fu, n); err != nil {
		return nil, fmt.Errorf("leads: create follow-up for %s: %w", callSid, err)
	}
	if err := s.owners.RegisterOwner(ctx, lead.OrgID, callSid, calls.OwnerFollowUp, fu.ID); err != nil {
		s.log.Warn("follow-up owner registration failed",
			"org_id", lead.OrgID, "call_sid", callSid, "error", err)
	}

	s.sendFollowUpEmail(lead, fu)
	return &fu, nil
}

// sendFollowUpEmail notifies the assigned agent. Uses a fresh context so a
// canceled webhook request cannot abort the send mid-flight.
func (s *Service) sendFollowUpEmail(lead Lead, fu FollowUp) {
	if s.notifier == nil || lead.AssignedUserEmail == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.emailTimeout)
	defer cancel()

	err := s.notifier.SendFollowUpNotification(ctx, email.FollowUpNotification{
		To:         lead.AssignedUserEmail,
		LeadName:   lead.Name,
		FromNumber: lead.Phone,
		Reason:     string(fu.Reason),
		DueDate:    fu.DueDate,
	})
	if err != nil {
		s.log.Warn("follow-up email failed",
			"org_id", lead.OrgID, "lead_id", lead.ID, "error", err)
	}
}

// CreateProspect records an inbound call from an unknown number.
// Replays for the same CallSid return the existing prospect.
func (s *Service) CreateProspect(ctx context.Context, orgID, phone, callSid, source string) (*Prospect, error) {
	if callSid == "" {
		return nil, errors.New("leads: call sid is required")
	}

	if existing, err := s.repo.GetProspectByCallSid(ctx, orgID, callSid); err == nil {
		return &existing, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := s.clock().UTC()
	p := Prospect{
		ID:        uuid.NewString(),
		OrgID:     orgID,
		Phone:     phone,
		CallSid:   callSid,
		Source:    source,
		Status:    ProspectStatusNew,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateProspect(ctx, p); err != nil {
		return nil, fmt.Errorf("leads: create prospect for %s: %w", callSid, err)
	}
	if err := s.owners.RegisterOwner(ctx, orgID, callSid, calls.OwnerProspect, p.ID); err != nil {
		s.log.Warn("prospect owner registration failed",
			"org_id", orgID, "call_sid", callSid, "error", err)
	}
	return &p, nil
}

// UpdateFollowUpWithRecording attaches recording fields by CallSid.
// Overwrites are idempotent; replayed callbacks write the same values.
func (s *Service) UpdateFollowUpWithRecording(ctx context.Context, orgID, callSid, recordingURL, transcription string) error {
	return s.repo.UpdateFollowUpRecording(ctx, orgID, callSid, recordingURL, transcription, s.clock().UTC())
}

// UpdateProspectWithRecording attaches recording fields by CallSid.
func (s *Service) UpdateProspectWithRecording(ctx context.Context, orgID, callSid, recordingURL, transcription string) error {
	return s.repo.UpdateProspectRecording(ctx, orgID, callSid, recordingURL, transcription, s.clock().UTC())
}

// TouchLastContacted stamps the lead after a completed tracked call.
func (s *Service) TouchLastContacted(ctx context.Context, orgID, leadID string) error {
	return s.repo.TouchLastContacted(ctx, orgID, leadID, s.clock().UTC())
}

// RecordCallActivity appends a CALL entry to the lead timeline.
func (s *Service) RecordCallActivity(ctx context.Context, orgID, leadID, callSid string, durationSecs int) error {
	if leadID == "" {
		return errors.New("leads: lead id is required")
	}
	return s.repo.CreateLeadActivity(ctx, LeadActivity{
		ID:           uuid.NewString(),
		OrgID:        orgID,
		LeadID:       leadID,
		Type:         ActivityTypeCall,
		CallSid:      callSid,
		DurationSecs: durationSecs,
		CreatedAt:    s.clock().UTC(),
	})
}

func displayName(l Lead) string {
	if l.Name != "" {
		return l.Name
	}
	return l.Phone
}
