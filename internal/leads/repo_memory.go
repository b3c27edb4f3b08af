package leads

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo is a simple in-memory repository useful for tests.
// It is not intended for production use.

type MemoryRepo struct {
	mu            sync.Mutex
	leads         map[string]Lead     // orgID+"/"+leadID
	followUps     map[string]FollowUp // orgID+"/"+callSid
	prospects     map[string]Prospect // orgID+"/"+callSid
	notifications []Notification
	activities    []LeadActivity
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		leads:     make(map[string]Lead),
		followUps: make(map[string]FollowUp),
		prospects: make(map[string]Prospect),
	}
}

func key(orgID, id string) string { return orgID + "/" + id }

func (r *MemoryRepo) PutLead(l Lead) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leads[key(l.OrgID, l.ID)] = l
}

func (r *MemoryRepo) Notifications() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.notifications))
	copy(out, r.notifications)
	return out
}

func (r *MemoryRepo) Activities() []LeadActivity {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]LeadActivity, len(r.activities))
	copy(out, r.activities)
	return out
}

func (r *MemoryRepo) FindLeadByPhone(ctx context.Context, orgID, phone string) (Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.leads {
		if l.OrgID == orgID && l.Phone == phone {
			return l, nil
		}
	}
	return Lead{}, ErrNotFound
}

func (r *MemoryRepo) GetLead(ctx context.Context, orgID, leadID string) (Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.leads[key(orgID, leadID)]
	if !ok {
		return Lead{}, ErrNotFound
	}
	return l, nil
}

func (r *MemoryRepo) TouchLastContacted(ctx context.Context, orgID, leadID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.leads[key(orgID, leadID)]
	if !ok {
		return ErrNotFound
	}
	l.LastContactedAt = at
	l.UpdatedAt = at
	r.leads[key(orgID, leadID)] = l
	return nil
}

func (r *MemoryRepo) GetFollowUpByCallSid(ctx context.Context, orgID, callSid string) (FollowUp, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fu, ok := r.followUps[key(orgID, callSid)]
	if !ok {
		return FollowUp{}, ErrNotFound
	}
	return fu, nil
}

func (r *MemoryRepo) CreateFollowUpWithNotification(ctx context.Context, fu FollowUp, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.followUps[key(fu.OrgID, fu.CallSid)] = fu
	r.notifications = append(r.notifications, n)
	return nil
}

func (r *MemoryRepo) UpdateFollowUpRecording(ctx context.Context, orgID, callSid, recordingURL, transcription string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	fu, ok := r.followUps[key(orgID, callSid)]
	if !ok {
		return ErrNotFound
	}
	fu.RecordingURL = recordingURL
	if transcription != "" {
		fu.Transcription = transcription
	}
	fu.UpdatedAt = at
	r.followUps[key(orgID, callSid)] = fu
	return nil
}

func (r *MemoryRepo) GetProspectByCallSid(ctx context.Context, orgID, callSid string) (Prospect, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.prospects[key(orgID, callSid)]
	if !ok {
		return Prospect{}, ErrNotFound
	}
	return p, nil
}

func (r *MemoryRepo) CreateProspect(ctx context.Context, p Prospect) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prospects[key(p.OrgID, p.CallSid)] = p
	return nil
}

func (r *MemoryRepo) UpdateProspectRecording(ctx context.Context, orgID, callSid, recordingURL, transcription string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.prospects[key(orgID, callSid)]
	if !ok {
		return ErrNotFound
	}
	p.RecordingURL = recordingURL
	if transcription != "" {
		p.Transcription = transcription
	}
	p.UpdatedAt = at
	r.prospects[key(orgID, callSid)] = p
	return nil
}

func (r *MemoryRepo) CreateLeadActivity(ctx context.Context, a LeadActivity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activities = append(r.activities, a)
	return nil
}
