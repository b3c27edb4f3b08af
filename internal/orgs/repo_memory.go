package orgs

import (
	"context"
	"sync"
)

// MemoryRepo is a simple in-memory repository useful for tests.
// It is not intended for production use.

type MemoryRepo struct {
	mu       sync.Mutex
	orgs     map[string]Organization
	configs  map[string]PhoneConfiguration
	training map[string]map[string]TrainingNumber // orgID -> number -> entry
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		orgs:     make(map[string]Organization),
		configs:  make(map[string]PhoneConfiguration),
		training: make(map[string]map[string]TrainingNumber),
	}
}

func (r *MemoryRepo) PutOrganization(o Organization) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orgs[o.ID] = o
}

func (r *MemoryRepo) PutTrainingNumber(tn TrainingNumber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.training[tn.OrgID] == nil {
		r.training[tn.OrgID] = make(map[string]TrainingNumber)
	}
	// Keyed by the normalized number so lookups are case-insensitive.
	r.training[tn.OrgID][NormalizeNumber(tn.Number)] = tn
}

func (r *MemoryRepo) GetOrganization(ctx context.Context, orgID string) (Organization, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orgs[orgID]
	if !ok {
		return Organization{}, ErrNotFound
	}
	return o, nil
}

func (r *MemoryRepo) GetPhoneConfiguration(ctx context.Context, orgID string) (PhoneConfiguration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg, ok := r.configs[orgID]
	if !ok {
		return PhoneConfiguration{}, ErrNotFound
	}
	return cfg, nil
}

func (r *MemoryRepo) SavePhoneConfiguration(ctx context.Context, cfg PhoneConfiguration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[cfg.OrgID] = cfg
	return nil
}

func (r *MemoryRepo) FindTrainingNumber(ctx context.Context, orgID, number string) (TrainingNumber, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tn, ok := r.training[orgID][NormalizeNumber(number)]
	if !ok {
		return TrainingNumber{}, ErrNotFound
	}
	return tn, nil
}

func (r *MemoryRepo) ListTrainingNumbers(ctx context.Context, orgID string) ([]TrainingNumber, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]TrainingNumber, 0, len(r.training[orgID]))
	for _, tn := range r.training[orgID] {
		out = append(out, tn)
	}
	return out, nil
}
