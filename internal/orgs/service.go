package orgs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"callflow-platform/internal/tier"
)

// Repository is the persistence contract for organizations and their
// telephony configuration.
type Repository interface {
	GetOrganization(ctx context.Context, orgID string) (Organization, error)

	// GetPhoneConfiguration returns ErrNotFound when the org has never saved
	// settings; the service translates that into defaults.
	GetPhoneConfiguration(ctx context.Context, orgID string) (PhoneConfiguration, error)
	SavePhoneConfiguration(ctx context.Context, cfg PhoneConfiguration) error

	// FindTrainingNumber resolves a dialed number against the org's training
	// pool. Returns ErrNotFound when the number is not in the pool.
	FindTrainingNumber(ctx context.Context, orgID, number string) (TrainingNumber, error)
	ListTrainingNumbers(ctx context.Context, orgID string) ([]TrainingNumber, error)
}

var (
	ErrNotFound      = errors.New("orgs: not found")
	ErrInvalidConfig = errors.New("orgs: invalid configuration")
)

// Service owns org lookup, phone configuration and the training-number pool.
type Service struct {
	repo  Repository
	gate  tier.Gate
	clock func() time.Time
}

func NewService(repo Repository, gate tier.Gate) *Service {
	return &Service{repo: repo, gate: gate, clock: time.Now}
}

func (s *Service) GetOrganization(ctx context.Context, orgID string) (Organization, error) {
	if orgID == "" {
		return Organization{}, ErrNotFound
	}
	return s.repo.GetOrganization(ctx, orgID)
}

// PhoneConfiguration returns the org's saved settings, or defaults when
// nothing was ever saved. The read path never fails on absence.
func (s *Service) PhoneConfiguration(ctx context.Context, orgID string) (PhoneConfiguration, error) {
	cfg, err := s.repo.GetPhoneConfiguration(ctx, orgID)
	if errors.Is(err, ErrNotFound) {
		return DefaultPhoneConfiguration(orgID), nil
	}
	if err != nil {
		return PhoneConfiguration{}, err
	}
	if cfg.VoicemailMessage == "" {
		cfg.VoicemailMessage = defaultVoicemailMessage
	}
	if cfg.MinOutboundDuration <= 0 {
		cfg.MinOutboundDuration = defaultMinOutboundDuration
	}
	return cfg, nil
}

// UpdatePhoneConfiguration validates and persists new settings.
// Recording flags are entitlement-checked here so a downgrade surfaces at
// save time, not silently at call time.
func (s *Service) UpdatePhoneConfiguration(ctx context.Context, cfg PhoneConfiguration) (PhoneConfiguration, error) {
	if cfg.OrgID == "" {
		return PhoneConfiguration{}, fmt.Errorf("%w: org id is required", ErrInvalidConfig)
	}
	if !cfg.InboundFlow.Valid() {
		return PhoneConfiguration{}, fmt.Errorf("%w: unknown inbound flow %q", ErrInvalidConfig, cfg.InboundFlow)
	}
	if cfg.MinOutboundDuration < 0 {
		return PhoneConfiguration{}, fmt.Errorf("%w: min outbound duration must not be negative", ErrInvalidConfig)
	}

	org, err := s.repo.GetOrganization(ctx, cfg.OrgID)
	if err != nil {
		return PhoneConfiguration{}, err
	}
	if cfg.RecordInboundCalls || cfg.RecordOutboundCalls {
		if err := tier.RequireRecording(s.gate, org.Tier); err != nil {
			return PhoneConfiguration{}, err
		}
	}

	if cfg.VoicemailMessage == "" {
		cfg.VoicemailMessage = defaultVoicemailMessage
	}
	if cfg.MinOutboundDuration == 0 {
		cfg.MinOutboundDuration = defaultMinOutboundDuration
	}
	cfg.UpdatedAt = s.clock().UTC()

	if err := s.repo.SavePhoneConfiguration(ctx, cfg); err != nil {
		return PhoneConfiguration{}, err
	}
	return cfg, nil
}

// NormalizeNumber is the canonical form for training-pool entries and
// lookups. Pool matching is case-insensitive, so every caller id and every
// stored entry goes through this one function.
func NormalizeNumber(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ResolveTrainingNumber reports whether the caller id belongs to the org's
// training pool. The match is exact after normalization, so `Client:Coach`
// and `client:coach` resolve to the same entry.
func (s *Service) ResolveTrainingNumber(ctx context.Context, orgID, number string) (TrainingNumber, bool, error) {
	number = NormalizeNumber(number)
	if number == "" {
		return TrainingNumber{}, false, nil
	}
	tn, err := s.repo.FindTrainingNumber(ctx, orgID, number)
	if errors.Is(err, ErrNotFound) {
		return TrainingNumber{}, false, nil
	}
	if err != nil {
		return TrainingNumber{}, false, err
	}
	return tn, true, nil
}
