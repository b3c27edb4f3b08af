package flow

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"callflow-platform/internal/orgs"
	"callflow-platform/internal/tier"
)

// Repository is the persistence contract for flow configurations.
type Repository interface {
	// GetConfiguration returns ErrNotFound for orgs that never customized
	// the flow; the store translates that into the computed default.
	GetConfiguration(ctx context.Context, orgID string) (Configuration, error)
	SaveConfiguration(ctx context.Context, cfg Configuration) error
}

var (
	ErrNotFound      = errors.New("flow: configuration not found")
	ErrInvalidConfig = errors.New("flow: invalid configuration")
)

const cacheTTL = 5 * time.Minute

// ConfigStore is a redis read-through cache over the configuration repo.
// Every webhook event reads the configuration, so the cache keeps the hot
// path off Postgres; redis failures fall back to the repo.
type ConfigStore struct {
	repo  Repository
	rdb   *redis.Client
	orgs  *orgs.Service
	gate  tier.Gate
	log   *slog.Logger
	clock func() time.Time
}

func NewConfigStore(repo Repository, rdb *redis.Client, orgSvc *orgs.Service, gate tier.Gate, log *slog.Logger) *ConfigStore {
	return &ConfigStore{
		repo:  repo,
		rdb:   rdb,
		orgs:  orgSvc,
		gate:  gate,
		log:   log,
		clock: time.Now,
	}
}

func cacheKey(orgID string) string { return "flowcfg:" + orgID }

// Get returns the org's flow configuration, or the computed default when the
// org never saved one. Absence is not an error.
func (s *ConfigStore) Get(ctx context.Context, orgID string) (Configuration, error) {
	if cfg, ok := s.cacheGet(ctx, orgID); ok {
		return cfg, nil
	}

	cfg, err := s.repo.GetConfiguration(ctx, orgID)
	if errors.Is(err, ErrNotFound) {
		cfg = DefaultConfiguration(orgID)
	} else if err != nil {
		return Configuration{}, err
	}

	s.cacheSet(ctx, cfg)
	return cfg, nil
}

// Update validates, entitlement-checks and persists a customized flow, then
// refreshes the cache.
func (s *ConfigStore) Update(ctx context.Context, cfg Configuration) (Configuration, error) {
	if cfg.OrgID == "" {
		return Configuration{}, ErrInvalidConfig
	}
	if cfg.MinCallDuration < 0 {
		return Configuration{}, ErrInvalidConfig
	}

	org, err := s.orgs.GetOrganization(ctx, cfg.OrgID)
	if err != nil {
		return Configuration{}, err
	}
	if err := tier.RequireCustomFlows(s.gate, org.Tier); err != nil {
		return Configuration{}, err
	}
	if cfg.RecordingEnabled {
		if err := tier.RequireRecording(s.gate, org.Tier); err != nil {
			return Configuration{}, err
		}
	}

	// Unknown step ids are dropped on write so reads stay clean.
	kept := cfg.Steps[:0]
	for _, st := range cfg.Steps {
		if knownStep(st.ID) {
			kept = append(kept, st)
		} else {
			s.log.Warn("ignoring unknown flow step", "org_id", cfg.OrgID, "step", string(st.ID))
		}
	}
	cfg.Steps = kept

	if cfg.MinCallDuration == 0 {
		cfg.MinCallDuration = defaultMinCallDuration
	}
	cfg.UpdatedAt = s.clock().UTC()

	if err := s.repo.SaveConfiguration(ctx, cfg); err != nil {
		return Configuration{}, err
	}
	s.cacheSet(ctx, cfg)
	return cfg, nil
}

func (s *ConfigStore) cacheGet(ctx context.Context, orgID string) (Configuration, bool) {
	if s.rdb == nil {
		return Configuration{}, false
	}
	raw, err := s.rdb.Get(ctx, cacheKey(orgID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.log.Warn("flow config cache read failed", "org_id", orgID, "error", err)
		}
		return Configuration{}, false
	}
	var cfg Configuration
	if err := json.Unmarshal(raw, &cfg); err != nil {
		s.log.Warn("flow config cache entry corrupt", "org_id", orgID, "error", err)
		return Configuration{}, false
	}
	return cfg, true
}

func (s *ConfigStore) cacheSet(ctx context.Context, cfg Configuration) {
	if s.rdb == nil {
		return
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return
	}
	if err := s.rdb.Set(ctx, cacheKey(cfg.OrgID), raw, cacheTTL).Err(); err != nil {
		s.log.Warn("flow config cache write failed", "org_id", cfg.OrgID, "error", err)
	}
}
