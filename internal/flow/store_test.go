package flow

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"callflow-platform/internal/orgs"
	"callflow-platform/internal/tier"
)

func newStoreFixture(t *testing.T) (*ConfigStore, *MemoryRepo) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	orgRepo := orgs.NewMemoryRepo()
	orgRepo.PutOrganization(orgs.Organization{ID: "org-1", Tier: tier.TierPro})
	orgRepo.PutOrganization(orgs.Organization{ID: "org-starter", Tier: tier.TierStarter})
	repo := NewMemoryRepo()
	return NewConfigStore(repo, nil, orgs.NewService(orgRepo, tier.StaticGate{}), tier.StaticGate{}, log), repo
}

func TestConfigStore_GetDefaultsWithoutPersisting(t *testing.T) {
	store, repo := newStoreFixture(t)

	cfg, err := store.Get(context.Background(), "org-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.MinCallDuration != defaultMinCallDuration || !cfg.RecordingEnabled {
		t.Fatalf("unexpected default: %+v", cfg)
	}
	if repo.Saved("org-1") {
		t.Fatalf("default persisted on read")
	}
}

func TestConfigStore_UpdateDropsUnknownSteps(t *testing.T) {
	store, _ := newStoreFixture(t)

	saved, err := store.Update(context.Background(), Configuration{
		OrgID: "org-1",
		Steps: []StepSetting{
			{ID: StepCallStart, Enabled: true},
			{ID: StepID("teleport"), Enabled: true},
		},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(saved.Steps) != 1 || saved.Steps[0].ID != StepCallStart {
		t.Fatalf("unknown step kept: %+v", saved.Steps)
	}
}

func TestConfigStore_UpdateGatedByTier(t *testing.T) {
	store, _ := newStoreFixture(t)

	_, err := store.Update(context.Background(), Configuration{OrgID: "org-starter"})
	if !errors.Is(err, tier.ErrNotEntitled) {
		t.Fatalf("expected ErrNotEntitled for starter tier, got %v", err)
	}
}

func TestConfiguration_StepEnabled(t *testing.T) {
	cfg := Configuration{Steps: []StepSetting{
		{ID: StepLeadUpdate, Enabled: false},
	}}

	if !cfg.StepEnabled(StepCallStart) {
		t.Fatalf("known step without entry must default enabled")
	}
	if cfg.StepEnabled(StepLeadUpdate) {
		t.Fatalf("explicit disable ignored")
	}
	if cfg.StepEnabled(StepID("teleport")) {
		t.Fatalf("unknown step must never be enabled")
	}
}
