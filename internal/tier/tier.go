package tier

import "errors"

// Tier is the organization's subscription plan.
// Feature gating is consulted before recording, inbound handling and custom
// flow configuration; it can block an action regardless of per-org settings.
type Tier string

const (
	TierFree       Tier = "free"
	TierStarter    Tier = "starter"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// Features are the gated capabilities for one tier.
type Features struct {
	Recording     bool
	Transcription bool
	InboundCalls  bool
	CustomFlows   bool

	// MaxConcurrentCalls caps simultaneous outbound legs per org.
	MaxConcurrentCalls int
}

// Gate resolves tier entitlements. Consumed, not owned: billing/checkout
// lives elsewhere and only the resolved tier reaches this service.
type Gate interface {
	Features(t Tier) Features
}

// ErrNotEntitled is returned when configuration explicitly requests a gated
// feature the org's tier does not include. The webhook path never returns
// this error; it skips the action and logs instead.
var ErrNotEntitled = errors.New("tier: feature not entitled")

// StaticGate is the default in-process entitlement table.
type StaticGate struct{}

func (StaticGate) Features(t Tier) Features {
	switch t {
	case TierEnterprise:
		return Features{Recording: true, Transcription: true, InboundCalls: true, CustomFlows: true, MaxConcurrentCalls: 100}
	case TierPro:
		return Features{Recording: true, Transcription: true, InboundCalls: true, CustomFlows: true, MaxConcurrentCalls: 25}
	case TierStarter:
		return Features{Recording: true, Transcription: false, InboundCalls: true, CustomFlows: false, MaxConcurrentCalls: 5}
	default:
		// Unknown tiers behave as free: nothing gated is entitled.
		return Features{Recording: false, Transcription: false, InboundCalls: false, CustomFlows: false, MaxConcurrentCalls: 1}
	}
}

// RequireRecording returns ErrNotEntitled when the tier lacks recording.
// Use from configuration-change paths only.
func RequireRecording(g Gate, t Tier) error {
	if !g.Features(t).Recording {
		return ErrNotEntitled
	}
	return nil
}

// RequireCustomFlows returns ErrNotEntitled when the tier lacks custom flow
// configuration.
func RequireCustomFlows(g Gate, t Tier) error {
	if !g.Features(t).CustomFlows {
		return ErrNotEntitled
	}
	return nil
}
