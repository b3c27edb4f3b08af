package tier

import (
	"errors"
	"testing"
)

func TestStaticGate_FreeHasNothingGated(t *testing.T) {
	f := StaticGate{}.Features(TierFree)
	if f.Recording || f.Transcription || f.InboundCalls || f.CustomFlows {
		t.Fatalf("free tier must not be entitled to gated features: %+v", f)
	}
}

func TestStaticGate_UnknownTierBehavesAsFree(t *testing.T) {
	f := StaticGate{}.Features(Tier("legacy-gold"))
	if f.Recording || f.CustomFlows {
		t.Fatalf("unknown tier must behave as free: %+v", f)
	}
}

func TestRequireRecording(t *testing.T) {
	if err := RequireRecording(StaticGate{}, TierPro); err != nil {
		t.Fatalf("expected pro entitled to recording, got %v", err)
	}
	err := RequireRecording(StaticGate{}, TierFree)
	if !errors.Is(err, ErrNotEntitled) {
		t.Fatalf("expected ErrNotEntitled, got %v", err)
	}
}
