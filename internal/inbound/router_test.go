package inbound

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"callflow-platform/internal/calls"
	"callflow-platform/internal/leads"
	"callflow-platform/internal/orgs"
	"callflow-platform/internal/telephony"
	"callflow-platform/internal/tier"
)

type fixture struct {
	router   *Router
	orgRepo  *orgs.MemoryRepo
	leadRepo *leads.MemoryRepo
	callRepo *calls.MemoryRepo
	orgSvc   *orgs.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	orgRepo := orgs.NewMemoryRepo()
	orgRepo.PutOrganization(orgs.Organization{ID: "org-1", Name: "Acme", Tier: tier.TierPro})
	orgRepo.PutOrganization(orgs.Organization{ID: "org-free", Name: "Tiny", Tier: tier.TierFree})
	orgSvc := orgs.NewService(orgRepo, tier.StaticGate{})

	leadRepo := leads.NewMemoryRepo()
	callRepo := calls.NewMemoryRepo()
	leadSvc := leads.NewService(leadRepo, calls.NewService(callRepo, log), nil, log)

	return &fixture{
		router:   NewRouter(orgSvc, leadSvc, tier.StaticGate{}, log, "https://app.example.com/"),
		orgRepo:  orgRepo,
		leadRepo: leadRepo,
		callRepo: callRepo,
		orgSvc:   orgSvc,
	}
}

func inboundEvent(sid, from string) telephony.WebhookEvent {
	return telephony.WebhookEvent{
		CallSid:    sid,
		From:       from,
		To:         "+15557654321",
		Direction:  telephony.DirectionInbound,
		CallStatus: telephony.CallStatusRinging,
	}
}

func TestRouteInbound_DefaultVoicemail(t *testing.T) {
	f := newFixture(t)

	out, err := f.router.RouteInbound(context.Background(), "org-1", inboundEvent("CA1", "+15550001111"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	for _, want := range []string{"<Say>", "<Record", "https://app.example.com/webhooks/voice/org-1/recording"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in response:\n%s", want, out)
		}
	}

	// Unknown caller becomes a prospect under the default policy.
	p, err := f.leadRepo.GetProspectByCallSid(context.Background(), "org-1", "CA1")
	if err != nil {
		t.Fatalf("expected prospect, got %v", err)
	}
	if p.Status != leads.ProspectStatusNew {
		t.Fatalf("unexpected prospect: %+v", p)
	}
}

func TestRouteInbound_KnownLeadGetsFollowUp(t *testing.T) {
	f := newFixture(t)
	f.leadRepo.PutLead(leads.Lead{ID: "lead-1", OrgID: "org-1", Name: "Jordan", Phone: "+15550001111"})

	if _, err := f.router.RouteInbound(context.Background(), "org-1", inboundEvent("CA1", "+15550001111")); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	fu, err := f.leadRepo.GetFollowUpByCallSid(context.Background(), "org-1", "CA1")
	if err != nil {
		t.Fatalf("expected follow-up, got %v", err)
	}
	if fu.Reason != leads.ReasonVoicemail {
		t.Fatalf("unexpected reason %q", fu.Reason)
	}
	// A known lead never also becomes a prospect for the same call.
	if _, err := f.leadRepo.GetProspectByCallSid(context.Background(), "org-1", "CA1"); err == nil {
		t.Fatalf("prospect created for a known lead")
	}
}

func TestRouteInbound_ForwardDials(t *testing.T) {
	f := newFixture(t)
	if _, err := f.orgSvc.UpdatePhoneConfiguration(context.Background(), orgs.PhoneConfiguration{
		OrgID:              "org-1",
		InboundFlow:        orgs.InboundFlowForward,
		ForwardToNumber:    "+15559998888",
		RecordInboundCalls: true,
	}); err != nil {
		t.Fatalf("setup: %v", err)
	}

	out, err := f.router.RouteInbound(context.Background(), "org-1", inboundEvent("CA1", "+15550001111"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	for _, want := range []string{"<Number>+15559998888</Number>", `record="record-from-answer"`, `timeout="30"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in response:\n%s", want, out)
		}
	}
}

func TestRouteInbound_ForwardWithoutNumberDegradesToVoicemail(t *testing.T) {
	f := newFixture(t)
	if _, err := f.orgSvc.UpdatePhoneConfiguration(context.Background(), orgs.PhoneConfiguration{
		OrgID:       "org-1",
		InboundFlow: orgs.InboundFlowForward,
	}); err != nil {
		t.Fatalf("setup: %v", err)
	}

	out, err := f.router.RouteInbound(context.Background(), "org-1", inboundEvent("CA1", "+15550001111"))
	if err != nil {
		t.Fatalf("degraded forward must not error, got %v", err)
	}
	if strings.Contains(out, "<Dial") {
		t.Fatalf("expected voicemail, got dial:\n%s", out)
	}
	if !strings.Contains(out, "<Record") {
		t.Fatalf("expected voicemail record verb:\n%s", out)
	}
}

func TestRouteInbound_IVR(t *testing.T) {
	f := newFixture(t)
	if _, err := f.orgSvc.UpdatePhoneConfiguration(context.Background(), orgs.PhoneConfiguration{
		OrgID:            "org-1",
		InboundFlow:      orgs.InboundFlowIVR,
		VoicemailMessage: "Press 1 for sales.",
	}); err != nil {
		t.Fatalf("setup: %v", err)
	}

	out, err := f.router.RouteInbound(context.Background(), "org-1", inboundEvent("CA1", "+15550001111"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	for _, want := range []string{
		`numDigits="1"`,
		`timeout="10"`,
		"https://app.example.com/webhooks/voice/org-1/menu",
		"<Redirect>https://app.example.com/webhooks/voice/org-1</Redirect>",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in response:\n%s", want, out)
		}
	}
}

func TestRouteInbound_TrainingNumberBridgesToClient(t *testing.T) {
	f := newFixture(t)
	f.orgRepo.PutTrainingNumber(orgs.TrainingNumber{OrgID: "org-1", Number: "+15553334444", ClientName: "trainee-7"})

	out, err := f.router.RouteInbound(context.Background(), "org-1", inboundEvent("CA1", "+15553334444"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !strings.Contains(out, "<Client>trainee-7</Client>") {
		t.Fatalf("expected client bridge:\n%s", out)
	}
	// Spoken fallback after the bridge attempt.
	if !strings.Contains(out, "<Say>") {
		t.Fatalf("expected apology fallback:\n%s", out)
	}
	// Training calls never touch the lead lifecycle.
	if _, err := f.leadRepo.GetProspectByCallSid(context.Background(), "org-1", "CA1"); err == nil {
		t.Fatalf("training call created a prospect")
	}
}

func TestRouteInbound_TierWithoutInboundHangsUp(t *testing.T) {
	f := newFixture(t)

	out, err := f.router.RouteInbound(context.Background(), "org-free", inboundEvent("CA1", "+15550001111"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !strings.Contains(out, "<Hangup") {
		t.Fatalf("expected hangup for unentitled tier:\n%s", out)
	}
}

func TestRouteInbound_ProspectPolicyDisabled(t *testing.T) {
	f := newFixture(t)
	if _, err := f.orgSvc.UpdatePhoneConfiguration(context.Background(), orgs.PhoneConfiguration{
		OrgID:               "org-1",
		InboundFlow:         orgs.InboundFlowVoicemail,
		AutoCreateLeads:     false,
		AutoCreateFollowUps: false,
	}); err != nil {
		t.Fatalf("setup: %v", err)
	}

	if _, err := f.router.RouteInbound(context.Background(), "org-1", inboundEvent("CA1", "+15550001111")); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if _, err := f.leadRepo.GetProspectByCallSid(context.Background(), "org-1", "CA1"); err == nil {
		t.Fatalf("prospect created despite disabled policy")
	}
}

func TestRouteMenu_DigitsSelectBranch(t *testing.T) {
	f := newFixture(t)
	if _, err := f.orgSvc.UpdatePhoneConfiguration(context.Background(), orgs.PhoneConfiguration{
		OrgID:           "org-1",
		InboundFlow:     orgs.InboundFlowIVR,
		ForwardToNumber: "+15559998888",
	}); err != nil {
		t.Fatalf("setup: %v", err)
	}

	ev := inboundEvent("CA1", "+15550001111")
	ev.Digits = "1"
	out, err := f.router.RouteMenu(context.Background(), "org-1", ev)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !strings.Contains(out, "<Number>+15559998888</Number>") {
		t.Fatalf("digit 1 should bridge to the forward number:\n%s", out)
	}

	ev.Digits = "2"
	out, err = f.router.RouteMenu(context.Background(), "org-1", ev)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !strings.Contains(out, "<Record") {
		t.Fatalf("digit 2 should take a message:\n%s", out)
	}

	ev.Digits = "9"
	out, err = f.router.RouteMenu(context.Background(), "org-1", ev)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !strings.Contains(out, "<Redirect>https://app.example.com/webhooks/voice/org-1</Redirect>") {
		t.Fatalf("unrecognized digit should replay the menu:\n%s", out)
	}
}

func TestRouteMenu_ForwardDigitWithoutNumberTakesMessage(t *testing.T) {
	f := newFixture(t)
	if _, err := f.orgSvc.UpdatePhoneConfiguration(context.Background(), orgs.PhoneConfiguration{
		OrgID:       "org-1",
		InboundFlow: orgs.InboundFlowIVR,
	}); err != nil {
		t.Fatalf("setup: %v", err)
	}

	ev := inboundEvent("CA1", "+15550001111")
	ev.Digits = "1"
	out, err := f.router.RouteMenu(context.Background(), "org-1", ev)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if strings.Contains(out, "<Dial") || !strings.Contains(out, "<Record") {
		t.Fatalf("expected voicemail fallback:\n%s", out)
	}
}

func TestClassifyInbound_AllowListIsAuthoritative(t *testing.T) {
	f := newFixture(t)
	f.orgRepo.PutTrainingNumber(orgs.TrainingNumber{OrgID: "org-1", Number: "+15553334444", ClientName: "trainee-7"})

	cls, err := f.router.ClassifyInbound(context.Background(), "org-1", "+15553334444", "CA1")
	if err != nil || !cls.IsTraining || cls.ClientName != "trainee-7" {
		t.Fatalf("expected training classification, got %+v err=%v", cls, err)
	}

	// A caller that merely resembles a training line stays regular.
	cls, err = f.router.ClassifyInbound(context.Background(), "org-1", "client:trainee-7", "CA2")
	if err != nil || cls.IsTraining {
		t.Fatalf("heuristic must be advisory only, got %+v err=%v", cls, err)
	}
}

func TestClassifyInbound_MixedCasePoolEntry(t *testing.T) {
	f := newFixture(t)
	f.orgRepo.PutTrainingNumber(orgs.TrainingNumber{OrgID: "org-1", Number: "Client:Coach", ClientName: "coach"})

	// The caller id arrives exactly as stored; the match must not depend on
	// either side's casing.
	cls, err := f.router.ClassifyInbound(context.Background(), "org-1", "Client:Coach", "CA1")
	if err != nil || !cls.IsTraining || cls.ClientName != "coach" {
		t.Fatalf("expected training classification, got %+v err=%v", cls, err)
	}

	cls, err = f.router.ClassifyInbound(context.Background(), "org-1", "client:coach", "CA2")
	if err != nil || !cls.IsTraining {
		t.Fatalf("expected case-insensitive match, got %+v err=%v", cls, err)
	}
}
