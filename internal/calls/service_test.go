package calls

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"callflow-platform/internal/telephony"
)

func newTestService(t *testing.T) (*Service, *MemoryRepo) {
	t.Helper()
	repo := NewMemoryRepo()
	svc := NewService(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc.clock = func() time.Time { return base }
	return svc, repo
}

func outboundEvent(sid string, status telephony.CallStatus) telephony.WebhookEvent {
	return telephony.WebhookEvent{
		CallSid:       sid,
		From:          "+15550001111",
		To:            "+15552223333",
		Direction:     telephony.DirectionOutboundAPI,
		CallStatus:    status,
		LeadID:        "lead-1",
		CallSessionID: "sess-1",
		UserID:        "user-1",
	}
}

func TestUpsertCall_SkipsEventsWithoutCorrelation(t *testing.T) {
	svc, _ := newTestService(t)

	ev := outboundEvent("CA1", telephony.CallStatusRinging)
	ev.LeadID = ""
	c, err := svc.UpsertCall(context.Background(), "org-1", ev)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c != nil {
		t.Fatalf("expected no call record, got %+v", c)
	}
}

func TestUpsertCall_CreatesThenMerges(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	c, err := svc.UpsertCall(ctx, "org-1", outboundEvent("CA1", telephony.CallStatusRinging))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c == nil || c.Status != telephony.CallStatusRinging {
		t.Fatalf("unexpected created call: %+v", c)
	}

	ev := outboundEvent("CA1", telephony.CallStatusCompleted)
	ev.CallDuration = 75
	c, err = svc.UpsertCall(ctx, "org-1", ev)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.Status != telephony.CallStatusCompleted {
		t.Fatalf("expected completed, got %q", c.Status)
	}
	if c.DurationSecs != 75 {
		t.Fatalf("expected provider duration 75, got %d", c.DurationSecs)
	}
	if c.EndedAt.IsZero() {
		t.Fatalf("expected ended_at set on terminal status")
	}
}

func TestUpsertCall_TerminalStatusNeverRegressed(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.UpsertCall(ctx, "org-1", outboundEvent("CA1", telephony.CallStatusCompleted)); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// Late ringing replay must not move the call backwards.
	c, err := svc.UpsertCall(ctx, "org-1", outboundEvent("CA1", telephony.CallStatusRinging))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.Status != telephony.CallStatusCompleted {
		t.Fatalf("terminal status regressed to %q", c.Status)
	}
}

func TestUpsertCall_DuplicateTerminalIsIdempotent(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	ev := outboundEvent("CA1", telephony.CallStatusCompleted)
	ev.CallDuration = 40
	if _, err := svc.UpsertCall(ctx, "org-1", ev); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if _, err := svc.UpsertCall(ctx, "org-1", ev); err != nil {
		t.Fatalf("expected no error on replay, got %v", err)
	}

	got, err := repo.GetBySid(ctx, "org-1", "CA1")
	if err != nil {
		t.Fatalf("expected stored call, got %v", err)
	}
	if got.Status != telephony.CallStatusCompleted || got.DurationSecs != 40 {
		t.Fatalf("replay changed the record: %+v", got)
	}
}

func TestAttachRecording(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.UpsertCall(ctx, "org-1", outboundEvent("CA1", telephony.CallStatusCompleted)); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	c, err := svc.AttachRecording(ctx, "org-1", "CA1", "https://api.example.com/rec/RE1", "hello world", 45)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.RecordingURL == "" || c.Transcription != "hello world" {
		t.Fatalf("recording not attached: %+v", c)
	}
	if c.Status != telephony.CallStatusCompleted || c.EndedAt.IsZero() {
		t.Fatalf("attachment left the call open: %+v", c)
	}

	if _, err := svc.AttachRecording(ctx, "org-1", "CA-missing", "u", "", 0); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAttachRecording_ClosesCallBeforeStatusCallback(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	// The recording callback can outrun the terminal status callback.
	if _, err := svc.UpsertCall(ctx, "org-1", outboundEvent("CA1", telephony.CallStatusInProgress)); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	c, err := svc.AttachRecording(ctx, "org-1", "CA1", "https://api.example.com/rec/RE1", "", 45)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.Status != telephony.CallStatusCompleted {
		t.Fatalf("expected completed after attachment, got %q", c.Status)
	}
	if c.EndedAt.IsZero() || c.DurationSecs != 45 {
		t.Fatalf("expected end time and duration stamped: %+v", c)
	}

	// When the status callback eventually lands, its provider-reported
	// duration still wins and the status stays terminal.
	ev := outboundEvent("CA1", telephony.CallStatusCompleted)
	ev.CallDuration = 60
	c2, err := svc.UpsertCall(ctx, "org-1", ev)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c2.Status != telephony.CallStatusCompleted || c2.DurationSecs != 60 {
		t.Fatalf("late status callback mishandled: %+v", c2)
	}
	if c2.RecordingURL == "" {
		t.Fatalf("recording lost on late status merge: %+v", c2)
	}
}

func TestMarkCompleted_ClosesCallWithoutRecording(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.UpsertCall(ctx, "org-1", outboundEvent("CA1", telephony.CallStatusInProgress)); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	c, err := svc.MarkCompleted(ctx, "org-1", "CA1", 10)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.Status != telephony.CallStatusCompleted || c.EndedAt.IsZero() || c.DurationSecs != 10 {
		t.Fatalf("call not closed: %+v", c)
	}
	if c.RecordingURL != "" {
		t.Fatalf("unexpected recording fields: %+v", c)
	}

	// An already failed leg keeps its outcome.
	if _, err := svc.UpsertCall(ctx, "org-1", outboundEvent("CA2", telephony.CallStatusFailed)); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	c, err = svc.MarkCompleted(ctx, "org-1", "CA2", 0)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.Status != telephony.CallStatusFailed {
		t.Fatalf("terminal status overwritten: %+v", c)
	}
}

func TestRegisterOwner_FirstWriteWins(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.RegisterOwner(ctx, "org-1", "CA1", OwnerFollowUp, "fu-1"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	// Identical re-registration is a no-op.
	if err := svc.RegisterOwner(ctx, "org-1", "CA1", OwnerFollowUp, "fu-1"); err != nil {
		t.Fatalf("expected idempotent re-register, got %v", err)
	}
	// A different claimant is a conflict.
	err := svc.RegisterOwner(ctx, "org-1", "CA1", OwnerProspect, "pr-1")
	if !errors.Is(err, ErrOwnerConflict) {
		t.Fatalf("expected ErrOwnerConflict, got %v", err)
	}

	o, err := svc.ResolveOwner(ctx, "org-1", "CA1")
	if err != nil {
		t.Fatalf("expected owner, got %v", err)
	}
	if o.Kind != OwnerFollowUp || o.OwnerID != "fu-1" {
		t.Fatalf("owner overwritten: %+v", o)
	}
}
