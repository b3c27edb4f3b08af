package recording

import (
	"context"
	"errors"
	"log/slog"

	"callflow-platform/internal/calls"
	"callflow-platform/internal/flow"
	"callflow-platform/internal/leads"
	"callflow-platform/internal/orgs"
	"callflow-platform/internal/telephony"
	"callflow-platform/internal/tier"
	"callflow-platform/internal/transcribe"
)

// Processor attaches finished recordings to the entity that owns the call
// sid. Recording callbacks are provider-retried, so every branch is
// idempotent; errors are logged and swallowed because the provider only
// needs an acknowledgement.
type Processor struct {
	calls       *calls.Service
	leads       *leads.Service
	orgs        *orgs.Service
	config      *flow.ConfigStore
	transcriber transcribe.Transcriber
	gate        tier.Gate
	log         *slog.Logger
}

func NewProcessor(
	callSvc *calls.Service,
	leadSvc *leads.Service,
	orgSvc *orgs.Service,
	config *flow.ConfigStore,
	transcriber transcribe.Transcriber,
	gate tier.Gate,
	log *slog.Logger,
) *Processor {
	return &Processor{
		calls:       callSvc,
		leads:       leadSvc,
		orgs:        orgSvc,
		config:      config,
		transcriber: transcriber,
		gate:        gate,
		log:         log,
	}
}

// Process handles one recording callback. It never returns an error for
// business outcomes; the webhook handler always acks.
func (p *Processor) Process(ctx context.Context, orgID string, ev telephony.WebhookEvent) {
	log := p.log.With("org_id", orgID, "call_sid", ev.CallSid)

	if ev.RecordingStatus != telephony.RecordingStatusCompleted {
		log.Debug("recording callback dropped", "status", string(ev.RecordingStatus))
		return
	}
	if ev.RecordingURL == "" {
		log.Warn("completed recording callback without url")
		return
	}

	// Training calls only feed coaching transcripts; no record is updated.
	if _, isTraining, err := p.orgs.ResolveTrainingNumber(ctx, orgID, ev.From); err != nil {
		log.Error("training lookup failed", "error", err)
	} else if isTraining {
		text := p.transcribeRecording(ctx, ev, log)
		log.Info("training recording transcribed", "transcript_len", len(text))
		return
	}

	owner, err := p.calls.ResolveOwner(ctx, orgID, ev.CallSid)
	if errors.Is(err, calls.ErrNotFound) {
		log.Warn("recording callback for unowned call sid")
		return
	}
	if err != nil {
		log.Error("owner resolution failed", "error", err)
		return
	}

	org, err := p.orgs.GetOrganization(ctx, orgID)
	if err != nil {
		log.Error("org lookup failed", "error", err)
		return
	}
	if !p.gate.Features(org.Tier).Recording {
		log.Info("recording skipped, tier not entitled", "tier", string(org.Tier))
		return
	}

	phoneCfg, err := p.orgs.PhoneConfiguration(ctx, orgID)
	if err != nil {
		log.Error("phone configuration lookup failed", "error", err)
		return
	}
	flowCfg, err := p.config.Get(ctx, orgID)
	if err != nil {
		log.Warn("flow configuration unavailable, using defaults", "error", err)
		flowCfg = flow.DefaultConfiguration(orgID)
	}

	// Transcription is deferred until a branch decides to attach, so gated
	// recordings never spend vendor quota.
	transcript := func() string {
		if !flowCfg.TranscriptionEnabled {
			return ""
		}
		return p.transcribeRecording(ctx, ev, log)
	}

	switch owner.Kind {
	case calls.OwnerFollowUp:
		if !phoneCfg.RecordInboundCalls {
			log.Info("inbound recording skipped by configuration", "owner", "follow_up")
			return
		}
		if err := p.leads.UpdateFollowUpWithRecording(ctx, orgID, ev.CallSid, ev.RecordingURL, transcript()); err != nil {
			log.Error("follow-up recording update failed", "error", err)
		}

	case calls.OwnerProspect:
		if !phoneCfg.RecordInboundCalls {
			log.Info("inbound recording skipped by configuration", "owner", "prospect")
			return
		}
		if err := p.leads.UpdateProspectWithRecording(ctx, orgID, ev.CallSid, ev.RecordingURL, transcript()); err != nil {
			log.Error("prospect recording update failed", "error", err)
		}

	case calls.OwnerCall:
		if !phoneCfg.RecordOutboundCalls || !flowCfg.RecordingEnabled {
			log.Info("outbound recording skipped by configuration")
			p.completeCall(ctx, orgID, ev, log)
			return
		}
		// Inclusive bound: a recording exactly at the minimum is kept.
		if ev.RecordingDuration < phoneCfg.MinOutboundDuration {
			log.Info("outbound recording below minimum duration",
				"duration", ev.RecordingDuration, "minimum", phoneCfg.MinOutboundDuration)
			p.completeCall(ctx, orgID, ev, log)
			return
		}
		if _, err := p.calls.AttachRecording(ctx, orgID, ev.CallSid, ev.RecordingURL, transcript(), ev.RecordingDuration); err != nil {
			log.Error("call recording update failed", "error", err)
		}

	default:
		log.Warn("unknown owner kind", "kind", string(owner.Kind))
	}
}

// completeCall closes the call record even when the recording itself is
// discarded. The callback proves the leg ended; a status callback that never
// arrives must not leave the call open.
func (p *Processor) completeCall(ctx context.Context, orgID string, ev telephony.WebhookEvent, log *slog.Logger) {
	if _, err := p.calls.MarkCompleted(ctx, orgID, ev.CallSid, ev.RecordingDuration); err != nil && !errors.Is(err, calls.ErrNotFound) {
		log.Error("call completion update failed", "error", err)
	}
}

func (p *Processor) transcribeRecording(ctx context.Context, ev telephony.WebhookEvent, log *slog.Logger) string {
	// The provider may have transcribed inline.
	if ev.TranscriptionText != "" {
		return ev.TranscriptionText
	}
	if p.transcriber == nil {
		return ""
	}
	text, err := p.transcriber.Transcribe(ctx, ev.RecordingURL)
	if err != nil {
		if !errors.Is(err, transcribe.ErrDisabled) {
			log.Warn("transcription failed", "error", err)
		}
		return ""
	}
	return text
}
