package inbound

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"callflow-platform/internal/leads"
	"callflow-platform/internal/orgs"
	"callflow-platform/internal/telephony"
	"callflow-platform/internal/tier"
)

// Classification is the routing decision for one inbound leg.
type Classification struct {
	IsTraining bool
	// ClientName is the browser client to bridge to when IsTraining.
	ClientName string
}

const (
	dialTimeoutSecs      = 30
	voicemailBeepTimeout = 30
	voicemailMaxLength   = 120
	ivrDigitTimeoutSecs  = 10
)

// Router turns an inbound webhook event into a call-control document and
// drives the lead lifecycle side effects for missed calls.
type Router struct {
	orgs  *orgs.Service
	leads *leads.Service
	gate  tier.Gate
	log   *slog.Logger

	// baseURL is the public HTTPS base the provider fetches callbacks from.
	baseURL string
}

func NewRouter(orgSvc *orgs.Service, leadSvc *leads.Service, gate tier.Gate, log *slog.Logger, baseURL string) *Router {
	return &Router{
		orgs:    orgSvc,
		leads:   leadSvc,
		gate:    gate,
		log:     log,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// ClassifyInbound decides whether the caller is a training line.
// The allow-list is authoritative: only an exact, case-insensitive match
// against the org's training pool classifies as training. Heuristic hints
// (provider client prefixes) are logged for operators but never change the
// decision.
func (r *Router) ClassifyInbound(ctx context.Context, orgID, from, callSid string) (Classification, error) {
	tn, ok, err := r.orgs.ResolveTrainingNumber(ctx, orgID, from)
	if err != nil {
		return Classification{}, err
	}
	if ok {
		return Classification{IsTraining: true, ClientName: tn.ClientName}, nil
	}

	if looksLikeTrainingCaller(from) {
		r.log.Info("caller resembles a training line but is not in the allow-list",
			"org_id", orgID, "call_sid", callSid, "from", from)
	}
	return Classification{}, nil
}

// looksLikeTrainingCaller flags provider client identities and obvious test
// callers. Advisory only.
func looksLikeTrainingCaller(from string) bool {
	f := strings.ToLower(from)
	return strings.HasPrefix(f, "client:") || strings.Contains(f, "train")
}

// RouteInbound builds the call-control response for an inbound leg and
// creates the follow-up or prospect the call implies. Side-effect failures
// are logged; the caller always gets a speakable document.
func (r *Router) RouteInbound(ctx context.Context, orgID string, ev telephony.WebhookEvent) (string, error) {
	cls, err := r.ClassifyInbound(ctx, orgID, ev.From, ev.CallSid)
	if err != nil {
		r.log.Error("inbound classification failed",
			"org_id", orgID, "call_sid", ev.CallSid, "error", err)
		cls = Classification{}
	}
	if cls.IsTraining {
		return r.trainingDocument(cls)
	}

	org, err := r.orgs.GetOrganization(ctx, orgID)
	if err != nil {
		return "", err
	}
	if !r.gate.Features(org.Tier).InboundCalls {
		r.log.Info("inbound call skipped, tier not entitled",
			"org_id", orgID, "call_sid", ev.CallSid, "tier", string(org.Tier))
		return (&telephony.Document{}).
			Say("This number is not able to receive calls at the moment. Goodbye.").
			Hangup().
			Render()
	}

	cfg, err := r.orgs.PhoneConfiguration(ctx, orgID)
	if err != nil {
		return "", err
	}

	switch cfg.InboundFlow {
	case orgs.InboundFlowForward:
		if cfg.ForwardToNumber != "" {
			return r.forwardDocument(cfg)
		}
		// Forward with no destination degrades to voicemail, never an error.
		r.log.Warn("forward flow has no destination, using voicemail",
			"org_id", orgID, "call_sid", ev.CallSid)
		return r.voicemailDocument(ctx, orgID, cfg, ev)
	case orgs.InboundFlowIVR:
		return r.ivrDocument(orgID, cfg)
	default:
		return r.voicemailDocument(ctx, orgID, cfg, ev)
	}
}

// RouteMenu handles the digit gathered by the IVR greeting. 1 bridges to the
// forward destination, 2 takes a message, anything else replays the menu.
func (r *Router) RouteMenu(ctx context.Context, orgID string, ev telephony.WebhookEvent) (string, error) {
	cfg, err := r.orgs.PhoneConfiguration(ctx, orgID)
	if err != nil {
		return "", err
	}

	switch ev.Digits {
	case "1":
		if cfg.ForwardToNumber != "" {
			return r.forwardDocument(cfg)
		}
		return r.voicemailDocument(ctx, orgID, cfg, ev)
	case "2":
		return r.voicemailDocument(ctx, orgID, cfg, ev)
	default:
		return (&telephony.Document{}).
			Redirect(r.voiceURL(orgID)).
			Render()
	}
}

func (r *Router) trainingDocument(cls Classification) (string, error) {
	return (&telephony.Document{}).
		DialClient(cls.ClientName, dialTimeoutSecs).
		Say("We could not connect you to the training session. Please try again later.").
		Render()
}

func (r *Router) forwardDocument(cfg orgs.PhoneConfiguration) (string, error) {
	record := ""
	if cfg.RecordInboundCalls {
		record = "record-from-answer"
	}
	return (&telephony.Document{}).
		DialNumber(cfg.ForwardToNumber, dialTimeoutSecs, record).
		Render()
}

func (r *Router) ivrDocument(orgID string, cfg orgs.PhoneConfiguration) (string, error) {
	greeting := cfg.VoicemailMessage
	if greeting == "" {
		greeting = "Thank you for calling."
	}
	return (&telephony.Document{}).
		Gather(1, ivrDigitTimeoutSecs, r.menuURL(orgID), greeting).
		Redirect(r.voiceURL(orgID)).
		Render()
}

// voicemailDocument renders the voicemail prompt and records the missed-call
// lifecycle entity for the caller.
func (r *Router) voicemailDocument(ctx context.Context, orgID string, cfg orgs.PhoneConfiguration, ev telephony.WebhookEvent) (string, error) {
	r.recordMissedCall(ctx, orgID, cfg, ev)

	return (&telephony.Document{}).
		Say(cfg.VoicemailMessage).
		Record(voicemailBeepTimeout, voicemailMaxLength, r.recordingURL(orgID)).
		Render()
}

// recordMissedCall creates the follow-up (known lead) or prospect (unknown
// caller) for a call that is going to voicemail. Never blocks the response.
func (r *Router) recordMissedCall(ctx context.Context, orgID string, cfg orgs.PhoneConfiguration, ev telephony.WebhookEvent) {
	lead, err := r.leads.CheckIfLead(ctx, orgID, ev.From)
	if err != nil {
		r.log.Error("lead lookup failed",
			"org_id", orgID, "call_sid", ev.CallSid, "error", err)
		return
	}

	switch {
	case lead != nil:
		if !cfg.AutoCreateFollowUps {
			return
		}
		if _, err := r.leads.CreateFollowUp(ctx, *lead, ev.CallSid, leads.ReasonVoicemail); err != nil {
			r.log.Error("follow-up creation failed",
				"org_id", orgID, "call_sid", ev.CallSid, "lead_id", lead.ID, "error", err)
		}
	case cfg.AutoCreateLeads:
		if _, err := r.leads.CreateProspect(ctx, orgID, ev.From, ev.CallSid, "inbound_voicemail"); err != nil {
			r.log.Error("prospect creation failed",
				"org_id", orgID, "call_sid", ev.CallSid, "error", err)
		}
	}
}

func (r *Router) voiceURL(orgID string) string {
	return fmt.Sprintf("%s/webhooks/voice/%s", r.baseURL, orgID)
}

func (r *Router) recordingURL(orgID string) string {
	return r.voiceURL(orgID) + "/recording"
}

func (r *Router) menuURL(orgID string) string {
	return r.voiceURL(orgID) + "/menu"
}
