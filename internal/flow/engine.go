package flow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"callflow-platform/internal/calls"
	"callflow-platform/internal/telephony"
)

// StepResult is one line of the per-call execution log.
type StepResult struct {
	Step      StepID    `json:"step"`
	Result    string    `json:"result"`
	Timestamp time.Time `json:"timestamp"`
}

// Result is the outcome of running the flow for one status event. The log
// is returned verbatim, including the steps that ran before a failure.
type Result struct {
	Success bool
	Err     error
	Log     []StepResult
}

// LeadUpdater is the slice of the lead lifecycle the flow needs.
type LeadUpdater interface {
	TouchLastContacted(ctx context.Context, orgID, leadID string) error
	RecordCallActivity(ctx context.Context, orgID, leadID, callSid string, durationSecs int) error
}

// Trail persists execution logs for later inspection. Best-effort; a trail
// failure never fails the flow.
type Trail interface {
	RecordExecution(ctx context.Context, orgID, callSid string, log []StepResult, success bool) error
}

// Engine runs the per-call flow for each status callback:
// call-start, call-active, call-complete, recording-check, lead-update.
// Step enablement comes from the org's Configuration; the order is fixed.
type Engine struct {
	config *ConfigStore
	calls  *calls.Service
	leads  LeadUpdater
	trail  Trail
	log    *slog.Logger
	clock  func() time.Time
}

func NewEngine(config *ConfigStore, callSvc *calls.Service, leads LeadUpdater, trail Trail, log *slog.Logger) *Engine {
	return &Engine{
		config: config,
		calls:  callSvc,
		leads:  leads,
		trail:  trail,
		log:    log,
		clock:  time.Now,
	}
}

// ProcessStatusEvent runs the flow for one status callback. A step error
// aborts the remaining steps; the accumulated log is always returned and
// recorded on the trail.
func (e *Engine) ProcessStatusEvent(ctx context.Context, orgID string, ev telephony.WebhookEvent) Result {
	cfg, err := e.config.Get(ctx, orgID)
	if err != nil {
		e.log.Warn("flow configuration unavailable, using defaults",
			"org_id", orgID, "call_sid", ev.CallSid, "error", err)
		cfg = DefaultConfiguration(orgID)
	}

	res := e.run(ctx, orgID, cfg, ev)

	if e.trail != nil {
		if err := e.trail.RecordExecution(ctx, orgID, ev.CallSid, res.Log, res.Success); err != nil {
			e.log.Warn("execution trail write failed",
				"org_id", orgID, "call_sid", ev.CallSid, "error", err)
		}
	}
	return res
}

func (e *Engine) run(ctx context.Context, orgID string, cfg Configuration, ev telephony.WebhookEvent) Result {
	var log []StepResult
	record := func(step StepID, format string, args ...any) {
		log = append(log, StepResult{
			Step:      step,
			Result:    fmt.Sprintf(format, args...),
			Timestamp: e.clock().UTC(),
		})
	}
	fail := func(step StepID, err error) Result {
		record(step, "error: %v", err)
		e.log.Error("flow step failed",
			"org_id", orgID, "call_sid", ev.CallSid, "step", string(step), "error", err)
		return Result{Success: false, Err: err, Log: log}
	}

	terminal := ev.CallStatus.IsTerminal()

	// Tracked call record, shared by later steps. Stays nil for legs without
	// correlation ids.
	var rec *calls.Call

	if cfg.StepEnabled(StepCallStart) {
		c, err := e.calls.UpsertCall(ctx, orgID, ev)
		if err != nil {
			return fail(StepCallStart, err)
		}
		rec = c
		if c == nil {
			record(StepCallStart, "skipped: no correlation ids")
		} else {
			record(StepCallStart, "call %s status %s", c.CallSid, c.Status)
		}
	}

	if cfg.StepEnabled(StepCallActive) && !terminal {
		record(StepCallActive, "call live with status %s", ev.CallStatus)
	}

	completeRan := false
	if cfg.StepEnabled(StepCallComplete) && terminal {
		// Idempotent with call-start; also covers flows that disable it.
		c, err := e.calls.UpsertCall(ctx, orgID, ev)
		if err != nil {
			return fail(StepCallComplete, err)
		}
		if c != nil {
			rec = c
		}
		completeRan = true
		if rec == nil {
			record(StepCallComplete, "terminal status %s, untracked leg", ev.CallStatus)
		} else {
			record(StepCallComplete, "terminal status %s after %ds", rec.Status, rec.DurationSecs)
		}
	}

	if cfg.StepEnabled(StepRecordingCheck) {
		switch {
		case !completeRan:
			// Not reached on non-terminal events.
		case !cfg.RecordingEnabled:
			record(StepRecordingCheck, "skipped: recording disabled")
		case rec == nil:
			record(StepRecordingCheck, "skipped: untracked leg")
		case rec.DurationSecs > cfg.MinCallDuration:
			record(StepRecordingCheck, "recording expected for %ds call", rec.DurationSecs)
		default:
			record(StepRecordingCheck, "skipped: %ds not above %ds minimum", rec.DurationSecs, cfg.MinCallDuration)
		}
	}

	if cfg.StepEnabled(StepLeadUpdate) && completeRan && cfg.AutoCreateLeads && rec != nil && rec.LeadID != "" {
		if err := e.leads.TouchLastContacted(ctx, orgID, rec.LeadID); err != nil {
			return fail(StepLeadUpdate, err)
		}
		if cfg.AutoCreateFollowUps {
			if err := e.leads.RecordCallActivity(ctx, orgID, rec.LeadID, rec.CallSid, rec.DurationSecs); err != nil {
				return fail(StepLeadUpdate, err)
			}
		}
		record(StepLeadUpdate, "lead %s touched", rec.LeadID)
	}

	return Result{Success: true, Log: log}
}
