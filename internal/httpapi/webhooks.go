package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"callflow-platform/internal/flow"
	"callflow-platform/internal/inbound"
	"callflow-platform/internal/recording"
	"callflow-platform/internal/telephony"
	"callflow-platform/pkg/logger"
)

// WebhookHandlers serves the provider-facing callback endpoints. The provider
// retries on non-2xx, so every response after payload validation is a 200:
// either a call-control document or a bare acknowledgement.
//
// NOTE: These endpoints should be protected by provider signature validation
// in production.
type WebhookHandlers struct {
	Inbound    *inbound.Router
	Engine     *flow.Engine
	Recordings *recording.Processor
	Limiter    Limiter
	Log        *slog.Logger
}

const twimlContentType = "text/xml; charset=utf-8"

func respondTwiML(c *gin.Context, doc string) {
	c.Data(http.StatusOK, twimlContentType, []byte(doc))
}

// HandleVoice is the main voice callback: the initial fetch of an inbound leg
// gets a call-control document, every later status event runs the per-call
// flow and gets an acknowledgement. A payload without a CallSid is the only
// request worth rejecting.
func (h WebhookHandlers) HandleVoice(c *gin.Context) {
	orgID := c.Param("org_id")
	ev, err := telephony.ParseWebhookEvent(c.Request)
	if err != nil {
		c.String(http.StatusBadRequest, "CallSid is required")
		return
	}
	log := logger.WithCall(h.Log, ev.CallSid, orgID)

	if ev.IsInitialSetup() {
		doc, err := h.Inbound.RouteInbound(c.Request.Context(), orgID, ev)
		if err != nil {
			// A broken routing decision must not leave the caller hanging on
			// a 5xx; acknowledge and let the provider end the call.
			log.Error("inbound routing failed", "error", err)
			respondTwiML(c, telephony.Ack())
			return
		}
		respondTwiML(c, doc)
		return
	}

	if ev.IsRecordingCallback() {
		h.Recordings.Process(c.Request.Context(), orgID, ev)
		respondTwiML(c, telephony.Ack())
		return
	}

	res := h.Engine.ProcessStatusEvent(c.Request.Context(), orgID, ev)
	if !res.Success {
		log.Error("flow run failed", "error", res.Err)
	}
	h.releaseDialerSlot(c.Request.Context(), orgID, ev, log)
	respondTwiML(c, telephony.Ack())
}

// HandleRecording receives the finished-recording callback referenced by the
// Record verb and by originated legs.
func (h WebhookHandlers) HandleRecording(c *gin.Context) {
	orgID := c.Param("org_id")
	ev, err := telephony.ParseWebhookEvent(c.Request)
	if err != nil {
		c.String(http.StatusBadRequest, "CallSid is required")
		return
	}

	h.Recordings.Process(c.Request.Context(), orgID, ev)
	respondTwiML(c, telephony.Ack())
}

// HandleMenu receives the digit gathered by the IVR greeting.
func (h WebhookHandlers) HandleMenu(c *gin.Context) {
	orgID := c.Param("org_id")
	ev, err := telephony.ParseWebhookEvent(c.Request)
	if err != nil {
		c.String(http.StatusBadRequest, "CallSid is required")
		return
	}

	doc, err := h.Inbound.RouteMenu(c.Request.Context(), orgID, ev)
	if err != nil {
		logger.WithCall(h.Log, ev.CallSid, orgID).Error("menu routing failed", "error", err)
		respondTwiML(c, telephony.Ack())
		return
	}
	respondTwiML(c, doc)
}

// releaseDialerSlot frees the org's concurrency slot when an originated leg
// reaches a terminal status. Release failures only cost capacity until the
// slot TTL expires, so they are logged and dropped.
func (h WebhookHandlers) releaseDialerSlot(ctx context.Context, orgID string, ev telephony.WebhookEvent, log *slog.Logger) {
	if h.Limiter == nil {
		return
	}
	if ev.Direction != telephony.DirectionOutboundAPI || !ev.CallStatus.IsTerminal() {
		return
	}
	if err := h.Limiter.Release(ctx, orgID); err != nil {
		log.Warn("dialer slot release failed", "error", err)
	}
}
