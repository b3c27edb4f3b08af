package httpapi

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"callflow-platform/internal/audit"
	"callflow-platform/internal/auth"
	"callflow-platform/internal/calls"
	"callflow-platform/internal/flow"
	"callflow-platform/internal/orgs"
	"callflow-platform/internal/reporting"
	"callflow-platform/internal/telephony"
	"callflow-platform/internal/tier"
	"callflow-platform/pkg/utils"
)

// Handlers groups the authenticated API handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Auth    *auth.Manager
	Voice   telephony.VoiceClient
	Orgs    *orgs.Service
	Calls   *calls.Service
	Flows   *flow.ConfigStore
	Audit   *audit.Service
	Reports *reporting.Service
	Gate    tier.Gate
	Limiter Limiter
	Log     *slog.Logger

	// PublicBaseURL is where the provider posts callbacks for originated legs.
	PublicBaseURL string

	// Health probes.
	DB  *sql.DB
	RDB *redis.Client
}

// --- Auth ---

type sessionRequest struct {
	UserID    string `json:"user_id"`
	OrgID     string `json:"org_id"`
	Role      string `json:"role"`
	SessionID string `json:"session_id,omitempty"`
}

// Login issues the JWT pair the dialer carries.
//
// NOTE: This is a skeleton-only endpoint. Real systems must validate
// credentials before issuing tokens.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req sessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || req.OrgID == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id, org_id, role required"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.UserID, req.OrgID, req.Role, req.SessionID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// --- Dialer ---

type originateRequest struct {
	From          string `json:"from"`
	To            string `json:"to"`
	LeadID        string `json:"lead_id,omitempty"`
	CallSessionID string `json:"call_session_id,omitempty"`
}

// OriginateCall creates an outbound leg with the caller's correlation ids on
// the status callback URL; those ids are what ties later webhook events back
// to the lead and dialer session. The per-org concurrency cap is acquired
// before the provider call and released when the leg goes terminal.
func (h Handlers) OriginateCall(c *gin.Context) {
	orgID, err := auth.OrgID(c.Request.Context())
	if err != nil || orgID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "org_id required"})
		return
	}
	userID, _ := auth.UserID(c.Request.Context())

	var req originateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.From == "" || req.To == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "from and to required"})
		return
	}

	org, err := h.Orgs.GetOrganization(c.Request.Context(), orgID)
	if errors.Is(err, orgs.ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "organization not found"})
		return
	}
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "organization lookup failed"})
		return
	}

	limit := h.Gate.Features(org.Tier).MaxConcurrentCalls
	ok, err := h.Limiter.Acquire(c.Request.Context(), orgID, limit)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "concurrency check unavailable"})
		return
	}
	if !ok {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "concurrent call limit reached"})
		return
	}

	phoneCfg, err := h.Orgs.PhoneConfiguration(c.Request.Context(), orgID)
	if err != nil {
		_ = h.Limiter.Release(c.Request.Context(), orgID)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "phone configuration lookup failed"})
		return
	}

	callbackURL := h.statusCallbackURL(orgID, req.LeadID, req.CallSessionID, userID)
	res, err := h.Voice.Originate(c.Request.Context(), telephony.OriginateRequest{
		From:                 req.From,
		To:                   req.To,
		AnswerURL:            callbackURL,
		StatusCallbackURL:    callbackURL,
		Record:               phoneCfg.RecordOutboundCalls,
		RecordingCallbackURL: h.recordingCallbackURL(orgID),
		TimeoutSecs:          30,
	})
	if err != nil {
		_ = h.Limiter.Release(c.Request.Context(), orgID)
		h.Log.Error("originate failed", "org_id", orgID, "error", err)
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "originate failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"call_sid": res.CallSid, "status": string(res.Status)})
}

func (h Handlers) statusCallbackURL(orgID, leadID, callSessionID, userID string) string {
	q := url.Values{}
	if leadID != "" {
		q.Set("lead_id", leadID)
	}
	if callSessionID != "" {
		q.Set("call_session_id", callSessionID)
	}
	if userID != "" {
		q.Set("user_id", userID)
	}
	u := fmt.Sprintf("%s/webhooks/voice/%s", strings.TrimRight(h.PublicBaseURL, "/"), orgID)
	if enc := q.Encode(); enc != "" {
		u += "?" + enc
	}
	return u
}

func (h Handlers) recordingCallbackURL(orgID string) string {
	return fmt.Sprintf("%s/webhooks/voice/%s/recording", strings.TrimRight(h.PublicBaseURL, "/"), orgID)
}

// --- Calls ---

func (h Handlers) ListCalls(c *gin.Context) {
	orgID, err := auth.OrgID(c.Request.Context())
	if err != nil || orgID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "org_id required"})
		return
	}

	var since time.Time
	if v := c.Query("since"); v != "" {
		since, err = time.Parse(time.RFC3339, v)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "since must be RFC3339"})
			return
		}
	}

	out, err := h.Calls.ListByOrg(c.Request.Context(), orgID, since)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call listing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"calls": out})
}

// FlowExecutionLog returns the recorded flow runs for one call sid.
func (h Handlers) FlowExecutionLog(c *gin.Context) {
	orgID, err := auth.OrgID(c.Request.Context())
	if err != nil || orgID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "org_id required"})
		return
	}
	callSid := c.Param("call_sid")
	if callSid == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "call_sid required"})
		return
	}

	recs, err := h.Audit.History(c.Request.Context(), orgID, callSid)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "execution log lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"executions": recs})
}

// --- Flow configuration ---

func (h Handlers) GetFlowConfig(c *gin.Context) {
	orgID, err := auth.OrgID(c.Request.Context())
	if err != nil || orgID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "org_id required"})
		return
	}

	cfg, err := h.Flows.Get(c.Request.Context(), orgID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "flow configuration lookup failed"})
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (h Handlers) PutFlowConfig(c *gin.Context) {
	orgID, err := auth.OrgID(c.Request.Context())
	if err != nil || orgID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "org_id required"})
		return
	}

	var cfg flow.Configuration
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	// The token decides the tenant, never the body.
	cfg.OrgID = orgID

	saved, err := h.Flows.Update(c.Request.Context(), cfg)
	switch {
	case errors.Is(err, tier.ErrNotEntitled):
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "tier does not include this feature"})
		return
	case errors.Is(err, flow.ErrInvalidConfig):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid flow configuration"})
		return
	case errors.Is(err, orgs.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "organization not found"})
		return
	case err != nil:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "flow configuration update failed"})
		return
	}
	c.JSON(http.StatusOK, saved)
}

// --- Phone configuration ---

func (h Handlers) GetPhoneConfig(c *gin.Context) {
	orgID, err := auth.OrgID(c.Request.Context())
	if err != nil || orgID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "org_id required"})
		return
	}

	cfg, err := h.Orgs.PhoneConfiguration(c.Request.Context(), orgID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "phone configuration lookup failed"})
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (h Handlers) PutPhoneConfig(c *gin.Context) {
	orgID, err := auth.OrgID(c.Request.Context())
	if err != nil || orgID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "org_id required"})
		return
	}

	var cfg orgs.PhoneConfiguration
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	cfg.OrgID = orgID

	saved, err := h.Orgs.UpdatePhoneConfiguration(c.Request.Context(), cfg)
	switch {
	case errors.Is(err, tier.ErrNotEntitled):
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "tier does not include this feature"})
		return
	case errors.Is(err, orgs.ErrInvalidConfig):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid phone configuration"})
		return
	case errors.Is(err, orgs.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "organization not found"})
		return
	case err != nil:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "phone configuration update failed"})
		return
	}
	c.JSON(http.StatusOK, saved)
}

// --- Reporting ---

func (h Handlers) CallsSummary(c *gin.Context) {
	orgID, err := auth.OrgID(c.Request.Context())
	if err != nil || orgID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "org_id required"})
		return
	}

	from, err := time.Parse(time.RFC3339, c.Query("from"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "from must be RFC3339"})
		return
	}
	to, err := time.Parse(time.RFC3339, c.Query("to"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "to must be RFC3339"})
		return
	}

	out, err := h.Reports.CallsSummary(c.Request.Context(), reporting.CallsSummaryRequest{
		OrgID:  orgID,
		Range:  reporting.TimeRange{From: from, To: to},
		UserID: c.Query("user_id"),
	})
	if errors.Is(err, reporting.ErrInvalidRequest) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid report request"})
		return
	}
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "report failed"})
		return
	}
	c.JSON(http.StatusOK, out)
}

// --- Health ---

func (h Handlers) Healthz(c *gin.Context) {
	if h.DB != nil {
		if err := utils.HealthCheck(c.Request.Context(), h.DB, 2*time.Second); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "postgres": "unreachable"})
			return
		}
	}
	if h.RDB != nil {
		if err := h.RDB.Ping(c.Request.Context()).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "redis": "unreachable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
