package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"callflow-platform/internal/audit"
	"callflow-platform/internal/auth"
	"callflow-platform/internal/calls"
	"callflow-platform/internal/config"
	"callflow-platform/internal/flow"
	"callflow-platform/internal/orgs"
	"callflow-platform/internal/reporting"
	"callflow-platform/internal/telephony"
	"callflow-platform/internal/tier"
)

type stubVoice struct {
	lastReq telephony.OriginateRequest
	calls   int
	err     error
}

func (s *stubVoice) Originate(ctx context.Context, req telephony.OriginateRequest) (telephony.OriginateResult, error) {
	s.calls++
	s.lastReq = req
	if s.err != nil {
		return telephony.OriginateResult{}, s.err
	}
	return telephony.OriginateResult{CallSid: "CA100", Status: telephony.CallStatusInitiated}, nil
}

func (s *stubVoice) Hangup(ctx context.Context, callSid string) error { return nil }

// identityMW injects an authenticated caller, standing in for the JWT
// middleware exercised in internal/auth.
func identityMW(userID, orgID, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := auth.WithIdentity(c.Request.Context(), userID, orgID, role, "sess-1")
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

type apiFixture struct {
	handlers Handlers
	voice    *stubVoice
	limiter  *stubLimiter
	orgSvc   *orgs.Service
	callSvc  *calls.Service
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	gate := tier.StaticGate{}

	orgRepo := orgs.NewMemoryRepo()
	orgRepo.PutOrganization(orgs.Organization{ID: "org-1", Name: "Acme", Tier: tier.TierPro})
	orgRepo.PutOrganization(orgs.Organization{ID: "org-starter", Name: "Small", Tier: tier.TierStarter})
	orgSvc := orgs.NewService(orgRepo, gate)

	callSvc := calls.NewService(calls.NewMemoryRepo(), log)
	flows := flow.NewConfigStore(flow.NewMemoryRepo(), nil, orgSvc, gate, log)

	mgr, err := auth.NewManager(config.AuthConfig{
		JWTSecret:       "test-secret",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: time.Hour,
	})
	if err != nil {
		t.Fatalf("auth manager: %v", err)
	}

	voice := &stubVoice{}
	lim := &stubLimiter{allow: true}
	reportRepo := reporting.NewMemoryRepo()

	return &apiFixture{
		handlers: Handlers{
			Auth:          mgr,
			Voice:         voice,
			Orgs:          orgSvc,
			Calls:         callSvc,
			Flows:         flows,
			Audit:         audit.NewService(audit.NewMemoryRepo()),
			Reports:       reporting.NewService(reportRepo),
			Gate:          gate,
			Limiter:       lim,
			Log:           log,
			PublicBaseURL: "https://app.example.com",
		},
		voice:   voice,
		limiter: lim,
		orgSvc:  orgSvc,
		callSvc: callSvc,
	}
}

func jsonRequest(t *testing.T, r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestLogin_IssuesTokenPair(t *testing.T) {
	f := newAPIFixture(t)
	r := gin.New()
	r.POST("/v1/auth/session", f.handlers.Login)

	w := jsonRequest(t, r, http.MethodPost, "/v1/auth/session",
		`{"user_id":"u1","org_id":"org-1","role":"agent","session_id":"sess-1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var out map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("bad response: %v", err)
	}
	if out["access_token"] == "" || out["refresh_token"] == "" {
		t.Fatalf("expected both tokens, got %v", out)
	}
}

func TestLogin_RejectsIncompleteBody(t *testing.T) {
	f := newAPIFixture(t)
	r := gin.New()
	r.POST("/v1/auth/session", f.handlers.Login)

	w := jsonRequest(t, r, http.MethodPost, "/v1/auth/session", `{"user_id":"u1"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestOriginate_AttachesCorrelationIDs(t *testing.T) {
	f := newAPIFixture(t)
	r := gin.New()
	r.POST("/v1/calls/originate", identityMW("u1", "org-1", "agent"), f.handlers.OriginateCall)

	w := jsonRequest(t, r, http.MethodPost, "/v1/calls/originate",
		`{"from":"+15550001111","to":"+15552223333","lead_id":"lead-7","call_session_id":"cs-9"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if f.voice.calls != 1 {
		t.Fatalf("expected one originate, got %d", f.voice.calls)
	}

	cb := f.voice.lastReq.StatusCallbackURL
	for _, want := range []string{
		"https://app.example.com/webhooks/voice/org-1",
		"lead_id=lead-7",
		"call_session_id=cs-9",
		"user_id=u1",
	} {
		if !strings.Contains(cb, want) {
			t.Fatalf("expected %q in callback url %q", want, cb)
		}
	}

	// Outbound recording follows the org's phone configuration default.
	if !f.voice.lastReq.Record {
		t.Fatalf("expected recording enabled by default config")
	}
	if !strings.Contains(f.voice.lastReq.RecordingCallbackURL, "/webhooks/voice/org-1/recording") {
		t.Fatalf("unexpected recording callback %q", f.voice.lastReq.RecordingCallbackURL)
	}
}

func TestOriginate_CapReached(t *testing.T) {
	f := newAPIFixture(t)
	f.limiter.allow = false
	r := gin.New()
	r.POST("/v1/calls/originate", identityMW("u1", "org-1", "agent"), f.handlers.OriginateCall)

	w := jsonRequest(t, r, http.MethodPost, "/v1/calls/originate",
		`{"from":"+15550001111","to":"+15552223333"}`)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if f.voice.calls != 0 {
		t.Fatalf("originate must not reach the provider when the cap is hit")
	}
}

func TestGetFlowConfig_ReturnsDefaults(t *testing.T) {
	f := newAPIFixture(t)
	r := gin.New()
	r.GET("/v1/flow-config", identityMW("u1", "org-1", "owner"), f.handlers.GetFlowConfig)

	req := httptest.NewRequest(http.MethodGet, "/v1/flow-config", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var cfg flow.Configuration
	if err := json.Unmarshal(w.Body.Bytes(), &cfg); err != nil {
		t.Fatalf("bad response: %v", err)
	}
	if cfg.MinCallDuration != 30 || !cfg.RecordingEnabled {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestPutFlowConfig_TierGate(t *testing.T) {
	f := newAPIFixture(t)
	r := gin.New()
	r.PUT("/v1/flow-config", identityMW("u1", "org-starter", "owner"), f.handlers.PutFlowConfig)

	// Starter has no custom flows entitlement.
	w := jsonRequest(t, r, http.MethodPut, "/v1/flow-config", `{"min_call_duration":45}`)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", w.Code, w.Body.String())
	}
}

func TestPutFlowConfig_BodyCannotSwitchTenant(t *testing.T) {
	f := newAPIFixture(t)
	r := gin.New()
	r.PUT("/v1/flow-config", identityMW("u1", "org-1", "owner"), f.handlers.PutFlowConfig)

	w := jsonRequest(t, r, http.MethodPut, "/v1/flow-config",
		`{"org_id":"org-other","min_call_duration":45,"recording_enabled":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var cfg flow.Configuration
	if err := json.Unmarshal(w.Body.Bytes(), &cfg); err != nil {
		t.Fatalf("bad response: %v", err)
	}
	if cfg.OrgID != "org-1" {
		t.Fatalf("body org_id must be ignored, got %q", cfg.OrgID)
	}
}

func TestPutPhoneConfig_RoundTrip(t *testing.T) {
	f := newAPIFixture(t)
	r := gin.New()
	mw := identityMW("u1", "org-1", "owner")
	r.PUT("/v1/phone-config", mw, f.handlers.PutPhoneConfig)
	r.GET("/v1/phone-config", mw, f.handlers.GetPhoneConfig)

	w := jsonRequest(t, r, http.MethodPut, "/v1/phone-config",
		`{"inbound_flow":"forward","forward_to_number":"+15559998888"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/phone-config", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var cfg orgs.PhoneConfiguration
	if err := json.Unmarshal(w.Body.Bytes(), &cfg); err != nil {
		t.Fatalf("bad response: %v", err)
	}
	if cfg.InboundFlow != orgs.InboundFlowForward || cfg.ForwardToNumber != "+15559998888" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestCallsSummary_RequiresRange(t *testing.T) {
	f := newAPIFixture(t)
	r := gin.New()
	r.GET("/v1/reports/calls", identityMW("u1", "org-1", "owner"), f.handlers.CallsSummary)

	req := httptest.NewRequest(http.MethodGet, "/v1/reports/calls", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without range, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet,
		"/v1/reports/calls?from=2026-01-01T00:00:00Z&to=2026-02-01T00:00:00Z", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}
