package auth

import (
	"testing"
	"time"

	"callflow-platform/internal/config"
)

func TestIssueAndVerifyAccessToken(t *testing.T) {
	m, err := NewManager(config.AuthConfig{
		JWTSecret:       "secret",
		JWTIssuer:       "issuer",
		JWTAudience:     "aud",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}

	now := time.Unix(1700000000, 0).UTC()
	pair, err := m.IssuePair(now, "user-1", "org-1", "agent", "sess-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("expected token strings")
	}

	claims, err := m.Verify(pair.AccessToken, TokenTypeAccess, now.Add(1*time.Minute))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != "user-1" || claims.OrgID != "org-1" || claims.Role != "agent" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.SessionID != "sess-1" {
		t.Fatalf("expected session id carried, got %q", claims.SessionID)
	}
}

func TestVerifyHonorsCallerClock(t *testing.T) {
	m, err := NewManager(config.AuthConfig{
		JWTSecret:       "secret",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}

	issued := time.Unix(1700000000, 0).UTC()
	pair, err := m.IssuePair(issued, "user-1", "org-1", "agent", "")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	// A token issued in the past verifies when the caller's clock sits
	// inside its lifetime, regardless of the wall clock.
	if _, err := m.Verify(pair.AccessToken, TokenTypeAccess, issued.Add(14*time.Minute)); err != nil {
		t.Fatalf("verify within lifetime: %v", err)
	}

	// Past the TTL plus leeway the same token is rejected.
	if _, err := m.Verify(pair.AccessToken, TokenTypeAccess, issued.Add(16*time.Minute)); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}

func TestVerifyRejectsWrongTokenType(t *testing.T) {
	m, _ := NewManager(config.AuthConfig{JWTSecret: "secret", AccessTokenTTL: time.Minute, RefreshTokenTTL: time.Hour})
	p, err := m.IssuePair(time.Now(), "u", "o", "r", "")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Verify(p.RefreshToken, TokenTypeAccess, time.Now()); err == nil {
		t.Fatalf("expected token_type mismatch")
	}
}
