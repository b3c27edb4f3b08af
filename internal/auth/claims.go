package auth

import "github.com/golang-jwt/jwt/v5"

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims are the only supported JWT claims shape for this service.
// Multi-tenant invariant: OrgID must be present for all non-admin activity.
// SessionID ties the token to the agent's dialer session so originated legs
// carry the correlation id end to end.
type Claims struct {
	jwt.RegisteredClaims

	UserID    string    `json:"user_id"`
	OrgID     string    `json:"org_id"`
	SessionID string    `json:"session_id,omitempty"`
	Role      string    `json:"role"`
	TokenType TokenType `json:"token_type"`
}
