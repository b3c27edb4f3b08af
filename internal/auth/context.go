package auth

import (
	"context"
	"errors"
)

type ctxKey int

const (
	ctxUserID ctxKey = iota
	ctxOrgID
	ctxRole
	ctxSessionID
)

func WithIdentity(ctx context.Context, userID, orgID, role, sessionID string) context.Context {
	ctx = context.WithValue(ctx, ctxUserID, userID)
	ctx = context.WithValue(ctx, ctxOrgID, orgID)
	ctx = context.WithValue(ctx, ctxRole, role)
	ctx = context.WithValue(ctx, ctxSessionID, sessionID)
	return ctx
}

func UserID(ctx context.Context) (string, error) {
	v := ctx.Value(ctxUserID)
	if s, ok := v.(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New("user_id not in context")
}

func OrgID(ctx context.Context) (string, error) {
	v := ctx.Value(ctxOrgID)
	if s, ok := v.(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New("org_id not in context")
}

func Role(ctx context.Context) (string, error) {
	v := ctx.Value(ctxRole)
	if s, ok := v.(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New("role not in context")
}

// SessionID may legitimately be empty for tokens issued outside a dialer
// session, so absence is not an error.
func SessionID(ctx context.Context) string {
	if s, ok := ctx.Value(ctxSessionID).(string); ok {
		return s
	}
	return ""
}
