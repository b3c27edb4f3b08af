package httpapi

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"callflow-platform/pkg/utils"
)

// Limiter caps simultaneous outbound legs per organization. The dialer
// acquires a slot before originating and the webhook releases it when the
// provider reports a terminal status for the leg.
type Limiter interface {
	Acquire(ctx context.Context, orgID string, limit int) (bool, error)
	Release(ctx context.Context, orgID string) error
}

// dialerSlotTTL bounds how long a slot can stay held when the terminal
// callback never arrives (provider outage, dropped webhook).
const dialerSlotTTL = time.Hour

func dialerCapKey(orgID string) string { return "dialer:cap:" + orgID }

// RedisLimiter implements Limiter on the shared redis counter scripts.
type RedisLimiter struct {
	RDB *redis.Client

	// TTL overrides dialerSlotTTL when set.
	TTL time.Duration
}

func (l RedisLimiter) Acquire(ctx context.Context, orgID string, limit int) (bool, error) {
	ttl := l.TTL
	if ttl <= 0 {
		ttl = dialerSlotTTL
	}
	return utils.AcquireConcurrencyCap(ctx, l.RDB, dialerCapKey(orgID), limit, ttl)
}

func (l RedisLimiter) Release(ctx context.Context, orgID string) error {
	return utils.ReleaseConcurrencyCap(ctx, l.RDB, dialerCapKey(orgID))
}
