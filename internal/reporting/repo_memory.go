package reporting

import (
	"context"
	"errors"
	"sync"
	"time"

	"callflow-platform/internal/calls"
)

// MemoryRepo is a simple in-memory reporting repository for tests and early development.
// It enforces org isolation on reads.

type MemoryRepo struct {
	mu sync.Mutex

	Calls []calls.Call
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) ListCalls(ctx context.Context, orgID string, from, to time.Time, userID string) ([]calls.Call, error) {
	if orgID == "" {
		return nil, errors.New("org_id required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]calls.Call, 0)
	for _, c := range r.Calls {
		if c.OrgID != orgID {
			continue
		}
		if !c.CreatedAt.IsZero() {
			if c.CreatedAt.Before(from) || !c.CreatedAt.Before(to) {
				continue
			}
		}
		if userID != "" && c.CreatedUserID != userID {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}
