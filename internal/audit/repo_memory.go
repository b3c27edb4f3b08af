package audit

import (
	"context"
	"sync"
)

// MemoryRepo is a simple in-memory append-only repository useful for tests.
// It is not intended for production use.

type MemoryRepo struct {
	mu      sync.Mutex
	records []ExecutionRecord
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) Append(ctx context.Context, rec ExecutionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}

func (r *MemoryRepo) ListByCallSid(ctx context.Context, orgID, callSid string) ([]ExecutionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ExecutionRecord
	for _, rec := range r.records {
		if rec.OrgID == orgID && rec.CallSid == callSid {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *MemoryRepo) Records() []ExecutionRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ExecutionRecord, len(r.records))
	copy(out, r.records)
	return out
}
