package calls

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is a simple in-memory repository useful for tests.
// It is not intended for production use.

type MemoryRepo struct {
	mu     sync.Mutex
	bySid  map[string]Call  // orgID+"/"+callSid
	owners map[string]Owner // orgID+"/"+callSid
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		bySid:  make(map[string]Call),
		owners: make(map[string]Owner),
	}
}

func key(orgID, callSid string) string { return orgID + "/" + callSid }

func (r *MemoryRepo) GetBySid(ctx context.Context, orgID, callSid string) (Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.bySid[key(orgID, callSid)]
	if !ok {
		return Call{}, ErrNotFound
	}
	return c, nil
}

func (r *MemoryRepo) Create(ctx context.Context, c Call) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bySid[key(c.OrgID, c.CallSid)] = c
	return nil
}

func (r *MemoryRepo) Update(ctx context.Context, c Call) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bySid[key(c.OrgID, c.CallSid)]; !ok {
		return ErrNotFound
	}
	r.bySid[key(c.OrgID, c.CallSid)] = c
	return nil
}

func (r *MemoryRepo) ListByOrg(ctx context.Context, orgID string, since time.Time) ([]Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Call
	for _, c := range r.bySid {
		if c.OrgID == orgID && !c.CreatedAt.Before(since) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepo) RegisterOwner(ctx context.Context, o Owner) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key(o.OrgID, o.CallSid)
	if cur, ok := r.owners[k]; ok {
		if cur.Kind == o.Kind && cur.OwnerID == o.OwnerID {
			return nil
		}
		return ErrOwnerConflict
	}
	r.owners[k] = o
	return nil
}

func (r *MemoryRepo) ResolveOwner(ctx context.Context, orgID, callSid string) (Owner, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.owners[key(orgID, callSid)]
	if !ok {
		return Owner{}, ErrNotFound
	}
	return o, nil
}
