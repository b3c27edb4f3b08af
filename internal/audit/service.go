package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"callflow-platform/internal/flow"
)

// Repository is the persistence contract for execution records.
//
// It MUST be append-only.
// No Update/Delete methods are provided by design.

type Repository interface {
	Append(ctx context.Context, rec ExecutionRecord) error
	ListByCallSid(ctx context.Context, orgID, callSid string) ([]ExecutionRecord, error)
}

// Service persists flow execution logs for operators.
//
// IMPORTANT:
// - Records are internal-only. Do not expose them to tenant users by default.
// - Callers should treat recording as best-effort.

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidRecord = errors.New("audit: invalid record")

// RecordExecution satisfies flow.Trail.
func (s *Service) RecordExecution(ctx context.Context, orgID, callSid string, log []flow.StepResult, success bool) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if orgID == "" || callSid == "" {
		return ErrInvalidRecord
	}
	return s.repo.Append(ctx, ExecutionRecord{
		ID:        uuid.NewString(),
		OrgID:     orgID,
		CallSid:   callSid,
		Success:   success,
		Steps:     log,
		CreatedAt: s.clock().UTC(),
	})
}

// History returns every recorded run for one call, oldest first.
func (s *Service) History(ctx context.Context, orgID, callSid string) ([]ExecutionRecord, error) {
	if orgID == "" || callSid == "" {
		return nil, ErrInvalidRecord
	}
	return s.repo.ListByCallSid(ctx, orgID, callSid)
}
