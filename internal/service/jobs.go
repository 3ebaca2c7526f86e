package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofrs/uuid/v5"

	"github.com/custodialabs/custodia/internal/audit"
	"github.com/custodialabs/custodia/internal/errs"
	"github.com/custodialabs/custodia/internal/model"
	"github.com/custodialabs/custodia/internal/repository"
)

// JobService creates and reads jobs. After creation a job is mutated only by
// the dispatcher; this service never transitions state.
type JobService interface {
	// Submit validates references and enqueues a PENDING job.
	Submit(ctx context.Context, caseID uuid.UUID, toolName string, evidenceID *uuid.UUID, options map[string]any, actor, origin string) (*model.Job, error)
	// Get returns a job snapshot.
	Get(ctx context.Context, id uuid.UUID) (*model.Job, error)
	// ListByCase returns a case's jobs ordered by queue time.
	ListByCase(ctx context.Context, caseID uuid.UUID) ([]model.Job, error)
}

type JobServiceImpl struct {
	jobs     repository.JobRepository
	cases    repository.CaseRepository
	evidence repository.EvidenceRepository
	auditor  *audit.Recorder
}

// NewJobService constructs JobService with required dependencies.
func NewJobService(
	jobs repository.JobRepository,
	cases repository.CaseRepository,
	evidence repository.EvidenceRepository,
	auditor *audit.Recorder,
) *JobServiceImpl {
	return &JobServiceImpl{jobs: jobs, cases: cases, evidence: evidence, auditor: auditor}
}

// Submit checks that the case exists and that any referenced evidence
// belongs to it, then enqueues the job. Tool names are not resolved here:
// dispatch owns module lookup, so an unknown tool becomes a FAILED job, not
// a rejected request.
func (s *JobServiceImpl) Submit(ctx context.Context, caseID uuid.UUID, toolName string, evidenceID *uuid.UUID, options map[string]any, actor, origin string) (*model.Job, error) {
	toolName = strings.TrimSpace(toolName)
	if toolName == "" {
		return nil, fmt.Errorf("%w: empty tool name", errs.ErrValidation)
	}
	if _, err := s.cases.Get(ctx, caseID); err != nil {
		return nil, err
	}
	if evidenceID != nil {
		e, err := s.evidence.Get(ctx, *evidenceID)
		if err != nil {
			return nil, err
		}
		if e.CaseID != caseID {
			return nil, fmt.Errorf("%w: evidence %s belongs to another case", errs.ErrValidation, evidenceID)
		}
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	j := &model.Job{
		ID:         id,
		CaseID:     caseID,
		EvidenceID: evidenceID,
		ToolName:   toolName,
		Options:    options,
		Status:     model.JobPending,
	}
	if err := s.jobs.Create(ctx, j); err != nil {
		return nil, err
	}

	details := map[string]any{"job_id": id.String(), "tool": toolName}
	if evidenceID != nil {
		details["evidence_id"] = evidenceID.String()
	}
	s.auditor.Record(ctx, &caseID, audit.ActionJobSubmit, actor, origin, details)
	return s.jobs.Get(ctx, id)
}

// Get returns the current job snapshot.
func (s *JobServiceImpl) Get(ctx context.Context, id uuid.UUID) (*model.Job, error) {
	return s.jobs.Get(ctx, id)
}

// ListByCase returns a case's jobs ordered by queue time.
func (s *JobServiceImpl) ListByCase(ctx context.Context, caseID uuid.UUID) ([]model.Job, error) {
	return s.jobs.ListByCase(ctx, caseID)
}
