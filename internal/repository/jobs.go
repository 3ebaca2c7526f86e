package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/custodialabs/custodia/internal/model"
)

// JobRepository owns the persisted job lifecycle. Every state change is a
// single short transaction; claiming is a conditional update so two workers
// can never both take the same job.
type JobRepository interface {
	// Create inserts a new PENDING job.
	Create(ctx context.Context, j *model.Job) error

	// Get loads a job snapshot by ID.
	Get(ctx context.Context, id uuid.UUID) (*model.Job, error)

	// ListByCase returns a case's jobs ordered by queue time.
	ListByCase(ctx context.Context, caseID uuid.UUID) ([]model.Job, error)

	// NextPending returns the oldest PENDING job without changing state, or
	// errs.ErrNotFound when the queue is empty.
	NextPending(ctx context.Context) (*model.Job, error)

	// Claim atomically moves a job PENDING->RUNNING. It reports false when
	// the job was no longer PENDING (lost race or already dispatched).
	Claim(ctx context.Context, id uuid.UUID) (bool, error)

	// Complete moves a non-terminal job to COMPLETED, stamping completion
	// time and storing the result. Terminal jobs yield errs.ErrTerminalState.
	Complete(ctx context.Context, id uuid.UUID, result map[string]any) error

	// Fail moves a non-terminal job to FAILED, stamping completion time and
	// storing the error message. Terminal jobs yield errs.ErrTerminalState.
	Fail(ctx context.Context, id uuid.UUID, errMsg string) error

	// FailPending moves a job PENDING->FAILED directly, used when dispatch
	// rejects a job (unknown tool) before it ever runs. Reports false when
	// the job was not PENDING.
	FailPending(ctx context.Context, id uuid.UUID, errMsg string) (bool, error)
}
