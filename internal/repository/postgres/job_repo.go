package postgres

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/custodialabs/custodia/internal/errs"
	"github.com/custodialabs/custodia/internal/model"
)

// JobRepo implements JobRepository using PostgreSQL. All lifecycle writes are
// conditional single-statement updates so readers never observe a status
// without its timestamp/result/error invariant, and so two workers can never
// both claim the same job.
type JobRepo struct{ db *DB }

// NewJobRepo constructs a job repository.
func NewJobRepo(db *DB) *JobRepo { return &JobRepo{db: db} }

const jobColumns = `id, case_id, evidence_id, tool_name, options, status, queued_at, created_at, completed_at, result, error`

// Create inserts a new PENDING job.
func (r *JobRepo) Create(ctx context.Context, j *model.Job) error {
	const q = `
INSERT INTO jobs (id, case_id, evidence_id, tool_name, options, status)
VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.db.Pool.Exec(ctx, q, j.ID, j.CaseID, j.EvidenceID, j.ToolName, j.Options, model.JobPending)
	return err
}

// Get selects a job snapshot by ID.
func (r *JobRepo) Get(ctx context.Context, id uuid.UUID) (*model.Job, error) {
	const q = `SELECT ` + jobColumns + ` FROM jobs WHERE id=$1`
	return scanJob(r.db.Pool.QueryRow(ctx, q, id))
}

// ListByCase returns a case's jobs ordered by queue time.
func (r *JobRepo) ListByCase(ctx context.Context, caseID uuid.UUID) ([]model.Job, error) {
	const q = `SELECT ` + jobColumns + ` FROM jobs WHERE case_id=$1 ORDER BY queued_at ASC, created_at ASC`
	rows, err := r.db.Pool.Query(ctx, q, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *j)
	}
	return out, rows.Err()
}

// NextPending returns the oldest PENDING job without changing its state.
func (r *JobRepo) NextPending(ctx context.Context) (*model.Job, error) {
	const q = `SELECT ` + jobColumns + `
FROM jobs WHERE status=$1 ORDER BY queued_at ASC, created_at ASC LIMIT 1`
	return scanJob(r.db.Pool.QueryRow(ctx, q, model.JobPending))
}

// Claim atomically moves a job PENDING->RUNNING. Exactly one concurrent
// caller can win; everyone else sees false.
func (r *JobRepo) Claim(ctx context.Context, id uuid.UUID) (bool, error) {
	const q = `UPDATE jobs SET status=$2 WHERE id=$1 AND status=$3`
	tag, err := r.db.Pool.Exec(ctx, q, id, model.JobRunning, model.JobPending)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Complete moves a non-terminal job to COMPLETED, stamping completion time
// and storing the result in the same statement.
func (r *JobRepo) Complete(ctx context.Context, id uuid.UUID, result map[string]any) error {
	const q = `
UPDATE jobs SET status=$2, result=$3, error=NULL, completed_at=now()
WHERE id=$1 AND status IN ($4, $5)`
	tag, err := r.db.Pool.Exec(ctx, q, id, model.JobCompleted, result, model.JobPending, model.JobRunning)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.explainRejected(ctx, id)
	}
	return nil
}

// Fail moves a non-terminal job to FAILED, stamping completion time and
// storing the error message in the same statement.
func (r *JobRepo) Fail(ctx context.Context, id uuid.UUID, errMsg string) error {
	const q = `
UPDATE jobs SET status=$2, error=$3, result=NULL, completed_at=now()
WHERE id=$1 AND status IN ($4, $5)`
	tag, err := r.db.Pool.Exec(ctx, q, id, model.JobFailed, errMsg, model.JobPending, model.JobRunning)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.explainRejected(ctx, id)
	}
	return nil
}

// FailPending moves a job PENDING->FAILED directly; the job never observes
// RUNNING. Reports false when the job was not PENDING.
func (r *JobRepo) FailPending(ctx context.Context, id uuid.UUID, errMsg string) (bool, error) {
	const q = `
UPDATE jobs SET status=$2, error=$3, completed_at=now()
WHERE id=$1 AND status=$4`
	tag, err := r.db.Pool.Exec(ctx, q, id, model.JobFailed, errMsg, model.JobPending)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// explainRejected distinguishes a missing job from a terminal one after a
// conditional update matched no rows. Re-transitioning a terminal job is an
// error by policy, never a silent timestamp overwrite.
func (r *JobRepo) explainRejected(ctx context.Context, id uuid.UUID) error {
	const q = `SELECT status FROM jobs WHERE id=$1`
	var status model.JobStatus
	if err := r.db.Pool.QueryRow(ctx, q, id).Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return errs.ErrNotFound
		}
		return err
	}
	if status.Terminal() {
		return errs.ErrTerminalState
	}
	return errs.ErrNotFound
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*model.Job, error) {
	var (
		j      model.Job
		errMsg *string
	)
	err := row.Scan(&j.ID, &j.CaseID, &j.EvidenceID, &j.ToolName, &j.Options, &j.Status,
		&j.QueuedAt, &j.CreatedAt, &j.CompletedAt, &j.Result, &errMsg)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	if errMsg != nil {
		j.Error = *errMsg
	}
	return &j, nil
}
