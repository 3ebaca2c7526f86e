package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/custodialabs/custodia/internal/errs"
	"github.com/custodialabs/custodia/internal/model"
)

func newDB(t *testing.T) (*DB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return &DB{Pool: mock}, mock
}

const jobCols = `id, case_id, evidence_id, tool_name, options, status, queued_at, created_at, completed_at, result, error`

func jobRow(j *model.Job) *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "case_id", "evidence_id", "tool_name", "options", "status",
		"queued_at", "created_at", "completed_at", "result", "error",
	}).AddRow(j.ID, j.CaseID, j.EvidenceID, j.ToolName, j.Options, j.Status,
		j.QueuedAt, j.CreatedAt, j.CompletedAt, j.Result, nil)
}

func TestJobRepo_CreateAndGet(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewJobRepo(db)
	ctx := context.Background()

	evID := uuid.Must(uuid.NewV4())
	j := &model.Job{
		ID:         uuid.Must(uuid.NewV4()),
		CaseID:     uuid.Must(uuid.NewV4()),
		EvidenceID: &evID,
		ToolName:   "triage",
		Status:     model.JobPending,
		QueuedAt:   time.Now(),
		CreatedAt:  time.Now(),
	}

	mock.ExpectExec(`INSERT INTO jobs`).
		WithArgs(j.ID, j.CaseID, j.EvidenceID, j.ToolName, j.Options, model.JobPending).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, r.Create(ctx, j))

	mock.ExpectQuery(`SELECT ` + jobCols + ` FROM jobs WHERE id=\$1`).
		WithArgs(j.ID).
		WillReturnRows(jobRow(j))
	got, err := r.Get(ctx, j.ID)
	require.NoError(t, err)
	require.Equal(t, j.ID, got.ID)
	require.Equal(t, model.JobPending, got.Status)
	require.Nil(t, got.CompletedAt)
	require.Empty(t, got.Error)

	mock.ExpectQuery(`SELECT ` + jobCols + ` FROM jobs WHERE id=\$1`).
		WithArgs(j.ID).
		WillReturnError(pgx.ErrNoRows)
	_, err = r.Get(ctx, j.ID)
	require.ErrorIs(t, err, errs.ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRepo_Claim_ContestedOnceOnly(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewJobRepo(db)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())

	// First claimer wins the conditional update.
	mock.ExpectExec(`UPDATE jobs SET status=\$2 WHERE id=\$1 AND status=\$3`).
		WithArgs(id, model.JobRunning, model.JobPending).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	ok, err := r.Claim(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)

	// Second claimer matches zero rows and must do no work.
	mock.ExpectExec(`UPDATE jobs SET status=\$2 WHERE id=\$1 AND status=\$3`).
		WithArgs(id, model.JobRunning, model.JobPending).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	ok, err = r.Claim(ctx, id)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRepo_Complete(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewJobRepo(db)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())
	result := map[string]any{"entropy": 1.0}

	mock.ExpectExec(`UPDATE jobs SET status=\$2, result=\$3, error=NULL, completed_at=now\(\)`).
		WithArgs(id, model.JobCompleted, result, model.JobPending, model.JobRunning).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, r.Complete(ctx, id, result))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRepo_Fail(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewJobRepo(db)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())

	mock.ExpectExec(`UPDATE jobs SET status=\$2, error=\$3, result=NULL, completed_at=now\(\)`).
		WithArgs(id, model.JobFailed, "boom", model.JobPending, model.JobRunning).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, r.Fail(ctx, id, "boom"))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRepo_TerminalRetransitionRejected(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewJobRepo(db)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())

	// Conditional update matches nothing; the follow-up status read shows a
	// terminal job, which maps to ErrTerminalState, not silent corruption.
	mock.ExpectExec(`UPDATE jobs SET status=\$2, result=\$3`).
		WithArgs(id, model.JobCompleted, map[string]any{}, model.JobPending, model.JobRunning).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`SELECT status FROM jobs WHERE id=\$1`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow(model.JobFailed))
	err := r.Complete(ctx, id, map[string]any{})
	require.ErrorIs(t, err, errs.ErrTerminalState)

	// Same rejection shape when the job does not exist at all.
	mock.ExpectExec(`UPDATE jobs SET status=\$2, error=\$3`).
		WithArgs(id, model.JobFailed, "x", model.JobPending, model.JobRunning).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`SELECT status FROM jobs WHERE id=\$1`).
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)
	err = r.Fail(ctx, id, "x")
	require.ErrorIs(t, err, errs.ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRepo_FailPending(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewJobRepo(db)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())

	mock.ExpectExec(`UPDATE jobs SET status=\$2, error=\$3, completed_at=now\(\)`).
		WithArgs(id, model.JobFailed, `unknown tool "nope"`, model.JobPending).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	ok, err := r.FailPending(ctx, id, `unknown tool "nope"`)
	require.NoError(t, err)
	require.True(t, ok)

	mock.ExpectExec(`UPDATE jobs SET status=\$2, error=\$3, completed_at=now\(\)`).
		WithArgs(id, model.JobFailed, "late", model.JobPending).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	ok, err = r.FailPending(ctx, id, "late")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRepo_NextPending(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewJobRepo(db)
	ctx := context.Background()

	j := &model.Job{
		ID:       uuid.Must(uuid.NewV4()),
		CaseID:   uuid.Must(uuid.NewV4()),
		ToolName: "verification",
		Status:   model.JobPending,
	}
	mock.ExpectQuery(`FROM jobs WHERE status=\$1 ORDER BY queued_at ASC`).
		WithArgs(model.JobPending).
		WillReturnRows(jobRow(j))
	got, err := r.NextPending(ctx)
	require.NoError(t, err)
	require.Equal(t, j.ID, got.ID)

	mock.ExpectQuery(`FROM jobs WHERE status=\$1 ORDER BY queued_at ASC`).
		WithArgs(model.JobPending).
		WillReturnError(pgx.ErrNoRows)
	_, err = r.NextPending(ctx)
	require.ErrorIs(t, err, errs.ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}
