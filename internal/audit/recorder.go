// Package audit wraps the chain-of-custody ledger with the system's
// best-effort write policy: audit loss never rolls back the operation it
// describes, and it is never silent.
package audit

import (
	"context"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/custodialabs/custodia/internal/model"
	"github.com/custodialabs/custodia/internal/repository"
)

// SystemActor names actions taken by the server itself (e.g. dispatcher
// transitions) rather than an authenticated operator.
const SystemActor = "system"

// Action tags recorded across the system. Dotted namespaces make prefix
// queries useful ("auth.", "job.").
const (
	ActionLogin             = "auth.login"
	ActionLogout            = "auth.logout"
	ActionAck               = "auth.ack"
	ActionCaseCreate        = "case.create"
	ActionEvidenceIngest    = "evidence.ingest"
	ActionIntegrityMismatch = "evidence.integrity.mismatch"
	ActionJobSubmit         = "job.submit"
	ActionJobCompleted      = "job.completed"
	ActionJobFailed         = "job.failed"
)

// Recorder appends entries to the ledger. A failed append is surfaced as a
// degraded-mode warning in the log, not as an error to the caller:
// evidentiary correctness of the primary record takes precedence over audit
// completeness.
type Recorder struct {
	repo repository.AuditRepository
	log  *zap.Logger
}

// NewRecorder constructs a recorder.
func NewRecorder(repo repository.AuditRepository, log *zap.Logger) *Recorder {
	return &Recorder{repo: repo, log: log}
}

// Record appends one entry. It never returns an error.
func (r *Recorder) Record(ctx context.Context, caseID *uuid.UUID, action, actor, origin string, details map[string]any) {
	e := &model.AuditEntry{
		CaseID:  caseID,
		Action:  action,
		Actor:   actor,
		Origin:  origin,
		Details: details,
	}
	if err := r.repo.Append(ctx, e); err != nil {
		r.log.Warn("audit write failed; primary operation not rolled back",
			zap.String("action", action),
			zap.String("actor", actor),
			zap.Error(err),
		)
	}
}

// Query returns ledger entries matching the filter in insertion order.
func (r *Recorder) Query(ctx context.Context, f model.AuditFilter) ([]model.AuditEntry, error) {
	return r.repo.Query(ctx, f)
}
