package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/custodialabs/custodia/internal/audit"
	"github.com/custodialabs/custodia/internal/digest"
	"github.com/custodialabs/custodia/internal/errs"
	"github.com/custodialabs/custodia/internal/model"
	"github.com/custodialabs/custodia/internal/repository"
	"github.com/custodialabs/custodia/internal/vault"
)

// CaseService handles cases, evidence ingestion, and integrity verification.
type CaseService interface {
	// CreateCase opens a new investigation case.
	CreateCase(ctx context.Context, name, actor, origin string) (*model.Case, error)
	// GetCase loads a case by ID.
	GetCase(ctx context.Context, id uuid.UUID) (*model.Case, error)
	// ListCases returns all cases.
	ListCases(ctx context.Context) ([]model.Case, error)
	// IngestEvidence writes the upload into the vault, computes both digests
	// from the bytes as stored, and records the evidence.
	IngestEvidence(ctx context.Context, caseID uuid.UUID, filename string, r io.Reader, actor, origin string) (*model.Evidence, error)
	// GetEvidence loads an evidence record by ID.
	GetEvidence(ctx context.Context, id uuid.UUID) (*model.Evidence, error)
	// ListEvidence returns a case's evidence.
	ListEvidence(ctx context.Context, caseID uuid.UUID) ([]model.Evidence, error)
	// VerifyEvidence recomputes digests from the current vault file and
	// compares against the stored ones. A mismatch is reported and audited,
	// never repaired.
	VerifyEvidence(ctx context.Context, evidenceID uuid.UUID, actor, origin string) (digest.Report, error)
}

type CaseServiceImpl struct {
	cases    repository.CaseRepository
	evidence repository.EvidenceRepository
	vault    *vault.Vault
	auditor  *audit.Recorder
	log      *zap.Logger
}

// NewCaseService constructs CaseService with required dependencies.
func NewCaseService(
	cases repository.CaseRepository,
	evidence repository.EvidenceRepository,
	v *vault.Vault,
	auditor *audit.Recorder,
	log *zap.Logger,
) *CaseServiceImpl {
	return &CaseServiceImpl{cases: cases, evidence: evidence, vault: v, auditor: auditor, log: log}
}

// CreateCase validates the name, persists the case, and audits the creation.
func (s *CaseServiceImpl) CreateCase(ctx context.Context, name, actor, origin string) (*model.Case, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: empty case name", errs.ErrValidation)
	}
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	c := &model.Case{ID: id, Name: name}
	if err := s.cases.Create(ctx, c); err != nil {
		return nil, err
	}
	s.auditor.Record(ctx, &c.ID, audit.ActionCaseCreate, actor, origin, map[string]any{"name": name})
	return c, nil
}

// GetCase loads a case by ID.
func (s *CaseServiceImpl) GetCase(ctx context.Context, id uuid.UUID) (*model.Case, error) {
	return s.cases.Get(ctx, id)
}

// ListCases returns all cases ordered by creation time.
func (s *CaseServiceImpl) ListCases(ctx context.Context) ([]model.Case, error) {
	return s.cases.List(ctx)
}

// IngestEvidence is the sole writer of evidence bytes. The vault write and
// the digest computation share one pass over the stream, so the stored
// digests describe the stored bytes exactly.
func (s *CaseServiceImpl) IngestEvidence(ctx context.Context, caseID uuid.UUID, filename string, r io.Reader, actor, origin string) (*model.Evidence, error) {
	if filename == "" {
		return nil, fmt.Errorf("%w: empty filename", errs.ErrValidation)
	}
	if _, err := s.cases.Get(ctx, caseID); err != nil {
		return nil, err
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	rel, pair, size, err := s.vault.StoreEvidence(caseID, id, filename, r)
	if err != nil {
		return nil, err
	}

	e := &model.Evidence{
		ID:           id,
		CaseID:       caseID,
		Path:         rel,
		OriginalName: filename,
		Size:         size,
		SHA256:       pair.SHA256,
		MD5:          pair.MD5,
	}
	if err := s.evidence.Create(ctx, e); err != nil {
		// No record points at the file; remove it so the vault only holds
		// tracked bytes.
		if abs, rerr := s.vault.Resolve(rel); rerr == nil {
			if rmErr := os.Remove(abs); rmErr != nil {
				s.log.Warn("orphaned evidence file left in vault",
					zap.String("path", rel),
					zap.Error(rmErr),
				)
			}
		}
		return nil, err
	}

	s.auditor.Record(ctx, &caseID, audit.ActionEvidenceIngest, actor, origin, map[string]any{
		"evidence_id": id.String(),
		"filename":    filename,
		"size":        size,
		"sha256":      pair.SHA256,
		"md5":         pair.MD5,
	})
	return e, nil
}

// GetEvidence loads an evidence record by ID.
func (s *CaseServiceImpl) GetEvidence(ctx context.Context, id uuid.UUID) (*model.Evidence, error) {
	return s.evidence.Get(ctx, id)
}

// ListEvidence returns a case's evidence ordered by ingestion time.
func (s *CaseServiceImpl) ListEvidence(ctx context.Context, caseID uuid.UUID) ([]model.Evidence, error) {
	return s.evidence.ListByCase(ctx, caseID)
}

// VerifyEvidence re-hashes the vault file. A SHA-256 mismatch signals
// tampering or corruption: it is written to the ledger as its own action,
// distinct from any job failure. An MD5-only anomaly is flagged in the
// report and the log but deliberately left unresolved.
func (s *CaseServiceImpl) VerifyEvidence(ctx context.Context, evidenceID uuid.UUID, actor, origin string) (digest.Report, error) {
	e, err := s.evidence.Get(ctx, evidenceID)
	if err != nil {
		return digest.Report{}, err
	}
	abs, err := s.vault.ResolveExisting(e.Path)
	if err != nil {
		return digest.Report{}, err
	}
	current, err := digest.File(abs)
	if err != nil {
		return digest.Report{}, err
	}

	report := digest.Compare(digest.Pair{SHA256: e.SHA256, MD5: e.MD5}, current)
	if !report.Match {
		s.auditor.Record(ctx, &e.CaseID, audit.ActionIntegrityMismatch, actor, origin, map[string]any{
			"evidence_id":    evidenceID.String(),
			"stored_sha256":  report.Stored.SHA256,
			"current_sha256": report.Current.SHA256,
			"stored_md5":     report.Stored.MD5,
			"current_md5":    report.Current.MD5,
		})
	} else if report.MD5Anomaly() {
		s.log.Warn("md5 mismatch with matching sha256",
			zap.String("evidence_id", evidenceID.String()),
			zap.String("stored_md5", report.Stored.MD5),
			zap.String("current_md5", report.Current.MD5),
		)
	}
	return report, nil
}
