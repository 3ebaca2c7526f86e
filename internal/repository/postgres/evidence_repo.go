package postgres

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/custodialabs/custodia/internal/errs"
	"github.com/custodialabs/custodia/internal/model"
)

// EvidenceRepo implements EvidenceRepository using PostgreSQL. Digest columns
// are written once on insert; no update path exists.
type EvidenceRepo struct{ db *DB }

// NewEvidenceRepo constructs an evidence repository.
func NewEvidenceRepo(db *DB) *EvidenceRepo { return &EvidenceRepo{db: db} }

// Create inserts a new evidence row.
func (r *EvidenceRepo) Create(ctx context.Context, e *model.Evidence) error {
	const q = `
INSERT INTO evidence (id, case_id, path, original_name, size, sha256, md5)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.Pool.Exec(ctx, q, e.ID, e.CaseID, e.Path, e.OriginalName, e.Size, e.SHA256, e.MD5)
	return err
}

// Get selects an evidence record by ID.
func (r *EvidenceRepo) Get(ctx context.Context, id uuid.UUID) (*model.Evidence, error) {
	const q = `
SELECT id, case_id, path, original_name, size, sha256, md5, ingested_at
FROM evidence WHERE id=$1`
	var e model.Evidence
	err := r.db.Pool.QueryRow(ctx, q, id).Scan(
		&e.ID, &e.CaseID, &e.Path, &e.OriginalName, &e.Size, &e.SHA256, &e.MD5, &e.IngestedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

// ListByCase returns a case's evidence ordered by ingestion time.
func (r *EvidenceRepo) ListByCase(ctx context.Context, caseID uuid.UUID) ([]model.Evidence, error) {
	const q = `
SELECT id, case_id, path, original_name, size, sha256, md5, ingested_at
FROM evidence WHERE case_id=$1 ORDER BY ingested_at ASC`
	rows, err := r.db.Pool.Query(ctx, q, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Evidence
	for rows.Next() {
		var e model.Evidence
		if err := rows.Scan(&e.ID, &e.CaseID, &e.Path, &e.OriginalName, &e.Size, &e.SHA256, &e.MD5, &e.IngestedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
