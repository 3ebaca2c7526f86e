package postgres

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/custodialabs/custodia/internal/errs"
	"github.com/custodialabs/custodia/internal/model"
)

// CaseRepo implements CaseRepository using PostgreSQL.
type CaseRepo struct{ db *DB }

// NewCaseRepo constructs a case repository.
func NewCaseRepo(db *DB) *CaseRepo { return &CaseRepo{db: db} }

// Create inserts a new case row.
func (r *CaseRepo) Create(ctx context.Context, c *model.Case) error {
	const q = `INSERT INTO cases (id, name) VALUES ($1, $2)`
	_, err := r.db.Pool.Exec(ctx, q, c.ID, c.Name)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

// Get selects a case by ID.
func (r *CaseRepo) Get(ctx context.Context, id uuid.UUID) (*model.Case, error) {
	const q = `SELECT id, name, created_at FROM cases WHERE id=$1`
	var c model.Case
	if err := r.db.Pool.QueryRow(ctx, q, id).Scan(&c.ID, &c.Name, &c.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// List returns all cases ordered by creation time.
func (r *CaseRepo) List(ctx context.Context) ([]model.Case, error) {
	const q = `SELECT id, name, created_at FROM cases ORDER BY created_at ASC`
	rows, err := r.db.Pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Case
	for rows.Next() {
		var c model.Case
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
