package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/custodialabs/custodia/internal/model"
)

// CaseRepository provides access to investigation cases.
type CaseRepository interface {
	// Create inserts a new case.
	Create(ctx context.Context, c *model.Case) error
	// Get loads a case by ID.
	Get(ctx context.Context, id uuid.UUID) (*model.Case, error)
	// List returns all cases ordered by creation time.
	List(ctx context.Context) ([]model.Case, error)
}

// EvidenceRepository provides access to evidence records. Digest fields are
// written once at ingestion and never updated.
type EvidenceRepository interface {
	// Create inserts a new evidence record.
	Create(ctx context.Context, e *model.Evidence) error
	// Get loads an evidence record by ID.
	Get(ctx context.Context, id uuid.UUID) (*model.Evidence, error)
	// ListByCase returns a case's evidence ordered by ingestion time.
	ListByCase(ctx context.Context, caseID uuid.UUID) ([]model.Evidence, error)
}
