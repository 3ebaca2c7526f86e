package repository

import (
	"context"

	"github.com/custodialabs/custodia/internal/model"
)

// AuditRepository is the append-only chain-of-custody ledger. Entries are
// inserted and queried, never updated or deleted.
type AuditRepository interface {
	// Append persists a new entry and fills in its sequence number.
	Append(ctx context.Context, e *model.AuditEntry) error
	// Query returns matching entries ordered by insertion sequence ascending.
	Query(ctx context.Context, f model.AuditFilter) ([]model.AuditEntry, error)
}

// SettingRepository is the process-wide durable key/value store.
type SettingRepository interface {
	// Get loads a setting; errs.ErrNotFound when the key was never written.
	Get(ctx context.Context, key string) (*model.Setting, error)
	// Set creates or replaces a setting.
	Set(ctx context.Context, key string, value map[string]any) error
	// Delete removes a setting; deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}
