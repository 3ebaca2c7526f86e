package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/custodialabs/custodia/internal/errs"
	"github.com/custodialabs/custodia/internal/model"
)

// SettingRepo implements SettingRepository using PostgreSQL. Rows are created
// lazily on first write and read on every gate check.
type SettingRepo struct{ db *DB }

// NewSettingRepo constructs a settings repository.
func NewSettingRepo(db *DB) *SettingRepo { return &SettingRepo{db: db} }

// Get loads a setting by key.
func (r *SettingRepo) Get(ctx context.Context, key string) (*model.Setting, error) {
	const q = `SELECT key, value, updated_at FROM settings WHERE key=$1`
	var s model.Setting
	if err := r.db.Pool.QueryRow(ctx, q, key).Scan(&s.Key, &s.Value, &s.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// Set creates or replaces a setting.
func (r *SettingRepo) Set(ctx context.Context, key string, value map[string]any) error {
	const q = `
INSERT INTO settings (key, value, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET value=EXCLUDED.value, updated_at=now()`
	_, err := r.db.Pool.Exec(ctx, q, key, value)
	return err
}

// Delete removes a setting; absent keys are ignored.
func (r *SettingRepo) Delete(ctx context.Context, key string) error {
	const q = `DELETE FROM settings WHERE key=$1`
	_, err := r.db.Pool.Exec(ctx, q, key)
	return err
}
