package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/custodialabs/custodia/internal/errs"
)

func TestSettingRepo_GetSetDelete(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewSettingRepo(db)
	ctx := context.Background()
	value := map[string]any{"text": "ack", "actor": "alice"}

	mock.ExpectExec(`INSERT INTO settings \(key, value, updated_at\)`).
		WithArgs("authorization_ack", value).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, r.Set(ctx, "authorization_ack", value))

	mock.ExpectQuery(`SELECT key, value, updated_at FROM settings WHERE key=\$1`).
		WithArgs("authorization_ack").
		WillReturnRows(pgxmock.NewRows([]string{"key", "value", "updated_at"}).
			AddRow("authorization_ack", value, time.Now()))
	s, err := r.Get(ctx, "authorization_ack")
	require.NoError(t, err)
	require.Equal(t, "ack", s.Value["text"])

	mock.ExpectQuery(`SELECT key, value, updated_at FROM settings WHERE key=\$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)
	_, err = r.Get(ctx, "missing")
	require.ErrorIs(t, err, errs.ErrNotFound)

	mock.ExpectExec(`DELETE FROM settings WHERE key=\$1`).
		WithArgs("authorization_ack").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	require.NoError(t, r.Delete(ctx, "authorization_ack"))

	require.NoError(t, mock.ExpectationsWereMet())
}
