package postgres

import (
	"context"
	"strconv"
	"strings"

	"github.com/custodialabs/custodia/internal/model"
)

// AuditRepo implements the append-only AuditRepository using PostgreSQL.
// There is deliberately no update or delete path; the bigserial sequence
// preserves insertion order even when timestamps tie at clock resolution.
type AuditRepo struct{ db *DB }

// NewAuditRepo constructs an audit repository.
func NewAuditRepo(db *DB) *AuditRepo { return &AuditRepo{db: db} }

// Append persists a new entry and fills in its sequence number.
func (r *AuditRepo) Append(ctx context.Context, e *model.AuditEntry) error {
	const q = `
INSERT INTO audit_log (case_id, action, actor, origin, details)
VALUES ($1, $2, $3, $4, $5)
RETURNING seq, created_at`
	return r.db.Pool.QueryRow(ctx, q, e.CaseID, e.Action, e.Actor, e.Origin, e.Details).
		Scan(&e.Seq, &e.CreatedAt)
}

// Query returns matching entries in insertion order. Filters compose with AND;
// zero-value filter fields are not applied.
func (r *AuditRepo) Query(ctx context.Context, f model.AuditFilter) ([]model.AuditEntry, error) {
	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString(`SELECT seq, case_id, action, actor, origin, details, created_at FROM audit_log`)

	var conds []string
	if f.CaseID != nil {
		args = append(args, *f.CaseID)
		conds = append(conds, `case_id=$`+itoa(len(args)))
	}
	if f.Actor != "" {
		args = append(args, f.Actor)
		conds = append(conds, `actor=$`+itoa(len(args)))
	}
	if f.ActionPrefix != "" {
		args = append(args, escapeLike(f.ActionPrefix)+"%")
		conds = append(conds, `action LIKE $`+itoa(len(args)))
	}
	if len(conds) > 0 {
		sb.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}
	sb.WriteString(" ORDER BY seq ASC")

	rows, err := r.db.Pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AuditEntry
	for rows.Next() {
		var e model.AuditEntry
		if err := rows.Scan(&e.Seq, &e.CaseID, &e.Action, &e.Actor, &e.Origin, &e.Details, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func itoa(n int) string { return strconv.Itoa(n) }

// escapeLike protects literal %, _ and \ in a user-supplied prefix.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
