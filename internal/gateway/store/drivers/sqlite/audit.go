package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/redgumnet/edgegate/internal/gateway/domain"
)

type auditRepo struct {
	db *sql.DB
}

func (r *auditRepo) Insert(ctx context.Context, entry domain.RequestAudit) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO request_audit
			(id, subject, upstream, method, path, status, outcome, detail, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.Subject,
		entry.Upstream,
		entry.Method,
		entry.Path,
		entry.Status,
		entry.Outcome,
		entry.Detail,
		entry.DurationMS,
		entry.CreatedAt.UTC(),
	)
	return err
}

func (r *auditRepo) ListRecent(ctx context.Context, limit int) ([]domain.RequestAudit, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, subject, upstream, method, path, status, outcome, detail, duration_ms, created_at
		FROM request_audit
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.RequestAudit
	for rows.Next() {
		var entry domain.RequestAudit
		var createdAt time.Time
		if err := rows.Scan(
			&entry.ID,
			&entry.Subject,
			&entry.Upstream,
			&entry.Method,
			&entry.Path,
			&entry.Status,
			&entry.Outcome,
			&entry.Detail,
			&entry.DurationMS,
			&createdAt,
		); err != nil {
			return nil, err
		}
		entry.CreatedAt = createdAt
		out = append(out, entry)
	}
	return out, rows.Err()
}

func (r *auditRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM request_audit WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
