package audit

import (
	"context"
	"database/sql"

	"hostelattendance/internal/apperr"
)

// Repository stores the audit trail in the scan_audit table.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository { return &Repository{db: db} }

func (r *Repository) Append(ctx context.Context, e Entry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO scan_audit (person_id, badge_id, record_id, outcome, origin, occurred_at, detail)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, e.PersonID, e.BadgeID, e.RecordID, e.Outcome, e.Origin, e.OccurredAt.UTC(), e.Detail)
	if err != nil {
		return apperr.Unavailable("write audit failed", err)
	}
	return nil
}

func (r *Repository) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, person_id, badge_id, record_id, outcome, origin, occurred_at, detail
		FROM scan_audit
		ORDER BY id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, apperr.Unavailable("read audit failed", err)
	}
	defer rows.Close()

	var res []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.PersonID, &e.BadgeID, &e.RecordID, &e.Outcome, &e.Origin, &e.OccurredAt, &e.Detail); err != nil {
			return nil, apperr.Unavailable("read audit failed", err)
		}
		res = append(res, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Unavailable("read audit failed", err)
	}
	return res, nil
}
