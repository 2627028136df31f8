package store

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is applied in order. Every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS people (
		id            UUID PRIMARY KEY,
		name          TEXT NOT NULL,
		email         TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		role          TEXT NOT NULL CHECK (role IN ('student', 'admin')),
		badge_id      TEXT,
		floor         TEXT CHECK (floor IN ('GF', 'FF', 'SF', 'TF')),
		room_number   TEXT,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT people_email_key UNIQUE (email),
		CONSTRAINT people_badge_id_key UNIQUE (badge_id)
	)`,
	// No foreign key on person_id so deleting a person keeps their history.
	`CREATE TABLE IF NOT EXISTS attendance_records (
		id         UUID PRIMARY KEY,
		person_id  UUID NOT NULL,
		badge_id   TEXT NOT NULL DEFAULT '',
		day        DATE NOT NULL,
		check_in   TIMESTAMPTZ NOT NULL,
		check_out  TIMESTAMPTZ,
		origin     TEXT NOT NULL CHECK (origin IN ('manual', 'scan')),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT attendance_person_day_key UNIQUE (person_id, day),
		CONSTRAINT attendance_checkout_after_checkin CHECK (check_out IS NULL OR check_out >= check_in)
	)`,
	`CREATE INDEX IF NOT EXISTS attendance_records_day_idx ON attendance_records (day)`,
	`CREATE TABLE IF NOT EXISTS scan_audit (
		id          BIGSERIAL PRIMARY KEY,
		person_id   TEXT NOT NULL DEFAULT '',
		badge_id    TEXT NOT NULL DEFAULT '',
		record_id   TEXT NOT NULL DEFAULT '',
		outcome     TEXT NOT NULL,
		origin      TEXT NOT NULL,
		occurred_at TIMESTAMPTZ NOT NULL,
		detail      TEXT NOT NULL DEFAULT ''
	)`,
}

// Migrate creates the tables if they do not exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for i, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return tx.Commit()
}
