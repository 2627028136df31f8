package attendance

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"hostelattendance/internal/apperr"
	"hostelattendance/internal/identity"
)

// Repository persists attendance records in Postgres. The unique
// (person_id, day) constraint and the guarded UPDATE carry the
// one-record-per-day and no-lost-check-out guarantees.
type Repository struct {
	db  *sql.DB
	loc *time.Location
}

// NewRepository creates a repo. loc is the zone days are expressed in.
func NewRepository(db *sql.DB, loc *time.Location) *Repository {
	if loc == nil {
		loc = time.UTC
	}
	return &Repository{db: db, loc: loc}
}

const recordColumns = `a.id, a.person_id, a.badge_id, a.day, a.check_in, a.check_out, a.origin, a.created_at, a.updated_at`

func (r *Repository) FindByPersonDay(ctx context.Context, personID string, day time.Time) (*Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM attendance_records a
		WHERE a.person_id = $1 AND a.day = $2
	`, personID, dayKey(day))
	rec, err := r.scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperr.Unavailable("read attendance failed", err)
	}
	return &rec, nil
}

func (r *Repository) InsertCheckIn(ctx context.Context, rec Record) (Record, bool, error) {
	if rec.CheckIn == nil {
		return Record{}, false, apperr.Invalid("check-in time is required")
	}
	row := r.db.QueryRowContext(ctx, `
		WITH ins AS (
			INSERT INTO attendance_records (id, person_id, badge_id, day, check_in, origin)
			VALUES ($1,$2,$3,$4,$5,$6)
			ON CONFLICT (person_id, day) DO NOTHING
			RETURNING *
		)
		SELECT `+recordColumns+` FROM ins a
	`, rec.ID, rec.PersonID, rec.BadgeID, dayKey(rec.Day), rec.CheckIn.UTC(), rec.Origin)
	created, err := r.scanRecord(row)
	if err == nil {
		return created, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, apperr.Unavailable("insert attendance failed", err)
	}

	existing, err := r.FindByPersonDay(ctx, rec.PersonID, rec.Day)
	if err != nil {
		return Record{}, false, err
	}
	if existing == nil {
		return Record{}, false, apperr.Unavailable("insert attendance failed", errors.New("conflicting record vanished"))
	}
	return *existing, false, nil
}

func (r *Repository) SetCheckOut(ctx context.Context, personID string, day, at time.Time) (Record, bool, error) {
	row := r.db.QueryRowContext(ctx, `
		WITH upd AS (
			UPDATE attendance_records
			SET check_out = $3, updated_at = NOW()
			WHERE person_id = $1 AND day = $2 AND check_out IS NULL AND check_in <= $3
			RETURNING *
		)
		SELECT `+recordColumns+` FROM upd a
	`, personID, dayKey(day), at.UTC())
	updated, err := r.scanRecord(row)
	if err == nil {
		return updated, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, apperr.Unavailable("update attendance failed", err)
	}

	current, err := r.FindByPersonDay(ctx, personID, day)
	if err != nil {
		return Record{}, false, err
	}
	if current == nil {
		return Record{}, false, apperr.NotFound("no attendance record for this day")
	}
	return *current, false, nil
}

func (r *Repository) ListByPerson(ctx context.Context, personID string) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM attendance_records a
		WHERE a.person_id = $1
		ORDER BY a.day DESC, a.check_in DESC
	`, personID)
	if err != nil {
		return nil, apperr.Unavailable("list attendance failed", err)
	}
	defer rows.Close()

	var res []Record
	for rows.Next() {
		rec, err := r.scanRecord(rows)
		if err != nil {
			return nil, apperr.Unavailable("list attendance failed", err)
		}
		res = append(res, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Unavailable("list attendance failed", err)
	}
	return res, nil
}

// ListAll returns records with basic filters, joined against people.
func (r *Repository) ListAll(ctx context.Context, f Filter) ([]Entry, error) {
	query := `
		SELECT ` + recordColumns + `,
			COALESCE(p.name, ''), COALESCE(p.email, ''), COALESCE(p.floor, ''), COALESCE(p.room_number, '')
		FROM attendance_records a
		LEFT JOIN people p ON p.id = a.person_id`
	args := []any{}
	clauses := []string{}
	if f.Day != nil {
		clauses = append(clauses, "a.day = $"+itoa(len(args)+1))
		args = append(args, dayKey(*f.Day))
	}
	if f.PersonID != "" {
		clauses = append(clauses, "a.person_id = $"+itoa(len(args)+1))
		args = append(args, f.PersonID)
	}
	if f.Badge != "" {
		clauses = append(clauses, "a.badge_id ILIKE $"+itoa(len(args)+1)+` ESCAPE '\'`)
		args = append(args, containsPattern(f.Badge))
	}
	if f.Name != "" {
		clauses = append(clauses, "p.name ILIKE $"+itoa(len(args)+1)+` ESCAPE '\'`)
		args = append(args, containsPattern(f.Name))
	}
	if f.Room != "" {
		clauses = append(clauses, "p.room_number = $"+itoa(len(args)+1))
		args = append(args, f.Room)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY a.day DESC, a.check_in DESC, a.id"
	if f.Limit > 0 {
		query += " LIMIT $" + itoa(len(args)+1)
		args = append(args, f.Limit)
	}
	if f.Offset > 0 {
		query += " OFFSET $" + itoa(len(args)+1)
		args = append(args, f.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Unavailable("list attendance failed", err)
	}
	defer rows.Close()

	var res []Entry
	for rows.Next() {
		var (
			e     Entry
			floor string
		)
		if err := r.scanInto(rows, &e.Record, &e.Name, &e.Email, &floor, &e.RoomNumber); err != nil {
			return nil, apperr.Unavailable("list attendance failed", err)
		}
		e.Floor = identity.Floor(floor)
		res = append(res, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Unavailable("list attendance failed", err)
	}
	return res, nil
}

func (r *Repository) CountDay(ctx context.Context, day time.Time) (DayCounts, error) {
	var c DayCounts
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE check_out IS NULL)
		FROM attendance_records
		WHERE day = $1
	`, dayKey(day)).Scan(&c.Total, &c.Open)
	if err != nil {
		return DayCounts{}, apperr.Unavailable("count attendance failed", err)
	}
	return c, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *Repository) scanRecord(row rowScanner) (Record, error) {
	var rec Record
	err := r.scanInto(row, &rec)
	return rec, err
}

func (r *Repository) scanInto(row rowScanner, rec *Record, extra ...any) error {
	var (
		day               time.Time
		checkIn, checkOut sql.NullTime
	)
	dest := append([]any{&rec.ID, &rec.PersonID, &rec.BadgeID, &day, &checkIn, &checkOut, &rec.Origin, &rec.CreatedAt, &rec.UpdatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return err
	}
	// DATE columns come back as UTC midnight; re-anchor them in the reference zone.
	rec.Day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, r.loc)
	if checkIn.Valid {
		t := checkIn.Time
		rec.CheckIn = &t
	}
	if checkOut.Valid {
		t := checkOut.Time
		rec.CheckOut = &t
	}
	return nil
}

func itoa(i int) string { return strconv.Itoa(i) }

// containsPattern builds an ILIKE pattern matching s anywhere, with LIKE
// metacharacters in s escaped.
func containsPattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}
