package identity

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"hostelattendance/internal/apperr"
)

const uniqueViolation = "23505"

// Repository persists people in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const personColumns = `id, name, email, password_hash, role, badge_id, floor, room_number, created_at, updated_at`

func (r *Repository) Create(ctx context.Context, p Person) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO people (id, name, email, password_hash, role, badge_id, floor, room_number, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, p.ID, p.Name, p.Email, p.PasswordHash, p.Role, nullString(p.BadgeID), nullString(string(p.Floor)), nullString(p.RoomNumber), p.CreatedAt, p.UpdatedAt)
	return classify(err, "create user failed")
}

func (r *Repository) Get(ctx context.Context, id string) (Person, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+personColumns+` FROM people WHERE id = $1`, id)
	return scanPerson(row, "user not found")
}

func (r *Repository) GetByEmail(ctx context.Context, email string) (Person, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+personColumns+` FROM people WHERE email = $1`, email)
	return scanPerson(row, "user not found")
}

func (r *Repository) GetByBadge(ctx context.Context, badgeID string) (Person, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+personColumns+` FROM people WHERE badge_id = $1`, badgeID)
	return scanPerson(row, "student not found")
}

func (r *Repository) List(ctx context.Context) ([]Person, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+personColumns+` FROM people ORDER BY created_at, id`)
	if err != nil {
		return nil, apperr.Unavailable("list users failed", err)
	}
	defer rows.Close()

	var people []Person
	for rows.Next() {
		p, err := scanPerson(rows, "")
		if err != nil {
			return nil, err
		}
		people = append(people, p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Unavailable("list users failed", err)
	}
	return people, nil
}

func (r *Repository) Update(ctx context.Context, p Person) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE people
		SET name = $2, email = $3, floor = $4, room_number = $5, updated_at = $6
		WHERE id = $1
	`, p.ID, p.Name, p.Email, nullString(string(p.Floor)), nullString(p.RoomNumber), p.UpdatedAt)
	if err != nil {
		return classify(err, "update user failed")
	}
	return requireAffected(res, "user not found")
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM people WHERE id = $1`, id)
	if err != nil {
		return apperr.Unavailable("delete user failed", err)
	}
	return requireAffected(res, "user not found")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPerson(row rowScanner, notFound string) (Person, error) {
	var (
		p                      Person
		badge, floor, roomNumb sql.NullString
	)
	err := row.Scan(&p.ID, &p.Name, &p.Email, &p.PasswordHash, &p.Role, &badge, &floor, &roomNumb, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Person{}, apperr.NotFound(notFound)
		}
		return Person{}, apperr.Unavailable("read user failed", err)
	}
	p.BadgeID = badge.String
	p.Floor = Floor(floor.String)
	p.RoomNumber = roomNumb.String
	return p, nil
}

func classify(err error, msg string) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		switch pgErr.ConstraintName {
		case "people_badge_id_key":
			return apperr.Conflict("student id already registered")
		default:
			return apperr.Conflict("email already registered")
		}
	}
	return apperr.Unavailable(msg, err)
}

func requireAffected(res sql.Result, notFound string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Unavailable("read affected rows failed", err)
	}
	if n == 0 {
		return apperr.NotFound(notFound)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
