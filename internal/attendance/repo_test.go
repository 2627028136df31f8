package attendance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hostelattendance/internal/apperr"
	"hostelattendance/internal/identity"
)

var recordCols = []string{"id", "person_id", "badge_id", "day", "check_in", "check_out", "origin", "created_at", "updated_at"}

func newMockRepo(t *testing.T, loc *time.Location) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return NewRepository(db, loc), mock
}

// recordRow is r-1 for p-1 on 2024-01-01, checked in at 09:00 UTC.
func recordRow(checkOut any) *sqlmock.Rows {
	created := at(9, 0)
	return sqlmock.NewRows(recordCols).AddRow(
		"r-1", "p-1", "STU-1", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		at(9, 0), checkOut, "scan", created, created)
}

func TestRepositoryInsertCheckInCreates(t *testing.T) {
	repo, mock := newMockRepo(t, time.UTC)
	in := at(9, 0)

	mock.ExpectQuery(`INSERT INTO attendance_records .* ON CONFLICT \(person_id, day\) DO NOTHING`).
		WithArgs("r-1", "p-1", "STU-1", "2024-01-01", in, "scan").
		WillReturnRows(recordRow(nil))

	rec, created, err := repo.InsertCheckIn(context.Background(), Record{
		ID: "r-1", PersonID: "p-1", BadgeID: "STU-1", Day: at(0, 0), CheckIn: &in, Origin: OriginScan,
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, rec.Open())
	assert.Equal(t, OriginScan, rec.Origin)
}

func TestRepositoryInsertCheckInLosesRace(t *testing.T) {
	repo, mock := newMockRepo(t, time.UTC)
	in := at(9, 5)

	mock.ExpectQuery(`INSERT INTO attendance_records`).
		WillReturnRows(sqlmock.NewRows(recordCols))
	mock.ExpectQuery(`FROM attendance_records a\s+WHERE a.person_id = \$1 AND a.day = \$2`).
		WithArgs("p-1", "2024-01-01").
		WillReturnRows(recordRow(nil))

	rec, created, err := repo.InsertCheckIn(context.Background(), Record{
		ID: "r-2", PersonID: "p-1", Day: at(0, 0), CheckIn: &in, Origin: OriginManual,
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "r-1", rec.ID, "the committed row wins")
	assert.Equal(t, at(9, 0), *rec.CheckIn)
}

func TestRepositorySetCheckOut(t *testing.T) {
	repo, mock := newMockRepo(t, time.UTC)
	out := at(17, 0)

	mock.ExpectQuery(`UPDATE attendance_records\s+SET check_out = \$3.*WHERE person_id = \$1 AND day = \$2 AND check_out IS NULL AND check_in <= \$3`).
		WithArgs("p-1", "2024-01-01", out).
		WillReturnRows(recordRow(out))

	rec, updated, err := repo.SetCheckOut(context.Background(), "p-1", at(0, 0), out)
	require.NoError(t, err)
	assert.True(t, updated)
	assert.Equal(t, out, *rec.CheckOut)
}

func TestRepositorySetCheckOutAlreadyClosed(t *testing.T) {
	repo, mock := newMockRepo(t, time.UTC)
	first := at(17, 0)

	mock.ExpectQuery(`UPDATE attendance_records`).WillReturnRows(sqlmock.NewRows(recordCols))
	mock.ExpectQuery(`FROM attendance_records a`).WillReturnRows(recordRow(first))

	rec, updated, err := repo.SetCheckOut(context.Background(), "p-1", at(0, 0), at(18, 0))
	require.NoError(t, err)
	assert.False(t, updated)
	assert.Equal(t, first, *rec.CheckOut)
}

func TestRepositorySetCheckOutWithoutRecord(t *testing.T) {
	repo, mock := newMockRepo(t, time.UTC)

	mock.ExpectQuery(`UPDATE attendance_records`).WillReturnRows(sqlmock.NewRows(recordCols))
	mock.ExpectQuery(`FROM attendance_records a`).WillReturnRows(sqlmock.NewRows(recordCols))

	_, _, err := repo.SetCheckOut(context.Background(), "p-1", at(0, 0), at(18, 0))
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}

func TestRepositoryStorageFailure(t *testing.T) {
	repo, mock := newMockRepo(t, time.UTC)
	mock.ExpectQuery(`FROM attendance_records a`).WillReturnError(errors.New("connection refused"))

	_, err := repo.FindByPersonDay(context.Background(), "p-1", at(0, 0))
	assert.True(t, apperr.Is(err, apperr.CodeUnavailable))
}

func TestRepositoryReanchorsDay(t *testing.T) {
	kolkata, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)
	repo, mock := newMockRepo(t, kolkata)

	mock.ExpectQuery(`FROM attendance_records a`).WillReturnRows(recordRow(nil))

	rec, err := repo.FindByPersonDay(context.Background(), "p-1", time.Date(2024, 1, 1, 0, 0, 0, 0, kolkata))
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, kolkata), rec.Day)
}

func TestRepositoryListAllBuildsFilter(t *testing.T) {
	repo, mock := newMockRepo(t, time.UTC)
	day := at(0, 0)

	cols := append(append([]string{}, recordCols...), "name", "email", "floor", "room_number")
	rows := sqlmock.NewRows(cols).AddRow(
		"r-1", "p-1", "STU-1", day, at(9, 0), nil, "manual", at(9, 0), at(9, 0),
		"Asha", "asha@hostel.test", "FF", "101")

	mock.ExpectQuery(`LEFT JOIN people p ON p.id = a.person_id WHERE a.day = \$1 AND a.badge_id ILIKE \$2 ESCAPE '\\' AND p.name ILIKE \$3 ESCAPE '\\' AND p.room_number = \$4 ORDER BY .* LIMIT \$5 OFFSET \$6`).
		WithArgs("2024-01-01", `%stu\_1%`, "%asha%", "101", 10, 20).
		WillReturnRows(rows)

	entries, err := repo.ListAll(context.Background(), Filter{
		Day: &day, Badge: "stu_1", Name: "asha", Room: "101", Limit: 10, Offset: 20,
	})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Asha", entries[0].Name)
	assert.Equal(t, "101", entries[0].RoomNumber)
	assert.True(t, entries[0].Open())
}

func TestRepositoryCountDay(t *testing.T) {
	repo, mock := newMockRepo(t, time.UTC)
	mock.ExpectQuery(`SELECT COUNT\(\*\), COUNT\(\*\) FILTER \(WHERE check_out IS NULL\)`).
		WithArgs("2024-01-01").
		WillReturnRows(sqlmock.NewRows([]string{"total", "open"}).AddRow(7, 3))

	c, err := repo.CountDay(context.Background(), at(0, 0))
	require.NoError(t, err)
	assert.Equal(t, DayCounts{Total: 7, Open: 3}, c)
}

func TestContainsPattern(t *testing.T) {
	assert.Equal(t, `%a\%b\_c\\d%`, containsPattern(`a%b_c\d`))
}

func TestServiceSkipsQueriesForMalformedPersonIDs(t *testing.T) {
	repo, _ := newMockRepo(t, time.UTC)
	svc := NewService(repo, identity.NewService(identity.NewMemoryStore(), 4))
	ctx := context.Background()

	history, err := svc.History(ctx, "abc")
	require.NoError(t, err)
	assert.Empty(t, history)

	entries, err := svc.List(ctx, Filter{PersonID: "abc"})
	require.NoError(t, err)
	assert.Empty(t, entries)
}
