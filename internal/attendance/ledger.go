package attendance

import (
	"context"
	"time"
)

// Ledger stores attendance records, at most one per (person, day).
//
// InsertCheckIn and SetCheckOut are single conditional writes. When the
// condition does not hold they write nothing and return the committed row
// with false, so callers can classify the outcome without a second write.
type Ledger interface {
	// FindByPersonDay returns the record for the person's day, or nil.
	FindByPersonDay(ctx context.Context, personID string, day time.Time) (*Record, error)
	// InsertCheckIn creates rec unless a record already exists for
	// (rec.PersonID, rec.Day).
	InsertCheckIn(ctx context.Context, rec Record) (Record, bool, error)
	// SetCheckOut sets check_out = at on the person's open record for day,
	// provided check_out is unset and check_in <= at.
	SetCheckOut(ctx context.Context, personID string, day, at time.Time) (Record, bool, error)
	// ListByPerson returns the person's records, newest day first.
	ListByPerson(ctx context.Context, personID string) ([]Record, error)
	// ListAll returns records matching f, newest day first.
	ListAll(ctx context.Context, f Filter) ([]Entry, error)
	// CountDay returns total and open record counts for day.
	CountDay(ctx context.Context, day time.Time) (DayCounts, error)
}
