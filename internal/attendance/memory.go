package attendance

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"hostelattendance/internal/apperr"
	"hostelattendance/internal/identity"
)

// PersonReader is the slice of the identity store the in-memory ledger
// needs to join names and rooms onto records.
type PersonReader interface {
	Get(ctx context.Context, id string) (identity.Person, error)
}

// MemoryLedger is a Ledger held in process memory. Each conditional write
// runs under one mutex, which gives the same per-(person, day) guarantees as
// the Postgres unique constraint.
type MemoryLedger struct {
	mu      sync.RWMutex
	records map[string]*Record // person|day -> record
	people  PersonReader
	now     func() time.Time
}

func NewMemoryLedger(people PersonReader) *MemoryLedger {
	return &MemoryLedger{
		records: make(map[string]*Record),
		people:  people,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func memoryKey(personID string, day time.Time) string {
	return personID + "|" + dayKey(day)
}

func (m *MemoryLedger) FindByPersonDay(_ context.Context, personID string, day time.Time) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[memoryKey(personID, day)]
	if !ok {
		return nil, nil
	}
	cp := copyRecord(*rec)
	return &cp, nil
}

func (m *MemoryLedger) InsertCheckIn(_ context.Context, rec Record) (Record, bool, error) {
	if rec.CheckIn == nil {
		return Record{}, false, apperr.Invalid("check-in time is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := memoryKey(rec.PersonID, rec.Day)
	if existing, ok := m.records[key]; ok {
		return copyRecord(*existing), false, nil
	}
	now := m.now()
	rec.CheckOut = nil
	rec.CreatedAt, rec.UpdatedAt = now, now
	stored := copyRecord(rec)
	m.records[key] = &stored
	return copyRecord(stored), true, nil
}

func (m *MemoryLedger) SetCheckOut(_ context.Context, personID string, day, at time.Time) (Record, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[memoryKey(personID, day)]
	if !ok {
		return Record{}, false, apperr.NotFound("no attendance record for this day")
	}
	if rec.CheckOut != nil || rec.CheckIn == nil || at.Before(*rec.CheckIn) {
		return copyRecord(*rec), false, nil
	}
	out := at
	rec.CheckOut = &out
	rec.UpdatedAt = m.now()
	return copyRecord(*rec), true, nil
}

func (m *MemoryLedger) ListByPerson(_ context.Context, personID string) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Record
	for _, rec := range m.records {
		if rec.PersonID == personID {
			out = append(out, copyRecord(*rec))
		}
	}
	sort.Slice(out, func(i, j int) bool { return newerFirst(out[i], out[j]) })
	return out, nil
}

func (m *MemoryLedger) ListAll(ctx context.Context, f Filter) ([]Entry, error) {
	m.mu.RLock()
	snapshot := make([]Record, 0, len(m.records))
	for _, rec := range m.records {
		snapshot = append(snapshot, copyRecord(*rec))
	}
	m.mu.RUnlock()

	badge := strings.ToLower(f.Badge)
	name := strings.ToLower(f.Name)
	var out []Entry
	for _, rec := range snapshot {
		if f.Day != nil && dayKey(rec.Day) != dayKey(*f.Day) {
			continue
		}
		if f.PersonID != "" && rec.PersonID != f.PersonID {
			continue
		}
		if badge != "" && !strings.Contains(strings.ToLower(rec.BadgeID), badge) {
			continue
		}
		entry, err := m.join(ctx, rec)
		if err != nil {
			return nil, err
		}
		if name != "" && !strings.Contains(strings.ToLower(entry.Name), name) {
			continue
		}
		if f.Room != "" && entry.RoomNumber != f.Room {
			continue
		}
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return newerFirst(out[i].Record, out[j].Record) })
	return paginate(out, f.Limit, f.Offset), nil
}

func (m *MemoryLedger) CountDay(_ context.Context, day time.Time) (DayCounts, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var c DayCounts
	want := dayKey(day)
	for _, rec := range m.records {
		if dayKey(rec.Day) != want {
			continue
		}
		c.Total++
		if rec.Open() {
			c.Open++
		}
	}
	return c, nil
}

func (m *MemoryLedger) join(ctx context.Context, rec Record) (Entry, error) {
	entry := Entry{Record: rec}
	if m.people == nil {
		return entry, nil
	}
	p, err := m.people.Get(ctx, rec.PersonID)
	if err != nil {
		if apperr.Is(err, apperr.CodeNotFound) {
			return entry, nil
		}
		return Entry{}, err
	}
	entry.Name, entry.Email, entry.Floor, entry.RoomNumber = p.Name, p.Email, p.Floor, p.RoomNumber
	return entry, nil
}

func newerFirst(a, b Record) bool {
	if !a.Day.Equal(b.Day) {
		return a.Day.After(b.Day)
	}
	if a.CheckIn != nil && b.CheckIn != nil && !a.CheckIn.Equal(*b.CheckIn) {
		return a.CheckIn.After(*b.CheckIn)
	}
	return a.ID < b.ID
}

func paginate(entries []Entry, limit, offset int) []Entry {
	if offset > 0 {
		if offset >= len(entries) {
			return nil
		}
		entries = entries[offset:]
	}
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	return entries
}

func copyRecord(r Record) Record {
	if r.CheckIn != nil {
		t := *r.CheckIn
		r.CheckIn = &t
	}
	if r.CheckOut != nil {
		t := *r.CheckOut
		r.CheckOut = &t
	}
	return r
}
