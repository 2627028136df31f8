// Package audit keeps an append-only trail of attendance events. Events
// travel from the API to the worker over a queue so a slow audit write never
// delays a scan.
package audit

import (
	"context"
	"sync"
	"time"

	"hostelattendance/internal/attendance"
)

// Entry is one row of the audit trail.
type Entry struct {
	ID         int64             `json:"id"`
	PersonID   string            `json:"user_id,omitempty"`
	BadgeID    string            `json:"student_id,omitempty"`
	RecordID   string            `json:"record_id,omitempty"`
	Outcome    string            `json:"outcome"`
	Origin     attendance.Origin `json:"method"`
	OccurredAt time.Time         `json:"occurred_at"`
	Detail     string            `json:"detail,omitempty"`
}

// FromNotice converts an engine notice into an audit entry.
func FromNotice(n attendance.Notice) Entry {
	return Entry{
		PersonID:   n.PersonID,
		BadgeID:    n.BadgeID,
		RecordID:   n.RecordID,
		Outcome:    n.Outcome,
		Origin:     n.Origin,
		OccurredAt: n.OccurredAt,
		Detail:     n.Detail,
	}
}

// Store persists audit entries.
type Store interface {
	Append(ctx context.Context, e Entry) error
	Recent(ctx context.Context, limit int) ([]Entry, error)
}

// DefaultLimit caps Recent when the caller passes no limit.
const DefaultLimit = 100

// MemoryStore is a Store held in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	entries []Entry
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) Append(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = int64(len(m.entries) + 1)
	m.entries = append(m.entries, e)
	return nil
}

// Recent returns up to limit entries, newest first.
func (m *MemoryStore) Recent(_ context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, 0, min(limit, len(m.entries)))
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.entries[i])
	}
	return out, nil
}
