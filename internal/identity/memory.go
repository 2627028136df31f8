package identity

import (
	"context"
	"sort"
	"sync"

	"hostelattendance/internal/apperr"
)

// MemoryStore keeps people in process memory for dev and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[string]Person
	byEmail map[string]string
	byBadge map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[string]Person),
		byEmail: make(map[string]string),
		byBadge: make(map[string]string),
	}
}

func (m *MemoryStore) Create(_ context.Context, p Person) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[p.ID]; ok {
		return apperr.Conflict("person already exists")
	}
	if err := m.checkUnique(p); err != nil {
		return err
	}
	m.put(p)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (Person, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.byID[id]
	if !ok {
		return Person{}, apperr.NotFound("user not found")
	}
	return p, nil
}

func (m *MemoryStore) GetByEmail(_ context.Context, email string) (Person, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byEmail[email]
	if !ok {
		return Person{}, apperr.NotFound("user not found")
	}
	return m.byID[id], nil
}

func (m *MemoryStore) GetByBadge(_ context.Context, badgeID string) (Person, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byBadge[badgeID]
	if !ok {
		return Person{}, apperr.NotFound("student not found")
	}
	return m.byID[id], nil
}

func (m *MemoryStore) List(_ context.Context) ([]Person, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Person, 0, len(m.byID))
	for _, p := range m.byID {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemoryStore) Update(_ context.Context, p Person) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.byID[p.ID]
	if !ok {
		return apperr.NotFound("user not found")
	}
	if err := m.checkUnique(p); err != nil {
		return err
	}
	m.drop(old)
	m.put(p)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return apperr.NotFound("user not found")
	}
	m.drop(p)
	return nil
}

// checkUnique must be called with mu held.
func (m *MemoryStore) checkUnique(p Person) error {
	if id, ok := m.byEmail[p.Email]; ok && id != p.ID {
		return apperr.Conflict("email already registered")
	}
	if p.BadgeID != "" {
		if id, ok := m.byBadge[p.BadgeID]; ok && id != p.ID {
			return apperr.Conflict("student id already registered")
		}
	}
	return nil
}

func (m *MemoryStore) put(p Person) {
	m.byID[p.ID] = p
	m.byEmail[p.Email] = p.ID
	if p.BadgeID != "" {
		m.byBadge[p.BadgeID] = p.ID
	}
}

func (m *MemoryStore) drop(p Person) {
	delete(m.byID, p.ID)
	delete(m.byEmail, p.Email)
	if p.BadgeID != "" {
		delete(m.byBadge, p.BadgeID)
	}
}
