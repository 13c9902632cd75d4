package storage

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Memory is an in-process Store. It is safe for concurrent use.
type Memory struct {
	mu        sync.Mutex
	nextID    int64
	reminders map[int64]Reminder
	series    map[string]Series
	users     map[string]User
	dedup     map[string]time.Time
}

func NewMemory() *Memory {
	return &Memory{
		reminders: map[int64]Reminder{},
		series:    map[string]Series{},
		users:     map[string]User{},
		dedup:     map[string]time.Time{},
	}
}

func (m *Memory) Close() error { return nil }

func (m *Memory) insertLocked(r Reminder) Reminder {
	m.nextID++
	r.ID = m.nextID
	r.At = r.At.UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	m.reminders[r.ID] = r
	return r
}

func (m *Memory) CreateReminder(_ context.Context, r Reminder) (Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLocked(r), nil
}

func (m *Memory) CreateReminders(_ context.Context, rs []Reminder) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rs {
		m.insertLocked(r)
	}
	return len(rs), nil
}

func (m *Memory) GetReminder(_ context.Context, ownerID string, id int64) (Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reminders[id]
	if !ok || r.OwnerID != ownerID {
		return Reminder{}, ErrNotFound
	}
	return r, nil
}

// filter returns matching reminders sorted by (At, ID), ascending or not.
func (m *Memory) filter(keep func(Reminder) bool, asc bool) []Reminder {
	var out []Reminder
	for _, r := range m.reminders {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.At.Equal(b.At) {
			return a.At.Before(b.At) == asc
		}
		return (a.ID < b.ID) == asc
	})
	return out
}

func (m *Memory) Due(_ context.Context, now time.Time) ([]Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.filter(func(r Reminder) bool { return !r.Sent && !r.At.After(now) }, true), nil
}

func (m *Memory) ListByOwner(_ context.Context, ownerID string, limit int) ([]Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.filter(func(r Reminder) bool { return r.OwnerID == ownerID }, false)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) CountForOwner(_ context.Context, ownerID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.countLocked(func(r Reminder) bool { return r.OwnerID == ownerID }), nil
}

func (m *Memory) countLocked(keep func(Reminder) bool) int {
	n := 0
	for _, r := range m.reminders {
		if keep(r) {
			n++
		}
	}
	return n
}

func (m *Memory) deleteLocked(keep func(Reminder) bool) int {
	n := 0
	for id, r := range m.reminders {
		if keep(r) {
			delete(m.reminders, id)
			n++
		}
	}
	return n
}

func (m *Memory) LastSent(_ context.Context, ownerID string) (Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.filter(func(r Reminder) bool { return r.OwnerID == ownerID && r.Sent }, false)
	if len(out) == 0 {
		return Reminder{}, ErrNotFound
	}
	return out[0], nil
}

func (m *Memory) MarkSent(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reminders[id]
	if !ok {
		return ErrNotFound
	}
	r.Sent = true
	m.reminders[id] = r
	return nil
}

func (m *Memory) UpdateTime(_ context.Context, id int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reminders[id]
	if !ok {
		return ErrNotFound
	}
	r.At = at.UTC()
	r.Sent = false
	m.reminders[id] = r
	return nil
}

func (m *Memory) DeleteReminder(_ context.Context, ownerID string, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reminders[id]
	if !ok || r.OwnerID != ownerID {
		return false, nil
	}
	delete(m.reminders, id)
	return true, nil
}

func (m *Memory) DeleteAllForOwner(_ context.Context, ownerID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteLocked(func(r Reminder) bool { return r.OwnerID == ownerID }), nil
}

func (m *Memory) CountUnsentInSeries(_ context.Context, key string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.countLocked(func(r Reminder) bool { return r.SeriesKey == key && !r.Sent }), nil
}

func (m *Memory) DeleteUnsentInSeries(_ context.Context, key string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteLocked(func(r Reminder) bool { return r.SeriesKey == key && !r.Sent }), nil
}

func (m *Memory) CleanupSent(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteLocked(func(r Reminder) bool { return r.Sent && r.At.Before(cutoff) }), nil
}

func (m *Memory) CreateSeries(_ context.Context, s Series) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	m.series[s.Key] = s
	return nil
}

func (m *Memory) CreateSeriesBatch(_ context.Context, s Series, rs []Reminder) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.series[s.Key]; ok {
		return 0, ErrExists
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	m.series[s.Key] = s
	for _, r := range rs {
		m.insertLocked(r)
	}
	return len(rs), nil
}

func (m *Memory) GetSeries(_ context.Context, key string) (Series, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.series[key]
	if !ok {
		return Series{}, ErrNotFound
	}
	return s, nil
}

func (m *Memory) SeriesLow(_ context.Context, threshold int) ([]SeriesStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := map[string]int{}
	last := map[string]time.Time{}
	for _, r := range m.reminders {
		if r.SeriesKey != "" && !r.Sent {
			counts[r.SeriesKey]++
			if r.At.After(last[r.SeriesKey]) {
				last[r.SeriesKey] = r.At
			}
		}
	}
	var out []SeriesStatus
	for key, n := range counts {
		s, ok := m.series[key]
		if !ok || n > threshold {
			continue
		}
		out = append(out, SeriesStatus{Series: s, Remaining: n, LastAt: last[key]})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Key < out[j].Key
	})
	return out, nil
}

func (m *Memory) TouchUser(_ context.Context, u User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.LastActivity.IsZero() {
		u.LastActivity = time.Now().UTC()
	}
	if old, ok := m.users[u.ID]; ok {
		if u.Name == "" {
			u.Name = old.Name
		}
		if u.Timezone == "" {
			u.Timezone = old.Timezone
		}
	}
	m.users[u.ID] = u
	return nil
}

func (m *Memory) GetUser(_ context.Context, id string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (m *Memory) PutDedup(_ context.Context, key string, until time.Time) error {
	if key == "" {
		return nil
	}
	m.mu.Lock()
	m.dedup[key] = until
	m.mu.Unlock()
	return nil
}

func (m *Memory) GetDedup(_ context.Context, key string) (time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	until, ok := m.dedup[key]
	return until, ok, nil
}
