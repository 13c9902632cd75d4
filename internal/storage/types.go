package storage

import (
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("storage: not found")
	ErrExists   = errors.New("storage: already exists")
)

// Config configures storage.
//
// Driver values:
//   - "sqlite": SQLite database file (default)
//   - "memory": process-local, lost on exit
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Reminder is one scheduled delivery.
//
// At is stored in UTC. Once Sent is true, At only changes through
// UpdateTime, which also clears Sent.
type Reminder struct {
	ID        int64
	OwnerID   string
	OwnerName string
	Message   string
	At        time.Time
	ChatID    int64
	Sent      bool
	Recurring bool
	SeriesKey string
	CreatedAt time.Time
}

// Series is the stored recurrence spec that produced a batch of reminders.
type Series struct {
	Key       string
	OwnerID   string
	OwnerName string
	ChatID    int64
	Name      string
	Frequency string
	Weekdays  []time.Weekday
	Times     []string // "HH:MM"
	CreatedAt time.Time
}

// SeriesStatus pairs a series with its unsent reminders: how many are
// left and when the last one fires.
type SeriesStatus struct {
	Series
	Remaining int
	LastAt    time.Time
}

type User struct {
	ID           string
	Name         string
	Timezone     string
	LastActivity time.Time
}
