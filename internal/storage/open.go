package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	logx "remindbot/pkg/logx"
)

type ReminderStore interface {
	CreateReminder(ctx context.Context, r Reminder) (Reminder, error)
	// CreateReminders inserts all reminders or none.
	CreateReminders(ctx context.Context, rs []Reminder) (int, error)
	GetReminder(ctx context.Context, ownerID string, id int64) (Reminder, error)
	// Due returns unsent reminders with At <= now, oldest first.
	Due(ctx context.Context, now time.Time) ([]Reminder, error)
	// ListByOwner returns the owner's reminders, latest instant first.
	ListByOwner(ctx context.Context, ownerID string, limit int) ([]Reminder, error)
	CountForOwner(ctx context.Context, ownerID string) (int, error)
	// LastSent returns the owner's sent reminder with the latest instant.
	LastSent(ctx context.Context, ownerID string) (Reminder, error)
	MarkSent(ctx context.Context, id int64) error
	// UpdateTime moves a reminder and marks it unsent.
	UpdateTime(ctx context.Context, id int64, at time.Time) error
	DeleteReminder(ctx context.Context, ownerID string, id int64) (bool, error)
	DeleteAllForOwner(ctx context.Context, ownerID string) (int, error)
	CountUnsentInSeries(ctx context.Context, key string) (int, error)
	DeleteUnsentInSeries(ctx context.Context, key string) (int, error)
	// CleanupSent deletes sent reminders scheduled before cutoff.
	CleanupSent(ctx context.Context, cutoff time.Time) (int, error)
}

type SeriesStore interface {
	CreateSeries(ctx context.Context, s Series) error
	// CreateSeriesBatch stores the series row and its reminders together,
	// or neither. An existing key fails with ErrExists.
	CreateSeriesBatch(ctx context.Context, s Series, rs []Reminder) (int, error)
	GetSeries(ctx context.Context, key string) (Series, error)
	// SeriesLow lists series with between 1 and threshold unsent reminders.
	SeriesLow(ctx context.Context, threshold int) ([]SeriesStatus, error)
}

type UserStore interface {
	// TouchUser upserts a user and bumps LastActivity. An empty Timezone
	// keeps the stored one.
	TouchUser(ctx context.Context, u User) error
	GetUser(ctx context.Context, id string) (User, error)
}

type DedupStore interface {
	PutDedup(ctx context.Context, key string, until time.Time) error
	GetDedup(ctx context.Context, key string) (until time.Time, ok bool, err error)
}

// Store is the full persistence API.
type Store interface {
	ReminderStore
	SeriesStore
	UserStore
	DedupStore
	Close() error
}

// Open initializes the configured store. An empty driver means sqlite.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "sqlite", "sqlite3":
		st, err := openSQLite(cfg, log.Component("storage"))
		if err != nil {
			return nil, err
		}
		return st, nil
	case "memory":
		return NewMemory(), nil
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
