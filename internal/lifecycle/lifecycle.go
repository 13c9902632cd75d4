// Package lifecycle deletes the bot's ephemeral messages a while after
// they were sent. Reminder deliveries and other preserved messages never
// reach it.
package lifecycle

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"remindbot/internal/eventbus"
	"remindbot/internal/task/scheduler"
	"remindbot/internal/transport"
	logx "remindbot/pkg/logx"
)

const (
	DefaultDelay = 10 * time.Minute
	DefaultGrace = time.Minute

	deleteTimeout = 15 * time.Second
	maxEntries    = 5000
)

// OnceScheduler arms one-shot timers. *scheduler.Service implements it.
type OnceScheduler interface {
	AddOnce(name string, at time.Time, timeout time.Duration, job scheduler.Job) (string, error)
}

type Options struct {
	Delay time.Duration
	Grace time.Duration
	Now   func() time.Time
	Log   logx.Logger
	Bus   eventbus.Publisher
}

type entry struct {
	ref      transport.MessageRef
	deleteAt time.Time
}

// Manager is the outbox's Tracker.
type Manager struct {
	sender transport.Sender
	sched  OnceScheduler
	log    logx.Logger
	bus    eventbus.Publisher
	now    func() time.Time

	mu      sync.Mutex
	delay   time.Duration
	grace   time.Duration
	entries map[string]entry
}

func New(sender transport.Sender, sched OnceScheduler, opt Options) *Manager {
	if opt.Now == nil {
		opt.Now = time.Now
	}
	if opt.Bus == nil {
		opt.Bus = eventbus.Nop{}
	}
	m := &Manager{
		sender:  sender,
		sched:   sched,
		log:     opt.Log,
		bus:     opt.Bus,
		now:     opt.Now,
		entries: map[string]entry{},
	}
	m.Apply(opt.Delay, opt.Grace)
	return m
}

// Apply changes the delay for messages tracked from now on.
func (m *Manager) Apply(delay, grace time.Duration) {
	if delay <= 0 {
		delay = DefaultDelay
	}
	if grace <= 0 {
		grace = DefaultGrace
	}
	m.mu.Lock()
	m.delay, m.grace = delay, grace
	m.mu.Unlock()
}

func key(ref transport.MessageRef) string {
	return fmt.Sprintf("lifecycle.delete:%d:%d", ref.ChatID, ref.MessageID)
}

// Track schedules ref for deletion. A timer cannot be cancelled once set.
func (m *Manager) Track(ref transport.MessageRef) {
	if ref.IsZero() {
		return
	}
	k := key(ref)
	m.mu.Lock()
	at := m.now().Add(m.delay)
	m.entries[k] = entry{ref: ref, deleteAt: at}
	over := len(m.entries) > maxEntries
	m.mu.Unlock()
	if over {
		m.evictOldest()
	}

	if _, err := m.sched.AddOnce(k, at, deleteTimeout, func(ctx context.Context) error {
		m.expire(ctx, k)
		return nil
	}); err != nil {
		m.log.Warn("schedule message deletion failed", logx.Int64("chat_id", ref.ChatID), logx.Int("message_id", ref.MessageID), logx.Err(err))
		m.forget(k)
	}
}

func (m *Manager) expire(ctx context.Context, k string) {
	m.mu.Lock()
	e, ok := m.entries[k]
	delete(m.entries, k)
	m.mu.Unlock()
	if !ok {
		return
	}
	// The message may already be gone or too old to delete.
	if err := m.sender.DeleteText(ctx, e.ref); err != nil {
		m.log.Debug("delete message failed", logx.Int64("chat_id", e.ref.ChatID), logx.Int("message_id", e.ref.MessageID), logx.Err(err))
		return
	}
	m.bus.Publish(eventbus.Event{Type: eventbus.MessageDeleted, Time: m.now(), Data: e.ref})
}

func (m *Manager) forget(k string) {
	m.mu.Lock()
	delete(m.entries, k)
	m.mu.Unlock()
}

// Sweep discards entries whose timer should have fired more than the grace
// period ago. It returns how many were discarded.
func (m *Manager) Sweep(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := m.now().Add(-m.grace)
	n := 0
	for k, e := range m.entries {
		if e.deleteAt.Before(cutoff) {
			delete(m.entries, k)
			n++
		}
	}
	if n > 0 {
		m.log.Debug("lifecycle sweep", logx.Int("discarded", n), logx.Int("tracked", len(m.entries)))
	}
	return n, nil
}

// evictOldest keeps the map bounded when timers fall behind.
func (m *Manager) evictOldest() {
	m.mu.Lock()
	defer m.mu.Unlock()
	over := len(m.entries) - maxEntries
	if over <= 0 {
		return
	}
	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return m.entries[keys[i]].deleteAt.Before(m.entries[keys[j]].deleteAt) })
	for _, k := range keys[:over] {
		delete(m.entries, k)
	}
}

// Pending reports how many messages await deletion.
func (m *Manager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
