// Package renewal watches recurring series that are running out of
// scheduled reminders. Nearly empty series are topped up automatically;
// low ones get a renewal prompt that opens a dialog session.
package renewal

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"remindbot/internal/dialog"
	"remindbot/internal/eventbus"
	"remindbot/internal/outbox"
	"remindbot/internal/recurrence"
	"remindbot/internal/storage"
	"remindbot/internal/transport"
	logx "remindbot/pkg/logx"
	"remindbot/pkg/tgui"
)

const (
	DefaultLow      = 5
	DefaultCritical = 2
	DefaultDedup    = 6 * time.Hour

	// AutoWeeks is how far an automatic top-up extends a series.
	AutoWeeks = 2
)

type Store interface {
	SeriesLow(ctx context.Context, threshold int) ([]storage.SeriesStatus, error)
	CreateReminders(ctx context.Context, rs []storage.Reminder) (int, error)
}

// Sessions is implemented by *session.Manager. Pending with an empty kind
// matches any flow.
type Sessions interface {
	Start(ctx context.Context, owner dialog.Owner, kind dialog.FlowKind, seed dialog.Draft) (dialog.Reply, error)
	Pending(ctx context.Context, ownerID string, kind dialog.FlowKind) bool
	Cancel(ctx context.Context, ownerID string) dialog.Reply
}

// Sender is the synchronous half of the outbox.
type Sender interface {
	Send(ctx context.Context, env outbox.Envelope) (transport.MessageRef, error)
	Suppressed(ctx context.Context, key string) bool
}

type Zones interface {
	Resolve(ctx context.Context, ownerID string) *time.Location
}

type Config struct {
	Low      int
	Critical int
	Dedup    time.Duration
}

func (c Config) withDefaults() Config {
	if c.Low <= 0 {
		c.Low = DefaultLow
	}
	if c.Critical <= 0 {
		c.Critical = DefaultCritical
	}
	if c.Critical >= c.Low {
		c.Critical = c.Low - 1
	}
	if c.Dedup <= 0 {
		c.Dedup = DefaultDedup
	}
	return c
}

type Options struct {
	Now func() time.Time
	Log logx.Logger
	Bus eventbus.Publisher
}

type Monitor struct {
	store    Store
	sessions Sessions
	sender   Sender
	zones    Zones
	now      func() time.Time
	log      logx.Logger
	bus      eventbus.Publisher

	mu  sync.Mutex
	cfg Config
}

// Result counts one check.
type Result struct {
	Renewed  int
	Prompted int
	Skipped  int
	Failed   int
}

func New(store Store, sessions Sessions, sender Sender, zones Zones, cfg Config, opt Options) *Monitor {
	if opt.Now == nil {
		opt.Now = time.Now
	}
	if opt.Bus == nil {
		opt.Bus = eventbus.Nop{}
	}
	return &Monitor{
		store: store, sessions: sessions, sender: sender, zones: zones,
		now: opt.Now, log: opt.Log, bus: opt.Bus, cfg: cfg.withDefaults(),
	}
}

// Apply swaps thresholds; it takes effect on the next Check.
func (m *Monitor) Apply(cfg Config) {
	m.mu.Lock()
	m.cfg = cfg.withDefaults()
	m.mu.Unlock()
}

func (m *Monitor) config() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg
}

// Run is Check shaped as a scheduler job.
func (m *Monitor) Run(ctx context.Context) error {
	_, err := m.Check(ctx)
	return err
}

// Check handles every series at or below the low threshold. Per-series
// failures are logged; only a failed query is returned.
func (m *Monitor) Check(ctx context.Context) (Result, error) {
	cfg := m.config()
	low, err := m.store.SeriesLow(ctx, cfg.Low)
	if err != nil {
		return Result{}, fmt.Errorf("list low series: %w", err)
	}
	var res Result
	for _, st := range low {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		log := m.log.With(logx.String("series", st.Key), logx.String("owner", st.OwnerID), logx.Int("remaining", st.Remaining))
		if st.Remaining <= cfg.Critical {
			if err := m.autoRenew(ctx, st); err != nil {
				log.Warn("auto-renew failed", logx.Err(err))
				res.Failed++
				continue
			}
			res.Renewed++
			continue
		}
		switch sent, err := m.prompt(ctx, st, cfg.Dedup); {
		case err != nil:
			log.Warn("renewal prompt failed", logx.Err(err))
			res.Failed++
		case sent:
			res.Prompted++
		default:
			res.Skipped++
		}
	}
	if len(low) > 0 {
		m.log.Info("renewal check", logx.Int("low", len(low)), logx.Int("renewed", res.Renewed), logx.Int("prompted", res.Prompted), logx.Int("skipped", res.Skipped), logx.Int("failed", res.Failed))
	}
	return res, nil
}

func owner(st storage.SeriesStatus) storage.Reminder {
	return storage.Reminder{OwnerID: st.OwnerID, OwnerName: st.OwnerName, ChatID: st.ChatID}
}

func (m *Monitor) localNow(ctx context.Context, ownerID string) time.Time {
	if m.zones == nil {
		return m.now()
	}
	return m.now().In(m.zones.Resolve(ctx, ownerID))
}

func (m *Monitor) autoRenew(ctx context.Context, st storage.SeriesStatus) error {
	spec, err := recurrence.FromSeries(st.Series)
	if err != nil {
		return err
	}
	now := m.localNow(ctx, st.OwnerID)
	batch := recurrence.ExpandFrom(spec, owner(st), now, recurrence.WeekAfter(now, st.LastAt), AutoWeeks)
	n, err := m.store.CreateReminders(ctx, batch)
	if err != nil {
		return fmt.Errorf("create reminders: %w", err)
	}
	m.bus.Publish(eventbus.Event{Type: eventbus.RenewalAuto, Time: m.now(), Data: eventbus.Renewal{Series: st.Key, OwnerID: st.OwnerID, Added: n}})

	msg := autoRenewedMessage(spec, n)
	if _, err := m.sender.Send(ctx, outbox.Envelope{
		Target:   transport.ChatTarget{ChatID: st.ChatID},
		Text:     msg.Text,
		Opt:      msg.Opt,
		Preserve: true,
	}); err != nil {
		// The reminders exist; only the notice is lost.
		m.log.Warn("auto-renew notice failed", logx.String("series", st.Key), logx.Err(err))
	}
	return nil
}

// prompt opens a renewal session and sends its first message. It reports
// false when the owner is mid-conversation or was prompted recently; a
// prompt never replaces a session the owner is typing into.
func (m *Monitor) prompt(ctx context.Context, st storage.SeriesStatus, dedup time.Duration) (bool, error) {
	key := "renewal:" + st.Key
	if m.sessions.Pending(ctx, st.OwnerID, "") || m.sender.Suppressed(ctx, key) {
		return false, nil
	}
	o := dialog.Owner{ID: st.OwnerID, Name: st.OwnerName, Chat: transport.ChatTarget{ChatID: st.ChatID}}
	reply, err := m.sessions.Start(ctx, o, dialog.FlowRenewal, dialog.Draft{
		SeriesKey:  st.Key,
		SeriesName: st.Name,
		Remaining:  st.Remaining,
		LastAt:     st.LastAt,
	})
	if err != nil {
		return false, fmt.Errorf("start renewal session: %w", err)
	}
	if reply.Text == "" {
		return false, nil
	}
	msg := dialog.Render(reply)
	if _, err := m.sender.Send(ctx, outbox.Envelope{
		Target:   o.Chat,
		Text:     msg.Text,
		Opt:      msg.Opt,
		Preserve: true,
		DedupKey: key,
		DedupFor: dedup,
	}); err != nil {
		// Nobody saw the prompt; free the owner for the next check.
		m.sessions.Cancel(ctx, st.OwnerID)
		return false, fmt.Errorf("send prompt: %w", err)
	}
	m.bus.Publish(eventbus.Event{Type: eventbus.RenewalPrompted, Time: m.now(), Data: eventbus.Renewal{Series: st.Key, OwnerID: st.OwnerID}})
	return true, nil
}

func autoRenewedMessage(s recurrence.Spec, added int) tgui.Message {
	return tgui.New().Title("🔄", "AUTO-RENEWED").Blank().
		Line(fmt.Sprintf("✅ Auto-renewed %s: added %d reminders for the next %d weeks.", s.Name, added, AutoWeeks)).
		KV("💊 Medicine", s.Name).
		KV("📊 Added", strconv.Itoa(added)).Blank().
		Line("💡 Type /list to see them, or /medicine to change the schedule.").
		Build()
}
