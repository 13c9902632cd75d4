// Package delivery sends due reminders. Each tick selects every unsent
// reminder whose instant has passed, sends it and only then marks it sent,
// so a failed send is retried by the next tick.
package delivery

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"remindbot/internal/dialog"
	"remindbot/internal/eventbus"
	"remindbot/internal/outbox"
	"remindbot/internal/storage"
	"remindbot/internal/transport"
	logx "remindbot/pkg/logx"
	"remindbot/pkg/tgui"
)

const layoutTime = "Mon Jan 2, 3:04 PM"

type Store interface {
	Due(ctx context.Context, now time.Time) ([]storage.Reminder, error)
	MarkSent(ctx context.Context, id int64) error
}

// Sender delivers one message synchronously. *outbox.Service implements it.
type Sender interface {
	Send(ctx context.Context, env outbox.Envelope) (transport.MessageRef, error)
}

type Zones interface {
	Resolve(ctx context.Context, ownerID string) *time.Location
}

type Options struct {
	Now func() time.Time
	Log logx.Logger
	Bus eventbus.Publisher
}

type Loop struct {
	store  Store
	sender Sender
	zones  Zones
	now    func() time.Time
	log    logx.Logger
	bus    eventbus.Publisher
}

// Result counts one tick.
type Result struct {
	Due       int
	Delivered int
	Failed    int
}

func New(store Store, sender Sender, zones Zones, opt Options) *Loop {
	if opt.Now == nil {
		opt.Now = time.Now
	}
	if opt.Bus == nil {
		opt.Bus = eventbus.Nop{}
	}
	return &Loop{store: store, sender: sender, zones: zones, now: opt.Now, log: opt.Log, bus: opt.Bus}
}

// Tick delivers everything due. Per-reminder failures are logged and
// counted; only a failed Due query is returned as an error.
func (l *Loop) Tick(ctx context.Context) (Result, error) {
	now := l.now()
	due, err := l.store.Due(ctx, now)
	if err != nil {
		return Result{}, fmt.Errorf("load due reminders: %w", err)
	}
	res := Result{Due: len(due)}
	for _, r := range due {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		if l.deliver(ctx, r) {
			res.Delivered++
		} else {
			res.Failed++
		}
	}
	if res.Due > 0 {
		l.log.Info("delivery tick", logx.Int("due", res.Due), logx.Int("delivered", res.Delivered), logx.Int("failed", res.Failed))
	}
	return res, nil
}

// Run is Tick shaped as a scheduler job.
func (l *Loop) Run(ctx context.Context) error {
	_, err := l.Tick(ctx)
	return err
}

func (l *Loop) deliver(ctx context.Context, r storage.Reminder) bool {
	log := l.log.With(logx.Int64("reminder_id", r.ID), logx.String("owner", r.OwnerID))
	ev := eventbus.Reminder{ID: r.ID, OwnerID: r.OwnerID, Series: r.SeriesKey}

	msg := Render(r, l.zone(ctx, r.OwnerID))
	_, err := l.sender.Send(ctx, outbox.Envelope{
		Target:   transport.ChatTarget{ChatID: r.ChatID},
		Text:     msg.Text,
		Opt:      msg.Opt,
		Preserve: true,
	})
	if err != nil {
		log.Warn("reminder send failed", logx.Err(err))
		l.bus.Publish(eventbus.Event{Type: eventbus.ReminderFailed, Time: l.now(), Data: ev})
		return false
	}
	if err := l.store.MarkSent(ctx, r.ID); err != nil {
		// Delivered but still unsent: the next tick sends it again.
		log.Error("mark reminder sent failed", logx.Err(err))
	}
	log.Debug("reminder delivered")
	l.bus.Publish(eventbus.Event{Type: eventbus.ReminderDelivered, Time: l.now(), Data: ev})
	return true
}

func (l *Loop) zone(ctx context.Context, ownerID string) *time.Location {
	if l.zones == nil {
		return time.UTC
	}
	return l.zones.Resolve(ctx, ownerID)
}

var quickActions = []string{"done", "reschedule", "delete"}

// Render builds the notification for r in the owner's zone. The quick
// action buttons act on r itself.
func Render(r storage.Reminder, loc *time.Location) tgui.Message {
	body := tgui.New().
		Title("🔔", "REMINDER").Blank().
		Line("⏰ It's time for your reminder!").Blank().
		KV("📝 Task", r.Message).
		KV("🆔 ID", "#"+strconv.FormatInt(r.ID, 10)).
		KV("🕐 Scheduled", r.At.In(loc).Format(layoutTime)).
		Blank().
		Section("🎯 Quick actions").
		Line(`Reply with: "done" / "reschedule" / "delete"`).
		Build()
	return dialog.Render(dialog.Reply{Text: body.Text, Choices: quickActions, ReminderID: r.ID, Preserve: true})
}
