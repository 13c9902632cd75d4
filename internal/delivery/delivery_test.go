package delivery

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"

	"remindbot/internal/dialog"
	"remindbot/internal/eventbus"
	"remindbot/internal/outbox"
	"remindbot/internal/storage"
	"remindbot/internal/transport"
	logx "remindbot/pkg/logx"
)

var ref = time.Date(2025, 6, 11, 15, 30, 0, 0, time.UTC)

type fakeSender struct {
	mu   sync.Mutex
	sent []outbox.Envelope
	err  error
}

func (f *fakeSender) Send(_ context.Context, env outbox.Envelope) (transport.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return transport.MessageRef{}, f.err
	}
	f.sent = append(f.sent, env)
	return transport.MessageRef{ChatID: env.Target.ChatID, MessageID: len(f.sent)}, nil
}

type fixedZone struct{ loc *time.Location }

func (z fixedZone) Resolve(context.Context, string) *time.Location { return z.loc }

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func setup(t *testing.T, at time.Time) (*Loop, *storage.Memory, *fakeSender, *clock, storage.Reminder) {
	t.Helper()
	st := storage.NewMemory()
	r, err := st.CreateReminder(context.Background(), storage.Reminder{
		OwnerID: "u1", OwnerName: "Alice", ChatID: 100, Message: "Call doctor", At: at,
	})
	if err != nil {
		t.Fatalf("CreateReminder() = %v", err)
	}
	sender, c := &fakeSender{}, &clock{t: ref}
	l := New(st, sender, fixedZone{loc: time.UTC}, Options{Now: c.now, Log: logx.Nop()})
	return l, st, sender, c, r
}

func TestTickDeliversOnce(t *testing.T) {
	t.Parallel()

	l, _, sender, _, _ := setup(t, ref.Add(-time.Minute))
	res, err := l.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	if res.Delivered != 1 {
		t.Fatalf("delivered = %d, want 1", res.Delivered)
	}
	if !sender.sent[0].Preserve {
		t.Fatalf("delivery was not preserved")
	}
	if sender.sent[0].Target.ChatID != 100 {
		t.Fatalf("chat = %d, want 100", sender.sent[0].Target.ChatID)
	}

	res, _ = l.Tick(context.Background())
	if res.Due != 0 {
		t.Fatalf("second tick due = %d, want 0", res.Due)
	}
}

func TestTickSkipsFuture(t *testing.T) {
	t.Parallel()

	l, _, sender, c, _ := setup(t, ref.Add(time.Hour))
	if res, _ := l.Tick(context.Background()); res.Due != 0 {
		t.Fatalf("due = %d, want 0", res.Due)
	}
	c.t = ref.Add(time.Hour)
	if res, _ := l.Tick(context.Background()); res.Delivered != 1 {
		t.Fatalf("delivered at the instant = %d, want 1", res.Delivered)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("sent = %d, want 1", len(sender.sent))
	}
}

func TestTickFailureLeavesUnsent(t *testing.T) {
	t.Parallel()

	l, st, sender, _, r := setup(t, ref.Add(-time.Minute))
	bus := eventbus.New()
	events, unsub := bus.Subscribe(4)
	defer unsub()
	l.bus = bus

	sender.err = errors.New("telegram: bad gateway")
	res, err := l.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	if res.Failed != 1 {
		t.Fatalf("failed = %d, want 1", res.Failed)
	}
	if ev := <-events; ev.Type != eventbus.ReminderFailed {
		t.Fatalf("event = %s, want %s", ev.Type, eventbus.ReminderFailed)
	}
	got, _ := st.GetReminder(context.Background(), "u1", r.ID)
	if got.Sent {
		t.Fatalf("reminder marked sent after failed send")
	}

	sender.err = nil
	if res, _ := l.Tick(context.Background()); res.Delivered != 1 {
		t.Fatalf("retry delivered = %d, want 1", res.Delivered)
	}
}

func TestRescheduledReminderIsDeliveredAgain(t *testing.T) {
	t.Parallel()

	l, st, sender, c, r := setup(t, ref.Add(-time.Minute))
	ctx := context.Background()
	_, _ = l.Tick(ctx)

	if err := st.UpdateTime(ctx, r.ID, ref.Add(2*time.Hour)); err != nil {
		t.Fatalf("UpdateTime() = %v", err)
	}
	if res, _ := l.Tick(ctx); res.Due != 0 {
		t.Fatalf("due before new instant = %d, want 0", res.Due)
	}
	c.t = ref.Add(2 * time.Hour)
	if res, _ := l.Tick(ctx); res.Delivered != 1 {
		t.Fatalf("delivered after reschedule = %d, want 1", res.Delivered)
	}
	if len(sender.sent) != 2 {
		t.Fatalf("sent = %d, want 2", len(sender.sent))
	}
}

func TestRender(t *testing.T) {
	t.Parallel()

	kolkata := time.FixedZone("IST", 5*3600+1800)
	msg := Render(storage.Reminder{ID: 42, Message: "Take <vitamins>", At: ref}, kolkata)
	for _, want := range []string{"REMINDER", "#42", "Take &lt;vitamins&gt;", "Wed Jun 11, 9:00 PM", "reschedule"} {
		if !strings.Contains(msg.Text, want) {
			t.Fatalf("Render() missing %q in:\n%s", want, msg.Text)
		}
	}
	if msg.Opt == nil || msg.Opt.ParseMode != "HTML" {
		t.Fatalf("ParseMode = %v, want HTML", msg.Opt)
	}
	rm, ok := msg.Opt.ReplyMarkup.(*tele.ReplyMarkup)
	if !ok || len(rm.InlineKeyboard) == 0 {
		t.Fatalf("ReplyMarkup = %#v, want quick action buttons", msg.Opt.ReplyMarkup)
	}
	for _, btn := range rm.InlineKeyboard[0] {
		if _, id, ok := dialog.ActionFromCallback(btn.Data); !ok || id != 42 {
			t.Fatalf("button %q data %q not bound to #42", btn.Text, btn.Data)
		}
	}
}
