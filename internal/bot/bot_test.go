package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"remindbot/internal/datetime"
	"remindbot/internal/dialog"
	"remindbot/internal/outbox"
	"remindbot/internal/session"
	"remindbot/internal/storage"
	"remindbot/internal/transport"
	"remindbot/internal/transport/telegram/router"
	logx "remindbot/pkg/logx"
)

var ref = time.Date(2025, 6, 11, 15, 30, 0, 0, time.UTC)

type fakeOutbox struct {
	mu   sync.Mutex
	sent []outbox.Envelope
	err  error
}

func (f *fakeOutbox) Enqueue(_ context.Context, env outbox.Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, env)
	return nil
}

func (f *fakeOutbox) last(t *testing.T) outbox.Envelope {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		t.Fatalf("no reply sent")
	}
	return f.sent[len(f.sent)-1]
}

func (f *fakeOutbox) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fixture struct {
	bot      *Bot
	store    *storage.Memory
	sessions *session.Manager
	out      *fakeOutbox
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	now := func() time.Time { return ref }
	st := storage.NewMemory()
	zones := datetime.NewResolver(func(ctx context.Context, id string) (string, error) {
		u, err := st.GetUser(ctx, id)
		return u.Timezone, err
	}, time.UTC)
	eng := dialog.NewEngine(st, zones, dialog.Options{Now: now, Log: logx.Nop()})
	sessions := session.NewManager(nil, eng, session.Options{Now: now, Log: logx.Nop()})
	out := &fakeOutbox{}
	b := New(st, sessions, out, zones, Options{Prefix: "RBot", Now: now, Log: logx.Nop()})
	return &fixture{bot: b, store: st, sessions: sessions, out: out}
}

func (f *fixture) say(t *testing.T, text string) {
	t.Helper()
	req := &router.Request{
		Chat:     transport.ChatTarget{ChatID: 100},
		FromID:   42,
		FromName: "Alice",
		Text:     text,
		Command:  router.Parse(text),
		Log:      logx.Nop(),
	}
	if err := f.bot.Handle(context.Background(), req); err != nil {
		t.Fatalf("Handle(%q) = %v", text, err)
	}
}

// tap sends a quick-action button press bound to reminder id.
func (f *fixture) tap(t *testing.T, word string, id int64) {
	t.Helper()
	req := &router.Request{
		Chat:       transport.ChatTarget{ChatID: 100},
		FromID:     42,
		FromName:   "Alice",
		Text:       word,
		Command:    router.Parse(word),
		Callback:   true,
		ReminderID: id,
		Log:        logx.Nop(),
	}
	if err := f.bot.Handle(context.Background(), req); err != nil {
		t.Fatalf("Handle(tap %s #%d) = %v", word, id, err)
	}
}

func (f *fixture) add(t *testing.T, msg string, at time.Time, sent bool) storage.Reminder {
	t.Helper()
	ctx := context.Background()
	r, err := f.store.CreateReminder(ctx, storage.Reminder{OwnerID: "42", OwnerName: "Alice", ChatID: 100, Message: msg, At: at})
	if err != nil {
		t.Fatalf("CreateReminder() = %v", err)
	}
	if sent {
		if err := f.store.MarkSent(ctx, r.ID); err != nil {
			t.Fatalf("MarkSent() = %v", err)
		}
		r.Sent = true
	}
	return r
}

func TestIgnoresPrefixedText(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.say(t, "RBot ✅ Reminder saved")
	f.say(t, "   ")
	if n := f.out.count(); n != 0 {
		t.Fatalf("replies = %d, want 0", n)
	}
}

func TestTouchStoresDefaultZone(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.say(t, "hello")
	u, err := f.store.GetUser(context.Background(), "42")
	if err != nil {
		t.Fatalf("GetUser() = %v", err)
	}
	if u.Name != "Alice" || u.Timezone != "UTC" {
		t.Fatalf("user = %+v, want Alice in UTC", u)
	}
	if n := f.out.count(); n != 0 {
		t.Fatalf("plain text replies = %d, want 0", n)
	}
}

func TestCommandReplies(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in       string
		contains string
		preserve bool
	}{
		{"/help", "REMINDER BOT HELP", true},
		{"/start", "/reminder or /new", true},
		{"/foo", "Unknown command: /foo. Type /help for available commands.", false},
		{"/cancel", "No active operation to cancel.", false},
		{"/list", "any reminders yet", true},
		{"/reminder", "CREATE REMINDER", false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			f.say(t, tt.in)
			env := f.out.last(t)
			if !strings.Contains(env.Text, tt.contains) {
				t.Fatalf("reply = %q, want it to contain %q", env.Text, tt.contains)
			}
			if env.Preserve != tt.preserve {
				t.Fatalf("Preserve = %v, want %v", env.Preserve, tt.preserve)
			}
			if env.Target.ChatID != 100 {
				t.Fatalf("target = %+v, want chat 100", env.Target)
			}
		})
	}
}

func TestSessionTakesPlainText(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.say(t, "/reminder")
	f.say(t, "done")
	if got := f.out.last(t).Text; strings.Contains(got, "No recent reminder") {
		t.Fatalf("session text went to fallback: %q", got)
	}
	if !f.sessions.Pending(context.Background(), "42", dialog.FlowReminder) {
		t.Fatalf("reminder session not pending")
	}
}

func TestListSections(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	later := f.add(t, "Call mom", ref.Add(48*time.Hour), false)
	sooner := f.add(t, "Buy milk", ref.Add(2*time.Hour), false)
	for i := 0; i < 7; i++ {
		f.add(t, "Old", ref.Add(-time.Duration(i+1)*time.Hour), true)
	}

	f.say(t, "/view")
	got := f.out.last(t).Text
	for _, want := range []string{"Total: 9 reminders", "PENDING (2):", "COMPLETED (7):", "... and 2 more", "in 2 hours"} {
		if !strings.Contains(got, want) {
			t.Fatalf("list missing %q:\n%s", want, got)
		}
	}
	if strings.Index(got, sooner.Message) > strings.Index(got, later.Message) {
		t.Fatalf("pending not ascending:\n%s", got)
	}
}

func TestFallback(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.say(t, "done")
	if got := f.out.last(t).Text; !strings.Contains(got, "No recent reminder found to respond to.") {
		t.Fatalf("reply = %q", got)
	}

	f.add(t, "Older", ref.Add(-2*time.Hour), true)
	last := f.add(t, "Stretch", ref.Add(-time.Hour), true)
	f.add(t, "Future", ref.Add(time.Hour), false)

	f.say(t, "Done")
	if got := f.out.last(t).Text; !strings.Contains(got, "Marked reminder #2 as completed") {
		t.Fatalf("done reply = %q", got)
	}

	f.say(t, "reschedule")
	if !f.sessions.Pending(context.Background(), "42", dialog.FlowReschedule) {
		t.Fatalf("reschedule session not started")
	}
	if got := f.out.last(t).Text; !strings.Contains(got, "Rescheduling #2") {
		t.Fatalf("reschedule reply = %q", got)
	}
	f.say(t, "/cancel")

	f.say(t, "delete")
	if _, err := f.store.GetReminder(context.Background(), "42", last.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("GetReminder() after delete = %v, want %v", err, storage.ErrNotFound)
	}

	n := f.out.count()
	f.say(t, "thanks")
	if f.out.count() != n {
		t.Fatalf("unrelated text got a reply")
	}
}

func TestButtonActsOnItsOwnReminder(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	older := f.add(t, "Older", ref.Add(-2*time.Hour), true)
	latest := f.add(t, "Latest", ref.Add(-time.Hour), true)
	ctx := context.Background()

	f.tap(t, "delete", older.ID)
	if _, err := f.store.GetReminder(ctx, "42", older.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("GetReminder(older) after tap = %v, want %v", err, storage.ErrNotFound)
	}
	if _, err := f.store.GetReminder(ctx, "42", latest.ID); err != nil {
		t.Fatalf("GetReminder(latest) after tap = %v, want it kept", err)
	}

	f.tap(t, "done", latest.ID)
	if got := f.out.last(t).Text; !strings.Contains(got, fmt.Sprintf("Marked reminder #%d", latest.ID)) {
		t.Fatalf("done reply = %q", got)
	}

	f.tap(t, "reschedule", latest.ID)
	if got := f.out.last(t).Text; !strings.Contains(got, fmt.Sprintf("Rescheduling #%d", latest.ID)) {
		t.Fatalf("reschedule reply = %q", got)
	}
	f.say(t, "/cancel")

	f.tap(t, "done", older.ID)
	if got := f.out.last(t).Text; !strings.Contains(got, "no longer exists") {
		t.Fatalf("reply for deleted reminder = %q", got)
	}
}

func TestButtonIsOwnerScoped(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	other, err := f.store.CreateReminder(ctx, storage.Reminder{OwnerID: "7", ChatID: 700, Message: "Theirs", At: ref.Add(-time.Hour)})
	if err != nil {
		t.Fatalf("CreateReminder() = %v", err)
	}
	f.tap(t, "delete", other.ID)
	if _, err := f.store.GetReminder(ctx, "7", other.ID); err != nil {
		t.Fatalf("other owner's reminder deleted: %v", err)
	}
	if got := f.out.last(t).Text; !strings.Contains(got, "no longer exists") {
		t.Fatalf("reply = %q", got)
	}
}

func TestTimezone(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.say(t, "/tz")
	if got := f.out.last(t).Text; !strings.Contains(got, "UTC") {
		t.Fatalf("show reply = %q", got)
	}

	f.say(t, "/timezone est")
	if got := f.out.last(t).Text; !strings.Contains(got, "America/New_York") {
		t.Fatalf("set reply = %q", got)
	}
	u, _ := f.store.GetUser(context.Background(), "42")
	if u.Timezone != "America/New_York" {
		t.Fatalf("stored zone = %q, want America/New_York", u.Timezone)
	}

	f.say(t, "/tz Mars/Olympus")
	if got := f.out.last(t).Text; !strings.Contains(got, "Unknown timezone") {
		t.Fatalf("bad zone reply = %q", got)
	}
}

func TestEnqueueFailureIsReturned(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.out.err = outbox.ErrQueueFull
	req := &router.Request{Chat: transport.ChatTarget{ChatID: 1}, FromID: 42, Text: "/help", Command: router.Parse("/help"), Log: logx.Nop()}
	if err := f.bot.Handle(context.Background(), req); !errors.Is(err, outbox.ErrQueueFull) {
		t.Fatalf("Handle() = %v, want %v", err, outbox.ErrQueueFull)
	}
}
