package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"remindbot/internal/task/engine"
	logx "remindbot/pkg/logx"
)

// inlineExec runs tasks on the trigger goroutine.
type inlineExec struct {
	mu    sync.Mutex
	names []string
}

func (e *inlineExec) Enqueue(t engine.Task) error {
	_ = t.Run(context.Background())
	e.mu.Lock()
	e.names = append(e.names, t.Name)
	e.mu.Unlock()
	return nil
}

func (e *inlineExec) count(name string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, v := range e.names {
		if v == name {
			n++
		}
	}
	return n
}

func startScheduler(t *testing.T, exec Executor) *Service {
	t.Helper()
	s := New(Config{Timezone: "UTC"}, exec, logx.Nop())
	s.Start(context.Background())
	t.Cleanup(func() { s.Stop(context.Background()) })
	return s
}

func noop(context.Context) error { return nil }

func TestAddOnceFires(t *testing.T) {
	t.Parallel()

	exec := &inlineExec{}
	s := startScheduler(t, exec)
	if _, err := s.AddOnce("delete:1", time.Now().Add(10*time.Millisecond), time.Second, noop); err != nil {
		t.Fatalf("AddOnce() = %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for exec.count("delete:1") == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := exec.count("delete:1"); got != 1 {
		t.Fatalf("fired = %d, want 1", got)
	}
	if p := s.Snapshot().Pending; p != 0 {
		t.Fatalf("pending = %d, want 0", p)
	}
}

func TestAddOnceReplaceAndRemove(t *testing.T) {
	t.Parallel()

	exec := &inlineExec{}
	s := startScheduler(t, exec)
	_, _ = s.AddOnce("x", time.Now().Add(time.Hour), 0, noop)
	_, _ = s.AddOnce("x", time.Now().Add(time.Hour), 0, noop)
	if p := s.Snapshot().Pending; p != 1 {
		t.Fatalf("pending = %d, want 1", p)
	}
	if !s.Remove("x") {
		t.Fatalf("Remove() = false, want true")
	}
	if s.Remove("x") {
		t.Fatalf("second Remove() = true, want false")
	}
}

func TestAddOnceBeforeStartWaits(t *testing.T) {
	t.Parallel()

	exec := &inlineExec{}
	s := New(Config{}, exec, logx.Nop())
	_, _ = s.AddOnce("early", time.Now(), 0, noop)
	time.Sleep(20 * time.Millisecond)
	if got := exec.count("early"); got != 0 {
		t.Fatalf("fired before Start = %d, want 0", got)
	}

	s.Start(context.Background())
	defer s.Stop(context.Background())
	deadline := time.Now().Add(2 * time.Second)
	for exec.count("early") == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := exec.count("early"); got != 1 {
		t.Fatalf("fired after Start = %d, want 1", got)
	}
}

func TestAddCronUpsertsByName(t *testing.T) {
	t.Parallel()

	s := startScheduler(t, &inlineExec{})
	for i := 0; i < 3; i++ {
		if _, err := s.AddCron("renewal.check", "0 */6 * * *", time.Minute, noop); err != nil {
			t.Fatalf("AddCron() = %v", err)
		}
	}
	snap := s.Snapshot()
	if len(snap.Schedules) != 1 {
		t.Fatalf("schedules = %d, want 1", len(snap.Schedules))
	}
	if snap.Schedules[0].Next.IsZero() {
		t.Fatalf("next run not computed")
	}
}

func TestAddCronRejectsBadSpec(t *testing.T) {
	t.Parallel()

	s := startScheduler(t, &inlineExec{})
	if _, err := s.AddCron("bad", "every tuesday", 0, noop); err == nil {
		t.Fatalf("AddCron() error = nil, want error")
	}
	if _, err := s.AddDaily("bad", "25:00", 0, noop); err == nil {
		t.Fatalf("AddDaily() error = nil, want error")
	}
}

func TestIntervalSpreadDelaysFirstRun(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 11, 12, 0, 0, 0, time.UTC)
	sched, jitter := makeIntervalScheduleWithSpread(time.Minute, now, "delivery.tick")
	if jitter < 0 || jitter >= 30*time.Second {
		t.Fatalf("jitter = %v, want [0, 30s)", jitter)
	}
	if got, want := sched.Next(now), now.Add(time.Minute+jitter); !got.Equal(want) {
		t.Fatalf("first Next = %v, want %v", got, want)
	}
	after := now.Add(2 * time.Minute)
	if got := sched.Next(after); !got.Equal(after.Add(time.Minute)) {
		t.Fatalf("later Next = %v, want %v", got, after.Add(time.Minute))
	}
}
