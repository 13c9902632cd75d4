package storage

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	logx "remindbot/pkg/logx"
)

func newTestStores(t *testing.T) map[string]Store {
	t.Helper()
	sq, err := Open(Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "test.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = sq.Close() })
	return map[string]Store{"sqlite": sq, "memory": NewMemory()}
}

func eachStore(t *testing.T, fn func(t *testing.T, st Store)) {
	t.Helper()
	for name, st := range newTestStores(t) {
		st := st
		t.Run(name, func(t *testing.T) { fn(t, st) })
	}
}

var base = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func TestDueAndMarkSent(t *testing.T) {
	eachStore(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		late, _ := st.CreateReminder(ctx, Reminder{OwnerID: "u1", Message: "b", At: base.Add(time.Minute), ChatID: 1})
		early, _ := st.CreateReminder(ctx, Reminder{OwnerID: "u1", Message: "a", At: base, ChatID: 1})
		_, _ = st.CreateReminder(ctx, Reminder{OwnerID: "u1", Message: "future", At: base.Add(time.Hour), ChatID: 1})

		due, err := st.Due(ctx, base.Add(2*time.Minute))
		if err != nil {
			t.Fatalf("Due: %v", err)
		}
		if len(due) != 2 || due[0].ID != early.ID || due[1].ID != late.ID {
			t.Fatalf("Due = %+v, want [early late]", due)
		}

		if err := st.MarkSent(ctx, early.ID); err != nil {
			t.Fatalf("MarkSent: %v", err)
		}
		due, _ = st.Due(ctx, base.Add(2*time.Minute))
		if len(due) != 1 || due[0].ID != late.ID {
			t.Fatalf("Due after MarkSent = %+v", due)
		}
		if err := st.MarkSent(ctx, 9999); !errors.Is(err, ErrNotFound) {
			t.Fatalf("MarkSent(missing) = %v, want ErrNotFound", err)
		}
	})
}

func TestUpdateTimeResetsSent(t *testing.T) {
	eachStore(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		r, _ := st.CreateReminder(ctx, Reminder{OwnerID: "u1", Message: "m", At: base, ChatID: 1})
		_ = st.MarkSent(ctx, r.ID)

		next := base.Add(48 * time.Hour)
		if err := st.UpdateTime(ctx, r.ID, next); err != nil {
			t.Fatalf("UpdateTime: %v", err)
		}
		got, err := st.GetReminder(ctx, "u1", r.ID)
		if err != nil {
			t.Fatalf("GetReminder: %v", err)
		}
		if got.Sent || !got.At.Equal(next) {
			t.Fatalf("after UpdateTime: sent=%v at=%v", got.Sent, got.At)
		}
	})
}

func TestOwnerScopedOperations(t *testing.T) {
	eachStore(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		mine, _ := st.CreateReminder(ctx, Reminder{OwnerID: "u1", Message: "m", At: base, ChatID: 1})
		_, _ = st.CreateReminder(ctx, Reminder{OwnerID: "u1", Message: "n", At: base.Add(time.Hour), ChatID: 1})
		_, _ = st.CreateReminder(ctx, Reminder{OwnerID: "u2", Message: "x", At: base, ChatID: 2})

		if _, err := st.GetReminder(ctx, "u2", mine.ID); !errors.Is(err, ErrNotFound) {
			t.Fatalf("GetReminder(other owner) = %v, want ErrNotFound", err)
		}
		if ok, _ := st.DeleteReminder(ctx, "u2", mine.ID); ok {
			t.Fatalf("DeleteReminder(other owner) = true")
		}

		list, _ := st.ListByOwner(ctx, "u1", 10)
		if len(list) != 2 || list[0].Message != "n" {
			t.Fatalf("ListByOwner = %+v, want latest first", list)
		}
		if n, _ := st.CountForOwner(ctx, "u1"); n != 2 {
			t.Fatalf("CountForOwner = %d, want 2", n)
		}
		if n, _ := st.DeleteAllForOwner(ctx, "u1"); n != 2 {
			t.Fatalf("DeleteAllForOwner = %d, want 2", n)
		}
		if n, _ := st.CountForOwner(ctx, "u2"); n != 1 {
			t.Fatalf("CountForOwner(u2) = %d, want 1", n)
		}
	})
}

func TestLastSent(t *testing.T) {
	eachStore(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		if _, err := st.LastSent(ctx, "u1"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("LastSent(empty) = %v, want ErrNotFound", err)
		}
		a, _ := st.CreateReminder(ctx, Reminder{OwnerID: "u1", Message: "a", At: base, ChatID: 1})
		b, _ := st.CreateReminder(ctx, Reminder{OwnerID: "u1", Message: "b", At: base.Add(time.Hour), ChatID: 1})
		_, _ = st.CreateReminder(ctx, Reminder{OwnerID: "u1", Message: "c", At: base.Add(2 * time.Hour), ChatID: 1})
		_ = st.MarkSent(ctx, a.ID)
		_ = st.MarkSent(ctx, b.ID)

		got, err := st.LastSent(ctx, "u1")
		if err != nil || got.ID != b.ID {
			t.Fatalf("LastSent = %+v, %v; want #%d", got, err, b.ID)
		}
	})
}

func TestSeriesLowAndDeleteUnsent(t *testing.T) {
	eachStore(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		sr := Series{
			Key: "01HSERIES", OwnerID: "u1", ChatID: 1, Name: "Vitamin D",
			Frequency: "specific", Weekdays: []time.Weekday{time.Monday, time.Friday},
			Times: []string{"09:00", "21:00"},
		}
		if err := st.CreateSeries(ctx, sr); err != nil {
			t.Fatalf("CreateSeries: %v", err)
		}
		var batch []Reminder
		for i := 0; i < 6; i++ {
			batch = append(batch, Reminder{
				OwnerID: "u1", Message: "💊 Take Vitamin D", At: base.Add(time.Duration(i) * time.Hour),
				ChatID: 1, Recurring: true, SeriesKey: sr.Key,
			})
		}
		if n, err := st.CreateReminders(ctx, batch); err != nil || n != 6 {
			t.Fatalf("CreateReminders = %d, %v", n, err)
		}

		low, _ := st.SeriesLow(ctx, 5)
		if len(low) != 0 {
			t.Fatalf("SeriesLow(5) with 6 unsent = %+v, want none", low)
		}

		due, _ := st.Due(ctx, base)
		_ = st.MarkSent(ctx, due[0].ID)

		low, err := st.SeriesLow(ctx, 5)
		if err != nil {
			t.Fatalf("SeriesLow: %v", err)
		}
		if len(low) != 1 || low[0].Remaining != 5 || low[0].Name != "Vitamin D" {
			t.Fatalf("SeriesLow = %+v, want one with 5 remaining", low)
		}
		if want := base.Add(5 * time.Hour); !low[0].LastAt.Equal(want) {
			t.Fatalf("LastAt = %v, want %v", low[0].LastAt, want)
		}
		if !reflect.DeepEqual(low[0].Weekdays, sr.Weekdays) || !reflect.DeepEqual(low[0].Times, sr.Times) {
			t.Fatalf("series spec round trip = %+v", low[0].Series)
		}

		if n, _ := st.DeleteUnsentInSeries(ctx, sr.Key); n != 5 {
			t.Fatalf("DeleteUnsentInSeries = %d, want 5", n)
		}
		if n, _ := st.CountUnsentInSeries(ctx, sr.Key); n != 0 {
			t.Fatalf("CountUnsentInSeries = %d, want 0", n)
		}
		if n, _ := st.CountForOwner(ctx, "u1"); n != 1 {
			t.Fatalf("sent instance removed by DeleteUnsentInSeries")
		}
	})
}

func TestCleanupSent(t *testing.T) {
	eachStore(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		old, _ := st.CreateReminder(ctx, Reminder{OwnerID: "u1", Message: "old", At: base.Add(-10 * 24 * time.Hour), ChatID: 1})
		unsentOld, _ := st.CreateReminder(ctx, Reminder{OwnerID: "u1", Message: "late", At: base.Add(-10 * 24 * time.Hour), ChatID: 1})
		_ = st.MarkSent(ctx, old.ID)

		n, err := st.CleanupSent(ctx, base.Add(-7*24*time.Hour))
		if err != nil || n != 1 {
			t.Fatalf("CleanupSent = %d, %v; want 1", n, err)
		}
		if _, err := st.GetReminder(ctx, "u1", unsentOld.ID); err != nil {
			t.Fatalf("unsent reminder removed by CleanupSent")
		}
	})
}

func TestTouchUserKeepsTimezone(t *testing.T) {
	eachStore(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		_ = st.TouchUser(ctx, User{ID: "u1", Name: "Ana", Timezone: "Europe/Lisbon"})
		_ = st.TouchUser(ctx, User{ID: "u1", Name: "Ana B"})

		u, err := st.GetUser(ctx, "u1")
		if err != nil {
			t.Fatalf("GetUser: %v", err)
		}
		if u.Timezone != "Europe/Lisbon" || u.Name != "Ana B" {
			t.Fatalf("GetUser = %+v", u)
		}
		if _, err := st.GetUser(ctx, "nobody"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("GetUser(missing) = %v, want ErrNotFound", err)
		}
	})
}

func TestDedupRoundTrip(t *testing.T) {
	eachStore(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		until := base.Add(6 * time.Hour)
		if err := st.PutDedup(ctx, "renewal:k", until); err != nil {
			t.Fatalf("PutDedup: %v", err)
		}
		got, ok, err := st.GetDedup(ctx, "renewal:k")
		if err != nil || !ok || !got.Equal(until) {
			t.Fatalf("GetDedup = %v, %v, %v", got, ok, err)
		}
		if _, ok, _ := st.GetDedup(ctx, "missing"); ok {
			t.Fatalf("GetDedup(missing) ok = true")
		}
	})
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()
	if _, err := Open(Config{Driver: "mongo"}, logx.Nop()); err == nil {
		t.Fatalf("Open(mongo) err = nil")
	}
}

func TestCreateSeriesBatchIsAllOrNothing(t *testing.T) {
	eachStore(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		sr := Series{Key: "01HBATCH", OwnerID: "u1", ChatID: 1, Name: "Iron", Frequency: "daily", Times: []string{"08:00"}}
		rs := []Reminder{
			{OwnerID: "u1", Message: "💊 Take Iron", At: base, ChatID: 1, Recurring: true, SeriesKey: sr.Key},
			{OwnerID: "u1", Message: "💊 Take Iron", At: base.Add(24 * time.Hour), ChatID: 1, Recurring: true, SeriesKey: sr.Key},
		}
		if n, err := st.CreateSeriesBatch(ctx, sr, rs); err != nil || n != 2 {
			t.Fatalf("CreateSeriesBatch = %d, %v; want 2, nil", n, err)
		}
		if _, err := st.GetSeries(ctx, sr.Key); err != nil {
			t.Fatalf("GetSeries after batch = %v", err)
		}

		if _, err := st.CreateSeriesBatch(ctx, sr, rs); !errors.Is(err, ErrExists) {
			t.Fatalf("CreateSeriesBatch(dup) = %v, want ErrExists", err)
		}
		if n, _ := st.CountUnsentInSeries(ctx, sr.Key); n != 2 {
			t.Fatalf("CountUnsentInSeries after failed batch = %d, want 2", n)
		}
	})
}
