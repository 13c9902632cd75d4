package recurrence

import (
	"strings"
	"testing"
	"time"

	"remindbot/internal/datetime"
	"remindbot/internal/storage"
)

// Sunday 2025-06-08 00:00 UTC, the start of a week.
var weekStart = time.Date(2025, 6, 8, 0, 0, 0, 0, time.UTC)

var owner = storage.Reminder{OwnerID: "u1", OwnerName: "Ana", ChatID: 42}

func clocks(t *testing.T, raw ...string) []datetime.Clock {
	t.Helper()
	out := make([]datetime.Clock, 0, len(raw))
	for _, r := range raw {
		c, ok := datetime.ParseClock(r)
		if !ok {
			t.Fatalf("bad clock %q", r)
		}
		out = append(out, c)
	}
	return out
}

func TestVitaminDWeekdaysExpandsTo40(t *testing.T) {
	t.Parallel()
	s := Spec{Key: "k", Name: "Vitamin D", Frequency: Weekdays, Times: clocks(t, "09:00", "21:00")}

	got := Expand(s, owner, weekStart)
	if len(got) != 40 {
		t.Fatalf("len(Expand) = %d, want 40", len(got))
	}
	for i, r := range got {
		if r.Message != "💊 Take Vitamin D" || r.SeriesKey != "k" || !r.Recurring || r.ChatID != 42 {
			t.Fatalf("reminder %d = %+v", i, r)
		}
		if wd := r.At.Weekday(); wd == time.Saturday || wd == time.Sunday {
			t.Fatalf("reminder %d on %v", i, wd)
		}
		if i > 0 && r.At.Before(got[i-1].At) {
			t.Fatalf("expansion not ascending at %d", i)
		}
	}
	last := got[len(got)-1].At
	if want := weekStart.AddDate(0, 0, 21+5).Add(21 * time.Hour); !last.Equal(want) {
		t.Fatalf("last instant = %v, want %v", last, want)
	}
}

func TestDailyFullWeekYields7k(t *testing.T) {
	t.Parallel()
	for k := 1; k <= 3; k++ {
		times := clocks(t, "08:00", "13:30", "22:15")[:k]
		s := Spec{Key: "k", Name: "x", Frequency: Daily, Times: times}
		got := Instants(s, weekStart, 0, 1)
		if len(got) != 7*k {
			t.Fatalf("k=%d: len = %d, want %d", k, len(got), 7*k)
		}
	}
}

func TestWeekZeroDropsElapsed(t *testing.T) {
	t.Parallel()
	// Tuesday 10:00: Sunday, Monday and Tuesday 09:00 have passed.
	now := weekStart.AddDate(0, 0, 2).Add(10 * time.Hour)
	s := Spec{Key: "k", Name: "x", Frequency: Daily, Times: clocks(t, "09:00", "21:00")}

	got := Instants(s, now, 0, 1)
	if want := 14 - 5; len(got) != want {
		t.Fatalf("len = %d, want %d", len(got), want)
	}
	for _, at := range got {
		if at.Before(now) {
			t.Fatalf("elapsed instant %v kept", at)
		}
	}
	all := Instants(s, now, 0, 4)
	if len(all) != 9+21*2 {
		t.Fatalf("4-week len = %d, want %d", len(all), 9+42)
	}
}

func TestOnceUsesTodayOnly(t *testing.T) {
	t.Parallel()
	now := weekStart.AddDate(0, 0, 3).Add(8 * time.Hour) // Wednesday 08:00
	s := Spec{Key: "k", Name: "x", Frequency: Once, Times: clocks(t, "07:00", "12:00", "20:00")}
	got := Instants(s, now, 0, s.Frequency.Weeks())
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	for _, at := range got {
		if at.Weekday() != time.Wednesday || at.YearDay() != now.YearDay() {
			t.Fatalf("once instant %v not today", at)
		}
	}
}

func TestSpecificDaysAndRenewalWindow(t *testing.T) {
	t.Parallel()
	days, err := ParseDays("mon, Friday, MON")
	if err != nil {
		t.Fatalf("ParseDays: %v", err)
	}
	s := Spec{Key: "k", Name: "x", Frequency: Specific, Days: days, Times: clocks(t, "9am")}

	first := Instants(s, weekStart, 0, 4)
	next := Instants(s, weekStart, 4, 4)
	if len(first) != 8 || len(next) != 8 {
		t.Fatalf("len = %d/%d, want 8/8", len(first), len(next))
	}
	if !next[0].After(first[len(first)-1]) {
		t.Fatalf("renewal window overlaps the first window")
	}
	if want := weekStart.AddDate(0, 0, 28+1).Add(9 * time.Hour); !next[0].Equal(want) {
		t.Fatalf("next[0] = %v, want %v", next[0], want)
	}
}

func TestExpansionInUserZone(t *testing.T) {
	t.Parallel()
	loc := time.FixedZone("IST", 5*3600+1800)
	now := time.Date(2025, 6, 8, 0, 0, 0, 0, loc)
	s := Spec{Key: "k", Name: "x", Frequency: Daily, Times: clocks(t, "09:00")}
	got := Expand(s, owner, now)
	if len(got) != 28 {
		t.Fatalf("len = %d, want 28", len(got))
	}
	if got[0].At.Location() != time.UTC {
		t.Fatalf("stored instant not UTC")
	}
	if local := got[0].At.In(loc); local.Hour() != 9 || local.Minute() != 0 {
		t.Fatalf("first local = %v, want 09:00", local)
	}
}

func TestParseDaysRejects(t *testing.T) {
	t.Parallel()
	for _, in := range []string{"", "funday", "mon, xyz", " , "} {
		if _, err := ParseDays(in); err == nil {
			t.Fatalf("ParseDays(%q) err = nil", in)
		}
	}
}

func TestSeriesRoundTrip(t *testing.T) {
	t.Parallel()
	s := Spec{Key: NewKey(weekStart), Name: "Iron", Frequency: Specific,
		Days: []time.Weekday{time.Tuesday}, Times: clocks(t, "07:30", "19:00")}
	back, err := FromSeries(s.ToSeries(owner, weekStart))
	if err != nil {
		t.Fatalf("FromSeries: %v", err)
	}
	if back.Key != s.Key || back.Frequency != Specific || len(back.Times) != 2 || back.Times[0] != s.Times[0] {
		t.Fatalf("round trip = %+v", back)
	}
	if s.Summary(weekStart) != "2 time(s) × 1 day(s) per week" {
		t.Fatalf("Summary = %q", s.Summary(weekStart))
	}
}

func TestOnceSeriesRenewsOnItsOwnWeekday(t *testing.T) {
	t.Parallel()
	monday := weekStart.AddDate(0, 0, 1).Add(7 * time.Hour)
	s := Spec{Key: NewKey(monday), Name: "Iron", Frequency: Once, Times: clocks(t, "09:00")}
	sr := s.ToSeries(owner, monday)
	if len(sr.Weekdays) != 1 || sr.Weekdays[0] != time.Monday {
		t.Fatalf("stored weekdays = %v, want [Monday]", sr.Weekdays)
	}
	back, err := FromSeries(sr)
	if err != nil {
		t.Fatalf("FromSeries: %v", err)
	}

	wednesday := monday.AddDate(0, 0, 2)
	got := ExpandFrom(back, owner, wednesday, 1, 2)
	if len(got) != 2 {
		t.Fatalf("len(ExpandFrom) = %d, want 2", len(got))
	}
	for i, r := range got {
		if wd := r.At.Weekday(); wd != time.Monday {
			t.Fatalf("renewal %d on %v, want Monday", i, wd)
		}
	}
}

func TestNewKeyUnique(t *testing.T) {
	t.Parallel()
	a, b := NewKey(weekStart), NewKey(weekStart)
	if a == b || len(a) != 26 || strings.ToUpper(a) != a {
		t.Fatalf("keys %q %q", a, b)
	}
}

func TestParseFrequency(t *testing.T) {
	t.Parallel()
	if f, ok := ParseFrequency(" Weekdays "); !ok || f != Weekdays {
		t.Fatalf("ParseFrequency = %v, %v", f, ok)
	}
	if _, ok := ParseFrequency("hourly"); ok {
		t.Fatalf("ParseFrequency(hourly) ok")
	}
}

func TestWeekAfter(t *testing.T) {
	t.Parallel()
	now := weekStart.AddDate(0, 0, 2) // Tuesday
	tests := []struct {
		last time.Time
		want int
	}{
		{weekStart.AddDate(0, 0, 5), 1},
		{weekStart.AddDate(0, 0, 9), 2},
		{weekStart.AddDate(0, 0, 27).Add(21 * time.Hour), 4},
		{weekStart.AddDate(0, 0, -3), 1},
	}
	for _, tt := range tests {
		if got := WeekAfter(now, tt.last); got != tt.want {
			t.Fatalf("WeekAfter(%v) = %d, want %d", tt.last, got, tt.want)
		}
	}
}
