package datetime

import (
	"context"
	"errors"
	"testing"
	"time"
)

// Wednesday, 2025-06-11 15:30 UTC.
var ref = time.Date(2025, 6, 11, 15, 30, 45, 0, time.UTC)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseDate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want time.Time
	}{
		{"today", day(2025, 6, 11)},
		{"  Tomorrow ", day(2025, 6, 12)},
		{"day after tomorrow", day(2025, 6, 13)},
		{"next monday", day(2025, 6, 16)},
		{"next sunday", day(2025, 6, 15)},
		{"next wed", day(2025, 6, 18)},
		{"friday", day(2025, 6, 13)},
		{"wednesday", day(2025, 6, 11)},
		{"monday", day(2025, 6, 16)},
		{"Sun", day(2025, 6, 15)},
		{"2025-06-20", day(2025, 6, 20)},
		{"2025-6-2", day(2025, 6, 2)},
		{"06-20-2025", day(2025, 6, 20)},
		{"20-06-2025", day(2025, 6, 20)},
		{"20/06/2025", day(2025, 6, 20)},
		{"06/20/2025", day(2025, 6, 20)},
		{"january 20", day(2026, 1, 20)},
		{"June 11", day(2025, 6, 11)},
		{"dec 25", day(2025, 12, 25)},
		{"March 3, 2027", day(2027, 3, 3)},
		{"mar 3, 2027", day(2027, 3, 3)},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, ok := ParseDate(tt.in, ref)
			if !ok {
				t.Fatalf("ParseDate(%q) failed", tt.in)
			}
			if !got.Equal(tt.want) {
				t.Fatalf("ParseDate(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseDateRejects(t *testing.T) {
	t.Parallel()
	for _, in := range []string{"", "someday", "next week", "2025-13-01", "32/01/2025", "next", "february 29", "feb 29", "feb 30", "april 31"} {
		if got, ok := ParseDate(in, ref); ok {
			t.Fatalf("ParseDate(%q) = %v, want failure", in, got)
		}
	}
}

func TestLeapDayWithoutYear(t *testing.T) {
	t.Parallel()
	tests := []struct {
		now  time.Time
		want time.Time
	}{
		{time.Date(2028, 1, 10, 12, 0, 0, 0, time.UTC), day(2028, 2, 29)},
		// already past in 2027, lands in leap 2028
		{time.Date(2027, 6, 1, 12, 0, 0, 0, time.UTC), day(2028, 2, 29)},
	}
	for _, tt := range tests {
		got, ok := ParseDate("february 29", tt.now)
		if !ok || !got.Equal(tt.want) {
			t.Fatalf("ParseDate(february 29, %v) = %v, %v; want %v", tt.now, got, ok, tt.want)
		}
	}
	if got, ok := ParseDate("feb 29", time.Date(2028, 3, 5, 12, 0, 0, 0, time.UTC)); ok {
		t.Fatalf("ParseDate(feb 29) after leap day = %v, want failure", got)
	}
}

func TestBareWeekdayNeverBeforeReferenceDay(t *testing.T) {
	t.Parallel()
	names := []string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}
	for offset := 0; offset < 7; offset++ {
		now := ref.AddDate(0, 0, offset)
		for _, n := range names {
			got, ok := ParseDate(n, now)
			if !ok {
				t.Fatalf("ParseDate(%q) failed", n)
			}
			if got.Before(StartOfDay(now)) {
				t.Fatalf("ParseDate(%q, %v) = %v, before reference day", n, now, got)
			}
			if got.Sub(StartOfDay(now)) >= 7*24*time.Hour {
				t.Fatalf("ParseDate(%q, %v) = %v, more than a week ahead", n, now, got)
			}
		}
	}
}

func TestParseDateKeepsLocation(t *testing.T) {
	t.Parallel()
	loc := time.FixedZone("IST", 5*3600+1800)
	now := time.Date(2025, 6, 11, 23, 50, 0, 0, loc)
	got, ok := ParseDate("tomorrow", now)
	if !ok || got.Location() != loc || got.Day() != 12 {
		t.Fatalf("ParseDate(tomorrow) = %v", got)
	}
}

func TestParseClock(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want Clock
	}{
		{"morning", Clock{9, 0}},
		{"Noon", Clock{12, 0}},
		{"afternoon", Clock{14, 0}},
		{"evening", Clock{18, 0}},
		{"night", Clock{21, 0}},
		{"midnight", Clock{0, 0}},
		{"9:30 PM", Clock{21, 30}},
		{"9 PM", Clock{21, 0}},
		{"9pm", Clock{21, 0}},
		{"9:30pm", Clock{21, 30}},
		{"9 am", Clock{9, 0}},
		{"12 am", Clock{0, 0}},
		{"12:15 pm", Clock{12, 15}},
		{"7 p.m.", Clock{19, 0}},
		{"14:30", Clock{14, 30}},
		{"09:05", Clock{9, 5}},
		{"9:05", Clock{9, 5}},
		{"14", Clock{14, 0}},
		{"0", Clock{0, 0}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, ok := ParseClock(tt.in)
			if !ok || got != tt.want {
				t.Fatalf("ParseClock(%q) = %v, %v; want %v", tt.in, got, ok, tt.want)
			}
		})
	}
}

func TestParseClockRejects(t *testing.T) {
	t.Parallel()
	for _, in := range []string{"", "13 pm", "0 am", "24:00", "9:60", "25", "half past", "9:5"} {
		if got, ok := ParseClock(in); ok {
			t.Fatalf("ParseClock(%q) = %v, want failure", in, got)
		}
	}
}

func TestParseTimeZeroSeconds(t *testing.T) {
	t.Parallel()
	inputs := []string{"9:30 PM", "noon", "14", "23:59", "6am"}
	dates := []time.Time{ref, ref.Add(17*time.Second + 3*time.Millisecond), day(2024, 2, 29)}
	for _, in := range inputs {
		for _, d := range dates {
			got, ok := ParseTime(in, d)
			if !ok {
				t.Fatalf("ParseTime(%q) failed", in)
			}
			if got.Second() != 0 || got.Nanosecond() != 0 {
				t.Fatalf("ParseTime(%q, %v) = %v, want zero seconds", in, d, got)
			}
			if y, m, dd := got.Date(); y != d.Year() || m != d.Month() || dd != d.Day() {
				t.Fatalf("ParseTime(%q) moved the date: %v", in, got)
			}
		}
	}
}

func TestParseClockList(t *testing.T) {
	t.Parallel()
	valid, invalid := ParseClockList("9 AM, 21:00, bogus, 9:00 am,, night")
	if len(valid) != 2 || valid[0] != (Clock{9, 0}) || valid[1] != (Clock{21, 0}) {
		t.Fatalf("valid = %v", valid)
	}
	if len(invalid) != 1 || invalid[0] != "bogus" {
		t.Fatalf("invalid = %v", invalid)
	}
}

func TestRelative(t *testing.T) {
	t.Parallel()
	tests := []struct {
		d    time.Duration
		want string
	}{
		{10 * time.Second, "in a few seconds"},
		{time.Minute, "in a minute"},
		{10 * time.Minute, "in 10 minutes"},
		{time.Hour, "in an hour"},
		{2 * time.Hour, "in 2 hours"},
		{30 * time.Hour, "in a day"},
		{3 * 24 * time.Hour, "in 3 days"},
		{-2 * time.Hour, "2 hours ago"},
	}
	for _, tt := range tests {
		if got := Relative(ref.Add(tt.d), ref); got != tt.want {
			t.Fatalf("Relative(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestResolver(t *testing.T) {
	t.Parallel()
	def := time.FixedZone("DEF", 3600)
	zones := map[string]string{"a": "pst", "b": "Europe/Paris", "c": "Mars/Base"}
	r := NewResolver(func(_ context.Context, id string) (string, error) {
		if id == "err" {
			return "", errors.New("boom")
		}
		return zones[id], nil
	}, def)

	ctx := context.Background()
	if got := r.Resolve(ctx, "a").String(); got != "America/Los_Angeles" {
		t.Fatalf("Resolve(a) = %s", got)
	}
	if got := r.Resolve(ctx, "b").String(); got != "Europe/Paris" {
		t.Fatalf("Resolve(b) = %s", got)
	}
	for _, id := range []string{"c", "err", "missing"} {
		if got := r.Resolve(ctx, id); got != def {
			t.Fatalf("Resolve(%s) = %v, want default", id, got)
		}
	}
}
