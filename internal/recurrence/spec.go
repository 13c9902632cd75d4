// Package recurrence turns a medicine-style frequency spec into concrete
// reminder instants and manages the series identity that ties them together.
package recurrence

import (
	"crypto/rand"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"remindbot/internal/datetime"
	"remindbot/internal/storage"
)

type Frequency string

const (
	Daily    Frequency = "daily"
	Weekdays Frequency = "weekdays"
	Specific Frequency = "specific"
	Once     Frequency = "once"
)

// ParseFrequency accepts the four frequency names, any case.
func ParseFrequency(s string) (Frequency, bool) {
	f := Frequency(strings.ToLower(strings.TrimSpace(s)))
	switch f {
	case Daily, Weekdays, Specific, Once:
		return f, true
	}
	return "", false
}

// Weeks is the length of one expansion window.
func (f Frequency) Weeks() int {
	if f == Once {
		return 1
	}
	return 4
}

// Spec describes one recurring series.
type Spec struct {
	Key       string
	Name      string
	Frequency Frequency
	// Days is read for Specific, and for Once once the series is stored.
	// Daily and Weekdays derive their days.
	Days  []time.Weekday
	Times []datetime.Clock
}

// TargetDays returns the weekdays the series fires on. An unstored Once
// series fires on today's weekday in now's location.
func (s Spec) TargetDays(now time.Time) []time.Weekday {
	switch s.Frequency {
	case Daily:
		return []time.Weekday{time.Sunday, time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday}
	case Weekdays:
		return []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}
	case Once:
		if len(s.Days) > 0 {
			return sortedDays(s.Days)
		}
		return []time.Weekday{now.Weekday()}
	default:
		return sortedDays(s.Days)
	}
}

// Message is the reminder text every instance of the series carries.
func (s Spec) Message() string { return "💊 Take " + s.Name }

// Summary renders "N time(s) × D day(s) per week".
func (s Spec) Summary(now time.Time) string {
	return fmt.Sprintf("%d time(s) × %d day(s) per week", len(s.Times), len(s.TargetDays(now)))
}

// ParseDays parses a comma-separated list of full or three-letter day
// names. Duplicates collapse; any unknown name fails the whole list.
func ParseDays(text string) ([]time.Weekday, error) {
	seen := map[time.Weekday]bool{}
	var out []time.Weekday
	for _, part := range strings.Split(text, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, ok := datetime.ParseWeekday(part)
		if !ok {
			return nil, fmt.Errorf("unknown day %q", part)
		}
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no days given")
	}
	return sortedDays(out), nil
}

func sortedDays(days []time.Weekday) []time.Weekday {
	out := append([]time.Weekday(nil), days...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// NewKey returns a fresh, time-ordered series key.
func NewKey(now time.Time) string {
	return ulid.MustNew(ulid.Timestamp(now), rand.Reader).String()
}

// ToSeries converts s for storage. The weekdays are resolved against now,
// so a renewal expands the same days the series was created with.
func (s Spec) ToSeries(owner storage.Reminder, now time.Time) storage.Series {
	times := make([]string, len(s.Times))
	for i, c := range s.Times {
		times[i] = c.String()
	}
	return storage.Series{
		Key:       s.Key,
		OwnerID:   owner.OwnerID,
		OwnerName: owner.OwnerName,
		ChatID:    owner.ChatID,
		Name:      s.Name,
		Frequency: string(s.Frequency),
		Weekdays:  s.TargetDays(now),
		Times:     times,
	}
}

// FromSeries rebuilds a Spec from its stored form.
func FromSeries(sr storage.Series) (Spec, error) {
	f, ok := ParseFrequency(sr.Frequency)
	if !ok {
		return Spec{}, fmt.Errorf("series %s: unknown frequency %q", sr.Key, sr.Frequency)
	}
	spec := Spec{Key: sr.Key, Name: sr.Name, Frequency: f, Days: sr.Weekdays}
	for _, raw := range sr.Times {
		c, ok := datetime.ParseClock(raw)
		if !ok {
			return Spec{}, fmt.Errorf("series %s: bad time %q", sr.Key, raw)
		}
		spec.Times = append(spec.Times, c)
	}
	return spec, nil
}
