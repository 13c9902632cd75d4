package recurrence

import (
	"math"
	"sort"
	"time"

	"remindbot/internal/datetime"
	"remindbot/internal/storage"
)

// Instants lists the series instants for weeks [startWeek, startWeek+weeks)
// counted from the Sunday that starts now's week, in now's location.
// Candidates strictly before now are dropped, which only affects week 0
// for normal windows. The result is ascending.
func Instants(s Spec, now time.Time, startWeek, weeks int) []time.Time {
	weekStart := datetime.StartOfWeek(now)
	days := s.TargetDays(now)
	var out []time.Time
	for w := startWeek; w < startWeek+weeks; w++ {
		for _, d := range days {
			date := weekStart.AddDate(0, 0, 7*w+int(d))
			for _, c := range s.Times {
				at := c.On(date)
				if at.Before(now) {
					continue
				}
				out = append(out, at)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// Expand builds the first window of reminders for a new series.
func Expand(s Spec, owner storage.Reminder, now time.Time) []storage.Reminder {
	return ExpandFrom(s, owner, now, 0, s.Frequency.Weeks())
}

// ExpandFrom builds reminders for an arbitrary window; renewals use it to
// top up a series past its current window.
func ExpandFrom(s Spec, owner storage.Reminder, now time.Time, startWeek, weeks int) []storage.Reminder {
	instants := Instants(s, now, startWeek, weeks)
	out := make([]storage.Reminder, 0, len(instants))
	for _, at := range instants {
		out = append(out, storage.Reminder{
			OwnerID:   owner.OwnerID,
			OwnerName: owner.OwnerName,
			ChatID:    owner.ChatID,
			Message:   s.Message(),
			At:        at.UTC(),
			Recurring: true,
			SeriesKey: s.Key,
		})
	}
	return out
}

// WeekAfter returns the offset, in weeks from now's week, of the week that
// follows last. It is at least 1 so a top-up never lands in the current week.
func WeekAfter(now, last time.Time) int {
	days := datetime.StartOfWeek(last.In(now.Location())).Sub(datetime.StartOfWeek(now)).Hours() / 24
	return max(1, int(math.Round(days/7))+1)
}
