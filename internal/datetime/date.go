package datetime

import (
	"strings"
	"time"
)

var weekdayNames = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

// ParseWeekday accepts full or three-letter English day names, any case.
func ParseWeekday(s string) (time.Weekday, bool) {
	d, ok := weekdayNames[strings.ToLower(strings.TrimSpace(s))]
	return d, ok
}

type dateLayout struct {
	layout  string
	hasYear bool
}

// Tried in order; the first layout that parses wins.
var dateLayouts = []dateLayout{
	{"2006-1-2", true},
	{"1-2-2006", true},
	{"2-1-2006", true},
	{"2/1/2006", true},
	{"1/2/2006", true},
	{"January 2", false},
	{"Jan 2", false},
	{"January 2, 2006", true},
	{"Jan 2, 2006", true},
}

// StartOfDay returns midnight of t's calendar day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// StartOfWeek returns Sunday 00:00 of t's week in t's location.
func StartOfWeek(t time.Time) time.Time {
	day := StartOfDay(t)
	return day.AddDate(0, 0, -int(day.Weekday()))
}

// ParseDate resolves text to midnight of a calendar day in now's location.
//
// Accepted forms, in priority order: today / tomorrow / day after tomorrow,
// "next <weekday>", a bare weekday, then the numeric and month-name layouts
// in dateLayouts. A bare weekday never resolves before today. Year-less
// dates that already passed this year roll over to next year, and must
// exist in the year they land in.
func ParseDate(text string, now time.Time) (time.Time, bool) {
	in := strings.Join(strings.Fields(strings.ToLower(text)), " ")
	if in == "" {
		return time.Time{}, false
	}
	today := StartOfDay(now)

	switch in {
	case "today":
		return today, true
	case "tomorrow":
		return today.AddDate(0, 0, 1), true
	case "day after tomorrow":
		return today.AddDate(0, 0, 2), true
	}

	if rest, ok := strings.CutPrefix(in, "next "); ok {
		if wd, ok := ParseWeekday(rest); ok {
			return StartOfWeek(now).AddDate(0, 0, 7+int(wd)), true
		}
	}
	if wd, ok := ParseWeekday(in); ok {
		d := StartOfWeek(now).AddDate(0, 0, int(wd))
		if d.Before(today) {
			d = d.AddDate(0, 0, 7)
		}
		return d, true
	}

	for _, l := range dateLayouts {
		t, err := time.ParseInLocation(l.layout, in, now.Location())
		if err != nil {
			continue
		}
		if !l.hasYear {
			month, day := t.Month(), t.Day()
			t = time.Date(now.Year(), month, day, 0, 0, 0, 0, now.Location())
			if t.Before(today) {
				t = time.Date(now.Year()+1, month, day, 0, 0, 0, 0, now.Location())
			}
			// Feb 29 outside a leap year normalizes into March.
			if t.Month() != month || t.Day() != day {
				return time.Time{}, false
			}
		}
		return t, true
	}
	return time.Time{}, false
}
