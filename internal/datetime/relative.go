package datetime

import (
	"fmt"
	"math"
	"time"
)

// Relative renders t relative to now: "in 2 hours", "3 days ago".
// Thresholds follow the usual humanized buckets.
func Relative(t, now time.Time) string {
	d := t.Sub(now)
	future := d >= 0
	if !future {
		d = -d
	}
	phrase := humanize(d)
	if future {
		return "in " + phrase
	}
	return phrase + " ago"
}

func humanize(d time.Duration) string {
	round := func(unit time.Duration) int {
		return int(math.Round(float64(d) / float64(unit)))
	}
	const day = 24 * time.Hour
	switch {
	case d < 45*time.Second:
		return "a few seconds"
	case d < 90*time.Second:
		return "a minute"
	case d < 45*time.Minute:
		return fmt.Sprintf("%d minutes", round(time.Minute))
	case d < 90*time.Minute:
		return "an hour"
	case d < 22*time.Hour:
		return fmt.Sprintf("%d hours", round(time.Hour))
	case d < 36*time.Hour:
		return "a day"
	case d < 26*day:
		return fmt.Sprintf("%d days", round(day))
	case d < 45*day:
		return "a month"
	case d < 320*day:
		return fmt.Sprintf("%d months", round(30*day))
	case d < 548*day:
		return "a year"
	default:
		return fmt.Sprintf("%d years", round(365*day))
	}
}
