package datetime

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Clock is a wall-clock time of day.
type Clock struct {
	Hour   int
	Minute int
}

func (c Clock) String() string { return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute) }

// Minutes returns minutes since midnight.
func (c Clock) Minutes() int { return c.Hour*60 + c.Minute }

// On returns the instant at c on date's calendar day, in date's location.
func (c Clock) On(date time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, c.Hour, c.Minute, 0, 0, date.Location())
}

var namedClocks = map[string]Clock{
	"morning":   {9, 0},
	"noon":      {12, 0},
	"afternoon": {14, 0},
	"evening":   {18, 0},
	"night":     {21, 0},
	"midnight":  {0, 0},
}

var (
	// 9:30 PM, 9 PM, 9pm, 9:30pm, 9 p.m.
	meridiemRe = regexp.MustCompile(`^(\d{1,2})(?::(\d{2}))?\s*([ap])\.?m\.?$`)
	// 14:30, 9:05
	clock24Re = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)
	// 14, 9
	bareHourRe = regexp.MustCompile(`^(\d{1,2})$`)
)

// ParseClock parses a named time, a 12-hour time with meridiem, a 24-hour
// time or a bare 24-hour hour.
func ParseClock(text string) (Clock, bool) {
	in := strings.ToLower(strings.TrimSpace(text))
	if c, ok := namedClocks[in]; ok {
		return c, true
	}

	if m := meridiemRe.FindStringSubmatch(in); m != nil {
		h, _ := strconv.Atoi(m[1])
		mins := 0
		if m[2] != "" {
			mins, _ = strconv.Atoi(m[2])
		}
		if h < 1 || h > 12 || mins > 59 {
			return Clock{}, false
		}
		h %= 12
		if m[3] == "p" {
			h += 12
		}
		return Clock{h, mins}, true
	}

	if m := clock24Re.FindStringSubmatch(in); m != nil {
		h, _ := strconv.Atoi(m[1])
		mins, _ := strconv.Atoi(m[2])
		if h > 23 || mins > 59 {
			return Clock{}, false
		}
		return Clock{h, mins}, true
	}

	if m := bareHourRe.FindStringSubmatch(in); m != nil {
		h, _ := strconv.Atoi(m[1])
		if h > 23 {
			return Clock{}, false
		}
		return Clock{h, 0}, true
	}
	return Clock{}, false
}

// ParseTime parses text with ParseClock and places it on date's day.
// Seconds are always zero.
func ParseTime(text string, date time.Time) (time.Time, bool) {
	c, ok := ParseClock(text)
	if !ok {
		return time.Time{}, false
	}
	return c.On(date), true
}

// ParseClockList parses a comma-separated list of times. Entries that do
// not parse are dropped and returned separately; duplicates collapse.
func ParseClockList(text string) (valid []Clock, invalid []string) {
	seen := map[Clock]bool{}
	for _, part := range strings.Split(text, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		c, ok := ParseClock(part)
		if !ok {
			invalid = append(invalid, part)
			continue
		}
		if !seen[c] {
			seen[c] = true
			valid = append(valid, c)
		}
	}
	return valid, invalid
}
