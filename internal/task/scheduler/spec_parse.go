package scheduler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SpecKind is either a cron expression (robfig/cron) or a fixed interval.
type SpecKind int

const (
	SpecCron SpecKind = iota
	SpecInterval
)

// ParsedSpec is a parsed schedule string.
//
// Accepted forms:
//   - cron: "0 */6 * * *", "@hourly", "@every 1m", or anything after "cron:"
//   - duration: "1m", "5m30s", optionally after "every:" or "interval:"
//   - HH:MM interval: "00:05" (5 minutes), "06:00" (6 hours)
type ParsedSpec struct {
	Kind   SpecKind
	Cron   string
	Every  time.Duration
	Source string // "cron" | "duration" | "hhmm"
}

var errIntervalPositive = errors.New("interval must be > 0")

func ParseSchedule(raw string) (ParsedSpec, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ParsedSpec{}, errors.New("schedule required")
	}
	low := strings.ToLower(s)
	if rest, ok := strings.CutPrefix(low, "cron:"); ok {
		expr := strings.TrimSpace(s[len(s)-len(rest):])
		if expr == "" {
			return ParsedSpec{}, errors.New("cron expression required after 'cron:'")
		}
		return ParsedSpec{Kind: SpecCron, Cron: expr, Source: "cron"}, nil
	}
	for _, p := range []string{"interval:", "every:"} {
		if rest, ok := strings.CutPrefix(low, p); ok {
			return parseInterval(strings.TrimSpace(rest))
		}
	}
	// A descriptor or any field separator means cron.
	if strings.HasPrefix(s, "@") || strings.ContainsAny(s, " \t") {
		return ParsedSpec{Kind: SpecCron, Cron: s, Source: "cron"}, nil
	}
	ps, err := parseInterval(s)
	if err != nil && !errors.Is(err, errIntervalPositive) {
		return ParsedSpec{}, fmt.Errorf("invalid schedule %q (use cron like '0 */6 * * *', HH:MM like '06:00', or duration like '1m')", raw)
	}
	return ps, err
}

func parseInterval(v string) (ParsedSpec, error) {
	if v == "" {
		return ParsedSpec{}, errors.New("interval required")
	}
	if hh, mm, ok := strings.Cut(v, ":"); ok {
		d, err := hhmmDuration(hh, mm)
		if err != nil {
			return ParsedSpec{}, fmt.Errorf("invalid HH:MM interval %q: %w", v, err)
		}
		return ParsedSpec{Kind: SpecInterval, Every: d, Source: "hhmm"}, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return ParsedSpec{}, fmt.Errorf("invalid interval %q (use HH:MM or Go duration like '55m'/'2h30m')", v)
	}
	if d <= 0 {
		return ParsedSpec{}, errIntervalPositive
	}
	return ParsedSpec{Kind: SpecInterval, Every: d, Source: "duration"}, nil
}

// hhmmDuration allows hours up to 999.
func hhmmDuration(hh, mm string) (time.Duration, error) {
	if len(hh) == 0 || len(hh) > 3 || len(mm) != 2 {
		return 0, errors.New("want H:MM to HHH:MM")
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 {
		return 0, errors.New("bad hours")
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, errors.New("bad minutes")
	}
	d := time.Duration(h)*time.Hour + time.Duration(m)*time.Minute
	if d <= 0 {
		return 0, errIntervalPositive
	}
	return d, nil
}
