package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	_ "time/tzdata"

	"github.com/robfig/cron/v3"

	logx "remindbot/pkg/logx"
)

// Settings is the resolved, typed view of the reminder-domain sections.
type Settings struct {
	Location         *time.Location
	SessionTimeout   time.Duration
	ReplyPrefix      string
	ListLimit        int
	DeleteCandidates int

	DeliveryInterval time.Duration
	DeliveryTimeout  time.Duration

	RenewalSchedule   string
	LowThreshold      int
	CriticalThreshold int
	PromptDedup       time.Duration

	DeleteAfter   time.Duration
	SweepInterval time.Duration
	Grace         time.Duration

	RetentionAt   string
	RetentionKeep time.Duration
}

const (
	DefaultTimezone = "Asia/Kolkata"
	DefaultPrefix   = "RBot"
)

// Resolve applies defaults and parses every duration of the domain sections.
func (c *Config) Resolve() (Settings, error) {
	var (
		s    Settings
		errs []error
	)
	dur := func(path, raw string, def time.Duration) time.Duration {
		d, err := ParseDurationOrDefault(path, raw, def)
		if err != nil {
			errs = append(errs, err)
		}
		return d
	}
	positive := func(v, def int) int {
		if v <= 0 {
			return def
		}
		return v
	}

	tz := strings.TrimSpace(c.Reminders.DefaultTimezone)
	if tz == "" {
		tz = DefaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		errs = append(errs, fmt.Errorf("reminders.default_timezone: %w", err))
		loc = time.UTC
	}
	s.Location = loc
	s.SessionTimeout = dur("reminders.session_timeout", c.Reminders.SessionTimeout, 15*time.Minute)
	s.ReplyPrefix = strings.TrimSpace(c.Reminders.ReplyPrefix)
	if s.ReplyPrefix == "" {
		s.ReplyPrefix = DefaultPrefix
	}
	s.ListLimit = positive(c.Reminders.ListLimit, 20)
	s.DeleteCandidates = positive(c.Reminders.DeleteCandidates, 10)

	s.DeliveryInterval = dur("delivery.interval", c.Delivery.Interval, time.Minute)
	s.DeliveryTimeout = dur("delivery.timeout", c.Delivery.Timeout, 45*time.Second)

	s.RenewalSchedule = strings.TrimSpace(c.Renewal.Schedule)
	if s.RenewalSchedule == "" {
		s.RenewalSchedule = "0 */6 * * *"
	}
	if _, err := cron.ParseStandard(s.RenewalSchedule); err != nil {
		errs = append(errs, fmt.Errorf("renewal.schedule: %w", err))
	}
	s.LowThreshold = positive(c.Renewal.LowThreshold, 5)
	s.CriticalThreshold = positive(c.Renewal.CriticalThreshold, 2)
	if s.CriticalThreshold >= s.LowThreshold {
		errs = append(errs, errors.New("renewal.critical_threshold must be below renewal.low_threshold"))
	}
	s.PromptDedup = dur("renewal.prompt_dedup", c.Renewal.PromptDedup, 6*time.Hour)

	s.DeleteAfter = dur("lifecycle.delete_after", c.Lifecycle.DeleteAfter, 10*time.Minute)
	s.SweepInterval = dur("lifecycle.sweep_interval", c.Lifecycle.SweepInterval, 5*time.Minute)
	s.Grace = dur("lifecycle.grace", c.Lifecycle.Grace, time.Minute)

	s.RetentionAt = strings.TrimSpace(c.Retention.DailyAt)
	if s.RetentionAt == "" {
		s.RetentionAt = "02:00"
	}
	if err := ParseClockField("retention.daily_at", s.RetentionAt); err != nil {
		errs = append(errs, err)
	}
	s.RetentionKeep = dur("retention.keep", c.Retention.Keep, 7*24*time.Hour)

	return s, errors.Join(errs...)
}

// Validate checks the whole config, including sections mapped elsewhere.
func Validate(c *Config) error {
	if c == nil {
		return errors.New("config is nil")
	}
	var errs []error
	if _, err := c.Resolve(); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseDurationField("telegram.poll_timeout", c.Telegram.PollTimeout); err != nil {
		errs = append(errs, err)
	}
	if !logx.ValidLevel(c.Logging.Level) {
		errs = append(errs, fmt.Errorf("logging.level: unknown level %q", c.Logging.Level))
	}
	if tz := strings.TrimSpace(c.Scheduler.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			errs = append(errs, fmt.Errorf("scheduler.timezone: %w", err))
		}
	}
	if te := c.TaskEngine; te != nil {
		for path, raw := range map[string]string{
			"task_engine.default_timeout": te.DefaultTimeout,
			"task_engine.max_queue_delay": te.MaxQueueDelay,
		} {
			if _, err := ParseDurationField(path, raw); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if ob := c.Outbox; ob != nil {
		for path, raw := range map[string]string{
			"outbox.retry_base":      ob.RetryBase,
			"outbox.retry_max_delay": ob.RetryMaxDelay,
		} {
			if _, err := ParseDurationField(path, raw); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if st := c.Storage; st != nil {
		switch strings.ToLower(strings.TrimSpace(st.Driver)) {
		case "", "sqlite", "memory":
		default:
			errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", st.Driver))
		}
		if _, err := ParseDurationField("storage.busy_timeout", st.BusyTimeout); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
