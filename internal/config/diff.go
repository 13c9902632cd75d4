package config

import (
	"reflect"
	"sort"
	"strings"

	logx "remindbot/pkg/logx"
)

// Sections whose changes apply without a restart.
var hotSections = map[string]bool{
	"logging":   true,
	"outbox":    true,
	"renewal":   true,
	"lifecycle": true,
	"admin":     true,
}

// SummarizeConfigChange returns the changed top-level sections, safe log
// attrs describing them (tokens are never included) and the subset of
// changed sections that need a restart to take effect.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field, []string) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	var (
		changed []string
		attrs   []logx.Field
	)
	mark := func(section string, fields ...logx.Field) {
		changed = append(changed, section)
		attrs = append(attrs, fields...)
	}

	ot, nt := oldCfg.Telegram, newCfg.Telegram
	if strings.TrimSpace(ot.PollTimeout) != strings.TrimSpace(nt.PollTimeout) ||
		!reflect.DeepEqual(ot.OwnerUserIDs, nt.OwnerUserIDs) ||
		ot.AdminChat != nt.AdminChat ||
		ot.Token != nt.Token {
		mark("telegram",
			logx.String("telegram.poll_timeout", strings.TrimSpace(nt.PollTimeout)),
			logx.Int("telegram.owner_count", len(nt.OwnerUserIDs)),
			logx.Bool("telegram.admin_chat_set", nt.AdminChat != 0),
			logx.Bool("telegram.token_changed", ot.Token != nt.Token),
		)
	}

	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		mark("logging",
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logging.telegram_enabled", newCfg.Logging.Telegram.Enabled),
		)
	}

	if !reflect.DeepEqual(derefStorage(oldCfg.Storage), derefStorage(newCfg.Storage)) {
		ns := derefStorage(newCfg.Storage)
		mark("storage",
			logx.String("storage.driver", strings.TrimSpace(ns.Driver)),
			logx.Bool("storage.path_set", strings.TrimSpace(ns.Path) != ""),
		)
	}

	if !reflect.DeepEqual(oldCfg.Reminders, newCfg.Reminders) {
		mark("reminders",
			logx.String("reminders.default_timezone", newCfg.Reminders.DefaultTimezone),
			logx.String("reminders.session_timeout", newCfg.Reminders.SessionTimeout),
		)
	}

	if oldCfg.Scheduler != newCfg.Scheduler {
		mark("scheduler", logx.String("scheduler.timezone", strings.TrimSpace(newCfg.Scheduler.Timezone)))
	}

	if derefTaskEngine(oldCfg.TaskEngine) != derefTaskEngine(newCfg.TaskEngine) {
		te := derefTaskEngine(newCfg.TaskEngine)
		mark("task_engine",
			logx.Int("task_engine.workers", te.Workers),
			logx.Int("task_engine.queue_size", te.QueueSize),
			logx.Int("task_engine.retry_max", te.RetryMax),
		)
	}

	if oldCfg.Delivery != newCfg.Delivery {
		mark("delivery", logx.String("delivery.interval", newCfg.Delivery.Interval))
	}

	if oldCfg.Renewal != newCfg.Renewal {
		mark("renewal",
			logx.String("renewal.schedule", newCfg.Renewal.Schedule),
			logx.Int("renewal.low_threshold", newCfg.Renewal.LowThreshold),
			logx.Int("renewal.critical_threshold", newCfg.Renewal.CriticalThreshold),
		)
	}

	if oldCfg.Lifecycle != newCfg.Lifecycle {
		mark("lifecycle", logx.String("lifecycle.delete_after", newCfg.Lifecycle.DeleteAfter))
	}

	if oldCfg.Retention != newCfg.Retention {
		mark("retention",
			logx.String("retention.daily_at", newCfg.Retention.DailyAt),
			logx.String("retention.keep", newCfg.Retention.Keep),
		)
	}

	if derefOutbox(oldCfg.Outbox) != derefOutbox(newCfg.Outbox) {
		ob := derefOutbox(newCfg.Outbox)
		mark("outbox",
			logx.Int("outbox.rate_per_sec", ob.RatePerSec),
			logx.Int("outbox.retry_max", ob.RetryMax),
		)
	}

	oa, na := oldCfg.Admin, newCfg.Admin
	if oa.Enabled != na.Enabled || oa.Addr != na.Addr || oa.AllowInsecure != na.AllowInsecure ||
		oa.Pprof != na.Pprof || (oa.Token != "") != (na.Token != "") {
		mark("admin",
			logx.Bool("admin.enabled", na.Enabled),
			logx.String("admin.addr", strings.TrimSpace(na.Addr)),
			logx.Bool("admin.token_set", na.Token != ""),
		)
	}

	sort.Strings(changed)
	var restart []string
	for _, s := range changed {
		if !hotSections[s] {
			restart = append(restart, s)
		}
	}
	return changed, attrs, restart
}

func derefStorage(s *StorageConfig) StorageConfig {
	if s == nil {
		return StorageConfig{}
	}
	return *s
}

func derefTaskEngine(te *TaskEngineConfig) TaskEngineConfig {
	if te == nil {
		return TaskEngineConfig{}
	}
	return *te
}

func derefOutbox(o *OutboxConfig) OutboxConfig {
	if o == nil {
		return OutboxConfig{}
	}
	return *o
}
