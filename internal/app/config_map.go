package app

import (
	"fmt"
	"strings"
	"time"

	"remindbot/internal/config"
	"remindbot/internal/observability/admin"
	"remindbot/internal/outbox"
	"remindbot/internal/renewal"
	"remindbot/internal/storage"
	"remindbot/internal/task/engine"
	"remindbot/internal/task/scheduler"
	telegram "remindbot/internal/transport/telegram/adapter"
	logx "remindbot/pkg/logx"
)

const defaultDBPath = "./remindbot.db"

func mapAdapterConfig(cfg *config.Config) (telegram.Config, error) {
	poll, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return telegram.Config{}, err
	}
	return telegram.Config{Token: cfg.Telegram.Token, PollTimeout: poll}, nil
}

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Chat: logx.ChatConfig{
			// Forwarding without a target chat is meaningless.
			Enabled:    cfg.Logging.Telegram.Enabled && cfg.Telegram.AdminChat != 0,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

// mapStorageConfig defaults to sqlite at ./remindbot.db.
func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	if cfg.Storage == nil {
		return storage.Config{Driver: "sqlite", Path: defaultDBPath}, nil
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	switch driver {
	case "memory":
		return storage.Config{Driver: driver}, nil
	case "", "sqlite":
		path := strings.TrimSpace(sc.Path)
		if path == "" {
			path = defaultDBPath
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, err
		}
		return storage.Config{Driver: "sqlite", Path: path, BusyTimeout: busy}, nil
	default:
		return storage.Config{}, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}

func mapTaskEngineConfig(cfg *config.Config) (engine.Config, error) {
	out := engine.Config{Workers: 2, QueueSize: 256, HistorySize: 200, RetryMax: 3}
	te := cfg.TaskEngine
	if te == nil {
		return out, nil
	}
	if te.Workers < 0 || te.QueueSize < 0 || te.HistorySize < 0 || te.RetryMax < 0 {
		return engine.Config{}, fmt.Errorf("task_engine: sizes and retry_max must be >= 0")
	}
	if te.Workers > 0 {
		out.Workers = te.Workers
	}
	if te.QueueSize > 0 {
		out.QueueSize = te.QueueSize
	}
	if te.HistorySize > 0 {
		out.HistorySize = te.HistorySize
	}
	if te.RetryMax > 0 {
		out.RetryMax = te.RetryMax
	}
	var err error
	if out.DefaultTimeout, err = config.ParseDurationField("task_engine.default_timeout", te.DefaultTimeout); err != nil {
		return engine.Config{}, err
	}
	if out.MaxQueueDelay, err = config.ParseDurationField("task_engine.max_queue_delay", te.MaxQueueDelay); err != nil {
		return engine.Config{}, err
	}
	return out, nil
}

// mapSchedulerConfig runs cron in the bot's default zone unless the
// scheduler section names its own.
func mapSchedulerConfig(cfg *config.Config, s config.Settings) scheduler.Config {
	tz := strings.TrimSpace(cfg.Scheduler.Timezone)
	if tz == "" {
		tz = s.Location.String()
	}
	return scheduler.Config{Timezone: tz}
}

func mapOutboxConfig(cfg *config.Config) (outbox.Config, error) {
	out := outbox.Config{RetryMax: 3}
	ob := cfg.Outbox
	if ob == nil {
		return out, nil
	}
	out.Workers = ob.Workers
	out.QueueSize = ob.QueueSize
	out.RatePerSec = ob.RatePerSec
	if ob.RetryMax > 0 {
		out.RetryMax = ob.RetryMax
	}
	var err error
	if out.RetryBase, err = config.ParseDurationField("outbox.retry_base", ob.RetryBase); err != nil {
		return outbox.Config{}, err
	}
	if out.RetryMaxDelay, err = config.ParseDurationField("outbox.retry_max_delay", ob.RetryMaxDelay); err != nil {
		return outbox.Config{}, err
	}
	return out, nil
}

func mapRenewalConfig(s config.Settings) renewal.Config {
	return renewal.Config{Low: s.LowThreshold, Critical: s.CriticalThreshold, Dedup: s.PromptDedup}
}

func mapAdminConfig(cfg *config.Config) admin.Config {
	a := cfg.Admin
	return admin.Config{
		Enabled:       a.Enabled,
		Addr:          strings.TrimSpace(a.Addr),
		Token:         strings.TrimSpace(a.Token),
		AllowInsecure: a.AllowInsecure,
		Pprof:         a.Pprof,
	}
}

// validate is the reload gate: a config that fails here is never committed.
func validate(cfg *config.Config) error {
	if err := config.Validate(cfg); err != nil {
		return err
	}
	if _, err := mapStorageConfig(cfg); err != nil {
		return err
	}
	if _, err := mapTaskEngineConfig(cfg); err != nil {
		return err
	}
	if _, err := mapOutboxConfig(cfg); err != nil {
		return err
	}
	return mapAdminConfig(cfg).Validate()
}
