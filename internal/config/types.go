package config

// Config is the root of the bot's JSON/YAML configuration.
//
// All durations are Go duration strings ("500ms", "10s", "15m").
// Omitted sections fall back to the defaults documented on each type.
type Config struct {
	Telegram   TelegramConfig    `json:"telegram"`
	Logging    LoggingConfig     `json:"logging"`
	Storage    *StorageConfig    `json:"storage,omitempty"`
	Reminders  RemindersConfig   `json:"reminders"`
	Scheduler  SchedulerConfig   `json:"scheduler"`
	TaskEngine *TaskEngineConfig `json:"task_engine,omitempty"`
	Delivery   DeliveryConfig    `json:"delivery"`
	Renewal    RenewalConfig     `json:"renewal"`
	Lifecycle  LifecycleConfig   `json:"lifecycle"`
	Retention  RetentionConfig   `json:"retention"`
	Outbox     *OutboxConfig     `json:"outbox,omitempty"`
	Admin      AdminConfig       `json:"admin,omitempty"`
}

type TelegramConfig struct {
	// Token may be left empty and supplied via REMINDBOT_TELEGRAM_TOKEN.
	Token string `json:"token"`
	// OwnerUserIDs optionally restricts the bot to these users. Empty allows everyone.
	OwnerUserIDs []int64 `json:"owner_user_ids,omitempty"`
	// AdminChat receives forwarded warnings when logging.telegram is enabled.
	AdminChat   int64  `json:"admin_chat,omitempty"`
	PollTimeout string `json:"poll_timeout"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// StorageConfig selects the reminder store.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./remindbot.db" }
type StorageConfig struct {
	Driver      string `json:"driver"` // sqlite | memory
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// RemindersConfig holds conversation defaults.
//
// Defaults:
//   - default_timezone: "Asia/Kolkata"
//   - session_timeout: "15m"
//   - reply_prefix: "RBot"
//   - list_limit: 20
//   - delete_candidates: 10
type RemindersConfig struct {
	DefaultTimezone  string `json:"default_timezone"`
	SessionTimeout   string `json:"session_timeout"`
	ReplyPrefix      string `json:"reply_prefix"`
	ListLimit        int    `json:"list_limit,omitempty"`
	DeleteCandidates int    `json:"delete_candidates,omitempty"`
}

// SchedulerConfig controls the trigger layer (cron/interval/once).
// An empty timezone means reminders.default_timezone.
type SchedulerConfig struct {
	Timezone string `json:"timezone,omitempty"`
}

// TaskEngineConfig controls task execution.
//
// Defaults: workers 2, queue_size 256, default_timeout disabled,
// max_queue_delay disabled, history_size 200, retry_max 3.
type TaskEngineConfig struct {
	Workers        int    `json:"workers,omitempty"`
	QueueSize      int    `json:"queue_size,omitempty"`
	DefaultTimeout string `json:"default_timeout,omitempty"`
	MaxQueueDelay  string `json:"max_queue_delay,omitempty"`
	HistorySize    int    `json:"history_size,omitempty"`
	RetryMax       int    `json:"retry_max,omitempty"`
}

type DeliveryConfig struct {
	Interval string `json:"interval"` // default "1m"
	Timeout  string `json:"timeout"`  // default "45s"
}

// RenewalConfig controls the low-supply monitor.
type RenewalConfig struct {
	Schedule          string `json:"schedule"`                     // default "0 */6 * * *"
	LowThreshold      int    `json:"low_threshold,omitempty"`      // default 5
	CriticalThreshold int    `json:"critical_threshold,omitempty"` // default 2
	PromptDedup       string `json:"prompt_dedup,omitempty"`       // default "6h"
}

type LifecycleConfig struct {
	DeleteAfter   string `json:"delete_after"`   // default "10m"
	SweepInterval string `json:"sweep_interval"` // default "5m"
	Grace         string `json:"grace"`          // default "60s"
}

type RetentionConfig struct {
	DailyAt string `json:"daily_at"` // HH:MM, default "02:00"
	Keep    string `json:"keep"`     // default "168h"
}

// OutboxConfig controls the outbound message queue.
//
// If the section is omitted the outbox runs with the defaults below.
type OutboxConfig struct {
	Workers       int    `json:"workers"`         // default 2
	QueueSize     int    `json:"queue_size"`      // default 512
	RatePerSec    int    `json:"rate_per_sec"`    // default 20
	RetryMax      int    `json:"retry_max"`       // default 3
	RetryBase     string `json:"retry_base"`      // default "500ms"
	RetryMaxDelay string `json:"retry_max_delay"` // default "10s"
}

// AdminConfig controls the optional admin HTTP server (/healthz, /metrics, pprof).
//
// Prefer binding to localhost. A non-loopback address needs a token or
// allow_insecure.
type AdminConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"`  // default "127.0.0.1:6060"
	Token         string `json:"token,omitempty"` // bearer token, never logged
	AllowInsecure bool   `json:"allow_insecure,omitempty"`
	Pprof         bool   `json:"pprof,omitempty"`
}
