package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"remindbot/internal/config"
	logx "remindbot/pkg/logx"
)

func TestMapStorageConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      *config.StorageConfig
		driver  string
		path    string
		wantErr bool
	}{
		{"omitted", nil, "sqlite", defaultDBPath, false},
		{"memory", &config.StorageConfig{Driver: "Memory"}, "memory", "", false},
		{"sqlite default path", &config.StorageConfig{Driver: "sqlite"}, "sqlite", defaultDBPath, false},
		{"sqlite path", &config.StorageConfig{Path: "/tmp/x.db"}, "sqlite", "/tmp/x.db", false},
		{"unknown", &config.StorageConfig{Driver: "bolt"}, "", "", true},
		{"bad busy", &config.StorageConfig{BusyTimeout: "soon"}, "", "", true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := mapStorageConfig(&config.Config{Storage: tt.in})
			if (err != nil) != tt.wantErr {
				t.Fatalf("mapStorageConfig() err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if got.Driver != tt.driver || got.Path != tt.path {
				t.Fatalf("mapStorageConfig() = %+v, want driver %q path %q", got, tt.driver, tt.path)
			}
		})
	}
}

func TestMapTaskEngineConfig(t *testing.T) {
	t.Parallel()

	got, err := mapTaskEngineConfig(&config.Config{})
	if err != nil {
		t.Fatalf("mapTaskEngineConfig() = %v", err)
	}
	if got.Workers != 2 || got.QueueSize != 256 || got.RetryMax != 3 {
		t.Fatalf("defaults = %+v", got)
	}

	got, err = mapTaskEngineConfig(&config.Config{TaskEngine: &config.TaskEngineConfig{Workers: 5, DefaultTimeout: "30s"}})
	if err != nil {
		t.Fatalf("mapTaskEngineConfig() = %v", err)
	}
	if got.Workers != 5 || got.DefaultTimeout != 30*time.Second {
		t.Fatalf("config = %+v, want 5 workers and 30s timeout", got)
	}

	if _, err := mapTaskEngineConfig(&config.Config{TaskEngine: &config.TaskEngineConfig{Workers: -1}}); err == nil {
		t.Fatalf("negative workers accepted")
	}
}

func TestMapOutboxConfig(t *testing.T) {
	t.Parallel()

	got, err := mapOutboxConfig(&config.Config{Outbox: &config.OutboxConfig{RatePerSec: 5, RetryBase: "1s"}})
	if err != nil {
		t.Fatalf("mapOutboxConfig() = %v", err)
	}
	if got.RatePerSec != 5 || got.RetryBase != time.Second || got.RetryMax != 3 {
		t.Fatalf("mapOutboxConfig() = %+v", got)
	}
	if _, err := mapOutboxConfig(&config.Config{Outbox: &config.OutboxConfig{RetryMaxDelay: "-1s"}}); err == nil {
		t.Fatalf("negative retry_max_delay accepted")
	}
}

func TestMapLogConfigNeedsAdminChat(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{Logging: config.LoggingConfig{Telegram: config.LoggingTelegram{Enabled: true}}}
	if mapLogConfig(cfg).Chat.Enabled {
		t.Fatalf("chat sink enabled without admin chat")
	}
	cfg.Telegram.AdminChat = -100
	if !mapLogConfig(cfg).Chat.Enabled {
		t.Fatalf("chat sink disabled with admin chat set")
	}
}

func TestMapSchedulerConfigFallsBackToDefaultZone(t *testing.T) {
	t.Parallel()

	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}
	s := config.Settings{Location: loc}
	if got := mapSchedulerConfig(&config.Config{}, s).Timezone; got != "Asia/Kolkata" {
		t.Fatalf("Timezone = %q, want %q", got, "Asia/Kolkata")
	}
	cfg := &config.Config{Scheduler: config.SchedulerConfig{Timezone: "UTC"}}
	if got := mapSchedulerConfig(cfg, s).Timezone; got != "UTC" {
		t.Fatalf("Timezone = %q, want %q", got, "UTC")
	}
}

func TestValidateRejectsOpenAdmin(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{Admin: config.AdminConfig{Enabled: true, Addr: "0.0.0.0:6060"}}
	if err := validate(cfg); err == nil {
		t.Fatalf("validate() accepted a public admin listener without token")
	}
	cfg.Admin.Token = "secret"
	if err := validate(cfg); err != nil {
		t.Fatalf("validate() = %v", err)
	}
}

func TestCheckConfigAndMigrate(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	db := filepath.Join(dir, "bot.db")
	p := filepath.Join(dir, "config.yaml")
	body := "telegram:\n  token: t\nstorage:\n  driver: sqlite\n  path: " + db + "\nreminders:\n  default_timezone: UTC\n"
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, s, err := CheckConfig(p)
	if err != nil {
		t.Fatalf("CheckConfig() = %v", err)
	}
	if s.Location.String() != "UTC" {
		t.Fatalf("Location = %v, want UTC", s.Location)
	}

	sc, err := Migrate(p, logx.Nop())
	if err != nil {
		t.Fatalf("Migrate() = %v", err)
	}
	if sc.Path != db {
		t.Fatalf("Migrate() path = %q, want %q", sc.Path, db)
	}
	if _, err := os.Stat(db); err != nil {
		t.Fatalf("database not created: %v", err)
	}
}
