package config

import (
	"os"
	"strings"
)

// EnvToken overrides telegram.token when set.
const EnvToken = "REMINDBOT_TELEGRAM_TOKEN"

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvToken)); v != "" {
		cfg.Telegram.Token = v
	}
}
