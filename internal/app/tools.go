package app

import (
	"remindbot/internal/config"
	"remindbot/internal/storage"
	logx "remindbot/pkg/logx"
)

// CheckConfig decodes and validates the file at path without starting anything.
func CheckConfig(path string) (*config.Config, config.Settings, error) {
	cfg, err := config.NewConfigManager(path).Parse()
	if err != nil {
		return nil, config.Settings{}, err
	}
	if err := validate(cfg); err != nil {
		return nil, config.Settings{}, err
	}
	s, err := cfg.Resolve()
	return cfg, s, err
}

// Migrate opens the configured store, which applies pending migrations,
// and closes it again.
func Migrate(path string, log logx.Logger) (storage.Config, error) {
	cfg, _, err := CheckConfig(path)
	if err != nil {
		return storage.Config{}, err
	}
	sc, err := mapStorageConfig(cfg)
	if err != nil {
		return storage.Config{}, err
	}
	st, err := storage.Open(sc, log)
	if err != nil {
		return sc, err
	}
	return sc, st.Close()
}
