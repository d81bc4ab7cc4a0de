package config

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

// envOverrides lists the environment variables that win over file values.
type envOverrides struct {
	Token         string `envconfig:"TELEGRAM_BOT_TOKEN"`
	OwnerID       int64  `envconfig:"BOT_OWNER_ID"`
	TargetGroupID int64  `envconfig:"TARGET_GROUP_ID"`
	LogLevel      string `envconfig:"LOG_LEVEL"`
	Lang          string `envconfig:"BOT_LANG"`
	ResPath       string `envconfig:"RES_JSON_PATH"`
	StorageDriver string `envconfig:"STORAGE_DRIVER"`
	StoragePath   string `envconfig:"STORAGE_PATH"`
}

// ApplyEnv overlays environment variables on cfg. Empty variables are ignored.
func ApplyEnv(cfg *Config) error {
	if cfg == nil {
		return nil
	}
	var env envOverrides
	if err := envconfig.Process("", &env); err != nil {
		return fmt.Errorf("env overrides: %w", err)
	}
	setStr := func(dst *string, v string) {
		if v = strings.TrimSpace(v); v != "" {
			*dst = v
		}
	}
	setStr(&cfg.Telegram.Token, env.Token)
	setStr(&cfg.Logging.Level, env.LogLevel)
	setStr(&cfg.Resources.Lang, env.Lang)
	setStr(&cfg.Resources.Path, env.ResPath)
	setStr(&cfg.Storage.Driver, env.StorageDriver)
	setStr(&cfg.Storage.Path, env.StoragePath)
	if env.OwnerID != 0 {
		cfg.Telegram.OwnerID = env.OwnerID
	}
	if env.TargetGroupID != 0 {
		cfg.Archive.ChatID = env.TargetGroupID
	}
	return nil
}
