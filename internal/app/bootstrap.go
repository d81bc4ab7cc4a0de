package app

import (
	"strconv"
	"strings"

	"relaybot/internal/config"
	"relaybot/internal/relay"
	"relaybot/internal/transport/telegram/router"
	logx "relaybot/pkg/logx"
)

func logConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			ThreadID:   cfg.Logging.Telegram.ThreadID,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

// logTarget parses telegram.group_log; 0 clears the Telegram log sink target.
func logTarget(cfg *config.Config) int64 {
	raw := strings.TrimSpace(cfg.Telegram.GroupLog)
	if raw == "" {
		return 0
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

func engineSettings(cfg *config.Config) relay.Settings {
	if cfg == nil {
		return relay.Settings{RequireBotAdmin: true}
	}
	return relay.Settings{
		OwnerOverride:   cfg.Telegram.OwnerID,
		ArchiveChatID:   cfg.Archive.ChatID,
		RequireBotAdmin: cfg.Archive.BotAdminRequired(),
	}
}

func routerOptions(cfg *config.Config, busy func() string) router.Options {
	return router.Options{
		Workers:   cfg.Dispatcher.WorkersOrDefault(),
		QueueSize: cfg.Dispatcher.QueueSizeOrDefault(),
		Timeout:   cfg.Dispatcher.HandlerTimeoutOrDefault(),
		BusyText:  busy,
	}
}
