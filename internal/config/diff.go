package config

import (
	"strings"

	logx "relaybot/pkg/logx"
)

// SummarizeConfigChange returns the changed section names and safe fields for logging.
// Secrets (the bot token) are never included.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	var changed []string
	var attrs []logx.Field

	ot, nt := oldCfg.Telegram, newCfg.Telegram
	if ot.OwnerID != nt.OwnerID || strings.TrimSpace(ot.GroupLog) != strings.TrimSpace(nt.GroupLog) ||
		strings.TrimSpace(ot.PollTimeout) != strings.TrimSpace(nt.PollTimeout) {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.Bool("telegram.owner_override", nt.OwnerID != 0),
			logx.Bool("telegram.group_log_set", strings.TrimSpace(nt.GroupLog) != ""),
			logx.String("telegram.poll_timeout", strings.TrimSpace(nt.PollTimeout)),
		)
	}
	if ot.Token != nt.Token {
		changed = append(changed, "telegram.token")
	}

	if oldCfg.Archive.ChatID != newCfg.Archive.ChatID ||
		oldCfg.Archive.BotAdminRequired() != newCfg.Archive.BotAdminRequired() {
		changed = append(changed, "archive")
		attrs = append(attrs,
			logx.Int64("archive.chat_id", newCfg.Archive.ChatID),
			logx.Bool("archive.require_bot_admin", newCfg.Archive.BotAdminRequired()),
		)
	}

	if oldCfg.Broadcast != newCfg.Broadcast {
		changed = append(changed, "broadcast")
		attrs = append(attrs, logx.Int("broadcast.rate_per_sec", newCfg.Broadcast.RatePerSec))
	}

	if oldCfg.Dispatcher != newCfg.Dispatcher {
		changed = append(changed, "dispatcher")
		attrs = append(attrs,
			logx.Int("dispatcher.workers", newCfg.Dispatcher.WorkersOrDefault()),
			logx.Int("dispatcher.queue_size", newCfg.Dispatcher.QueueSizeOrDefault()),
			logx.Duration("dispatcher.handler_timeout", newCfg.Dispatcher.HandlerTimeoutOrDefault()),
		)
	}

	if oldCfg.Resources != newCfg.Resources {
		changed = append(changed, "resources")
		attrs = append(attrs,
			logx.String("resources.path", newCfg.Resources.Path),
			logx.String("resources.lang", newCfg.Resources.LangOrDefault()),
		)
	}

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logging.telegram_enabled", newCfg.Logging.Telegram.Enabled),
		)
	}

	if oldCfg.Storage != newCfg.Storage {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", newCfg.Storage.Driver),
			logx.String("storage.compact_schedule", newCfg.Storage.CompactSchedule),
		)
	}

	return changed, attrs
}

// RequiresRestart reports changes that only take effect after a restart.
func RequiresRestart(changed []string) []string {
	var out []string
	for _, s := range changed {
		switch s {
		case "telegram.token", "dispatcher", "storage":
			out = append(out, s)
		}
	}
	return out
}
