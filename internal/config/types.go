package config

// Config is the root of config.json / config.yaml.
//
// Unknown keys are rejected on parse so typos surface on reload instead of
// silently falling back to defaults.
type Config struct {
	Telegram   TelegramConfig   `json:"telegram"`
	Archive    ArchiveConfig    `json:"archive"`
	Broadcast  BroadcastConfig  `json:"broadcast"`
	Dispatcher DispatcherConfig `json:"dispatcher"`
	Resources  ResourcesConfig  `json:"resources"`
	Logging    LoggingConfig    `json:"logging"`
	Storage    StorageConfig    `json:"storage"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// OwnerID overrides the persisted owner when non-zero.
	OwnerID  int64  `json:"owner_id,omitempty"`
	GroupLog string `json:"group_log"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout"`
}

// ArchiveConfig points at the chat whose messages feed the search archive.
// A zero ChatID disables capture.
type ArchiveConfig struct {
	ChatID int64 `json:"chat_id"`
	// RequireBotAdmin defaults to true when omitted.
	RequireBotAdmin *bool `json:"require_bot_admin,omitempty"`
}

func (a ArchiveConfig) BotAdminRequired() bool {
	return a.RequireBotAdmin == nil || *a.RequireBotAdmin
}

// BroadcastConfig paces outgoing broadcast copies. RatePerSec <= 0 disables pacing.
type BroadcastConfig struct {
	RatePerSec int `json:"rate_per_sec"`
}

// DispatcherConfig sizes the update worker pool.
//
// Defaults (when fields are omitted/zero):
//   - workers: 4
//   - queue_size: 64 (per worker)
//   - handler_timeout: "30s"
type DispatcherConfig struct {
	Workers        int    `json:"workers,omitempty"`
	QueueSize      int    `json:"queue_size,omitempty"`
	HandlerTimeout string `json:"handler_timeout,omitempty"`
}

// ResourcesConfig locates text catalog overrides. Path is either a .json file
// (RES_JSON_PATH=./res.json) or a directory holding res.<lang>.json.
type ResourcesConfig struct {
	Path string `json:"path,omitempty"`
	Lang string `json:"lang,omitempty"`
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
	ThreadID   int    `json:"thread_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// StorageConfig selects the directory store backend.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./relaybot.db", "busy_timeout": "5s" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
	// CompactSchedule is a cron spec for store compaction (file journal fold, sqlite VACUUM), e.g. "@daily".
	CompactSchedule string `json:"compact_schedule,omitempty"`
}
