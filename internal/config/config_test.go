package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"relaybot/internal/texts"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

func TestParseYAML(t *testing.T) {
	p := writeFile(t, t.TempDir(), "config.yaml", `
telegram:
  token: "abc"
  owner_id: 42
  poll_timeout: 15s
archive:
  chat_id: -1001
  require_bot_admin: false
broadcast:
  rate_per_sec: 20
dispatcher:
  workers: 2
storage:
  driver: sqlite
  path: ./relay.db
`)
	cfg, err := NewConfigManager(p).Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Telegram.Token != "abc" || cfg.Telegram.OwnerID != 42 {
		t.Fatalf("telegram = %+v", cfg.Telegram)
	}
	if cfg.Telegram.PollTimeoutOrDefault() != 15*time.Second {
		t.Fatalf("poll timeout = %v", cfg.Telegram.PollTimeoutOrDefault())
	}
	if cfg.Archive.ChatID != -1001 || cfg.Archive.BotAdminRequired() {
		t.Fatalf("archive = %+v", cfg.Archive)
	}
	if cfg.Dispatcher.WorkersOrDefault() != 2 || cfg.Dispatcher.QueueSizeOrDefault() != DefaultQueueSize {
		t.Fatalf("dispatcher = %+v", cfg.Dispatcher)
	}
	if cfg.Storage.Driver != "sqlite" {
		t.Fatalf("storage = %+v", cfg.Storage)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	p := writeFile(t, t.TempDir(), "config.json", `{"telegram":{"token":"x"},"plugins":{}}`)
	if _, err := NewConfigManager(p).Parse(); err == nil {
		t.Fatalf("expected unknown field error")
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	p := writeFile(t, t.TempDir(), "config.json", `{"telegram":{"token":"x"}}{}`)
	if _, err := NewConfigManager(p).Parse(); err == nil {
		t.Fatalf("expected trailing data error")
	}
}

func TestEnvOverridesWin(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "from-env")
	t.Setenv("BOT_OWNER_ID", "7")
	t.Setenv("TARGET_GROUP_ID", "-100123")
	t.Setenv("BOT_LANG", "id")
	t.Setenv("STORAGE_DRIVER", "file")

	p := writeFile(t, t.TempDir(), "config.json", `{"telegram":{"token":"from-file","owner_id":1},"storage":{"driver":"memory"}}`)
	cfg, err := NewConfigManager(p).Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Telegram.Token != "from-env" || cfg.Telegram.OwnerID != 7 {
		t.Fatalf("telegram = %+v", cfg.Telegram)
	}
	if cfg.Archive.ChatID != -100123 {
		t.Fatalf("archive chat = %d", cfg.Archive.ChatID)
	}
	if cfg.Resources.LangOrDefault() != "id" || cfg.Storage.Driver != "file" {
		t.Fatalf("resources=%+v storage=%+v", cfg.Resources, cfg.Storage)
	}
}

func TestEnvResourceFile(t *testing.T) {
	dir := t.TempDir()
	res := writeFile(t, dir, "res.json", `{"start_greeting":"Hai!"}`)
	t.Setenv("RES_JSON_PATH", res)

	p := writeFile(t, dir, "config.json", `{"telegram":{"token":"x"}}`)
	cfg, err := NewConfigManager(p).Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	tx, err := texts.Load(cfg.Resources.Path, cfg.Resources.LangOrDefault())
	if err != nil {
		t.Fatalf("texts.Load(%q): %v", cfg.Resources.Path, err)
	}
	if got := tx.Get("start_greeting"); got != "Hai!" {
		t.Fatalf("start_greeting = %q, want override from RES_JSON_PATH", got)
	}
}

func TestEnvOverrideInvalidNumber(t *testing.T) {
	t.Setenv("BOT_OWNER_ID", "not-a-number")
	p := writeFile(t, t.TempDir(), "config.json", `{"telegram":{"token":"x"}}`)
	if _, err := NewConfigManager(p).Parse(); err == nil {
		t.Fatalf("expected env parse error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "ok", cfg: Config{Telegram: TelegramConfig{Token: "x"}}},
		{name: "missing token", cfg: Config{}, wantErr: true},
		{name: "bad duration", cfg: Config{Telegram: TelegramConfig{Token: "x", PollTimeout: "soon"}}, wantErr: true},
		{name: "bad driver", cfg: Config{Telegram: TelegramConfig{Token: "x"}, Storage: StorageConfig{Driver: "redis"}}, wantErr: true},
		{name: "bad cron", cfg: Config{Telegram: TelegramConfig{Token: "x"}, Storage: StorageConfig{CompactSchedule: "every day"}}, wantErr: true},
		{name: "good cron", cfg: Config{Telegram: TelegramConfig{Token: "x"}, Storage: StorageConfig{Driver: "file", CompactSchedule: "@daily"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(&tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
	if err := Validate(&Config{}); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("Validate() = %v, want ErrMissingToken", err)
	}
}

func TestReloadPublishesOnlyChanges(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "config.json", `{"telegram":{"token":"x"}}`)
	m := NewConfigManager(p)
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	if m.reload(context.Background()) {
		t.Fatalf("unchanged config should not publish")
	}

	writeFile(t, dir, "config.json", `{"telegram":{"token":"x"},"broadcast":{"rate_per_sec":5}}`)
	if !m.reload(context.Background()) {
		t.Fatalf("changed config should publish")
	}
	select {
	case cfg := <-ch:
		if cfg.Broadcast.RatePerSec != 5 {
			t.Fatalf("published = %+v", cfg.Broadcast)
		}
	default:
		t.Fatalf("nothing published")
	}

	m.SetValidator(func(ctx context.Context, cfg *Config) error { return errors.New("nope") })
	writeFile(t, dir, "config.json", `{"telegram":{"token":"x"},"broadcast":{"rate_per_sec":9}}`)
	if m.reload(context.Background()) {
		t.Fatalf("rejected config should not publish")
	}
	if got := m.Get().Broadcast.RatePerSec; got != 5 {
		t.Fatalf("committed rate = %d, want 5", got)
	}
}

func TestSummarizeConfigChange(t *testing.T) {
	oldCfg := &Config{Telegram: TelegramConfig{Token: "a"}}
	newCfg := &Config{Telegram: TelegramConfig{Token: "b"}, Broadcast: BroadcastConfig{RatePerSec: 3}}
	changed, _ := SummarizeConfigChange(oldCfg, newCfg)
	if !slices.Contains(changed, "broadcast") || !slices.Contains(changed, "telegram.token") {
		t.Fatalf("changed = %v", changed)
	}
	if got := RequiresRestart(changed); !slices.Equal(got, []string{"telegram.token"}) {
		t.Fatalf("RequiresRestart = %v", got)
	}
}
