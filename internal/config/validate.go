package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

var ErrMissingToken = errors.New("telegram.token is required")

// Validate checks values a running bot cannot recover from.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		errs = append(errs, ErrMissingToken)
	}
	if cfg.Telegram.OwnerID < 0 {
		errs = append(errs, fmt.Errorf("telegram.owner_id must be positive"))
	}
	if _, err := ParseDurationField("telegram.poll_timeout", cfg.Telegram.PollTimeout); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseDurationField("dispatcher.handler_timeout", cfg.Dispatcher.HandlerTimeout); err != nil {
		errs = append(errs, err)
	}
	if cfg.Dispatcher.Workers < 0 || cfg.Dispatcher.QueueSize < 0 {
		errs = append(errs, fmt.Errorf("dispatcher: workers and queue_size must be >= 0"))
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
	case "", "memory", "mem", "file", "sqlite", "sqlite3":
	default:
		errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", cfg.Storage.Driver))
	}
	if _, err := ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout); err != nil {
		errs = append(errs, err)
	}
	if spec := strings.TrimSpace(cfg.Storage.CompactSchedule); spec != "" {
		if _, err := cron.ParseStandard(spec); err != nil {
			errs = append(errs, fmt.Errorf("storage.compact_schedule: %w", err))
		}
	}
	return errors.Join(errs...)
}
