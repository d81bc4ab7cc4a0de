package config

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultPollTimeout    = 10 * time.Second
	DefaultWorkers        = 4
	DefaultQueueSize      = 64
	DefaultHandlerTimeout = 30 * time.Second
	DefaultBusyTimeout    = 5 * time.Second
	DefaultLang           = "en"
)

// ParseDurationField parses a Go duration string. Empty input yields 0.
func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

// ParseDurationOrDefault is ParseDurationField with def for empty or zero values.
func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}

func (t TelegramConfig) PollTimeoutOrDefault() time.Duration {
	d, err := ParseDurationOrDefault("telegram.poll_timeout", t.PollTimeout, DefaultPollTimeout)
	if err != nil {
		return DefaultPollTimeout
	}
	return d
}

func (d DispatcherConfig) WorkersOrDefault() int {
	if d.Workers <= 0 {
		return DefaultWorkers
	}
	return d.Workers
}

func (d DispatcherConfig) QueueSizeOrDefault() int {
	if d.QueueSize <= 0 {
		return DefaultQueueSize
	}
	return d.QueueSize
}

func (d DispatcherConfig) HandlerTimeoutOrDefault() time.Duration {
	v, err := ParseDurationOrDefault("dispatcher.handler_timeout", d.HandlerTimeout, DefaultHandlerTimeout)
	if err != nil {
		return DefaultHandlerTimeout
	}
	return v
}

func (r ResourcesConfig) LangOrDefault() string {
	if l := strings.ToLower(strings.TrimSpace(r.Lang)); l != "" {
		return l
	}
	return DefaultLang
}

func (s StorageConfig) BusyTimeoutOrDefault() time.Duration {
	v, err := ParseDurationOrDefault("storage.busy_timeout", s.BusyTimeout, DefaultBusyTimeout)
	if err != nil {
		return DefaultBusyTimeout
	}
	return v
}
