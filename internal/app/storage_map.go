package app

import (
	"fmt"
	"strings"

	"relaybot/internal/config"
	"relaybot/internal/storage"
)

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	if cfg == nil {
		return storage.Config{}, nil
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	path := strings.TrimSpace(sc.Path)

	switch driver {
	case "", "memory", "mem":
		return storage.Config{Driver: "memory"}, nil
	case "file":
		return storage.Config{Driver: "file", Path: path}, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
		return storage.Config{Driver: "sqlite", Path: path, BusyTimeout: sc.BusyTimeoutOrDefault()}, nil
	default:
		return storage.Config{}, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}
