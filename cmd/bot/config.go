package main

import (
	"errors"

	"relaybot/internal/config"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the configuration",
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Parse and validate the config file (env overrides applied)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.NewConfigManager(cfgPath).Parse()
		if err != nil {
			return err
		}
		if err := config.Validate(cfg); err != nil {
			cmd.Println(color.RedString("✗ %s is invalid:", cfgPath))
			for _, e := range unjoin(err) {
				cmd.Println("  -", e)
			}
			return errors.New("config check failed")
		}
		cmd.Println(color.GreenString("✓ %s is valid", cfgPath))
		cmd.Printf("  storage: %s  archive chat: %d  owner override: %d\n",
			orDefault(cfg.Storage.Driver, "memory"), cfg.Archive.ChatID, cfg.Telegram.OwnerID)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configCheckCmd)
}

// unjoin splits an errors.Join result back into its parts.
func unjoin(err error) []error {
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		return j.Unwrap()
	}
	return []error{err}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
