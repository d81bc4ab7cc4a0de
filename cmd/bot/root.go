package main

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// version can be overridden at build time via -ldflags "-X main.version=1.2.3".
var version = "dev"

var cfgPath string

var rootCmd = &cobra.Command{
	Use:           "relaybot",
	Short:         "Telegram relay assistant: archive search, membership gate and owner broadcasts",
	Long:          color.CyanString("relaybot") + " relays an archived channel to its members and lets the owner manage admins, mandatory chats and broadcasts.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println("relaybot", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "./config.json", "path to config json/yaml")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
