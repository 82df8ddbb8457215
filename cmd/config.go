package cmd

import (
	"fmt"
	"strings"

	"github.com/flaredantic/flaredantic-go/internal/domain/model"
	"github.com/spf13/cobra"
)

// configCmd is the command to manage configuration
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `Manage flare defaults stored in the configuration file.`,
}

// configShowCmd is the command to display configuration
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show configuration",
	Long:  `Display the effective configuration, including FLAREDANTIC_* environment overrides.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Configuration (%s):\n", Container.ConfigPath)
		for _, kv := range Container.ConfigService.Values(Container.Settings) {
			fmt.Printf("  %-20s %s\n", kv[0]+":", kv[1])
		}
	},
}

// configSetCmd is the command to set configuration
var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set configuration",
	Long: `Set a configuration value.
Keys: ` + strings.Join(model.SettingKeys, ", ") + `
Examples:
  flare config set port 8080
  flare config set timeout 1m
  flare config set cloudflared_version 2024.6.1
  flare config set log_level info`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := Container.ConfigService.Set(Container.Settings, key, value); err != nil {
			return err
		}
		if err := Container.ConfigService.SaveConfig(Container.Settings, Container.ConfigPath); err != nil {
			return err
		}

		fmt.Printf("Configuration %s successfully changed to %s\n", key, value)
		return nil
	},
}

// configPathCmd prints the configuration file location
var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration file path",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(Container.ConfigPath)
	},
}

func init() {
	RootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configPathCmd)
}
