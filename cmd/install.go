package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/flaredantic/flaredantic-go/internal/domain/model"
	"github.com/flaredantic/flaredantic-go/internal/infrastructure/logger"
	"github.com/spf13/cobra"
)

var installForce bool

// installCmd downloads cloudflared ahead of the first tunnel
var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Download cloudflared into the cache directory",
	Long: `Make sure cloudflared is installed for this platform and print where it is.
Examples:
  flare install
  flare install --cloudflared-version 2024.6.1 --force`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := settingsFromFlags(cmd.Flags())
		if err != nil {
			return err
		}
		// Any valid port will do, install never starts the daemon.
		cfg, err := settings.TunnelConfig(1)
		if err != nil {
			return err
		}
		if Container.Logger.Level() > logger.LevelInfo && LogLevel == "" {
			Container.Logger.SetLevel(string(model.LogLevelInfo))
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		var binary *model.BinaryDescriptor
		if installForce {
			binary, err = Container.Provisioner.Reinstall(ctx, cfg)
		} else {
			binary, err = Container.Provisioner.Ensure(ctx, cfg)
		}
		if err != nil {
			return err
		}

		fmt.Printf("cloudflared: %s\n", binary.Path)
		fmt.Printf("Version:     %s\n", binary.Version)
		fmt.Printf("Platform:    %s\n", binary.Platform)
		fmt.Printf("Source:      %s\n", binary.Source)
		if binary.Digest != "" {
			fmt.Printf("BLAKE3:      %s\n", binary.Digest)
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(installCmd)

	installCmd.Flags().String("bin-dir", "", "Directory cloudflared is downloaded into (default: ~/.flaredantic)")
	installCmd.Flags().String("cloudflared-version", model.DefaultCloudflaredVersion, "cloudflared release to download")
	installCmd.Flags().String("checksum", "", "Expected SHA256 of the downloaded release artifact")
	installCmd.Flags().String("download-url", "", "Base URL of the cloudflared releases")
	installCmd.Flags().BoolVar(&installForce, "force", false, "Download again even when a valid copy is cached")
}
