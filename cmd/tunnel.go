package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/flaredantic/flaredantic-go/internal/domain/model"
	"github.com/flaredantic/flaredantic-go/internal/infrastructure/logger"
	"github.com/flaredantic/flaredantic-go/internal/infrastructure/transport"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// tunnelFlagKeys maps tunnel flags onto the settings they override
var tunnelFlagKeys = map[string]string{
	"port":                model.SettingPort,
	"bind":                model.SettingBindAddr,
	"protocol":            model.SettingProtocol,
	"timeout":             model.SettingTimeout,
	"grace-period":        model.SettingGracePeriod,
	"verbose":             model.SettingVerbose,
	"bin-dir":             model.SettingBinDir,
	"binary":              model.SettingBinaryPath,
	"cloudflared-version": model.SettingCloudflaredVersion,
	"checksum":            model.SettingChecksum,
	"download-url":        model.SettingDownloadURL,
	"events-addr":         model.SettingEventsAddr,
}

// tunnelCmd is the command to create a quick tunnel
var tunnelCmd = &cobra.Command{
	Use:   "tunnel",
	Short: "Expose a local port through a quick tunnel",
	Long: `Start cloudflared for a local port, print the public URL and keep the
tunnel up until interrupted or until cloudflared exits.
Examples:
  flare tunnel -p 8080
  flare tunnel --port 3000 --timeout 1m --verbose
  flare tunnel -p 8443 --protocol https --events-addr 127.0.0.1:7070`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := settingsFromFlags(cmd.Flags())
		if err != nil {
			return err
		}
		if settings.Port == 0 {
			return fmt.Errorf("a local port is required: use --port or `flare config set port <port>`")
		}
		cfg, err := settings.TunnelConfig(0)
		if err != nil {
			return err
		}
		if cfg.Verbose && LogLevel == "" && Container.Logger.Level() > logger.LevelInfo {
			Container.Logger.SetLevel(string(model.LogLevelInfo))
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if settings.EventsAddr != "" {
			bound, err := Container.EventHub.Listen(settings.EventsAddr)
			if err != nil {
				return err
			}
			fmt.Printf("Event stream: ws://%s%s\n", bound, transport.EventsPath)
		}

		tunnel, err := Container.TunnelService.NewTunnel(cfg)
		if err != nil {
			return err
		}
		defer tunnel.Stop()

		fmt.Printf("Starting tunnel to %s ...\n", cfg.LocalURL())
		url, err := tunnel.Start(ctx)
		if err != nil {
			return err
		}

		fmt.Println("===================================================")
		fmt.Println("Tunnel is ready")
		fmt.Printf("Public URL: %s\n", url)
		fmt.Printf("Forwarding: %s\n", cfg.LocalURL())
		fmt.Println("===================================================")
		fmt.Println("Press Ctrl+C to stop")

		select {
		case <-ctx.Done():
			fmt.Println("\nStopping tunnel...")
		case <-tunnel.Done():
		}

		if err := tunnel.Stop(); err != nil {
			return err
		}
		return tunnel.Err()
	},
}

// settingsFromFlags overlays explicitly set flags on the loaded settings
func settingsFromFlags(flags *pflag.FlagSet) (*model.Settings, error) {
	settings := *Container.Settings
	var err error
	flags.Visit(func(f *pflag.Flag) {
		key, ok := tunnelFlagKeys[f.Name]
		if !ok || err != nil {
			return
		}
		err = Container.ConfigService.Set(&settings, key, f.Value.String())
	})
	return &settings, err
}

func init() {
	RootCmd.AddCommand(tunnelCmd)

	tunnelCmd.Flags().IntP("port", "p", 0, "Local port to expose")
	tunnelCmd.Flags().String("bind", model.DefaultBindAddr, "Local host cloudflared forwards to")
	tunnelCmd.Flags().String("protocol", model.DefaultProtocol, "Scheme of the local service (http or https)")
	tunnelCmd.Flags().Duration("timeout", model.DefaultTimeout, "How long to wait for the public URL")
	tunnelCmd.Flags().Duration("grace-period", model.DefaultGracePeriod, "How long to wait after SIGTERM before killing cloudflared")
	tunnelCmd.Flags().BoolP("verbose", "v", false, "Log cloudflared output")
	tunnelCmd.Flags().String("bin-dir", "", "Directory cloudflared is downloaded into (default: ~/.flaredantic)")
	tunnelCmd.Flags().String("binary", "", "Use this cloudflared executable instead of downloading one")
	tunnelCmd.Flags().String("cloudflared-version", model.DefaultCloudflaredVersion, "cloudflared release to download")
	tunnelCmd.Flags().String("checksum", "", "Expected SHA256 of the downloaded release artifact")
	tunnelCmd.Flags().String("download-url", "", "Base URL of the cloudflared releases")
	tunnelCmd.Flags().String("events-addr", "", "Serve tunnel events over websocket on this address")
}
