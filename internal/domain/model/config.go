package model

import (
	"path/filepath"
	"time"
)

// LogLevel defines logging levels
type LogLevel string

const (
	// LogLevelDebug is the level for debug messages
	LogLevelDebug LogLevel = "debug"
	// LogLevelInfo is the level for informational messages
	LogLevelInfo LogLevel = "info"
	// LogLevelWarn is the level for warning messages
	LogLevelWarn LogLevel = "warn"
	// LogLevelError is the level for error messages
	LogLevelError LogLevel = "error"
)

// Settings is the persisted configuration of the flare CLI
type Settings struct {
	// Port is the default local port when none is given on the command line
	Port int
	// BindAddr is the local host cloudflared forwards to
	BindAddr string
	// Protocol is the scheme of the local service
	Protocol string
	// BinaryPath overrides the cloudflared executable
	BinaryPath string
	// BinDir is the download cache directory
	BinDir string
	// Timeout bounds the wait for the public URL
	Timeout time.Duration
	// GracePeriod is the SIGTERM to SIGKILL delay on stop
	GracePeriod time.Duration
	// Verbose logs cloudflared output
	Verbose bool
	// CloudflaredVersion pins a release tag, or "latest"
	CloudflaredVersion string
	// Checksum is the expected SHA256 of the release artifact
	Checksum string
	// DownloadURL replaces the GitHub releases base URL
	DownloadURL string
	// LogLevel is the logging level (debug, info, warn, error)
	LogLevel LogLevel
	// LogFile is the path to log file (empty for stderr)
	LogFile string
	// EventsAddr is the listen address of the websocket event stream (empty disables it)
	EventsAddr string
}

// NewSettings creates Settings with default values
func NewSettings() *Settings {
	return &Settings{
		BindAddr:           DefaultBindAddr,
		Protocol:           DefaultProtocol,
		BinDir:             DefaultBinDir(),
		Timeout:            DefaultTimeout,
		GracePeriod:        DefaultGracePeriod,
		CloudflaredVersion: DefaultCloudflaredVersion,
		LogLevel:           LogLevelWarn,
	}
}

// TunnelConfig converts the settings into a validated TunnelConfig for port.
// A zero port falls back to Settings.Port.
func (s *Settings) TunnelConfig(port int) (TunnelConfig, error) {
	if port == 0 {
		port = s.Port
	}
	cfg, err := NewTunnelConfig(port,
		WithBindAddr(s.BindAddr),
		WithProtocol(s.Protocol),
		WithBinaryPath(s.BinaryPath),
		WithBinDir(s.BinDir),
		WithTimeout(s.Timeout),
		WithGracePeriod(s.GracePeriod),
		WithVerbose(s.Verbose),
		WithCloudflaredVersion(s.CloudflaredVersion),
		WithChecksum(s.Checksum),
		WithDownloadURL(s.DownloadURL),
	)
	if err != nil {
		return TunnelConfig{}, err
	}
	return cfg.WithDefaults(), nil
}

// DefaultSettingsPath returns the path of the configuration file
func DefaultSettingsPath() string {
	return filepath.Join(DefaultBinDir(), "config.yaml")
}

// Setting keys as they appear in the configuration file, in the
// FLAREDANTIC_* environment and in `flare config set`.
const (
	SettingPort               = "port"
	SettingBindAddr           = "bind_addr"
	SettingProtocol           = "protocol"
	SettingBinaryPath         = "binary_path"
	SettingBinDir             = "bin_dir"
	SettingTimeout            = "timeout"
	SettingGracePeriod        = "grace_period"
	SettingVerbose            = "verbose"
	SettingCloudflaredVersion = "cloudflared_version"
	SettingChecksum           = "checksum"
	SettingDownloadURL        = "download_url"
	SettingLogLevel           = "log_level"
	SettingLogFile            = "log_file"
	SettingEventsAddr         = "events_addr"
)

// SettingKeys lists every setting key in display order
var SettingKeys = []string{
	SettingPort,
	SettingBindAddr,
	SettingProtocol,
	SettingBinaryPath,
	SettingBinDir,
	SettingTimeout,
	SettingGracePeriod,
	SettingVerbose,
	SettingCloudflaredVersion,
	SettingChecksum,
	SettingDownloadURL,
	SettingLogLevel,
	SettingLogFile,
	SettingEventsAddr,
}
