package model

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultBindAddr is the host cloudflared forwards traffic to
	DefaultBindAddr = "localhost"
	// DefaultTimeout bounds how long Start waits for the tunnel URL
	DefaultTimeout = 30 * time.Second
	// DefaultGracePeriod is how long Stop waits after SIGTERM before killing
	DefaultGracePeriod = 5 * time.Second
	// DefaultCloudflaredVersion selects the newest release
	DefaultCloudflaredVersion = "latest"
	// DefaultProtocol is the scheme of the local target URL
	DefaultProtocol = "http"
)

// TunnelState is the lifecycle state of a tunnel handle.
type TunnelState string

const (
	TunnelStateNotStarted TunnelState = "not_started"
	TunnelStateStarting   TunnelState = "starting"
	TunnelStateRunning    TunnelState = "running"
	TunnelStateFailed     TunnelState = "failed"
	TunnelStateStopped    TunnelState = "stopped"
)

// TunnelConfig is the configuration of a single tunnel attempt. Build it
// with NewTunnelConfig; a handle keeps its own copy and never changes it.
type TunnelConfig struct {
	// Port is the local port to expose (1-65535)
	Port int
	// BindAddr is the local host cloudflared forwards to
	BindAddr string
	// Protocol is the scheme of the local service (http or https)
	Protocol string
	// BinaryPath overrides the cloudflared executable
	BinaryPath string
	// BinDir is the cache directory for downloaded binaries
	BinDir string
	// Timeout bounds the wait for the public URL
	Timeout time.Duration
	// GracePeriod is the SIGTERM to SIGKILL delay on stop
	GracePeriod time.Duration
	// Verbose logs cloudflared output and provisioning details
	Verbose bool
	// CloudflaredVersion pins a release tag, or "latest"
	CloudflaredVersion string
	// Checksum is the expected hex SHA256 of the release artifact
	Checksum string
	// DownloadURL replaces the GitHub releases base URL
	DownloadURL string
	// ExtraArgs are passed to `cloudflared tunnel` before --url
	ExtraArgs []string

	// set by WithTimeout and WithGracePeriod so WithDefaults keeps an
	// explicit zero
	timeoutSet bool
	graceSet   bool
}

// ConfigOption customises a TunnelConfig.
type ConfigOption func(*TunnelConfig)

// WithBindAddr sets the local host cloudflared forwards to.
func WithBindAddr(addr string) ConfigOption {
	return func(c *TunnelConfig) { c.BindAddr = addr }
}

// WithProtocol sets the scheme of the local service.
func WithProtocol(protocol string) ConfigOption {
	return func(c *TunnelConfig) { c.Protocol = protocol }
}

// WithBinaryPath uses an existing cloudflared executable.
func WithBinaryPath(path string) ConfigOption {
	return func(c *TunnelConfig) { c.BinaryPath = path }
}

// WithBinDir sets the download cache directory.
func WithBinDir(dir string) ConfigOption {
	return func(c *TunnelConfig) { c.BinDir = dir }
}

// WithTimeout sets the startup timeout. Zero waits for the URL without
// a deadline, leaving cancellation to the caller's context.
func WithTimeout(d time.Duration) ConfigOption {
	return func(c *TunnelConfig) {
		c.Timeout = d
		c.timeoutSet = true
	}
}

// WithGracePeriod sets the stop grace period. Zero sends SIGKILL right
// after SIGTERM.
func WithGracePeriod(d time.Duration) ConfigOption {
	return func(c *TunnelConfig) {
		c.GracePeriod = d
		c.graceSet = true
	}
}

// WithVerbose enables daemon output logging.
func WithVerbose(verbose bool) ConfigOption {
	return func(c *TunnelConfig) { c.Verbose = verbose }
}

// WithCloudflaredVersion pins the cloudflared release.
func WithCloudflaredVersion(version string) ConfigOption {
	return func(c *TunnelConfig) { c.CloudflaredVersion = version }
}

// WithChecksum sets the expected SHA256 of the release artifact.
func WithChecksum(sum string) ConfigOption {
	return func(c *TunnelConfig) { c.Checksum = strings.ToLower(strings.TrimSpace(sum)) }
}

// WithDownloadURL sets an alternate releases base URL (mirrors, tests).
func WithDownloadURL(base string) ConfigOption {
	return func(c *TunnelConfig) { c.DownloadURL = base }
}

// WithExtraArgs appends daemon flags.
func WithExtraArgs(args ...string) ConfigOption {
	return func(c *TunnelConfig) { c.ExtraArgs = append([]string(nil), args...) }
}

// NewTunnelConfig returns a validated TunnelConfig with defaults applied.
func NewTunnelConfig(port int, opts ...ConfigOption) (TunnelConfig, error) {
	c := TunnelConfig{
		Port:               port,
		BindAddr:           DefaultBindAddr,
		Protocol:           DefaultProtocol,
		BinDir:             DefaultBinDir(),
		Timeout:            DefaultTimeout,
		GracePeriod:        DefaultGracePeriod,
		CloudflaredVersion: DefaultCloudflaredVersion,
	}
	for _, opt := range opts {
		opt(&c)
	}
	if err := c.Validate(); err != nil {
		return TunnelConfig{}, err
	}
	return c, nil
}

// WithDefaults fills zero fields of a hand-built config. Timeout and
// GracePeriod stay zero when they were set through their options.
func (c TunnelConfig) WithDefaults() TunnelConfig {
	if c.BindAddr == "" {
		c.BindAddr = DefaultBindAddr
	}
	if c.Protocol == "" {
		c.Protocol = DefaultProtocol
	}
	if c.BinDir == "" {
		c.BinDir = DefaultBinDir()
	}
	if c.Timeout == 0 && !c.timeoutSet {
		c.Timeout = DefaultTimeout
	}
	if c.GracePeriod == 0 && !c.graceSet {
		c.GracePeriod = DefaultGracePeriod
	}
	if c.CloudflaredVersion == "" {
		c.CloudflaredVersion = DefaultCloudflaredVersion
	}
	c.ExtraArgs = append([]string(nil), c.ExtraArgs...)
	return c
}

// Validate checks field ranges.
func (c TunnelConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return &ConfigError{Field: "port", Value: c.Port, Reason: "must be between 1 and 65535"}
	}
	if c.Timeout < 0 {
		return &ConfigError{Field: "timeout", Value: c.Timeout, Reason: "must not be negative"}
	}
	if c.GracePeriod < 0 {
		return &ConfigError{Field: "grace period", Value: c.GracePeriod, Reason: "must not be negative"}
	}
	if strings.ContainsAny(c.BindAddr, "/ ") {
		return &ConfigError{Field: "bind address", Value: c.BindAddr, Reason: "must be a host name or IP"}
	}
	switch c.Protocol {
	case "", "http", "https":
	default:
		return &ConfigError{Field: "protocol", Value: c.Protocol, Reason: "must be http or https"}
	}
	if c.Checksum != "" && len(c.Checksum) != 64 {
		return &ConfigError{Field: "checksum", Value: c.Checksum, Reason: "must be a hex SHA256 digest"}
	}
	return nil
}

// LocalURL is the target cloudflared forwards to, e.g. http://localhost:8080.
func (c TunnelConfig) LocalURL() string {
	host := c.BindAddr
	if host == "" {
		host = DefaultBindAddr
	}
	protocol := c.Protocol
	if protocol == "" {
		protocol = DefaultProtocol
	}
	return fmt.Sprintf("%s://%s", protocol, net.JoinHostPort(host, strconv.Itoa(c.Port)))
}

// DaemonArgs returns the cloudflared argument list for this config.
func (c TunnelConfig) DaemonArgs() []string {
	args := []string{"tunnel", "--no-autoupdate"}
	args = append(args, c.ExtraArgs...)
	return append(args, "--url", c.LocalURL())
}

// DefaultBinDir returns ~/.flaredantic, or a temp dir when there is no home.
func DefaultBinDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "flaredantic")
	}
	return filepath.Join(homeDir, ".flaredantic")
}
