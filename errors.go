package flaredantic

import "github.com/flaredantic/flaredantic-go/internal/domain/model"

// ErrCloudflared is the base of every error this package returns.
var ErrCloudflared = model.ErrCloudflared

// Kinds of failure, each matching ErrCloudflared as well.
var (
	ErrUnsupportedPlatform = model.ErrUnsupportedPlatform
	ErrDownloadFailure     = model.ErrDownloadFailure
	ErrInstallFailure      = model.ErrInstallFailure
	ErrProcessSpawn        = model.ErrProcessSpawn
	ErrUnexpectedExit      = model.ErrUnexpectedExit
	ErrReadinessTimeout    = model.ErrReadinessTimeout
	ErrPrematureExit       = model.ErrPrematureExit
	ErrInvalidConfig       = model.ErrInvalidConfig
	ErrInvalidState        = model.ErrInvalidState
	ErrTunnel              = model.ErrTunnel
)

type (
	// TunnelError is returned by Tunnel.Start and Tunnel.Stop. The
	// underlying cause is reachable with errors.Is and errors.As.
	TunnelError = model.TunnelError
	// DownloadError describes a failed release download.
	DownloadError = model.DownloadError
	// InstallError describes a failure to place cloudflared in the cache
	// directory.
	InstallError = model.InstallError
	// ConfigError describes an invalid Config field.
	ConfigError = model.ConfigError
	// PlatformError names a host platform without a cloudflared release.
	PlatformError = model.PlatformError
	// SpawnError is returned when cloudflared cannot be launched.
	SpawnError = model.SpawnError
	// UnexpectedExitError carries the exit status and last output lines of
	// a daemon that died on its own.
	UnexpectedExitError = model.UnexpectedExitError
	// ReadinessTimeoutError is returned when no URL appeared in time.
	ReadinessTimeoutError = model.ReadinessTimeoutError
	// StateError is returned for operations not allowed in the current state.
	StateError = model.StateError
)
