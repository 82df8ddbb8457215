package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrCloudflared is the base of every error produced by this module.
// errors.Is(err, ErrCloudflared) holds for all of them.
var ErrCloudflared = errors.New("cloudflared error")

// Error kinds. Each one wraps ErrCloudflared.
var (
	ErrUnsupportedPlatform = fmt.Errorf("%w: unsupported platform", ErrCloudflared)
	ErrDownloadFailure     = fmt.Errorf("%w: download failed", ErrCloudflared)
	ErrInstallFailure      = fmt.Errorf("%w: install failed", ErrCloudflared)
	ErrProcessSpawn        = fmt.Errorf("%w: process spawn failed", ErrCloudflared)
	ErrUnexpectedExit      = fmt.Errorf("%w: process exited unexpectedly", ErrCloudflared)
	ErrReadinessTimeout    = fmt.Errorf("%w: readiness timeout", ErrCloudflared)
	ErrPrematureExit       = fmt.Errorf("%w: output closed before tunnel was ready", ErrCloudflared)
	ErrInvalidConfig       = fmt.Errorf("%w: invalid config", ErrCloudflared)
	ErrInvalidState        = fmt.Errorf("%w: invalid state", ErrCloudflared)
	ErrTunnel              = fmt.Errorf("%w: tunnel failed", ErrCloudflared)
)

// ConfigError reports a TunnelConfig field that failed validation.
type ConfigError struct {
	Field  string
	Value  interface{}
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrInvalidConfig }

// PlatformError is returned when no release artifact exists for the host.
type PlatformError struct {
	Platform Platform
}

func (e *PlatformError) Error() string {
	return fmt.Sprintf("no cloudflared release for %s", e.Platform)
}

func (e *PlatformError) Unwrap() error { return ErrUnsupportedPlatform }

// DownloadError describes a failed fetch or an unusable artifact.
type DownloadError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *DownloadError) Error() string {
	var b strings.Builder
	b.WriteString("download ")
	b.WriteString(e.URL)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": HTTP %d", e.StatusCode)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *DownloadError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrDownloadFailure}
	}
	return []error{ErrDownloadFailure, e.Err}
}

// InstallError is returned when a downloaded binary cannot be placed in
// the cache directory.
type InstallError struct {
	Path string
	Err  error
}

func (e *InstallError) Error() string {
	return fmt.Sprintf("install %s: %v", e.Path, e.Err)
}

func (e *InstallError) Unwrap() []error { return []error{ErrInstallFailure, e.Err} }

// SpawnError is returned when the daemon executable cannot be launched.
type SpawnError struct {
	Path string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn %s: %v", e.Path, e.Err)
}

func (e *SpawnError) Unwrap() []error { return []error{ErrProcessSpawn, e.Err} }

// PrematureExitError is returned by the readiness detector when the
// output stream ends without a URL. Output holds the captured tail.
type PrematureExitError struct {
	Output []string
}

func (e *PrematureExitError) Error() string {
	return withOutput("output closed before a tunnel URL appeared", e.Output)
}

func (e *PrematureExitError) Unwrap() error { return ErrPrematureExit }

// ReadinessTimeoutError is returned when no URL appears within Timeout.
type ReadinessTimeoutError struct {
	Timeout time.Duration
	Output  []string
}

func (e *ReadinessTimeoutError) Error() string {
	return withOutput(fmt.Sprintf("no tunnel URL within %s", e.Timeout), e.Output)
}

func (e *ReadinessTimeoutError) Unwrap() error { return ErrReadinessTimeout }

// UnexpectedExitError is returned when the daemon terminates before
// readiness was confirmed.
type UnexpectedExitError struct {
	PID      int
	ExitCode int
	Output   []string
	Err      error
}

func (e *UnexpectedExitError) Error() string {
	return withOutput(fmt.Sprintf("cloudflared (pid %d) exited with code %d", e.PID, e.ExitCode), e.Output)
}

func (e *UnexpectedExitError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrUnexpectedExit}
	}
	return []error{ErrUnexpectedExit, e.Err}
}

// StateError is returned when an operation is not allowed in the
// current lifecycle state.
type StateError struct {
	Op    string
	State TunnelState
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s tunnel in state %s", e.Op, e.State)
}

func (e *StateError) Unwrap() error { return ErrInvalidState }

// TunnelError is the unified failure returned by a tunnel handle. The
// underlying cause stays reachable through errors.Is and errors.As.
type TunnelError struct {
	Op  string
	Err error
}

func (e *TunnelError) Error() string {
	return fmt.Sprintf("tunnel %s: %v", e.Op, e.Err)
}

func (e *TunnelError) Unwrap() []error { return []error{ErrTunnel, e.Err} }

func withOutput(msg string, output []string) string {
	if len(output) == 0 {
		return msg
	}
	return msg + "\n--- cloudflared output ---\n" + strings.Join(output, "\n")
}
