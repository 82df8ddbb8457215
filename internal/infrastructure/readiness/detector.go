// Package readiness detects the public URL announced by cloudflared.
package readiness

import (
	"context"
	"io"
	"regexp"
	"time"

	"github.com/flaredantic/flaredantic-go/internal/domain/model"
	"github.com/flaredantic/flaredantic-go/internal/domain/port"
	"github.com/flaredantic/flaredantic-go/internal/infrastructure/stream"
)

// QuickTunnelPattern matches the URL cloudflared prints for a quick tunnel.
var QuickTunnelPattern = regexp.MustCompile(`https://[a-zA-Z0-9-]+\.trycloudflare\.com`)

// Detector implements port.ReadinessDetector with a fixed pattern.
type Detector struct {
	pattern  *regexp.Regexp
	tailSize int
	logger   port.Logger
}

// Option configures a Detector.
type Option func(*Detector)

// WithPattern replaces QuickTunnelPattern.
func WithPattern(pattern *regexp.Regexp) Option {
	return func(d *Detector) { d.pattern = pattern }
}

// WithTailSize sets how many lines are kept for error diagnostics.
func WithTailSize(n int) Option {
	return func(d *Detector) { d.tailSize = n }
}

// NewDetector creates a Detector.
func NewDetector(logger port.Logger, opts ...Option) *Detector {
	d := &Detector{
		pattern:  QuickTunnelPattern,
		tailSize: stream.DefaultTailSize,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Watch consumes lines until one matches, the channel closes, the timeout
// expires or ctx is done, whichever happens first. A non-positive timeout
// disables the deadline.
func (d *Detector) Watch(ctx context.Context, lines <-chan string, timeout time.Duration) (string, error) {
	tail := stream.NewTail(d.tailSize)

	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return "", &model.PrematureExitError{Output: tail.Lines()}
			}
			tail.Add(line)
			if url := d.pattern.FindString(line); url != "" {
				d.logger.Debug("Tunnel URL detected: %s", url)
				return url, nil
			}
		case <-deadline:
			return "", &model.ReadinessTimeoutError{Timeout: timeout, Output: tail.Lines()}
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

// WatchReader is Watch over a raw stream.
func (d *Detector) WatchReader(ctx context.Context, r io.Reader, timeout time.Duration) (string, error) {
	stop := make(chan struct{})
	defer close(stop)
	return d.Watch(ctx, stream.ScanLines(r, stop), timeout)
}

var _ port.ReadinessDetector = (*Detector)(nil)
