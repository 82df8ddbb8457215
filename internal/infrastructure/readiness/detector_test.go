package readiness

import (
	"context"
	"errors"
	"io"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/flaredantic/flaredantic-go/internal/domain/model"
	"github.com/flaredantic/flaredantic-go/internal/infrastructure/logger"
)

func newTestDetector(opts ...Option) *Detector {
	return NewDetector(logger.Discard(), opts...)
}

func TestWatchReturnsFirstMatch(t *testing.T) {
	output := strings.Join([]string{
		"2024-09-01T10:00:00Z INF Thank you for trying Cloudflare Tunnel.",
		"2024-09-01T10:00:01Z INF Requesting new quick Tunnel on trycloudflare.com...",
		"Your quick tunnel has been created! Visit it: https://example.trycloudflare.com",
		"https://second.trycloudflare.com",
	}, "\n")

	url, err := newTestDetector().WatchReader(context.Background(), strings.NewReader(output), time.Second)
	if err != nil {
		t.Fatalf("WatchReader: %v", err)
	}
	if url != "https://example.trycloudflare.com" {
		t.Errorf("url = %q", url)
	}
}

func TestWatchMatchesBoxedBanner(t *testing.T) {
	lines := make(chan string, 4)
	lines <- "+--------------------------------------------------------------------------------------------+"
	lines <- "|  https://quiet-river-1234.trycloudflare.com                                                 |"

	url, err := newTestDetector().Watch(context.Background(), lines, time.Second)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	if url != "https://quiet-river-1234.trycloudflare.com" {
		t.Errorf("url = %q", url)
	}
}

func TestWatchPrematureExit(t *testing.T) {
	lines := make(chan string, 2)
	lines <- "ERR failed to request quick Tunnel"
	close(lines)

	start := time.Now()
	_, err := newTestDetector().Watch(context.Background(), lines, time.Minute)
	if time.Since(start) > 5*time.Second {
		t.Fatalf("premature exit took %v, should not wait for the timeout", time.Since(start))
	}

	var premature *model.PrematureExitError
	if !errors.As(err, &premature) {
		t.Fatalf("err = %v, want PrematureExitError", err)
	}
	if !errors.Is(err, model.ErrPrematureExit) || !errors.Is(err, model.ErrCloudflared) {
		t.Errorf("err does not match its sentinels: %v", err)
	}
	if len(premature.Output) != 1 || premature.Output[0] != "ERR failed to request quick Tunnel" {
		t.Errorf("captured output = %v", premature.Output)
	}
}

func TestWatchTimeoutOnSilentStream(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()

	const timeout = 150 * time.Millisecond
	start := time.Now()
	_, err := newTestDetector().WatchReader(context.Background(), r, timeout)
	elapsed := time.Since(start)

	if !errors.Is(err, model.ErrReadinessTimeout) {
		t.Fatalf("err = %v, want readiness timeout", err)
	}
	if elapsed < timeout {
		t.Errorf("timed out after %v, before the configured %v", elapsed, timeout)
	}
}

func TestWatchIgnoresNonMatchingUntilTimeout(t *testing.T) {
	lines := make(chan string, 3)
	lines <- "INF Starting metrics server"
	lines <- "INF see https://developers.cloudflare.com/cloudflare-one"

	_, err := newTestDetector().Watch(context.Background(), lines, 100*time.Millisecond)
	var timeoutErr *model.ReadinessTimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("err = %v, want ReadinessTimeoutError", err)
	}
	if len(timeoutErr.Output) != 2 {
		t.Errorf("captured %d lines, want 2", len(timeoutErr.Output))
	}
}

func TestWatchContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestDetector().Watch(ctx, make(chan string), time.Minute)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestWatchCustomPattern(t *testing.T) {
	lines := make(chan string, 1)
	lines <- "ready at https://tunnel.example.net/"
	d := newTestDetector(WithPattern(regexp.MustCompile(`https://[a-z.]+\.example\.net`)))

	url, err := d.Watch(context.Background(), lines, time.Second)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	if url != "https://tunnel.example.net" {
		t.Errorf("url = %q", url)
	}
}

func TestWatchTailBounded(t *testing.T) {
	lines := make(chan string, 10)
	for i := 0; i < 10; i++ {
		lines <- "noise"
	}
	close(lines)

	_, err := newTestDetector(WithTailSize(4)).Watch(context.Background(), lines, time.Second)
	var premature *model.PrematureExitError
	if !errors.As(err, &premature) {
		t.Fatalf("err = %v", err)
	}
	if len(premature.Output) != 4 {
		t.Errorf("tail kept %d lines, want 4", len(premature.Output))
	}
}
