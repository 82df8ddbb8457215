package flaredantic

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/flaredantic/flaredantic-go/internal/infrastructure/process"
	"github.com/flaredantic/flaredantic-go/internal/testutil"
)

func TestNewConfigPortRange(t *testing.T) {
	tests := []struct {
		port    int
		wantErr bool
	}{
		{0, true},
		{-1, true},
		{1, false},
		{8080, false},
		{65535, false},
		{65536, true},
	}
	for _, tt := range tests {
		cfg, err := NewConfig(tt.port)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidConfig) || !errors.Is(err, ErrCloudflared) {
				t.Errorf("NewConfig(%d) err = %v, want invalid config", tt.port, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("NewConfig(%d): %v", tt.port, err)
			continue
		}
		if cfg.Port != tt.port || cfg.BindAddr != "localhost" || cfg.Timeout != 30*time.Second {
			t.Errorf("NewConfig(%d) = %+v", tt.port, cfg)
		}
	}
}

func fakeConfig(t *testing.T, script string, opts ...ConfigOption) Config {
	t.Helper()
	opts = append([]ConfigOption{
		WithBinaryPath(testutil.FakeDaemon(t, script)),
		WithBinDir(t.TempDir()),
		WithTimeout(5 * time.Second),
	}, opts...)
	cfg, err := NewConfig(8080, opts...)
	if err != nil {
		t.Fatalf("NewConfig: %v", err)
	}
	return cfg
}

func TestTunnelStartStop(t *testing.T) {
	tun, err := New(fakeConfig(t, testutil.QuickTunnelScript), WithLogOutput(io.Discard))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	url, err := tun.Start(context.Background())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if url != "https://fake-quick-tunnel.trycloudflare.com" {
		t.Errorf("url = %q", url)
	}
	if tun.State() != StateRunning {
		t.Errorf("state = %s", tun.State())
	}
	pid := tun.PID()

	if err := tun.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := tun.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
	if process.Alive(pid) {
		t.Errorf("pid %d alive after Stop", pid)
	}
	if _, err := tun.Start(context.Background()); !errors.Is(err, ErrInvalidState) {
		t.Errorf("restart err = %v, want invalid state", err)
	}
}

func TestRunTerminatesOnError(t *testing.T) {
	boom := errors.New("boom")
	var pid int
	err := Run(context.Background(), fakeConfig(t, testutil.QuickTunnelScript), func(ctx context.Context, tun *Tunnel) error {
		pid = tun.PID()
		if tun.URL() == "" {
			t.Error("URL empty inside Run")
		}
		return boom
	}, WithLogOutput(io.Discard))

	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want fn error", err)
	}
	if pid == 0 || process.Alive(pid) {
		t.Errorf("pid %d alive after Run", pid)
	}
}

func TestRunSkipsFnWhenStartFails(t *testing.T) {
	called := false
	err := Run(context.Background(), fakeConfig(t, testutil.CrashScript), func(ctx context.Context, tun *Tunnel) error {
		called = true
		return nil
	}, WithLogOutput(io.Discard))

	if called {
		t.Error("fn called after failed start")
	}
	var tunnelErr *TunnelError
	if !errors.As(err, &tunnelErr) || !errors.Is(err, ErrUnexpectedExit) {
		t.Errorf("err = %v, want TunnelError wrapping an unexpected exit", err)
	}
}

// lockedBuffer is written by tunnel goroutines while the test reads it.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestVerboseLogsDaemonOutput(t *testing.T) {
	var buf lockedBuffer
	cfg := fakeConfig(t, testutil.QuickTunnelScript, WithVerbose(true))
	err := Run(context.Background(), cfg, func(ctx context.Context, tun *Tunnel) error {
		return nil
	}, WithLogOutput(&buf))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(buf.String(), "Tunnel ready at https://fake-quick-tunnel.trycloudflare.com") {
		t.Errorf("verbose log missing ready line:\n%s", buf.String())
	}
}

func TestEnsureBinaryLogsToOutput(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	missing := filepath.Join(t.TempDir(), "missing-cloudflared")
	cfg, err := NewConfig(8080,
		WithBinaryPath(missing),
		WithBinDir(t.TempDir()),
		WithDownloadURL(srv.URL),
	)
	if err != nil {
		t.Fatalf("NewConfig: %v", err)
	}

	var buf lockedBuffer
	_, err = EnsureBinary(context.Background(), cfg, WithLogOutput(&buf), WithLogLevel("debug"))
	if !errors.Is(err, ErrDownloadFailure) {
		t.Errorf("err = %v, want download failure", err)
	}
	out := buf.String()
	if !strings.Contains(out, "WARN download: Ignoring cloudflared override "+missing) {
		t.Errorf("override warning missing from log output:\n%s", out)
	}
	if !strings.Contains(out, "download: Downloading cloudflared from "+srv.URL) {
		t.Errorf("download line missing from log output:\n%s", out)
	}
}

func TestVerboseEnablesDownloadLogs(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	cfg, err := NewConfig(8080, WithBinDir(t.TempDir()), WithDownloadURL(srv.URL), WithVerbose(true))
	if err != nil {
		t.Fatalf("NewConfig: %v", err)
	}
	var buf lockedBuffer
	if _, err := EnsureBinary(context.Background(), cfg, WithLogOutput(&buf)); err == nil {
		t.Fatal("EnsureBinary succeeded against an empty release server")
	}
	if !strings.Contains(buf.String(), "Downloading cloudflared from") {
		t.Errorf("verbose config did not log the download:\n%s", buf.String())
	}
}
