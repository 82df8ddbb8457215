package process

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/flaredantic/flaredantic-go/internal/domain/model"
	"github.com/flaredantic/flaredantic-go/internal/infrastructure/logger"
	"github.com/flaredantic/flaredantic-go/internal/testutil"
)

func newTestSupervisor() *Supervisor {
	return NewSupervisor(logger.Discard(), nil)
}

func spawn(t *testing.T, s *Supervisor, script string) *SupervisedProcess {
	t.Helper()
	proc, err := s.Spawn(context.Background(), testutil.FakeDaemon(t, script), []string{"tunnel", "--url", "http://localhost:8080"})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	p := proc.(*SupervisedProcess)
	t.Cleanup(func() { s.Terminate(p, 0) })
	return p
}

func TestSpawnStreamsCombinedOutput(t *testing.T) {
	s := newTestSupervisor()
	p := spawn(t, s, testutil.QuickTunnelScript)

	if p.State() != model.ProcessRunning {
		t.Fatalf("state = %s, want running", p.State())
	}
	if p.PID() <= 0 || !Alive(p.PID()) {
		t.Fatalf("pid %d is not alive", p.PID())
	}

	var got []string
	timeout := time.After(5 * time.Second)
	for len(got) < 4 {
		select {
		case line := <-p.Lines():
			got = append(got, line)
		case <-timeout:
			t.Fatalf("read %d lines before timing out: %v", len(got), got)
		}
	}
	if !strings.Contains(got[2], "https://fake-quick-tunnel.trycloudflare.com") {
		t.Errorf("third line = %q", got[2])
	}
	if !strings.Contains(got[3], "connIndex=0") {
		t.Errorf("stdout line missing: %q", got[3])
	}
	if tail := p.Tail(); len(tail) != 4 {
		t.Errorf("tail = %v", tail)
	}
}

func TestTerminateGraceful(t *testing.T) {
	s := newTestSupervisor()
	p := spawn(t, s, testutil.QuickTunnelScript)
	pid := p.PID()

	if err := s.Terminate(p, 5*time.Second); err != nil {
		t.Fatalf("Terminate: %v", err)
	}
	testutil.RequireClosed(t, p.Done(), time.Second, "process exit")
	if p.State() != model.ProcessStopped {
		t.Errorf("state = %s, want stopped", p.State())
	}
	if Alive(pid) {
		t.Errorf("pid %d still alive after Terminate", pid)
	}
}

func TestTerminateKillsAfterGrace(t *testing.T) {
	s := newTestSupervisor()
	p := spawn(t, s, testutil.StubbornScript)

	select {
	case <-p.Lines():
	case <-time.After(5 * time.Second):
		t.Fatal("stubborn daemon printed nothing")
	}

	const grace = 200 * time.Millisecond
	start := time.Now()
	if err := s.Terminate(p, grace); err != nil {
		t.Fatalf("Terminate: %v", err)
	}
	if elapsed := time.Since(start); elapsed < grace {
		t.Errorf("killed after %v, before the %v grace period", elapsed, grace)
	}
	if Alive(p.PID()) {
		t.Errorf("pid %d survived SIGKILL", p.PID())
	}
	if p.State() != model.ProcessStopped {
		t.Errorf("state = %s, want stopped", p.State())
	}
}

func TestTerminateIsIdempotent(t *testing.T) {
	s := newTestSupervisor()
	p := spawn(t, s, testutil.QuickTunnelScript)

	for i := 0; i < 3; i++ {
		if err := s.Terminate(p, time.Second); err != nil {
			t.Fatalf("Terminate #%d: %v", i+1, err)
		}
	}
}

func TestUnexpectedExitMarksFailed(t *testing.T) {
	s := newTestSupervisor()
	p := spawn(t, s, testutil.CrashScript)

	var lines []string
	for line := range p.Lines() {
		lines = append(lines, line)
	}
	testutil.RequireClosed(t, p.Done(), 5*time.Second, "process exit")

	if p.State() != model.ProcessFailed {
		t.Errorf("state = %s, want failed", p.State())
	}
	if p.ExitCode() != 3 {
		t.Errorf("exit code = %d, want 3", p.ExitCode())
	}
	if len(lines) != 1 || !strings.Contains(lines[0], "429") {
		t.Errorf("lines = %v", lines)
	}
	if err := s.Terminate(p, time.Second); err != nil {
		t.Errorf("Terminate after exit: %v", err)
	}
}

func TestSpawnMissingBinary(t *testing.T) {
	s := newTestSupervisor()
	_, err := s.Spawn(context.Background(), filepath.Join(t.TempDir(), "missing"), nil)

	var spawnErr *model.SpawnError
	if !errors.As(err, &spawnErr) {
		t.Fatalf("err = %v, want SpawnError", err)
	}
	if !errors.Is(err, model.ErrProcessSpawn) || !errors.Is(err, model.ErrCloudflared) {
		t.Errorf("err does not match its sentinels: %v", err)
	}
}

func TestSpawnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestSupervisor().Spawn(ctx, "cloudflared", nil)
	if !errors.Is(err, context.Canceled) || !errors.Is(err, model.ErrProcessSpawn) {
		t.Errorf("err = %v", err)
	}
}
