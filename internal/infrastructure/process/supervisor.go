// Package process spawns and supervises the cloudflared daemon.
package process

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/flaredantic/flaredantic-go/internal/domain/model"
	"github.com/flaredantic/flaredantic-go/internal/domain/port"
	"github.com/flaredantic/flaredantic-go/internal/infrastructure/stream"
)

// killWait bounds the wait for exit after SIGKILL.
const killWait = 5 * time.Second

// Supervisor implements port.ProcessSupervisor.
type Supervisor struct {
	logger   port.Logger
	tailSize int
	env      []string
}

// NewSupervisor creates a Supervisor. env, when non-nil, replaces the
// inherited environment of spawned processes.
func NewSupervisor(logger port.Logger, env []string) *Supervisor {
	return &Supervisor{
		logger:   logger,
		tailSize: stream.DefaultTailSize,
		env:      env,
	}
}

// SupervisedProcess is a running daemon. Its combined output is delivered
// on Lines; the last lines are also kept in a bounded tail.
type SupervisedProcess struct {
	cmd  *exec.Cmd
	pid  int
	path string

	mu          sync.Mutex
	state       model.ProcessState
	terminating bool
	exitCode    int
	waitErr     error

	lines       chan string
	tail        *stream.Tail
	done        chan struct{}
	released    chan struct{}
	releaseOnce sync.Once
	terminateMu sync.Mutex
}

// Spawn starts binaryPath with args in its own process group. stdout and
// stderr share one pipe so Lines sees them interleaved as printed.
func (s *Supervisor) Spawn(ctx context.Context, binaryPath string, args []string) (port.Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, &model.SpawnError{Path: binaryPath, Err: err}
	}

	r, w, err := os.Pipe()
	if err != nil {
		return nil, &model.SpawnError{Path: binaryPath, Err: fmt.Errorf("creating output pipe: %w", err)}
	}

	cmd := exec.Command(binaryPath, args...)
	cmd.Stdout = w
	cmd.Stderr = w
	cmd.SysProcAttr = newSysProcAttr()
	if s.env != nil {
		cmd.Env = s.env
	}

	s.logger.Debug("Starting %s %v", binaryPath, args)
	if err := cmd.Start(); err != nil {
		r.Close()
		w.Close()
		return nil, &model.SpawnError{Path: binaryPath, Err: err}
	}
	// The child holds its own copy; closing ours lets the reader see EOF.
	w.Close()

	p := &SupervisedProcess{
		cmd:      cmd,
		pid:      cmd.Process.Pid,
		path:     binaryPath,
		state:    model.ProcessRunning,
		exitCode: -1,
		lines:    make(chan string, 64),
		tail:     stream.NewTail(s.tailSize),
		done:     make(chan struct{}),
		released: make(chan struct{}),
	}
	s.logger.Info("Started cloudflared (pid %d)", p.pid)

	go p.pump(r)
	go p.wait(s.logger)

	return p, nil
}

func (p *SupervisedProcess) pump(r *os.File) {
	defer close(p.lines)
	defer r.Close()
	for line := range stream.ScanLines(r, nil) {
		p.tail.Add(line)
		select {
		case p.lines <- line:
		case <-p.released:
		}
	}
}

func (p *SupervisedProcess) wait(logger port.Logger) {
	err := p.cmd.Wait()

	p.mu.Lock()
	p.waitErr = err
	if p.cmd.ProcessState != nil {
		p.exitCode = p.cmd.ProcessState.ExitCode()
	}
	switch {
	case p.terminating, err == nil:
		p.state = model.ProcessStopped
	default:
		p.state = model.ProcessFailed
	}
	state, code := p.state, p.exitCode
	p.mu.Unlock()

	logger.Debug("cloudflared (pid %d) exited: state=%s code=%d", p.pid, state, code)
	close(p.done)
}

// release stops delivery on Lines so the pump never blocks on a reader
// that went away.
func (p *SupervisedProcess) release() {
	p.releaseOnce.Do(func() { close(p.released) })
}

// PID returns the OS process identifier.
func (p *SupervisedProcess) PID() int { return p.pid }

// State returns the current lifecycle state.
func (p *SupervisedProcess) State() model.ProcessState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Lines returns the output line channel.
func (p *SupervisedProcess) Lines() <-chan string { return p.lines }

// Tail returns the most recent output lines.
func (p *SupervisedProcess) Tail() []string { return p.tail.Lines() }

// Done is closed once the process has been reaped.
func (p *SupervisedProcess) Done() <-chan struct{} { return p.done }

// ExitCode returns the exit status, or -1 while running or when killed by a signal.
func (p *SupervisedProcess) ExitCode() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode
}

// Err returns the error reported by Wait, if any.
func (p *SupervisedProcess) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.waitErr
}

// Terminate sends SIGTERM to the process group, waits up to gracePeriod
// and then sends SIGKILL. Calling it on a process that already exited is a
// no-op.
func (s *Supervisor) Terminate(proc port.Process, gracePeriod time.Duration) error {
	p, ok := proc.(*SupervisedProcess)
	if !ok {
		return fmt.Errorf("terminate: unsupported process type %T", proc)
	}
	p.terminateMu.Lock()
	defer p.terminateMu.Unlock()
	defer p.release()

	p.mu.Lock()
	if p.state != model.ProcessRunning {
		p.mu.Unlock()
		return nil
	}
	p.terminating = true
	p.mu.Unlock()

	s.logger.Info("Stopping cloudflared (pid %d)", p.pid)
	if err := interrupt(p.cmd.Process); err != nil && !errors.Is(err, os.ErrProcessDone) {
		s.logger.Debug("Interrupt of pid %d failed: %v", p.pid, err)
	}

	if gracePeriod > 0 {
		timer := time.NewTimer(gracePeriod)
		defer timer.Stop()
		select {
		case <-p.done:
			s.logger.Info("cloudflared (pid %d) stopped", p.pid)
			return nil
		case <-timer.C:
		}
	}

	s.logger.Warn("cloudflared (pid %d) still running after %s, killing", p.pid, gracePeriod)
	if err := kill(p.cmd.Process); err != nil && !errors.Is(err, os.ErrProcessDone) {
		select {
		case <-p.done:
			return nil
		default:
		}
		return fmt.Errorf("killing cloudflared (pid %d): %w", p.pid, err)
	}

	select {
	case <-p.done:
		return nil
	case <-time.After(killWait):
		return fmt.Errorf("cloudflared (pid %d) did not exit after kill", p.pid)
	}
}

var (
	_ port.ProcessSupervisor = (*Supervisor)(nil)
	_ port.Process           = (*SupervisedProcess)(nil)
)
