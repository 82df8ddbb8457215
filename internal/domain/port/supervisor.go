package port

import (
	"context"
	"time"

	"github.com/flaredantic/flaredantic-go/internal/domain/model"
)

// Process is one supervised daemon subprocess
type Process interface {
	// PID returns the OS process identifier
	PID() int

	// State returns the current lifecycle state
	State() model.ProcessState

	// Lines returns the combined stdout/stderr as a line channel. The same
	// channel is returned on every call and is closed when output ends.
	Lines() <-chan string

	// Tail returns the most recent output lines kept for diagnostics
	Tail() []string

	// Done is closed once the process has exited
	Done() <-chan struct{}

	// ExitCode returns the exit status, or -1 while running
	ExitCode() int
}

// ProcessSupervisor spawns and terminates daemon subprocesses
type ProcessSupervisor interface {
	// Spawn launches binaryPath with args. The returned process is Running.
	Spawn(ctx context.Context, binaryPath string, args []string) (Process, error)

	// Terminate stops p gracefully, killing it after gracePeriod. It is a
	// no-op for a process that is no longer running.
	Terminate(p Process, gracePeriod time.Duration) error
}
