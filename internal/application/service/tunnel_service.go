package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/flaredantic/flaredantic-go/internal/domain/model"
	"github.com/flaredantic/flaredantic-go/internal/domain/port"
)

// exitReapWait bounds how long a failed start waits for the exit status
// of a daemon whose output already closed.
const exitReapWait = 2 * time.Second

// TunnelService creates tunnel handles sharing one provisioner,
// supervisor, detector and event publisher.
type TunnelService struct {
	provisioner port.BinaryProvisioner
	supervisor  port.ProcessSupervisor
	detector    port.ReadinessDetector
	publisher   port.EventPublisher
	logger      port.Logger
}

// NewTunnelService creates a new TunnelService. A nil publisher drops events.
func NewTunnelService(
	provisioner port.BinaryProvisioner,
	supervisor port.ProcessSupervisor,
	detector port.ReadinessDetector,
	publisher port.EventPublisher,
	logger port.Logger,
) *TunnelService {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &TunnelService{
		provisioner: provisioner,
		supervisor:  supervisor,
		detector:    detector,
		publisher:   publisher,
		logger:      logger,
	}
}

// NewTunnel validates config and returns an unstarted handle.
func (s *TunnelService) NewTunnel(config model.TunnelConfig) (*TunnelHandle, error) {
	config = config.WithDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	id := newTunnelID()
	return &TunnelHandle{
		id:      id,
		config:  config,
		service: s,
		logger:  s.logger.Named("tunnel " + id),
		state:   model.TunnelStateNotStarted,
		done:    make(chan struct{}),
	}, nil
}

// WithTunnel starts a tunnel, runs fn with it and always stops it
// afterwards, including when fn fails or panics.
func (s *TunnelService) WithTunnel(ctx context.Context, config model.TunnelConfig, fn func(ctx context.Context, tunnel *TunnelHandle) error) (err error) {
	tunnel, err := s.NewTunnel(config)
	if err != nil {
		return err
	}
	defer func() {
		if stopErr := tunnel.Stop(); stopErr != nil && err == nil {
			err = stopErr
		}
	}()

	if _, err := tunnel.Start(ctx); err != nil {
		return err
	}
	return fn(ctx, tunnel)
}

// TunnelHandle owns at most one cloudflared process and the URL it
// announced. A handle starts once; create a new one to retry.
type TunnelHandle struct {
	id      string
	config  model.TunnelConfig
	service *TunnelService
	logger  port.Logger

	mu            sync.Mutex
	state         model.TunnelState
	binary        *model.BinaryDescriptor
	proc          port.Process
	url           string
	err           error
	startDone     chan struct{}
	cancelStart   context.CancelFunc
	stopRequested bool

	stopMu   sync.Mutex
	done     chan struct{}
	doneOnce sync.Once
}

// ID returns the handle identifier used in logs and events.
func (h *TunnelHandle) ID() string { return h.id }

// Config returns the handle's configuration.
func (h *TunnelHandle) Config() model.TunnelConfig { return h.config }

// State returns the lifecycle state.
func (h *TunnelHandle) State() model.TunnelState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// URL returns the public URL while the tunnel is running, "" otherwise.
func (h *TunnelHandle) URL() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != model.TunnelStateRunning {
		return ""
	}
	return h.url
}

// Binary returns the provisioned cloudflared, nil before provisioning.
func (h *TunnelHandle) Binary() *model.BinaryDescriptor {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.binary
}

// PID returns the daemon's process id, 0 when none was spawned.
func (h *TunnelHandle) PID() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.proc == nil {
		return 0
	}
	return h.proc.PID()
}

// Done is closed when the tunnel is over: stopped, failed to start, or
// the daemon exited on its own.
func (h *TunnelHandle) Done() <-chan struct{} { return h.done }

// Err returns the failure that ended the tunnel, if any.
func (h *TunnelHandle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Wait blocks until Done or ctx is cancelled and returns the tunnel's
// failure, if any.
func (h *TunnelHandle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start provisions cloudflared, spawns it and waits for the public URL.
// On any failure the daemon is terminated before the error is returned.
func (h *TunnelHandle) Start(ctx context.Context) (string, error) {
	h.mu.Lock()
	if h.state != model.TunnelStateNotStarted {
		state := h.state
		h.mu.Unlock()
		return "", &model.TunnelError{Op: "start", Err: &model.StateError{Op: "start", State: state}}
	}
	startCtx, cancel := context.WithCancel(ctx)
	h.state = model.TunnelStateStarting
	h.startDone = make(chan struct{})
	h.cancelStart = cancel
	h.mu.Unlock()
	defer cancel()

	h.publishState(model.TunnelStateStarting, nil)
	h.logger.Info("Starting tunnel to %s", h.config.LocalURL())

	url, err := h.start(startCtx)

	h.mu.Lock()
	if err == nil {
		err = h.checkAlive()
	}
	if err != nil {
		h.state = model.TunnelStateFailed
		h.err = &model.TunnelError{Op: "start", Err: err}
		err = h.err
	} else {
		h.state = model.TunnelStateRunning
		h.url = url
	}
	close(h.startDone)
	h.mu.Unlock()

	if err != nil {
		h.logger.Error("Tunnel failed to start: %v", err)
		h.publishState(model.TunnelStateFailed, err)
		if h.PID() == 0 {
			h.finish()
		}
		return "", err
	}

	h.logger.Info("Tunnel ready at %s", url)
	h.publish(model.EventTypeReady, model.ReadyPayload{URL: url, LocalURL: h.config.LocalURL(), PID: h.PID()})
	h.publishState(model.TunnelStateRunning, nil)
	return url, nil
}

func (h *TunnelHandle) start(ctx context.Context) (string, error) {
	svc := h.service

	binary, err := svc.provisioner.Ensure(ctx, h.config)
	if err != nil {
		return "", err
	}
	h.mu.Lock()
	h.binary = binary
	h.mu.Unlock()
	h.publish(model.EventTypeProvisioned, model.ProvisionedPayload{
		Path:     binary.Path,
		Version:  binary.Version,
		Platform: binary.Platform.String(),
		Source:   binary.Source,
	})

	proc, err := svc.supervisor.Spawn(ctx, binary.Path, h.config.DaemonArgs())
	if err != nil {
		return "", err
	}
	h.mu.Lock()
	h.proc = proc
	h.mu.Unlock()

	watchDone := make(chan struct{})
	lines := h.relay(proc, watchDone)
	url, err := svc.detector.Watch(ctx, lines, h.config.Timeout)
	close(watchDone)
	if err == nil {
		return url, nil
	}

	err = h.exitError(proc, err)
	if termErr := svc.supervisor.Terminate(proc, h.config.GracePeriod); termErr != nil {
		h.logger.Warn("Failed to terminate cloudflared after failed start: %v", termErr)
	}
	return "", err
}

// relay drains the daemon's output for its whole life. Lines are logged
// and published, and forwarded to the detector until watchDone closes.
func (h *TunnelHandle) relay(proc port.Process, watchDone <-chan struct{}) <-chan string {
	out := make(chan string)
	go func() {
		forwarding := true
		for line := range proc.Lines() {
			if h.config.Verbose {
				h.logger.Info("cloudflared: %s", line)
			} else {
				h.logger.Debug("cloudflared: %s", line)
			}
			h.publish(model.EventTypeOutput, model.OutputPayload{Line: line})

			if forwarding {
				select {
				case out <- line:
				case <-watchDone:
					forwarding = false
				}
			}
		}
		close(out)
		h.onExit(proc)
	}()
	return out
}

// onExit runs once the daemon's output has closed.
func (h *TunnelHandle) onExit(proc port.Process) {
	select {
	case <-proc.Done():
	case <-time.After(exitReapWait):
	}

	h.mu.Lock()
	unexpected := h.state == model.TunnelStateRunning
	if unexpected {
		h.state = model.TunnelStateFailed
		h.url = ""
		h.err = &model.TunnelError{Op: "run", Err: &model.UnexpectedExitError{
			PID:      proc.PID(),
			ExitCode: proc.ExitCode(),
			Output:   proc.Tail(),
		}}
	}
	err := h.err
	// Closed under mu so Start never marks a dead daemon as running.
	h.finish()
	h.mu.Unlock()

	if unexpected {
		h.logger.Error("cloudflared exited while the tunnel was running: %v", err)
		h.publishState(model.TunnelStateFailed, err)
	}
}

// checkAlive reports why a successful start must still fail. Called with
// mu held.
func (h *TunnelHandle) checkAlive() error {
	if h.stopRequested {
		return context.Canceled
	}
	select {
	case <-h.done:
		return &model.UnexpectedExitError{
			PID:      h.proc.PID(),
			ExitCode: h.proc.ExitCode(),
			Output:   h.proc.Tail(),
		}
	default:
		return nil
	}
}

// exitError turns a premature end of output into an UnexpectedExitError
// carrying the exit status.
func (h *TunnelHandle) exitError(proc port.Process, err error) error {
	if !errors.Is(err, model.ErrPrematureExit) {
		return err
	}
	select {
	case <-proc.Done():
	case <-time.After(exitReapWait):
	}
	return &model.UnexpectedExitError{
		PID:      proc.PID(),
		ExitCode: proc.ExitCode(),
		Output:   proc.Tail(),
		Err:      err,
	}
}

// Stop terminates the daemon. It is safe to call repeatedly, before
// Start, and concurrently with an in-flight Start, in which case it
// cancels the start and waits for it to resolve.
func (h *TunnelHandle) Stop() error {
	h.stopMu.Lock()
	defer h.stopMu.Unlock()

	h.mu.Lock()
	switch h.state {
	case model.TunnelStateStopped:
		h.mu.Unlock()
		return nil
	case model.TunnelStateNotStarted:
		h.state = model.TunnelStateStopped
		h.mu.Unlock()
		h.finish()
		h.publishState(model.TunnelStateStopped, nil)
		return nil
	case model.TunnelStateStarting:
		h.stopRequested = true
		cancel, startDone := h.cancelStart, h.startDone
		h.mu.Unlock()
		h.logger.Info("Stop requested while starting, cancelling start")
		cancel()
		<-startDone
		h.mu.Lock()
	}
	proc := h.proc
	h.state = model.TunnelStateStopped
	h.url = ""
	h.mu.Unlock()

	if proc != nil {
		if err := h.service.supervisor.Terminate(proc, h.config.GracePeriod); err != nil {
			return &model.TunnelError{Op: "stop", Err: err}
		}
	} else {
		h.finish()
	}
	h.logger.Info("Tunnel stopped")
	h.publishState(model.TunnelStateStopped, nil)
	return nil
}

func (h *TunnelHandle) finish() {
	h.doneOnce.Do(func() { close(h.done) })
}

func (h *TunnelHandle) publishState(state model.TunnelState, err error) {
	payload := model.StatePayload{State: state}
	if err != nil {
		payload.Error = err.Error()
	}
	h.publish(model.EventTypeState, payload)
}

func (h *TunnelHandle) publish(eventType model.EventType, payload interface{}) {
	event, err := model.NewEvent(eventType, h.id, payload)
	if err != nil {
		h.logger.Warn("Failed to create %s event: %v", eventType, err)
		return
	}
	h.service.publisher.Publish(event)
}

func newTunnelID() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return hex.EncodeToString([]byte(time.Now().Format("150405")))
	}
	return hex.EncodeToString(b)
}

type nopPublisher struct{}

func (nopPublisher) Publish(*model.Event) {}
