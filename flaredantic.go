package flaredantic

import (
	"context"
	"io"
	"net/http"
	"os"

	"github.com/flaredantic/flaredantic-go/internal/application/service"
	"github.com/flaredantic/flaredantic-go/internal/domain/model"
	"github.com/flaredantic/flaredantic-go/internal/infrastructure/download"
	"github.com/flaredantic/flaredantic-go/internal/infrastructure/logger"
	"github.com/flaredantic/flaredantic-go/internal/infrastructure/process"
	"github.com/flaredantic/flaredantic-go/internal/infrastructure/readiness"
)

// Version is the library version.
const Version = model.Version

// Config describes one tunnel. Build it with NewConfig.
type Config = model.TunnelConfig

// ConfigOption customises a Config.
type ConfigOption = model.ConfigOption

// State is the lifecycle state of a Tunnel.
type State = model.TunnelState

// Tunnel states.
const (
	StateNotStarted = model.TunnelStateNotStarted
	StateStarting   = model.TunnelStateStarting
	StateRunning    = model.TunnelStateRunning
	StateFailed     = model.TunnelStateFailed
	StateStopped    = model.TunnelStateStopped
)

// BinaryDescriptor identifies the cloudflared executable a tunnel uses.
type BinaryDescriptor = model.BinaryDescriptor

// Config options.
var (
	WithBindAddr           = model.WithBindAddr
	WithProtocol           = model.WithProtocol
	WithBinaryPath         = model.WithBinaryPath
	WithBinDir             = model.WithBinDir
	WithTimeout            = model.WithTimeout
	WithGracePeriod        = model.WithGracePeriod
	WithVerbose            = model.WithVerbose
	WithCloudflaredVersion = model.WithCloudflaredVersion
	WithChecksum           = model.WithChecksum
	WithDownloadURL        = model.WithDownloadURL
	WithExtraArgs          = model.WithExtraArgs
)

// NewConfig returns a validated Config for port with defaults applied.
// An out-of-range port fails with ErrInvalidConfig.
func NewConfig(port int, opts ...ConfigOption) (Config, error) {
	cfg, err := model.NewTunnelConfig(port, opts...)
	if err != nil {
		return Config{}, err
	}
	return cfg.WithDefaults(), nil
}

type options struct {
	logOutput  io.Writer
	logLevel   string
	httpClient *http.Client
}

// Option customises how a Tunnel logs and downloads.
type Option func(*options)

// WithLogOutput sends log lines to w instead of stderr.
func WithLogOutput(w io.Writer) Option {
	return func(o *options) { o.logOutput = w }
}

// WithLogLevel sets the log level: debug, info, warn, error or off.
// Config.Verbose lowers the default to debug.
func WithLogLevel(level string) Option {
	return func(o *options) { o.logLevel = level }
}

// WithHTTPClient downloads cloudflared through client.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) { o.httpClient = client }
}

// sharedCache lets every tunnel in the process reuse resolved binaries.
var sharedCache = download.NewCache()

func newOptions(cfg Config, opts []Option) options {
	o := options{logOutput: os.Stderr, logLevel: "warn"}
	if cfg.Verbose {
		o.logLevel = "debug"
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func newProvisioner(o options, log *logger.Logger) *download.Provisioner {
	provisionerOpts := []download.Option{download.WithCache(sharedCache)}
	if o.httpClient != nil {
		provisionerOpts = append(provisionerOpts, download.WithHTTPClient(o.httpClient))
	}
	return download.NewProvisioner(log.Named("download"), provisionerOpts...)
}

func newService(cfg Config, opts []Option) *service.TunnelService {
	o := newOptions(cfg, opts)
	log := logger.NewLogger(o.logOutput, o.logLevel)
	return service.NewTunnelService(
		newProvisioner(o, log),
		process.NewSupervisor(log.Named("process"), nil),
		readiness.NewDetector(log.Named("readiness")),
		nil,
		log,
	)
}

// Tunnel is one cloudflared quick tunnel. It starts once; create a new
// Tunnel to retry after a failure or Stop.
type Tunnel struct {
	handle *service.TunnelHandle
}

// New validates cfg and returns an unstarted Tunnel.
func New(cfg Config, opts ...Option) (*Tunnel, error) {
	handle, err := newService(cfg, opts).NewTunnel(cfg)
	if err != nil {
		return nil, err
	}
	return &Tunnel{handle: handle}, nil
}

// Start provisions cloudflared, launches it and returns the public URL.
// The daemon is terminated before any error is returned.
func (t *Tunnel) Start(ctx context.Context) (string, error) {
	return t.handle.Start(ctx)
}

// Stop terminates the daemon. It is safe to call more than once, before
// Start, and from another goroutine while Start is in flight.
func (t *Tunnel) Stop() error {
	return t.handle.Stop()
}

// URL returns the public URL while the tunnel is running.
func (t *Tunnel) URL() string { return t.handle.URL() }

// State returns the lifecycle state.
func (t *Tunnel) State() State { return t.handle.State() }

// Config returns the tunnel's configuration with defaults applied.
func (t *Tunnel) Config() Config { return t.handle.Config() }

// PID returns the daemon's process id, 0 before it is spawned.
func (t *Tunnel) PID() int { return t.handle.PID() }

// Binary describes the cloudflared in use, nil before provisioning.
func (t *Tunnel) Binary() *BinaryDescriptor { return t.handle.Binary() }

// Done is closed when the tunnel ends for any reason.
func (t *Tunnel) Done() <-chan struct{} { return t.handle.Done() }

// Err returns what ended the tunnel, nil after a clean Stop.
func (t *Tunnel) Err() error { return t.handle.Err() }

// Wait blocks until the tunnel ends or ctx is done.
func (t *Tunnel) Wait(ctx context.Context) error { return t.handle.Wait(ctx) }

// Run starts a tunnel for cfg, calls fn with it and stops it when fn
// returns or panics. A failed Start is returned without calling fn.
func Run(ctx context.Context, cfg Config, fn func(ctx context.Context, t *Tunnel) error, opts ...Option) error {
	return newService(cfg, opts).WithTunnel(ctx, cfg, func(ctx context.Context, h *service.TunnelHandle) error {
		return fn(ctx, &Tunnel{handle: h})
	})
}

// EnsureBinary makes sure cloudflared is available for cfg, downloading it
// when needed, and describes the executable.
func EnsureBinary(ctx context.Context, cfg Config, opts ...Option) (*BinaryDescriptor, error) {
	o := newOptions(cfg, opts)
	return newProvisioner(o, logger.NewLogger(o.logOutput, o.logLevel)).Ensure(ctx, cfg)
}
