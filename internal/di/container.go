package di

import (
	"os"

	"github.com/flaredantic/flaredantic-go/internal/application/service"
	"github.com/flaredantic/flaredantic-go/internal/domain/model"
	"github.com/flaredantic/flaredantic-go/internal/infrastructure/config"
	"github.com/flaredantic/flaredantic-go/internal/infrastructure/download"
	"github.com/flaredantic/flaredantic-go/internal/infrastructure/logger"
	"github.com/flaredantic/flaredantic-go/internal/infrastructure/process"
	"github.com/flaredantic/flaredantic-go/internal/infrastructure/readiness"
	"github.com/flaredantic/flaredantic-go/internal/infrastructure/transport"
)

// Container is a container for dependency injection
type Container struct {
	// Logger
	Logger *logger.Logger

	// Repositories
	ConfigRepository *config.ConfigRepository

	// Services
	ConfigService *service.ConfigService
	TunnelService *service.TunnelService

	// Infrastructure
	Provisioner *download.Provisioner
	Supervisor  *process.Supervisor
	Detector    *readiness.Detector
	EventHub    *transport.EventHub

	// Settings
	Settings   *model.Settings
	ConfigPath string
}

// NewContainer creates a new Container instance
func NewContainer() *Container {
	return &Container{}
}

// Initialize loads settings from configPath and wires every component
func (c *Container) Initialize(configPath string) error {
	c.Logger = logger.NewLogger(os.Stderr, string(model.LogLevelWarn))

	c.ConfigRepository = config.NewConfigRepository()
	c.ConfigService = service.NewConfigService(c.ConfigRepository, c.Logger.Named("config"))

	var err error
	c.ConfigPath, err = c.ConfigService.ConfigPath(configPath)
	if err != nil {
		return err
	}
	c.Settings, err = c.ConfigService.LoadConfig(c.ConfigPath)
	if err != nil {
		return err
	}

	c.Logger.SetLevel(string(c.Settings.LogLevel))

	// Logs go to the terminal and, when configured, to a file as well
	if c.Settings.LogFile != "" {
		teeLogger, err := logger.NewTeeLogger(os.Stderr, c.Settings.LogFile, string(c.Settings.LogLevel))
		if err != nil {
			c.Logger.Error("Failed to create file logger: %v", err)
		} else {
			c.Logger = teeLogger
			c.Logger.Debug("Logs will also be written to file: %s", c.Settings.LogFile)
		}
	}

	c.wire()
	return nil
}

// SetLogLevel overrides the configured level, e.g. from a command-line flag
func (c *Container) SetLogLevel(level string) {
	if c.Logger != nil && level != "" {
		c.Logger.SetLevel(level)
	}
}

func (c *Container) wire() {
	c.Provisioner = download.NewProvisioner(c.Logger.Named("download"))
	c.Supervisor = process.NewSupervisor(c.Logger.Named("process"), nil)
	c.Detector = readiness.NewDetector(c.Logger.Named("readiness"))
	c.EventHub = transport.NewEventHub(c.Logger.Named("events"))
	c.TunnelService = service.NewTunnelService(c.Provisioner, c.Supervisor, c.Detector, c.EventHub, c.Logger)
}

// Close closes all resources
func (c *Container) Close() {
	if c.EventHub != nil {
		c.EventHub.Close()
	}

	if c.Logger != nil {
		c.Logger.Close()
	}
}
