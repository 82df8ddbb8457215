package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/flaredantic/flaredantic-go/internal/domain/model"
	"github.com/flaredantic/flaredantic-go/internal/domain/port"
)

// ConfigService is a service for managing configuration
type ConfigService struct {
	configRepo port.ConfigRepository
	logger     port.Logger
}

// NewConfigService creates a new ConfigService instance
func NewConfigService(configRepo port.ConfigRepository, logger port.Logger) *ConfigService {
	return &ConfigService{
		configRepo: configRepo,
		logger:     logger,
	}
}

// ConfigPath resolves an empty path to the repository default
func (s *ConfigService) ConfigPath(configPath string) (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	path, err := s.configRepo.GetDefaultPath()
	if err != nil {
		return "", fmt.Errorf("failed to get default path: %w", err)
	}
	return path, nil
}

// LoadConfig loads settings from a file. An unreadable file is reported
// and replaced by defaults.
func (s *ConfigService) LoadConfig(configPath string) (*model.Settings, error) {
	configPath, err := s.ConfigPath(configPath)
	if err != nil {
		return nil, err
	}

	settings, err := s.configRepo.Load(configPath)
	if err != nil {
		s.logger.Warn("Failed to load configuration from %s: %v", configPath, err)
		return model.NewSettings(), nil
	}

	s.logger.Debug("Configuration loaded from %s", configPath)
	return settings, nil
}

// SaveConfig saves settings to a file
func (s *ConfigService) SaveConfig(settings *model.Settings, configPath string) error {
	configPath, err := s.ConfigPath(configPath)
	if err != nil {
		return err
	}

	if err := s.configRepo.Save(settings, configPath); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	s.logger.Info("Configuration saved to %s", configPath)
	return nil
}

// Set parses value and assigns it to the setting named key
func (s *ConfigService) Set(settings *model.Settings, key, value string) error {
	value = strings.TrimSpace(value)
	invalid := func(reason string) error {
		return &model.ConfigError{Field: key, Value: value, Reason: reason}
	}

	switch key {
	case model.SettingPort:
		port, err := strconv.Atoi(value)
		if err != nil || port < 0 || port > 65535 {
			return invalid("must be a port number between 0 and 65535")
		}
		settings.Port = port
	case model.SettingBindAddr:
		if value == "" || strings.ContainsAny(value, "/ ") {
			return invalid("must be a host name or IP address")
		}
		settings.BindAddr = value
	case model.SettingProtocol:
		if value != "http" && value != "https" {
			return invalid("must be http or https")
		}
		settings.Protocol = value
	case model.SettingBinaryPath:
		settings.BinaryPath = value
	case model.SettingBinDir:
		if value == "" {
			return invalid("must not be empty")
		}
		settings.BinDir = value
	case model.SettingTimeout, model.SettingGracePeriod:
		d, err := time.ParseDuration(value)
		if err != nil || d < 0 {
			return invalid("must be a non-negative duration such as 30s")
		}
		if key == model.SettingTimeout {
			settings.Timeout = d
		} else {
			settings.GracePeriod = d
		}
	case model.SettingVerbose:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return invalid("must be true or false")
		}
		settings.Verbose = b
	case model.SettingCloudflaredVersion:
		if value == "" {
			value = model.DefaultCloudflaredVersion
		}
		settings.CloudflaredVersion = value
	case model.SettingChecksum:
		value = strings.ToLower(value)
		if value != "" && len(value) != 64 {
			return invalid("must be a hex SHA256 digest")
		}
		settings.Checksum = value
	case model.SettingDownloadURL:
		settings.DownloadURL = strings.TrimRight(value, "/")
	case model.SettingLogLevel:
		switch model.LogLevel(value) {
		case model.LogLevelDebug, model.LogLevelInfo, model.LogLevelWarn, model.LogLevelError:
		default:
			return invalid("must be debug, info, warn or error")
		}
		settings.LogLevel = model.LogLevel(value)
	case model.SettingLogFile:
		settings.LogFile = value
	case model.SettingEventsAddr:
		settings.EventsAddr = value
	default:
		return invalid("unknown setting, expected one of " + strings.Join(model.SettingKeys, ", "))
	}
	return nil
}

// Values renders settings as key/value strings in model.SettingKeys order
func (s *ConfigService) Values(settings *model.Settings) [][2]string {
	return [][2]string{
		{model.SettingPort, strconv.Itoa(settings.Port)},
		{model.SettingBindAddr, settings.BindAddr},
		{model.SettingProtocol, settings.Protocol},
		{model.SettingBinaryPath, settings.BinaryPath},
		{model.SettingBinDir, settings.BinDir},
		{model.SettingTimeout, settings.Timeout.String()},
		{model.SettingGracePeriod, settings.GracePeriod.String()},
		{model.SettingVerbose, strconv.FormatBool(settings.Verbose)},
		{model.SettingCloudflaredVersion, settings.CloudflaredVersion},
		{model.SettingChecksum, settings.Checksum},
		{model.SettingDownloadURL, settings.DownloadURL},
		{model.SettingLogLevel, string(settings.LogLevel)},
		{model.SettingLogFile, settings.LogFile},
		{model.SettingEventsAddr, settings.EventsAddr},
	}
}
