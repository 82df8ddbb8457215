package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/flaredantic/flaredantic-go/internal/domain/model"
	"github.com/flaredantic/flaredantic-go/internal/domain/port"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. FLAREDANTIC_BIN_DIR
const EnvPrefix = "FLAREDANTIC"

// ConfigRepository is an implementation of port.ConfigRepository backed by
// a YAML file. Every setting can be overridden from the environment.
type ConfigRepository struct {
	defaultPath string
}

// NewConfigRepository creates a new ConfigRepository instance
func NewConfigRepository() *ConfigRepository {
	return &ConfigRepository{}
}

// NewConfigRepositoryAt creates a ConfigRepository whose default path is path
func NewConfigRepositoryAt(path string) *ConfigRepository {
	return &ConfigRepository{defaultPath: path}
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	defaults := model.NewSettings()
	for key, value := range settingsMap(defaults) {
		v.SetDefault(key, value)
	}
	return v
}

// Load loads settings from file. A missing file yields defaults, still
// subject to environment overrides.
func (r *ConfigRepository) Load(configPath string) (*model.Settings, error) {
	if configPath == "" {
		var err error
		configPath, err = r.GetDefaultPath()
		if err != nil {
			return nil, err
		}
	}

	v := newViper()
	if _, err := os.Stat(configPath); err == nil {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configPath, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error reading config file %s: %w", configPath, err)
	}

	return &model.Settings{
		Port:               v.GetInt(model.SettingPort),
		BindAddr:           v.GetString(model.SettingBindAddr),
		Protocol:           v.GetString(model.SettingProtocol),
		BinaryPath:         v.GetString(model.SettingBinaryPath),
		BinDir:             v.GetString(model.SettingBinDir),
		Timeout:            v.GetDuration(model.SettingTimeout),
		GracePeriod:        v.GetDuration(model.SettingGracePeriod),
		Verbose:            v.GetBool(model.SettingVerbose),
		CloudflaredVersion: v.GetString(model.SettingCloudflaredVersion),
		Checksum:           v.GetString(model.SettingChecksum),
		DownloadURL:        v.GetString(model.SettingDownloadURL),
		LogLevel:           model.LogLevel(v.GetString(model.SettingLogLevel)),
		LogFile:            v.GetString(model.SettingLogFile),
		EventsAddr:         v.GetString(model.SettingEventsAddr),
	}, nil
}

// Save saves settings to file, creating its directory when needed
func (r *ConfigRepository) Save(settings *model.Settings, configPath string) error {
	if configPath == "" {
		var err error
		configPath, err = r.GetDefaultPath()
		if err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	for key, value := range settingsMap(settings) {
		v.Set(key, value)
	}
	if err := v.WriteConfigAs(configPath); err != nil {
		return fmt.Errorf("error saving configuration: %w", err)
	}
	return nil
}

// GetDefaultPath returns the default path for configuration file
func (r *ConfigRepository) GetDefaultPath() (string, error) {
	if r.defaultPath != "" {
		return r.defaultPath, nil
	}
	return model.DefaultSettingsPath(), nil
}

func settingsMap(s *model.Settings) map[string]interface{} {
	return map[string]interface{}{
		model.SettingPort:               s.Port,
		model.SettingBindAddr:           s.BindAddr,
		model.SettingProtocol:           s.Protocol,
		model.SettingBinaryPath:         s.BinaryPath,
		model.SettingBinDir:             s.BinDir,
		model.SettingTimeout:            s.Timeout.String(),
		model.SettingGracePeriod:        s.GracePeriod.String(),
		model.SettingVerbose:            s.Verbose,
		model.SettingCloudflaredVersion: s.CloudflaredVersion,
		model.SettingChecksum:           s.Checksum,
		model.SettingDownloadURL:        s.DownloadURL,
		model.SettingLogLevel:           string(s.LogLevel),
		model.SettingLogFile:            s.LogFile,
		model.SettingEventsAddr:         s.EventsAddr,
	}
}

// Ensure ConfigRepository implements port.ConfigRepository
var _ port.ConfigRepository = (*ConfigRepository)(nil)
