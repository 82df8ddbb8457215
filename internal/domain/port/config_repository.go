package port

import "github.com/flaredantic/flaredantic-go/internal/domain/model"

// ConfigRepository defines operations on persisted CLI settings
type ConfigRepository interface {
	// Load loads settings from storage, falling back to defaults when absent
	Load(path string) (*model.Settings, error)

	// Save saves settings to storage
	Save(settings *model.Settings, path string) error

	// GetDefaultPath returns the default path for the settings file
	GetDefaultPath() (string, error)
}
