// Package config provides hot-reloadable configuration management for the
// linkmux transport shim. Components load a named configuration once at
// construction time and may register as change listeners to pick up edits
// to the underlying file without a restart.
package config

// Config is the contract every loadable configuration struct fulfils.
type Config interface {
	// GetName returns the configuration name, which doubles as the file
	// name (without extension) the manager resolves under its base path.
	GetName() string

	// Validate reports whether the configuration values are usable.
	Validate() error
}

// ConfigChangeListener receives notifications after a named configuration
// has been reloaded and validated.
type ConfigChangeListener interface {
	// OnConfigChanged is invoked with the freshly loaded configuration and
	// the configuration it replaced. Returning an error keeps the old
	// configuration active for this listener's component.
	OnConfigChanged(configName string, newConfig, oldConfig Config) error

	// GetConfigName returns the configuration name the listener is
	// interested in.
	GetConfigName() string
}

// ValidatorFunc is an additional validation step registered per
// configuration name, run after Config.Validate.
type ValidatorFunc func(Config) error
