package config

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// ConfigManager loads named YAML configurations, watches their backing
// files, and fans reload notifications out to registered listeners.
type ConfigManager interface {
	LoadConfig(configName string, config Config) error
	GetConfig(configName string) (Config, error)
	RegisterValidator(configName string, validator ValidatorFunc)
	AddChangeListener(listener ConfigChangeListener)
	RemoveChangeListener(listener ConfigChangeListener)
	SetBasePath(path string)
	SetEnvironment(env string)
	Close() error
}

// configManager is the file-backed ConfigManager implementation.
type configManager struct {
	mu         sync.RWMutex
	configs    map[string]Config
	watchers   map[string]*fsnotify.Watcher
	validators map[string]ValidatorFunc
	listeners  map[string][]ConfigChangeListener
	basePath   string
	env        string
}

// NewConfigManager creates a configuration manager rooted at ./configs
// with the development environment overlay.
func NewConfigManager() ConfigManager {
	return &configManager{
		configs:    make(map[string]Config),
		watchers:   make(map[string]*fsnotify.Watcher),
		validators: make(map[string]ValidatorFunc),
		listeners:  make(map[string][]ConfigChangeListener),
		basePath:   "./configs",
		env:        "development",
	}
}

// LoadConfig reads configName.yaml from the base path (and environment
// overlay), unmarshals it into config, validates it, and starts watching
// the file for changes.
func (cm *configManager) LoadConfig(configName string, config Config) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	v := cm.newViper(configName)

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config failed: %w", err)
	}
	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("unmarshal config failed: %w", err)
	}
	if err := cm.validate(configName, config); err != nil {
		return fmt.Errorf("validate config failed: %w", err)
	}

	cm.configs[configName] = config

	if err := cm.watchConfigFile(configName, v); err != nil {
		return fmt.Errorf("watch config file failed: %w", err)
	}
	return nil
}

// GetConfig returns a previously loaded configuration by name.
func (cm *configManager) GetConfig(configName string) (Config, error) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	config, exists := cm.configs[configName]
	if !exists {
		return nil, fmt.Errorf("config %s not found", configName)
	}
	return config, nil
}

// RegisterValidator registers an extra validation step for configName.
func (cm *configManager) RegisterValidator(configName string, validator ValidatorFunc) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.validators[configName] = validator
}

// AddChangeListener subscribes a listener to reloads of the configuration
// it names via GetConfigName.
func (cm *configManager) AddChangeListener(listener ConfigChangeListener) {
	if listener == nil {
		return
	}
	cm.mu.Lock()
	defer cm.mu.Unlock()
	name := listener.GetConfigName()
	cm.listeners[name] = append(cm.listeners[name], listener)
}

// RemoveChangeListener drops a previously added listener.
func (cm *configManager) RemoveChangeListener(listener ConfigChangeListener) {
	if listener == nil {
		return
	}
	cm.mu.Lock()
	defer cm.mu.Unlock()
	name := listener.GetConfigName()
	kept := cm.listeners[name][:0]
	for _, l := range cm.listeners[name] {
		if l != listener {
			kept = append(kept, l)
		}
	}
	cm.listeners[name] = kept
}

// SetBasePath sets the directory configuration files are resolved from.
func (cm *configManager) SetBasePath(path string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.basePath = path
}

// SetEnvironment sets the environment overlay directory.
func (cm *configManager) SetEnvironment(env string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.env = env
}

// Close stops all file watchers.
func (cm *configManager) Close() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	for _, watcher := range cm.watchers {
		if err := watcher.Close(); err != nil {
			return err
		}
	}
	cm.watchers = make(map[string]*fsnotify.Watcher)
	return nil
}

func (cm *configManager) newViper(configName string) *viper.Viper {
	v := viper.New()
	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	v.AddConfigPath(cm.basePath)
	v.AddConfigPath(fmt.Sprintf("%s/%s", cm.basePath, cm.env))

	// Environment variables override file values, e.g. SOCKET_MAXCLIENTS.
	v.AutomaticEnv()
	v.SetEnvPrefix(strings.ToUpper(configName))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return v
}

func (cm *configManager) validate(configName string, config Config) error {
	if err := config.Validate(); err != nil {
		return err
	}
	if validator, exists := cm.validators[configName]; exists {
		if err := validator(config); err != nil {
			return err
		}
	}
	return nil
}

// watchConfigFile watches the resolved configuration file for writes.
func (cm *configManager) watchConfigFile(configName string, v *viper.Viper) error {
	configFile := v.ConfigFileUsed()
	if configFile == "" {
		return nil
	}
	if _, exists := cm.watchers[configName]; exists {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	cm.watchers[configName] = watcher

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&fsnotify.Write == fsnotify.Write {
					cm.reloadConfig(configName)
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	return watcher.Add(configFile)
}

// reloadConfig re-reads a configuration after its file changed. Any
// failure (read, unmarshal, validate, listener veto) keeps the previous
// configuration in place.
func (cm *configManager) reloadConfig(configName string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	oldConfig, exists := cm.configs[configName]
	if !exists {
		return
	}

	// New instance of the same concrete type as the loaded config.
	newConfig, ok := reflect.New(reflect.TypeOf(oldConfig).Elem()).Interface().(Config)
	if !ok {
		return
	}

	v := cm.newViper(configName)
	if err := v.ReadInConfig(); err != nil {
		return
	}
	if err := v.Unmarshal(newConfig); err != nil {
		return
	}
	if err := cm.validate(configName, newConfig); err != nil {
		return
	}

	for _, listener := range cm.listeners[configName] {
		if err := listener.OnConfigChanged(configName, newConfig, oldConfig); err != nil {
			return
		}
	}

	cm.configs[configName] = newConfig
}
