// Package plugin hosts the factory registry linkmux resolves transport
// drivers from. Driver implementations register a Factory in their init
// function; sockets look instances up by (type, factory, instance) name
// after InitPlugins has built them from configuration.
package plugin

import (
	"fmt"
	"strings"
	"sync"

	"github.com/lcx/linkmux/config"
	"github.com/lcx/linkmux/log"
)

// Type represents the plugin category.
type Type string

const (
	// Driver transport driver plugin type.
	Driver Type = "driver"
)

const (
	// DefaultInsName is the instance name used when the config omits one.
	DefaultInsName = "default"
)

// PluginConfig is the plugin configuration structure:
// map[plugin_type][factory_name] = instance config items.
// Example YAML:
//
//	driver:
//	  loopback:
//	    tag: default
//	    maxPacketSize: 1400
type PluginConfig map[string]map[string]map[string]any

// GetName implements config.Config.
func (c *PluginConfig) GetName() string {
	return "plugin"
}

// Validate implements config.Config.
func (c *PluginConfig) Validate() error {
	if c == nil || len(*c) == 0 {
		return fmt.Errorf("plugin config is empty")
	}
	for pluginType, factories := range *c {
		if len(factories) == 0 {
			return fmt.Errorf("plugin type %s has no factory config", pluginType)
		}
		for factoryName, instance := range factories {
			if len(instance) == 0 {
				return fmt.Errorf("plugin %s_%s has no instance config", pluginType, factoryName)
			}
		}
	}
	return nil
}

// Plugin is the instance interface every plugin implementation satisfies.
type Plugin interface { //nolint:revive
	FactoryName() string
}

var (
	_pluginLock sync.RWMutex
	// _pluginMap stores live instances keyed "<type>_<factory>_<instance>".
	_pluginMap = make(map[string]Plugin)
)

// RegisterPlugin registers a plugin factory. Call from package init.
func RegisterPlugin(f Factory) {
	_pluginLock.Lock()
	defer _pluginLock.Unlock()
	_factoryMap[fmt.Sprintf("%s_%s", f.Type(), f.Name())] = f
}

// InitPlugins builds all configured plugin instances from the singleton
// config manager's "plugin" configuration. On partial failure every
// instance set up so far is destroyed before the error is returned.
func InitPlugins() error {
	cm := config.GetInstance()

	var cfg PluginConfig
	if err := cm.LoadConfig("plugin", &cfg); err != nil {
		return fmt.Errorf("load plugin config failed: %w", err)
	}
	return SetupPlugins(cfg)
}

// SetupPlugins builds plugin instances from an explicit configuration.
func SetupPlugins(cfg PluginConfig) error {
	_pluginLock.Lock()
	defer _pluginLock.Unlock()

	type created struct {
		key string
		f   Factory
		ins Plugin
	}
	var done []created

	rollback := func() {
		for _, c := range done {
			_ = c.f.Destroy(c.ins, nil)
			delete(_pluginMap, c.key)
		}
	}

	for ft, factories := range cfg {
		for fn, insCfg := range factories {
			f := getPluginFactory(ft, fn)
			if f == nil {
				rollback()
				return fmt.Errorf("plugin factory [%s/%s] not found", ft, fn)
			}

			ins, err := f.Setup(insCfg)
			if err != nil {
				rollback()
				return fmt.Errorf("setup plugin [%s/%s] failed: %w", ft, fn, err)
			}

			pn := getPluginNameFromCfg(insCfg)
			key := pluginKey(ft, fn, pn)
			_pluginMap[key] = ins
			done = append(done, created{key: key, f: f, ins: ins})

			log.Info().Str("type", ft).Str("factory", fn).Str("instance", pn).
				Msg("plugin instance created")
		}
	}
	return nil
}

// DestroyPlugins tears down all live instances whose factories allow it.
func DestroyPlugins() {
	_pluginLock.Lock()
	defer _pluginLock.Unlock()

	for key, ins := range _pluginMap {
		parts := strings.SplitN(key, "_", 3)
		if len(parts) < 3 {
			continue
		}
		f := getPluginFactory(parts[0], parts[1])
		if f == nil || !f.CanDelete(ins) {
			continue
		}
		if err := f.Destroy(ins, nil); err != nil {
			log.Error().Str("plugin", key).Err(err).Msg("plugin destroy failed")
			continue
		}
		delete(_pluginMap, key)
	}
}

// GetPlugin returns a live instance by type, factory, and instance name.
func GetPlugin(ft, fn, pn string) (Plugin, error) {
	_pluginLock.RLock()
	defer _pluginLock.RUnlock()

	ins, ok := _pluginMap[pluginKey(ft, fn, pn)]
	if !ok {
		return nil, fmt.Errorf("plugin [%s/%s/%s] not found", ft, fn, pn)
	}
	return ins, nil
}

// GetDefaultPlugin returns the default-named instance of a factory.
func GetDefaultPlugin(ft, fn string) (Plugin, error) {
	return GetPlugin(ft, fn, DefaultInsName)
}

// MustGetPlugin returns an instance or panics. Intended for startup paths
// where a missing plugin is unrecoverable.
func MustGetPlugin(ft, fn, pn string) Plugin {
	ins, err := GetPlugin(ft, fn, pn)
	if err != nil {
		panic(err)
	}
	return ins
}

func pluginKey(ft, fn, pn string) string {
	return fmt.Sprintf("%s_%s_%s", ft, fn, pn)
}

func getPluginFactory(ft, fn string) Factory {
	return _factoryMap[fmt.Sprintf("%s_%s", ft, fn)]
}

func getPluginNameFromCfg(c map[string]any) string {
	if tag, ok := c["tag"].(string); ok && tag != "" {
		return tag
	}
	return DefaultInsName
}
