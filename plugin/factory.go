package plugin

// Factory builds and manages instances of one plugin implementation.
//
// Lifecycle methods:
//   - Setup: create an instance from its configuration block
//   - Destroy: release instance resources
//   - Reload: apply new configuration to a running instance
//   - CanDelete: whether the instance may be torn down right now
//
// Factory implementations must be safe for concurrent Setup/Destroy of
// different instances.
type Factory interface {
	// Type returns the plugin type (e.g. "driver").
	Type() Type

	// Name returns the factory name (e.g. "loopback", "udp").
	Name() string

	// Setup initializes a new plugin instance from the given
	// configuration block.
	Setup(v map[string]any) (Plugin, error)

	// Destroy cleans up instance resources. The second parameter is
	// reserved for future use.
	Destroy(Plugin, any) error

	// Reload applies new configuration to a running instance. Factories
	// without hot-reload support return an error.
	Reload(Plugin, map[string]any) error

	// CanDelete reports whether the instance can be safely torn down,
	// e.g. it has no live connections.
	CanDelete(Plugin) bool
}

var (
	// _factoryMap stores registered factories keyed "<type>_<name>".
	_factoryMap = make(map[string]Factory)
)
