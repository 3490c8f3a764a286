package config

import "sync"

var (
	_instance     ConfigManager
	_instanceOnce sync.Once
	_instanceMu   sync.RWMutex
)

// GetInstance returns the process-wide configuration manager, creating it
// on first use.
func GetInstance() ConfigManager {
	_instanceOnce.Do(func() {
		_instanceMu.Lock()
		if _instance == nil {
			_instance = NewConfigManager()
		}
		_instanceMu.Unlock()
	})

	_instanceMu.RLock()
	defer _instanceMu.RUnlock()
	return _instance
}

// SetInstance replaces the process-wide configuration manager. Intended
// for tests and embedders that construct their own manager.
func SetInstance(cm ConfigManager) {
	_instanceMu.Lock()
	defer _instanceMu.Unlock()
	_instance = cm
}
