package config

import (
	"os"
	"sync"

	"github.com/livp123/pktstream/internal/utils/fileutil"
)

// ConfigManager holds the loaded configuration for concurrent readers.
// ConfigManager 为并发读取者保存已加载的配置。
type ConfigManager struct {
	configPath string
	mutex      sync.RWMutex
	config     *Config
}

// NewConfigManager creates a new configuration manager instance
// NewConfigManager 创建新的配置管理器实例
func NewConfigManager(configPath string) *ConfigManager {
	if configPath == "" {
		configPath = DefaultConfigPath
	}
	return &ConfigManager{configPath: configPath}
}

// LoadConfig loads the configuration from the manager's path.
// LoadConfig 从管理器路径加载配置。
func (cm *ConfigManager) LoadConfig() error {
	cfg, err := Load(cm.configPath)
	if err != nil {
		return err
	}
	cm.mutex.Lock()
	cm.config = cfg
	cm.mutex.Unlock()
	return nil
}

// GetConfig returns the loaded configuration, or the defaults if nothing was loaded.
// GetConfig 返回已加载的配置，未加载时返回默认值。
func (cm *ConfigManager) GetConfig() *Config {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()
	if cm.config == nil {
		return Default()
	}
	return cm.config
}

func (cm *ConfigManager) GetConfigPath() string {
	return cm.configPath
}

// WriteTemplate writes DefaultConfigTemplate to the manager's path.
// Existing files are kept unless overwrite is set.
// WriteTemplate 将默认模板写入配置路径。
func (cm *ConfigManager) WriteTemplate(overwrite bool) (bool, error) {
	if !overwrite {
		if _, err := os.Stat(cm.configPath); err == nil {
			return false, nil
		}
	}
	if err := fileutil.AtomicWriteFile(cm.configPath, []byte(DefaultConfigTemplate), 0644); err != nil {
		return false, err
	}
	return true, nil
}
