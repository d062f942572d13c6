package config

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"golang.org/x/xerrors"
)

const envPrefix = "OFFSYNC_CACHE"

// ViperConfig wraps an EngineConfig with viper-backed loading and hot
// reload. Access is thread-safe and an invalid update on disk is rejected,
// the previously valid configuration stays in effect.
type ViperConfig struct {
	config      *EngineConfig
	viper       *viper.Viper
	configFile  string
	subscribers []func(*EngineConfig)
	mutex       sync.RWMutex
}

// NewViperConfig loads and validates an EngineConfig from the given file.
// The file type is taken from the extension, YAML and JSON are supported.
// Environment variables prefixed with OFFSYNC_CACHE override file values.
func NewViperConfig(configFile string) (*ViperConfig, error) {
	v := viper.New()
	v.SetConfigFile(configFile)

	ext := filepath.Ext(configFile)
	v.SetConfigType(strings.TrimPrefix(ext, "."))

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	err := v.ReadInConfig()
	if err != nil {
		return nil, xerrors.Errorf("failed to read config file %s: %w", configFile, err)
	}

	config := NewDefaultEngineConfig()
	err = v.Unmarshal(config)
	if err != nil {
		return nil, xerrors.Errorf("failed to unmarshal config file %s: %w", configFile, err)
	}

	err = config.Validate()
	if err != nil {
		return nil, xerrors.Errorf("invalid config file %s: %w", configFile, err)
	}

	return &ViperConfig{
		config:      config,
		viper:       v,
		configFile:  configFile,
		subscribers: []func(*EngineConfig){},
	}, nil
}

// GetConfig returns the current configuration
func (viperConfig *ViperConfig) GetConfig() *EngineConfig {
	viperConfig.mutex.RLock()
	defer viperConfig.mutex.RUnlock()

	return viperConfig.config
}

// Subscribe registers a callback invoked with every valid config update
func (viperConfig *ViperConfig) Subscribe(subscriber func(*EngineConfig)) {
	viperConfig.mutex.Lock()
	defer viperConfig.mutex.Unlock()

	viperConfig.subscribers = append(viperConfig.subscribers, subscriber)
}

// EnableHotReload reloads the configuration whenever the file changes.
// Updates that fail validation are dropped.
func (viperConfig *ViperConfig) EnableHotReload() {
	logger := log.WithFields(log.Fields{
		"package":  "config",
		"struct":   "ViperConfig",
		"function": "EnableHotReload",
	})

	viperConfig.viper.WatchConfig()
	viperConfig.viper.OnConfigChange(func(event fsnotify.Event) {
		logger.Infof("config file changed - %s", event.Name)
		viperConfig.reload()
	})
}

// reload re-reads the config file and swaps it in. An update that fails
// to read, unmarshal or validate is dropped, the previously valid
// configuration stays in effect and no subscriber is notified.
func (viperConfig *ViperConfig) reload() {
	logger := log.WithFields(log.Fields{
		"package":  "config",
		"struct":   "ViperConfig",
		"function": "reload",
	})

	err := viperConfig.viper.ReadInConfig()
	if err != nil {
		logger.WithError(err).Warnf("failed to read updated config file %s, keeping previous config", viperConfig.configFile)
		return
	}

	newConfig := NewDefaultEngineConfig()
	err = viperConfig.viper.Unmarshal(newConfig)
	if err != nil {
		logger.WithError(err).Warnf("failed to unmarshal updated config file %s, keeping previous config", viperConfig.configFile)
		return
	}

	err = newConfig.Validate()
	if err != nil {
		logger.WithError(err).Warnf("updated config file %s is invalid, keeping previous config", viperConfig.configFile)
		return
	}

	viperConfig.mutex.Lock()
	viperConfig.config = newConfig
	subscribers := make([]func(*EngineConfig), len(viperConfig.subscribers))
	copy(subscribers, viperConfig.subscribers)
	viperConfig.mutex.Unlock()

	for _, subscriber := range subscribers {
		subscriber(newConfig)
	}
}
