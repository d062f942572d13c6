// Package config provides file- and environment-based configuration for
// the cache engine: loading, validation, hot reload, and bridges into the
// manager and store configuration types.
package config

import (
	"path/filepath"
	"time"

	"golang.org/x/xerrors"

	"github.com/offsync/cache-common/manager"
	"github.com/offsync/cache-common/persist"
	"github.com/offsync/cache-common/report"
	"github.com/offsync/cache-common/store"
)

// PersistenceConfig controls durable mirroring of store contents
type PersistenceConfig struct {
	// Enable turns on durable mirroring, the engine is purely in-memory otherwise
	Enable bool `json:"enable" mapstructure:"enable"`
	// RootPath is the directory holding one subdirectory per domain
	RootPath string `json:"root_path" mapstructure:"root_path"`
}

// EngineConfig is the complete engine configuration
type EngineConfig struct {
	// Defaults applies to every domain without an override
	Defaults store.Config `json:"defaults" mapstructure:"defaults"`
	// Domains overrides the store configuration per domain
	Domains map[string]store.Config `json:"domains" mapstructure:"domains"`
	// MaintenanceInterval is the expiry sweep period
	MaintenanceInterval time.Duration `json:"maintenance_interval" mapstructure:"maintenance_interval"`
	// Persistence controls durable mirroring
	Persistence PersistenceConfig `json:"persistence" mapstructure:"persistence"`
}

// NewDefaultEngineConfig creates an EngineConfig with default values
func NewDefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		Defaults:            *store.NewDefaultConfig(),
		Domains:             map[string]store.Config{},
		MaintenanceInterval: manager.DefaultMaintenanceInterval,
		Persistence: PersistenceConfig{
			Enable: false,
		},
	}
}

// Validate checks if the configuration is valid
func (config *EngineConfig) Validate() error {
	err := config.Defaults.Validate()
	if err != nil {
		return xerrors.Errorf("invalid default store config: %w", err)
	}

	for domain, domainConfig := range config.Domains {
		err = domainConfig.Validate()
		if err != nil {
			return xerrors.Errorf("invalid store config for domain %s: %w", domain, err)
		}
	}

	if config.MaintenanceInterval <= 0 {
		return xerrors.Errorf("invalid maintenance interval %s, must be > 0", config.MaintenanceInterval)
	}

	if config.Persistence.Enable && config.Persistence.RootPath == "" {
		return xerrors.Errorf("persistence is enabled but root path is empty")
	}

	return nil
}

// ToManagerConfig converts the engine configuration into a manager
// configuration, wiring a disk persister per domain when persistence is
// enabled
func (config *EngineConfig) ToManagerConfig(reporter report.Reporter) *manager.Config {
	defaults := config.Defaults
	domainConfigs := map[string]*store.Config{}
	for domain := range config.Domains {
		domainConfig := config.Domains[domain]
		domainConfigs[domain] = &domainConfig
	}

	managerConfig := &manager.Config{
		DefaultStoreConfig:  &defaults,
		DomainStoreConfigs:  domainConfigs,
		MaintenanceInterval: config.MaintenanceInterval,
		Reporter:            reporter,
	}

	if config.Persistence.Enable {
		rootPath := config.Persistence.RootPath
		managerConfig.PersisterFactory = func(domain string) (store.Persister, error) {
			return persist.NewDiskPersister(filepath.Join(rootPath, domain))
		}
	}

	return managerConfig
}
