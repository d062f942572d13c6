package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/offsync/cache-common/store"
)

func TestEngineConfig(t *testing.T) {
	t.Run("test DefaultEngineConfig", testDefaultEngineConfig)
	t.Run("test ValidateEngineConfig", testValidateEngineConfig)
	t.Run("test ToManagerConfig", testToManagerConfig)
}

func testDefaultEngineConfig(t *testing.T) {
	engineConfig := NewDefaultEngineConfig()
	assert.NoError(t, engineConfig.Validate())
}

func testValidateEngineConfig(t *testing.T) {
	engineConfig := NewDefaultEngineConfig()
	engineConfig.Defaults.MaxEntries = 0
	assert.Error(t, engineConfig.Validate())

	engineConfig = NewDefaultEngineConfig()
	badDomain := *store.NewDefaultConfig()
	badDomain.MaxSize = -1
	engineConfig.Domains["bad"] = badDomain
	assert.Error(t, engineConfig.Validate())

	engineConfig = NewDefaultEngineConfig()
	engineConfig.MaintenanceInterval = 0
	assert.Error(t, engineConfig.Validate())

	engineConfig = NewDefaultEngineConfig()
	engineConfig.Persistence.Enable = true
	engineConfig.Persistence.RootPath = ""
	assert.Error(t, engineConfig.Validate())
}

func testToManagerConfig(t *testing.T) {
	engineConfig := NewDefaultEngineConfig()
	engineConfig.MaintenanceInterval = 10 * time.Minute

	domainConfig := *store.NewDefaultConfig()
	domainConfig.MaxEntries = 5
	engineConfig.Domains["small"] = domainConfig

	managerConfig := engineConfig.ToManagerConfig(nil)
	assert.Equal(t, 10*time.Minute, managerConfig.MaintenanceInterval)
	assert.Equal(t, 5, managerConfig.DomainStoreConfigs["small"].MaxEntries)
	assert.Nil(t, managerConfig.PersisterFactory)

	engineConfig.Persistence.Enable = true
	engineConfig.Persistence.RootPath = t.TempDir()

	managerConfig = engineConfig.ToManagerConfig(nil)
	assert.NotNil(t, managerConfig.PersisterFactory)

	persister, err := managerConfig.PersisterFactory("users")
	assert.NoError(t, err)
	assert.NotNil(t, persister)
}
