package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

const testConfigYAML = `
defaults:
  max_entries: 100
  max_size: 1048576
  default_ttl: 30m
  enable_compression: true
  compression_threshold: 4096
domains:
  users:
    max_entries: 10
    max_size: 65536
    default_ttl: 5m
    enable_compression: false
    compression_threshold: 4096
maintenance_interval: 2m
persistence:
  enable: false
`

func writeTestConfig(t *testing.T, content string) string {
	configFile := filepath.Join(t.TempDir(), "cache.yaml")
	err := os.WriteFile(configFile, []byte(content), 0666)
	assert.NoError(t, err)
	return configFile
}

func TestViperConfig(t *testing.T) {
	t.Run("test LoadYAML", testLoadYAML)
	t.Run("test LoadMissingFile", testLoadMissingFile)
	t.Run("test LoadInvalidConfig", testLoadInvalidConfig)
	t.Run("test ReloadValidUpdate", testReloadValidUpdate)
	t.Run("test ReloadInvalidUpdateRejected", testReloadInvalidUpdateRejected)
}

func testLoadYAML(t *testing.T) {
	configFile := writeTestConfig(t, testConfigYAML)

	viperConfig, err := NewViperConfig(configFile)
	assert.NoError(t, err)

	engineConfig := viperConfig.GetConfig()
	assert.Equal(t, 100, engineConfig.Defaults.MaxEntries)
	assert.Equal(t, int64(1048576), engineConfig.Defaults.MaxSize)
	assert.Equal(t, 30*time.Minute, engineConfig.Defaults.DefaultTTL)
	assert.Equal(t, 2*time.Minute, engineConfig.MaintenanceInterval)

	usersConfig, ok := engineConfig.Domains["users"]
	assert.True(t, ok)
	assert.Equal(t, 10, usersConfig.MaxEntries)
	assert.Equal(t, 5*time.Minute, usersConfig.DefaultTTL)
	assert.False(t, usersConfig.EnableCompression)
}

func testLoadMissingFile(t *testing.T) {
	_, err := NewViperConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func testLoadInvalidConfig(t *testing.T) {
	invalidYAML := `
defaults:
  max_entries: -5
  max_size: 1048576
  default_ttl: 30m
`
	configFile := writeTestConfig(t, invalidYAML)

	_, err := NewViperConfig(configFile)
	assert.Error(t, err)
}

func testReloadValidUpdate(t *testing.T) {
	configFile := writeTestConfig(t, testConfigYAML)

	viperConfig, err := NewViperConfig(configFile)
	assert.NoError(t, err)

	notified := 0
	viperConfig.Subscribe(func(engineConfig *EngineConfig) {
		notified++
		assert.Equal(t, 200, engineConfig.Defaults.MaxEntries)
	})

	updated := strings.Replace(testConfigYAML, "max_entries: 100", "max_entries: 200", 1)
	assert.NoError(t, os.WriteFile(configFile, []byte(updated), 0666))

	viperConfig.reload()

	assert.Equal(t, 200, viperConfig.GetConfig().Defaults.MaxEntries)
	assert.Equal(t, 1, notified)
}

func testReloadInvalidUpdateRejected(t *testing.T) {
	configFile := writeTestConfig(t, testConfigYAML)

	viperConfig, err := NewViperConfig(configFile)
	assert.NoError(t, err)

	notified := 0
	viperConfig.Subscribe(func(engineConfig *EngineConfig) {
		notified++
	})

	// valid YAML with an invalid value
	invalid := strings.Replace(testConfigYAML, "max_entries: 100", "max_entries: -5", 1)
	assert.NoError(t, os.WriteFile(configFile, []byte(invalid), 0666))

	viperConfig.reload()

	assert.Equal(t, 100, viperConfig.GetConfig().Defaults.MaxEntries)
	assert.Equal(t, 0, notified)

	// unparseable file
	assert.NoError(t, os.WriteFile(configFile, []byte("defaults: [broken"), 0666))

	viperConfig.reload()

	assert.Equal(t, 100, viperConfig.GetConfig().Defaults.MaxEntries)
	assert.Equal(t, 0, notified)
}
