package store

import (
	"time"

	"golang.org/x/xerrors"
)

const (
	// DefaultMaxEntries is the default maximum number of entries per store
	DefaultMaxEntries = 1000
	// DefaultMaxSize is the default maximum aggregate size per store
	DefaultMaxSize = int64(50 * 1024 * 1024) // 50MB
	// DefaultTTL is the default time-to-live for an entry
	DefaultTTL = 1 * time.Hour
	// DefaultCompressionThreshold is the default size over which payloads are compressed
	DefaultCompressionThreshold = int64(10 * 1024) // 10KB
)

// Config defines configuration of a store
type Config struct {
	MaxEntries           int           `json:"max_entries" mapstructure:"max_entries"`
	MaxSize              int64         `json:"max_size" mapstructure:"max_size"`
	DefaultTTL           time.Duration `json:"default_ttl" mapstructure:"default_ttl"`
	EnableCompression    bool          `json:"enable_compression" mapstructure:"enable_compression"`
	CompressionThreshold int64         `json:"compression_threshold" mapstructure:"compression_threshold"`
}

// NewDefaultConfig creates a Config with default values
func NewDefaultConfig() *Config {
	return &Config{
		MaxEntries:           DefaultMaxEntries,
		MaxSize:              DefaultMaxSize,
		DefaultTTL:           DefaultTTL,
		EnableCompression:    true,
		CompressionThreshold: DefaultCompressionThreshold,
	}
}

// Validate checks if the configuration is valid
func (config *Config) Validate() error {
	if config.MaxEntries <= 0 {
		return xerrors.Errorf("invalid max entries %d, must be > 0", config.MaxEntries)
	}

	if config.MaxSize <= 0 {
		return xerrors.Errorf("invalid max size %d, must be > 0", config.MaxSize)
	}

	if config.DefaultTTL <= 0 {
		return xerrors.Errorf("invalid default TTL %s, must be > 0", config.DefaultTTL)
	}

	if config.EnableCompression && config.CompressionThreshold <= 0 {
		return xerrors.Errorf("invalid compression threshold %d, must be > 0", config.CompressionThreshold)
	}

	return nil
}

// SetOptions defines per-entry options for a set operation
type SetOptions struct {
	// TTL overrides the store's default TTL when > 0
	TTL time.Duration
	// Tags are labels for bulk invalidation
	Tags []string
	// Priority protects the entry from LRU eviction
	Priority bool
}
