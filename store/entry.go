package store

import (
	"time"
)

// CacheEntry is a single cached value with its lifecycle metadata
type CacheEntry[T any] struct {
	key        string
	data       T
	compressed []byte // gzip of the encoded payload, nil when stored uncompressed
	createdAt  time.Time
	expiresAt  time.Time
	hitCount   int64
	sizeBytes  int64
	tags       []string
	priority   bool
}

// GetKey returns key of the entry
func (entry *CacheEntry[T]) GetKey() string {
	return entry.key
}

// GetSize returns the stored size of the entry in bytes
func (entry *CacheEntry[T]) GetSize() int64 {
	return entry.sizeBytes
}

// GetCreationTime returns creation time of the entry
func (entry *CacheEntry[T]) GetCreationTime() time.Time {
	return entry.createdAt
}

// GetExpirationTime returns expiration time of the entry
func (entry *CacheEntry[T]) GetExpirationTime() time.Time {
	return entry.expiresAt
}

// GetHitCount returns the number of reads since the last write
func (entry *CacheEntry[T]) GetHitCount() int64 {
	return entry.hitCount
}

// GetTags returns tags of the entry
func (entry *CacheEntry[T]) GetTags() []string {
	return entry.tags
}

// IsPriority returns whether the entry is protected from eviction
func (entry *CacheEntry[T]) IsPriority() bool {
	return entry.priority
}

// IsExpired checks if the entry is expired at the given time
func (entry *CacheEntry[T]) IsExpired(now time.Time) bool {
	return !now.Before(entry.expiresAt)
}

// value returns the payload, decompressing transparently if needed
func (entry *CacheEntry[T]) value() (T, error) {
	if entry.compressed == nil {
		return entry.data, nil
	}

	var zero T
	encoded, err := decompressPayload(entry.compressed)
	if err != nil {
		return zero, err
	}

	return decodePayload[T](encoded)
}
