package store

import (
	"container/list"
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"go.uber.org/atomic"

	"github.com/offsync/cache-common/utils"
)

// Store is a bounded in-memory cache. It enforces a maximum entry count
// and a maximum aggregate byte size by evicting least-recently-used
// entries, expires entries lazily by TTL, and optionally mirrors its
// contents to a durable medium.
type Store[T any] struct {
	name   string
	config *Config

	entries     map[string]*list.Element // elements hold *CacheEntry[T]
	accessOrder *list.List               // front = least recently used
	tagIndex    map[string]map[string]bool
	totalSize   int64

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64

	persistQueue *persistQueue

	mutex sync.Mutex
}

// NewStore creates a new Store. The configuration is validated up front,
// a misconfigured store fails construction rather than misbehaving later.
// When a persister is given, previously persisted entries that are not
// expired yet are reloaded before the store becomes usable.
func NewStore[T any](name string, config *Config, persister Persister) (*Store[T], error) {
	if config == nil {
		config = NewDefaultConfig()
	}

	err := config.Validate()
	if err != nil {
		return nil, err
	}

	store := &Store[T]{
		name:   name,
		config: config,

		entries:     map[string]*list.Element{},
		accessOrder: list.New(),
		tagIndex:    map[string]map[string]bool{},
	}

	if persister != nil {
		store.persistQueue = newPersistQueue(name, persister)
		store.loadPersisted(persister)
	}

	return store, nil
}

// GetName returns name of the store
func (store *Store[T]) GetName() string {
	return store.name
}

// GetConfig returns configuration of the store
func (store *Store[T]) GetConfig() *Config {
	return store.config
}

// loadPersisted reloads non-expired persisted entries into the store
func (store *Store[T]) loadPersisted(persister Persister) {
	logger := log.WithFields(log.Fields{
		"package":  "store",
		"struct":   "Store",
		"function": "loadPersisted",
	})

	persisted, err := persister.ReadAll()
	if err != nil {
		// in-memory state stays authoritative, start empty
		logger.WithError(err).Warnf("failed to read persisted entries for store %s", store.name)
		return
	}

	now := time.Now()
	loaded := []*CacheEntry[T]{}

	for key, data := range persisted {
		record, err := decodePersistedEntry(data)
		if err != nil {
			logger.WithError(err).Warnf("dropping unreadable persisted entry for store %s - %s", store.name, key)
			store.persistQueue.enqueueRemove(key)
			continue
		}

		createdAt, expiresAt, err := record.parsePersistedTimes()
		if err != nil {
			logger.WithError(err).Warnf("dropping unreadable persisted entry for store %s - %s", store.name, key)
			store.persistQueue.enqueueRemove(key)
			continue
		}

		if !now.Before(expiresAt) {
			// expired while the process was down, not an eviction
			store.persistQueue.enqueueRemove(key)
			continue
		}

		entry := &CacheEntry[T]{
			key:       record.Key,
			createdAt: createdAt,
			expiresAt: expiresAt,
			sizeBytes: record.SizeBytes,
			tags:      record.Tags,
			priority:  record.Priority,
		}

		if record.Compressed {
			entry.compressed = record.Data
		} else {
			value, err := decodePayload[T](record.Data)
			if err != nil {
				logger.WithError(err).Warnf("dropping unreadable persisted entry for store %s - %s", store.name, key)
				store.persistQueue.enqueueRemove(key)
				continue
			}
			entry.data = value
		}

		loaded = append(loaded, entry)
	}

	// oldest first so the reloaded access order degrades to FIFO
	sort.Slice(loaded, func(i int, j int) bool {
		return loaded[i].createdAt.Before(loaded[j].createdAt)
	})

	store.mutex.Lock()
	defer store.mutex.Unlock()

	for _, entry := range loaded {
		store.insertLocked(entry)
	}

	logger.Debugf("reloaded %d persisted entries for store %s", len(loaded), store.name)
}

// Get returns the value for the key if present and not expired.
// An expired entry is removed synchronously and counted as a miss.
// A hit promotes the entry to most-recently-used.
func (store *Store[T]) Get(key string) (T, bool) {
	var zero T

	store.mutex.Lock()

	element, ok := store.entries[key]
	if !ok {
		store.mutex.Unlock()
		store.misses.Inc()
		return zero, false
	}

	entry := element.Value.(*CacheEntry[T])
	if entry.IsExpired(time.Now()) {
		store.removeEntryLocked(element, false, true)
		store.mutex.Unlock()
		store.misses.Inc()
		return zero, false
	}

	value, err := entry.value()
	if err != nil {
		logger := log.WithFields(log.Fields{
			"package":  "store",
			"struct":   "Store",
			"function": "Get",
		})
		logger.WithError(err).Warnf("dropping unreadable entry for store %s - %s", store.name, key)

		store.removeEntryLocked(element, false, true)
		store.mutex.Unlock()
		store.misses.Inc()
		return zero, false
	}

	store.accessOrder.MoveToBack(element)
	entry.hitCount++
	store.mutex.Unlock()

	store.hits.Inc()
	return value, true
}

// GetFresh behaves like Get but leaves an expired entry in place, so a
// follow-up GetStale can still serve it as a degraded fallback. The
// expired entry is collected later by Get, eviction pressure or the
// expiry sweep.
func (store *Store[T]) GetFresh(key string) (T, bool) {
	var zero T

	store.mutex.Lock()

	element, ok := store.entries[key]
	if !ok {
		store.mutex.Unlock()
		store.misses.Inc()
		return zero, false
	}

	entry := element.Value.(*CacheEntry[T])
	if entry.IsExpired(time.Now()) {
		store.mutex.Unlock()
		store.misses.Inc()
		return zero, false
	}

	value, err := entry.value()
	if err != nil {
		store.removeEntryLocked(element, false, true)
		store.mutex.Unlock()
		store.misses.Inc()
		return zero, false
	}

	store.accessOrder.MoveToBack(element)
	entry.hitCount++
	store.mutex.Unlock()

	store.hits.Inc()
	return value, true
}

// GetStale returns the value for the key if physically present, even when
// expired. It does not promote the entry or touch hit/miss counters. It is
// the degraded fallback read used when an authoritative fetch fails.
func (store *Store[T]) GetStale(key string) (T, bool) {
	var zero T

	store.mutex.Lock()
	defer store.mutex.Unlock()

	element, ok := store.entries[key]
	if !ok {
		return zero, false
	}

	entry := element.Value.(*CacheEntry[T])
	value, err := entry.value()
	if err != nil {
		return zero, false
	}

	return value, true
}

// Set stores a value under the key. An existing entry for the key is fully
// superseded, including its TTL, tags and priority. Capacity is restored
// by evicting least-recently-used entries first, priority entries are
// skipped. A single entry larger than the size cap is still stored once no
// evictable entries remain, to avoid write starvation.
func (store *Store[T]) Set(key string, value T, options *SetOptions) error {
	encoded, err := encodePayload(value)
	if err != nil {
		return err
	}

	now := time.Now()

	ttl := store.config.DefaultTTL
	tags := []string(nil)
	priority := false
	if options != nil {
		if options.TTL > 0 {
			ttl = options.TTL
		}
		tags = options.Tags
		priority = options.Priority
	}

	entry := &CacheEntry[T]{
		key:       key,
		data:      value,
		createdAt: now,
		expiresAt: now.Add(ttl),
		sizeBytes: int64(len(encoded)),
		tags:      tags,
		priority:  priority,
	}

	stored := encoded
	if store.config.EnableCompression && int64(len(encoded)) >= store.config.CompressionThreshold {
		compressed, err := compressPayload(encoded)
		if err != nil {
			logger := log.WithFields(log.Fields{
				"package":  "store",
				"struct":   "Store",
				"function": "Set",
			})
			logger.WithError(err).Warnf("failed to compress entry for store %s - %s, storing uncompressed", store.name, key)
		} else {
			var zero T
			entry.data = zero
			entry.compressed = compressed
			entry.sizeBytes = int64(len(compressed))
			stored = compressed
		}
	}

	persistData := store.encodePersistRecord(entry, stored)

	store.mutex.Lock()

	if existing, ok := store.entries[key]; ok {
		// overwrite, the queued persist write below supersedes the old record
		store.removeEntryLocked(existing, false, false)
	}

	store.ensureCapacityLocked(entry.sizeBytes)
	store.insertLocked(entry)

	// enqueued under the lock so the mirror applies same-key mutations in
	// the order the store applied them
	if persistData != nil {
		store.persistQueue.enqueueWrite(key, persistData)
	}

	store.mutex.Unlock()

	return nil
}

// encodePersistRecord serializes an entry for the durable medium, returns
// nil when the store has no persister or encoding fails
func (store *Store[T]) encodePersistRecord(entry *CacheEntry[T], stored []byte) []byte {
	if store.persistQueue == nil {
		return nil
	}

	data, err := encodePersistedEntry(&persistedEntry{
		Key:        entry.key,
		Data:       stored,
		Compressed: entry.compressed != nil,
		CreatedAt:  utils.MakeTimeToString(entry.createdAt),
		ExpiresAt:  utils.MakeTimeToString(entry.expiresAt),
		Tags:       entry.tags,
		SizeBytes:  entry.sizeBytes,
		Priority:   entry.priority,
	})
	if err != nil {
		logger := log.WithFields(log.Fields{
			"package":  "store",
			"struct":   "Store",
			"function": "encodePersistRecord",
		})
		logger.WithError(err).Warnf("failed to persist entry for store %s - %s", store.name, entry.key)
		return nil
	}

	return data
}

// Delete removes the entry for the key, returns whether a removal occurred
func (store *Store[T]) Delete(key string) bool {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	element, ok := store.entries[key]
	if !ok {
		return false
	}

	store.removeEntryLocked(element, false, true)
	return true
}

// ClearByTags removes every entry whose tag set intersects the given tags,
// returns the number of entries removed
func (store *Store[T]) ClearByTags(tags []string) int {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	keys := map[string]bool{}
	for _, tag := range tags {
		for key := range store.tagIndex[tag] {
			keys[key] = true
		}
	}

	removed := 0
	for key := range keys {
		if element, ok := store.entries[key]; ok {
			store.removeEntryLocked(element, false, true)
			removed++
		}
	}

	return removed
}

// ClearExpired removes all expired entries, returns the number removed.
// Intended to be called periodically so reads stay cheap.
func (store *Store[T]) ClearExpired() int {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	now := time.Now()

	expired := []*list.Element{}
	for element := store.accessOrder.Front(); element != nil; element = element.Next() {
		entry := element.Value.(*CacheEntry[T])
		if entry.IsExpired(now) {
			expired = append(expired, element)
		}
	}

	for _, element := range expired {
		store.removeEntryLocked(element, false, true)
	}

	return len(expired)
}

// Clear empties the store and its persisted mirror
func (store *Store[T]) Clear() {
	store.mutex.Lock()

	store.entries = map[string]*list.Element{}
	store.accessOrder.Init()
	store.tagIndex = map[string]map[string]bool{}
	store.totalSize = 0

	store.mutex.Unlock()

	if store.persistQueue != nil {
		store.persistQueue.enqueueClear()
	}
}

// Statistics returns a snapshot of the store counters
func (store *Store[T]) Statistics() Statistics {
	store.mutex.Lock()
	entryCount := len(store.entries)
	totalSize := store.totalSize
	store.mutex.Unlock()

	hits := store.hits.Load()
	misses := store.misses.Load()

	hitRate := float64(0)
	if hits+misses > 0 {
		hitRate = float64(hits) / float64(hits+misses)
	}

	return Statistics{
		Hits:       hits,
		Misses:     misses,
		Evictions:  store.evictions.Load(),
		TotalSize:  totalSize,
		EntryCount: entryCount,
		HitRate:    hitRate,
	}
}

// Flush blocks until all pending persistence mutations are applied
func (store *Store[T]) Flush() {
	if store.persistQueue != nil {
		store.persistQueue.flush()
	}
}

// Release stops the persistence queue after draining it
func (store *Store[T]) Release() {
	if store.persistQueue != nil {
		store.persistQueue.stop()
	}
}

// insertLocked adds an entry at the most-recently-used position
func (store *Store[T]) insertLocked(entry *CacheEntry[T]) {
	element := store.accessOrder.PushBack(entry)
	store.entries[entry.key] = element
	store.totalSize += entry.sizeBytes

	for _, tag := range entry.tags {
		if taggedKeys, ok := store.tagIndex[tag]; ok {
			taggedKeys[entry.key] = true
		} else {
			store.tagIndex[tag] = map[string]bool{entry.key: true}
		}
	}
}

// removeEntryLocked unlinks an entry, fixing aggregate size and tag index
func (store *Store[T]) removeEntryLocked(element *list.Element, evicted bool, persist bool) {
	entry := element.Value.(*CacheEntry[T])

	delete(store.entries, entry.key)
	store.accessOrder.Remove(element)
	store.totalSize -= entry.sizeBytes

	for _, tag := range entry.tags {
		if taggedKeys, ok := store.tagIndex[tag]; ok {
			delete(taggedKeys, entry.key)
			if len(taggedKeys) == 0 {
				delete(store.tagIndex, tag)
			}
		}
	}

	if evicted {
		store.evictions.Inc()
	}

	if persist && store.persistQueue != nil {
		store.persistQueue.enqueueRemove(entry.key)
	}
}

// ensureCapacityLocked evicts least-recently-used entries until both the
// entry count and aggregate size bounds hold, or no evictable entries
// remain. Both predicates are re-checked after every eviction.
func (store *Store[T]) ensureCapacityLocked(newEntrySize int64) {
	logger := log.WithFields(log.Fields{
		"package":  "store",
		"struct":   "Store",
		"function": "ensureCapacityLocked",
	})

	for len(store.entries) >= store.config.MaxEntries || store.totalSize+newEntrySize > store.config.MaxSize {
		element := store.nextEvictableLocked()
		if element == nil {
			// nothing left to evict, the write proceeds anyway
			break
		}

		entry := element.Value.(*CacheEntry[T])
		logger.Debugf("evicting entry for store %s - %s, size %d", store.name, entry.key, entry.sizeBytes)

		store.removeEntryLocked(element, true, true)
	}
}

// nextEvictableLocked returns the least-recently-used non-priority entry
func (store *Store[T]) nextEvictableLocked() *list.Element {
	for element := store.accessOrder.Front(); element != nil; element = element.Next() {
		entry := element.Value.(*CacheEntry[T])
		if !entry.priority {
			return element
		}
	}
	return nil
}
