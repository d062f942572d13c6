package persist

import (
	"sync"
)

// MemoryPersister is a map-backed medium. It gives the persistence code
// path a durable-medium shape without touching disk, useful for tests and
// for callers that want mirrored state only for the process lifetime.
type MemoryPersister struct {
	records map[string][]byte
	mutex   sync.Mutex
}

// NewMemoryPersister creates a new MemoryPersister
func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{
		records: map[string][]byte{},
	}
}

// Write stores a serialized entry for the key
func (persister *MemoryPersister) Write(key string, data []byte) error {
	persister.mutex.Lock()
	defer persister.mutex.Unlock()

	stored := make([]byte, len(data))
	copy(stored, data)
	persister.records[key] = stored
	return nil
}

// Remove deletes the serialized entry for the key
func (persister *MemoryPersister) Remove(key string) error {
	persister.mutex.Lock()
	defer persister.mutex.Unlock()

	delete(persister.records, key)
	return nil
}

// ReadAll returns all serialized entries by key
func (persister *MemoryPersister) ReadAll() (map[string][]byte, error) {
	persister.mutex.Lock()
	defer persister.mutex.Unlock()

	records := map[string][]byte{}
	for key, data := range persister.records {
		stored := make([]byte, len(data))
		copy(stored, data)
		records[key] = stored
	}
	return records, nil
}

// Clear deletes all serialized entries
func (persister *MemoryPersister) Clear() error {
	persister.mutex.Lock()
	defer persister.mutex.Unlock()

	persister.records = map[string][]byte{}
	return nil
}
