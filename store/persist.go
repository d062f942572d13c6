package store

import (
	"encoding/json"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/xerrors"

	"github.com/offsync/cache-common/utils"
)

// Persister is a durable key-value medium that mirrors store contents
// across process restarts. Implementations must tolerate concurrent use
// from a single background goroutine per store.
type Persister interface {
	// Write stores a serialized entry for the key
	Write(key string, data []byte) error
	// Remove deletes the serialized entry for the key, missing keys are a no-op
	Remove(key string) error
	// ReadAll returns all serialized entries by key
	ReadAll() (map[string][]byte, error)
	// Clear deletes all serialized entries
	Clear() error
}

// persistedEntry is the durable representation of a cache entry
type persistedEntry struct {
	Key        string   `json:"key"`
	Data       []byte   `json:"data"` // encoded payload, gzipped when Compressed
	Compressed bool     `json:"compressed,omitempty"`
	CreatedAt  string   `json:"created_at"`
	ExpiresAt  string   `json:"expires_at"`
	Tags       []string `json:"tags,omitempty"`
	SizeBytes  int64    `json:"size_bytes"`
	Priority   bool     `json:"priority,omitempty"`
}

// encodePersistedEntry serializes a persistedEntry
func encodePersistedEntry(entry *persistedEntry) ([]byte, error) {
	data, err := json.Marshal(entry)
	if err != nil {
		return nil, xerrors.Errorf("failed to encode persisted entry %s: %w", entry.Key, err)
	}
	return data, nil
}

// decodePersistedEntry deserializes a persistedEntry
func decodePersistedEntry(data []byte) (*persistedEntry, error) {
	entry := persistedEntry{}
	err := json.Unmarshal(data, &entry)
	if err != nil {
		return nil, xerrors.Errorf("failed to decode persisted entry: %w", err)
	}
	return &entry, nil
}

// parsePersistedTimes returns creation and expiration times of a persisted entry
func (entry *persistedEntry) parsePersistedTimes() (time.Time, time.Time, error) {
	createdAt, err := utils.ParseTime(entry.CreatedAt)
	if err != nil {
		return time.Time{}, time.Time{}, xerrors.Errorf("failed to parse creation time of persisted entry %s: %w", entry.Key, err)
	}

	expiresAt, err := utils.ParseTime(entry.ExpiresAt)
	if err != nil {
		return time.Time{}, time.Time{}, xerrors.Errorf("failed to parse expiration time of persisted entry %s: %w", entry.Key, err)
	}

	return createdAt, expiresAt, nil
}

type persistOpType int

const (
	persistOpWrite persistOpType = iota
	persistOpRemove
	persistOpClear
	persistOpFlush
)

type persistOp struct {
	opType persistOpType
	key    string
	data   []byte
	done   chan struct{} // non-nil for flush
}

// persistQueue serves fire-and-forget persistence mutations on a single
// background goroutine. Callers never wait for durable confirmation and
// medium failures never roll back in-memory state.
type persistQueue struct {
	storeName string
	persister Persister
	opChan    chan persistOp
	closed    bool
	mutex     sync.Mutex // lock for closed
	wg        sync.WaitGroup
}

// newPersistQueue creates a new persistQueue and starts its worker
func newPersistQueue(storeName string, persister Persister) *persistQueue {
	queue := &persistQueue{
		storeName: storeName,
		persister: persister,
		opChan:    make(chan persistOp, 1024),
	}

	queue.wg.Add(1)
	go queue.run()

	return queue
}

// run drains the op channel until the queue is stopped
func (queue *persistQueue) run() {
	logger := log.WithFields(log.Fields{
		"package":  "store",
		"struct":   "persistQueue",
		"function": "run",
	})

	defer utils.StackTraceFromPanic(logger)
	defer queue.wg.Done()

	for op := range queue.opChan {
		switch op.opType {
		case persistOpWrite:
			err := queue.persister.Write(op.key, op.data)
			if err != nil {
				logger.WithError(err).Warnf("failed to persist entry for store %s - %s", queue.storeName, op.key)
			}
		case persistOpRemove:
			err := queue.persister.Remove(op.key)
			if err != nil {
				logger.WithError(err).Warnf("failed to remove persisted entry for store %s - %s", queue.storeName, op.key)
			}
		case persistOpClear:
			err := queue.persister.Clear()
			if err != nil {
				logger.WithError(err).Warnf("failed to clear persisted entries for store %s", queue.storeName)
			}
		case persistOpFlush:
			close(op.done)
		}
	}
}

// enqueue submits an op, dropping it if the queue is already stopped
func (queue *persistQueue) enqueue(op persistOp) {
	queue.mutex.Lock()
	defer queue.mutex.Unlock()

	if queue.closed {
		if op.done != nil {
			close(op.done)
		}
		return
	}

	queue.opChan <- op
}

// enqueueWrite submits a write op
func (queue *persistQueue) enqueueWrite(key string, data []byte) {
	queue.enqueue(persistOp{opType: persistOpWrite, key: key, data: data})
}

// enqueueRemove submits a remove op
func (queue *persistQueue) enqueueRemove(key string) {
	queue.enqueue(persistOp{opType: persistOpRemove, key: key})
}

// enqueueClear submits a clear op
func (queue *persistQueue) enqueueClear() {
	queue.enqueue(persistOp{opType: persistOpClear})
}

// flush blocks until all previously enqueued ops are applied
func (queue *persistQueue) flush() {
	done := make(chan struct{})
	queue.enqueue(persistOp{opType: persistOpFlush, done: done})
	<-done
}

// stop drains pending ops and stops the worker
func (queue *persistQueue) stop() {
	queue.mutex.Lock()
	if queue.closed {
		queue.mutex.Unlock()
		return
	}
	queue.closed = true
	close(queue.opChan)
	queue.mutex.Unlock()

	queue.wg.Wait()
}
