// Package persist provides durable key-value media used to mirror store
// contents across process restarts.
package persist

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"golang.org/x/xerrors"

	"github.com/offsync/cache-common/utils"
)

const diskRecordExtension = ".entry"

// diskRecord is the on-disk envelope, it carries the original key since
// file names are hashes
type diskRecord struct {
	Key  string `json:"key"`
	Data []byte `json:"data"`
}

// DiskPersister stores one file per entry under a root directory.
// File names are hashes of the entry key.
type DiskPersister struct {
	rootPath string
}

// NewDiskPersister creates a new DiskPersister
func NewDiskPersister(rootPath string) (*DiskPersister, error) {
	err := os.MkdirAll(rootPath, 0766)
	if err != nil {
		return nil, xerrors.Errorf("failed to make dir %s: %w", rootPath, err)
	}

	return &DiskPersister{
		rootPath: rootPath,
	}, nil
}

// GetRootPath returns root path of the persister
func (persister *DiskPersister) GetRootPath() string {
	return persister.rootPath
}

func (persister *DiskPersister) makeFilePath(key string) string {
	return filepath.Join(persister.rootPath, utils.MakeHash(key)+diskRecordExtension)
}

// Write stores a serialized entry for the key
func (persister *DiskPersister) Write(key string, data []byte) error {
	record, err := json.Marshal(&diskRecord{
		Key:  key,
		Data: data,
	})
	if err != nil {
		return xerrors.Errorf("failed to encode record for key %s: %w", key, err)
	}

	filePath := persister.makeFilePath(key)
	err = os.WriteFile(filePath, record, 0666)
	if err != nil {
		return xerrors.Errorf("failed to write record file %s: %w", filePath, err)
	}

	return nil
}

// Remove deletes the serialized entry for the key
func (persister *DiskPersister) Remove(key string) error {
	filePath := persister.makeFilePath(key)

	err := os.Remove(filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return xerrors.Errorf("failed to remove record file %s: %w", filePath, err)
	}

	return nil
}

// ReadAll returns all serialized entries by key. Unreadable record files
// are skipped so one corrupt file cannot poison a reload.
func (persister *DiskPersister) ReadAll() (map[string][]byte, error) {
	logger := log.WithFields(log.Fields{
		"package":  "persist",
		"struct":   "DiskPersister",
		"function": "ReadAll",
	})

	dirEntries, err := os.ReadDir(persister.rootPath)
	if err != nil {
		return nil, xerrors.Errorf("failed to read dir %s: %w", persister.rootPath, err)
	}

	records := map[string][]byte{}
	for _, dirEntry := range dirEntries {
		if dirEntry.IsDir() || !strings.HasSuffix(dirEntry.Name(), diskRecordExtension) {
			continue
		}

		filePath := filepath.Join(persister.rootPath, dirEntry.Name())
		data, err := os.ReadFile(filePath)
		if err != nil {
			logger.WithError(err).Warnf("skipping unreadable record file %s", filePath)
			continue
		}

		record := diskRecord{}
		err = json.Unmarshal(data, &record)
		if err != nil {
			logger.WithError(err).Warnf("skipping corrupt record file %s", filePath)
			continue
		}

		records[record.Key] = record.Data
	}

	return records, nil
}

// Clear deletes all serialized entries
func (persister *DiskPersister) Clear() error {
	dirEntries, err := os.ReadDir(persister.rootPath)
	if err != nil {
		return xerrors.Errorf("failed to read dir %s: %w", persister.rootPath, err)
	}

	for _, dirEntry := range dirEntries {
		if dirEntry.IsDir() || !strings.HasSuffix(dirEntry.Name(), diskRecordExtension) {
			continue
		}

		filePath := filepath.Join(persister.rootPath, dirEntry.Name())
		err = os.Remove(filePath)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return xerrors.Errorf("failed to remove record file %s: %w", filePath, err)
		}
	}

	return nil
}
