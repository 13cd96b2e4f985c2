package infra

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/farmstock/stockmon/internal/domain"
)

const fileStoreName = "stockmon.json"

type fileStoreData struct {
	Values map[string]string   `json:"values"`
	State  *domain.DaemonState `json:"state,omitempty"`
}

// FileStore implements domain.KeyValueStore and domain.DaemonStateStore
// with a single plaintext JSON file. Used when SQLCipher is unavailable.
type FileStore struct {
	path string
}

// NewFileStore creates a file store in dataDir.
func NewFileStore(dataDir string) (*FileStore, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &FileStore{path: filepath.Join(dataDir, fileStoreName)}, nil
}

// NewFileStoreWithPath creates a store at a specific path (for testing).
func NewFileStoreWithPath(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the store file path.
func (s *FileStore) Path() string {
	return s.path
}

// Get returns the value stored under key, or domain.ErrNotFound.
func (s *FileStore) Get(key string) (string, error) {
	data, err := s.read()
	if err != nil {
		return "", err
	}
	v, ok := data.Values[key]
	if !ok {
		return "", fmt.Errorf("key %q: %w", key, domain.ErrNotFound)
	}
	return v, nil
}

// Set stores value under key.
func (s *FileStore) Set(key, value string) error {
	return s.update(func(data *fileStoreData) {
		data.Values[key] = value
	})
}

// SaveState records the running daemon.
func (s *FileStore) SaveState(state domain.DaemonState) error {
	return s.update(func(data *fileStoreData) {
		data.State = &state
	})
}

// LoadState returns the recorded daemon, or nil when none is recorded.
func (s *FileStore) LoadState() (*domain.DaemonState, error) {
	data, err := s.read()
	if err != nil {
		return nil, err
	}
	return data.State, nil
}

// ClearState removes the daemon record.
func (s *FileStore) ClearState() error {
	return s.update(func(data *fileStoreData) {
		data.State = nil
	})
}

// Close is a no-op; every call opens the file on its own.
func (s *FileStore) Close() error {
	return nil
}

// update runs a read-modify-write under an exclusive lock so the daemon
// and CLI commands don't lose each other's writes.
func (s *FileStore) update(fn func(data *fileStoreData)) error {
	lockFile, err := os.OpenFile(s.path+".lock", os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("failed to open lock file: %w", err)
	}
	defer lockFile.Close()

	if err := syscall.Flock(int(lockFile.Fd()), syscall.LOCK_EX); err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer func() { _ = syscall.Flock(int(lockFile.Fd()), syscall.LOCK_UN) }()

	data, err := s.read()
	if err != nil {
		return err
	}
	fn(data)
	return s.atomicWrite(data)
}

func (s *FileStore) read() (*fileStoreData, error) {
	data := &fileStoreData{Values: make(map[string]string)}

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return data, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(raw, data); err != nil {
		return nil, fmt.Errorf("corrupt store file %s: %w", s.path, err)
	}
	if data.Values == nil {
		data.Values = make(map[string]string)
	}
	return data, nil
}

// atomicWrite writes the store to disk (write + rename).
func (s *FileStore) atomicWrite(data *fileStoreData) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}

	// Unique per process so concurrent writers never share a temp file.
	tmpPath := fmt.Sprintf("%s.%d.tmp", s.path, os.Getpid())
	if err := os.WriteFile(tmpPath, raw, 0600); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

var (
	_ domain.KeyValueStore    = (*FileStore)(nil)
	_ domain.DaemonStateStore = (*FileStore)(nil)
)
