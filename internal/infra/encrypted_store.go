package infra

import (
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mutecomm/go-sqlcipher/v4" // registers the sqlite3 driver

	"github.com/farmstock/stockmon/internal/domain"
)

const storeDBName = "stockmon.db"

// EncryptedStore implements domain.KeyValueStore and domain.DaemonStateStore
// using a SQLCipher encrypted SQLite database.
type EncryptedStore struct {
	db     *sql.DB
	dbPath string
}

// NewEncryptedStore opens (or creates) the encrypted store in dataDir.
// The key is used as the SQLCipher passphrase via PRAGMA key.
func NewEncryptedStore(dataDir string, key []byte) (*EncryptedStore, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, storeDBName)
	dsn := fmt.Sprintf("%s?_pragma_key=x'%s'&_pragma_cipher_page_size=4096", dbPath, hex.EncodeToString(key))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open encrypted database: %w", err)
	}

	// A wrong key only surfaces on first access.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to encrypted database: %w", err)
	}

	s := &EncryptedStore{db: db, dbPath: dbPath}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

func (s *EncryptedStore) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS daemon_state (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		pid INTEGER NOT NULL,
		version TEXT NOT NULL DEFAULT '',
		started_at INTEGER NOT NULL,
		last_heartbeat INTEGER NOT NULL,
		last_cycle_at INTEGER NOT NULL DEFAULT 0,
		last_cycle_sent INTEGER NOT NULL DEFAULT 0,
		mode TEXT NOT NULL DEFAULT ''
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Get returns the value stored under key, or domain.ErrNotFound.
func (s *EncryptedStore) Get(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("key %q: %w", key, domain.ErrNotFound)
	}
	return value, err
}

// Set stores value under key.
func (s *EncryptedStore) Set(key, value string) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO kv (key, value, updated_at) VALUES (?, ?, ?)`,
		key, value, time.Now().Unix())
	return err
}

// SaveState records the running daemon.
func (s *EncryptedStore) SaveState(state domain.DaemonState) error {
	var lastCycle int64
	if !state.LastCycleAt.IsZero() {
		lastCycle = state.LastCycleAt.Unix()
	}
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO daemon_state
			(id, pid, version, started_at, last_heartbeat, last_cycle_at, last_cycle_sent, mode)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?)`,
		state.PID, state.Version, state.StartedAt.Unix(), state.LastHeartbeat.Unix(),
		lastCycle, state.LastCycleSent, state.Mode,
	)
	return err
}

// LoadState returns the recorded daemon, or nil when none is recorded.
func (s *EncryptedStore) LoadState() (*domain.DaemonState, error) {
	var (
		state                          domain.DaemonState
		started, heartbeat, lastCycle int64
	)
	err := s.db.QueryRow(`
		SELECT pid, version, started_at, last_heartbeat, last_cycle_at, last_cycle_sent, mode
		FROM daemon_state WHERE id = 1`).
		Scan(&state.PID, &state.Version, &started, &heartbeat, &lastCycle, &state.LastCycleSent, &state.Mode)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	state.StartedAt = time.Unix(started, 0)
	state.LastHeartbeat = time.Unix(heartbeat, 0)
	if lastCycle > 0 {
		state.LastCycleAt = time.Unix(lastCycle, 0)
	}
	return &state, nil
}

// ClearState removes the daemon record.
func (s *EncryptedStore) ClearState() error {
	_, err := s.db.Exec(`DELETE FROM daemon_state`)
	return err
}

// Path returns the database file path.
func (s *EncryptedStore) Path() string {
	return s.dbPath
}

// Close releases the database connection.
func (s *EncryptedStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

var (
	_ domain.KeyValueStore    = (*EncryptedStore)(nil)
	_ domain.DaemonStateStore = (*EncryptedStore)(nil)
)
