package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Iron-Ham/labkeeper/internal/errors"
	"github.com/Iron-Ham/labkeeper/internal/logging"
)

// lockTimeout bounds how long Persist waits for another writer.
const lockTimeout = 5 * time.Second

// Store is the append-only session file shared by every labkeeper process
// of one user. Writes are serialized across processes with a lock file next
// to the store.
type Store struct {
	path   string
	clock  clockwork.Clock
	logger *logging.Logger

	mu sync.Mutex
}

// NewStore creates a Store for path. The file is created on first Persist.
func NewStore(path string, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Store{
		path:   path,
		clock:  clockwork.NewRealClock(),
		logger: logger.WithComponent("store"),
	}
}

// Path returns the store file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) lockPath() string {
	return s.path + ".lock"
}

// Persist appends rec to the store.
func (s *Store) Persist(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	lock, err := acquireLock(s.lockPath(), lockTimeout, s.clock, s.logger)
	if err != nil {
		return err
	}
	defer func() { _ = lock.Release() }()

	entries, err := s.readRaw()
	if errors.Is(err, errors.ErrSessionCorrupted) {
		aside := fmt.Sprintf("%s.corrupt-%d", s.path, s.clock.Now().Unix())
		s.logger.Warn("session store unreadable, moving aside", "path", s.path, "moved_to", aside, "error", err.Error())
		if renameErr := os.Rename(s.path, aside); renameErr != nil {
			return fmt.Errorf("failed to move corrupt store aside: %w", renameErr)
		}
		entries = nil
	} else if err != nil {
		return err
	}

	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	entries = append(entries, raw)

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session store: %w", err)
	}
	if err := atomicWriteFile(s.path, data, 0600); err != nil {
		return err
	}

	s.logger.Debug("session persisted", "session_id", rec.SessionID, "entries", len(entries))
	return nil
}

// Load returns every well-formed record in store order. Malformed entries
// are skipped and counted. A missing store is empty, not an error.
func (s *Store) Load() ([]Record, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.readRaw()
	if err != nil {
		return nil, 0, err
	}

	records := make([]Record, 0, len(entries))
	skipped := 0
	for i, raw := range entries {
		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			skipped++
			s.logger.Warn("skipping malformed session entry", "index", i, "error", err.Error())
			continue
		}
		if err := rec.Validate(); err != nil {
			skipped++
			s.logger.Warn("skipping invalid session entry", "index", i, "error", err.Error())
			continue
		}
		records = append(records, rec)
	}
	return records, skipped, nil
}

// readRaw returns the store's entries without decoding them, so entries
// this version cannot parse are carried forward untouched on append.
func (s *Store) readRaw() ([]json.RawMessage, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read session store: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errors.ErrSessionCorrupted, s.path, err)
	}
	return entries, nil
}

// atomicWriteFile writes data to a temporary file and renames it over path.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}
