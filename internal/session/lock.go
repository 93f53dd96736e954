package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Iron-Ham/labkeeper/internal/logging"
)

// ErrStoreLocked is returned when another live process holds the store lock
// for longer than the acquire timeout.
var ErrStoreLocked = errors.New("session store is locked by another process")

const unparseableLockAge = 2 * time.Second

// Lock is an acquired store lock file.
type Lock struct {
	PID        int       `json:"pid"`
	Hostname   string    `json:"hostname"`
	AcquiredAt time.Time `json:"acquired_at"`

	path string
}

// acquireLock creates path exclusively, waiting up to timeout while another
// live process holds it. A lock whose owner is dead is removed and retaken.
func acquireLock(path string, timeout time.Duration, clock clockwork.Clock, logger *logging.Logger) (*Lock, error) {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	deadline := clock.Now().Add(timeout)
	for {
		lock := &Lock{
			PID:        os.Getpid(),
			Hostname:   hostname,
			AcquiredAt: clock.Now(),
			path:       path,
		}
		err := writeExclusive(path, lock)
		if err == nil {
			return lock, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("failed to create lock file: %w", err)
		}

		if cleaned, cleanErr := CleanStaleLock(path, logger); cleanErr != nil {
			return nil, cleanErr
		} else if cleaned {
			continue
		}

		if !clock.Now().Before(deadline) {
			holder, _ := ReadLock(path)
			if holder != nil {
				return nil, fmt.Errorf("%w: PID %d on %s", ErrStoreLocked, holder.PID, holder.Hostname)
			}
			return nil, ErrStoreLocked
		}
		clock.Sleep(25 * time.Millisecond)
	}
}

func writeExclusive(path string, lock *Lock) error {
	data, err := json.Marshal(lock)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("failed to write lock file: %w", err)
	}
	return f.Close()
}

// Release removes the lock file if this process still owns it.
// Safe to call multiple times.
func (l *Lock) Release() error {
	if l == nil || l.path == "" {
		return nil
	}
	existing, err := ReadLock(l.path)
	if err != nil || existing.PID != l.PID {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// ReadLock reads a lock file.
func ReadLock(path string) (*Lock, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var lock Lock
	if err := json.Unmarshal(data, &lock); err != nil {
		return nil, fmt.Errorf("failed to parse lock file: %w", err)
	}
	lock.path = path
	return &lock, nil
}

// CleanStaleLock removes the lock at path if its owner is no longer running.
// An unparseable lock file is stale once it is older than a writer could
// plausibly take to fill it. Returns true if it removed one.
func CleanStaleLock(path string, logger *logging.Logger) (bool, error) {
	lock, err := ReadLock(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		info, statErr := os.Stat(path)
		if statErr != nil || time.Since(info.ModTime()) < unparseableLockAge {
			return false, nil
		}
		lock = &Lock{}
	} else if isProcessAlive(lock.PID) {
		return false, nil
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to remove stale lock: %w", err)
	}
	if logger != nil {
		logger.Warn("stale store lock cleaned", "old_pid", lock.PID)
	}
	return true, nil
}

// isProcessAlive checks if a process with the given PID is still running.
func isProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	// On Unix, sending signal 0 checks if process exists without affecting it
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// EPERM means the process exists but belongs to another user.
	err = process.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}
