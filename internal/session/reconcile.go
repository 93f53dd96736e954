package session

// -----------------------------------------------------------------------------
// Process Inventory
// -----------------------------------------------------------------------------

// Inventory answers whether a process id is alive right now. It is queried
// at reconciliation time and never cached, since PIDs are recycled.
type Inventory interface {
	Contains(pid int) bool
}

// OSInventory checks liveness with signal 0.
type OSInventory struct{}

// Contains implements Inventory.
func (OSInventory) Contains(pid int) bool {
	return isProcessAlive(pid)
}

// StaticInventory is a fixed set of live pids.
type StaticInventory map[int]struct{}

// NewStaticInventory creates an inventory containing pids.
func NewStaticInventory(pids ...int) StaticInventory {
	inv := make(StaticInventory, len(pids))
	for _, pid := range pids {
		inv[pid] = struct{}{}
	}
	return inv
}

// Contains implements Inventory.
func (s StaticInventory) Contains(pid int) bool {
	_, ok := s[pid]
	return ok
}

// -----------------------------------------------------------------------------
// Reconciliation
// -----------------------------------------------------------------------------

// ReconcileResult describes one reconciliation pass.
type ReconcileResult struct {
	// Restored are live records not yet registered, safe to reactivate.
	Restored []Record
	// Stale are session ids whose process is gone.
	Stale []string
	// AlreadyRegistered are live session ids the registry already holds.
	AlreadyRegistered []string
	// Skipped counts malformed entries.
	Skipped int
}

// LoadAndReconcile loads the store and keeps the records whose process is
// in inv and whose session id registered does not already report. When the
// store holds several entries for one id, the latest wins.
//
// The error is informational: a corrupt store yields an empty result and the
// error, and callers continue starting up.
func (s *Store) LoadAndReconcile(inv Inventory, registered func(sessionID string) bool) (ReconcileResult, error) {
	var result ReconcileResult

	records, skipped, err := s.Load()
	result.Skipped = skipped
	if err != nil {
		return result, err
	}

	latest := make(map[string]int, len(records))
	for i, rec := range records {
		latest[rec.SessionID] = i
	}

	for i, rec := range records {
		if latest[rec.SessionID] != i {
			continue
		}
		pid, _ := rec.PID() // validated by Load

		switch {
		case !inv.Contains(pid):
			result.Stale = append(result.Stale, rec.SessionID)
		case registered != nil && registered(rec.SessionID):
			result.AlreadyRegistered = append(result.AlreadyRegistered, rec.SessionID)
		default:
			result.Restored = append(result.Restored, rec)
		}
	}

	s.logger.Info("reconciled session store",
		"restored", len(result.Restored),
		"stale", len(result.Stale),
		"already_registered", len(result.AlreadyRegistered),
		"skipped", result.Skipped)
	return result, nil
}
