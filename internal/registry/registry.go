// Package registry holds the authoritative in-memory set of live sessions.
//
// A session is keyed by its server process id. Each entry owns a one-way
// disposal closure that terminates the backing process; removal is always
// initiated through the registry, never by the process side.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Iron-Ham/labkeeper/internal/errors"
	"github.com/Iron-Ham/labkeeper/internal/event"
	"github.com/Iron-Ham/labkeeper/internal/logging"
	"github.com/Iron-Ham/labkeeper/internal/metrics"
	"github.com/Iron-Ham/labkeeper/internal/session"
)

// DisposeFunc terminates the process behind a session.
type DisposeFunc func() error

// Disposable removes its session from the registry when disposed.
type Disposable interface {
	Dispose() error
}

// DuplicateWarning is returned by Add when the session id is already live.
// It is a warning, not a failure: the registry is left unchanged.
type DuplicateWarning struct {
	SessionID string
}

func (w *DuplicateWarning) String() string {
	return fmt.Sprintf("session %s is already registered", w.SessionID)
}

type entry struct {
	record  session.Record
	dispose DisposeFunc
	seq     uint64
}

// Registry is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	nextSeq uint64

	bus     *event.Bus
	logger  *logging.Logger
	metrics *metrics.Collector
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(l *logging.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l.WithComponent("registry")
		}
	}
}

// WithMetrics reports the live session count to c.
func WithMetrics(c *metrics.Collector) Option {
	return func(r *Registry) { r.metrics = c }
}

// New creates an empty Registry publishing change events on bus. A nil bus
// gets a private one.
func New(bus *event.Bus, opts ...Option) *Registry {
	if bus == nil {
		bus = event.NewBus()
	}
	r := &Registry{
		entries: make(map[string]*entry),
		bus:     bus,
		logger:  logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Add registers a freshly launched session.
func (r *Registry) Add(rec session.Record, dispose DisposeFunc) (Disposable, *DuplicateWarning) {
	return r.add(rec, dispose, false)
}

// Restore registers a session reattached from the persisted store.
func (r *Registry) Restore(rec session.Record, dispose DisposeFunc) (Disposable, *DuplicateWarning) {
	return r.add(rec, dispose, true)
}

func (r *Registry) add(rec session.Record, dispose DisposeFunc, restored bool) (Disposable, *DuplicateWarning) {
	r.mu.Lock()
	if _, exists := r.entries[rec.SessionID]; exists {
		r.mu.Unlock()
		r.logger.Warn("duplicate session add ignored", "session_id", rec.SessionID)
		r.bus.Publish(event.NewSessionDuplicateEvent(rec.SessionID))
		return nil, &DuplicateWarning{SessionID: rec.SessionID}
	}
	r.nextSeq++
	seq := r.nextSeq
	r.entries[rec.SessionID] = &entry{record: rec.Clone(), dispose: dispose, seq: seq}
	n := len(r.entries)
	r.mu.Unlock()

	r.metrics.SetLiveSessions(n)
	r.logger.Info("session registered", "session_id", rec.SessionID, "base_url", rec.BaseURL, "restored", restored)
	r.bus.Publish(event.NewSessionAddedEvent(rec.SessionID, rec.BaseURL, restored))
	return &disposable{registry: r, sessionID: rec.SessionID, seq: seq}, nil
}

// Remove unregisters sessionID and runs its disposal. The entry is gone even
// if disposal fails. Returns ErrSessionNotFound if it was not registered.
func (r *Registry) Remove(sessionID string) error {
	return r.removeIf(sessionID, 0)
}

// removeIf removes sessionID only while it is still the entry registered
// with seq. A zero seq matches any entry.
func (r *Registry) removeIf(sessionID string, seq uint64) error {
	e, ok := r.take(sessionID, seq)
	if !ok {
		return fmt.Errorf("%w: %s", errors.ErrSessionNotFound, sessionID)
	}
	if e.dispose == nil {
		return nil
	}
	if err := e.dispose(); err != nil {
		r.logger.Warn("session disposal failed", "session_id", sessionID, "error", err.Error())
		return fmt.Errorf("failed to dispose session %s: %w", sessionID, err)
	}
	return nil
}

// Forget unregisters sessionID without running its disposal, for sessions
// whose process has already exited. Returns false if it was not registered.
func (r *Registry) Forget(sessionID string) bool {
	_, ok := r.take(sessionID, 0)
	return ok
}

// take deletes the entry and emits the removal event. Only the caller that
// actually deletes it publishes, so the event fires once per removal.
// A non-zero seq must match the entry's, since process ids are reused.
func (r *Registry) take(sessionID string, seq uint64) (*entry, bool) {
	r.mu.Lock()
	e, ok := r.entries[sessionID]
	if ok && seq != 0 && e.seq != seq {
		ok = false
	}
	if ok {
		delete(r.entries, sessionID)
	}
	n := len(r.entries)
	r.mu.Unlock()

	if !ok {
		return nil, false
	}
	r.metrics.SetLiveSessions(n)
	r.logger.Info("session removed", "session_id", sessionID)
	r.bus.Publish(event.NewSessionRemovedEvent(sessionID))
	return e, true
}

// Get returns a copy of the record for sessionID.
func (r *Registry) Get(sessionID string) (session.Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[sessionID]
	if !ok {
		return session.Record{}, false
	}
	return e.record.Clone(), true
}

// Contains reports whether sessionID is registered.
func (r *Registry) Contains(sessionID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[sessionID]
	return ok
}

// List returns copies of every live record in registration order.
func (r *Registry) List() []session.Record {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	records := make([]session.Record, len(entries))
	for i, e := range entries {
		records[i] = e.record.Clone()
	}
	return records
}

// IDs returns the live session ids in registration order.
func (r *Registry) IDs() []string {
	records := r.List()
	ids := make([]string, len(records))
	for i, rec := range records {
		ids[i] = rec.SessionID
	}
	return ids
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// OnChange subscribes handler to session added and removed events. The
// returned function unsubscribes.
func (r *Registry) OnChange(handler event.Handler) func() {
	added := r.bus.Subscribe(event.TypeSessionAdded, handler)
	removed := r.bus.Subscribe(event.TypeSessionRemoved, handler)
	return func() {
		r.bus.Unsubscribe(added)
		r.bus.Unsubscribe(removed)
	}
}

// Bus returns the bus change events are published on.
func (r *Registry) Bus() *event.Bus {
	return r.bus
}

type disposable struct {
	registry  *Registry
	sessionID string
	seq       uint64
	once      sync.Once
	err       error
}

func (d *disposable) Dispose() error {
	d.once.Do(func() {
		d.err = d.registry.removeIf(d.sessionID, d.seq)
	})
	return d.err
}
