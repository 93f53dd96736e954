// Package provider exposes the registry to consumers that display sessions
// and connect to them. A consumer registers a provider once and then queries
// it by session id.
package provider

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Iron-Ham/labkeeper/internal/errors"
	"github.com/Iron-Ham/labkeeper/internal/event"
	"github.com/Iron-Ham/labkeeper/internal/registry"
)

// Connection is what a consumer needs to reach one server.
type Connection struct {
	BaseURL         string            `json:"baseUrl"`
	Token           string            `json:"token"`
	AuthHeader      map[string]string `json:"authHeader,omitempty"`
	MappedDirectory string            `json:"mappedDirectory,omitempty"`
}

// Surface is the consumer-facing registration point over one Registry.
type Surface struct {
	registry *registry.Registry

	mu        sync.Mutex
	providers map[string]*Handle
}

// NewSurface creates a Surface over reg.
func NewSurface(reg *registry.Registry) *Surface {
	return &Surface{
		registry:  reg,
		providers: make(map[string]*Handle),
	}
}

// RegisterProvider returns the handle for id, creating it on first use.
// Registering the same id twice returns the same handle.
func (s *Surface) RegisterProvider(id, label string) *Handle {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h, ok := s.providers[id]; ok {
		return h
	}
	h := &Handle{ID: id, Label: label, registry: s.registry}
	s.providers[id] = h
	return h
}

// Providers returns the registered handles sorted by id.
func (s *Surface) Providers() []*Handle {
	s.mu.Lock()
	defer s.mu.Unlock()

	handles := make([]*Handle, 0, len(s.providers))
	for _, h := range s.providers {
		handles = append(handles, h)
	}
	sort.Slice(handles, func(i, j int) bool { return handles[i].ID < handles[j].ID })
	return handles
}

// Handle is one registered provider. It reads through to the registry.
type Handle struct {
	ID    string
	Label string

	registry *registry.Registry
}

// Resolve returns the connection for a live session.
func (h *Handle) Resolve(sessionID string) (Connection, error) {
	rec, ok := h.registry.Get(sessionID)
	if !ok {
		return Connection{}, fmt.Errorf("%w: %s", errors.ErrSessionNotFound, sessionID)
	}
	return Connection{
		BaseURL:         rec.BaseURL,
		Token:           rec.Token,
		AuthHeader:      rec.AuthHeader,
		MappedDirectory: rec.MappedDirectory,
	}, nil
}

// ListHandles returns the live session ids.
func (h *Handle) ListHandles() []string {
	return h.registry.IDs()
}

// OnHandlesChanged calls fn with the current ids after every add or removal.
// The returned function unsubscribes.
func (h *Handle) OnHandlesChanged(fn func(ids []string)) func() {
	return h.registry.OnChange(func(event.Event) {
		fn(h.registry.IDs())
	})
}

// RemoveHandle removes the session and terminates its server.
func (h *Handle) RemoveHandle(sessionID string) error {
	return h.registry.Remove(sessionID)
}
