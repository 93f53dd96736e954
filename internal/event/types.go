// Package event defines the events labkeeper components publish on a Bus.
package event

import "time"

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a "category.action" identifier, e.g. "session.added".
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Event type identifiers.
const (
	TypeSessionAdded     = "session.added"
	TypeSessionRemoved   = "session.removed"
	TypeSessionDuplicate = "session.duplicate"
	TypeLaunchStarted    = "launch.started"
	TypeLaunchSucceeded  = "launch.succeeded"
	TypeLaunchFailed     = "launch.failed"
	TypeStoreChanged     = "store.changed"
)

type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Session Events
// -----------------------------------------------------------------------------

// SessionAddedEvent is emitted when a session becomes live in the registry,
// either from a fresh launch or from reconciliation.
type SessionAddedEvent struct {
	baseEvent
	SessionID string
	BaseURL   string
	Restored  bool // true when reattached from the persisted store
}

// NewSessionAddedEvent creates a SessionAddedEvent.
func NewSessionAddedEvent(sessionID, baseURL string, restored bool) SessionAddedEvent {
	return SessionAddedEvent{
		baseEvent: newBaseEvent(TypeSessionAdded),
		SessionID: sessionID,
		BaseURL:   baseURL,
		Restored:  restored,
	}
}

// SessionRemovedEvent is emitted once when a session leaves the registry.
type SessionRemovedEvent struct {
	baseEvent
	SessionID string
}

// NewSessionRemovedEvent creates a SessionRemovedEvent.
func NewSessionRemovedEvent(sessionID string) SessionRemovedEvent {
	return SessionRemovedEvent{
		baseEvent: newBaseEvent(TypeSessionRemoved),
		SessionID: sessionID,
	}
}

// SessionDuplicateEvent is emitted when an add is ignored because the
// session id is already registered.
type SessionDuplicateEvent struct {
	baseEvent
	SessionID string
}

// NewSessionDuplicateEvent creates a SessionDuplicateEvent.
func NewSessionDuplicateEvent(sessionID string) SessionDuplicateEvent {
	return SessionDuplicateEvent{
		baseEvent: newBaseEvent(TypeSessionDuplicate),
		SessionID: sessionID,
	}
}

// -----------------------------------------------------------------------------
// Launch Events
// -----------------------------------------------------------------------------

// LaunchStartedEvent is emitted when a launch attempt begins.
type LaunchStartedEvent struct {
	baseEvent
	LaunchID string
	Kind     string
}

// NewLaunchStartedEvent creates a LaunchStartedEvent.
func NewLaunchStartedEvent(launchID, kind string) LaunchStartedEvent {
	return LaunchStartedEvent{
		baseEvent: newBaseEvent(TypeLaunchStarted),
		LaunchID:  launchID,
		Kind:      kind,
	}
}

// LaunchSucceededEvent is emitted after a server is spawned and registered.
type LaunchSucceededEvent struct {
	baseEvent
	LaunchID  string
	SessionID string
	Port      int
	Duration  time.Duration
}

// NewLaunchSucceededEvent creates a LaunchSucceededEvent.
func NewLaunchSucceededEvent(launchID, sessionID string, port int, d time.Duration) LaunchSucceededEvent {
	return LaunchSucceededEvent{
		baseEvent: newBaseEvent(TypeLaunchSucceeded),
		LaunchID:  launchID,
		SessionID: sessionID,
		Port:      port,
		Duration:  d,
	}
}

// LaunchFailedEvent is emitted when a launch attempt ends in an error.
type LaunchFailedEvent struct {
	baseEvent
	LaunchID string
	Code     string
	Err      error
}

// NewLaunchFailedEvent creates a LaunchFailedEvent.
func NewLaunchFailedEvent(launchID, code string, err error) LaunchFailedEvent {
	return LaunchFailedEvent{
		baseEvent: newBaseEvent(TypeLaunchFailed),
		LaunchID:  launchID,
		Code:      code,
		Err:       err,
	}
}

// -----------------------------------------------------------------------------
// Store Events
// -----------------------------------------------------------------------------

// StoreChangedEvent is emitted when the persisted session file changes on disk.
type StoreChangedEvent struct {
	baseEvent
	Path string
}

// NewStoreChangedEvent creates a StoreChangedEvent.
func NewStoreChangedEvent(path string) StoreChangedEvent {
	return StoreChangedEvent{
		baseEvent: newBaseEvent(TypeStoreChanged),
		Path:      path,
	}
}
