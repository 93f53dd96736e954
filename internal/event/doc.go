// Package event provides a synchronous pub-sub bus so the registry, the
// launcher and the HTTP change stream can observe each other without direct
// dependencies.
//
// # Main Types
//
//   - [Event]: EventType() and Timestamp()
//   - [Bus]: thread-safe dispatcher
//   - [Handler]: func(Event)
//
// # Event Categories
//
// Session: [SessionAddedEvent], [SessionRemovedEvent], [SessionDuplicateEvent].
//
// Launch: [LaunchStartedEvent], [LaunchSucceededEvent], [LaunchFailedEvent].
//
// Store: [StoreChangedEvent], published by the store watcher.
//
// # Usage
//
//	bus := event.NewBus()
//	id := bus.Subscribe(event.TypeSessionRemoved, func(e event.Event) {
//	    removed := e.(event.SessionRemovedEvent)
//	    fmt.Println("gone:", removed.SessionID)
//	})
//	defer bus.Unsubscribe(id)
package event
