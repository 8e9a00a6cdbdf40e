// Package core provides the fundamental building blocks of mongomoron.
// This file defines transaction lifecycle events and the per-connection
// dispatcher that delivers them to registered handlers.
package core

import "sync"

// Event represents a transaction lifecycle event emitted by a Connection.
type Event string

const (
	// EventBegin is emitted after a transaction started.
	EventBegin Event = "begin"
	// EventCommit is emitted after a commit attempt, successful or not.
	EventCommit Event = "commit"
	// EventAbort is emitted after an abort attempt, successful or not.
	EventAbort Event = "abort"
)

// TransactionEvent is the payload passed to event handlers.
type TransactionEvent struct {
	Event       Event
	Transaction *Transaction
	// Err is the outcome of the commit or abort, nil on success.
	Err error
}

// EventHandler is called synchronously, in registration order, on the
// goroutine that drove the transaction.
type EventHandler func(event TransactionEvent)

// eventDispatcher manages the handlers of one Connection.
type eventDispatcher struct {
	mutex       sync.RWMutex
	handlerList map[Event][]EventHandler
}

func newEventDispatcher() *eventDispatcher {
	return &eventDispatcher{handlerList: make(map[Event][]EventHandler)}
}

func (d *eventDispatcher) on(event Event, handler EventHandler) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.handlerList[event] = append(d.handlerList[event], handler)
}

func (d *eventDispatcher) emit(payload TransactionEvent) {
	d.mutex.RLock()
	hs := append([]EventHandler(nil), d.handlerList[payload.Event]...)
	d.mutex.RUnlock()
	for _, h := range hs {
		h(payload)
	}
}

// On registers handler for event.
//
// Example:
//
//	conn.On(core.EventCommit, func(e core.TransactionEvent) {
//		if e.Err == nil {
//			cache.Invalidate()
//		}
//	})
func (c *Connection) On(event Event, handler EventHandler) {
	c.events.on(event, handler)
}
