package orchestrator

import (
	"sync/atomic"
	"time"
)

// emitGrace is how long Emit waits on a full channel before dropping.
const emitGrace = 100 * time.Millisecond

// EventEmitter fans the scheduler's event stream out to the single
// subscriber channel (watch TUI, headless printer, or a test drain).
// The stream is advisory: the execution report is the source of truth, so
// a subscriber that cannot keep up costs dropped events, never a stalled
// control loop.
type EventEmitter struct {
	events  chan Event
	dropped atomic.Uint64
}

// NewEventEmitter creates an emitter with the given channel buffer.
func NewEventEmitter(bufferSize int) *EventEmitter {
	return &EventEmitter{
		events: make(chan Event, bufferSize),
	}
}

// Emit delivers the event, waiting at most emitGrace on a full channel
// before dropping it.
func (e *EventEmitter) Emit(event Event) {
	select {
	case e.events <- event:
		return
	default:
	}

	timer := time.NewTimer(emitGrace)
	defer timer.Stop()
	select {
	case e.events <- event:
	case <-timer.C:
		e.dropped.Add(1)
	}
}

// DroppedCount returns how many events were dropped on a full channel.
func (e *EventEmitter) DroppedCount() uint64 {
	return e.dropped.Load()
}

// Events returns the subscriber channel. It is closed when the run ends.
func (e *EventEmitter) Events() <-chan Event {
	return e.events
}

// Close closes the subscriber channel. Call once, after the last Emit.
func (e *EventEmitter) Close() {
	close(e.events)
}
