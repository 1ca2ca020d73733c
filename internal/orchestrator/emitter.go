package orchestrator

import (
	"log"
	"sync/atomic"
	"time"
)

// emitter delivers events to a single subscriber without ever blocking
// the run. A full channel gets one short grace period, then the event
// is dropped and counted.
type emitter struct {
	events  chan Event
	dropped atomic.Uint64
}

func newEmitter(bufferSize int) *emitter {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &emitter{events: make(chan Event, bufferSize)}
}

// emit sends an event, stamping it first.
func (e *emitter) emit(event Event) {
	event.Timestamp = time.Now()

	select {
	case e.events <- event:
		return
	default:
	}

	// Give a slow receiver a moment to drain before dropping.
	select {
	case e.events <- event:
	case <-time.After(100 * time.Millisecond):
		count := e.dropped.Add(1)
		if count%10 == 1 {
			log.Printf("[orchestrator] WARNING: event channel full, dropped event (total dropped: %d): type=%s", count, event.Type)
		}
	}
}

// Events returns the read-only subscriber channel.
func (e *emitter) Events() <-chan Event {
	return e.events
}

// Close closes the channel. Called once, after the run finishes.
func (e *emitter) Close() {
	close(e.events)
}
