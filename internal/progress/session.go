// Package progress streams human-readable pipeline updates to SSE
// consumers. Each classification run owns an explicit session registered
// with a broker; there is no global mutable registry, and a consumer
// disconnecting never affects the pipeline that publishes.
package progress

import (
	"sync"

	"github.com/google/uuid"
)

// EventType discriminates the SSE event stream.
type EventType string

const (
	EventConnected EventType = "connected"
	EventProgress  EventType = "progress"
	EventComplete  EventType = "complete"
	EventError     EventType = "error"
)

// Event is one update in a session's ordered stream.
type Event struct {
	Type    EventType `json:"type"`
	Message string    `json:"message,omitempty"`
}

// sessionBuffer bounds how many undelivered events a session holds. A full
// pipeline run emits a few dozen updates; publishing past a stalled
// consumer drops the update rather than blocking the pipeline.
const sessionBuffer = 256

// Session carries the ordered event stream for one document's run. The
// pipeline publishes; at most one SSE consumer drains. A terminal event
// (complete or error) closes the stream; later publishes are ignored.
type Session struct {
	documentID uuid.UUID

	mu     sync.Mutex
	events chan Event
	closed bool
}

func newSession(documentID uuid.UUID) *Session {
	return &Session{
		documentID: documentID,
		events:     make(chan Event, sessionBuffer),
	}
}

// DocumentID returns the document this session tracks.
func (s *Session) DocumentID() uuid.UUID {
	return s.documentID
}

// Events returns the stream. It is closed after a terminal event.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Publish appends a progress update. Never blocks: with no consumer the
// buffer absorbs updates, and a full buffer drops the update.
func (s *Session) Publish(message string) {
	s.send(Event{Type: EventProgress, Message: message})
}

// Complete emits the terminal success event and closes the stream.
func (s *Session) Complete() {
	s.terminate(Event{Type: EventComplete})
}

// Fail emits the terminal error event and closes the stream.
func (s *Session) Fail(message string) {
	s.terminate(Event{Type: EventError, Message: message})
}

func (s *Session) send(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	select {
	case s.events <- e:
	default:
	}
}

func (s *Session) terminate(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	select {
	case s.events <- e:
	default:
	}

	s.closed = true
	close(s.events)
}
