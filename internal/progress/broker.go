package progress

import (
	"sync"

	"github.com/google/uuid"
)

// Broker tracks the active session per document. Sessions are registered
// when a classification run starts and released when the run finishes or
// the consumer disconnects, whichever comes last.
type Broker struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{
		sessions: make(map[uuid.UUID]*Session),
	}
}

// Open registers and returns the session for a document. Opening a
// document with an active session returns the existing one, so a consumer
// that attached early and the pipeline share a stream.
func (b *Broker) Open(documentID uuid.UUID) *Session {
	b.mu.Lock()
	defer b.mu.Unlock()

	if s, ok := b.sessions[documentID]; ok {
		return s
	}

	s := newSession(documentID)
	b.sessions[documentID] = s
	return s
}

// Get returns the active session for a document, if any.
func (b *Broker) Get(documentID uuid.UUID) (*Session, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.sessions[documentID]
	return s, ok
}

// Release removes a session from the registry. A consumer still holding
// the session can drain buffered events; the closed channel ends its loop.
func (b *Broker) Release(documentID uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.sessions, documentID)
}

// Active returns the number of registered sessions.
func (b *Broker) Active() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.sessions)
}
