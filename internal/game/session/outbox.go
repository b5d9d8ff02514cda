package session

import (
	"errors"
	"fmt"
	"sync"
)

// ErrOutboxClosed is returned by Push after Close.
var ErrOutboxClosed = errors.New("session: outbox closed")

// Outbox queues encoded messages for a session's single writer goroutine.
type Outbox struct {
	id       string
	messages chan []byte
	mu       sync.Mutex
	closed   bool
}

// NewOutbox creates an Outbox for session id. A non-positive size uses 16.
func NewOutbox(id string, size int) *Outbox {
	if size <= 0 {
		size = 16
	}
	return &Outbox{id: id, messages: make(chan []byte, size)}
}

// Push enqueues msg without blocking.
//
// Postcondition: returns ErrOutboxClosed after Close, or an error when the buffer is full.
func (o *Outbox) Push(msg []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return fmt.Errorf("session %s: %w", o.id, ErrOutboxClosed)
	}
	select {
	case o.messages <- msg:
		return nil
	default:
		return fmt.Errorf("session %s outbox buffer full", o.id)
	}
}

// Messages is drained by the writer goroutine; it is closed by Close.
func (o *Outbox) Messages() <-chan []byte {
	return o.messages
}

// Close closes the message channel. It is idempotent.
func (o *Outbox) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.closed {
		o.closed = true
		close(o.messages)
	}
}

// IsClosed reports whether Close has been called.
func (o *Outbox) IsClosed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}
