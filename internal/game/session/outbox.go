// Package session provides connected-player tracking and per-player outbound
// message delivery for the game backend.
package session

import (
	"fmt"
	"sync"
)

// Message is a semantic outbound line. Color is an opaque presentation tag
// interpreted by the transport layer; combat never formats it.
type Message struct {
	Text  string
	Color string
}

// Outbox routes outbound messages to a Go channel, bridging the game
// systems to whatever transport goroutine serves the player.
type Outbox struct {
	username string
	messages chan Message
	mu       sync.Mutex
	closed   bool
}

// NewOutbox creates an Outbox for the given player username.
//
// Precondition: username must be non-empty.
// Postcondition: Returns an Outbox with an open message channel.
func NewOutbox(username string, bufferSize int) *Outbox {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Outbox{
		username: username,
		messages: make(chan Message, bufferSize),
	}
}

// Send enqueues msg for delivery.
//
// Postcondition: msg is enqueued, or an error if the outbox is closed or full.
// A full buffer drops the message rather than blocking game systems.
func (o *Outbox) Send(msg Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return fmt.Errorf("outbox for %s is closed", o.username)
	}
	select {
	case o.messages <- msg:
		return nil
	default:
		return fmt.Errorf("outbox for %s is full", o.username)
	}
}

// Messages returns the read-only message channel.
// The transport goroutine reads from this channel to deliver lines.
func (o *Outbox) Messages() <-chan Message {
	return o.messages
}

// Close marks the outbox as closed and closes the message channel.
//
// Postcondition: The channel is closed. Further Send calls return an error.
func (o *Outbox) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.closed {
		o.closed = true
		close(o.messages)
	}
	return nil
}

// IsClosed reports whether the outbox has been closed.
func (o *Outbox) IsClosed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}
