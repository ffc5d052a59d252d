// Package event provides the in-process pub/sub bus that decouples combat
// outcomes from secondary systems (logging, achievements, UI) without combat
// knowing who listens.
package event

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Topic identifies a class of combat event.
type Topic string

// Combat event topics.
const (
	TopicAttack      Topic = "combat.attack"
	TopicCombatStart Topic = "combat.start"
	TopicFlee        Topic = "combat.flee"
	TopicUnconscious Topic = "combat.unconscious"
	TopicDeath       Topic = "combat.death"
	TopicRespawn     Topic = "combat.respawn"
)

// Event is one combat outcome published on the bus.
type Event struct {
	// Topic classifies the event.
	Topic Topic
	// RoomID is the room the event occurred in.
	RoomID string
	// Actor is the initiating entity (NPC entity ID or username).
	Actor string
	// Target is the affected entity, if any.
	Target string
	// Damage is the damage dealt, when applicable.
	Damage int
	// Hit reports whether an attack landed, when applicable.
	Hit bool
	// Round is the combat round the event belongs to, when applicable.
	Round int64
	// At is the wall-clock time the event was published.
	At time.Time
}

// Handler consumes a single event. Handlers run synchronously on the
// publishing goroutine and must be fast.
type Handler func(Event)

// Bus is a topic-keyed in-process pub/sub dispatcher.
// All methods are safe for concurrent use.
//
// Delivery is strictly additive: handler results and panics never affect
// the publisher's control flow. A panicking handler is logged and skipped.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Topic][]Handler
	logger   *zap.Logger
}

// NewBus creates an empty Bus.
//
// Precondition: logger must be non-nil.
func NewBus(logger *zap.Logger) *Bus {
	return &Bus{
		handlers: make(map[Topic][]Handler),
		logger:   logger,
	}
}

// Subscribe registers h for all events published on topic.
//
// Precondition: h must be non-nil.
func (b *Bus) Subscribe(topic Topic, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = append(b.handlers[topic], h)
}

// Publish delivers ev to every handler subscribed to ev.Topic, in
// subscription order. Sets ev.At if unset.
//
// Postcondition: every registered handler was invoked exactly once;
// handler panics are recovered and logged.
func (b *Bus) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[ev.Topic]))
	copy(handlers, b.handlers[ev.Topic])
	b.mu.RUnlock()

	for _, h := range handlers {
		b.deliver(h, ev)
	}
}

// SubscriberCount returns the number of handlers registered for topic.
func (b *Bus) SubscriberCount(topic Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[topic])
}

func (b *Bus) deliver(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Warn("event handler panicked",
				zap.String("topic", string(ev.Topic)),
				zap.Any("panic", r),
			)
		}
	}()
	h(ev)
}
