package event_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/davrenn/emberfall/internal/game/event"
)

func TestBus_PublishDeliversInSubscriptionOrder(t *testing.T) {
	bus := event.NewBus(zap.NewNop())

	var order []string
	bus.Subscribe(event.TopicAttack, func(event.Event) { order = append(order, "first") })
	bus.Subscribe(event.TopicAttack, func(event.Event) { order = append(order, "second") })

	bus.Publish(event.Event{Topic: event.TopicAttack, RoomID: "gate"})
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestBus_TopicsAreIsolated(t *testing.T) {
	bus := event.NewBus(zap.NewNop())

	var deaths int
	bus.Subscribe(event.TopicDeath, func(event.Event) { deaths++ })

	bus.Publish(event.Event{Topic: event.TopicAttack})
	assert.Equal(t, 0, deaths)

	bus.Publish(event.Event{Topic: event.TopicDeath})
	assert.Equal(t, 1, deaths)
}

func TestBus_PublishWithNoSubscribersIsNoop(t *testing.T) {
	bus := event.NewBus(zap.NewNop())
	assert.NotPanics(t, func() {
		bus.Publish(event.Event{Topic: event.TopicFlee})
	})
}

func TestBus_HandlerPanicDoesNotStopDelivery(t *testing.T) {
	bus := event.NewBus(zap.NewNop())

	var delivered bool
	bus.Subscribe(event.TopicAttack, func(event.Event) { panic("boom") })
	bus.Subscribe(event.TopicAttack, func(event.Event) { delivered = true })

	assert.NotPanics(t, func() {
		bus.Publish(event.Event{Topic: event.TopicAttack})
	})
	assert.True(t, delivered)
}

func TestBus_PublishSetsTimestamp(t *testing.T) {
	bus := event.NewBus(zap.NewNop())

	var got event.Event
	bus.Subscribe(event.TopicDeath, func(ev event.Event) { got = ev })
	bus.Publish(event.Event{Topic: event.TopicDeath})

	require.False(t, got.At.IsZero())
}

func TestBus_SubscriberCount(t *testing.T) {
	bus := event.NewBus(zap.NewNop())
	assert.Equal(t, 0, bus.SubscriberCount(event.TopicAttack))
	bus.Subscribe(event.TopicAttack, func(event.Event) {})
	assert.Equal(t, 1, bus.SubscriberCount(event.TopicAttack))
}
