package events

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus(t *testing.T) {
	bus := NewEventBusWithLogger(zerolog.Nop())

	var received Event
	bus.SubscribeFunc(TypeEpisodeStarted, func(e Event) {
		received = e
	})

	bus.Publish(NewEpisodeStartedEvent("env-1", 1, 4, true, 42))

	require.NotNil(t, received, "Event should have been received")
	assert.Equal(t, TypeEpisodeStarted, received.Type())
	assert.Equal(t, "env-1", received.EnvID())
	assert.False(t, received.Timestamp().IsZero())

	started, ok := received.(*EpisodeStartedEvent)
	require.True(t, ok)
	assert.Equal(t, int64(42), started.Seed)
	assert.Equal(t, 4, started.Size)
}

func TestEventBusMultipleHandlers(t *testing.T) {
	bus := NewEventBusWithLogger(zerolog.Nop())

	calls := 0
	id1 := bus.SubscribeFunc(TypeMoveApplied, func(e Event) { calls++ })
	id2 := bus.SubscribeFunc(TypeMoveApplied, func(e Event) { calls++ })
	assert.NotEqual(t, id1, id2)
	assert.Equal(t, 2, bus.GetFuncHandlerCount(TypeMoveApplied))

	bus.Publish(NewMoveAppliedEvent("env-1", 1, 1, 2, 4, true))
	bus.Publish(NewTileSpawnedEvent("env-1", 1, 1, 0, 0, 2))

	assert.Equal(t, 2, calls, "only move.applied handlers should run")
}

type testSubscriber struct {
	id       string
	types    map[string]bool
	received []Event
}

func (s *testSubscriber) ID() string                         { return s.id }
func (s *testSubscriber) InterestedIn(eventType string) bool { return s.types[eventType] }
func (s *testSubscriber) HandleEvent(e Event)                { s.received = append(s.received, e) }

func TestEventBusSubscribers(t *testing.T) {
	bus := NewEventBusWithLogger(zerolog.Nop())
	sub := &testSubscriber{id: "s1", types: map[string]bool{TypeEpisodeTerminated: true}}

	bus.Subscribe(sub)
	assert.Equal(t, 1, bus.GetSubscriberCount())

	bus.Publish(NewMoveAppliedEvent("env-1", 1, 3, 0, 0, false))
	bus.Publish(NewEpisodeTerminatedEvent("env-1", 1, 3, 128, 32))
	require.Len(t, sub.received, 1)
	assert.Equal(t, TypeEpisodeTerminated, sub.received[0].Type())

	bus.Unsubscribe("s1")
	assert.Equal(t, 0, bus.GetSubscriberCount())
	bus.Publish(NewEpisodeTerminatedEvent("env-1", 2, 9, 256, 64))
	assert.Len(t, sub.received, 1)
}

func TestEventBusPanicIsolation(t *testing.T) {
	bus := NewEventBusWithLogger(zerolog.Nop())

	secondRan := false
	bus.SubscribeFunc(TypeActionRejected, func(e Event) { panic("boom") })
	bus.SubscribeFunc(TypeActionRejected, func(e Event) { secondRan = true })

	assert.NotPanics(t, func() {
		bus.Publish(NewActionRejectedEvent("env-1", 1, 0, 9, "invalid action"))
	})
	assert.True(t, secondRan)
}
