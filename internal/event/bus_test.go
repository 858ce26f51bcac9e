package event

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBusPublishSubscribe(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	events, unsubscribe := bus.Subscribe()

	bus.Publish(New(TypeNotice, "hello"))

	got := <-events
	require.Equal(t, TypeNotice, got.Type)
	require.Equal(t, "hello", got.Payload)
	require.NotEmpty(t, got.ID)

	unsubscribe()
	unsubscribe()

	_, open := <-events
	require.False(t, open)

	require.NotPanics(t, func() { bus.Publish(New(TypeNotice, "late")) })
}

func TestBusDropsWhenSubscriberIsFull(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	events, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	for i := 0; i < 150; i++ {
		bus.Publish(New(TypeNavigate, i))
	}

	require.Len(t, events, 100)
}
