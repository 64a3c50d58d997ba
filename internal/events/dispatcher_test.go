package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcherDeliversToSubscribers(t *testing.T) {
	d := NewInMemoryDispatcher()

	var received []Event
	d.Subscribe(EventActionRecorded, func(_ context.Context, event Event) error {
		received = append(received, event)
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventActionRecorded, UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, received, 1)
	assert.Equal(t, "u1", received[0].UserID)
}

func TestDispatcherIgnoresUnsubscribedTypes(t *testing.T) {
	d := NewInMemoryDispatcher()

	calls := 0
	d.Subscribe(EventFirstRewardReceived, func(context.Context, Event) error {
		calls++
		return nil
	})

	require.NoError(t, d.Publish(context.Background(), Event{Type: EventMaturityStateChanged}))
	assert.Zero(t, calls)
}

func TestDispatcherHandlerErrorDoesNotStopDelivery(t *testing.T) {
	d := NewInMemoryDispatcher()

	second := false
	d.Subscribe(EventMaturityStateChanged, func(context.Context, Event) error {
		return errors.New("handler failure")
	})
	d.Subscribe(EventMaturityStateChanged, func(context.Context, Event) error {
		second = true
		return nil
	})

	require.NoError(t, d.Publish(context.Background(), Event{Type: EventMaturityStateChanged}))
	assert.True(t, second)
}
