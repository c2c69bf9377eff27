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
	var got []Event
	d.Subscribe(EventAccessDenied, func(_ context.Context, e Event) error {
		got = append(got, e)
		return nil
	})

	err := d.Publish(context.Background(), Event{ID: "e-1", Type: EventAccessDenied})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "e-1", got[0].ID)

	// Unsubscribed types are dropped silently.
	err = d.Publish(context.Background(), Event{ID: "e-2", Type: EventTicketCreated})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestDispatcherContinuesPastHandlerError(t *testing.T) {
	d := NewInMemoryDispatcher()
	var secondCalled bool
	d.Subscribe(EventAuditWriteFailed, func(context.Context, Event) error {
		return errors.New("handler failure")
	})
	d.Subscribe(EventAuditWriteFailed, func(context.Context, Event) error {
		secondCalled = true
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventAuditWriteFailed})
	require.NoError(t, err)
	assert.True(t, secondCalled)
}
