package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lucaspere/picktracker/pkg/models"
)

func TestRegistryDispatchUnknownChannel(t *testing.T) {
	r := NewRegistry()
	err := r.Dispatch(context.Background(), "pick.deleted", []byte("{}"))
	assert.Error(t, err)
}

func TestRegisterJSONDecodesPayload(t *testing.T) {
	r := NewRegistry()
	var got PickCreatedEvent
	RegisterJSON(r, ChannelPickCreated, func(_ context.Context, evt PickCreatedEvent) error {
		got = evt
		return nil
	})

	payload := []byte(`{"groupName":"degens","pick":{"id":42,"username":"alice","token":{"address":"abc"}}}`)
	require.NoError(t, r.Dispatch(context.Background(), ChannelPickCreated, payload))
	assert.Equal(t, "degens", got.GroupName)
	assert.Equal(t, int64(42), got.Pick.ID)
	assert.Equal(t, "abc", got.Pick.Token.Address)
}

func TestRegisterJSONMalformedPayload(t *testing.T) {
	r := NewRegistry()
	called := false
	RegisterJSON(r, ChannelPickCreated, func(_ context.Context, _ PickCreatedEvent) error {
		called = true
		return nil
	})

	err := r.Dispatch(context.Background(), ChannelPickCreated, []byte("{broken"))
	assert.Error(t, err)
	assert.False(t, called)
}

// fakeTransport replays a scripted notification sequence and then reports
// transport loss.
type fakeTransport struct {
	notifications []Notification
	listened      []string
	closed        bool
}

var errTransportDown = errors.New("connection reset")

func (f *fakeTransport) Listen(_ context.Context, channel string) error {
	f.listened = append(f.listened, channel)
	return nil
}

func (f *fakeTransport) WaitForNotification(ctx context.Context) (Notification, error) {
	if err := ctx.Err(); err != nil {
		return Notification{}, err
	}
	if len(f.notifications) == 0 {
		return Notification{}, errTransportDown
	}
	n := f.notifications[0]
	f.notifications = f.notifications[1:]
	return n, nil
}

func (f *fakeTransport) Close(context.Context) { f.closed = true }

func TestListenerSurvivesPoisonedMessage(t *testing.T) {
	transport := &fakeTransport{
		notifications: []Notification{
			{Channel: string(ChannelPickCreated), Payload: "{not json"},
			{Channel: string(ChannelPickCreated), Payload: `{"pick":{"id":7}}`},
		},
	}

	registry := NewRegistry()
	var handled []models.Pick
	RegisterJSON(registry, ChannelPickCreated, func(_ context.Context, evt PickCreatedEvent) error {
		handled = append(handled, evt.Pick)
		return nil
	})

	dial := func(context.Context) (Transport, error) { return transport, nil }
	listener := NewListener(dial, registry, zap.NewNop())

	err := listener.Run(context.Background())
	require.ErrorIs(t, err, errTransportDown)

	// The malformed payload was skipped, the well-formed one processed.
	require.Len(t, handled, 1)
	assert.Equal(t, int64(7), handled[0].ID)
	assert.Equal(t, []string{string(ChannelPickCreated)}, transport.listened)
	// the lost transport is cleaned up before the caller redials
	assert.True(t, transport.closed)
}

func TestListenerStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	transport := &fakeTransport{}
	registry := NewRegistry()
	RegisterJSON(registry, ChannelPickCreated, func(context.Context, PickCreatedEvent) error { return nil })

	listener := NewListener(func(context.Context) (Transport, error) { return transport, nil }, registry, zap.NewNop())

	done := make(chan error, 1)
	go func() { done <- listener.Run(ctx) }()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("listener did not stop on cancel")
	}
}
