package events

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recv(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "channel closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestRedisBus_PublishSubscribe(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	bus := NewRedisBus(client)

	ctx := context.Background()
	ch, cancel, err := bus.Subscribe(ctx, "u1")
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, bus.Publish(ctx, Event{Type: TypeProjectDeleted, UserID: "u1", ProjectID: "p1"}))
	require.NoError(t, bus.Publish(ctx, Event{Type: TypeProjectDeleted, UserID: "u2", ProjectID: "p2"}))

	ev := recv(t, ch)
	assert.Equal(t, "p1", ev.ProjectID)
	assert.False(t, ev.At.IsZero())

	select {
	case ev := <-ch:
		t.Fatalf("unexpected event for other user: %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRedisBus_CancelClosesChannel(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	ch, cancel, err := NewRedisBus(client).Subscribe(context.Background(), "u1")
	require.NoError(t, err)
	cancel()

	_, ok := <-ch
	assert.False(t, ok)
}

func TestLocalBus(t *testing.T) {
	bus := NewLocalBus()
	ctx, stop := context.WithCancel(context.Background())

	ch, cancel, err := bus.Subscribe(ctx, "u1")
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(), Event{Type: TypeProjectChanged, UserID: "u1"}))
	assert.Equal(t, TypeProjectChanged, recv(t, ch).Type)

	stop()
	cancel()
	_, ok := <-ch
	assert.False(t, ok)
}
