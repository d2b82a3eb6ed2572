package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type delivery struct {
	room  string
	frame string
}

func TestRedisRelayCrossInstance(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	newClient := func() *redis.Client {
		c := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = c.Close() })
		return c
	}

	gotA := make(chan delivery, 4)
	gotB := make(chan delivery, 4)
	relayA := NewRedisRelay(newClient(), "docsync:test", 8)
	relayB := NewRedisRelay(newClient(), "docsync:test", 8)
	require.NotEqual(t, relayA.InstanceID(), relayB.InstanceID())

	require.NoError(t, relayA.Start(ctx, func(room string, frame []byte) { gotA <- delivery{room, string(frame)} }))
	require.NoError(t, relayB.Start(ctx, func(room string, frame []byte) { gotB <- delivery{room, string(frame)} }))

	relayA.Publish("doc1", []byte(`{"event":"receive-changes","data":{"n":1}}`))
	relayA.Publish("doc1", []byte(`{"event":"receive-changes","data":{"n":2}}`))

	for _, want := range []string{`{"event":"receive-changes","data":{"n":1}}`, `{"event":"receive-changes","data":{"n":2}}`} {
		select {
		case d := <-gotB:
			require.Equal(t, "doc1", d.room)
			require.JSONEq(t, want, d.frame)
		case <-time.After(2 * time.Second):
			t.Fatal("frame not relayed to other instance")
		}
	}

	select {
	case d := <-gotA:
		t.Fatalf("instance received its own frame: %+v", d)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRedisRelayDropsWhenQueueFull(t *testing.T) {
	relay := NewRedisRelay(nil, "unused", 1)
	relay.Publish("doc", []byte(`{}`))
	relay.Publish("doc", []byte(`{}`))
	require.Len(t, relay.queue, 1)
}
