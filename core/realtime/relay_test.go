package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startRelayedHub(t *testing.T, ctx context.Context, addr string) *Hub {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })

	h := startHub(t)
	relay := NewRelay(client, "soundcheck:test", h.DeliverRemote)
	require.NoError(t, relay.Start(ctx))
	h.SetRelay(relay)
	return h
}

func TestRelayCrossesInstances(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	a := startRelayedHub(t, ctx, mr.Addr())
	b := startRelayedHub(t, ctx, mr.Addr())

	local := newFakeSession("local", 8)
	a.Register(local)
	a.Registry().Join("local", TrackChannel("T1"))

	remote := newFakeSession("remote", 8)
	b.Register(remote)
	b.Registry().Join("remote", TrackChannel("T1"))

	other := newFakeSession("other", 8)
	b.Register(other)
	b.Registry().Join("other", TrackChannel("T2"))

	a.Broadcast(TrackChannel("T1"), EventNewFeedback, "f1")

	assert.Equal(t, EventNewFeedback, remote.next(t).Type)
	assert.Equal(t, EventNewFeedback, local.next(t).Type)
	// The origin ignores its own copy coming back from redis.
	local.quiet(t)
	other.quiet(t)
}

func TestRelayPublishNeverBlocks(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 10 * time.Millisecond})
	t.Cleanup(func() { client.Close() })
	relay := NewRelay(client, "soundcheck:test", func(string, []byte) {})

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			relay.Publish("track-T1", []byte(`{}`))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked")
	}
}

func TestRelayOriginsAreDistinct(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	t.Cleanup(func() { client.Close() })

	a := NewRelay(client, "soundcheck:test", func(string, []byte) {})
	b := NewRelay(client, "soundcheck:test", func(string, []byte) {})
	assert.NotEmpty(t, a.Origin())
	assert.NotEqual(t, a.Origin(), b.Origin())
}
