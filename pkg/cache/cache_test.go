package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"meetpoint/pkg/cache"
)

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func newTestClient(t *testing.T) (*cache.Client, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return cache.NewFromClient(rdb), mr
}

func TestSetGetRoundTrip(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	want := payload{Name: "lunch", Count: 3}
	require.NoError(t, c.SetJSON(ctx, "k1", want, time.Minute))

	var got payload
	found, err := c.GetJSON(ctx, "k1", &got)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, want, got)
}

func TestGetMissIsNotError(t *testing.T) {
	c, _ := newTestClient(t)

	var got payload
	found, err := c.GetJSON(context.Background(), "absent", &got)
	require.NoError(t, err)
	require.False(t, found)
}

func TestTTLExpiry(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.SetJSON(ctx, "k1", payload{Name: "short"}, time.Second))
	mr.FastForward(2 * time.Second)

	var got payload
	found, err := c.GetJSON(ctx, "k1", &got)
	require.NoError(t, err)
	require.False(t, found)
}

func TestDeleteMany(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.SetJSON(ctx, "a", payload{}, 0))
	require.NoError(t, c.SetJSON(ctx, "b", payload{}, 0))
	require.NoError(t, c.Delete(ctx, "a", "b", "missing"))

	var got payload
	found, err := c.GetJSON(ctx, "a", &got)
	require.NoError(t, err)
	require.False(t, found)
}

func TestScanPrefix(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.SetJSON(ctx, "sess:1:p:a", payload{}, 0))
	require.NoError(t, c.SetJSON(ctx, "sess:1:p:b", payload{}, 0))
	require.NoError(t, c.SetJSON(ctx, "sess:2:p:c", payload{}, 0))

	keys, err := c.ScanPrefix(ctx, "sess:1:p:")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"sess:1:p:a", "sess:1:p:b"}, keys)
}
