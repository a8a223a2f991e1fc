package coordinator

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *RedisClient {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisClient(rdb)
}

func TestAppendRangeLLen(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	key := MessagesKey("alice")

	for _, v := range []string{"m1", "m2", "m3"} {
		require.NoError(t, c.Append(ctx, key, []byte(v)))
	}

	n, err := c.LLen(ctx, key)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	all, err := c.Range(ctx, key, 0, -1)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"m1", "m2", "m3"}, toStrings(all))
}

func TestLTrimKeepsMostRecent(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	key := MessagesKey("bob")

	for i := 0; i < 5; i++ {
		require.NoError(t, c.Append(ctx, key, []byte{byte('a' + i)}))
	}
	// Keep only the newest 2 (trim the oldest 3).
	require.NoError(t, c.LTrim(ctx, key, 3, -1))

	all, err := c.Range(ctx, key, 0, -1)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "d", string(all[0]))
	assert.Equal(t, "e", string(all[1]))
}

func TestGetSetEXAndExpire(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	key := UploadStatusKey("up-1")

	_, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.SetEX(ctx, key, []byte("payload"), time.Hour))
	val, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "payload", string(val))

	require.NoError(t, c.Del(ctx, key))
	_, ok, err = c.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSetNXOnlyFirstCallerWins(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	key := InitDoneKey("carol")

	var wins int64
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := c.SetNX(ctx, key, []byte("1"), time.Hour)
			assert.NoError(t, err)
			if ok {
				atomic.AddInt64(&wins, 1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, wins)
}

func TestPopHeadAtomicTrimsExactlyN(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	key := MessagesKey("dave")

	for i := 0; i < 5; i++ {
		require.NoError(t, c.Append(ctx, key, []byte{byte('1' + i)}))
	}

	popped, err := c.PopHead(ctx, key, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3"}, toStrings(popped))

	remaining, err := c.Range(ctx, key, 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"4", "5"}, toStrings(remaining))
}

func TestPopHeadMoreThanAvailableReturnsAll(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	key := MessagesKey("erin")

	require.NoError(t, c.Append(ctx, key, []byte("only")))
	popped, err := c.PopHead(ctx, key, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"only"}, toStrings(popped))

	n, err := c.LLen(ctx, key)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)
}

func TestPopHeadZeroOrNegativeIsNoop(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	key := MessagesKey("frank")
	require.NoError(t, c.Append(ctx, key, []byte("m1")))

	popped, err := c.PopHead(ctx, key, 0)
	require.NoError(t, err)
	assert.Empty(t, popped)

	n, err := c.LLen(ctx, key)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func toStrings(bs [][]byte) []string {
	out := make([]string, len(bs))
	for i, b := range bs {
		out[i] = string(b)
	}
	return out
}
