package kv

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestMemoryKVTTL(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	m := newMemoryKV(clock.Now)

	require.NoError(t, m.Set(ctx, "short", []byte("x"), time.Minute))
	require.NoError(t, m.Set(ctx, "forever", []byte("y"), 0))

	clock.Advance(59 * time.Second)

	v, err := m.Get(ctx, "short")
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), v)

	clock.Advance(time.Second)

	_, err = m.Get(ctx, "short")
	assert.ErrorIs(t, err, ErrNotFound)

	keys, err := m.Keys(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"forever"}, keys)
}

func TestMemoryKVReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := newMemoryKV(time.Now)

	in := []byte("abc")
	require.NoError(t, m.Set(ctx, "k", in, 0))

	in[0] = 'z'

	out, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), out)

	out[1] = 'z'

	again, _ := m.Get(ctx, "k")
	assert.Equal(t, []byte("abc"), again)
}

func TestMemoryKVIncrConcurrent(t *testing.T) {
	ctx := context.Background()
	m := newMemoryKV(time.Now)

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, _ = m.Incr(ctx, "c")
		}()
	}

	wg.Wait()

	n, err := m.Incr(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, int64(51), n)
}

func TestTTLEnvelope(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	raw, err := encodeWithTTL([]byte("v"), 0, now)
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), raw)

	wrapped, err := encodeWithTTL([]byte("v"), time.Second, now)
	require.NoError(t, err)

	val, expired, err := decodeWithTTL(wrapped, now.Add(500*time.Millisecond))
	require.NoError(t, err)
	assert.False(t, expired)
	assert.Equal(t, []byte("v"), val)

	_, expired, err = decodeWithTTL(wrapped, now.Add(time.Second))
	require.NoError(t, err)
	assert.True(t, expired)

	_, _, err = decodeWithTTL([]byte(ttlMagic+"{broken"), now)
	assert.Error(t, err)
}

func TestMatchKey(t *testing.T) {
	assert.True(t, matchKey("", "a"))
	assert.True(t, matchKey("rc:*", "rc:abc"))
	assert.False(t, matchKey("rc:*", "gen:x"))
	assert.True(t, matchKey("exact", "exact"))
}
