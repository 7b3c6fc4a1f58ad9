package cache_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/sharevault/pkg/cache"
	"github.com/yeisme/sharevault/pkg/internal/storage/kv"
)

type testResource struct {
	ID    string   `json:"id"`
	Title string   `json:"title"`
	Tags  []string `json:"tags"`
}

func newCache(t *testing.T) *cache.Cache {
	t.Helper()

	store, err := kv.NewMemoryKV(context.Background(), nil)
	require.NoError(t, err)

	return cache.NewCache(store)
}

func TestGetSet(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()

	_, err := cache.Get[testResource](ctx, c, "missing")
	assert.ErrorIs(t, err, cache.ErrMiss)

	want := testResource{ID: "01J", Title: "Go notes", Tags: []string{"go", "notes"}}
	require.NoError(t, cache.Set(ctx, c, "res:1", want, time.Minute))

	got, err := cache.Get[testResource](ctx, c, "res:1")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	ok, err := c.Exists(ctx, "res:1")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, c.Delete(ctx, "res:1"))
	_, err = cache.Get[testResource](ctx, c, "res:1")
	assert.ErrorIs(t, err, cache.ErrMiss)
}

func TestGetOrSet(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()

	var calls atomic.Int32

	load := func() ([]testResource, error) {
		calls.Add(1)
		time.Sleep(10 * time.Millisecond)

		return []testResource{{ID: "a"}}, nil
	}

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			v, err := cache.GetOrSet(ctx, c, "list", load, time.Minute)
			assert.NoError(t, err)
			assert.Len(t, v, 1)
		}()
	}

	wg.Wait()
	assert.Equal(t, int32(1), calls.Load())

	// 已缓存
	_, err := cache.GetOrSet(ctx, c, "list", load, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetOrSetError(t *testing.T) {
	c := newCache(t)
	boom := errors.New("boom")

	_, err := cache.GetOrSet(context.Background(), c, "k", func() (int, error) { return 0, boom }, time.Minute)
	require.ErrorIs(t, err, boom)

	ok, err := c.Exists(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGenerationBump(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()

	gen, err := c.Generation(ctx, "resources")
	require.NoError(t, err)
	assert.Equal(t, int64(0), gen)

	before := cache.Key("resources", gen, "GET", "/api/resources")
	require.NoError(t, cache.Set(ctx, c, before, "stale", time.Minute))

	n, err := c.Bump(ctx, "resources")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	gen, err = c.Generation(ctx, "resources")
	require.NoError(t, err)
	assert.Equal(t, int64(1), gen)

	after := cache.Key("resources", gen, "GET", "/api/resources")
	assert.NotEqual(t, before, after)

	_, err = cache.Get[string](ctx, c, after)
	assert.ErrorIs(t, err, cache.ErrMiss)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "ns:3", cache.Key("ns", 3))
	assert.Equal(t, "ns:3:a:b", cache.Key("ns", 3, "a", "b"))
}

func TestClear(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, c, "resources:0:a", 1, 0))
	require.NoError(t, cache.Set(ctx, c, "resources:0:b", 2, 0))
	require.NoError(t, cache.Set(ctx, c, "other", 3, 0))

	require.NoError(t, c.Clear(ctx, "resources:*"))

	keys, err := c.Store().Keys(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"other"}, keys)
}

func BenchmarkGet(b *testing.B) {
	store, _ := kv.NewMemoryKV(context.Background(), nil)
	c := cache.NewCache(store)
	ctx := context.Background()

	_ = cache.Set(ctx, c, "res", testResource{ID: "1", Title: "t", Tags: []string{"x"}}, 0)

	b.ResetTimer()

	for b.Loop() {
		_, _ = cache.Get[testResource](ctx, c, "res")
	}
}
