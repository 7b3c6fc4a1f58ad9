// Package cache 提供基于键值存储的泛型缓存实现.
//
// 值使用 sonic 编码，失效通过命名空间代数（generation）完成:
// 写操作调用 Bump 使代数加一，读路径把当前代数拼进键里，旧键自然过期.
//
// 基本用法:
//
//	c := cache.NewCache(kvStore)
//	gen, _ := c.Generation(ctx, "resources")
//	key := cache.Key("resources", gen, "list:abc")
//	v, err := cache.GetOrSet(ctx, c, key, load, time.Minute)
//
// 该包不提供额外的线程安全保证，取决于底层的KV存储实现.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"golang.org/x/sync/singleflight"

	"github.com/yeisme/sharevault/pkg/internal/storage/kv"
)

// ErrMiss 缓存未命中.
var ErrMiss = errors.New("cache: miss")

const genPrefix = "gen:"

// NamespaceResources 资源列表相关响应的缓存命名空间.
const NamespaceResources = "resources"

// Cache 基于KV存储的缓存实现.
type Cache struct {
	kvStore kv.KVStore
	group   singleflight.Group
}

// NewCache 创建一个新的缓存实例.
func NewCache(kvStore kv.KVStore) *Cache {
	return &Cache{
		kvStore: kvStore,
	}
}

// Store 返回底层 KV.
func (c *Cache) Store() kv.KVStore {
	return c.kvStore
}

// Key 组合带代数的缓存键.
func Key(ns string, gen int64, parts ...string) string {
	key := ns + ":" + strconv.FormatInt(gen, 10)
	for _, p := range parts {
		key += ":" + p
	}

	return key
}

// Get 泛型获取缓存值，未命中返回 ErrMiss.
func Get[T any](ctx context.Context, c *Cache, key string) (T, error) {
	var zero T

	data, err := c.kvStore.Get(ctx, key)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return zero, ErrMiss
		}

		return zero, err
	}

	var value T
	if err := sonic.Unmarshal(data, &value); err != nil {
		return zero, fmt.Errorf("failed to unmarshal cache value: %w", err)
	}

	return value, nil
}

// Set 泛型设置缓存值.
func Set[T any](ctx context.Context, c *Cache, key string, value T, ttl time.Duration) error {
	data, err := sonic.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}

	return c.kvStore.Set(ctx, key, data, ttl)
}

// Delete 删除缓存键.
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.kvStore.Delete(ctx, key)
}

// Exists 检查缓存键是否存在.
func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	return c.kvStore.Exists(ctx, key)
}

// GetOrSet 获取缓存值，未命中时调用 getter 并回写.
// 同一个键的并发未命中只会执行一次 getter.
func GetOrSet[T any](ctx context.Context, c *Cache, key string, getter func() (T, error), ttl time.Duration) (T, error) {
	var zero T

	if value, err := Get[T](ctx, c, key); err == nil {
		return value, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		value, err := getter()
		if err != nil {
			return nil, err
		}

		// 回写失败不影响返回值
		_ = Set(ctx, c, key, value, ttl)

		return value, nil
	})
	if err != nil {
		return zero, err
	}

	return v.(T), nil
}

// Generation 返回命名空间当前代数，从未 Bump 过时为 0.
func (c *Cache) Generation(ctx context.Context, ns string) (int64, error) {
	data, err := c.kvStore.Get(ctx, genPrefix+ns)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return 0, nil
		}

		return 0, err
	}

	gen, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt generation for %s: %w", ns, err)
	}

	return gen, nil
}

// Bump 使命名空间下所有缓存失效.
func (c *Cache) Bump(ctx context.Context, ns string) (int64, error) {
	return c.kvStore.Incr(ctx, genPrefix+ns)
}

// Clear 清空匹配 pattern 的缓存键，pattern 为空时清空全部.
func (c *Cache) Clear(ctx context.Context, pattern string) error {
	keys, err := c.kvStore.Keys(ctx, pattern)
	if err != nil {
		return err
	}

	for _, key := range keys {
		if delErr := c.kvStore.Delete(ctx, key); delErr != nil {
			return delErr
		}
	}

	return nil
}
