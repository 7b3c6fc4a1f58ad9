package kv

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang/groupcache"

	"github.com/yeisme/sharevault/pkg/configs"
)

// GroupcacheKV 基于 Groupcache 的 KV 实现.
//
// groupcache 本身只读且不支持失效，这里给每次写入分配版本号，
// 以 "key@version" 作为 groupcache 的键，覆盖或删除后旧版本自然不再命中.
type GroupcacheKV struct {
	group *groupcache.Group
	peers *groupcache.HTTPPool

	mu   sync.RWMutex
	data map[string]gcEntry
	seq  uint64
}

type gcEntry struct {
	value   []byte // 可能带 TTL 信封
	version uint64
}

// NewGroupcacheKV 创建 Groupcache KV 实例，同名 group 在进程内只能创建一次.
func NewGroupcacheKV(_ context.Context, config any) (KVStore, error) {
	gcConfig, ok := config.(*configs.GroupcacheKVConfig)
	if !ok {
		return nil, fmt.Errorf("invalid Groupcache config")
	}

	kv := &GroupcacheKV{data: make(map[string]gcEntry)}
	kv.group = groupcache.NewGroup(gcConfig.Name, gcConfig.CacheBytes, groupcache.GetterFunc(kv.load))

	if len(gcConfig.Peers) > 0 {
		kv.peers = groupcache.NewHTTPPoolOpts(gcConfig.Self, &groupcache.HTTPPoolOptions{})
		kv.peers.Set(gcConfig.Peers...)
	}

	return kv, nil
}

func versionedKey(key string, version uint64) string {
	return key + "@" + strconv.FormatUint(version, 10)
}

// load groupcache 未命中时回源到本地数据，版本不一致视为不存在.
func (g *GroupcacheKV) load(_ context.Context, vkey string, dest groupcache.Sink) error {
	i := strings.LastIndexByte(vkey, '@')
	if i < 0 {
		return ErrNotFound
	}

	version, err := strconv.ParseUint(vkey[i+1:], 10, 64)
	if err != nil {
		return ErrNotFound
	}

	g.mu.RLock()
	e, ok := g.data[vkey[:i]]
	g.mu.RUnlock()

	if !ok || e.version != version {
		return ErrNotFound
	}

	return dest.SetBytes(e.value)
}

// Get 获取键的值.
func (g *GroupcacheKV) Get(ctx context.Context, key string) ([]byte, error) {
	g.mu.RLock()
	e, ok := g.data[key]
	g.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}

	var raw []byte
	if err := g.group.Get(ctx, versionedKey(key, e.version), groupcache.AllocatingByteSliceSink(&raw)); err != nil {
		return nil, ErrNotFound
	}

	val, expired, err := decodeWithTTL(raw, time.Now())
	if err != nil {
		return nil, err
	}

	if expired {
		g.deleteVersion(key, e.version)

		return nil, ErrNotFound
	}

	return val, nil
}

func (g *GroupcacheKV) deleteVersion(key string, version uint64) {
	g.mu.Lock()
	if cur, ok := g.data[key]; ok && cur.version == version {
		delete(g.data, key)
	}
	g.mu.Unlock()
}

// Set 设置键的值.
func (g *GroupcacheKV) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	encoded, err := encodeWithTTL(value, ttl, time.Now())
	if err != nil {
		return err
	}

	stored := make([]byte, len(encoded))
	copy(stored, encoded)

	g.mu.Lock()
	g.seq++
	g.data[key] = gcEntry{value: stored, version: g.seq}
	g.mu.Unlock()

	return nil
}

// Delete 删除键.
func (g *GroupcacheKV) Delete(_ context.Context, key string) error {
	g.mu.Lock()
	delete(g.data, key)
	g.mu.Unlock()

	return nil
}

// Exists 检查键是否存在.
func (g *GroupcacheKV) Exists(ctx context.Context, key string) (bool, error) {
	_, err := g.Get(ctx, key)
	if err == ErrNotFound {
		return false, nil
	}

	return err == nil, err
}

// Incr 计数器只存在于本节点.
func (g *GroupcacheKV) Incr(_ context.Context, key string) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var n int64

	if e, ok := g.data[key]; ok {
		val, expired, err := decodeWithTTL(e.value, time.Now())
		if err != nil {
			return 0, err
		}

		if !expired {
			if n, err = strconv.ParseInt(string(val), 10, 64); err != nil {
				return 0, fmt.Errorf("counter %s: %w", key, err)
			}
		}
	}

	n++
	g.seq++
	g.data[key] = gcEntry{value: []byte(strconv.FormatInt(n, 10)), version: g.seq}

	return n, nil
}

// Keys 获取匹配的键.
func (g *GroupcacheKV) Keys(_ context.Context, pattern string) ([]string, error) {
	now := time.Now()

	g.mu.RLock()
	defer g.mu.RUnlock()

	keys := make([]string, 0, len(g.data))
	for key, e := range g.data {
		if !matchKey(pattern, key) {
			continue
		}

		if _, expired, err := decodeWithTTL(e.value, now); err != nil || expired {
			continue
		}

		keys = append(keys, key)
	}

	return keys, nil
}

// Close groupcache 没有显式的关闭方法.
func (g *GroupcacheKV) Close() error {
	return nil
}

func init() {
	RegisterKVFactory(KVTypeGroupcache, NewGroupcacheKV)
}
