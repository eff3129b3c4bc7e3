// Package cache 缓存层 mock 实现
package cache

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ============================================================================
// MemCache - 内存版 SessionCache 实现（用于测试）
// ============================================================================

// MemCache 内存会话缓存，带 TTL 语义
type MemCache struct {
	mu      sync.Mutex
	entries map[string]memEntry
	byUser  map[string]map[string]bool // userID → key 集合
}

type memEntry struct {
	entry     *SessionEntry
	expiresAt time.Time
}

// NewMemCache 创建内存缓存实例
func NewMemCache() *MemCache {
	return &MemCache{
		entries: make(map[string]memEntry),
		byUser:  make(map[string]map[string]bool),
	}
}

func (c *MemCache) GetSession(ctx context.Context, key string) (*SessionEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || time.Now().After(e.expiresAt) {
		delete(c.entries, key)
		return nil, nil
	}
	cp := *e.entry
	return &cp, nil
}

func (c *MemCache) SetSession(ctx context.Context, key string, entry *SessionEntry, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *entry
	c.entries[key] = memEntry{entry: &cp, expiresAt: time.Now().Add(ttl)}
	if c.byUser[entry.UserID] == nil {
		c.byUser[entry.UserID] = make(map[string]bool)
	}
	c.byUser[entry.UserID][key] = true
	return nil
}

func (c *MemCache) InvalidateSession(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		delete(c.byUser[e.entry.UserID], key)
	}
	delete(c.entries, key)
	return nil
}

func (c *MemCache) InvalidateUserSessions(ctx context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.byUser[userID] {
		delete(c.entries, key)
	}
	delete(c.byUser, userID)
	return nil
}

func (c *MemCache) Ping(ctx context.Context) (time.Duration, error) {
	return time.Microsecond, nil
}

func (c *MemCache) Close() error { return nil }

// Len 当前条目数（测试断言用）
func (c *MemCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// ============================================================================
// UnreachableCache - 全操作失败的 SessionCache 实现（用于测试降级路径）
// ============================================================================

// ErrCacheUnavailable 模拟缓存服务不可达
var ErrCacheUnavailable = errors.New("cache unavailable")

// UnreachableCache 所有操作都返回错误的缓存实现
type UnreachableCache struct{}

func (UnreachableCache) GetSession(ctx context.Context, key string) (*SessionEntry, error) {
	return nil, ErrCacheUnavailable
}
func (UnreachableCache) SetSession(ctx context.Context, key string, entry *SessionEntry, ttl time.Duration) error {
	return ErrCacheUnavailable
}
func (UnreachableCache) InvalidateSession(ctx context.Context, key string) error {
	return ErrCacheUnavailable
}
func (UnreachableCache) InvalidateUserSessions(ctx context.Context, userID string) error {
	return ErrCacheUnavailable
}
func (UnreachableCache) Ping(ctx context.Context) (time.Duration, error) {
	return 0, ErrCacheUnavailable
}
func (UnreachableCache) Close() error { return nil }

// 确保 mock 实现了 SessionCache 接口
var (
	_ SessionCache = (*MemCache)(nil)
	_ SessionCache = UnreachableCache{}
)
