package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"estate-admin/internal/shared/cache"
)

// session.go 会话缓存的 Redis 实现
//
// 数据布局：
//   session:<sha256(credential)>  → JSON(SessionEntry)，EX = TTL
//   user_sessions:<userID>        → SET{session key...}，按用户失效时遍历
//
// 索引 SET 的 TTL 跟随条目 TTL 续期，保证索引不长期滞留

func (s *Store) GetSession(ctx context.Context, key string) (*cache.SessionEntry, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	var entry cache.SessionEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		// 反序列化失败按未命中处理，条目留给 TTL 自然过期
		return nil, nil
	}
	return &entry, nil
}

func (s *Store) SetSession(ctx context.Context, key string, entry *cache.SessionEntry, ttl time.Duration) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	idxKey := cache.UserSessionsKey(entry.UserID)
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, key, raw, ttl)
	pipe.SAdd(ctx, idxKey, key)
	pipe.Expire(ctx, idxKey, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("set session: %w", err)
	}
	return nil
}

func (s *Store) InvalidateSession(ctx context.Context, key string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	// 先读出条目以便从用户索引中摘除；读不到也照常删 key
	if raw, err := s.client.Get(ctx, key).Bytes(); err == nil {
		var entry cache.SessionEntry
		if json.Unmarshal(raw, &entry) == nil && entry.UserID != "" {
			s.client.SRem(ctx, cache.UserSessionsKey(entry.UserID), key)
		}
	}

	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("invalidate session: %w", err)
	}
	return nil
}

func (s *Store) InvalidateUserSessions(ctx context.Context, userID string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	idxKey := cache.UserSessionsKey(userID)
	keys, err := s.client.SMembers(ctx, idxKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("list user sessions: %w", err)
	}

	keys = append(keys, idxKey)
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("invalidate user sessions: %w", err)
	}
	return nil
}

// Ping 测量缓存往返耗时
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	if err := s.client.Ping(ctx).Err(); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}

// 确保 Store 实现了 cache.SessionCache 接口
var _ cache.SessionCache = (*Store)(nil)
