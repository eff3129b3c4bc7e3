// Package cache 会话缓存抽象接口
//
// 缓存是性能优化而非正确性依赖：实现返回错误时，
// 调用方（会话验证服务）按读取未命中 / 写入空操作降级处理。
package cache

import (
	"context"
	"time"
)

// SessionCache 会话验证结果缓存接口
//
// key 为会话凭据的稳定哈希（见 SessionKey），不存储原始凭据
type SessionCache interface {
	// GetSession 读取缓存条目；未命中返回 (nil, nil)
	GetSession(ctx context.Context, key string) (*SessionEntry, error)

	// SetSession 写入缓存条目并登记到用户会话索引
	SetSession(ctx context.Context, key string, entry *SessionEntry, ttl time.Duration) error

	// InvalidateSession 删除单个会话（登出）
	InvalidateSession(ctx context.Context, key string) error

	// InvalidateUserSessions 删除某用户的全部会话（角色/状态变更）
	InvalidateUserSessions(ctx context.Context, userID string) error

	// Ping 连通性探测，返回往返耗时（健康检查用，不参与授权判定）
	Ping(ctx context.Context) (time.Duration, error)

	Close() error
}
