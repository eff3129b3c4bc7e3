// Package cache 缓存层类型定义
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"estate-admin/internal/shared/model"
)

// ============================================================================
// 缓存数据类型
// ============================================================================

// SessionEntry 会话验证结果的缓存形态
//
// 携带完整授权数据（角色 + 集合授权 + 覆盖），命中时授权判定
// 零次数据库往返。角色/状态变更时由管理端显式失效保持一致。
type SessionEntry struct {
	UserID                string                  `json:"user_id"`
	Email                 string                  `json:"email"`
	FullRole              model.FullRole          `json:"full_role"`
	Status                model.UserStatus        `json:"status"`
	CollectionPermissions []model.CollectionGrant `json:"collection_permissions"`
	PermissionOverrides   []model.CollectionGrant `json:"permission_overrides"`
	CachedAt              time.Time               `json:"cached_at"`
}

// User 还原为带类型的用户值（守卫注入 context 用；持久化字段不含在内）
func (e *SessionEntry) User() *model.User {
	return &model.User{
		ID:                    e.UserID,
		Email:                 e.Email,
		FullRole:              e.FullRole,
		Status:                e.Status,
		CollectionPermissions: e.CollectionPermissions,
		PermissionOverrides:   e.PermissionOverrides,
	}
}

// ============================================================================
// Key 前缀和 TTL 常量
// ============================================================================

const (
	// Key 前缀
	KeySession      = "session:"
	KeyUserSessions = "user_sessions:"

	// DefaultSessionTTL 会话缓存默认存活时间，对齐上游凭据的典型有效期
	DefaultSessionTTL = 6 * time.Hour

	// DefaultCommandTimeout 单条缓存命令超时
	DefaultCommandTimeout = 5 * time.Second
)

// SessionKey 由会话凭据派生缓存 key
//
// 凭据是 bearer 密钥，不能作为可见 key 明文存储，取 SHA-256 哈希
func SessionKey(credential string) string {
	sum := sha256.Sum256([]byte(credential))
	return KeySession + hex.EncodeToString(sum[:])
}

// UserSessionsKey 用户 → 活跃会话集合的索引 key
func UserSessionsKey(userID string) string {
	return KeyUserSessions + userID
}
