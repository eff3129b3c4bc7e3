// Package storage 定义持久化存储层抽象接口
//
// 设计原则：依赖倒置 (DIP)
//   - 调用方只依赖接口，不知道具体实现
//   - 具体实现在子包中：mongostore/
//   - 初始化时通过依赖注入传入实现
//
// 缓存接口在独立包 cache/ 中，缓存不可用不影响存储层正确性。
package storage

import (
	"context"
	"time"

	"estate-admin/internal/shared/model"
)

// ============================================================================
// UserStore - 用户存储
// ============================================================================

// UserStore 用户存储接口
type UserStore interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByExternalID(ctx context.Context, externalID string) (*model.User, error)
	ListUsers(ctx context.Context) ([]*model.User, error)

	UpdateUserProfile(ctx context.Context, id, fullName, phone, avatarKey string) error
	UpdateUserPassword(ctx context.Context, id, passwordHash string) error

	// UpdateUserRole 变更角色并重新物化默认授权，清空覆盖条目
	UpdateUserRole(ctx context.Context, id string, role model.FullRole, grants []model.CollectionGrant) error
	UpdateUserOverrides(ctx context.Context, id string, overrides []model.CollectionGrant) error
	UpdateUserStatus(ctx context.Context, id string, status model.UserStatus) error

	// RecordLoginFailure 写入失败计数与锁定时间戳
	RecordLoginFailure(ctx context.Context, id string, attempts int, lockedUntil *time.Time) error
	// RecordLoginSuccess 清零失败计数、记录登录时间；status 用于 invited → active 迁移
	RecordLoginSuccess(ctx context.Context, id string, at time.Time, status model.UserStatus) error
}

// ============================================================================
// CatalogStore - 目录存储
// ============================================================================

// CatalogStore 内容目录存储接口
type CatalogStore interface {
	CreateEntry(ctx context.Context, entry *model.CatalogEntry) error
	GetEntry(ctx context.Context, collection model.Collection, id string) (*model.CatalogEntry, error)
	GetEntryBySlug(ctx context.Context, collection model.Collection, slug string) (*model.CatalogEntry, error)
	ListEntries(ctx context.Context, collection model.Collection) ([]*model.CatalogEntry, error)
	UpdateEntry(ctx context.Context, entry *model.CatalogEntry) error
	DeleteEntry(ctx context.Context, collection model.Collection, id string) error
	SetEntryStatus(ctx context.Context, collection model.Collection, id string, status model.EntryStatus) error
}

// ============================================================================
// AuditStore - 审计存储
// ============================================================================

// AuditStore 安全审计事件存储接口
type AuditStore interface {
	RecordAuditEvent(ctx context.Context, event *model.AuditEvent) error
	ListAuditEvents(ctx context.Context, limit int) ([]*model.AuditEvent, error)
}

// ============================================================================
// PersistentStore - 聚合接口
// ============================================================================

// PersistentStore 持久化存储的聚合接口
type PersistentStore interface {
	UserStore
	CatalogStore
	AuditStore

	// Ping 连通性检查（健康检查用）
	Ping(ctx context.Context) error
	Close() error
}
