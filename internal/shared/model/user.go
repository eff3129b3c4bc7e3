// Package model 定义核心数据模型
//
// user.go 包含用户与权限相关的数据模型定义：
//   - User：后台用户（认证主体）
//   - FullRole：系统角色枚举
//   - UserStatus：用户状态枚举
//   - CollectionGrant：单个内容集合的授权（集合 + 子角色）
package model

import "time"

// ============================================================================
// FullRole - 系统角色
// ============================================================================

// FullRole 系统级角色，决定默认集合访问范围与系统能力可达性
type FullRole string

const (
	RoleSuperAdmin       FullRole = "super_admin"
	RoleAdmin            FullRole = "admin"
	RoleAgent            FullRole = "agent"
	RoleMarketing        FullRole = "marketing"
	RoleSales            FullRole = "sales"
	RoleHR               FullRole = "hr"
	RoleCommunityManager FullRole = "community_manager"
	RoleUser             FullRole = "user"
)

// AllFullRoles 全部系统角色（用于校验与遍历）
var AllFullRoles = []FullRole{
	RoleSuperAdmin, RoleAdmin, RoleAgent, RoleMarketing,
	RoleSales, RoleHR, RoleCommunityManager, RoleUser,
}

// Valid 角色值是否合法
func (r FullRole) Valid() bool {
	for _, known := range AllFullRoles {
		if r == known {
			return true
		}
	}
	return false
}

// ============================================================================
// UserStatus - 用户状态
// ============================================================================

// UserStatus 用户状态
//
// 状态迁移：
//   - invited → active：首次登录成功时自动迁移
//   - active → suspended/deleted：管理员操作（需 manage_users 能力 + 角色层级高于目标）
//   - 任意状态 → active：管理员手动恢复
//
// 用户永不物理删除，deleted 为软删除
type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusInvited   UserStatus = "invited"
	UserStatusSuspended UserStatus = "suspended"
	UserStatusDeleted   UserStatus = "deleted"
)

// ============================================================================
// CollectionGrant - 集合授权
// ============================================================================

// CollectionGrant 对单个内容集合的授权：集合 + 子角色
type CollectionGrant struct {
	Collection Collection `json:"collection" bson:"collection"`
	SubRole    SubRole    `json:"sub_role" bson:"sub_role"`
}

// ============================================================================
// User - 后台用户
// ============================================================================

// User 后台用户
//
// PermissionOverrides 的查找优先级严格高于 CollectionPermissions：
// 运维人员可以针对单个集合加权或降权，而不必改动角色本身
type User struct {
	ID           string   `json:"id" bson:"_id"`
	ExternalID   string   `json:"external_id" bson:"external_id"` // 身份源签发的不透明标识，创建后不可变
	Email        string   `json:"email" bson:"email"`             // 唯一，统一小写
	FullName     string   `json:"full_name" bson:"full_name"`
	Phone        string   `json:"phone,omitempty" bson:"phone,omitempty"`
	AvatarKey    string   `json:"avatar_key,omitempty" bson:"avatar_key,omitempty"` // 对象存储中的头像 key
	PasswordHash string   `json:"-" bson:"password_hash"`                           // never expose in JSON
	FullRole     FullRole `json:"full_role" bson:"full_role"`

	Status UserStatus `json:"status" bson:"status"`

	// 权限：角色默认授权 + 显式覆盖（覆盖优先）
	CollectionPermissions []CollectionGrant `json:"collection_permissions" bson:"collection_permissions"`
	PermissionOverrides   []CollectionGrant `json:"permission_overrides" bson:"permission_overrides"`

	// 登录防护
	LoginAttempts int        `json:"login_attempts,omitempty" bson:"login_attempts"`
	LockedUntil   *time.Time `json:"locked_until,omitempty" bson:"locked_until,omitempty"`
	LastLoginAt   *time.Time `json:"last_login_at,omitempty" bson:"last_login_at,omitempty"`

	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// Locked 当前是否处于登录锁定期
func (u *User) Locked(now time.Time) bool {
	return u.LockedUntil != nil && now.Before(*u.LockedUntil)
}

// CanAuthenticate 状态是否允许认证（suspended/deleted 拒绝）
func (u *User) CanAuthenticate() bool {
	return u.Status == UserStatusActive || u.Status == UserStatusInvited
}
