package model

// permission.go 包含权限模型的封闭枚举：
//   - Collection：受管内容集合
//   - SubRole：集合内能力层级
//   - Action：集合内容操作
//   - SystemCapability：系统级特权能力

// ============================================================================
// Collection - 内容集合
// ============================================================================

// Collection 受管的资源集合，编译期固定
type Collection string

const (
	CollectionProjects   Collection = "projects"
	CollectionDevelopers Collection = "developers"
	CollectionHotels     Collection = "hotels"
	CollectionMalls      Collection = "malls"
	CollectionPlots      Collection = "plots"
	CollectionProperties Collection = "properties"
	CollectionBlogs      Collection = "blogs"
	CollectionUsers      Collection = "users"
	CollectionSystem     Collection = "system"
)

// AllCollections 全部集合
var AllCollections = []Collection{
	CollectionProjects, CollectionDevelopers, CollectionHotels,
	CollectionMalls, CollectionPlots, CollectionProperties,
	CollectionBlogs, CollectionUsers, CollectionSystem,
}

// ContentCollections 内容类集合（有目录 CRUD 路由的部分）
var ContentCollections = []Collection{
	CollectionProjects, CollectionDevelopers, CollectionHotels,
	CollectionMalls, CollectionPlots, CollectionProperties,
	CollectionBlogs,
}

// Valid 集合值是否合法
func (c Collection) Valid() bool {
	for _, known := range AllCollections {
		if c == known {
			return true
		}
	}
	return false
}

// ============================================================================
// SubRole - 集合内子角色
// ============================================================================

// SubRole 集合内能力层级，observer < contributor < moderator < collection_admin
//
// 不变式：动作集合沿此顺序单调递增——上一级允许的动作下一级必须全部允许
type SubRole string

const (
	SubRoleObserver        SubRole = "observer"
	SubRoleContributor     SubRole = "contributor"
	SubRoleModerator       SubRole = "moderator"
	SubRoleCollectionAdmin SubRole = "collection_admin"
)

// SubRolesAscending 子角色按能力升序排列
var SubRolesAscending = []SubRole{
	SubRoleObserver, SubRoleContributor, SubRoleModerator, SubRoleCollectionAdmin,
}

// Valid 子角色值是否合法
//
// 未知子角色在能力表中没有条目、一律判拒，写入前必须在这里拦下，
// 否则拼写错误会静默变成该集合上的全量拒绝覆盖
func (s SubRole) Valid() bool {
	for _, known := range SubRolesAscending {
		if s == known {
			return true
		}
	}
	return false
}

// ============================================================================
// Action - 集合内容操作
// ============================================================================

// Action 对集合内容的操作
type Action string

const (
	ActionView     Action = "view"
	ActionAdd      Action = "add"
	ActionEdit     Action = "edit"
	ActionDelete   Action = "delete"
	ActionModerate Action = "moderate"
	ActionManage   Action = "manage"
)

// AllActions 全部操作
var AllActions = []Action{
	ActionView, ActionAdd, ActionEdit, ActionDelete, ActionModerate, ActionManage,
}

// ============================================================================
// SystemCapability - 系统能力
// ============================================================================

// SystemCapability 系统级特权能力
//
// 仅当 FullRole ∈ {admin, super_admin} 时可达；任何集合授权组合
// （包括在所有集合上持有 collection_admin）都不能满足系统能力检查。
// 这是整个权限子系统唯一的承重安全不变式。
type SystemCapability string

const (
	CapManageUsers      SystemCapability = "manage_users"
	CapManageRoles      SystemCapability = "manage_roles"
	CapViewAuditTrail   SystemCapability = "view_audit_trail"
	CapSystemSettings   SystemCapability = "system_settings"
	CapDatabaseAccess   SystemCapability = "database_access"
	CapSecuritySettings SystemCapability = "security_settings"
	CapUserPermissions  SystemCapability = "user_permissions"
)

// AllSystemCapabilities 全部系统能力
var AllSystemCapabilities = []SystemCapability{
	CapManageUsers, CapManageRoles, CapViewAuditTrail, CapSystemSettings,
	CapDatabaseAccess, CapSecuritySettings, CapUserPermissions,
}
