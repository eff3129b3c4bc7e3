package permission

import "estate-admin/internal/shared/model"

// checker.go 纯函数权限判定
//
// 防提权不变式：HasSystemCapability 只看 FullRole。
// 集合授权（CollectionPermissions / PermissionOverrides）无论如何设置，
// 都不能让非系统管理员通过系统能力检查。

// adminCapabilities admin 角色的固定能力子集
// （super_admin 隐式拥有全部能力；此表只对 admin 生效）
var adminCapabilities = map[model.SystemCapability]bool{
	model.CapManageUsers:     true,
	model.CapManageRoles:     true,
	model.CapUserPermissions: true,
}

// IsSystemAdmin 是否系统管理员（admin 或 super_admin）
func IsSystemAdmin(user *model.User) bool {
	if user == nil {
		return false
	}
	return user.FullRole == model.RoleAdmin || user.FullRole == model.RoleSuperAdmin
}

// HasSystemCapability 用户是否持有系统能力
//
// 非系统管理员无条件返回 false——集合授权字段在此函数中不可见
func HasSystemCapability(user *model.User, capability model.SystemCapability) bool {
	if user == nil {
		return false
	}
	switch user.FullRole {
	case model.RoleSuperAdmin:
		return true
	case model.RoleAdmin:
		return adminCapabilities[capability]
	default:
		return false
	}
}

// HasCollectionPermission 用户是否允许对集合执行动作
//
// 查找顺序：PermissionOverrides 中该集合的条目若存在则一锤定音，
// 否则查 CollectionPermissions，都没有则拒绝。
// 同一集合的多条目不做合并，按优先级首个命中为准
func HasCollectionPermission(user *model.User, collection model.Collection, action model.Action) bool {
	if user == nil {
		return false
	}
	for _, g := range user.PermissionOverrides {
		if g.Collection == collection {
			return SubRoleAllows(g.SubRole, action)
		}
	}
	for _, g := range user.CollectionPermissions {
		if g.Collection == collection {
			return SubRoleAllows(g.SubRole, action)
		}
	}
	return false
}

// AccessibleCollections 用户授权涉及的集合并集（含覆盖条目），按枚举顺序去重
func AccessibleCollections(user *model.User) []model.Collection {
	if user == nil {
		return nil
	}
	seen := make(map[model.Collection]bool)
	for _, g := range user.CollectionPermissions {
		seen[g.Collection] = true
	}
	for _, g := range user.PermissionOverrides {
		seen[g.Collection] = true
	}
	var out []model.Collection
	for _, col := range model.AllCollections {
		if seen[col] {
			out = append(out, col)
		}
	}
	return out
}

// ============================================================================
// 角色层级（用户管理）
// ============================================================================

// RoleLevel 角色层级：user 系 = 1，中间角色 = 2，admin = 3，super_admin = 4
func RoleLevel(role model.FullRole) int {
	switch role {
	case model.RoleSuperAdmin:
		return 4
	case model.RoleAdmin:
		return 3
	case model.RoleAgent, model.RoleMarketing, model.RoleSales,
		model.RoleHR, model.RoleCommunityManager:
		return 2
	case model.RoleUser:
		return 1
	default:
		return 0
	}
}

// CanManageUser 调用方是否可以对目标用户做角色/状态/权限变更
//
// 规则：level(target) < level(caller)，且禁止对自己操作——
// 自身资料修改必须走字段集更窄的 self-service profile 路径
func CanManageUser(caller, target *model.User) bool {
	if caller == nil || target == nil {
		return false
	}
	if caller.ID == target.ID {
		return false
	}
	return RoleLevel(target.FullRole) < RoleLevel(caller.FullRole)
}
