// Package permission 角色/能力权限模型
//
// 本包是权限判定的唯一事实来源：
//   - tables.go：子角色能力表 + 角色默认授权表
//   - checker.go：纯函数权限判定
//
// 所有路由守卫必须通过本包做权限判定，禁止在 handler 内散落角色比较，
// 以保证防提权不变式集中实施、集中测试。
package permission

import "estate-admin/internal/shared/model"

// ============================================================================
// 子角色能力表
// ============================================================================

// subRoleActions 子角色 → 允许的动作集合
//
// 不变式：沿 observer < contributor < moderator < collection_admin
// 动作集合单调递增（tables_test.go 校验）
var subRoleActions = map[model.SubRole][]model.Action{
	model.SubRoleObserver: {
		model.ActionView,
	},
	model.SubRoleContributor: {
		model.ActionView, model.ActionAdd, model.ActionEdit,
	},
	model.SubRoleModerator: {
		model.ActionView, model.ActionAdd, model.ActionEdit,
		model.ActionDelete, model.ActionModerate,
	},
	model.SubRoleCollectionAdmin: {
		model.ActionView, model.ActionAdd, model.ActionEdit,
		model.ActionDelete, model.ActionModerate, model.ActionManage,
	},
}

// ActionsFor 返回子角色允许的动作集合
//
// 对封闭枚举全定义；未知子角色返回空集（一律拒绝），不会失败
func ActionsFor(subRole model.SubRole) []model.Action {
	return subRoleActions[subRole]
}

// SubRoleAllows 子角色是否允许指定动作
func SubRoleAllows(subRole model.SubRole, action model.Action) bool {
	for _, a := range subRoleActions[subRole] {
		if a == action {
			return true
		}
	}
	return false
}

// ============================================================================
// 角色默认授权表
// ============================================================================

// roleDefault 角色的默认集合范围与默认子角色
type roleDefault struct {
	collections []model.Collection
	subRole     model.SubRole
}

var roleDefaults = map[model.FullRole]roleDefault{
	model.RoleSuperAdmin: {
		collections: model.AllCollections,
		subRole:     model.SubRoleCollectionAdmin,
	},
	model.RoleAdmin: {
		collections: []model.Collection{
			model.CollectionProjects, model.CollectionDevelopers,
			model.CollectionHotels, model.CollectionMalls,
			model.CollectionPlots, model.CollectionProperties,
			model.CollectionBlogs, model.CollectionUsers,
		},
		subRole: model.SubRoleCollectionAdmin,
	},
	model.RoleAgent: {
		collections: []model.Collection{
			model.CollectionProperties, model.CollectionPlots,
		},
		subRole: model.SubRoleContributor,
	},
	model.RoleMarketing: {
		collections: []model.Collection{
			model.CollectionProjects, model.CollectionDevelopers,
			model.CollectionHotels, model.CollectionMalls,
			model.CollectionBlogs,
		},
		subRole: model.SubRoleContributor,
	},
	model.RoleSales: {
		collections: []model.Collection{
			model.CollectionProjects, model.CollectionProperties,
			model.CollectionPlots,
		},
		subRole: model.SubRoleObserver,
	},
	model.RoleHR: {
		collections: []model.Collection{
			model.CollectionUsers,
		},
		subRole: model.SubRoleObserver,
	},
	model.RoleCommunityManager: {
		collections: []model.Collection{
			model.CollectionBlogs,
		},
		subRole: model.SubRoleModerator,
	},
	model.RoleUser: {
		collections: nil,
		subRole:     model.SubRoleObserver,
	},
}

// DefaultCollections 角色默认可触达的集合
func DefaultCollections(role model.FullRole) []model.Collection {
	return roleDefaults[role].collections
}

// DefaultSubRole 角色在默认集合上的子角色
func DefaultSubRole(role model.FullRole) model.SubRole {
	if d, ok := roleDefaults[role]; ok {
		return d.subRole
	}
	return model.SubRoleObserver
}

// DefaultGrants 按角色默认表物化授权列表（创建用户、改角色时使用）
func DefaultGrants(role model.FullRole) []model.CollectionGrant {
	d := roleDefaults[role]
	grants := make([]model.CollectionGrant, 0, len(d.collections))
	for _, col := range d.collections {
		grants = append(grants, model.CollectionGrant{Collection: col, SubRole: d.subRole})
	}
	return grants
}
