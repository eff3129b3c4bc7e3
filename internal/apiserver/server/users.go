package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"estate-admin/internal/apiserver/auth"
	"estate-admin/internal/permission"
	"estate-admin/internal/shared/model"
	"estate-admin/internal/shared/storage"
)

// users.go 用户管理接口
//
// 层级规则集中在 permission.CanManageUser：
// 只能对层级严格更低的用户操作，且禁止对自己操作——
// 自身资料修改走 /api/v1/auth/me/profile（字段集更窄）。
// 角色/权限/状态变更后立即失效目标用户的全部会话，
// 无需等待上游凭据过期即可收回实际访问。

// registerUserRoutes 注册用户管理路由
func (h *Handler) registerUserRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/users",
		h.guard.RequireCapability(model.CapManageUsers, h.ListUsers))
	mux.HandleFunc("POST /api/v1/users/invite",
		h.guard.RequireCapability(model.CapManageUsers, h.InviteUser))
	mux.HandleFunc("PUT /api/v1/users/{id}/role",
		h.guard.RequireCapability(model.CapManageRoles, h.UpdateUserRole))
	mux.HandleFunc("PUT /api/v1/users/{id}/permissions",
		h.guard.RequireCapability(model.CapUserPermissions, h.UpdateUserPermissions))
	mux.HandleFunc("PUT /api/v1/users/{id}/status",
		h.guard.RequireCapability(model.CapManageUsers, h.UpdateUserStatus))
}

// ============================================================================
// 请求类型
// ============================================================================

type inviteUserRequest struct {
	Email    string         `json:"email"`
	FullName string         `json:"full_name"`
	Role     model.FullRole `json:"role"`
	Password string         `json:"password"` // 初始密码，受邀者首次登录后应修改
}

type updateRoleRequest struct {
	Role model.FullRole `json:"role"`
}

type updatePermissionsRequest struct {
	Overrides []model.CollectionGrant `json:"overrides"`
}

type updateStatusRequest struct {
	Status model.UserStatus `json:"status"`
}

// ============================================================================
// Handlers
// ============================================================================

// ListUsers 用户列表
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		log.Printf("[users] ListUsers error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users, "total": len(users)})
}

// InviteUser 邀请用户：按角色默认表物化集合授权，状态 invited
func (h *Handler) InviteUser(w http.ResponseWriter, r *http.Request) {
	caller := auth.UserFrom(r.Context())

	var req inviteUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.FullName == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email, full_name, password are required")
		return
	}
	if !auth.IsValidEmail(req.Email) {
		writeError(w, http.StatusBadRequest, "invalid email format")
		return
	}
	if len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}
	if !req.Role.Valid() {
		writeError(w, http.StatusBadRequest, "unknown role")
		return
	}
	// 只能授予层级更低的角色
	if permission.RoleLevel(req.Role) >= permission.RoleLevel(caller.FullRole) {
		writeError(w, http.StatusForbidden, "cannot invite a user at or above your own role level")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		log.Printf("[users.invite] HashPassword error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	now := time.Now()
	user := &model.User{
		ID:                    generateID("usr"),
		ExternalID:            generateID("ext"),
		Email:                 strings.ToLower(req.Email),
		FullName:              req.FullName,
		PasswordHash:          hash,
		FullRole:              req.Role,
		Status:                model.UserStatusInvited,
		CollectionPermissions: permission.DefaultGrants(req.Role),
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	if err := h.store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			writeError(w, http.StatusConflict, "email already registered")
			return
		}
		log.Printf("[users.invite] CreateUser error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	log.Printf("[users] User invited: %s (%s) role=%s by %s", user.Email, user.ID, user.FullRole, caller.Email)
	writeJSON(w, http.StatusCreated, user)
}

// loadManagedTarget 加载目标用户并检查层级规则；失败时已写出响应
func (h *Handler) loadManagedTarget(w http.ResponseWriter, r *http.Request) (*model.User, bool) {
	caller := auth.UserFrom(r.Context())
	target, err := h.store.GetUserByID(r.Context(), r.PathValue("id"))
	if err != nil {
		log.Printf("[users] GetUserByID error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return nil, false
	}
	if target == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return nil, false
	}
	if !permission.CanManageUser(caller, target) {
		if caller.ID == target.ID {
			writeError(w, http.StatusForbidden, "use the profile endpoint for your own account")
		} else {
			writeError(w, http.StatusForbidden, "cannot manage a user at or above your own role level")
		}
		return nil, false
	}
	return target, true
}

// UpdateUserRole 变更角色：重新物化默认授权、清空覆盖、失效会话
func (h *Handler) UpdateUserRole(w http.ResponseWriter, r *http.Request) {
	caller := auth.UserFrom(r.Context())
	target, ok := h.loadManagedTarget(w, r)
	if !ok {
		return
	}

	var req updateRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.Role.Valid() {
		writeError(w, http.StatusBadRequest, "unknown role")
		return
	}
	if permission.RoleLevel(req.Role) >= permission.RoleLevel(caller.FullRole) {
		writeError(w, http.StatusForbidden, "cannot grant a role at or above your own level")
		return
	}

	grants := permission.DefaultGrants(req.Role)
	if err := h.store.UpdateUserRole(r.Context(), target.ID, req.Role, grants); err != nil {
		log.Printf("[users.role] UpdateUserRole error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to update role")
		return
	}

	h.sessions.InvalidateUser(r.Context(), target.ID)
	log.Printf("[users] Role changed: %s %s → %s by %s", target.Email, target.FullRole, req.Role, caller.Email)
	writeJSON(w, http.StatusOK, map[string]string{"message": "role updated"})
}

// UpdateUserPermissions 设置集合权限覆盖：失效会话
func (h *Handler) UpdateUserPermissions(w http.ResponseWriter, r *http.Request) {
	caller := auth.UserFrom(r.Context())
	target, ok := h.loadManagedTarget(w, r)
	if !ok {
		return
	}

	var req updatePermissionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	for _, g := range req.Overrides {
		if !g.Collection.Valid() {
			writeError(w, http.StatusBadRequest, "unknown collection: "+string(g.Collection))
			return
		}
		if !g.SubRole.Valid() {
			writeError(w, http.StatusBadRequest, "unknown sub_role: "+string(g.SubRole))
			return
		}
	}

	if err := h.store.UpdateUserOverrides(r.Context(), target.ID, req.Overrides); err != nil {
		log.Printf("[users.permissions] UpdateUserOverrides error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to update permissions")
		return
	}

	h.sessions.InvalidateUser(r.Context(), target.ID)
	log.Printf("[users] Permission overrides updated for %s by %s", target.Email, caller.Email)
	writeJSON(w, http.StatusOK, map[string]string{"message": "permissions updated"})
}

// UpdateUserStatus 状态迁移：suspend / 软删除 / 手动恢复；失效会话
func (h *Handler) UpdateUserStatus(w http.ResponseWriter, r *http.Request) {
	caller := auth.UserFrom(r.Context())
	target, ok := h.loadManagedTarget(w, r)
	if !ok {
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	switch req.Status {
	case model.UserStatusActive, model.UserStatusSuspended, model.UserStatusDeleted:
	default:
		writeError(w, http.StatusBadRequest, "status must be active, suspended or deleted")
		return
	}

	if err := h.store.UpdateUserStatus(r.Context(), target.ID, req.Status); err != nil {
		log.Printf("[users.status] UpdateUserStatus error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to update status")
		return
	}

	h.sessions.InvalidateUser(r.Context(), target.ID)
	log.Printf("[users] Status changed: %s %s → %s by %s", target.Email, target.Status, req.Status, caller.Email)
	writeJSON(w, http.StatusOK, map[string]string{"message": "status updated"})
}
