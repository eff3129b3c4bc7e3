package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"estate-admin/internal/apiserver/session"
	"estate-admin/internal/permission"
	"estate-admin/internal/shared/model"
	"estate-admin/internal/shared/storage"
	"estate-admin/pkg/logging"
)

// Handler 认证 HTTP 处理器
type Handler struct {
	store    storage.UserStore
	sessions *session.Service
	cfg      Config
	logger   *logging.Logger
}

// NewHandler 创建认证处理器
func NewHandler(store storage.UserStore, sessions *session.Service, cfg Config) *Handler {
	return &Handler{store: store, sessions: sessions, cfg: cfg, logger: logging.Default("auth")}
}

// RegisterRoutes 注册认证相关路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux, guard *Guard) {
	mux.HandleFunc("POST /api/v1/auth/login", h.Login)
	mux.HandleFunc("POST /api/v1/auth/logout", h.Logout)
	mux.HandleFunc("GET /api/v1/auth/validate", h.Validate)
	mux.HandleFunc("GET /api/v1/auth/me", guard.Authenticated(h.Me))
	mux.HandleFunc("PUT /api/v1/auth/me/profile", guard.Authenticated(h.UpdateProfile))
	mux.HandleFunc("PUT /api/v1/auth/password", guard.Authenticated(h.ChangePassword))
}

// ============================================================================
// 请求/响应类型
// ============================================================================

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	User         *model.User `json:"user"`
	SessionToken string      `json:"session_token"`
}

type updateProfileRequest struct {
	FullName  string `json:"full_name"`
	Phone     string `json:"phone"`
	AvatarKey string `json:"avatar_key"`
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// ============================================================================
// Handlers
// ============================================================================

// Login 用户登录
//
// 登录流程独立于逐请求验证，允许写副作用：
// 失败计数/锁定、invited → active 迁移、最近登录时间。
// 整个流程受墙钟超时约束，超时返回 408 + timeout 种类而非悬挂
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.cfg.LoginTimeout)
	defer cancel()

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := h.store.GetUserByEmail(ctx, strings.ToLower(req.Email))
	if err != nil {
		h.loginDependencyError(w, ctx, "GetUserByEmail", err)
		return
	}
	if user == nil || user.Status == model.UserStatusDeleted {
		writeKindError(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password")
		return
	}

	now := time.Now()

	// 锁定期内一律拒绝，不论凭据是否正确
	if user.Locked(now) {
		writeKindError(w, http.StatusUnauthorized, string(session.KindLocked),
			fmt.Sprintf("account locked until %s", user.LockedUntil.Format(time.RFC3339)))
		return
	}
	if user.Status == model.UserStatusSuspended {
		writeKindError(w, http.StatusForbidden, string(session.KindSuspended), "account is suspended")
		return
	}

	if !CheckPassword(req.Password, user.PasswordHash) {
		attempts := user.LoginAttempts + 1
		var lockedUntil *time.Time
		if attempts >= h.cfg.LockoutThreshold {
			t := now.Add(h.cfg.LockoutDuration)
			lockedUntil = &t
			log.Printf("[auth] Account locked after %d failed attempts: %s", attempts, user.Email)
		}
		if err := h.store.RecordLoginFailure(ctx, user.ID, attempts, lockedUntil); err != nil {
			log.Printf("[auth.login] RecordLoginFailure error: %v", err)
		}
		h.logger.AuthLog("login", user.ID, user.Email, errors.New("invalid password"))
		writeKindError(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password")
		return
	}

	// 首次成功登录：invited → active
	status := user.Status
	if status == model.UserStatusInvited {
		status = model.UserStatusActive
	}
	if err := h.store.RecordLoginSuccess(ctx, user.ID, now, status); err != nil {
		h.loginDependencyError(w, ctx, "RecordLoginSuccess", err)
		return
	}
	user.Status = status
	user.LoginAttempts = 0
	user.LockedUntil = nil
	user.LastLoginAt = &now

	token, err := GenerateSessionToken(h.cfg, user.ExternalID, user.Email, user.FullRole)
	if err != nil {
		log.Printf("[auth.login] GenerateSessionToken error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.cfg.SessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	h.logger.AuthLog("login", user.ID, user.Email, nil)
	writeJSON(w, http.StatusOK, loginResponse{User: user, SessionToken: token})
}

// loginDependencyError 依赖失败：超时与硬失败区分，均失败关闭
func (h *Handler) loginDependencyError(w http.ResponseWriter, ctx context.Context, op string, err error) {
	log.Printf("[auth.login] %s error: %v", op, err)
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
		writeKindError(w, http.StatusRequestTimeout, string(session.KindTimeout), "login timed out")
		return
	}
	writeError(w, http.StatusInternalServerError, "internal error")
}

// Logout 登出：使当前会话缓存条目失效并清除 cookie
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if credential := CredentialFromRequest(r); credential != "" {
		h.sessions.Invalidate(r.Context(), credential)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// Validate 临时会话校验入口（不经过完整守卫机制的端点使用）
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	result := h.sessions.Validate(r.Context(), CredentialFromRequest(r))
	status := http.StatusOK
	if !result.Valid {
		status = result.Kind.HTTPStatus()
	}
	writeJSON(w, status, result)
}

// Me 获取当前用户信息（含可访问集合）
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	authUser := UserFrom(r.Context())

	// 守卫注入的用户来自缓存条目，这里回源取完整记录
	user, err := h.store.GetUserByID(r.Context(), authUser.ID)
	if err != nil || user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user":                   user,
		"accessible_collections": permission.AccessibleCollections(user),
	})
}

// UpdateProfile 自服务资料修改
//
// 字段集刻意收窄：姓名、电话、头像。角色/状态/权限的变更
// 即使对自己也必须走用户管理路由（且那里禁止对自己操作）
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	authUser := UserFrom(r.Context())

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.FullName == "" {
		writeError(w, http.StatusBadRequest, "full_name is required")
		return
	}

	if err := h.store.UpdateUserProfile(r.Context(), authUser.ID, req.FullName, req.Phone, req.AvatarKey); err != nil {
		log.Printf("[auth.profile] UpdateUserProfile error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to update profile")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "profile updated"})
}

// ChangePassword 修改密码；成功后使该用户全部会话失效
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	authUser := UserFrom(r.Context())

	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.OldPassword == "" || req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "old_password and new_password are required")
		return
	}
	if len(req.NewPassword) < 8 {
		writeError(w, http.StatusBadRequest, "new password must be at least 8 characters")
		return
	}

	user, err := h.store.GetUserByID(r.Context(), authUser.ID)
	if err != nil || user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if !CheckPassword(req.OldPassword, user.PasswordHash) {
		writeError(w, http.StatusUnauthorized, "incorrect old password")
		return
	}

	hash, err := HashPassword(req.NewPassword)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if err := h.store.UpdateUserPassword(r.Context(), user.ID, hash); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update password")
		return
	}

	h.sessions.InvalidateUser(r.Context(), user.ID)
	writeJSON(w, http.StatusOK, map[string]string{"message": "password updated"})
}

// ============================================================================
// Admin Bootstrap
// ============================================================================

// EnsureAdminUser 确保超级管理员存在（启动时调用）
// 如果配置了 adminEmail 且数据库中不存在该用户，则自动创建
func EnsureAdminUser(store storage.UserStore, adminEmail, adminPassword string) error {
	if adminEmail == "" || adminPassword == "" {
		return nil
	}
	adminEmail = strings.ToLower(adminEmail)

	ctx := context.Background()
	existing, err := store.GetUserByEmail(ctx, adminEmail)
	if err != nil {
		return fmt.Errorf("check admin user: %w", err)
	}
	if existing != nil {
		log.Printf("[auth] Admin user already exists: %s (%s)", adminEmail, existing.ID)
		return nil
	}

	hash, err := HashPassword(adminPassword)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	now := time.Now()
	user := &model.User{
		ID:                    generateID("usr"),
		ExternalID:            generateID("ext"),
		Email:                 adminEmail,
		FullName:              "Admin",
		PasswordHash:          hash,
		FullRole:              model.RoleSuperAdmin,
		Status:                model.UserStatusActive,
		CollectionPermissions: permission.DefaultGrants(model.RoleSuperAdmin),
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if err := store.CreateUser(ctx, user); err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}
	log.Printf("[auth] Created super admin user: %s (%s)", adminEmail, user.ID)
	return nil
}

// ============================================================================
// 工具函数
// ============================================================================

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeKindError 带稳定错误种类的错误响应
func writeKindError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, map[string]string{"error": kind, "message": message})
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// IsValidEmail 邮箱格式校验（用户管理路由共用）
func IsValidEmail(email string) bool {
	return emailRegex.MatchString(email)
}
