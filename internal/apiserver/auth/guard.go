package auth

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"estate-admin/internal/apiserver/session"
	"estate-admin/internal/permission"
	"estate-admin/internal/shared/model"
	"estate-admin/internal/shared/storage"
	"estate-admin/pkg/logging"
)

// guard.go 路由守卫
//
// 守卫以"必需能力"或"(集合, 动作)"配置并包装 handler：
// 先会话验证（失败 → 401 + 错误种类），再权限判定（拒绝 → 403 + 审计事件），
// 通过后将类型化用户注入 context 调用 handler。
// 两步任一失败 handler 都不会执行——结构上失败关闭，而非约定。

// Guard 路由守卫工厂
type Guard struct {
	sessions *session.Service
	audit    storage.AuditStore
	logger   *logging.Logger
}

// NewGuard 创建守卫工厂
func NewGuard(sessions *session.Service, audit storage.AuditStore) *Guard {
	return &Guard{
		sessions: sessions,
		audit:    audit,
		logger:   logging.Default("guard"),
	}
}

// CredentialFromRequest 从请求提取会话凭据：Authorization Bearer 头优先，cookie 兜底
func CredentialFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
		return ""
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}

// Authenticated 只做会话验证的守卫（/me、登出等自服务路由）
func (g *Guard) Authenticated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := g.authenticate(w, r)
		if !ok {
			return
		}
		next(w, r.WithContext(WithUser(r.Context(), user)))
	}
}

// RequireCollection 要求 (集合, 动作) 授权的守卫
func (g *Guard) RequireCollection(collection model.Collection, action model.Action, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := g.authenticate(w, r)
		if !ok {
			return
		}
		if !permission.HasCollectionPermission(user, collection, action) {
			g.denyCollection(w, r, user, collection, action)
			return
		}
		next(w, r.WithContext(WithUser(r.Context(), user)))
	}
}

// RequireCapability 要求系统能力的守卫
func (g *Guard) RequireCapability(capability model.SystemCapability, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := g.authenticate(w, r)
		if !ok {
			return
		}
		if !permission.HasSystemCapability(user, capability) {
			g.denyCapability(w, r, user, capability)
			return
		}
		next(w, r.WithContext(WithUser(r.Context(), user)))
	}
}

// authenticate 会话验证；失败时写出 401/408/500 响应并返回 false
func (g *Guard) authenticate(w http.ResponseWriter, r *http.Request) (*model.User, bool) {
	result := g.sessions.Validate(r.Context(), CredentialFromRequest(r))
	if !result.Valid {
		writeGuardError(w, result.Kind.HTTPStatus(), string(result.Kind), "authentication required")
		return nil, false
	}
	return result.User, true
}

// denyCollection 集合权限拒绝：403 + 审计事件
func (g *Guard) denyCollection(w http.ResponseWriter, r *http.Request, user *model.User, collection model.Collection, action model.Action) {
	g.recordDenial(r, &model.AuditEvent{
		ActorID:    user.ID,
		ActorEmail: user.Email,
		ActorRole:  user.FullRole,
		Collection: collection,
		Action:     action,
		Outcome:    model.AuditOutcomeDenied,
	})
	writeGuardError(w, http.StatusForbidden, "permission_denied",
		"requires "+string(action)+" on "+string(collection)+", caller role is "+string(user.FullRole))
}

// denyCapability 系统能力拒绝：403 + 审计事件
func (g *Guard) denyCapability(w http.ResponseWriter, r *http.Request, user *model.User, capability model.SystemCapability) {
	g.recordDenial(r, &model.AuditEvent{
		ActorID:    user.ID,
		ActorEmail: user.Email,
		ActorRole:  user.FullRole,
		Capability: capability,
		Outcome:    model.AuditOutcomeDenied,
	})
	writeGuardError(w, http.StatusForbidden, "permission_denied",
		"requires capability "+string(capability)+", caller role is "+string(user.FullRole))
}

// recordDenial 记录拒绝审计事件；审计失败只记日志，不影响响应
func (g *Guard) recordDenial(r *http.Request, event *model.AuditEvent) {
	event.ID = generateID("aud")
	event.Method = r.Method
	event.Path = r.URL.Path
	event.CreatedAt = time.Now()

	logger := g.logger.WithUserID(event.ActorID)
	if event.Collection != "" {
		logger = logger.WithCollection(string(event.Collection))
	}
	logger.Warn("permission denied", "method", event.Method, "path", event.Path)

	if err := g.audit.RecordAuditEvent(r.Context(), event); err != nil {
		g.logger.WithError(err).Error("audit event write failed")
	}
}

// writeGuardError 统一的结构化错误响应：{"error": 种类, "message": 人类可读说明}
func writeGuardError(w http.ResponseWriter, status int, kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error":   kind,
		"message": message,
	})
}

// generateID 生成带前缀的唯一标识符
func generateID(prefix string) string {
	b := make([]byte, 6)
	rand.Read(b)
	return prefix + "-" + hex.EncodeToString(b)
}
