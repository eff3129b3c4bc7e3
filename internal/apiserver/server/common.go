// Package server 提供 HTTP API 处理器
//
// 本包实现了房产内容目录后台的 RESTful API，包括：
//   - 内容目录（楼盘、开发商、酒店、商场、地块、房源、博客）CRUD 接口
//   - 用户管理接口（邀请、角色、权限覆盖、状态）
//   - 媒体上传接口（MinIO 对象存储）
//   - 审计与运维接口（审计记录、会话指标、健康检查）
//
// 文件组织：
//   - common.go: 通用工具函数和 Handler 定义
//   - catalog.go: 内容目录接口
//   - users.go: 用户管理接口
//   - media.go: 媒体接口
//   - health.go: 健康检查与运维接口
//   - metrics.go: Prometheus 指标
//
// 所有受保护路由都经由 auth.Guard 包装：会话验证 + 权限判定
// 集中在守卫与 permission 包，handler 内不做角色判断。
package server

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"

	"estate-admin/internal/apiserver/auth"
	"estate-admin/internal/apiserver/session"
	"estate-admin/internal/shared/cache"
	"estate-admin/internal/shared/objstore"
	"estate-admin/internal/shared/storage"
)

// Handler API 处理器
//
// Handler 是所有 HTTP API 的入口，负责：
//   - 路由请求到对应的处理函数
//   - 管理存储层与缓存连接
//   - 持有会话验证服务与路由守卫
type Handler struct {
	store    storage.PersistentStore // MongoDB 存储层（用户、目录、审计）
	sessions *session.Service        // 会话验证服务（缓存 + 身份源 + 用户加载）
	guard    *auth.Guard             // 路由守卫工厂
	authAPI  *auth.Handler           // 登录/登出/自服务接口
	media    *objstore.Client        // MinIO 对象存储（可为 nil，媒体接口返回 503）
	metrics  *Metrics                // Prometheus 指标
}

// NewHandler 创建 Handler 实例
//
// sessionCache 为 nil 时使用空操作降级没有意义——直接要求传入；
// 测试场景传 cache.NewMemCache()
func NewHandler(store storage.PersistentStore, sessionCache cache.SessionCache, authCfg auth.Config, media *objstore.Client) *Handler {
	sessions := session.NewService(sessionCache, auth.NewVerifier(authCfg), store, authCfg.SessionTTL)

	h := &Handler{
		store:    store,
		sessions: sessions,
		guard:    auth.NewGuard(sessions, store),
		authAPI:  auth.NewHandler(store, sessions, authCfg),
		media:    media,
		metrics:  NewMetrics("estate"),
	}
	h.metrics.ObserveSessionMetrics(sessions.Metrics())
	return h
}

// Sessions 返回会话验证服务（cmd 层与测试使用）
func (h *Handler) Sessions() *session.Service {
	return h.sessions
}

// Router 组装全部路由
func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()

	h.authAPI.RegisterRoutes(mux, h.guard)
	h.registerCatalogRoutes(mux)
	h.registerUserRoutes(mux)
	h.registerMediaRoutes(mux)
	h.registerOpsRoutes(mux)

	return h.metrics.Middleware(mux)
}

// ============================================================================
// 工具函数
// ============================================================================

// writeJSON 将数据以 JSON 格式写入 HTTP 响应
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError 将错误信息以 JSON 格式写入 HTTP 响应
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// generateID 生成带前缀的唯一标识符
//
// 使用加密安全的随机数生成 6 字节（12 个十六进制字符）的 ID，
// 格式为：prefix-xxxxxxxxxxxx
func generateID(prefix string) string {
	b := make([]byte, 6)
	rand.Read(b)
	return prefix + "-" + hex.EncodeToString(b)
}
