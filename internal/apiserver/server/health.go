package server

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"estate-admin/internal/shared/model"
)

// health.go 运维接口：健康检查、指标、审计日志

// registerOpsRoutes 注册运维路由
func (h *Handler) registerOpsRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.HealthCheck)
	mux.Handle("GET /metrics", h.metrics.PrometheusHandler())

	mux.HandleFunc("GET /api/v1/session/metrics",
		h.guard.RequireCapability(model.CapSystemSettings, h.SessionMetrics))
	mux.HandleFunc("POST /api/v1/session/metrics/reset",
		h.guard.RequireCapability(model.CapSystemSettings, h.ResetSessionMetrics))
	mux.HandleFunc("GET /api/v1/audit",
		h.guard.RequireCapability(model.CapViewAuditTrail, h.ListAuditEvents))
}

// HealthCheck 存活探针：缓存不可达不影响整体 ok（服务在降级模式下仍可用）
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	health := h.sessions.CheckHealth(ctx)

	overall := "ok"
	dbStatus := "ok"
	status := http.StatusOK
	if err := h.store.Ping(ctx); err != nil {
		dbStatus = "unreachable"
		overall = "unavailable"
		status = http.StatusServiceUnavailable
	}

	cacheStatus := "ok"
	if !health.CacheReachable {
		cacheStatus = "degraded"
	}

	writeJSON(w, status, map[string]any{
		"status":       overall,
		"database":     dbStatus,
		"cache":        cacheStatus,
		"cache_rtt_ms": health.CacheRTTMillis,
		"cache_error":  health.CacheError,
		"checked_at":   time.Now().UTC().Format(time.RFC3339),
	})
}

// SessionMetrics 会话校验指标快照
func (h *Handler) SessionMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sessions.Metrics().Snapshot())
}

// ResetSessionMetrics 清零会话校验指标
func (h *Handler) ResetSessionMetrics(w http.ResponseWriter, r *http.Request) {
	h.sessions.Metrics().Reset()
	writeJSON(w, http.StatusOK, map[string]string{"message": "session metrics reset"})
}

// ListAuditEvents 权限拒绝审计日志，?limit= 默认 100，上限 1000
func (h *Handler) ListAuditEvents(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if n > 1000 {
			n = 1000
		}
		limit = n
	}

	events, err := h.store.ListAuditEvents(r.Context(), limit)
	if err != nil {
		log.Printf("[audit] ListAuditEvents error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list audit events")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events, "total": len(events)})
}
