// Package server Prometheus 指标导出
package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"estate-admin/internal/apiserver/session"
	"estate-admin/pkg/logging"
)

// Metrics 包含所有 API Server 指标
//
// 每个 Handler 持有独立的 Registry，避免进程内多实例（主要是测试）
// 重复注册冲突。
type Metrics struct {
	registry *prometheus.Registry
	logger   *logging.Logger

	// HTTP 请求指标
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// 会话验证指标（从 session.Metrics 拉取）
	sessionRequests  prometheus.GaugeFunc
	sessionHitRate   prometheus.GaugeFunc
	sessionAvgMillis prometheus.GaugeFunc
}

// NewMetrics 创建指标实例
func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		logger:   logging.Default("http"),
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),
	}
}

// ObserveSessionMetrics 把会话验证计数器暴露为 Prometheus 指标
func (m *Metrics) ObserveSessionMetrics(sm *session.Metrics) {
	factory := promauto.With(m.registry)

	m.sessionRequests = factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "estate",
			Name:      "session_validation_requests_total",
			Help:      "Session validation requests since start or last reset",
		},
		func() float64 { return float64(sm.Snapshot().TotalRequests) },
	)
	m.sessionHitRate = factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "estate",
			Name:      "session_validation_cache_hit_rate",
			Help:      "Fraction of session validations served from cache",
		},
		func() float64 { return sm.Snapshot().HitRate },
	)
	m.sessionAvgMillis = factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "estate",
			Name:      "session_validation_avg_response_ms",
			Help:      "Average session validation latency in milliseconds",
		},
		func() float64 { return sm.Snapshot().AvgResponseMs },
	)
}

// PrometheusHandler 返回本 Registry 的抓取端点
func (m *Metrics) PrometheusHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware 创建 HTTP 指标/访问日志中间件
//
// 每个请求分配 request_id 注入 context，访问日志经日志器携带该标识
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.HTTPRequestsInFlight.Inc()
		defer m.HTTPRequestsInFlight.Dec()

		ctx := context.WithValue(r.Context(), logging.RequestIDKey, generateID("req"))
		r = r.WithContext(ctx)

		// 包装 ResponseWriter 以捕获状态码
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		elapsed := time.Since(start)
		path := normalizePath(r.URL.Path)
		status := strconv.Itoa(wrapped.statusCode)

		m.HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(elapsed.Seconds())
		m.logger.WithContext(ctx).HTTPRequestLog(r.Method, path, wrapped.statusCode, elapsed, r.RemoteAddr)
	})
}

// responseWriter 包装 http.ResponseWriter 以捕获状态码
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// normalizePath 规范化路径，将末段 ID 替换为占位符，避免高基数
//
// 例如 /api/v1/projects/prj-abc123 -> /api/v1/projects/{id}
func normalizePath(path string) string {
	segs := strings.Split(path, "/")
	for i, s := range segs {
		// 资源 ID 形如 prefix-hex，统一折叠
		if idx := strings.IndexByte(s, '-'); idx > 0 && idx <= 3 && isHex(s[idx+1:]) {
			segs[i] = "{id}"
		}
	}
	return strings.Join(segs, "/")
}

func isHex(s string) bool {
	if len(s) != 12 {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
