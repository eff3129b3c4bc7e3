package session

import (
	"sync/atomic"
	"time"
)

// metrics.go 会话验证服务的累积指标
//
// 计数器为原子累积，读与增并发安全，提供显式 Reset。
// 这是服务实例持有的状态，不是包级可变量。

// Metrics 会话验证指标计数器
type Metrics struct {
	totalRequests atomic.Int64
	cacheHits     atomic.Int64
	totalNanos    atomic.Int64
}

// NewMetrics 创建指标计数器
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordRequest 记录一次验证请求
func (m *Metrics) RecordRequest(elapsed time.Duration, cacheHit bool) {
	m.totalRequests.Add(1)
	m.totalNanos.Add(int64(elapsed))
	if cacheHit {
		m.cacheHits.Add(1)
	}
}

// Snapshot 指标快照
type Snapshot struct {
	TotalRequests int64   `json:"total_requests"`
	CacheHits     int64   `json:"cache_hits"`
	HitRate       float64 `json:"hit_rate"`
	AvgResponseMs float64 `json:"avg_response_ms"`
}

// Snapshot 读取当前指标快照
//
// 各计数独立原子读取；与增量并发时快照可能横跨两次请求，
// 作为运维指标可以接受
func (m *Metrics) Snapshot() Snapshot {
	total := m.totalRequests.Load()
	hits := m.cacheHits.Load()
	nanos := m.totalNanos.Load()

	snap := Snapshot{TotalRequests: total, CacheHits: hits}
	if total > 0 {
		snap.HitRate = float64(hits) / float64(total)
		snap.AvgResponseMs = float64(nanos) / float64(total) / 1e6
	}
	return snap
}

// Reset 计数器清零
func (m *Metrics) Reset() {
	m.totalRequests.Store(0)
	m.cacheHits.Store(0)
	m.totalNanos.Store(0)
}
