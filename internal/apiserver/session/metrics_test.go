package session

import (
	"sync"
	"testing"
	"time"
)

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()

	snap := m.Snapshot()
	if snap.TotalRequests != 0 || snap.CacheHits != 0 || snap.HitRate != 0 {
		t.Fatalf("fresh metrics should be zero: %+v", snap)
	}

	m.RecordRequest(2*time.Millisecond, true)
	m.RecordRequest(4*time.Millisecond, false)

	snap = m.Snapshot()
	if snap.TotalRequests != 2 {
		t.Errorf("TotalRequests = %d, want 2", snap.TotalRequests)
	}
	if snap.CacheHits != 1 {
		t.Errorf("CacheHits = %d, want 1", snap.CacheHits)
	}
	if snap.HitRate != 0.5 {
		t.Errorf("HitRate = %f, want 0.5", snap.HitRate)
	}
	if snap.AvgResponseMs < 2 || snap.AvgResponseMs > 4 {
		t.Errorf("AvgResponseMs = %f, want within [2,4]", snap.AvgResponseMs)
	}
}

func TestMetricsReset(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest(time.Millisecond, true)
	m.RecordRequest(time.Millisecond, true)

	m.Reset()

	snap := m.Snapshot()
	if snap.TotalRequests != 0 || snap.CacheHits != 0 || snap.AvgResponseMs != 0 {
		t.Errorf("metrics not zeroed after reset: %+v", snap)
	}
}

// 并发记录不丢计数
func TestMetricsConcurrentRecording(t *testing.T) {
	m := NewMetrics()

	const workers = 8
	const perWorker = 1000

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(hit bool) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				m.RecordRequest(time.Microsecond, hit)
			}
		}(w%2 == 0)
	}
	wg.Wait()

	snap := m.Snapshot()
	if snap.TotalRequests != workers*perWorker {
		t.Errorf("TotalRequests = %d, want %d", snap.TotalRequests, workers*perWorker)
	}
	if snap.CacheHits != workers/2*perWorker {
		t.Errorf("CacheHits = %d, want %d", snap.CacheHits, workers/2*perWorker)
	}
}
