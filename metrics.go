package embedhttp

import (
	"sync/atomic"
	"time"
)

// Metrics holds server-wide runtime counters, generalized from the
// teacher's internal/server/metrics.go. Not pushed anywhere — a host
// polls Server.Metrics() for a snapshot.
type Metrics struct {
	RequestsTotal     atomic.Int64
	ActiveConnections atomic.Int64
	ErrorsTotal       atomic.Int64
	Errors4xx         atomic.Int64
	Errors5xx         atomic.Int64
	totalLatencyNs    atomic.Int64
}

// RecordRequest records one completed request/response cycle.
func (m *Metrics) RecordRequest(statusCode int, duration time.Duration) {
	m.RequestsTotal.Add(1)
	m.totalLatencyNs.Add(duration.Nanoseconds())

	switch {
	case statusCode >= 500:
		m.Errors5xx.Add(1)
		m.ErrorsTotal.Add(1)
	case statusCode >= 400:
		m.Errors4xx.Add(1)
	}
}

// AverageLatency returns the mean recorded request latency.
func (m *Metrics) AverageLatency() time.Duration {
	total := m.RequestsTotal.Load()
	if total == 0 {
		return 0
	}
	return time.Duration(m.totalLatencyNs.Load() / total)
}

// MetricsSnapshot is a point-in-time copy of Metrics, safe to read
// without racing further updates.
type MetricsSnapshot struct {
	RequestsTotal     int64
	ActiveConnections int64
	ErrorsTotal       int64
	Errors4xx         int64
	Errors5xx         int64
	AverageLatency    time.Duration
}

// Snapshot returns a MetricsSnapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		RequestsTotal:     m.RequestsTotal.Load(),
		ActiveConnections: m.ActiveConnections.Load(),
		ErrorsTotal:       m.ErrorsTotal.Load(),
		Errors4xx:         m.Errors4xx.Load(),
		Errors5xx:         m.Errors5xx.Load(),
		AverageLatency:    m.AverageLatency(),
	}
}
