package api

import (
	"sync"
	"time"
)

// AlertType identifies the kind of anomaly detected.
type AlertType string

// AlertLoginFailureSpike fires when login failures exceed the threshold
// within the sliding window, which usually means a scripted guessing run
// spread over many source addresses.
const AlertLoginFailureSpike AlertType = "login_failure_spike"

// AlertEvent describes an anomaly that triggered an alert.
type AlertEvent struct {
	Type      AlertType `json:"type"`
	Message   string    `json:"message"`
	Count     int       `json:"count"`
	Threshold int       `json:"threshold"`
	Timestamp time.Time `json:"timestamp"`
}

// AlertFunc is the callback invoked when an anomaly is detected.
type AlertFunc func(AlertEvent)

// metricsCollector tracks a sliding window of login failures across all
// clients for anomaly detection. The per-client rate limiter cannot see a
// distributed attack; this counter can.
type metricsCollector struct {
	mu sync.Mutex

	loginFailures  []time.Time
	loginWindow    time.Duration
	loginThreshold int

	alertFn AlertFunc
}

const (
	defaultLoginFailureWindow    = 1 * time.Minute
	defaultLoginFailureThreshold = 50
)

func newMetricsCollector(alertFn AlertFunc) *metricsCollector {
	return &metricsCollector{
		loginWindow:    defaultLoginFailureWindow,
		loginThreshold: defaultLoginFailureThreshold,
		alertFn:        alertFn,
	}
}

// recordEvent inspects an audit event and updates the relevant counters.
func (m *metricsCollector) recordEvent(event AuditEvent) {
	if m == nil || m.alertFn == nil {
		return
	}
	if event == AuditLoginFailure {
		m.recordLoginFailure()
	}
}

func (m *metricsCollector) recordLoginFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	m.loginFailures = append(m.loginFailures, now)
	m.loginFailures = trimWindow(m.loginFailures, now, m.loginWindow)

	if len(m.loginFailures) >= m.loginThreshold {
		m.alertFn(AlertEvent{
			Type:      AlertLoginFailureSpike,
			Message:   "login failure rate exceeds threshold",
			Count:     len(m.loginFailures),
			Threshold: m.loginThreshold,
			Timestamp: now,
		})
		// Reset to avoid repeated alerts within the same spike.
		m.loginFailures = m.loginFailures[:0]
	}
}

// trimWindow removes entries older than (now - window) from the sorted slice.
func trimWindow(times []time.Time, now time.Time, window time.Duration) []time.Time {
	cutoff := now.Add(-window)
	start := 0
	for start < len(times) && times[start].Before(cutoff) {
		start++
	}
	return times[start:]
}
