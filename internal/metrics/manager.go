// Package metrics keeps in-process counters and timings for the web UI.
// Values reset with the process unless persistence is opened (see Open).
package metrics

import (
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"
)

const (
	maxSamples = 1000 // keep last 1000 samples for percentile calculations
)

// MetricsManager holds all metrics, keyed by "topic/function" path.
type MetricsManager struct {
	mu          sync.RWMutex
	timings     map[string]*TimingMetric
	counters    map[string]*CounterMetric
	gauges      map[string]*GaugeMetric
	successFail map[string]*SuccessFailMetric

	db       *sql.DB
	stopSave chan struct{}
	saveDone chan struct{}
}

var (
	instance *MetricsManager
	once     sync.Once
)

// GetInstance returns the process-wide metrics manager
func GetInstance() *MetricsManager {
	once.Do(func() {
		instance = NewManager()
	})
	return instance
}

// NewManager creates an empty manager. Most callers want GetInstance.
func NewManager() *MetricsManager {
	return &MetricsManager{
		timings:     make(map[string]*TimingMetric),
		counters:    make(map[string]*CounterMetric),
		gauges:      make(map[string]*GaugeMetric),
		successFail: make(map[string]*SuccessFailMetric),
	}
}

func buildPath(topic, function string) string {
	if function == "" {
		return topic
	}
	return fmt.Sprintf("%s/%s", topic, function)
}

// RecordDuration records a duration directly
func (m *MetricsManager) RecordDuration(topic, function string, duration time.Duration) {
	path := buildPath(topic, function)

	m.mu.Lock()
	metric, exists := m.timings[path]
	if !exists {
		metric = &TimingMetric{
			samples: make([]time.Duration, 0, maxSamples),
			Min:     duration,
			Max:     duration,
		}
		m.timings[path] = metric
	}
	m.mu.Unlock()

	metric.mu.Lock()
	defer metric.mu.Unlock()

	metric.Count++
	metric.Total += duration
	metric.Last = duration

	if duration < metric.Min {
		metric.Min = duration
	}
	if duration > metric.Max {
		metric.Max = duration
	}

	if len(metric.samples) < maxSamples {
		metric.samples = append(metric.samples, duration)
	} else {
		metric.samples[metric.sampleIdx] = duration
		metric.sampleIdx = (metric.sampleIdx + 1) % maxSamples
	}
}

// AddCounter adds to a counter
func (m *MetricsManager) AddCounter(topic, function string, delta int64) {
	path := buildPath(topic, function)

	m.mu.Lock()
	metric, exists := m.counters[path]
	if !exists {
		metric = &CounterMetric{}
		m.counters[path] = metric
	}
	m.mu.Unlock()

	metric.mu.Lock()
	defer metric.mu.Unlock()

	metric.Value += delta
	metric.Last = time.Now()
}

// SetGauge sets a gauge value
func (m *MetricsManager) SetGauge(topic, function string, value int64) {
	path := buildPath(topic, function)

	m.mu.Lock()
	metric, exists := m.gauges[path]
	if !exists {
		metric = &GaugeMetric{Min: value, Max: value}
		m.gauges[path] = metric
	}
	m.mu.Unlock()

	metric.mu.Lock()
	defer metric.mu.Unlock()

	metric.Value = value
	metric.Last = time.Now()

	if value < metric.Min {
		metric.Min = value
	}
	if value > metric.Max {
		metric.Max = value
	}
}

func (m *MetricsManager) successFailFor(path string) *SuccessFailMetric {
	m.mu.Lock()
	defer m.mu.Unlock()

	metric, exists := m.successFail[path]
	if !exists {
		metric = &SuccessFailMetric{FailureReasons: make(map[string]int64)}
		m.successFail[path] = metric
	}
	return metric
}

// RecordSuccess records a successful operation
func (m *MetricsManager) RecordSuccess(topic, function string) {
	metric := m.successFailFor(buildPath(topic, function))

	metric.mu.Lock()
	defer metric.mu.Unlock()

	metric.Success++
	metric.LastSuccess = time.Now()
	metric.push(true)
}

// RecordFailure records a failed operation
func (m *MetricsManager) RecordFailure(topic, function, reason string) {
	metric := m.successFailFor(buildPath(topic, function))

	metric.mu.Lock()
	defer metric.mu.Unlock()

	metric.Failures++
	metric.LastFailure = time.Now()
	if reason != "" {
		metric.FailureReasons[reason]++
	}
	metric.push(false)
}

// push records one outcome in the sliding window. Caller holds s.mu.
func (s *SuccessFailMetric) push(ok bool) {
	s.recentWindow[s.windowIndex] = ok
	s.windowIndex = (s.windowIndex + 1) % len(s.recentWindow)
	if s.windowSize < len(s.recentWindow) {
		s.windowSize++
	}
}

// Counter returns the current value of a counter, 0 if unknown.
func (m *MetricsManager) Counter(topic, function string) int64 {
	m.mu.RLock()
	metric, ok := m.counters[buildPath(topic, function)]
	m.mu.RUnlock()
	if !ok {
		return 0
	}
	metric.mu.RLock()
	defer metric.mu.RUnlock()
	return metric.Value
}

// GetSnapshot returns a snapshot of all metrics
func (m *MetricsManager) GetSnapshot() map[string]*MetricSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshots := make(map[string]*MetricSnapshot)

	for path, metric := range m.timings {
		metric.mu.RLock()
		avg := float64(0)
		if metric.Count > 0 {
			avg = float64(metric.Total) / float64(metric.Count) / float64(time.Millisecond)
		}
		snapshots[path] = &MetricSnapshot{
			Path:   path,
			Type:   TypeTiming,
			Health: getTimingHealth(avg),
			Data: TimingSnapshot{
				Count:  metric.Count,
				AvgMs:  avg,
				MinMs:  float64(metric.Min) / float64(time.Millisecond),
				MaxMs:  float64(metric.Max) / float64(time.Millisecond),
				LastMs: float64(metric.Last) / float64(time.Millisecond),
				P95Ms:  calculatePercentile(metric.samples, 95),
			},
		}
		metric.mu.RUnlock()
	}

	for path, metric := range m.counters {
		metric.mu.RLock()
		snapshots[path] = &MetricSnapshot{
			Path:   path,
			Type:   TypeCounter,
			Health: HealthGood,
			Data:   CounterSnapshot{Value: metric.Value},
		}
		metric.mu.RUnlock()
	}

	for path, metric := range m.gauges {
		metric.mu.RLock()
		snapshots[path] = &MetricSnapshot{
			Path:   path,
			Type:   TypeGauge,
			Health: HealthGood,
			Data:   GaugeSnapshot{Value: metric.Value, Min: metric.Min, Max: metric.Max},
		}
		metric.mu.RUnlock()
	}

	for path, metric := range m.successFail {
		metric.mu.RLock()
		total := metric.Success + metric.Failures
		successRate := float64(0)
		if total > 0 {
			successRate = float64(metric.Success) / float64(total) * 100
		}

		recentRate := float64(0)
		if metric.windowSize > 0 {
			ok := 0
			for i := 0; i < metric.windowSize; i++ {
				if metric.recentWindow[i] {
					ok++
				}
			}
			recentRate = float64(ok) / float64(metric.windowSize) * 100
		}

		reasons := make(map[string]int64, len(metric.FailureReasons))
		for k, v := range metric.FailureReasons {
			reasons[k] = v
		}

		snapshots[path] = &MetricSnapshot{
			Path:   path,
			Type:   TypeSuccessFail,
			Health: getSuccessRateHealth(recentRate, metric.windowSize),
			Data: SuccessFailSnapshot{
				Success:        metric.Success,
				Failures:       metric.Failures,
				SuccessRate:    successRate,
				RecentRate:     recentRate,
				FailureReasons: reasons,
			},
		}
		metric.mu.RUnlock()
	}

	return snapshots
}

// calculatePercentile calculates the Nth percentile from samples
func calculatePercentile(samples []time.Duration, percentile int) float64 {
	if len(samples) == 0 {
		return 0
	}

	sorted := make([]time.Duration, len(samples))
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})

	idx := (len(sorted) * percentile) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}

	return float64(sorted[idx]) / float64(time.Millisecond)
}

// getTimingHealth is tuned for remote transcription calls, which take seconds.
func getTimingHealth(avgMs float64) HealthStatus {
	if avgMs > 30000 {
		return HealthCritical
	}
	if avgMs > 10000 {
		return HealthWarning
	}
	return HealthGood
}

func getSuccessRateHealth(rate float64, samples int) HealthStatus {
	if samples == 0 {
		return HealthGood
	}
	if rate < 50 {
		return HealthCritical
	}
	if rate < 90 {
		return HealthWarning
	}
	return HealthGood
}
