package monitoring

import (
	"sync"
	"time"
)

// MetricsCollector collects scheduling and execution metrics per job type.
// It tracks job counts, success/failure rates, and run durations.
type MetricsCollector struct {
	// typeMetrics stores metrics per job type
	typeMetrics map[string]*JobTypeMetrics
	// mu protects concurrent access
	mu sync.RWMutex
}

// JobTypeMetrics represents metrics for one job type.
type JobTypeMetrics struct {
	JobType         string        `json:"job_type"`
	StartedCount    int           `json:"started_count"`
	SuccessCount    int           `json:"success_count"`
	FailureCount    int           `json:"failure_count"`
	CancelledCount  int           `json:"cancelled_count"`
	TotalDuration   time.Duration `json:"total_duration"`
	AverageDuration time.Duration `json:"average_duration"`
	MinDuration     time.Duration `json:"min_duration"`
	MaxDuration     time.Duration `json:"max_duration"`
	LastFinishedAt  time.Time     `json:"last_finished_at"`
}

// NewMetricsCollector creates a new MetricsCollector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		typeMetrics: make(map[string]*JobTypeMetrics),
	}
}

func (c *MetricsCollector) metricsFor(jobType string) *JobTypeMetrics {
	m, ok := c.typeMetrics[jobType]
	if !ok {
		m = &JobTypeMetrics{JobType: jobType}
		c.typeMetrics[jobType] = m
	}
	return m
}

// RecordJobStarted records a PENDING -> RUNNING admission.
func (c *MetricsCollector) RecordJobStarted(jobType string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metricsFor(jobType).StartedCount++
}

// RecordJobSucceeded records a successful completion with its run duration.
func (c *MetricsCollector) RecordJobSucceeded(jobType string, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m := c.metricsFor(jobType)
	m.SuccessCount++
	c.recordDuration(m, duration)
}

// RecordJobFailed records a fatal failure with its run duration.
func (c *MetricsCollector) RecordJobFailed(jobType string, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m := c.metricsFor(jobType)
	m.FailureCount++
	c.recordDuration(m, duration)
}

// RecordJobCancelled records a cancellation of a pending job.
func (c *MetricsCollector) RecordJobCancelled(jobType string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metricsFor(jobType).CancelledCount++
}

func (c *MetricsCollector) recordDuration(m *JobTypeMetrics, d time.Duration) {
	m.TotalDuration += d
	finished := m.SuccessCount + m.FailureCount
	if finished > 0 {
		m.AverageDuration = m.TotalDuration / time.Duration(finished)
	}
	if m.MinDuration == 0 || d < m.MinDuration {
		m.MinDuration = d
	}
	if d > m.MaxDuration {
		m.MaxDuration = d
	}
	m.LastFinishedAt = time.Now()
}

// Snapshot returns a copy of the collected metrics keyed by job type.
func (c *MetricsCollector) Snapshot() map[string]JobTypeMetrics {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]JobTypeMetrics, len(c.typeMetrics))
	for k, v := range c.typeMetrics {
		out[k] = *v
	}
	return out
}
