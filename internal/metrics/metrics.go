// Package metrics holds the run-scoped accumulator, the health status of the
// service and its Prometheus collector.
package metrics

import (
	"sync"
	"time"
)

// Status is the health view served on /health.
type Status struct {
	mu sync.RWMutex

	TotalProcessed int
	TotalSkipped   int
	TotalBlocked   int
	Runs           int

	LastRun         Snapshot
	LastRunTime     time.Time
	AverageDuration time.Duration
	totalDuration   time.Duration

	LastErrorTime time.Time
	LastError     string
	IsHealthy     bool
}

func NewStatus() *Status {
	return &Status{IsHealthy: true}
}

// RecordRun folds a finished run into the totals and marks the service healthy.
func (s *Status) RecordRun(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.TotalProcessed += snap.Processed
	s.TotalSkipped += snap.Skipped
	s.TotalBlocked += snap.Blocked
	s.Runs++
	s.totalDuration += snap.Duration
	s.AverageDuration = s.totalDuration / time.Duration(s.Runs)
	s.LastRun = snap
	s.LastRunTime = time.Now()
	s.IsHealthy = true
}

func (s *Status) SetError(err string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastError = err
	s.LastErrorTime = time.Now()
	s.IsHealthy = false
}

func (s *Status) Healthy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.IsHealthy
}

func (s *Status) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return map[string]interface{}{
		"total_processed":            s.TotalProcessed,
		"total_skipped":              s.TotalSkipped,
		"total_blocked":              s.TotalBlocked,
		"runs":                       s.Runs,
		"last_run":                   s.LastRun,
		"average_processing_time_ms": s.AverageDuration.Milliseconds(),
		"last_run_time":              s.LastRunTime.Format(time.RFC3339),
		"last_error_time":            s.LastErrorTime.Format(time.RFC3339),
		"last_error":                 s.LastError,
		"is_healthy":                 s.IsHealthy,
	}
}
