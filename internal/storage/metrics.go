package storage

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// SimpleMetricsCollector keeps per-operation timing stats for the ledger
type SimpleMetricsCollector struct {
	stats map[string]*OperationStats
	total int
	mutex sync.RWMutex
}

// NewSimpleMetricsCollector creates an empty collector
func NewSimpleMetricsCollector() *SimpleMetricsCollector {
	return &SimpleMetricsCollector{
		stats: make(map[string]*OperationStats),
	}
}

// RecordMetric folds metric into the running stats of its operation
func (s *SimpleMetricsCollector) RecordMetric(metric LedgerMetrics) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	stats := s.stats[metric.OperationType]
	if stats == nil {
		stats = &OperationStats{}
		s.stats[metric.OperationType] = stats
	}
	stats.add(metric)
	s.total++

	logger := log.With().
		Str("component", "ledger").
		Str("operation", metric.OperationType).
		Int64("duration_ns", metric.Duration).
		Int("rows", metric.Rows).
		Bool("success", metric.Success).
		Logger()
	if metric.Error != nil {
		logger = logger.With().Err(metric.Error).Logger()
	}
	logger.Debug().Msg("Ledger operation metric recorded")
}

// GetMetricsSummary returns a copy of the per-operation stats
func (s *SimpleMetricsCollector) GetMetricsSummary() map[string]interface{} {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	byOperation := make(map[string]OperationStats, len(s.stats))
	for op, stats := range s.stats {
		byOperation[op] = *stats
	}
	return map[string]interface{}{
		"by_operation":     byOperation,
		"total_operations": s.total,
	}
}

// Operation returns the stats of one operation type
func (s *SimpleMetricsCollector) Operation(op string) (OperationStats, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	stats, ok := s.stats[op]
	if !ok {
		return OperationStats{}, false
	}
	return *stats, true
}

// ClearMetrics drops everything collected so far
func (s *SimpleMetricsCollector) ClearMetrics() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.stats = make(map[string]*OperationStats)
	s.total = 0
}

// OperationStats holds statistics for a specific operation type
type OperationStats struct {
	Count         int   `json:"count"`
	SuccessCount  int   `json:"success_count"`
	FailureCount  int   `json:"failure_count"`
	Rows          int64 `json:"rows"`
	TotalDuration int64 `json:"total_duration_ns"`
	MinDuration   int64 `json:"min_duration_ns"`
	MaxDuration   int64 `json:"max_duration_ns"`
	AvgDuration   int64 `json:"avg_duration_ns"`
}

func (o *OperationStats) add(metric LedgerMetrics) {
	o.Count++
	o.TotalDuration += metric.Duration
	o.Rows += int64(metric.Rows)
	if metric.Success {
		o.SuccessCount++
	} else {
		o.FailureCount++
	}

	if o.Count == 1 || metric.Duration < o.MinDuration {
		o.MinDuration = metric.Duration
	}
	if metric.Duration > o.MaxDuration {
		o.MaxDuration = metric.Duration
	}
	o.AvgDuration = o.TotalDuration / int64(o.Count)
}

// GetSuccessRate returns the success rate as a percentage
func (o *OperationStats) GetSuccessRate() float64 {
	if o.Count == 0 {
		return 0.0
	}
	return float64(o.SuccessCount) / float64(o.Count) * 100.0
}

// GetAvgDurationMs returns the average duration in milliseconds
func (o *OperationStats) GetAvgDurationMs() float64 {
	return float64(o.AvgDuration) / float64(time.Millisecond)
}
