package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	backoffAfterErrors = 3
	backoffStep        = 30 * time.Second
	maxBackoff         = 5 * time.Minute
)

// HostLimiter spaces out requests per host and backs off on repeated errors
type HostLimiter struct {
	mu       sync.Mutex
	rps      float64
	burst    int
	limiters map[string]*hostState
}

type hostState struct {
	limiter         *rate.Limiter
	lastRequestTime time.Time
	backoffUntil    time.Time
	requestCount    int64
	errorCount      int64
}

// NewHostLimiter creates a limiter allowing rps requests per second per host
func NewHostLimiter(rps float64, burst int) *HostLimiter {
	if burst < 1 {
		burst = 1
	}
	return &HostLimiter{
		rps:      rps,
		burst:    burst,
		limiters: make(map[string]*hostState),
	}
}

func (h *HostLimiter) state(host string) *hostState {
	s, ok := h.limiters[host]
	if !ok {
		s = &hostState{limiter: rate.NewLimiter(rate.Limit(h.rps), h.burst)}
		h.limiters[host] = s
	}
	return s
}

// Wait blocks until a request to host is allowed
func (h *HostLimiter) Wait(ctx context.Context, host string) error {
	h.mu.Lock()
	s := h.state(host)
	backoff := time.Until(s.backoffUntil)
	h.mu.Unlock()

	if backoff > 0 {
		timer := time.NewTimer(backoff)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	h.mu.Lock()
	s.lastRequestTime = time.Now()
	s.requestCount++
	h.mu.Unlock()
	return nil
}

// RecordError counts a failure and starts a linear backoff after a few in a row
func (h *HostLimiter) RecordError(host string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s := h.state(host)
	s.errorCount++
	if s.errorCount > backoffAfterErrors {
		backoff := time.Duration(s.errorCount) * backoffStep
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
		s.backoffUntil = time.Now().Add(backoff)
	}
}

// RecordSuccess resets the error count of a host
func (h *HostLimiter) RecordSuccess(host string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if s, ok := h.limiters[host]; ok {
		s.errorCount = 0
		s.backoffUntil = time.Time{}
	}
}

// GetStats returns statistics for every host seen so far
func (h *HostLimiter) GetStats() map[string]HostStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	stats := make(map[string]HostStats, len(h.limiters))
	for host, s := range h.limiters {
		stats[host] = HostStats{
			RequestCount:    s.requestCount,
			ErrorCount:      s.errorCount,
			LastRequestTime: s.lastRequestTime,
			InBackoff:       time.Now().Before(s.backoffUntil),
			BackoffUntil:    s.backoffUntil,
		}
	}
	return stats
}

// HostStats contains statistics for a host
type HostStats struct {
	RequestCount    int64
	ErrorCount      int64
	LastRequestTime time.Time
	InBackoff       bool
	BackoffUntil    time.Time
}
