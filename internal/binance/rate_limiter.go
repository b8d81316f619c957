package binance

import (
	"context"
	"sync"
	"time"
)

// Binance spot API budgets per rolling minute
const (
	defaultMaxRequests = 1200
	defaultMaxWeight   = 6000
)

type weightEntry struct {
	at     time.Time
	weight int
}

// RateLimiter enforces the exchange's request-count and weight budgets over
// a sliding 60 second window. Calls block until both budgets admit them.
type RateLimiter struct {
	mu sync.Mutex

	window      time.Duration
	maxRequests int
	maxWeight   int

	requests []time.Time
	weights  []weightEntry

	// reportedWeight is the 1m weight the exchange last reported via the
	// X-MBX-USED-WEIGHT-1M header; used when it exceeds our own tracking
	reportedWeight   int
	reportedWeightAt time.Time
}

// NewRateLimiter creates a limiter with the default Binance budgets
func NewRateLimiter() *RateLimiter {
	return NewRateLimiterWithBudgets(defaultMaxRequests, defaultMaxWeight, time.Minute)
}

// NewRateLimiterWithBudgets creates a limiter with explicit budgets; the
// window parameter exists so tests can shrink the sliding window
func NewRateLimiterWithBudgets(maxRequests, maxWeight int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		window:      window,
		maxRequests: maxRequests,
		maxWeight:   maxWeight,
	}
}

// Global limiter shared by all clients in the process
var globalRateLimiter = NewRateLimiter()

// GetRateLimiter returns the process-wide rate limiter
func GetRateLimiter() *RateLimiter {
	return globalRateLimiter
}

// prune drops window entries older than the sliding window
func (r *RateLimiter) prune(now time.Time) {
	cutoff := now.Add(-r.window)

	i := 0
	for i < len(r.requests) && r.requests[i].Before(cutoff) {
		i++
	}
	r.requests = r.requests[i:]

	j := 0
	for j < len(r.weights) && r.weights[j].at.Before(cutoff) {
		j++
	}
	r.weights = r.weights[j:]

	if !r.reportedWeightAt.IsZero() && r.reportedWeightAt.Before(cutoff) {
		r.reportedWeight = 0
		r.reportedWeightAt = time.Time{}
	}
}

func (r *RateLimiter) usedWeightLocked() int {
	used := 0
	for _, w := range r.weights {
		used += w.weight
	}
	if r.reportedWeight > used {
		used = r.reportedWeight
	}
	return used
}

// Wait blocks until the call can be admitted under both budgets, then
// charges it. Every call charges weight >= 1.
func (r *RateLimiter) Wait(ctx context.Context, weight int) error {
	if weight < 1 {
		weight = 1
	}

	for {
		now := time.Now()

		r.mu.Lock()
		r.prune(now)

		if len(r.requests) < r.maxRequests && r.usedWeightLocked()+weight <= r.maxWeight {
			r.requests = append(r.requests, now)
			r.weights = append(r.weights, weightEntry{at: now, weight: weight})
			r.mu.Unlock()
			return nil
		}

		// Wait until the oldest entry ages out of the window
		wait := r.window
		if len(r.requests) > 0 {
			if d := r.requests[0].Add(r.window).Sub(now); d < wait {
				wait = d
			}
		}
		if len(r.weights) > 0 {
			if d := r.weights[0].at.Add(r.window).Sub(now); d < wait {
				wait = d
			}
		}
		if !r.reportedWeightAt.IsZero() {
			if d := r.reportedWeightAt.Add(r.window).Sub(now); d < wait {
				wait = d
			}
		}
		if wait < 10*time.Millisecond {
			wait = 10 * time.Millisecond
		}
		r.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// ObserveUsedWeight records the used weight reported by the exchange so
// that other consumers of the same IP are accounted for
func (r *RateLimiter) ObserveUsedWeight(weight int) {
	if weight <= 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if weight > r.reportedWeight {
		r.reportedWeight = weight
		r.reportedWeightAt = time.Now()
	}
}

// Stats describes the limiter's current window usage
type Stats struct {
	Requests    int     `json:"requests"`
	MaxRequests int     `json:"max_requests"`
	UsedWeight  int     `json:"used_weight"`
	MaxWeight   int     `json:"max_weight"`
	UsagePct    float64 `json:"usage_pct"`
}

// Stats returns current window usage
func (r *RateLimiter) Stats() Stats {
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.prune(now)

	used := r.usedWeightLocked()
	return Stats{
		Requests:    len(r.requests),
		MaxRequests: r.maxRequests,
		UsedWeight:  used,
		MaxWeight:   r.maxWeight,
		UsagePct:    float64(used) / float64(r.maxWeight) * 100,
	}
}
