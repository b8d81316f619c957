package monitor

import (
	"sync"
	"time"
)

// endpointStats accumulates latency for one endpoint
type endpointStats struct {
	count int64
	total time.Duration
	max   time.Duration
}

// EndpointReport is the exported view of one endpoint's latencies
type EndpointReport struct {
	Endpoint string        `json:"endpoint"`
	Count    int64         `json:"count"`
	Avg      time.Duration `json:"avg"`
	Max      time.Duration `json:"max"`
}

// PerformanceTracker accumulates API and signal-detection latencies.
// It satisfies the exchange client's latency-recorder hook.
type PerformanceTracker struct {
	mu        sync.Mutex
	api       map[string]*endpointStats
	signal    endpointStats
	startedAt time.Time
}

// NewPerformanceTracker creates an empty tracker
func NewPerformanceTracker() *PerformanceTracker {
	return &PerformanceTracker{
		api:       make(map[string]*endpointStats),
		startedAt: time.Now().UTC(),
	}
}

// RecordAPICall records the latency of one exchange API call
func (p *PerformanceTracker) RecordAPICall(endpoint string, elapsed time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	stats, ok := p.api[endpoint]
	if !ok {
		stats = &endpointStats{}
		p.api[endpoint] = stats
	}
	stats.count++
	stats.total += elapsed
	if elapsed > stats.max {
		stats.max = elapsed
	}
}

// RecordSignalLatency records the time spent computing indicators and
// evaluating signal rules for one symbol
func (p *PerformanceTracker) RecordSignalLatency(elapsed time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.signal.count++
	p.signal.total += elapsed
	if elapsed > p.signal.max {
		p.signal.max = elapsed
	}
}

// Report is a copy of all tracked latencies
type Report struct {
	Uptime     time.Duration    `json:"uptime"`
	API        []EndpointReport `json:"api"`
	SignalAvg  time.Duration    `json:"signal_avg"`
	SignalMax  time.Duration    `json:"signal_max"`
	SignalRuns int64            `json:"signal_runs"`
}

// Snapshot returns a copy of current statistics
func (p *PerformanceTracker) Snapshot() Report {
	p.mu.Lock()
	defer p.mu.Unlock()

	report := Report{
		Uptime:     time.Since(p.startedAt),
		SignalRuns: p.signal.count,
		SignalMax:  p.signal.max,
	}
	if p.signal.count > 0 {
		report.SignalAvg = p.signal.total / time.Duration(p.signal.count)
	}

	for endpoint, stats := range p.api {
		er := EndpointReport{Endpoint: endpoint, Count: stats.count, Max: stats.max}
		if stats.count > 0 {
			er.Avg = stats.total / time.Duration(stats.count)
		}
		report.API = append(report.API, er)
	}
	return report
}
