package llm

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// CallStats tracks calls to the generation API for one operation.
type CallStats struct {
	Calls     int64 `json:"calls"`
	Errors    int64 `json:"errors"`
	LatencyNs int64 `json:"-"`
}

type counters struct {
	calls   int64
	errors  int64
	latency int64 // total latency in nanoseconds
}

var globalMetrics sync.Map // operation -> *counters

// RecordCall records one generation API call.
func RecordCall(operation string, duration time.Duration, err error) {
	v, _ := globalMetrics.LoadOrStore(operation, &counters{})
	c := v.(*counters)
	atomic.AddInt64(&c.calls, 1)
	atomic.AddInt64(&c.latency, duration.Nanoseconds())
	if err != nil {
		atomic.AddInt64(&c.errors, 1)
	}
}

// GetMetrics returns a snapshot keyed by operation.
func GetMetrics() map[string]CallStats {
	out := make(map[string]CallStats)
	globalMetrics.Range(func(k, v any) bool {
		c := v.(*counters)
		out[k.(string)] = CallStats{
			Calls:     atomic.LoadInt64(&c.calls),
			Errors:    atomic.LoadInt64(&c.errors),
			LatencyNs: atomic.LoadInt64(&c.latency),
		}
		return true
	})
	return out
}

// ResetMetrics resets all metrics (useful for testing)
func ResetMetrics() {
	globalMetrics.Range(func(k, _ any) bool {
		globalMetrics.Delete(k)
		return true
	})
}

// Operations returns the recorded operation names in order.
func Operations() []string {
	m := GetMetrics()
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// AverageLatencyMs returns the average latency in milliseconds
func (s CallStats) AverageLatencyMs() float64 {
	if s.Calls == 0 {
		return 0
	}
	return float64(s.LatencyNs) / float64(s.Calls) / 1e6
}

// ErrorRate returns the error rate as a percentage
func (s CallStats) ErrorRate() float64 {
	if s.Calls == 0 {
		return 0
	}
	return float64(s.Errors) / float64(s.Calls) * 100
}
