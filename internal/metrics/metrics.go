package metrics

import (
	"sync"
	"sync/atomic"
)

// rateLimitStats holds counters for rate limit drops (HTTP 429).
// Kept simple/thread-safe for use from middlewares and exposition.
type rateLimitStats struct {
	total    uint64
	mu       sync.Mutex
	byPrefix map[string]uint64
}

var rl rateLimitStats

// IncRateLimitDrop increments drop counters for the given prefix.
// Use prefix "global" for global limiter rejections.
func IncRateLimitDrop(prefix string) {
	if prefix == "" {
		prefix = "global"
	}
	atomic.AddUint64(&rl.total, 1)
	rl.mu.Lock()
	if rl.byPrefix == nil {
		rl.byPrefix = make(map[string]uint64)
	}
	rl.byPrefix[prefix]++
	rl.mu.Unlock()
}

// RateLimitSnapshot returns a copy of the current counters.
func RateLimitSnapshot() (total uint64, by map[string]uint64) {
	total = atomic.LoadUint64(&rl.total)
	rl.mu.Lock()
	defer rl.mu.Unlock()
	by = make(map[string]uint64, len(rl.byPrefix))
	for k, v := range rl.byPrefix {
		by[k] = v
	}
	return total, by
}

// automationStats counts rule executions by outcome.
type automationStats struct {
	success uint64
	failure uint64
	mu      sync.Mutex
	byKind  map[string]uint64 // action type -> executions
}

var auto automationStats

// IncAutomationRun records one rule execution attempt.
func IncAutomationRun(actionType string, success bool) {
	if success {
		atomic.AddUint64(&auto.success, 1)
	} else {
		atomic.AddUint64(&auto.failure, 1)
	}
	auto.mu.Lock()
	if auto.byKind == nil {
		auto.byKind = make(map[string]uint64)
	}
	auto.byKind[actionType]++
	auto.mu.Unlock()
}

// AutomationSnapshot returns a copy of the execution counters.
func AutomationSnapshot() (success, failure uint64, byKind map[string]uint64) {
	success = atomic.LoadUint64(&auto.success)
	failure = atomic.LoadUint64(&auto.failure)
	auto.mu.Lock()
	defer auto.mu.Unlock()
	byKind = make(map[string]uint64, len(auto.byKind))
	for k, v := range auto.byKind {
		byKind[k] = v
	}
	return success, failure, byKind
}
