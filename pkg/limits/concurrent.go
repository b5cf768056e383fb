// Package limits bounds resource usage at the HTTP admission edge.
package limits

import "sync/atomic"

// ConcurrentLimiter caps simultaneous in-flight requests with a lock-free
// counting semaphore. Requests over the cap are rejected immediately rather
// than queued, keeping admission latency flat under overload.
type ConcurrentLimiter struct {
	limit   atomic.Int64
	current atomic.Int64
}

// NewConcurrentLimiter creates a limiter allowing at most limit concurrent
// requests.
func NewConcurrentLimiter(limit int) *ConcurrentLimiter {
	cl := &ConcurrentLimiter{}
	cl.limit.Store(int64(limit))
	return cl
}

// Acquire attempts to take a slot. A true return must be paired with
// Release:
//
//	if limiter.Acquire() {
//	    defer limiter.Release()
//	    // process request
//	}
func (cl *ConcurrentLimiter) Acquire() bool {
	if cl.current.Add(1) > cl.limit.Load() {
		cl.current.Add(-1)
		return false
	}
	return true
}

// Release returns a slot taken by a successful Acquire.
func (cl *ConcurrentLimiter) Release() {
	cl.current.Add(-1)
}

// Current returns the number of in-flight requests.
func (cl *ConcurrentLimiter) Current() int64 {
	return cl.current.Load()
}

// Limit returns the configured cap.
func (cl *ConcurrentLimiter) Limit() int64 {
	return cl.limit.Load()
}

// Remaining returns the number of free slots.
func (cl *ConcurrentLimiter) Remaining() int64 {
	remaining := cl.limit.Load() - cl.current.Load()
	if remaining < 0 {
		return 0
	}
	return remaining
}
